package factory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// CSV TABLES
// =============================================================================
//
// Parameter directory:
//   biomass.csv  id,biomass,uncertainty
//   flux.csv     id,function,coef1,coef2
//   product.csv  product,fraction,function,coef1,coef2
//
// Segments (one row per segment, rows of a pixel contiguous):
//   px,py,class,start,end,break[,se_biomass,se_uncertainty]
//
// Activity data (one row per period):
//   start,end,sec,for_pas,for_sec,sec_gain,sec_pas
//   start/end are years or DOY dates; the caller states which (DateForm).

// DateForm is the representation of activity-table period bounds.
type DateForm int

const (
	DatesYears DateForm = iota // start/end are years: January 1st to December 31st
	DatesDOY                   // start/end are YYYYDDD dates
)

// ParseDateForm maps "years" and "doy" to a DateForm.
func ParseDateForm(s string) (DateForm, error) {
	switch s {
	case "years":
		return DatesYears, nil
	case "doy":
		return DatesDOY, nil
	}
	return 0, fmt.Errorf("unknown date form %q (want years or doy)", s)
}

// table is a header-indexed CSV document.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

func readTable(name string, r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", name)
	}
	t := &table{name: name, cols: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return t, nil
}

func readTableFile(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTable(filepath.Base(path), f)
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("%s: missing column %q", t.name, c)
		}
	}
	return nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

// str returns the cell or "" when the column is absent.
func (t *table) str(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) float(line int, row []string, col string) (float64, error) {
	s := t.str(row, col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %s: %w", t.name, line, col, err)
	}
	return v, nil
}

// bounded is integer restricted to [lo, hi].
func (t *table) bounded(line int, row []string, col string, lo, hi int64) (int64, error) {
	v, err := t.integer(line, row, col)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s line %d: %s: %d outside [%d, %d]", t.name, line, col, v, lo, hi)
	}
	return v, nil
}

func (t *table) integer(line int, row []string, col string) (int64, error) {
	s := t.str(row, col)
	if s == "" {
		return 0, nil
	}
	// Integers exported through float columns ("2001001.0") are accepted.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %s: %w", t.name, line, col, err)
	}
	return int64(v), nil
}

// =============================================================================
// PARAMETER DIRECTORY
// =============================================================================

// ReadParamsDir reads biomass.csv, flux.csv and product.csv from dir.
func ReadParamsDir(dir string) (*carbon.Params, error) {
	var pj ParamsJSON

	bt, err := readTableFile(filepath.Join(dir, "biomass.csv"))
	if err != nil {
		return nil, err
	}
	if err := bt.require("id", "biomass"); err != nil {
		return nil, err
	}
	for i, row := range bt.rows {
		line := i + 2
		id, err := bt.bounded(line, row, "id", 0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		mean, err := bt.float(line, row, "biomass")
		if err != nil {
			return nil, err
		}
		uc, err := bt.float(line, row, "uncertainty")
		if err != nil {
			return nil, err
		}
		pj.Biomass = append(pj.Biomass, BiomassJSON{Class: uint16(id), Mean: mean, Uncertainty: uc})
	}

	ft, err := readTableFile(filepath.Join(dir, "flux.csv"))
	if err != nil {
		return nil, err
	}
	if err := ft.require("id", "function"); err != nil {
		return nil, err
	}
	for i, row := range ft.rows {
		line := i + 2
		id, err := ft.bounded(line, row, "id", 0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		coef, err := coefColumns(ft, line, row)
		if err != nil {
			return nil, err
		}
		pj.Flux = append(pj.Flux, FluxJSON{Class: uint16(id), Function: ft.str(row, "function"), Coef: coef})
	}

	pt, err := readTableFile(filepath.Join(dir, "product.csv"))
	if err != nil {
		return nil, err
	}
	if err := pt.require("product", "fraction", "function"); err != nil {
		return nil, err
	}
	for i, row := range pt.rows {
		line := i + 2
		frac, err := pt.float(line, row, "fraction")
		if err != nil {
			return nil, err
		}
		coef, err := coefColumns(pt, line, row)
		if err != nil {
			return nil, err
		}
		pj.Products = append(pj.Products, ProductJSON{
			Name:     pt.str(row, "product"),
			Fraction: frac,
			Function: pt.str(row, "function"),
			Coef:     coef,
		})
	}

	pj.Name = filepath.Base(dir)
	return FromJSON(pj)
}

func coefColumns(t *table, line int, row []string) ([]float64, error) {
	c1, err := t.float(line, row, "coef1")
	if err != nil {
		return nil, err
	}
	c2, err := t.float(line, row, "coef2")
	if err != nil {
		return nil, err
	}
	return []float64{c1, c2}, nil
}

// =============================================================================
// SEGMENTS
// =============================================================================

// PixelInput is one pixel's segments and optional spatially explicit biomass.
type PixelInput struct {
	PX, PY    int32
	Segments  []carbon.Segment
	SEBiomass *carbon.Estimate
}

// ReadSegments reads a segment table grouped into pixels. Rows of one pixel
// must be contiguous and in time order. Dates are DOY; break 0 means none.
func ReadSegments(r io.Reader) ([]PixelInput, error) {
	t, err := readTable("segments", r)
	if err != nil {
		return nil, err
	}
	if err := t.require("px", "py", "class", "start", "end"); err != nil {
		return nil, err
	}

	var out []PixelInput
	for i, row := range t.rows {
		line := i + 2
		var v [6]int64
		for j, col := range []string{"px", "py", "class", "start", "end", "break"} {
			if v[j], err = t.bounded(line, row, col, segmentLimits[j][0], segmentLimits[j][1]); err != nil {
				return nil, err
			}
		}
		seg := carbon.Segment{PX: int32(v[0]), PY: int32(v[1]), Class: carbon.ClassID(v[2])}
		if seg.Start, err = ordinal(t, line, v[3]); err != nil {
			return nil, err
		}
		if seg.End, err = ordinal(t, line, v[4]); err != nil {
			return nil, err
		}
		if v[5] > 0 {
			if seg.Break, err = ordinal(t, line, v[5]); err != nil {
				return nil, err
			}
		}

		if n := len(out); n == 0 || out[n-1].PX != seg.PX || out[n-1].PY != seg.PY {
			out = append(out, PixelInput{PX: seg.PX, PY: seg.PY})
		}
		px := &out[len(out)-1]
		px.Segments = append(px.Segments, seg)

		if t.has("se_biomass") && t.str(row, "se_biomass") != "" && px.SEBiomass == nil {
			value, err := t.float(line, row, "se_biomass")
			if err != nil {
				return nil, err
			}
			uc, err := t.float(line, row, "se_uncertainty")
			if err != nil {
				return nil, err
			}
			if value >= 0 {
				px.SEBiomass = &carbon.Estimate{Value: value, Uncertainty: uc}
			}
		}
	}
	return out, nil
}

// segmentLimits bounds px, py, class, start, end and break.
var segmentLimits = [6][2]int64{
	{math.MinInt32, math.MaxInt32},
	{math.MinInt32, math.MaxInt32},
	{0, math.MaxUint16},
	{0, math.MaxInt32},
	{0, math.MaxInt32},
	{0, math.MaxInt32},
}

func ordinal(t *table, line int, doy int64) (carbon.Ordinal, error) {
	o, err := carbon.DOYToOrdinal(carbon.DOY(doy))
	if err != nil {
		return 0, fmt.Errorf("%s line %d: %w", t.name, line, err)
	}
	return o, nil
}

// =============================================================================
// ACTIVITY DATA
// =============================================================================

// ReadActivity reads a regional activity table whose period bounds are in
// the given form. Transition columns that are absent count as zero area; at
// least one must be present.
func ReadActivity(r io.Reader, form DateForm) ([]carbon.ActivityPeriod, error) {
	t, err := readTable("activity", r)
	if err != nil {
		return nil, err
	}
	if err := t.require("start", "end"); err != nil {
		return nil, err
	}
	found := false
	for _, name := range carbon.TransitionNames() {
		found = found || t.has(name)
	}
	if !found {
		return nil, errors.New("activity: no transition column")
	}

	out := make([]carbon.ActivityPeriod, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var ap carbon.ActivityPeriod
		if ap.Start, ap.End, err = periodBounds(t, line, row, form); err != nil {
			return nil, err
		}
		for tr, name := range carbon.TransitionNames() {
			if ap.Areas[tr], err = t.float(line, row, name); err != nil {
				return nil, err
			}
		}
		out = append(out, ap)
	}
	return out, nil
}

// periodBounds reads start/end. Years span January 1st to December 31st.
func periodBounds(t *table, line int, row []string, form DateForm) (start, end carbon.DOY, err error) {
	switch form {
	case DatesYears:
		s, err := t.bounded(line, row, "start", 1, carbon.MaxReportYear)
		if err != nil {
			return 0, 0, err
		}
		e, err := t.bounded(line, row, "end", 1, carbon.MaxReportYear-1)
		if err != nil {
			return 0, 0, err
		}
		last := carbon.OrdinalToDOY(carbon.MustOrdinal(carbon.NewDOY(int(e)+1, 1)) - 1)
		return carbon.NewDOY(int(s), 1), last, nil
	case DatesDOY:
		var v [2]int64
		for j, col := range []string{"start", "end"} {
			if v[j], err = t.bounded(line, row, col, 0, math.MaxInt32); err != nil {
				return 0, 0, err
			}
			if !carbon.DOY(v[j]).Valid() {
				return 0, 0, fmt.Errorf("%s line %d: %s: %w: %d", t.name, line, col, carbon.ErrInvalidDate, v[j])
			}
		}
		return carbon.DOY(v[0]), carbon.DOY(v[1]), nil
	}
	return 0, 0, fmt.Errorf("unknown date form %d", form)
}
