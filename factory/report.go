package factory

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// REPORT OUTPUT
// =============================================================================

// Report column sets. The UC variant interleaves each quantity with its 95%
// half-width.
var (
	ReportHeader   = []string{"date", "above", "emission", "productivity", "net", "unreleased"}
	ReportHeaderUC = []string{"date", "above", "a_uc", "emission", "e_uc", "productivity", "p_uc", "net", "n_uc", "unreleased", "u_uc"}
)

// Places is the number of decimals written for report values.
const Places = 6

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(Places)
}

// WriteReport writes records as CSV, with uncertainty columns when withUC.
func WriteReport(w io.Writer, records []carbon.Record, withUC bool) error {
	cw := csv.NewWriter(w)
	header := ReportHeader
	if withUC {
		header = ReportHeaderUC
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		var row []string
		if withUC {
			row = []string{
				strconv.Itoa(int(r.Date)),
				fixed(r.Stock), fixed(r.StockUC),
				fixed(r.Emission), fixed(r.EmissionUC),
				fixed(r.Productivity), fixed(r.ProductivityUC),
				fixed(r.Net), fixed(r.NetUC),
				fixed(r.Unreleased), fixed(r.UnreleasedUC),
			}
		} else {
			row = []string{
				strconv.Itoa(int(r.Date)),
				fixed(r.Stock), fixed(r.Emission), fixed(r.Productivity), fixed(r.Net), fixed(r.Unreleased),
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadReport reads a report written by WriteReport, with or without UC columns.
func ReadReport(r io.Reader) ([]carbon.Record, error) {
	t, err := readTable("report", r)
	if err != nil {
		return nil, err
	}
	if err := t.require(ReportHeader...); err != nil {
		return nil, err
	}
	out := make([]carbon.Record, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		date, err := t.integer(line, row, "date")
		if err != nil {
			return nil, err
		}
		rec := carbon.Record{Date: carbon.DOY(date)}
		fields := []struct {
			col string
			dst *float64
		}{
			{"above", &rec.Stock}, {"a_uc", &rec.StockUC},
			{"emission", &rec.Emission}, {"e_uc", &rec.EmissionUC},
			{"productivity", &rec.Productivity}, {"p_uc", &rec.ProductivityUC},
			{"net", &rec.Net}, {"n_uc", &rec.NetUC},
			{"unreleased", &rec.Unreleased}, {"u_uc", &rec.UnreleasedUC},
		}
		for _, f := range fields {
			if *f.dst, err = t.float(line, row, f.col); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// MetricRow is one pixel's value of a single report metric.
type MetricRow struct {
	PX, PY int32
	Value  float64
}

// WriteMetric writes px,py,<metric> rows. Pixels without a result carry
// carbon.NoData.
func WriteMetric(w io.Writer, metric string, rows []MetricRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"px", "py", metric}); err != nil {
		return err
	}
	for _, r := range rows {
		v := strconv.Itoa(carbon.NoData)
		if r.Value != carbon.NoData {
			v = fixed(r.Value)
		}
		if err := cw.Write([]string{strconv.Itoa(int(r.PX)), strconv.Itoa(int(r.PY)), v}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePoolSeries writes the daily per-pool record: date, then one biomass
// and one flux column per pool.
func WritePoolSeries(w io.Writer, s carbon.PoolSeries) error {
	cw := csv.NewWriter(w)
	header := []string{"date"}
	for i, l := range s.Labels {
		header = append(header, fmt.Sprintf("%s_%d_biomass", l, i), fmt.Sprintf("%s_%d_flux", l, i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for k, d := range s.Dates {
		row := []string{strconv.Itoa(int(d))}
		for i := range s.Labels {
			row = append(row, fixed(s.Biomass[k][i]), fixed(s.Flux[k][i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
