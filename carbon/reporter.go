/*
reporter.go - Pool reporter

PURPOSE:
  Answers point-in-time and time-series questions about a frozen Collection:
  how much biomass stands at date t, how much has been emitted or sequestered
  since the pools opened, how much is still held in products.

EVALUATION AT t (per pool, per ensemble member):
  t before Start   no contribution
  t in window      b(t) from the decay library, delta = initial - b(t)
  t after End      delta = initial - final
  delta >= 0 counts as emission, delta < 0 as productivity (negative).
  Standing pools add b(t) to Stock, product pools add b(t) to Unreleased.
  Burned pools are combusted at once: from their start date on they add
  their whole initial biomass to Emission, whatever their decay function.
  Net = Emission + Productivity.

  Values are cumulative from each pool's start; Increments turns a series
  into per-step fluxes.

ENSEMBLES:
  Every quantity is accumulated per ensemble member and summarised as a mean
  and a 95% half-width (1.96 standard deviations). Deterministic runs have a
  single member and zero spread.

PERIODS:
  The caller states whether a report steps over calendar years (dates are
  YEAR*1000+1) or over days.
*/
package carbon

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// NoData fills per-pool series where a pool does not exist.
const NoData = -9999

// =============================================================================
// RECORD - One dated summary
// =============================================================================

// Record is the summary of a collection at one date.
type Record struct {
	Date         DOY
	Stock        float64
	Emission     float64
	Productivity float64
	Net          float64
	Unreleased   float64

	StockUC        float64
	EmissionUC     float64
	ProductivityUC float64
	NetUC          float64
	UnreleasedUC   float64
}

// Metric returns one field of the record by its report column name.
func (r Record) Metric(name string) (float64, error) {
	switch name {
	case "above", "stock":
		return r.Stock, nil
	case "emission":
		return r.Emission, nil
	case "productivity":
		return r.Productivity, nil
	case "net":
		return r.Net, nil
	case "unreleased":
		return r.Unreleased, nil
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// =============================================================================
// REPORT PERIOD
// =============================================================================

type PeriodKind int

const (
	PeriodYears PeriodKind = iota // Start/End are years, one record per January 1st
	PeriodDays                    // Start/End are DOY dates, Step is in days
)

// ReportPeriod is an inclusive range of report dates.
type ReportPeriod struct {
	Kind  PeriodKind
	Start int32
	End   int32
	Step  int
}

func YearPeriod(start, end, step int) ReportPeriod {
	return ReportPeriod{Kind: PeriodYears, Start: int32(start), End: int32(end), Step: step}
}

func DayPeriod(start, end DOY, step int) ReportPeriod {
	return ReportPeriod{Kind: PeriodDays, Start: int32(start), End: int32(end), Step: step}
}

// MaxReportDates bounds the number of records one period may expand to.
const MaxReportDates = 100_000

// MaxReportYear is the last year a year period may name.
const MaxReportYear = 9999

// span returns the period as an int64 range (years or ordinal days) and the
// number of records it expands to. A step wider than the range yields one
// record.
func (p ReportPeriod) span() (first, step, n int64, err error) {
	if p.End < p.Start {
		return 0, 0, 0, fmt.Errorf("%w: %d after %d", ErrInvalidPeriod, p.Start, p.End)
	}
	var last int64
	switch p.Kind {
	case PeriodYears:
		if p.Start < 1 || p.End > MaxReportYear {
			return 0, 0, 0, fmt.Errorf("%w: years %d-%d outside 1-%d", ErrInvalidPeriod, p.Start, p.End, MaxReportYear)
		}
		first, last = int64(p.Start), int64(p.End)
	case PeriodDays:
		s, err := DOYToOrdinal(DOY(p.Start))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		e, err := DOYToOrdinal(DOY(p.End))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		first, last = int64(s), int64(e)
	default:
		return 0, 0, 0, fmt.Errorf("%w: unknown period kind %d", ErrInvalidPeriod, p.Kind)
	}

	step = int64(p.Step)
	if step <= 0 {
		step = 1
	}
	if width := last - first; step > width {
		step = width + 1
	}
	n = (last-first)/step + 1
	if n > MaxReportDates {
		return 0, 0, 0, fmt.Errorf("%w: %d records exceed %d", ErrInvalidPeriod, n, MaxReportDates)
	}
	return first, step, n, nil
}

// Len returns the number of report dates the period expands to.
func (p ReportPeriod) Len() (int, error) {
	_, _, n, err := p.span()
	return int(n), err
}

// Dates expands the period into report dates.
func (p ReportPeriod) Dates() ([]DOY, error) {
	first, step, n, err := p.span()
	if err != nil {
		return nil, err
	}
	out := make([]DOY, 0, n)
	for i := int64(0); i < n; i++ {
		v := first + i*step
		if p.Kind == PeriodYears {
			out = append(out, NewDOY(int(v), 1))
		} else {
			out = append(out, Ordinal(v).DOY())
		}
	}
	return out, nil
}

// =============================================================================
// REPORTER
// =============================================================================

// Reporter evaluates a frozen Collection.
type Reporter struct {
	cfg Config
	col *Collection
}

func NewReporter(cfg Config, col *Collection) *Reporter {
	return &Reporter{cfg: cfg, col: col}
}

// sums holds per-member accumulators at one date.
type sums struct {
	stock, emission, productivity, unreleased []float64
}

func newSums(width int) sums {
	return sums{
		stock:        make([]float64, width),
		emission:     make([]float64, width),
		productivity: make([]float64, width),
		unreleased:   make([]float64, width),
	}
}

func (s sums) net() []float64 {
	out := make([]float64, len(s.emission))
	floats.AddTo(out, s.emission, s.productivity)
	return out
}

func (s sums) sub(prev sums) sums {
	out := newSums(len(s.stock))
	copy(out.stock, s.stock)
	copy(out.unreleased, s.unreleased)
	floats.SubTo(out.emission, s.emission, prev.emission)
	floats.SubTo(out.productivity, s.productivity, prev.productivity)
	return out
}

func (s sums) record(date DOY) Record {
	net := s.net()
	return Record{
		Date:           date,
		Stock:          Mean(s.stock),
		Emission:       Mean(s.emission),
		Productivity:   Mean(s.productivity),
		Net:            Mean(net),
		Unreleased:     Mean(s.unreleased),
		StockUC:        Spread(s.stock),
		EmissionUC:     Spread(s.emission),
		ProductivityUC: Spread(s.productivity),
		NetUC:          Spread(net),
		UnreleasedUC:   Spread(s.unreleased),
	}
}

func (r *Reporter) width() int {
	if w := r.col.Width(); w > 0 {
		return w
	}
	return 1
}

func (r *Reporter) evalVec(t Ordinal) sums {
	s := newSums(r.width())
	if r.col.Empty() {
		return s
	}
	for i := range r.col.pools {
		p := &r.col.pools[i]
		if t < p.Start {
			continue
		}
		if p.Type == PoolBurned {
			floats.Add(s.emission, p.Initial)
			continue
		}
		delta := make([]float64, len(p.Initial))
		if t <= p.End {
			bt := RunFluxVec(p.Initial, p.Start, t, p.Decay, p.Scale(r.cfg.CarbonFraction))
			floats.SubTo(delta, p.Initial, bt)
			switch p.Type {
			case PoolBiomass:
				floats.Add(s.stock, bt)
			case PoolProduct:
				floats.Add(s.unreleased, bt)
			}
		} else {
			floats.SubTo(delta, p.Initial, p.Final)
		}
		for k, d := range delta {
			if d < 0 {
				s.productivity[k] += d
			} else {
				s.emission[k] += d
			}
		}
	}
	return s
}

// EvalSum summarises the collection at one date. Dates that do not exist or
// fall outside every pool give a zero record.
func (r *Reporter) EvalSum(t DOY) Record {
	o, err := DOYToOrdinal(t)
	if err != nil {
		return Record{Date: t}
	}
	return r.evalVec(o).record(t)
}

// Report evaluates the collection at every date of the period.
func (r *Reporter) Report(period ReportPeriod) ([]Record, error) {
	if r.col.Empty() {
		return nil, ErrEmptyInput
	}
	dates, err := period.Dates()
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(dates))
	for i, d := range dates {
		out[i] = r.EvalSum(d)
	}
	return out, nil
}

// Increments reports per-step fluxes: emission, productivity and net since
// the previous date of the period (since the pools opened for the first).
// Stocks stay instantaneous.
func (r *Reporter) Increments(period ReportPeriod) ([]Record, error) {
	if r.col.Empty() {
		return nil, ErrEmptyInput
	}
	dates, err := period.Dates()
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(dates))
	prev := newSums(r.width())
	for i, d := range dates {
		o, err := DOYToOrdinal(d)
		if err != nil {
			return nil, err
		}
		cur := r.evalVec(o)
		out[i] = cur.sub(prev).record(d)
		prev = cur
	}
	return out, nil
}

// =============================================================================
// PER-POOL SERIES - Diagnostics, not official reporting
// =============================================================================

// PoolSeries is the daily density and flux of every pool. Rows follow Dates,
// columns follow the collection's pools; NoData marks absent pools.
type PoolSeries struct {
	Dates   []DOY
	Labels  []Subpool
	Biomass [][]float64
	Flux    [][]float64
}

// EvalPools returns each pool's ensemble-mean biomass and flux at t.
func (r *Reporter) EvalPools(t DOY) (biomass, flux []float64) {
	n := r.col.Len()
	biomass = make([]float64, n)
	flux = make([]float64, n)
	o, err := DOYToOrdinal(t)
	for i := 0; i < n; i++ {
		biomass[i], flux[i] = NoData, NoData
		if err != nil {
			continue
		}
		p := &r.col.pools[i]
		if !p.Contains(o) {
			continue
		}
		initial := Mean(p.Initial)
		if p.Type == PoolBurned {
			if o == p.Start {
				biomass[i] = initial
			}
			flux[i] = initial
			continue
		}
		bt := Mean(RunFluxVec(p.Initial, p.Start, o, p.Decay, p.Scale(r.cfg.CarbonFraction)))
		biomass[i] = bt
		flux[i] = initial - bt
	}
	return biomass, flux
}

// Record produces the daily per-pool series over the collection's span.
func (r *Reporter) Record() PoolSeries {
	var s PoolSeries
	if r.col.Empty() {
		return s
	}
	for i := range r.col.pools {
		s.Labels = append(s.Labels, r.col.pools[i].Subpool)
	}
	for o := r.col.Start(); o <= r.col.End(); o++ {
		d := o.DOY()
		b, f := r.EvalPools(d)
		s.Dates = append(s.Dates, d)
		s.Biomass = append(s.Biomass, b)
		s.Flux = append(s.Flux, f)
	}
	return s
}
