package carbon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY - Combining reports across pixels or lines
// =============================================================================

// recordSum accumulates in decimal so summing millions of small pixel values
// does not drift with summation order.
type recordSum struct {
	date                                               DOY
	stock, emission, productivity, net, unreleased     decimal.Decimal
	stockUC, emissionUC, productivityUC, netUC, unrlUC decimal.Decimal
}

func (s *recordSum) add(r Record) {
	s.stock = s.stock.Add(decimal.NewFromFloat(r.Stock))
	s.emission = s.emission.Add(decimal.NewFromFloat(r.Emission))
	s.productivity = s.productivity.Add(decimal.NewFromFloat(r.Productivity))
	s.net = s.net.Add(decimal.NewFromFloat(r.Net))
	s.unreleased = s.unreleased.Add(decimal.NewFromFloat(r.Unreleased))
	s.stockUC = s.stockUC.Add(decimal.NewFromFloat(r.StockUC))
	s.emissionUC = s.emissionUC.Add(decimal.NewFromFloat(r.EmissionUC))
	s.productivityUC = s.productivityUC.Add(decimal.NewFromFloat(r.ProductivityUC))
	s.netUC = s.netUC.Add(decimal.NewFromFloat(r.NetUC))
	s.unrlUC = s.unrlUC.Add(decimal.NewFromFloat(r.UnreleasedUC))
}

func (s *recordSum) record(div decimal.Decimal) Record {
	f := func(d decimal.Decimal) float64 { return d.Div(div).InexactFloat64() }
	return Record{
		Date:           s.date,
		Stock:          f(s.stock),
		Emission:       f(s.emission),
		Productivity:   f(s.productivity),
		Net:            f(s.net),
		Unreleased:     f(s.unreleased),
		StockUC:        f(s.stockUC),
		EmissionUC:     f(s.emissionUC),
		ProductivityUC: f(s.productivityUC),
		NetUC:          f(s.netUC),
		UnreleasedUC:   f(s.unrlUC),
	}
}

// SumReports adds reports date by date. All reports must share the same
// dates. Uncertainties add linearly: ensemble members are shared across
// pixels, so pixel errors are fully correlated.
func SumReports(reports [][]Record) ([]Record, error) {
	return combine(reports, 1)
}

// MeanReports averages reports date by date over count units. Count may
// exceed len(reports) when reports are already line sums.
func MeanReports(reports [][]Record, count int) ([]Record, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: pixel count %d", ErrEmptyInput, count)
	}
	return combine(reports, count)
}

func combine(reports [][]Record, div int) ([]Record, error) {
	if len(reports) == 0 {
		return nil, ErrEmptyInput
	}
	acc := make([]recordSum, len(reports[0]))
	for i, r := range reports[0] {
		acc[i].date = r.Date
	}
	for n, rep := range reports {
		if len(rep) != len(acc) {
			return nil, fmt.Errorf("%w: report %d has %d records, want %d", ErrInvalidPeriod, n, len(rep), len(acc))
		}
		for i, r := range rep {
			if r.Date != acc[i].date {
				return nil, fmt.Errorf("%w: report %d record %d dated %s, want %s", ErrInvalidPeriod, n, i, r.Date, acc[i].date)
			}
			acc[i].add(r)
		}
	}
	d := decimal.NewFromInt(int64(div))
	out := make([]Record, len(acc))
	for i := range acc {
		out[i] = acc[i].record(d)
	}
	return out, nil
}
