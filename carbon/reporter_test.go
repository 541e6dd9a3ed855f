package carbon_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-book/carbon"
)

func deforestedPixel(t *testing.T, opts carbon.PixelOptions) (carbon.Config, *carbon.Collection) {
	t.Helper()
	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{
		seg(forest, 2001001, 2010365),
		seg(pasture, 2011001, 2015365),
	}, opts)
	require.NoError(t, err)
	return cfg, col
}

// =============================================================================
// REPORT
// =============================================================================

func TestReport_YearlySeries(t *testing.T) {
	// GIVEN: a pixel deforested in 2011
	// WHEN: reporting every year 2001-2015
	// THEN: one record per January 1st with net = emission + productivity

	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	records, err := carbon.NewReporter(cfg, col).Report(carbon.YearPeriod(2001, 2015, 1))
	require.NoError(t, err)
	require.Len(t, records, 15)

	for i, r := range records {
		assert.Equal(t, carbon.NewDOY(2001+i, 1), r.Date)
		assert.InDelta(t, r.Emission+r.Productivity, r.Net, 1e-9)
		assert.GreaterOrEqual(t, r.Emission, 0.0)
		assert.LessOrEqual(t, r.Productivity, 0.0)
		assert.Zero(t, r.NetUC, "deterministic run has no spread")
	}

	// Standing forest, nothing emitted yet.
	before := records[4]
	assert.InDelta(t, 150*scale(cfg), before.Stock, 1e-9)
	assert.InDelta(t, 0, before.Emission, 1e-9)
	assert.Zero(t, before.Unreleased)

	// After clearing: pasture stands, products hold the rest and the durable
	// pool decays into emissions.
	after := records[13]
	assert.Less(t, after.Stock, before.Stock)
	assert.Greater(t, after.Unreleased, 0.0)
	assert.Greater(t, after.Emission, 0.0)
	assert.Less(t, after.Productivity, 0.0, "pasture grows")
}

func TestReport_DayPeriod(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	records, err := carbon.NewReporter(cfg, col).Report(carbon.DayPeriod(2005001, 2005010, 3))
	require.NoError(t, err)

	var dates []carbon.DOY
	for _, r := range records {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []carbon.DOY{2005001, 2005004, 2005007, 2005010}, dates)
}

func TestReport_InvalidPeriod(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	_, err := carbon.NewReporter(cfg, col).Report(carbon.YearPeriod(2010, 2005, 1))
	assert.ErrorIs(t, err, carbon.ErrInvalidPeriod)

	_, err = carbon.NewReporter(cfg, col).Report(carbon.DayPeriod(2005400, 2006001, 1))
	assert.ErrorIs(t, err, carbon.ErrInvalidPeriod)
}

func TestReportPeriod_WideStep(t *testing.T) {
	// GIVEN: steps wider than the period, up to the int32 limit and beyond
	// WHEN: expanding the period
	// THEN: exactly one date, the start

	for _, step := range []int{21, math.MaxInt32, math.MaxInt} {
		dates, err := carbon.DayPeriod(2008110, 2008130, step).Dates()
		require.NoError(t, err)
		assert.Equal(t, []carbon.DOY{2008110}, dates, "step %d", step)

		dates, err = carbon.YearPeriod(2001, 2015, step).Dates()
		require.NoError(t, err)
		assert.Equal(t, []carbon.DOY{2001001}, dates, "step %d", step)
	}

	dates, err := carbon.DayPeriod(2008110, 2008130, 20).Dates()
	require.NoError(t, err)
	assert.Equal(t, []carbon.DOY{2008110, 2008130}, dates)
}

func TestReportPeriod_TooLong(t *testing.T) {
	_, err := carbon.YearPeriod(math.MinInt32, math.MaxInt32, 1).Dates()
	assert.ErrorIs(t, err, carbon.ErrInvalidPeriod)

	_, err = carbon.YearPeriod(0, 2010, 1).Dates()
	assert.ErrorIs(t, err, carbon.ErrInvalidPeriod)

	// 1-9999 daily is far beyond the record cap.
	_, err = carbon.DayPeriod(1000001, 9999001, 1).Dates()
	assert.ErrorIs(t, err, carbon.ErrInvalidPeriod)

	n, err := carbon.DayPeriod(1000001, 9999001, 365).Len()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, carbon.MaxReportDates)
}

func TestReport_Ensemble_ReportsSpread(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{Ensemble: carbon.NewEnsemble(100, 3)})
	records, err := carbon.NewReporter(cfg, col).Report(carbon.YearPeriod(2005, 2015, 5))
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, r := range records {
		assert.Greater(t, r.StockUC, 0.0)
	}
	// Forest mean is recovered within a few standard errors.
	assert.InDelta(t, 150*scale(cfg), records[0].Stock, 5*scale(cfg))
}

// =============================================================================
// EVAL SUM
// =============================================================================

func TestEvalSum_BurnedPoolEmitsOnStartDate(t *testing.T) {
	// GIVEN: pasture replaced by cropland in 2006
	// WHEN: evaluating on the removal date and a year later
	// THEN: the full residual is emitted on the removal date and stays emitted

	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{
		seg(pasture, 2001001, 2005365),
		seg(cropland, 2006001, 2015365),
	}, carbon.PixelOptions{})
	require.NoError(t, err)

	residual := col.Pool(1).Initial[0]
	rep := carbon.NewReporter(cfg, col)

	on := rep.EvalSum(2006001)
	assert.InDelta(t, residual, on.Emission, 1e-9)

	later := rep.EvalSum(2007001)
	assert.InDelta(t, residual, later.Emission, 1e-9)
}

func TestEvalSum_BeforeAnyPoolIsZero(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	r := carbon.NewReporter(cfg, col).EvalSum(1999001)
	assert.Equal(t, carbon.Record{Date: 1999001}, r)
}

func TestEvalSum_InvalidDateIsZero(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	r := carbon.NewReporter(cfg, col).EvalSum(2001400)
	assert.Equal(t, carbon.Record{Date: 2001400}, r)
}

func TestEvalSum_AtWindowEnd(t *testing.T) {
	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(pasture, 2001001, 2015365)}, carbon.PixelOptions{})
	require.NoError(t, err)

	p := col.Pool(0)
	r := carbon.NewReporter(cfg, col).EvalSum(2020001)
	assert.InDelta(t, p.Final[0], r.Stock, 1e-9)
	assert.InDelta(t, p.Initial[0]-p.Final[0], r.Productivity, 1e-9)
}

// =============================================================================
// INCREMENTS
// =============================================================================

func TestIncrements_SumToCumulative(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	rep := carbon.NewReporter(cfg, col)
	period := carbon.YearPeriod(2001, 2016, 1)

	cumulative, err := rep.Report(period)
	require.NoError(t, err)
	steps, err := rep.Increments(period)
	require.NoError(t, err)
	require.Len(t, steps, len(cumulative))

	var emission, productivity float64
	for i, s := range steps {
		emission += s.Emission
		productivity += s.Productivity
		assert.InDelta(t, cumulative[i].Stock, s.Stock, 1e-9, "stock stays instantaneous")
		assert.InDelta(t, s.Emission+s.Productivity, s.Net, 1e-9)
	}
	last := cumulative[len(cumulative)-1]
	assert.InDelta(t, last.Emission, emission, 1e-9)
	assert.InDelta(t, last.Productivity, productivity, 1e-9)
}

func TestIncrements_EmptyCollection(t *testing.T) {
	_, err := carbon.NewReporter(carbon.DefaultConfig(), nil).Increments(carbon.YearPeriod(2001, 2002, 1))
	assert.ErrorIs(t, err, carbon.ErrEmptyInput)
}

// =============================================================================
// PER-POOL SERIES
// =============================================================================

func TestEvalPools_NoDataOutsidePools(t *testing.T) {
	cfg, col := deforestedPixel(t, carbon.PixelOptions{})
	rep := carbon.NewReporter(cfg, col)

	biomass, flux := rep.EvalPools(2005001)
	require.Len(t, biomass, col.Len())
	assert.InDelta(t, 150*scale(cfg), biomass[0], 1e-9)
	assert.InDelta(t, 0, flux[0], 1e-9)
	for i := 1; i < col.Len(); i++ {
		assert.Equal(t, float64(carbon.NoData), biomass[i])
		assert.Equal(t, float64(carbon.NoData), flux[i])
	}

	biomass, _ = rep.EvalPools(2012001)
	assert.Equal(t, float64(carbon.NoData), biomass[0], "forest pool closed")
	assert.NotEqual(t, float64(carbon.NoData), biomass[3])
}

func TestRecord_DailySeries(t *testing.T) {
	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(forest, 2019001, 2019365)}, carbon.PixelOptions{})
	require.NoError(t, err)

	s := carbon.NewReporter(cfg, col).Record()
	days := int(ord(2020001)-ord(2019001)) + 1
	assert.Len(t, s.Dates, days)
	assert.Len(t, s.Biomass, days)
	assert.Equal(t, []carbon.Subpool{carbon.SubpoolAbove}, s.Labels)
	assert.Equal(t, carbon.DOY(2019001), s.Dates[0])
	assert.Equal(t, carbon.DOY(2020001), s.Dates[days-1])
}

func TestRecord_Metric(t *testing.T) {
	r := carbon.Record{Stock: 1, Emission: 2, Productivity: -3, Net: -1, Unreleased: 4}
	for name, want := range map[string]float64{
		"above": 1, "stock": 1, "emission": 2, "productivity": -3, "net": -1, "unreleased": 4,
	} {
		got, err := r.Metric(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := r.Metric("carbon")
	assert.Error(t, err)
}
