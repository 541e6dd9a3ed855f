package carbon_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// WINDOWING
// =============================================================================

func TestBookPixel_SingleSegment_OnePoolCoveringWindow(t *testing.T) {
	// GIVEN: one forest segment that ends long before the window end
	// WHEN: booking the pixel
	// THEN: a single pool stretched to the forced window end

	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(forest, 2001001, 2010365)}, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, col.Len())

	p := col.Pool(0)
	assert.Equal(t, carbon.PoolBiomass, p.Type)
	assert.Equal(t, carbon.SubpoolAbove, p.Subpool)
	assert.Equal(t, ord(2001001), p.Start)
	assert.Equal(t, ord(2020001), p.End)
	assert.InDelta(t, 150*scale(cfg), p.Initial[0], 1e-12)
	assert.Equal(t, int32(7), p.PX)
	assert.Equal(t, int32(11), p.PY)
}

func TestBookPixel_ClipsFirstSegmentToWindowStart(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(pasture, 1985001, 1990001), // dropped, ends before the window
		seg(forest, 1995001, 2020300),  // clipped at both ends
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, col.Len())
	assert.Equal(t, ord(2000001), col.Pool(0).Start)
	assert.Equal(t, ord(2020001), col.Pool(0).End)
}

func TestBookPixel_NoSegmentsInWindow_EmptyCollection(t *testing.T) {
	// GIVEN: segments entirely before the analysis window
	// THEN: an empty collection, not an error

	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(forest, 1985001, 1999300)}, carbon.PixelOptions{})
	require.NoError(t, err)
	assert.True(t, col.Empty())

	_, err = carbon.NewReporter(cfg, col).Report(carbon.YearPeriod(2001, 2015, 1))
	assert.ErrorIs(t, err, carbon.ErrEmptyInput)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestBookPixel_Deforestation_SpawnsProductPools(t *testing.T) {
	// GIVEN: forest until 2010, pasture from 2011
	// WHEN: booking the pixel
	// THEN: forest pool closed at the transition, one pool per product
	//       fraction opened on the transition date, then a pasture pool

	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(forest, 2001001, 2010365),
		seg(pasture, 2011001, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, col.Len())

	pools := col.Pools()
	forestPool := pools[0]
	assert.Equal(t, forest, forestPool.Class)
	assert.Equal(t, ord(2010365), forestPool.End)
	closing := forestPool.Final[0]

	for i, frac := range []float64{0.6, 0.4} {
		p := pools[i+1]
		assert.Equal(t, carbon.PoolProduct, p.Type)
		assert.Equal(t, ord(2011001), p.Start)
		assert.Equal(t, ord(2020001), p.End)
		assert.InDelta(t, closing*frac, p.Initial[0], 1e-12)
	}
	assert.Equal(t, carbon.SubpoolDurable, pools[1].Subpool)
	assert.Equal(t, carbon.SubpoolFuel, pools[2].Subpool)

	assert.Equal(t, pasture, pools[3].Class)
	assert.Equal(t, carbon.PoolBiomass, pools[3].Type)
	assert.InDelta(t, 10*scale(cfg), pools[3].Initial[0], 1e-12)
	assert.Equal(t, 2, col.Count(carbon.PoolBiomass))

	for i, p := range pools {
		assert.Equal(t, i, p.ID, "ids are dense in creation order")
	}
}

func TestBookPixel_Deforestation_ConservesClosingBiomass(t *testing.T) {
	cfg := carbon.DefaultConfig()
	params := burnParams(t)
	segs := []carbon.Segment{
		seg(forest, 2001001, 2006100),
		seg(pasture, 2006150, 2012001),
	}
	col, err := carbon.BookPixel(cfg, params, segs, carbon.PixelOptions{})
	require.NoError(t, err)

	pools := col.Pools()
	closing := pools[0].Final[0]
	var spawned float64
	for _, p := range pools {
		if p.Type != carbon.PoolBiomass {
			spawned += p.Initial[0]
		}
	}
	assert.InDelta(t, closing*params.FractionSum(), spawned, 1e-9)
	// The zero-fraction durable entry spawns nothing.
	assert.Equal(t, 4, col.Len())
}

func TestBookPixel_BurnedFraction_TaggedAsBurned(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(forest, 2001001, 2006100),
		seg(pasture, 2006150, 2012001),
	}
	col, err := carbon.BookPixel(cfg, burnParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)

	pools := col.Pools()
	assert.Equal(t, carbon.PoolProduct, pools[1].Type)
	assert.Equal(t, carbon.PoolBurned, pools[2].Type)
	assert.Equal(t, carbon.SubpoolBurned, pools[2].Subpool)
}

func TestBookPixel_UsesBreakDateForTransition(t *testing.T) {
	cfg := carbon.DefaultConfig()
	forestSeg := seg(forest, 2001001, 2010100)
	forestSeg.Break = ord(2010200)
	segs := []carbon.Segment{forestSeg, seg(pasture, 2010300, 2015365)}

	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)

	pools := col.Pools()
	// Gap closed up to the day before the next segment.
	assert.Equal(t, ord(2010300)-1, pools[0].End)
	assert.Equal(t, ord(2010200), pools[1].Start)
	assert.Equal(t, ord(2010200), pools[2].Start)
}

func TestBookPixel_NonForestTransition_Removal(t *testing.T) {
	// GIVEN: pasture followed by cropland
	// THEN: the pasture residual is released in one burned pool

	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(pasture, 2001001, 2005365),
		seg(cropland, 2006001, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, col.Len())

	pools := col.Pools()
	removal := pools[1]
	assert.Equal(t, carbon.PoolBurned, removal.Type)
	assert.Equal(t, carbon.DecayReleased, removal.Decay.Kind)
	assert.InDelta(t, pools[0].Final[0], removal.Initial[0], 1e-12)
	assert.Equal(t, 0.0, removal.Final[0])
	assert.Equal(t, ord(2006001), removal.Start)
	assert.Equal(t, cropland, pools[2].Class)
}

func TestBookPixel_Regrowth_StartsFromRegrowBiomass(t *testing.T) {
	cfg := carbon.DefaultConfig()
	cfg.RegrowBiomass = carbon.Estimate{Value: 2}
	segs := []carbon.Segment{
		seg(pasture, 2001001, 2005365),
		seg(secondary, 2006001, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, col.Len())

	regrow := col.Pool(2)
	assert.Equal(t, secondary, regrow.Class)
	assert.InDelta(t, 2*scale(cfg), regrow.Initial[0], 1e-12)
	assert.Greater(t, regrow.Final[0], regrow.Initial[0], "log growth gains biomass")
}

func TestBookPixel_ForestToSecondary_IsDeforestationNotRegrowth(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(forest, 2001001, 2005365),
		seg(secondary, 2006001, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, col.Len())
	assert.InDelta(t, 60*scale(cfg), col.Pool(3).Initial[0], 1e-12, "class mean, not regrow constant")
}

func TestBookPixel_SameClassExtendsMainPool(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(forest, 2001001, 2005365),
		seg(forest, 2006001, 2010365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, col.Len())
	assert.Equal(t, ord(2020001), col.Pool(0).End)
}

func TestBookPixel_EquivalentClassesExtendMainPool(t *testing.T) {
	cfg := carbon.DefaultConfig()
	cfg.Equivalent = [][]carbon.ClassID{{forest, secondary}}
	segs := []carbon.Segment{
		seg(forest, 2001001, 2005365),
		seg(secondary, 2006001, 2010365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, col.Len())
	assert.Equal(t, forest, col.Pool(0).Class)
}

func TestBookPixel_UnclassifiedBeforeForest_BecomesRegrowth(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(pasture, 2001001, 2004365),
		seg(0, 2005001, 2006365),
		seg(forest, 2007001, 2015365),
	}
	out := carbon.Preprocess(cfg, segs)
	require.Len(t, out, 3)
	assert.Equal(t, cfg.RegrowClass, out[1].Class)
	assert.Equal(t, carbon.ClassID(0), segs[1].Class, "input untouched")
}

func TestBookPixel_UnclassifiedInsideForest_KeepsForest(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(forest, 2001001, 2004365),
		seg(0, 2005001, 2005200),
		seg(forest, 2005300, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, col.Len())
}

// =============================================================================
// INITIAL BIOMASS
// =============================================================================

func TestBookPixel_SpatiallyExplicitBiomass(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{seg(forest, 2001001, 2015365)}

	// Above the forest threshold: used.
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{
		SEBiomass: &carbon.Estimate{Value: 210, Uncertainty: 20},
	})
	require.NoError(t, err)
	assert.InDelta(t, 210*scale(cfg), col.Pool(0).Initial[0], 1e-12)

	// Below the threshold: class mean.
	col, err = carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{
		SEBiomass: &carbon.Estimate{Value: 20},
	})
	require.NoError(t, err)
	assert.InDelta(t, 150*scale(cfg), col.Pool(0).Initial[0], 1e-12)
}

func TestBookPixel_SpatiallyExplicitBiomass_IgnoredForDisallowedClass(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{seg(pasture, 2001001, 2015365)}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{
		SEBiomass: &carbon.Estimate{Value: 210},
	})
	require.NoError(t, err)
	assert.InDelta(t, 10*scale(cfg), col.Pool(0).Initial[0], 1e-12)
}

func TestBookPixel_PixelAreaOverride(t *testing.T) {
	cfg := carbon.DefaultConfig()
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(forest, 2001001, 2015365)},
		carbon.PixelOptions{Area: 1})
	require.NoError(t, err)
	assert.InDelta(t, 150*cfg.CarbonFraction, col.Pool(0).Initial[0], 1e-12)
	assert.Equal(t, 1.0, col.Pool(0).Area)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestBookPixel_UnknownClass_LookupError(t *testing.T) {
	cfg := carbon.DefaultConfig()
	segs := []carbon.Segment{
		seg(forest, 2001001, 2005365),
		seg(9, 2006001, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{})
	require.Error(t, err)
	assert.Nil(t, col, "no partial collection")
	assert.ErrorIs(t, err, carbon.ErrClassNotFound)

	var le *carbon.LookupError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, carbon.ClassID(9), le.Class)

	var ue *carbon.UnitError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, int32(7), ue.PX)
}

func TestBookPixel_InvalidConfig(t *testing.T) {
	cfg := carbon.DefaultConfig()
	cfg.CarbonFraction = 0
	_, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(forest, 2001001, 2015365)}, carbon.PixelOptions{})
	assert.ErrorIs(t, err, carbon.ErrInvalidConfig)
}

// =============================================================================
// MONTE-CARLO
// =============================================================================

func TestBookPixel_Ensemble_WidthFollowsZScores(t *testing.T) {
	cfg := carbon.DefaultConfig()
	z := carbon.NewEnsemble(200, 7)
	segs := []carbon.Segment{
		seg(forest, 2001001, 2010365),
		seg(pasture, 2011001, 2015365),
	}
	col, err := carbon.BookPixel(cfg, testParams(t), segs, carbon.PixelOptions{Ensemble: z})
	require.NoError(t, err)
	assert.Equal(t, 200, col.Width())

	pools := col.Pools()
	for _, p := range pools {
		require.Len(t, p.Initial, 200)
		require.Len(t, p.Final, 200)
	}
	// Members are drawn from the forest mean and spread.
	assert.InDelta(t, 150*scale(cfg), carbon.Mean(pools[0].Initial), 5*scale(cfg))
	// Products split each member's closing biomass.
	for k := range pools[1].Initial {
		assert.InDelta(t, pools[0].Final[k]*0.6, pools[1].Initial[k], 1e-12)
	}
}

func TestBookPixel_Ensemble_ZeroUncertaintyCollapsesToMean(t *testing.T) {
	cfg := carbon.DefaultConfig()
	z := carbon.NewEnsemble(50, 1)
	col, err := carbon.BookPixel(cfg, testParams(t), []carbon.Segment{seg(forest, 2001001, 2015365)}, carbon.PixelOptions{
		SEBiomass: &carbon.Estimate{Value: 100, Uncertainty: 0},
		Ensemble:  z,
	})
	require.NoError(t, err)
	for _, v := range col.Pool(0).Initial {
		assert.InDelta(t, 100*scale(cfg), v, 1e-12)
	}
}
