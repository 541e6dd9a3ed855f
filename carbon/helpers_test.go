package carbon_test

import (
	"testing"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	forest    carbon.ClassID = 1
	pasture   carbon.ClassID = 3
	cropland  carbon.ClassID = 4
	secondary carbon.ClassID = 5
)

func ord(d int) carbon.Ordinal {
	return carbon.MustOrdinal(carbon.DOY(d))
}

func decay(t *testing.T, name string, c0, c1 float64) carbon.Decay {
	t.Helper()
	d, err := carbon.NewDecay(name, c0, c1)
	if err != nil {
		t.Fatalf("decay %q: %v", name, err)
	}
	return d
}

// testParams: forest keeps its biomass, pasture and cropland grow slowly,
// secondary forest regrows logarithmically. Products follow the classic
// durable/fuel split.
func testParams(t *testing.T) *carbon.Params {
	t.Helper()
	p, err := carbon.NewParams(
		[]carbon.BiomassEntry{
			{Class: forest, Mean: 150, Uncertainty: 30},
			{Class: pasture, Mean: 10, Uncertainty: 2},
			{Class: cropland, Mean: 5, Uncertainty: 1},
			{Class: secondary, Mean: 60, Uncertainty: 12},
		},
		[]carbon.FluxEntry{
			{Class: forest, Decay: decay(t, "none", 0, 0)},
			{Class: pasture, Decay: decay(t, "const", 1, 0)},
			{Class: cropland, Decay: decay(t, "none", 0, 0)},
			{Class: secondary, Decay: decay(t, "log", 20, 0)},
		},
		[]carbon.Product{
			{Name: carbon.SubpoolDurable, Fraction: 0.6, Decay: decay(t, "const", -5, 0)},
			{Name: carbon.SubpoolFuel, Fraction: 0.4, Decay: decay(t, "none", 0, 0)},
		},
	)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	return p
}

func burnParams(t *testing.T) *carbon.Params {
	t.Helper()
	p, err := carbon.NewParams(
		[]carbon.BiomassEntry{
			{Class: forest, Mean: 150, Uncertainty: 30},
			{Class: pasture, Mean: 10, Uncertainty: 2},
		},
		[]carbon.FluxEntry{
			{Class: forest, Decay: decay(t, "none", 0, 0)},
			{Class: pasture, Decay: decay(t, "none", 0, 0)},
		},
		[]carbon.Product{
			{Name: carbon.SubpoolPulp, Fraction: 0.5, Decay: decay(t, "logdc", 0.5, 0)},
			{Name: carbon.SubpoolBurned, Fraction: 0.3, Decay: decay(t, "none", 0, 0)},
			{Name: carbon.SubpoolDurable, Fraction: 0, Decay: decay(t, "none", 0, 0)},
		},
	)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	return p
}

func seg(class carbon.ClassID, start, end int) carbon.Segment {
	return carbon.Segment{Class: class, Start: ord(start), End: ord(end), PX: 7, PY: 11}
}

func scale(cfg carbon.Config) float64 { return cfg.Scale(cfg.PixelArea) }
