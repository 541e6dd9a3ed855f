package carbon

import (
	"fmt"
	"slices"
)

// =============================================================================
// CONFIG - Process constants made explicit
// =============================================================================

// Estimate is a biomass density with its 95% confidence half-width.
type Estimate struct {
	Value       float64
	Uncertainty float64
}

// Config holds the constants of a bookkeeping run. It is passed by value and
// never mutated by the engine.
type Config struct {
	// CarbonFraction converts dry biomass into carbon.
	CarbonFraction float64
	// PixelArea is the default area of one pixel (ha).
	PixelArea float64

	// ForestClasses are deforested when left; everything else is removed.
	ForestClasses []ClassID
	// SEBClasses may start from a spatially explicit biomass estimate.
	SEBClasses []ClassID
	// RegrowClasses reset to RegrowBiomass when entered from non-forest.
	RegrowClasses []ClassID
	// RegrowClass replaces unclassified gaps leading into forest, and is the
	// secondary-vegetation class of regional bookkeeping.
	RegrowClass ClassID
	// PrimaryClass is the forest class cleared in regional bookkeeping.
	PrimaryClass ClassID
	// Unclassified is the class id the classifier emits for unknown cover.
	Unclassified ClassID
	// Equivalent groups classes that count as the same cover.
	Equivalent [][]ClassID

	RegrowBiomass Estimate
	// ForestMin is the smallest spatially explicit density accepted as forest.
	ForestMin float64

	// ForceStart and ForceEnd bound the analysis window.
	ForceStart DOY
	ForceEnd   DOY
}

// DefaultConfig returns the constants of a 30m Landsat run over 2000-2020.
func DefaultConfig() Config {
	return Config{
		CarbonFraction: 0.47,
		PixelArea:      30 * 30 / 100.0 / 100.0,
		ForestClasses:  []ClassID{1, 5},
		SEBClasses:     []ClassID{1, 5},
		RegrowClasses:  []ClassID{1, 5},
		RegrowClass:    5,
		PrimaryClass:   1,
		Unclassified:   0,
		RegrowBiomass:  Estimate{Value: 0, Uncertainty: 0},
		ForestMin:      35,
		ForceStart:     2000001,
		ForceEnd:       2020001,
	}
}

// Validate checks the window and the scaling constants.
func (c Config) Validate() error {
	if c.CarbonFraction <= 0 {
		return fmt.Errorf("%w: carbon fraction must be positive", ErrInvalidConfig)
	}
	if c.PixelArea <= 0 {
		return fmt.Errorf("%w: pixel area must be positive", ErrInvalidConfig)
	}
	if !c.ForceStart.Valid() || !c.ForceEnd.Valid() {
		return fmt.Errorf("%w: window %d-%d", ErrInvalidConfig, c.ForceStart, c.ForceEnd)
	}
	if c.ForceEnd < c.ForceStart {
		return fmt.Errorf("%w: window ends before it starts", ErrInvalidConfig)
	}
	return nil
}

// Window returns the analysis window in ordinal days.
func (c Config) Window() (start, end Ordinal) {
	return MustOrdinal(c.ForceStart), MustOrdinal(c.ForceEnd)
}

// Scale is the density-to-mass factor for an area.
func (c Config) Scale(area float64) float64 { return c.CarbonFraction * area }

func (c Config) IsForest(class ClassID) bool { return slices.Contains(c.ForestClasses, class) }
func (c Config) IsRegrow(class ClassID) bool { return slices.Contains(c.RegrowClasses, class) }
func (c Config) AllowsSEB(class ClassID) bool { return slices.Contains(c.SEBClasses, class) }

// SameCover reports whether a and b are the same class or declared equivalent.
func (c Config) SameCover(a, b ClassID) bool {
	if a == b {
		return true
	}
	for _, group := range c.Equivalent {
		if slices.Contains(group, a) && slices.Contains(group, b) {
			return true
		}
	}
	return false
}
