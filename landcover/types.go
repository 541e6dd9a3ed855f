// Package landcover holds the land-cover class scheme and preset parameter
// sets used with the carbon engine.
package landcover

import (
	"fmt"
	"strings"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// CLASS SCHEME
// =============================================================================

// Class ids of the tropical forest change scheme. Forest and secondary forest
// are the forest-like classes of the default config.
const (
	Unclassified carbon.ClassID = 0
	Forest       carbon.ClassID = 1
	Grassland    carbon.ClassID = 2
	Pasture      carbon.ClassID = 3
	Cropland     carbon.ClassID = 4
	Secondary    carbon.ClassID = 5
	Water        carbon.ClassID = 6
	Urban        carbon.ClassID = 7
)

var classNames = map[carbon.ClassID]string{
	Unclassified: "unclassified",
	Forest:       "forest",
	Grassland:    "grassland",
	Pasture:      "pasture",
	Cropland:     "cropland",
	Secondary:    "secondary",
	Water:        "water",
	Urban:        "urban",
}

// Name returns the class name, or the numeric id for classes outside the
// scheme.
func Name(c carbon.ClassID) string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("class-%d", c)
}

// ParseClass resolves a class name.
func ParseClass(name string) (carbon.ClassID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range classNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown land-cover class %q", name)
}

// Classes lists the scheme's class ids in ascending order, unclassified
// excluded.
func Classes() []carbon.ClassID {
	return []carbon.ClassID{Forest, Grassland, Pasture, Cropland, Secondary, Water, Urban}
}

// =============================================================================
// PRESET CONFIGS
// =============================================================================

// LandsatConfig is the default config over a custom window.
func LandsatConfig(start, end carbon.DOY) carbon.Config {
	cfg := carbon.DefaultConfig()
	cfg.ForceStart = start
	cfg.ForceEnd = end
	return cfg
}

// RegionalConfig is the config for activity-data bookkeeping: forest and
// secondary forest count as one cover and regrowth starts from zero biomass.
func RegionalConfig() carbon.Config {
	cfg := carbon.DefaultConfig()
	cfg.Equivalent = [][]carbon.ClassID{{Forest, Secondary}}
	cfg.RegrowClasses = []carbon.ClassID{Secondary}
	return cfg
}
