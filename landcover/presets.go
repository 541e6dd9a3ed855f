/*
presets.go - Preset parameter sets as JSON documents

PURPOSE:
  Ready-to-use parameter tables for common study areas. They are built as
  JSON strings and parsed by the factory like any file, so presets and files
  go through the same validation.

AVAILABLE PRESETS:
  AmazonParamsJSON:    Moist tropical forest, pasture dominated clearing
  ColombiaParamsJSON:  Andean-Amazon mix with cropland and a pulp product
  DryForestParamsJSON: Low biomass dry forest, fuel dominated clearing

USAGE:
  params, err := factory.ParseParams([]byte(landcover.AmazonParamsJSON()))

VALUES:
  Biomass means and 95% half-widths are dry aboveground biomass in Mg/ha.
  Regrowth follows a log curve: y = c0*ln(exp((y0-c1)/c0) + t) + c1.

SEE ALSO:
  - factory/params.go: the JSON schema
*/
package landcover

import (
	"encoding/json"
)

type row = map[string]interface{}

func encode(pj map[string]interface{}) string {
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// AmazonParamsJSON returns the moist tropical forest parameter set.
func AmazonParamsJSON() string {
	return encode(map[string]interface{}{
		"name": "amazon",
		"biomass": []row{
			{"class": Forest, "mean": 283.1, "uncertainty": 42.0},
			{"class": Grassland, "mean": 12.0, "uncertainty": 3.0},
			{"class": Pasture, "mean": 10.0, "uncertainty": 2.5},
			{"class": Cropland, "mean": 5.0, "uncertainty": 1.5},
			{"class": Secondary, "mean": 90.0, "uncertainty": 25.0},
			{"class": Water, "mean": 0.0},
			{"class": Urban, "mean": 0.0},
		},
		"flux": []row{
			{"class": Forest, "function": "none"},
			{"class": Grassland, "function": "none"},
			{"class": Pasture, "function": "none"},
			{"class": Cropland, "function": "none"},
			{"class": Secondary, "function": "log", "coef": []float64{22.4, 0}},
			{"class": Water, "function": "none"},
			{"class": Urban, "function": "none"},
		},
		"products": []row{
			{"name": "burned", "fraction": 0.45, "function": "none"},
			{"name": "fuel", "fraction": 0.3, "function": "logdc", "coef": []float64{0.5}},
			{"name": "durable", "fraction": 0.1, "function": "logdc", "coef": []float64{0.02}},
			{"name": "pulp", "fraction": 0.15, "function": "linear", "coef": []float64{0.2}},
		},
	})
}

// ColombiaParamsJSON returns the Andean-Amazon parameter set.
func ColombiaParamsJSON() string {
	return encode(map[string]interface{}{
		"name": "colombia",
		"biomass": []row{
			{"class": Forest, "mean": 215.0, "uncertainty": 38.0},
			{"class": Grassland, "mean": 9.0, "uncertainty": 2.0},
			{"class": Pasture, "mean": 8.0, "uncertainty": 2.0},
			{"class": Cropland, "mean": 6.5, "uncertainty": 1.8},
			{"class": Secondary, "mean": 65.0, "uncertainty": 20.0},
			{"class": Water, "mean": 0.0},
			{"class": Urban, "mean": 0.0},
		},
		"flux": []row{
			{"class": Forest, "function": "none"},
			{"class": Grassland, "function": "const", "coef": []float64{0.5}},
			{"class": Pasture, "function": "none"},
			{"class": Cropland, "function": "none"},
			{"class": Secondary, "function": "log", "coef": []float64{18.0, 0}},
			{"class": Water, "function": "none"},
			{"class": Urban, "function": "none"},
		},
		"products": []row{
			{"name": "burned", "fraction": 0.5, "function": "none"},
			{"name": "fuel", "fraction": 0.2, "function": "logdc", "coef": []float64{0.5}},
			{"name": "durable", "fraction": 0.15, "function": "logdc", "coef": []float64{0.03}},
			{"name": "pulp", "fraction": 0.15, "function": "logdc", "coef": []float64{0.35}},
		},
	})
}

// DryForestParamsJSON returns a low-biomass dry forest parameter set.
func DryForestParamsJSON() string {
	return encode(map[string]interface{}{
		"name": "dry-forest",
		"biomass": []row{
			{"class": Forest, "mean": 98.0, "uncertainty": 21.0},
			{"class": Grassland, "mean": 6.0, "uncertainty": 2.0},
			{"class": Pasture, "mean": 5.0, "uncertainty": 1.5},
			{"class": Cropland, "mean": 4.0, "uncertainty": 1.0},
			{"class": Secondary, "mean": 35.0, "uncertainty": 10.0},
		},
		"flux": []row{
			{"class": Forest, "function": "none"},
			{"class": Grassland, "function": "none"},
			{"class": Pasture, "function": "none"},
			{"class": Cropland, "function": "none"},
			{"class": Secondary, "function": "log", "coef": []float64{12.0, 0}},
		},
		"products": []row{
			{"name": "burned", "fraction": 0.3, "function": "none"},
			{"name": "fuel", "fraction": 0.6, "function": "logdc", "coef": []float64{0.8}},
			{"name": "durable", "fraction": 0.1, "function": "dual", "coef": []float64{-2, 30}},
		},
	})
}

// Presets maps preset names to their JSON builders.
var Presets = map[string]func() string{
	"amazon":     AmazonParamsJSON,
	"colombia":   ColombiaParamsJSON,
	"dry-forest": DryForestParamsJSON,
}
