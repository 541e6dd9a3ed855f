package factory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// ENGINE CONSTANTS - YAML overlay on carbon.DefaultConfig
// =============================================================================

// ConfigYAML mirrors carbon.Config. Absent keys keep their default.
//
//	carbon_fraction: 0.47
//	pixel_area: 0.09
//	forest_classes: [1, 5]
//	equivalent: [[1, 5]]
//	regrow_biomass: {value: 0, uncertainty: 0}
//	force_start: 2000001
//	force_end: 2020001
type ConfigYAML struct {
	CarbonFraction *float64      `yaml:"carbon_fraction,omitempty"`
	PixelArea      *float64      `yaml:"pixel_area,omitempty"`
	ForestClasses  []uint16      `yaml:"forest_classes,omitempty"`
	SEBClasses     []uint16      `yaml:"seb_classes,omitempty"`
	RegrowClasses  []uint16      `yaml:"regrow_classes,omitempty"`
	RegrowClass    *uint16       `yaml:"regrow_class,omitempty"`
	PrimaryClass   *uint16       `yaml:"primary_class,omitempty"`
	Unclassified   *uint16       `yaml:"unclassified,omitempty"`
	Equivalent     [][]uint16    `yaml:"equivalent,omitempty"`
	RegrowBiomass  *EstimateYAML `yaml:"regrow_biomass,omitempty"`
	ForestMin      *float64      `yaml:"forest_min,omitempty"`
	ForceStart     *int32        `yaml:"force_start,omitempty"`
	ForceEnd       *int32        `yaml:"force_end,omitempty"`
}

type EstimateYAML struct {
	Value       float64 `yaml:"value"`
	Uncertainty float64 `yaml:"uncertainty"`
}

// ParseConfig overlays a YAML document on the default constants and
// validates the result.
func ParseConfig(data []byte) (carbon.Config, error) {
	var cy ConfigYAML
	if err := yaml.Unmarshal(data, &cy); err != nil {
		return carbon.Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg := cy.Apply(carbon.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return carbon.Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file. An empty path yields the defaults.
func LoadConfig(path string) (carbon.Config, error) {
	if path == "" {
		return carbon.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return carbon.Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// Apply copies every set field onto cfg.
func (cy ConfigYAML) Apply(cfg carbon.Config) carbon.Config {
	if cy.CarbonFraction != nil {
		cfg.CarbonFraction = *cy.CarbonFraction
	}
	if cy.PixelArea != nil {
		cfg.PixelArea = *cy.PixelArea
	}
	if cy.ForestClasses != nil {
		cfg.ForestClasses = classes(cy.ForestClasses)
	}
	if cy.SEBClasses != nil {
		cfg.SEBClasses = classes(cy.SEBClasses)
	}
	if cy.RegrowClasses != nil {
		cfg.RegrowClasses = classes(cy.RegrowClasses)
	}
	if cy.RegrowClass != nil {
		cfg.RegrowClass = carbon.ClassID(*cy.RegrowClass)
	}
	if cy.PrimaryClass != nil {
		cfg.PrimaryClass = carbon.ClassID(*cy.PrimaryClass)
	}
	if cy.Unclassified != nil {
		cfg.Unclassified = carbon.ClassID(*cy.Unclassified)
	}
	if cy.Equivalent != nil {
		cfg.Equivalent = make([][]carbon.ClassID, 0, len(cy.Equivalent))
		for _, g := range cy.Equivalent {
			cfg.Equivalent = append(cfg.Equivalent, classes(g))
		}
	}
	if cy.RegrowBiomass != nil {
		cfg.RegrowBiomass = carbon.Estimate{Value: cy.RegrowBiomass.Value, Uncertainty: cy.RegrowBiomass.Uncertainty}
	}
	if cy.ForestMin != nil {
		cfg.ForestMin = *cy.ForestMin
	}
	if cy.ForceStart != nil {
		cfg.ForceStart = carbon.DOY(*cy.ForceStart)
	}
	if cy.ForceEnd != nil {
		cfg.ForceEnd = carbon.DOY(*cy.ForceEnd)
	}
	return cfg
}

// ConfigToYAML renders a full config, every field set.
func ConfigToYAML(cfg carbon.Config) ([]byte, error) {
	start, end := int32(cfg.ForceStart), int32(cfg.ForceEnd)
	regrow, primary, unclassified := uint16(cfg.RegrowClass), uint16(cfg.PrimaryClass), uint16(cfg.Unclassified)
	cy := ConfigYAML{
		CarbonFraction: &cfg.CarbonFraction,
		PixelArea:      &cfg.PixelArea,
		ForestClasses:  ids(cfg.ForestClasses),
		SEBClasses:     ids(cfg.SEBClasses),
		RegrowClasses:  ids(cfg.RegrowClasses),
		RegrowClass:    &regrow,
		PrimaryClass:   &primary,
		Unclassified:   &unclassified,
		RegrowBiomass:  &EstimateYAML{Value: cfg.RegrowBiomass.Value, Uncertainty: cfg.RegrowBiomass.Uncertainty},
		ForestMin:      &cfg.ForestMin,
		ForceStart:     &start,
		ForceEnd:       &end,
	}
	for _, g := range cfg.Equivalent {
		cy.Equivalent = append(cy.Equivalent, ids(g))
	}
	return yaml.Marshal(cy)
}

func classes(in []uint16) []carbon.ClassID {
	out := make([]carbon.ClassID, len(in))
	for i, c := range in {
		out[i] = carbon.ClassID(c)
	}
	return out
}

func ids(in []carbon.ClassID) []uint16 {
	out := make([]uint16, len(in))
	for i, c := range in {
		out[i] = uint16(c)
	}
	return out
}
