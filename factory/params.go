/*
Package factory converts external table formats into engine inputs.

PURPOSE:
  Parameter tables, engine constants, pixel segments and regional activity
  data live in files maintained by analysts. The factory turns them into
  carbon.Params, carbon.Config, []carbon.Segment and []carbon.ActivityPeriod,
  rejecting anything the engine would otherwise have to guess about (unknown
  decay names, duplicate class rows, malformed dates).

PARAMETER SCHEMA (JSON or YAML):
  {
    "name": "amazon",
    "biomass": [
      {"class": 1, "mean": 150, "uncertainty": 30}
    ],
    "flux": [
      {"class": 1, "function": "none"},
      {"class": 5, "function": "log", "coef": [20, 0]}
    ],
    "products": [
      {"name": "durable", "fraction": 0.6, "function": "const", "coef": [-5, 0]},
      {"name": "burned",  "fraction": 0.3, "function": "none"}
    ]
  }

  A directory holding biomass.csv, flux.csv and product.csv is accepted too
  (see tables.go).

USAGE:
  params, err := factory.LoadParams("./parameters/amazon.json")

  // From a domain preset
  params, err := factory.ParseParams([]byte(landcover.AmazonParamsJSON()))

SEE ALSO:
  - config.go: YAML engine constants
  - tables.go: CSV inputs
  - report.go: CSV report output
  - landcover/presets.go: preset parameter sets
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// ParamsJSON is the file representation of the three parameter tables.
type ParamsJSON struct {
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	Biomass  []BiomassJSON `json:"biomass" yaml:"biomass"`
	Flux     []FluxJSON    `json:"flux" yaml:"flux"`
	Products []ProductJSON `json:"products" yaml:"products"`
}

type BiomassJSON struct {
	Class       uint16  `json:"class" yaml:"class"`
	Mean        float64 `json:"mean" yaml:"mean"`
	Uncertainty float64 `json:"uncertainty,omitempty" yaml:"uncertainty,omitempty"`
}

type FluxJSON struct {
	Class    uint16    `json:"class" yaml:"class"`
	Function string    `json:"function" yaml:"function"`
	Coef     []float64 `json:"coef,omitempty" yaml:"coef,omitempty"`
}

type ProductJSON struct {
	Name     string    `json:"name" yaml:"name"`
	Fraction float64   `json:"fraction" yaml:"fraction"`
	Function string    `json:"function" yaml:"function"`
	Coef     []float64 `json:"coef,omitempty" yaml:"coef,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseParams parses a JSON parameter document.
func ParseParams(data []byte) (*carbon.Params, error) {
	var pj ParamsJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse parameter JSON: %w", err)
	}
	return FromJSON(pj)
}

// ParseParamsYAML parses a YAML parameter document.
func ParseParamsYAML(data []byte) (*carbon.Params, error) {
	var pj ParamsJSON
	if err := yaml.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse parameter YAML: %w", err)
	}
	return FromJSON(pj)
}

// LoadParams reads parameters from a .json/.yaml file or a CSV directory.
func LoadParams(path string) (*carbon.Params, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}
	if info.IsDir() {
		return ReadParamsDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseParamsYAML(data)
	default:
		return ParseParams(data)
	}
}

// FromJSON validates the schema and builds carbon.Params.
func FromJSON(pj ParamsJSON) (*carbon.Params, error) {
	if len(pj.Biomass) == 0 {
		return nil, fmt.Errorf("%w: biomass table is empty", carbon.ErrInvalidConfig)
	}

	biomass := make([]carbon.BiomassEntry, 0, len(pj.Biomass))
	for _, b := range pj.Biomass {
		if b.Mean < 0 || b.Uncertainty < 0 {
			return nil, fmt.Errorf("%w: negative biomass for class %d", carbon.ErrInvalidConfig, b.Class)
		}
		biomass = append(biomass, carbon.BiomassEntry{
			Class:       carbon.ClassID(b.Class),
			Mean:        b.Mean,
			Uncertainty: b.Uncertainty,
		})
	}

	flux := make([]carbon.FluxEntry, 0, len(pj.Flux))
	for _, f := range pj.Flux {
		d, err := newDecay(f.Function, f.Coef)
		if err != nil {
			return nil, fmt.Errorf("flux class %d: %w", f.Class, err)
		}
		flux = append(flux, carbon.FluxEntry{Class: carbon.ClassID(f.Class), Decay: d})
	}

	products := make([]carbon.Product, 0, len(pj.Products))
	var total float64
	for _, p := range pj.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: product without a name", carbon.ErrInvalidConfig)
		}
		if p.Fraction < 0 {
			return nil, fmt.Errorf("%w: negative fraction for product %s", carbon.ErrInvalidConfig, p.Name)
		}
		d, err := newDecay(p.Function, p.Coef)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Name, err)
		}
		total += p.Fraction
		products = append(products, carbon.Product{
			Name:     carbon.Subpool(p.Name),
			Fraction: p.Fraction,
			Decay:    d,
		})
	}
	// Allow for rounding in hand-edited tables.
	if total > 1+1e-6 {
		return nil, fmt.Errorf("%w: product fractions sum to %.4f", carbon.ErrInvalidConfig, total)
	}

	params, err := carbon.NewParams(biomass, flux, products)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carbon.ErrInvalidConfig, err)
	}
	return params, nil
}

// ToJSON converts carbon.Params back to the file schema.
func ToJSON(name string, p *carbon.Params) ParamsJSON {
	pj := ParamsJSON{Name: name}
	for _, b := range p.BiomassRows() {
		pj.Biomass = append(pj.Biomass, BiomassJSON{
			Class:       uint16(b.Class),
			Mean:        b.Mean,
			Uncertainty: b.Uncertainty,
		})
	}
	for _, f := range p.FluxRows() {
		pj.Flux = append(pj.Flux, FluxJSON{
			Class:    uint16(f.Class),
			Function: string(f.Decay.Kind),
			Coef:     coefs(f.Decay),
		})
	}
	for _, x := range p.Products() {
		pj.Products = append(pj.Products, ProductJSON{
			Name:     string(x.Name),
			Fraction: x.Fraction,
			Function: string(x.Decay.Kind),
			Coef:     coefs(x.Decay),
		})
	}
	return pj
}

// newDecay builds a decay from a name and up to two coefficients; missing
// coefficients are zero.
func newDecay(name string, coef []float64) (carbon.Decay, error) {
	if len(coef) > 2 {
		return carbon.Decay{}, fmt.Errorf("%w: %s takes at most 2 coefficients, got %d", carbon.ErrInvalidConfig, name, len(coef))
	}
	var c [2]float64
	copy(c[:], coef)
	return carbon.NewDecay(name, c[0], c[1])
}

func coefs(d carbon.Decay) []float64 {
	if n := d.Kind.Arity(); n > 0 {
		return append([]float64(nil), d.Coef[:n]...)
	}
	return nil
}
