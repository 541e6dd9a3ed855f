package carbon

import (
	"fmt"
	"sort"
)

// =============================================================================
// PARAMETER TABLES - Read-only inputs keyed by land-cover class
// =============================================================================

// ClassID identifies a land-cover class.
type ClassID uint16

// BiomassEntry is the mean biomass density of a class and its uncertainty
// (95% confidence half-width, same unit as Mean).
type BiomassEntry struct {
	Class       ClassID
	Mean        float64
	Uncertainty float64
}

// FluxEntry is the decay function applied to a class's standing biomass.
type FluxEntry struct {
	Class ClassID
	Decay Decay
}

// Product is one destination of deforested biomass. Fractions across the
// table need not sum to 1; the remainder is not tracked.
type Product struct {
	Name     Subpool
	Fraction float64
	Decay    Decay
}

// Burned reports whether the product is immediate combustion.
func (p Product) Burned() bool { return p.Name == SubpoolBurned }

// Params bundles the three parameter tables.
type Params struct {
	biomass  map[ClassID]BiomassEntry
	flux     map[ClassID]FluxEntry
	products []Product
}

// NewParams indexes the tables. Duplicate class rows are rejected.
func NewParams(biomass []BiomassEntry, flux []FluxEntry, products []Product) (*Params, error) {
	p := &Params{
		biomass:  make(map[ClassID]BiomassEntry, len(biomass)),
		flux:     make(map[ClassID]FluxEntry, len(flux)),
		products: append([]Product(nil), products...),
	}
	for _, b := range biomass {
		if _, dup := p.biomass[b.Class]; dup {
			return nil, fmt.Errorf("duplicate biomass row for class %d", b.Class)
		}
		p.biomass[b.Class] = b
	}
	for _, f := range flux {
		if _, dup := p.flux[f.Class]; dup {
			return nil, fmt.Errorf("duplicate flux row for class %d", f.Class)
		}
		p.flux[f.Class] = f
	}
	return p, nil
}

// Biomass returns the class mean and uncertainty multiplied by scale.
func (p *Params) Biomass(class ClassID, scale float64) (mean, uncertainty float64, err error) {
	b, ok := p.biomass[class]
	if !ok {
		return 0, 0, &LookupError{Table: "biomass", Class: class}
	}
	return b.Mean * scale, b.Uncertainty * scale, nil
}

// Flux returns the decay function of a class.
func (p *Params) Flux(class ClassID) (Decay, error) {
	f, ok := p.flux[class]
	if !ok {
		return Decay{}, &LookupError{Table: "flux", Class: class}
	}
	return f.Decay, nil
}

// Products returns the product allocation table in input order.
func (p *Params) Products() []Product {
	return append([]Product(nil), p.products...)
}

// FractionSum is the share of deforested biomass the table tracks.
func (p *Params) FractionSum() float64 {
	var s float64
	for _, x := range p.products {
		s += x.Fraction
	}
	return s
}

// Classes lists every class with a biomass row, ascending.
func (p *Params) Classes() []ClassID {
	out := make([]ClassID, 0, len(p.biomass))
	for c := range p.biomass {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BiomassRows and FluxRows return the tables, ascending by class.
func (p *Params) BiomassRows() []BiomassEntry {
	out := make([]BiomassEntry, 0, len(p.biomass))
	for _, c := range p.Classes() {
		out = append(out, p.biomass[c])
	}
	return out
}

func (p *Params) FluxRows() []FluxEntry {
	out := make([]FluxEntry, 0, len(p.flux))
	for _, f := range p.flux {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}
