package carbon

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// =============================================================================
// REGIONAL ACTIVITY DATA - Transition areas per period
// =============================================================================

// Transition is one of the land-cover changes reported by regional
// activity data.
type Transition int

const (
	TransitionSecondary       Transition = iota // stable secondary forest
	TransitionForestPasture                     // forest to pasture
	TransitionForestSecondary                   // forest to secondary forest
	TransitionSecondaryGain                     // new secondary forest
	TransitionSecondaryPasture                  // secondary forest to pasture
	NumTransitions
)

var transitionNames = [NumTransitions]string{"sec", "for_pas", "for_sec", "sec_gain", "sec_pas"}

func (t Transition) String() string {
	if t < 0 || t >= NumTransitions {
		return fmt.Sprintf("transition(%d)", int(t))
	}
	return transitionNames[t]
}

// ParseTransition resolves an activity table column name.
func ParseTransition(name string) (Transition, bool) {
	for i, n := range transitionNames {
		if n == name {
			return Transition(i), true
		}
	}
	return 0, false
}

// TransitionNames lists the column names in canonical order.
func TransitionNames() []string { return transitionNames[:] }

// ActivityPeriod is one row of an activity table: the area (ha) of each
// transition between Start and End.
type ActivityPeriod struct {
	Start DOY
	End   DOY
	Areas [NumTransitions]float64
}

// RegionOptions are the regional inputs besides the activity table.
type RegionOptions struct {
	// Ensemble holds shared z-scores; nil for a deterministic run.
	Ensemble []float64
	// StudyEnd overrides Config.ForceEnd when set.
	StudyEnd DOY
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type aggregator struct {
	cfg    Config
	params *Params
	opts   RegionOptions
	end    Ordinal
	pools  []Pool
}

// BookRegion synthesizes a pool collection straight from transition areas.
// Every transition opens its pools at the middle of its period and keeps
// them to the study end:
//
//	sec       regrow pool starting from the secondary class mean
//	sec_gain  regrow pool starting from RegrowBiomass
//	for_sec   deforestation of primary forest plus a regrow pool
//	for_pas   deforestation of primary forest
//	sec_pas   deforestation of secondary forest
//
// There is no main pool to carry between periods; all pools are evaluated
// once, to the study end, after the table is consumed.
func BookRegion(cfg Config, params *Params, rows []ActivityPeriod, opts RegionOptions) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endDOY := cfg.ForceEnd
	if opts.StudyEnd != 0 {
		endDOY = opts.StudyEnd
	}
	end, err := DOYToOrdinal(endDOY)
	if err != nil {
		return nil, err
	}
	a := &aggregator{cfg: cfg, params: params, opts: opts, end: end}

	for _, row := range rows {
		if err := a.period(row); err != nil {
			return nil, fmt.Errorf("period %s-%s: %w", row.Start, row.End, err)
		}
	}
	a.updatePools()
	return freeze(a.pools, a.width()), nil
}

func (a *aggregator) width() int {
	if len(a.opts.Ensemble) == 0 {
		return 1
	}
	return len(a.opts.Ensemble)
}

func (a *aggregator) period(row ActivityPeriod) error {
	s, err := DOYToOrdinal(row.Start)
	if err != nil {
		return err
	}
	e, err := DOYToOrdinal(row.End)
	if err != nil {
		return err
	}
	if e < s {
		return ErrInvalidPeriod
	}
	mid := s + (e-s)/2
	if mid > a.end {
		return nil
	}

	for tr := Transition(0); tr < NumTransitions; tr++ {
		area := row.Areas[tr]
		if area <= 0 {
			continue
		}
		var err error
		switch tr {
		case TransitionSecondary:
			err = a.regrow(mid, area, false)
		case TransitionSecondaryGain:
			err = a.regrow(mid, area, true)
		case TransitionForestSecondary:
			if err = a.deforest(mid, area, a.cfg.PrimaryClass); err == nil {
				err = a.regrow(mid, area, true)
			}
		case TransitionForestPasture:
			err = a.deforest(mid, area, a.cfg.PrimaryClass)
		case TransitionSecondaryPasture:
			err = a.deforest(mid, area, a.cfg.RegrowClass)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", tr, err)
		}
	}
	return nil
}

func (a *aggregator) regrow(at Ordinal, area float64, fresh bool) error {
	class := a.cfg.RegrowClass
	decay, err := a.params.Flux(class)
	if err != nil {
		return err
	}
	scale := a.cfg.Scale(area)
	mean, uc := a.cfg.RegrowBiomass.Value*scale, a.cfg.RegrowBiomass.Uncertainty*scale
	if !fresh {
		if mean, uc, err = a.params.Biomass(class, scale); err != nil {
			return err
		}
	}
	a.add(Pool{
		Type:    PoolBiomass,
		Subpool: SubpoolAbove,
		Class:   class,
		Area:    area,
		Start:   at,
		Initial: nonNegative(Draw(mean, uc, a.opts.Ensemble)),
	}, decay)
	return nil
}

func (a *aggregator) deforest(at Ordinal, area float64, class ClassID) error {
	mean, uc, err := a.params.Biomass(class, a.cfg.Scale(area))
	if err != nil {
		return err
	}
	cleared := nonNegative(Draw(mean, uc, a.opts.Ensemble))
	for _, p := range a.params.Products() {
		if p.Fraction == 0 {
			continue
		}
		typ := PoolProduct
		if p.Burned() {
			typ = PoolBurned
		}
		initial := make([]float64, len(cleared))
		floats.ScaleTo(initial, p.Fraction, cleared)
		a.add(Pool{
			Type:    typ,
			Subpool: p.Name,
			Class:   class,
			Area:    area,
			Start:   at,
			Initial: initial,
		}, p.Decay)
	}
	return nil
}

func (a *aggregator) add(p Pool, d Decay) {
	p.ID = len(a.pools)
	p.End = a.end
	p.Decay = d
	a.pools = append(a.pools, p)
}

// updatePools evaluates every pool to its end.
func (a *aggregator) updatePools() {
	for i := range a.pools {
		p := &a.pools[i]
		p.Final = RunFluxVec(p.Initial, p.Start, p.End, p.Decay, p.Scale(a.cfg.CarbonFraction))
	}
}

func nonNegative(v []float64) []float64 {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
	return v
}
