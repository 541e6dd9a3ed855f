/*
tracker.go - Pixel carbon tracker

PURPOSE:
  Replays one pixel's land-cover segments into a Collection of pools. This is
  the state machine of the engine: every transition depends on the closing
  state of the pool before it, so a pixel is processed strictly in order.

STATE:
  lc        land-cover history, most recent last
  pools     growing pool list (frozen into a Collection at the end)
  pmain     index of the open standing-biomass pool ("main pool")
  prevBreak break date of the segment just processed

PREPROCESSING:
  1. Drop segments outside [ForceStart, ForceEnd]
  2. Clip the first start to ForceStart, force the last end to ForceEnd
  3. Reclassify unclassified segments next to forest (see reclassify)

TRANSITIONS (per segment after the first):
  same or equivalent cover  extend the main pool, re-evaluate its decay
  leaving forest            deforest: one product/burned pool per fraction
  leaving non-forest        removal: one "released" pool for the residual
  then                      open a new main pool for the segment's class

INITIAL BIOMASS OF A MAIN POOL:
  - first segment, class allows it, estimate >= ForestMin: spatially explicit
  - entering a regrow class from non-forest: RegrowBiomass
  - otherwise: the class mean from the biomass table
  Each is drawn across the ensemble when z-scores are supplied.

SEE ALSO:
  - decay.go: evaluation of each pool
  - aggregated.go: the regional variant without segment walking
*/
package carbon

import (
	"gonum.org/v1/gonum/floats"
)

// Segment is one stable land-cover period of a pixel, dates in ordinal form.
// Break is the detected change date after the segment (0 if none).
type Segment struct {
	Class ClassID
	Start Ordinal
	End   Ordinal
	Break Ordinal
	PX    int32
	PY    int32
}

// PixelOptions are the per-pixel inputs besides the segments.
type PixelOptions struct {
	// SEBiomass is the spatially explicit initial density; nil when unset.
	SEBiomass *Estimate
	// Ensemble holds the shared z-scores of a Monte-Carlo run; nil for a
	// deterministic run.
	Ensemble []float64
	// Area overrides Config.PixelArea when positive.
	Area float64
}

type tracker struct {
	cfg    Config
	params *Params
	opts   PixelOptions

	area       float64
	scale      float64
	start, end Ordinal
	px, py     int32

	lc        []ClassID
	pools     []Pool
	pmain     int
	prevBreak Ordinal
}

// BookPixel builds the pool collection of one pixel.
//
// A pixel with no segment inside the analysis window yields an empty
// collection and a nil error; check Collection.Empty before reporting.
// Lookup failures are returned as *UnitError and no collection is published.
func BookPixel(cfg Config, params *Params, segments []Segment, opts PixelOptions) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &tracker{cfg: cfg, params: params, opts: opts, pmain: -1}
	t.start, t.end = cfg.Window()
	t.area = cfg.PixelArea
	if opts.Area > 0 {
		t.area = opts.Area
	}
	t.scale = cfg.Scale(t.area)

	segs := Preprocess(cfg, segments)
	if len(segs) == 0 {
		return &Collection{width: t.width()}, nil
	}
	t.px, t.py = segs[0].PX, segs[0].PY

	for i, seg := range segs {
		if err := t.assess(i, seg); err != nil {
			return nil, &UnitError{PX: t.px, PY: t.py, Err: err}
		}
		t.prevBreak = seg.Break
	}
	return freeze(t.pools, t.width()), nil
}

func (t *tracker) width() int {
	if len(t.opts.Ensemble) == 0 {
		return 1
	}
	return len(t.opts.Ensemble)
}

// Preprocess windows and reclassifies a pixel's segments. The input is not
// modified.
func Preprocess(cfg Config, segments []Segment) []Segment {
	start, end := cfg.Window()
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.End < start || s.Start > end {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	if out[0].Start < start {
		out[0].Start = start
	}
	last := &out[len(out)-1]
	last.End = end
	if last.Break > end {
		last.Break = 0
	}
	reclassify(cfg, out)
	return out
}

// reclassify looks one segment back and one ahead of every unclassified
// segment: a gap leading from non-forest into forest is regrowth, a gap
// inside forest keeps the preceding forest class.
func reclassify(cfg Config, segs []Segment) {
	for i := range segs {
		if segs[i].Class != cfg.Unclassified || i+1 >= len(segs) {
			continue
		}
		next := segs[i+1].Class
		if !cfg.IsForest(next) {
			continue
		}
		if i == 0 || !cfg.IsForest(segs[i-1].Class) {
			segs[i].Class = cfg.RegrowClass
			continue
		}
		segs[i].Class = segs[i-1].Class
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (t *tracker) assess(i int, seg Segment) error {
	if i == 0 {
		return t.newMainPool(seg, true, false)
	}

	// Close any gap between the open pool and this segment.
	main := &t.pools[t.pmain]
	if seg.Start-1 > main.End {
		main.End = seg.Start - 1
		t.emission(t.pmain)
	}

	current := t.lc[len(t.lc)-1]
	if t.cfg.SameCover(seg.Class, current) {
		if seg.End > main.End {
			main.End = seg.End
		}
		t.emission(t.pmain)
		return nil
	}

	at := t.transitionDate(seg)
	if t.cfg.IsForest(current) {
		t.deforest(at)
	} else {
		t.removal(at)
	}
	regrow := t.cfg.IsRegrow(seg.Class) && !t.cfg.IsForest(current)
	return t.newMainPool(seg, false, regrow)
}

// transitionDate is the previous segment's break when it falls between the
// open pool's start and this segment, else this segment's start.
func (t *tracker) transitionDate(seg Segment) Ordinal {
	b := t.prevBreak
	if b > 0 && b >= t.pools[t.pmain].Start && b <= seg.Start {
		return b
	}
	return seg.Start
}

func (t *tracker) newMainPool(seg Segment, first, regrow bool) error {
	decay, err := t.params.Flux(seg.Class)
	if err != nil {
		return err
	}

	var initial []float64
	se := t.opts.SEBiomass
	switch {
	case first && se != nil && t.cfg.AllowsSEB(seg.Class) && se.Value >= t.cfg.ForestMin:
		initial = Draw(se.Value*t.scale, se.Uncertainty*t.scale, t.opts.Ensemble)
	case regrow:
		rb := t.cfg.RegrowBiomass
		initial = Draw(rb.Value*t.scale, rb.Uncertainty*t.scale, t.opts.Ensemble)
	default:
		mean, uc, err := t.params.Biomass(seg.Class, t.scale)
		if err != nil {
			return err
		}
		initial = Draw(mean, uc, t.opts.Ensemble)
	}

	t.pmain = t.append(Pool{
		Type:    PoolBiomass,
		Subpool: SubpoolAbove,
		Class:   seg.Class,
		Start:   seg.Start,
		End:     seg.End,
		Initial: nonNegative(initial),
		Decay:   decay,
	})
	t.lc = append(t.lc, seg.Class)
	return nil
}

// deforest splits the closing biomass of the main pool into product and
// burned pools that persist to the end of the window.
func (t *tracker) deforest(at Ordinal) {
	main := t.pools[t.pmain]
	if Mean(main.Final) <= 0 {
		return
	}
	for _, p := range t.params.Products() {
		if p.Fraction == 0 {
			continue
		}
		typ := PoolProduct
		if p.Burned() {
			typ = PoolBurned
		}
		initial := make([]float64, len(main.Final))
		floats.ScaleTo(initial, p.Fraction, main.Final)
		t.append(Pool{
			Type:    typ,
			Subpool: p.Name,
			Class:   main.Class,
			Start:   at,
			End:     t.end,
			Initial: initial,
			Decay:   p.Decay,
		})
	}
}

// removal releases the residual biomass of a non-forest main pool at once.
func (t *tracker) removal(at Ordinal) {
	main := t.pools[t.pmain]
	if Mean(main.Final) <= 0 {
		return
	}
	t.append(Pool{
		Type:    PoolBurned,
		Subpool: SubpoolBurned,
		Class:   main.Class,
		Start:   at,
		End:     t.end,
		Initial: append([]float64(nil), main.Final...),
		Decay:   Decay{Kind: DecayReleased},
	})
}

// append assigns the next id, evaluates the pool and returns its index.
func (t *tracker) append(p Pool) int {
	p.ID = len(t.pools)
	p.PX, p.PY = t.px, t.py
	p.Area = t.area
	if p.End < p.Start {
		p.End = p.Start
	}
	t.pools = append(t.pools, p)
	t.emission(p.ID)
	return p.ID
}

// emission fixes the pool's Final from its Initial over [Start, End].
func (t *tracker) emission(id int) {
	p := &t.pools[id]
	p.Final = RunFluxVec(p.Initial, p.Start, p.End, p.Decay, t.scale)
}
