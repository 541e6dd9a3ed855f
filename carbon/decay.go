/*
decay.go - Decay function library

PURPOSE:
  Maps (initial biomass, elapsed time, decay function) to the biomass left
  at a later date. Every pool carries one Decay; the tracker evaluates it at
  the pool's end and the reporter at arbitrary query dates.

FUNCTIONS (y1 density at x1, t = (x2-x1)/365.25 years):
  none      y1
  linear    y1 * (1 - t*c0)                  straight-line loss, rate c0 per year
  logdc     y1 * exp(-t*c0)                  exponential loss
  const     y1 + c0*t                        constant rate, sign of c0 is direction
  log       c0*ln(exp((y1-c1)/c0) + t) + c1  saturating regrowth
  dual      y1 + c0*t before c1 years, a ±1e9 step after (delayed full release)
  released  0 once any time has elapsed      immediate combustion/removal

SCALING:
  Pool biomass is stored as mass (density * scale, scale = carbon fraction *
  pixel area). Functions run on density, so y1 is unscaled first and the
  result rescaled.

CLAMPS:
  - y2 >= 0 wherever y1 >= 0
  - linear, logdc and const give 0 when y1 <= 0

SEE ALSO:
  - params.go: lookup of a class's Decay
  - tracker.go, reporter.go: callers
*/
package carbon

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// =============================================================================
// DECAY KIND - Closed set of decay functions
// =============================================================================

type DecayKind string

const (
	DecayNone     DecayKind = "none"
	DecayLinear   DecayKind = "linear"
	DecayLogDecay DecayKind = "logdc"
	DecayConst    DecayKind = "const"
	DecayLog      DecayKind = "log"
	DecayDual     DecayKind = "dual"
	DecayReleased DecayKind = "released"
)

// dualStep is added once the dual threshold passes; the clamp turns it into
// full release for negative rates.
const dualStep = 1e9

var decayKinds = map[string]DecayKind{
	string(DecayNone):     DecayNone,
	string(DecayLinear):   DecayLinear,
	string(DecayLogDecay): DecayLogDecay,
	string(DecayConst):    DecayConst,
	string(DecayLog):      DecayLog,
	string(DecayDual):     DecayDual,
	string(DecayReleased): DecayReleased,
}

// ParseDecayKind resolves a function name from a parameter table.
func ParseDecayKind(name string) (DecayKind, error) {
	k, ok := decayKinds[name]
	if !ok {
		return "", &InvalidFunctionError{Name: name}
	}
	return k, nil
}

// Emitting kinds can only lose biomass; an empty pool stays empty.
func (k DecayKind) Emitting() bool {
	return k == DecayLinear || k == DecayLogDecay || k == DecayConst
}

// Arity is the number of coefficients the kind reads.
func (k DecayKind) Arity() int {
	switch k {
	case DecayLog, DecayDual:
		return 2
	case DecayLinear, DecayLogDecay, DecayConst:
		return 1
	default:
		return 0
	}
}

// Decay is a decay function with its coefficients.
type Decay struct {
	Kind DecayKind
	Coef [2]float64
}

// NewDecay validates the name and builds a Decay.
func NewDecay(name string, c0, c1 float64) (Decay, error) {
	k, err := ParseDecayKind(name)
	if err != nil {
		return Decay{}, err
	}
	return Decay{Kind: k, Coef: [2]float64{c0, c1}}, nil
}

func (d Decay) String() string { return string(d.Kind) }

// density evaluates the function on unscaled biomass.
func (d Decay) density(y1, years float64) float64 {
	c0, c1 := d.Coef[0], d.Coef[1]
	switch d.Kind {
	case DecayNone:
		return y1
	case DecayLinear:
		return y1 * (1 - years*c0)
	case DecayLogDecay:
		return y1 * math.Exp(-years*c0)
	case DecayConst:
		return y1 + c0*years
	case DecayLog:
		if c0 == 0 {
			return y1
		}
		return c0*math.Log(math.Exp((y1-c1)/c0)+years) + c1
	case DecayDual:
		if years >= c1 {
			return y1 + math.Copysign(dualStep, c0)
		}
		return y1 + c0*years
	default:
		// released, plus anything that slipped past ParseDecayKind
		return 0
	}
}

func (d Decay) clamp(y1, y2 float64) float64 {
	if d.Kind.Emitting() && y1 <= 0 {
		return 0
	}
	if y1 >= 0 && (y2 < 0 || math.IsNaN(y2)) {
		return 0
	}
	return y2
}

// =============================================================================
// RUN FLUX - Biomass at x2 given biomass y1 at x1
// =============================================================================

// RunFlux returns the biomass at x2 of a pool holding y1 at x1.
// A non-positive scale is treated as 1.
func RunFlux(y1 float64, x1, x2 Ordinal, d Decay, scale float64) float64 {
	if x1 == x2 {
		return y1
	}
	if scale <= 0 {
		scale = 1
	}
	u := y1 / scale
	return d.clamp(u, d.density(u, YearsBetween(x1, x2))) * scale
}

// RunFluxVec is RunFlux applied to every member of an ensemble.
// The input slice is not modified.
func RunFluxVec(y1 []float64, x1, x2 Ordinal, d Decay, scale float64) []float64 {
	out := make([]float64, len(y1))
	if x1 == x2 {
		copy(out, y1)
		return out
	}
	if scale <= 0 {
		scale = 1
	}
	floats.ScaleTo(out, 1/scale, y1)
	years := YearsBetween(x1, x2)
	for i, u := range out {
		out[i] = d.clamp(u, d.density(u, years))
	}
	floats.Scale(scale, out)
	return out
}
