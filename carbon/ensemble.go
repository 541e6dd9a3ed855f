package carbon

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// z95 converts a 95% confidence half-width into one standard deviation.
const z95 = 1.96

// Draw samples an ensemble around mean: mean + z*(ci/1.96).
// The same z vector is shared by every pixel of a run so ensemble members
// stay comparable. With no z-scores the ensemble is the single value mean.
func Draw(mean, ci float64, z []float64) []float64 {
	if len(z) == 0 {
		return []float64{mean}
	}
	out := make([]float64, len(z))
	floats.ScaleTo(out, ci/z95, z)
	floats.AddConst(mean, out)
	return out
}

// NewEnsemble returns n reproducible standard normal z-scores.
func NewEnsemble(n int, seed uint64) []float64 {
	if n <= 0 {
		return nil
	}
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	z := make([]float64, n)
	for i := range z {
		z[i] = dist.Rand()
	}
	return z
}

// Mean is the ensemble mean; a single-member ensemble is its own mean.
func Mean(v []float64) float64 {
	switch len(v) {
	case 0:
		return 0
	case 1:
		return v[0]
	}
	return stat.Mean(v, nil)
}

// Spread is the 95% half-width of an ensemble (1.96 standard deviations).
func Spread(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	return z95 * stat.StdDev(v, nil)
}
