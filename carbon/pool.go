/*
Package carbon reconstructs the life of stored carbon in a land parcel from
its land-cover history.

PURPOSE:
  A pixel's classified land-cover segments are replayed into typed pools of
  biomass, each decaying under its own function. The pools are then evaluated
  at any query date into stocks and cumulative or incremental fluxes.

KEY CONCEPTS IN THIS FILE (pool.go):
  - Pool: a time-bounded record of decaying biomass (the ledger entry)
  - Collection: the frozen, ordered pools of one pixel or region
  - PoolType / Subpool: what the biomass is (standing, product, burned)

DESIGN PRINCIPLES:
  1. Append-only: pools are created in order, ids are dense 0..N-1
  2. Frozen output: a Collection is published only when complete
  3. One engine for both modes: biomass fields are ensembles, width 1 for
     deterministic runs and width N for Monte-Carlo runs

USAGE:
  col, err := carbon.BookPixel(cfg, params, segments, carbon.PixelOptions{})
  if err != nil {
      return err
  }
  if col.Empty() {
      // no segment inside the window, nothing to report
  }
  rep := carbon.NewReporter(cfg, col)
  records, _ := rep.Report(carbon.YearPeriod(2001, 2015, 1))

SEE ALSO:
  - tracker.go: builds a Collection from segments
  - aggregated.go: builds a Collection from regional activity data
  - reporter.go: evaluates a Collection
*/
package carbon

// =============================================================================
// POOL TYPES
// =============================================================================

type PoolType string

const (
	PoolBiomass PoolType = "biomass" // standing/live biomass
	PoolProduct PoolType = "product" // harvested products
	PoolBurned  PoolType = "burned"  // combusted or removed on the break date
)

// Subpool labels the compartment a pool tracks. Product subpools are named
// by the product table; these are the conventional names.
type Subpool string

const (
	SubpoolAbove   Subpool = "above"
	SubpoolDurable Subpool = "durable"
	SubpoolFuel    Subpool = "fuel"
	SubpoolPulp    Subpool = "pulp"
	SubpoolBurned  Subpool = "burned"
)

// =============================================================================
// POOL - One decaying compartment
// =============================================================================

// Pool is a time-bounded compartment of biomass decaying under Decay.
// Initial holds the biomass at Start, Final the biomass at End; both are
// ensembles of the same width.
type Pool struct {
	Type    PoolType
	Subpool Subpool
	Class   ClassID
	ID      int
	PX, PY  int32
	Area    float64
	Start   Ordinal
	End     Ordinal
	Initial []float64
	Final   []float64
	Decay   Decay
}

// Scale converts density into pool mass.
func (p *Pool) Scale(carbonFraction float64) float64 { return carbonFraction * p.Area }

// Contains reports whether t falls in [Start, End].
func (p *Pool) Contains(t Ordinal) bool { return t >= p.Start && t <= p.End }

// Width is the ensemble size.
func (p *Pool) Width() int { return len(p.Initial) }

func (p Pool) clone() Pool {
	p.Initial = append([]float64(nil), p.Initial...)
	p.Final = append([]float64(nil), p.Final...)
	return p
}

// =============================================================================
// COLLECTION - Frozen pools of one pixel or region
// =============================================================================

// Collection is the immutable result of booking one unit of work.
type Collection struct {
	pools []Pool
	width int
}

func freeze(pools []Pool, width int) *Collection {
	out := make([]Pool, len(pools))
	for i := range pools {
		out[i] = pools[i].clone()
	}
	return &Collection{pools: out, width: width}
}

// NewCollection freezes externally loaded pools (e.g. from a store).
// Ids must be dense and in order.
func NewCollection(pools []Pool) (*Collection, error) {
	width := 0
	for i, p := range pools {
		if p.ID != i {
			return nil, ErrInvalidPool
		}
		if len(p.Initial) != len(p.Final) || len(p.Initial) == 0 {
			return nil, ErrInvalidPool
		}
		if width == 0 {
			width = len(p.Initial)
		} else if width != len(p.Initial) {
			return nil, ErrInvalidPool
		}
		if p.End < p.Start {
			return nil, ErrInvalidPool
		}
	}
	return freeze(pools, width), nil
}

// Empty marks a unit with no result.
func (c *Collection) Empty() bool { return c == nil || len(c.pools) == 0 }

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.pools)
}

// Width is the ensemble size shared by all pools.
func (c *Collection) Width() int {
	if c == nil {
		return 0
	}
	return c.width
}

// Pools returns a copy of the pools.
func (c *Collection) Pools() []Pool {
	if c == nil {
		return nil
	}
	out := make([]Pool, len(c.pools))
	for i := range c.pools {
		out[i] = c.pools[i].clone()
	}
	return out
}

// Pool returns a copy of pool i.
func (c *Collection) Pool(i int) Pool { return c.pools[i].clone() }

// Start is the start of the first standing-biomass pool.
func (c *Collection) Start() Ordinal {
	for i := range c.pools {
		if c.pools[i].Type == PoolBiomass {
			return c.pools[i].Start
		}
	}
	if c.Empty() {
		return 0
	}
	return c.pools[0].Start
}

// End is the end of the last standing-biomass pool.
func (c *Collection) End() Ordinal {
	for i := len(c.pools) - 1; i >= 0; i-- {
		if c.pools[i].Type == PoolBiomass {
			return c.pools[i].End
		}
	}
	var end Ordinal
	for i := range c.pools {
		if c.pools[i].End > end {
			end = c.pools[i].End
		}
	}
	return end
}

// Count returns the number of pools of a type.
func (c *Collection) Count(t PoolType) int {
	n := 0
	for i := range c.pools {
		if c.pools[i].Type == t {
			n++
		}
	}
	return n
}
