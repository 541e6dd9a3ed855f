/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine types carry no
  JSON tags; these types fix the external field names and the date format
  (DOY integers, YYYYDDD) independently of the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Booking:
    BookPixelRequest, SegmentDTO, EstimateDTO
    BookRegionRequest, ActivityDTO

  Runs:
    RunDTO, PoolDTO

  Reports:
    RecordDTO, ReportDTO, PoolSeriesDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// BOOKING REQUESTS
// =============================================================================

// SegmentDTO is one land-cover segment. Dates are DOY (YYYYDDD); break 0
// means none.
type SegmentDTO struct {
	Class uint16 `json:"class"`
	Start int32  `json:"start"`
	End   int32  `json:"end"`
	Break int32  `json:"break,omitempty"`
}

// EstimateDTO is a density with its 95% half-width.
type EstimateDTO struct {
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
}

// BookPixelRequest books one pixel's segment history.
type BookPixelRequest struct {
	Label     string       `json:"label,omitempty"`
	PX        int32        `json:"px"`
	PY        int32        `json:"py"`
	Segments  []SegmentDTO `json:"segments"`
	SEBiomass *EstimateDTO `json:"se_biomass,omitempty"`
	Area      float64      `json:"area,omitempty"`
	// Ensemble > 1 runs a Monte-Carlo booking with that many members.
	Ensemble int    `json:"ensemble,omitempty"`
	Seed     uint64 `json:"seed,omitempty"`
}

// ActivityDTO is one period of an activity table, areas keyed by transition
// name (sec, for_pas, for_sec, sec_gain, sec_pas).
type ActivityDTO struct {
	Start int32              `json:"start"`
	End   int32              `json:"end"`
	Areas map[string]float64 `json:"areas"`
}

// BookRegionRequest books a region from activity data.
type BookRegionRequest struct {
	Label    string        `json:"label,omitempty"`
	Periods  []ActivityDTO `json:"periods"`
	StudyEnd int32         `json:"study_end,omitempty"`
	Ensemble int           `json:"ensemble,omitempty"`
	Seed     uint64        `json:"seed,omitempty"`
}

// =============================================================================
// RUNS AND POOLS
// =============================================================================

// RunDTO represents a booked run in API responses.
type RunDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Label     string `json:"label,omitempty"`
	PX        int32  `json:"px"`
	PY        int32  `json:"py"`
	Width     int    `json:"width"`
	Pools     int    `json:"pools"`
	Start     int32  `json:"start,omitempty"`
	End       int32  `json:"end,omitempty"`
	CreatedAt string `json:"created_at"`
}

// PoolDTO is one pool with its ensemble means.
type PoolDTO struct {
	ID      int       `json:"id"`
	Type    string    `json:"type"`
	Subpool string    `json:"subpool"`
	Class   uint16    `json:"class"`
	Area    float64   `json:"area"`
	Start   int32     `json:"start"`
	End     int32     `json:"end"`
	Decay   string    `json:"decay"`
	Coef    []float64 `json:"coef"`
	Initial float64   `json:"initial"`
	Final   float64   `json:"final"`
	FinalUC float64   `json:"final_uc,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

// RecordDTO is one dated report line; *_uc fields are 95% half-widths.
type RecordDTO struct {
	Date           int32   `json:"date"`
	Stock          float64 `json:"above"`
	Emission       float64 `json:"emission"`
	Productivity   float64 `json:"productivity"`
	Net            float64 `json:"net"`
	Unreleased     float64 `json:"unreleased"`
	StockUC        float64 `json:"a_uc,omitempty"`
	EmissionUC     float64 `json:"e_uc,omitempty"`
	ProductivityUC float64 `json:"p_uc,omitempty"`
	NetUC          float64 `json:"n_uc,omitempty"`
	UnreleasedUC   float64 `json:"u_uc,omitempty"`
}

// ReportDTO is a run's report over a period.
type ReportDTO struct {
	RunID      string      `json:"run_id"`
	Increments bool        `json:"increments"`
	Records    []RecordDTO `json:"records"`
}

// PoolSeriesDTO is the daily per-pool record.
type PoolSeriesDTO struct {
	Dates   []int32     `json:"dates"`
	Labels  []string    `json:"labels"`
	Biomass [][]float64 `json:"biomass"`
	Flux    [][]float64 `json:"flux"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest loads a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRunDTO(run carbon.Run, col *carbon.Collection) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Label:     run.Label,
		PX:        run.PX,
		PY:        run.PY,
		Width:     run.Width,
		Pools:     run.Pools,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
	if !col.Empty() {
		dto.Start = int32(col.Start().DOY())
		dto.End = int32(col.End().DOY())
	}
	return dto
}

func toPoolDTO(p carbon.Pool) PoolDTO {
	return PoolDTO{
		ID:      p.ID,
		Type:    string(p.Type),
		Subpool: string(p.Subpool),
		Class:   uint16(p.Class),
		Area:    p.Area,
		Start:   int32(p.Start.DOY()),
		End:     int32(p.End.DOY()),
		Decay:   string(p.Decay.Kind),
		Coef:    p.Decay.Coef[:],
		Initial: carbon.Mean(p.Initial),
		Final:   carbon.Mean(p.Final),
		FinalUC: carbon.Spread(p.Final),
	}
}

func toRecordDTOs(records []carbon.Record) []RecordDTO {
	out := make([]RecordDTO, len(records))
	for i, r := range records {
		out[i] = RecordDTO{
			Date:           int32(r.Date),
			Stock:          r.Stock,
			Emission:       r.Emission,
			Productivity:   r.Productivity,
			Net:            r.Net,
			Unreleased:     r.Unreleased,
			StockUC:        r.StockUC,
			EmissionUC:     r.EmissionUC,
			ProductivityUC: r.ProductivityUC,
			NetUC:          r.NetUC,
			UnreleasedUC:   r.UnreleasedUC,
		}
	}
	return out
}

func toPoolSeriesDTO(s carbon.PoolSeries) PoolSeriesDTO {
	dto := PoolSeriesDTO{
		Dates:   make([]int32, len(s.Dates)),
		Labels:  make([]string, len(s.Labels)),
		Biomass: s.Biomass,
		Flux:    s.Flux,
	}
	for i, d := range s.Dates {
		dto.Dates[i] = int32(d)
	}
	for i, l := range s.Labels {
		dto.Labels[i] = string(l)
	}
	return dto
}

// segments converts request segments; dates must be valid DOY values.
func (req BookPixelRequest) segments() ([]carbon.Segment, error) {
	out := make([]carbon.Segment, 0, len(req.Segments))
	for _, s := range req.Segments {
		seg := carbon.Segment{Class: carbon.ClassID(s.Class), PX: req.PX, PY: req.PY}
		var err error
		if seg.Start, err = carbon.DOYToOrdinal(carbon.DOY(s.Start)); err != nil {
			return nil, err
		}
		if seg.End, err = carbon.DOYToOrdinal(carbon.DOY(s.End)); err != nil {
			return nil, err
		}
		if s.Break > 0 {
			if seg.Break, err = carbon.DOYToOrdinal(carbon.DOY(s.Break)); err != nil {
				return nil, err
			}
		}
		out = append(out, seg)
	}
	return out, nil
}

// periods converts request periods; unknown transition names are rejected.
func (req BookRegionRequest) periods() ([]carbon.ActivityPeriod, error) {
	out := make([]carbon.ActivityPeriod, 0, len(req.Periods))
	for _, p := range req.Periods {
		ap := carbon.ActivityPeriod{Start: carbon.DOY(p.Start), End: carbon.DOY(p.End)}
		for name, area := range p.Areas {
			tr, ok := carbon.ParseTransition(name)
			if !ok {
				return nil, fmt.Errorf("%w: unknown transition %q", carbon.ErrInvalidConfig, name)
			}
			ap.Areas[tr] = area
		}
		out = append(out, ap)
	}
	return out, nil
}
