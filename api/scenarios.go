/*
scenarios.go - Demo pixels for testing and demonstrations

PURPOSE:

	Provides pre-built pixel histories that exercise the main bookkeeping
	paths. Loading a scenario books it like any client request and returns
	the new run, so reports and pool records can be fetched right away.

AVAILABLE SCENARIOS:

	forest:     Stable forest, 2000-2020
	deforest:   Forest cleared for pasture in 2008 with a detected break
	regrow:     Pasture abandoned to secondary forest in 2006
	region:     Five years of regional activity data, every transition

HOW SCENARIOS WORK:
 1. Build the request from the landcover class scheme
 2. Book it with the handler's config and parameters
 3. Remember it as the current scenario

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "deforest"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a request builder to scenarioPixels or scenarioRegions

SEE ALSO:
  - handlers.go: booking handlers
  - landcover/types.go: class ids
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/warp/carbon-book/landcover"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "forest",
		Name:        "Stable Forest",
		Description: "Forest for the whole window; stock stays at the class mean",
		Category:    "pixel",
	},
	{
		ID:          "deforest",
		Name:        "Deforestation",
		Description: "Forest cleared for pasture in 2008; products and burned pools",
		Category:    "pixel",
	},
	{
		ID:          "regrow",
		Name:        "Regrowth",
		Description: "Pasture abandoned in 2006; secondary forest regrows from zero",
		Category:    "pixel",
	},
	{
		ID:          "region",
		Name:        "Regional Activity",
		Description: "Five years of activity data covering every transition",
		Category:    "region",
	},
}

func seg(class uint16, start, end int32) SegmentDTO {
	return SegmentDTO{Class: class, Start: start, End: end}
}

var scenarioPixels = map[string]BookPixelRequest{
	"forest": {
		Label: "scenario:forest", PX: 1, PY: 1,
		Segments: []SegmentDTO{
			seg(uint16(landcover.Forest), 2000001, 2020001),
		},
	},
	"deforest": {
		Label: "scenario:deforest", PX: 2, PY: 1,
		Segments: []SegmentDTO{
			{Class: uint16(landcover.Forest), Start: 2000001, End: 2008090, Break: 2008120},
			seg(uint16(landcover.Pasture), 2008200, 2020001),
		},
	},
	"regrow": {
		Label: "scenario:regrow", PX: 3, PY: 1,
		Segments: []SegmentDTO{
			seg(uint16(landcover.Pasture), 2000001, 2005365),
			seg(uint16(landcover.Secondary), 2006001, 2020001),
		},
	},
}

var scenarioRegions = map[string]BookRegionRequest{
	"region": {
		Label: "scenario:region",
		Periods: []ActivityDTO{
			{Start: 2001001, End: 2005365, Areas: map[string]float64{
				"sec": 120, "for_pas": 40, "for_sec": 15, "sec_gain": 25, "sec_pas": 10,
			}},
			{Start: 2006001, End: 2010365, Areas: map[string]float64{
				"sec": 140, "for_pas": 30, "sec_pas": 12,
			}},
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario books a demo scenario and returns the run.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		dto RunDTO
		err error
	)
	if px, ok := scenarioPixels[req.ScenarioID]; ok {
		dto, err = h.bookPixel(r.Context(), px)
	} else if rg, ok := scenarioRegions[req.ScenarioID]; ok {
		dto, err = h.bookRegion(r.Context(), rg)
	} else {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, statusFor(err), "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	writeJSON(w, http.StatusCreated, dto)
}
