/*
handlers.go - HTTP API handlers for carbon bookkeeping

PURPOSE:
  Exposes the carbon engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and the PoolStore.

ENDPOINTS:
  Booking:
    POST   /api/pixels                 Book one pixel's segment history
    POST   /api/regions                Book a region from activity data

  Runs:
    GET    /api/runs                   List booked runs
    GET    /api/runs/{id}              Run details
    GET    /api/runs/{id}/pools        Pools with ensemble means

  Reporting:
    GET    /api/runs/{id}/report       Report over a period (saved with the run)
    GET    /api/runs/{id}/report/saved Last saved report
    GET    /api/runs/{id}/eval         Single-date summary
    GET    /api/runs/{id}/record       Daily per-pool record

  Parameters:
    GET    /api/params                 Loaded parameter tables

REPORT QUERY:
  kind=years|days  start, end (years, or DOY for days)  step
  increments=true  per-interval fluxes instead of cumulative
  Without start/end the report spans the run's years.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: PoolStore (sqlite in production, memory in tests)
  - Config, Params: the engine inputs every booking uses
  - Metrics: prometheus counters

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Data errors (unknown class, bad date, bad period), invalid input
  - 404: Run not found
  - 409: Duplicate run id
  - 422: Nothing within the analysis window
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo pixels
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/carbon-book/carbon"
	"github.com/warp/carbon-book/factory"
	"github.com/warp/carbon-book/log"
)

// MaxEnsemble bounds the Monte-Carlo width a request may ask for.
const MaxEnsemble = 5000

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   carbon.PoolStore
	Config  carbon.Config
	Params  *carbon.Params
	Metrics *Metrics

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler booking with cfg and params.
func NewHandler(store carbon.PoolStore, cfg carbon.Config, params *carbon.Params) *Handler {
	return &Handler{
		Store:   store,
		Config:  cfg,
		Params:  params,
		Metrics: NewMetrics(),
	}
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// BookPixel books one pixel and stores the collection.
func (h *Handler) BookPixel(w http.ResponseWriter, r *http.Request) {
	var req BookPixelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	dto, err := h.bookPixel(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), "Failed to book pixel", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) bookPixel(ctx context.Context, req BookPixelRequest) (RunDTO, error) {
	segs, err := req.segments()
	if err != nil {
		h.Metrics.IncFailures("input")
		return RunDTO{}, err
	}
	opts := carbon.PixelOptions{Area: req.Area}
	if req.SEBiomass != nil {
		opts.SEBiomass = &carbon.Estimate{Value: req.SEBiomass.Value, Uncertainty: req.SEBiomass.Uncertainty}
	}
	if opts.Ensemble, err = ensemble(req.Ensemble, req.Seed); err != nil {
		h.Metrics.IncFailures("input")
		return RunDTO{}, err
	}

	col, err := carbon.BookPixel(h.Config, h.Params, segs, opts)
	if err != nil {
		h.Metrics.IncFailures("data")
		log.Warnw("pixel booking failed", "px", req.PX, "py", req.PY, "error", err)
		return RunDTO{}, err
	}
	if col.Empty() {
		h.Metrics.IncFailures("empty")
		return RunDTO{}, fmt.Errorf("pixel %d,%d: %w", req.PX, req.PY, carbon.ErrEmptyInput)
	}

	run := carbon.Run{
		ID:        uuid.NewString(),
		Kind:      carbon.RunPixel,
		Label:     req.Label,
		PX:        req.PX,
		PY:        req.PY,
		CreatedAt: time.Now().UTC(),
	}
	return h.save(ctx, run, col)
}

// BookRegion books a region from activity data and stores the collection.
func (h *Handler) BookRegion(w http.ResponseWriter, r *http.Request) {
	var req BookRegionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	dto, err := h.bookRegion(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), "Failed to book region", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) bookRegion(ctx context.Context, req BookRegionRequest) (RunDTO, error) {
	rows, err := req.periods()
	if err != nil {
		h.Metrics.IncFailures("input")
		return RunDTO{}, err
	}
	opts := carbon.RegionOptions{StudyEnd: carbon.DOY(req.StudyEnd)}
	if opts.Ensemble, err = ensemble(req.Ensemble, req.Seed); err != nil {
		h.Metrics.IncFailures("input")
		return RunDTO{}, err
	}

	col, err := carbon.BookRegion(h.Config, h.Params, rows, opts)
	if err != nil {
		h.Metrics.IncFailures("data")
		log.Warnw("region booking failed", "label", req.Label, "error", err)
		return RunDTO{}, err
	}
	if col.Empty() {
		h.Metrics.IncFailures("empty")
		return RunDTO{}, fmt.Errorf("region %q: %w", req.Label, carbon.ErrEmptyInput)
	}

	run := carbon.Run{
		ID:        uuid.NewString(),
		Kind:      carbon.RunRegion,
		Label:     req.Label,
		CreatedAt: time.Now().UTC(),
	}
	return h.save(ctx, run, col)
}

func (h *Handler) save(ctx context.Context, run carbon.Run, col *carbon.Collection) (RunDTO, error) {
	if err := h.Store.SaveRun(ctx, run, col); err != nil {
		return RunDTO{}, err
	}
	run.Pools, run.Width = col.Len(), col.Width()
	h.Metrics.ObserveRun(run.Kind == carbon.RunRegion, run.Pools, run.Width)
	log.Infow("run booked", "id", run.ID, "kind", run.Kind, "pools", run.Pools, "width", run.Width)
	return toRunDTO(run, col), nil
}

// ensemble draws n z-scores; n <= 1 is a deterministic run.
func ensemble(n int, seed uint64) ([]float64, error) {
	if n > MaxEnsemble {
		return nil, fmt.Errorf("%w: ensemble of %d exceeds %d", carbon.ErrInvalidConfig, n, MaxEnsemble)
	}
	if n <= 1 {
		return nil, nil
	}
	return carbon.NewEnsemble(n, seed), nil
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// ListRuns returns all runs, oldest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its time span.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, col, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run, col))
}

// GetPools returns the run's pools.
func (h *Handler) GetPools(w http.ResponseWriter, r *http.Request) {
	_, col, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	pools := col.Pools()
	dtos := make([]PoolDTO, len(pools))
	for i, p := range pools {
		dtos[i] = toPoolDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (carbon.Run, *carbon.Collection, bool) {
	id := chi.URLParam(r, "id")
	run, col, err := h.Store.LoadRun(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to load run", err)
		return carbon.Run{}, nil, false
	}
	return run, col, true
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport computes a report over the requested period and saves it with
// the run.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	run, col, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	period, err := parsePeriod(r, col)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report period", err)
		return
	}
	increments := r.URL.Query().Get("increments") == "true"

	rep := carbon.NewReporter(h.Config, col)
	var records []carbon.Record
	if increments {
		records, err = rep.Increments(period)
	} else {
		records, err = rep.Report(period)
	}
	if err != nil {
		writeError(w, statusFor(err), "Failed to compute report", err)
		return
	}
	h.Metrics.IncReports()

	if !increments {
		if err := h.Store.SaveReport(r.Context(), run.ID, records); err != nil {
			log.Errorw("failed to save report", "id", run.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, ReportDTO{RunID: run.ID, Increments: increments, Records: toRecordDTOs(records)})
}

// GetSavedReport returns the last report saved for the run.
func (h *Handler) GetSavedReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	records, err := h.Store.LoadReport(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to load report", err)
		return
	}
	writeJSON(w, http.StatusOK, ReportDTO{RunID: id, Records: toRecordDTOs(records)})
}

// EvalRun summarises the run at ?date=YYYYDDD.
func (h *Handler) EvalRun(w http.ResponseWriter, r *http.Request) {
	_, col, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	v, err := strconv.Atoi(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	date := carbon.DOY(v)
	if !date.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid date", fmt.Errorf("%w: %d", carbon.ErrInvalidDate, v))
		return
	}
	rec := carbon.NewReporter(h.Config, col).EvalSum(date)
	writeJSON(w, http.StatusOK, toRecordDTOs([]carbon.Record{rec})[0])
}

// GetRecord returns the daily per-pool record of the run.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	_, col, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPoolSeriesDTO(carbon.NewReporter(h.Config, col).Record()))
}

// parsePeriod reads kind/start/end/step; missing bounds default to the
// collection's years. Periods longer than carbon.MaxReportDates are rejected.
func parsePeriod(r *http.Request, col *carbon.Collection) (carbon.ReportPeriod, error) {
	q := r.URL.Query()
	p := carbon.ReportPeriod{Kind: carbon.PeriodYears, Step: 1}

	switch q.Get("kind") {
	case "", "years":
		p.Start = int32(col.Start().DOY().Year())
		p.End = int32(col.End().DOY().Year())
	case "days":
		p.Kind = carbon.PeriodDays
		p.Start = int32(col.Start().DOY())
		p.End = int32(col.End().DOY())
	default:
		return p, fmt.Errorf("%w: unknown kind %q", carbon.ErrInvalidPeriod, q.Get("kind"))
	}

	for _, f := range []struct {
		key string
		dst *int32
	}{{"start", &p.Start}, {"end", &p.End}} {
		if s := q.Get(f.key); s != "" {
			v, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return p, fmt.Errorf("%w: %s=%q", carbon.ErrInvalidPeriod, f.key, s)
			}
			*f.dst = int32(v)
		}
	}
	if s := q.Get("step"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return p, fmt.Errorf("%w: step=%q", carbon.ErrInvalidPeriod, s)
		}
		p.Step = v
	}
	if _, err := p.Len(); err != nil {
		return p, err
	}
	return p, nil
}

// =============================================================================
// PARAMETERS
// =============================================================================

// GetParams returns the loaded parameter tables in the file schema.
func (h *Handler) GetParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON("loaded", h.Params))
}

// =============================================================================
// HELPERS
// =============================================================================

func statusFor(err error) int {
	switch {
	case carbon.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, carbon.ErrDuplicateRun):
		return http.StatusConflict
	case errors.Is(err, carbon.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case carbon.IsDataError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
