// Package handlers implements the JSON API over the loaded dataset.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/api/middleware"
	"github.com/dvloznov/basket-insights/internal/assoc"
	"github.com/dvloznov/basket-insights/internal/dataset"
	"github.com/dvloznov/basket-insights/internal/domain"
	"github.com/dvloznov/basket-insights/internal/habits"
	"github.com/dvloznov/basket-insights/internal/jobs"
)

// writeDomainError maps domain errors onto HTTP statuses: caller mistakes
// become 400s, data problems 500s.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var inputErr *domain.InputError
	var loadErr *domain.DataLoadError
	switch {
	case errors.As(err, &inputErr):
		middleware.WriteError(w, http.StatusBadRequest, inputErr.Error())
	case errors.As(err, &loadErr):
		log.Error().Err(err).Msg("Source data unavailable")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load source data")
	default:
		log.Error().Err(err).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// WindowDefaults is the configured fallback analysis window (YYYY-MM-DD).
// Requests that name their own dates take precedence; empty fields fall back
// to the package defaults in habits.
type WindowDefaults struct {
	Start string
	End   string
}

// HabitsHandler handles user discovery and habit analysis endpoints.
type HabitsHandler struct {
	holder *dataset.Holder
	window WindowDefaults
	log    zerolog.Logger
}

// NewHabitsHandler creates a new habits handler.
func NewHabitsHandler(holder *dataset.Holder, window WindowDefaults, log zerolog.Logger) *HabitsHandler {
	return &HabitsHandler{holder: holder, window: window, log: log}
}

// ListUsers handles GET /api/users
func (h *HabitsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	users := h.holder.Get().Analyzer.Users(limit)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// GetHabits handles GET /api/users/:id/habits
func (h *HabitsHandler) GetHabits(w http.ResponseWriter, r *http.Request, rawUserID string) {
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "User ID must be an integer")
		return
	}

	q := r.URL.Query()
	startStr := q.Get("start_date")
	if startStr == "" {
		startStr = h.window.Start
	}
	endStr := q.Get("end_date")
	if endStr == "" {
		endStr = h.window.End
	}
	start, end, err := habits.ParseWindow(startStr, endStr)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	summary, err := h.holder.Get().Analyzer.Analyze(userID, start, end)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// AssociationsHandler handles association mining endpoints.
type AssociationsHandler struct {
	holder        *dataset.Holder
	defaults      assoc.Options
	publisher     jobs.Publisher
	productsPath  string
	purchasesPath string
	log           zerolog.Logger
}

// NewAssociationsHandler creates a new associations handler. The publisher
// and source paths back the rebuild endpoint.
func NewAssociationsHandler(holder *dataset.Holder, defaults assoc.Options, publisher jobs.Publisher, productsPath, purchasesPath string, log zerolog.Logger) *AssociationsHandler {
	return &AssociationsHandler{
		holder:        holder,
		defaults:      defaults,
		publisher:     publisher,
		productsPath:  productsPath,
		purchasesPath: purchasesPath,
		log:           log,
	}
}

// miningOptions reads threshold overrides from the query string.
func (h *AssociationsHandler) miningOptions(r *http.Request) (assoc.Options, error) {
	opts := h.defaults

	q := r.URL.Query()
	if raw := q.Get("min_support"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, domain.NewInputError("min_support", "%q is not a number", raw)
		}
		opts.MinSupport = parsed
	}
	if raw := q.Get("min_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, domain.NewInputError("min_confidence", "%q is not a number", raw)
		}
		opts.MinConfidence = parsed
	}
	return opts, nil
}

// ListAssociations handles GET /api/associations
func (h *AssociationsHandler) ListAssociations(w http.ResponseWriter, r *http.Request) {
	opts, err := h.miningOptions(r)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	report, err := h.holder.Get().Engine.FrequentPairs(r.Context(), opts)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	resp := map[string]interface{}{
		"rules":           report.Rules,
		"count":           len(report.Rules),
		"pairs_evaluated": report.PairsEvaluated,
		"support_pass":    report.SupportPass,
		"confidence_pass": report.ConfidencePass,
	}
	if len(report.Rules) == 0 {
		resp["message"] = "no category pair met the thresholds"
		resp["top_pairs"] = report.TopPairs
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetStats handles GET /api/associations/stats
func (h *AssociationsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.holder.Get().Engine.Stats())
}

// EnqueueRebuild handles POST /api/associations/rebuild
func (h *AssociationsHandler) EnqueueRebuild(w http.ResponseWriter, r *http.Request) {
	job := &jobs.RebuildJob{
		ProductsPath:  h.productsPath,
		PurchasesPath: h.purchasesPath,
	}
	if err := h.publisher.PublishRebuild(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue rebuild job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue rebuild")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{Status: jobs.JobStatus(q.Get("status"))}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = parsed
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/:id
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
