package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/internal/metrics"
	"github.com/enrichflow/enrichflow/job"
	"github.com/enrichflow/enrichflow/types"
)

// CreateJobRequest is the POST /v1/jobs body.
type CreateJobRequest struct {
	OwnerID string         `json:"owner_id"`
	Kind    job.Kind       `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// JobsHandler serves the job lifecycle endpoints. A runner must be
// registered per job kind; creating a job of an unknown kind is rejected
// before anything is stored.
type JobsHandler struct {
	store     *job.Store
	processor *job.Processor
	runners   map[job.Kind]job.Runner
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewJobsHandler creates the job API handler. collector may be nil.
func NewJobsHandler(store *job.Store, processor *job.Processor, runners map[job.Kind]job.Runner, collector *metrics.Collector, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{
		store:     store,
		processor: processor,
		runners:   runners,
		collector: collector,
		logger:    logger.With(zap.String("component", "jobs_api")),
	}
}

// HandleCreate serves POST /v1/jobs: creates the job and starts it
// immediately, responding 202 with the pending snapshot for polling.
func (h *JobsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "malformed request body", h.logger)
		return
	}
	if req.OwnerID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "owner_id is required", h.logger)
		return
	}
	runner, ok := h.runners[req.Kind]
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation,
			fmt.Sprintf("unsupported job kind %q", req.Kind), h.logger)
		return
	}

	j := h.store.CreateJob(req.OwnerID, req.Kind, req.Payload)

	// The runner must outlive the HTTP request, so it cannot inherit the
	// request context.
	err := h.processor.StartJob(context.WithoutCancel(r.Context()), j.ID, runner, job.Callbacks{
		OnComplete: func(j *job.Job) { h.recordFinished(j) },
		OnError:    func(j *job.Job, err error) { h.recordFinished(j) },
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if h.collector != nil {
		h.collector.RecordJobStarted()
	}

	WriteSuccessStatus(w, http.StatusAccepted, j)
}

// HandleGet serves GET /v1/jobs/{id}.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	j, err := h.store.GetJob(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, j)
}

// HandleCancel serves DELETE /v1/jobs/{id}.
func (h *JobsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	j, err := h.store.CancelJob(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, j)
}

// HandleList serves GET /v1/jobs, optionally filtered by ?owner_id=.
func (h *JobsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	jobs := h.store.ListJobs(r.URL.Query().Get("owner_id"))
	WriteSuccess(w, jobs)
}

func (h *JobsHandler) recordFinished(j *job.Job) {
	if h.collector == nil {
		return
	}
	var duration time.Duration
	if j.StartedAt != nil && j.CompletedAt != nil {
		duration = j.CompletedAt.Sub(*j.StartedAt)
	}
	h.collector.RecordJobFinished(string(j.Kind), string(j.Status), duration)
}
