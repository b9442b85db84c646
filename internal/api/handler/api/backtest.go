// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/newthinker/quantbench/internal/api/job"
	"github.com/newthinker/quantbench/internal/api/response"
	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/metrics"
)

// JobType labels backtest jobs in the job store and in metrics.
const JobType = "backtest"

// BacktestApp defines the interface needed from app.Lab.
type BacktestApp interface {
	Run(ctx context.Context, req app.Request) (*backtest.Result, error)
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	app     BacktestApp
	jobs    *job.Store
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. reg may be nil.
func NewBacktestHandler(a BacktestApp, jobs *job.Store, reg *metrics.Registry, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{app: a, jobs: jobs, metrics: reg, logger: logger}
}

func decodeRequest(r *http.Request) (app.Request, error) {
	var req app.Request
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, core.WrapError(core.ErrConfigInvalid, err)
	}
	if req.Symbol == "" {
		return req, core.WrapError(core.ErrConfigMissing, errors.New("symbol is required"))
	}
	return req, nil
}

// Run executes a backtest synchronously. The lab's run timeout bounds it.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	result, err := h.app.Run(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Create starts a backtest job and returns its id.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobs.Create(JobType)

	// Copy values before starting goroutine to avoid race
	jobID := j.ID
	status := j.Status
	h.reportActive()

	go h.runJob(jobID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// runJob executes the backtest and updates job status.
func (h *BacktestHandler) runJob(jobID string, req app.Request) {
	defer h.reportActive()

	h.update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	result, err := h.app.Run(context.Background(), req)
	if err != nil {
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(core.ErrEngineFailure, err)
		}
		h.logger.Warn("backtest job failed", zap.String("job_id", jobID), zap.Error(err))
		h.update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	h.update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
}

// update applies fn to the job. A job missing from the store is logged and
// the run result is dropped.
func (h *BacktestHandler) update(jobID string, fn func(*job.Job)) {
	if err := h.jobs.Update(jobID, fn); err != nil {
		h.logger.Error("failed to update backtest job", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (h *BacktestHandler) reportActive() {
	if h.metrics != nil {
		h.metrics.SetJobsActive(JobType, h.jobs.Active(JobType))
	}
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobs.Get(jobID)
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"progress":   j.Progress,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// List returns the live jobs without their results.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	out := make([]map[string]any, len(jobs))
	for i, j := range jobs {
		out[i] = map[string]any{
			"job_id":     j.ID,
			"type":       j.Type,
			"status":     j.Status,
			"created_at": j.CreatedAt,
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"jobs":  out,
		"count": len(out),
	})
}
