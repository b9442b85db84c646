package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/newthinker/quantbench/internal/api/response"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/history"
)

// MaxRunsLimit caps the page size of the run history.
const MaxRunsLimit = 500

// RunsApp defines the interface needed from app.Lab.
type RunsApp interface {
	ListRuns(ctx context.Context, f history.Filter) ([]history.Run, error)
	GetRun(ctx context.Context, id string) (*backtest.Result, error)
}

// RunsHandler serves the run history.
type RunsHandler struct {
	app RunsApp
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(a RunsApp) *RunsHandler {
	return &RunsHandler{app: a}
}

// List returns recent runs filtered by the symbol, strategy and limit
// query parameters.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := history.Filter{
		Symbol:   q.Get("symbol"),
		Strategy: q.Get("strategy"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxRunsLimit {
			response.Fail(w, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("limit must be between 1 and %d, got %q", MaxRunsLimit, s)))
			return
		}
		f.Limit = n
	}

	runs, err := h.app.ListRuns(r.Context(), f)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// Get returns the archived result of one run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.app.GetRun(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}
