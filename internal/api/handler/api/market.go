package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/newthinker/quantbench/internal/api/response"
	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/bars"
)

// MarketApp defines the interface needed from app.Lab.
type MarketApp interface {
	Discovery() (*app.Discovery, error)
	Available() ([]bars.Dataset, error)
	Ingest(ctx context.Context, symbol string, tf core.Timeframe, days int) (*app.IngestResult, error)
}

// MarketHandler serves the catalogue and the stored market data.
type MarketHandler struct {
	app MarketApp
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(a MarketApp) *MarketHandler {
	return &MarketHandler{app: a}
}

// Discovery returns scenarios, strategies, symbols and timeframes.
func (h *MarketHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Discovery()
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, d)
}

// Available lists the stored datasets.
func (h *MarketHandler) Available(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.app.Available()
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, datasets)
}

// Ingest downloads candles. Parameters come from the query string:
// symbol (required), timeframe (default 1h) and days.
func (h *MarketHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		response.Fail(w, core.WrapError(core.ErrConfigMissing, fmt.Errorf("symbol is required")))
		return
	}

	days := 0
	if s := q.Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.Fail(w, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("days must be a positive integer, got %q", s)))
			return
		}
		days = n
	}

	res, err := h.app.Ingest(r.Context(), symbol, core.Timeframe(q.Get("timeframe")), days)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}
