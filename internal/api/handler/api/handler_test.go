package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/newthinker/quantbench/internal/api/job"
	"github.com/newthinker/quantbench/internal/api/response"
	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/bars"
	"github.com/newthinker/quantbench/internal/storage/history"
)

type fakeLab struct {
	mu      sync.Mutex
	runErr  error
	lastReq app.Request
	filter  history.Filter
	ingest  []any
}

func (f *fakeLab) Run(ctx context.Context, req app.Request) (*backtest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &backtest.Result{ID: "run-1", Symbol: req.Symbol, Strategy: req.Strategy}, nil
}

func (f *fakeLab) Discovery() (*app.Discovery, error) {
	return &app.Discovery{Symbols: []string{"BTC/USDT"}, Timeframes: app.Timeframes}, nil
}

func (f *fakeLab) Available() ([]bars.Dataset, error) {
	return []bars.Dataset{{Symbol: "BTC/USDT", Timeframe: core.Timeframe1h, File: "BTC_USDT_1h.parquet"}}, nil
}

func (f *fakeLab) Ingest(ctx context.Context, symbol string, tf core.Timeframe, days int) (*app.IngestResult, error) {
	f.ingest = []any{symbol, tf, days}
	return &app.IngestResult{Symbol: symbol, Timeframe: tf, Fetched: 24}, nil
}

func (f *fakeLab) ListRuns(ctx context.Context, filter history.Filter) ([]history.Run, error) {
	f.filter = filter
	return []history.Run{{ID: "run-1"}}, nil
}

func (f *fakeLab) GetRun(ctx context.Context, id string) (*backtest.Result, error) {
	if id != "run-1" {
		return nil, core.WrapError(core.ErrNoData, nil)
	}
	return &backtest.Result{ID: id}, nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestBacktestHandler_Run(t *testing.T) {
	lab := &fakeLab{}
	h := NewBacktestHandler(lab, job.NewStore(10, time.Hour), nil, nil)

	body := bytes.NewBufferString(`{"symbol":"BTC/USDT","timeframe":"4h","strategy_name":"rsi","params":{"length":10},"sl_type":"percent","sl_value":5}`)
	w := httptest.NewRecorder()
	h.Run(w, httptest.NewRequest("POST", "/api/backtest/run", body))

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)
	assert.Equal(t, "run-1", data["id"])
	assert.Equal(t, core.Timeframe4h, lab.lastReq.Timeframe)
	assert.Equal(t, json.Number("10"), lab.lastReq.Params["length"])
	require.NotNil(t, lab.lastReq.Risk().StopLoss)
	assert.Equal(t, 5.0, lab.lastReq.Risk().StopLoss.Value)
}

func TestBacktestHandler_RunErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		runErr error
		status int
		code   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "CONFIG_INVALID"},
		{"missing symbol", `{"strategy_name":"rsi"}`, nil, http.StatusBadRequest, "CONFIG_MISSING"},
		{"no data", `{"symbol":"BTC"}`, core.ErrNoData, http.StatusNotFound, "NO_DATA"},
		{"unknown strategy", `{"symbol":"BTC"}`, core.ErrStrategyUnknown, http.StatusBadRequest, "STRATEGY_UNKNOWN"},
		{"timeout", `{"symbol":"BTC"}`, core.ErrRunTimeout, http.StatusGatewayTimeout, "RUN_TIMEOUT"},
		{"engine", `{"symbol":"BTC"}`, core.ErrEngineFailure, http.StatusInternalServerError, "ENGINE_FAILURE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBacktestHandler(&fakeLab{runErr: tt.runErr}, job.NewStore(10, time.Hour), nil, nil)
			w := httptest.NewRecorder()
			h.Run(w, httptest.NewRequest("POST", "/api/backtest/run", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestBacktestHandler_JobLifecycle(t *testing.T) {
	jobs := job.NewStore(10, time.Hour)
	h := NewBacktestHandler(&fakeLab{}, jobs, nil, nil)

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest("POST", "/api/backtest/jobs", bytes.NewBufferString(`{"symbol":"BTC/USDT"}`)))
	require.Equal(t, http.StatusAccepted, w.Code)
	data := decode(t, w)
	jobID, _ := data["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", data["status"])

	require.Eventually(t, func() bool {
		j, err := jobs.Get(jobID)
		return err == nil && j.Status == job.StatusComplete
	}, time.Second, 5*time.Millisecond)

	w = httptest.NewRecorder()
	h.GetStatus(w, httptest.NewRequest("GET", "/api/backtest/jobs/"+jobID, nil), jobID)
	require.Equal(t, http.StatusOK, w.Code)
	data = decode(t, w)
	assert.Equal(t, "complete", data["status"])
	assert.EqualValues(t, 100, data["progress"])
	assert.NotNil(t, data["result"])

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/backtest/jobs", nil))
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestBacktestHandler_FailedJob(t *testing.T) {
	jobs := job.NewStore(10, time.Hour)
	h := NewBacktestHandler(&fakeLab{runErr: core.WrapError(core.ErrNoData, nil)}, jobs, nil, nil)

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest("POST", "/api/backtest/jobs", bytes.NewBufferString(`{"symbol":"BTC/USDT"}`)))
	jobID := decode(t, w)["job_id"].(string)

	require.Eventually(t, func() bool {
		j, err := jobs.Get(jobID)
		return err == nil && j.Status == job.StatusFailed
	}, time.Second, 5*time.Millisecond)

	w = httptest.NewRecorder()
	h.GetStatus(w, httptest.NewRequest("GET", "/", nil), jobID)
	errDetail := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "NO_DATA", errDetail["code"])

	w = httptest.NewRecorder()
	h.GetStatus(w, httptest.NewRequest("GET", "/", nil), "job_missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_NOT_FOUND", errorCode(t, w))
}

func TestBacktestHandler_UpdateMissingJobIsLogged(t *testing.T) {
	obs, logs := observer.New(zapcore.ErrorLevel)
	h := NewBacktestHandler(&fakeLab{}, job.NewStore(10, time.Hour), nil, zap.New(obs))

	h.runJob("job_missing", app.Request{Symbol: "BTC/USDT"})

	entries := logs.FilterMessage("failed to update backtest job").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "job_missing", entries[0].ContextMap()["job_id"])
}

func TestMarketHandler(t *testing.T) {
	lab := &fakeLab{}
	h := NewMarketHandler(lab)

	w := httptest.NewRecorder()
	h.Discovery(w, httptest.NewRequest("GET", "/api/discovery", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["available_timeframes"], len(app.Timeframes))

	w = httptest.NewRecorder()
	h.Available(w, httptest.NewRequest("GET", "/api/market/available", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BTC_USDT_1h.parquet")

	w = httptest.NewRecorder()
	h.Ingest(w, httptest.NewRequest("POST", "/api/market/ingest?symbol=ETH/USDT&timeframe=4h&days=30", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"ETH/USDT", core.Timeframe4h, 30}, lab.ingest)

	w = httptest.NewRecorder()
	h.Ingest(w, httptest.NewRequest("POST", "/api/market/ingest?timeframe=4h", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.Ingest(w, httptest.NewRequest("POST", "/api/market/ingest?symbol=ETH&days=-2", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunsHandler(t *testing.T) {
	lab := &fakeLab{}
	h := NewRunsHandler(lab)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/runs?limit=5&symbol=BTC/USDT", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])
	assert.Equal(t, history.Filter{Symbol: "BTC/USDT", Limit: 5}, lab.filter)

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.Get(w, httptest.NewRequest("GET", "/api/runs/run-1", nil), "run-1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Get(w, httptest.NewRequest("GET", "/api/runs/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
