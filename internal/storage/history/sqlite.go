// Package history keeps a queryable record of completed backtest runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/newthinker/quantbench/internal/core"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Run is one history row.
type Run struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	Symbol          string         `json:"symbol"`
	Timeframe       string         `json:"timeframe"`
	Strategy        string         `json:"strategy"`
	Params          map[string]any `json:"params,omitempty"`
	Scenario        string         `json:"scenario,omitempty"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	Bars            int            `json:"bars"`
	TotalReturn     float64        `json:"total_return"`
	BenchmarkReturn float64        `json:"benchmark_return"`
	SharpeRatio     float64        `json:"sharpe_ratio"`
	MaxDrawdown     float64        `json:"max_drawdown"`
	PValue          float64        `json:"p_value"`
	Trades          int            `json:"trades"`
	Verdict         string         `json:"verdict"`
	ArchivePath     string         `json:"archive_path,omitempty"`
	ElapsedMS       int64          `json:"elapsed_ms"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	created_at       INTEGER NOT NULL,
	symbol           TEXT NOT NULL,
	timeframe        TEXT NOT NULL,
	strategy         TEXT NOT NULL,
	params           TEXT NOT NULL DEFAULT '{}',
	scenario         TEXT NOT NULL DEFAULT '',
	start_ts         INTEGER NOT NULL,
	end_ts           INTEGER NOT NULL,
	bars             INTEGER NOT NULL,
	total_return     REAL NOT NULL,
	benchmark_return REAL NOT NULL,
	sharpe_ratio     REAL NOT NULL,
	max_drawdown     REAL NOT NULL,
	p_value          REAL NOT NULL,
	trades           INTEGER NOT NULL,
	verdict          TEXT NOT NULL,
	archive_path     TEXT NOT NULL DEFAULT '',
	elapsed_ms       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_symbol_strategy ON runs(symbol, strategy);
`

const columns = `id, created_at, symbol, timeframe, strategy, params, scenario,
	start_ts, end_ts, bars, total_return, benchmark_return, sharpe_ratio,
	max_drawdown, p_value, trades, verdict, archive_path, elapsed_ms`

// Store is a SQLite backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	// a single connection keeps :memory: databases shared and serialises writes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("migrating: %w", err))
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a run.
func (s *Store) Save(ctx context.Context, r Run) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if r.Params == nil {
		params = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixMilli(), r.Symbol, r.Timeframe, r.Strategy, string(params), r.Scenario,
		r.Start.UnixMilli(), r.End.UnixMilli(), r.Bars, finite(r.TotalReturn), finite(r.BenchmarkReturn), finite(r.SharpeRatio),
		finite(r.MaxDrawdown), finite(r.PValue), r.Trades, r.Verdict, r.ArchivePath, r.ElapsedMS,
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving run %s: %w", r.ID, err))
	}
	return nil
}

// Get returns the run with id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, core.WrapError(core.ErrNoData, fmt.Errorf("run %s", id))
	}
	if err != nil {
		return Run{}, core.WrapError(core.ErrStorageFailed, err)
	}
	return r, nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Symbol   string
	Strategy string
	Limit    int
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM runs
		WHERE (? = '' OR symbol = ?) AND (? = '' OR strategy = ?)
		ORDER BY created_at DESC, id LIMIT ?`,
		f.Symbol, f.Symbol, f.Strategy, f.Strategy, f.Limit,
	)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return out, nil
}

// finite maps non-finite values to zero; SQLite stores NaN as NULL.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Run, error) {
	var (
		r                   Run
		created, start, end     int64
		params              string
	)
	err := sc.Scan(&r.ID, &created, &r.Symbol, &r.Timeframe, &r.Strategy, &params, &r.Scenario,
		&start, &end, &r.Bars, &r.TotalReturn, &r.BenchmarkReturn, &r.SharpeRatio,
		&r.MaxDrawdown, &r.PValue, &r.Trades, &r.Verdict, &r.ArchivePath, &r.ElapsedMS)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.Start = time.UnixMilli(start).UTC()
	r.End = time.UnixMilli(end).UTC()
	if params != "" && params != "{}" {
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return Run{}, fmt.Errorf("decoding params of %s: %w", r.ID, err)
		}
	}
	return r, nil
}
