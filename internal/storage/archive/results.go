package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/newthinker/quantbench/internal/core"
)

// Results stores full run results as JSON documents under
//
//	runs/<BASE>_<QUOTE>/<strategy>/<run id>.json
type Results struct {
	store Storage
}

// NewResults wraps a backend. A nil backend yields a nil *Results.
func NewResults(store Storage) *Results {
	if store == nil {
		return nil
	}
	return &Results{store: store}
}

// ResultPath returns the object path of a run.
func ResultPath(symbol, strategy, id string) string {
	return fmt.Sprintf("runs/%s/%s/%s.json", segment(symbol), segment(strategy), segment(id))
}

// Put encodes v and stores it, returning the object path.
func (r *Results) Put(ctx context.Context, symbol, strategy, id string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding result %s: %w", id, err))
	}
	p := ResultPath(symbol, strategy, id)
	if err := r.store.Write(ctx, p, data); err != nil {
		return "", err
	}
	return p, nil
}

// Get decodes the object at path into v.
func (r *Results) Get(ctx context.Context, path string, v any) error {
	data, err := r.store.Read(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", path, err))
	}
	return nil
}

// List returns archived paths for symbol, optionally narrowed to strategy.
func (r *Results) List(ctx context.Context, symbol, strategy string) ([]string, error) {
	prefix := "runs"
	if symbol != "" {
		prefix += "/" + segment(symbol)
		if strategy != "" {
			prefix += "/" + segment(strategy)
		}
	}
	return r.store.List(ctx, prefix)
}

func segment(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}
