package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name   string
	err    error
	events []Event
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Notify(ctx context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&recorder{name: "b"}))
	require.NoError(t, reg.Register(&recorder{name: "a"}))

	assert.Error(t, reg.Register(&recorder{name: "a"}), "duplicate names are rejected")
	assert.Equal(t, []string{"a", "b"}, reg.Names())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_NotifyAll(t *testing.T) {
	ok := &recorder{name: "ok"}
	broken := &recorder{name: "broken", err: errors.New("unreachable")}
	reg := NewRegistry()
	require.NoError(t, reg.Register(ok))
	require.NoError(t, reg.Register(broken))

	errs := reg.NotifyAll(context.Background(), Event{Type: EventRunCompleted, RunID: "r1"})

	require.Len(t, errs, 1)
	assert.EqualError(t, errs["broken"], "unreachable")
	require.Len(t, ok.events, 1)
	assert.Equal(t, "r1", ok.events[0].RunID)
	assert.Len(t, broken.events, 1)
}

func TestRegistry_Empty(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.NotifyAll(context.Background(), Event{}))
	assert.Empty(t, reg.Names())
}
