package notifier

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPush struct {
	event   string
	payload any
}

type fakeChannel struct {
	pushes []recordedPush
	err    error
}

func (that *fakeChannel) Send(event string, payload any) error {
	that.pushes = append(that.pushes, recordedPush{event: event, payload: payload})
	return that.err
}

func newRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_Notify(t *testing.T) {
	t.Run("Delivers to a registered channel", func(t *testing.T) {
		registry := newRegistry()
		channel := &fakeChannel{}
		registry.Register("alice", channel)

		// When: an event is pushed
		registry.Notify("alice", EventCellMarked, map[string]any{"number": 7})

		// Then: the channel received it
		require.Len(t, channel.pushes, 1)
		assert.Equal(t, EventCellMarked, channel.pushes[0].event)
	})

	t.Run("Drops events for users without an open channel", func(t *testing.T) {
		registry := newRegistry()

		// no panic, no delivery
		registry.Notify("offline", EventNewGameRequest, nil)
	})

	t.Run("A failing send does not propagate", func(t *testing.T) {
		registry := newRegistry()
		channel := &fakeChannel{err: errors.New("connection closed")}
		registry.Register("alice", channel)

		registry.Notify("alice", EventTurnSwitched, nil)

		assert.Len(t, channel.pushes, 1)
	})
}

func TestRegistry_Deregister(t *testing.T) {
	t.Run("Deregister silences the user", func(t *testing.T) {
		registry := newRegistry()
		channel := &fakeChannel{}
		registry.Register("alice", channel)

		registry.Deregister("alice", channel)
		registry.Notify("alice", EventCellMarked, nil)

		assert.Empty(t, channel.pushes)
	})

	t.Run("A stale handle cannot evict a reconnected channel", func(t *testing.T) {
		registry := newRegistry()
		old := &fakeChannel{}
		replacement := &fakeChannel{}

		// Given: the user reconnected before the old connection cleaned up
		registry.Register("alice", old)
		registry.Register("alice", replacement)

		// When: the old connection deregisters on its way out
		registry.Deregister("alice", old)

		// Then: the replacement still receives events
		registry.Notify("alice", EventCellMarked, nil)
		assert.Len(t, replacement.pushes, 1)
		assert.Empty(t, old.pushes)
	})
}
