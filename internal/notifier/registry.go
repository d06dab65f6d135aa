package notifier

import (
	"log/slog"
	"sync"
)

// Event names pushed to participants on every match state change.
const (
	EventNewGameRequest      = "newGameRequest"
	EventGameRequestAccepted = "gameRequestAccepted"
	EventGameRequestRejected = "gameRequestRejected"
	EventCellMarked          = "cellMarked"
	EventTurnSwitched        = "turnSwitched"
	EventOpponentLeft        = "opponentLeft"
)

// Channel is one user's open push connection. Send must be safe for
// concurrent use.
type Channel interface {
	Send(event string, payload any) error
}

// Registry is the presence directory: it maps a user id onto its current
// channel handle. The transport owns the lifecycle - register on connect,
// deregister on disconnect. Delivery is fire-and-forget; a user without an
// open channel simply misses the event, the synchronous HTTP response stays
// authoritative.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[string]Channel
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("component", "notifier"),
		channels: make(map[string]Channel),
	}
}

func (that *Registry) Register(userID string, channel Channel) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.channels[userID] = channel
}

// Deregister removes the user's channel, but only if it is still the given
// handle - a reconnect may already have replaced it.
func (that *Registry) Deregister(userID string, channel Channel) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.channels[userID] == channel {
		delete(that.channels, userID)
	}
}

// Notify delivers one event to the user's channel if one is open, and drops
// it otherwise. No retry, no queue.
func (that *Registry) Notify(userID, event string, payload any) {
	that.mu.RLock()
	channel := that.channels[userID]
	that.mu.RUnlock()

	if channel == nil {
		that.logger.Debug("no open channel, event dropped", "user", userID, "event", event)
		return
	}

	if err := channel.Send(event, payload); err != nil {
		that.logger.Warn("failed to push event", "user", userID, "event", event, "error", err)
	}
}
