// Package fanout delivers transition events to a user's live socket
// sessions: directly to sessions this process holds, and through a durable
// per-user Redis channel so sessions attached elsewhere receive them too.
// Delivery is best effort; an event with no audience is dropped.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Event names emitted to sessions.
const (
	EventSwapUpdate   = "swapUpdate"
	EventNotification = "notification"
)

// Envelope is the wire shape of every fanout event.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Session is one live socket attachment. Deliver must not block: a slow
// consumer drops its own events, never its siblings'.
type Session interface {
	ID() string
	Deliver(env Envelope) bool
}

// Broadcaster publishes an event to a user's broadcast channel. Satisfied
// by the redis client; nil-able for direct-only operation.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// sessionSet holds the sessions of one user. Mutated on connect/disconnect
// and read from reconciliation workers, so it carries its own lock.
type sessionSet struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func (ss *sessionSet) add(s Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.ID()] = s
}

func (ss *sessionSet) remove(sessionID string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, sessionID)
	return len(ss.sessions)
}

func (ss *sessionSet) snapshot() []Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]Session, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		out = append(out, s)
	}
	return out
}

// Fanout maintains the user-to-sessions index and emits events.
type Fanout struct {
	sessions    *xsync.Map[string, *sessionSet]
	broadcaster Broadcaster
	logger      *zap.Logger
}

// New creates a Fanout. broadcaster may be nil, in which case only
// directly-held sessions receive events.
func New(broadcaster Broadcaster, logger *zap.Logger) *Fanout {
	return &Fanout{
		sessions:    xsync.NewMap[string, *sessionSet](),
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// UserChannel is the Redis channel carrying a user's broadcast group.
func UserChannel(userID string) string {
	return fmt.Sprintf("swaps:user:%s:events", userID)
}

// Register attaches a session to a user. A user may hold any number of
// concurrent sessions.
func (f *Fanout) Register(userID string, s Session) {
	set, _ := f.sessions.LoadOrCompute(userID, func() (*sessionSet, bool) {
		return &sessionSet{sessions: make(map[string]Session)}, false
	})
	set.add(s)
	f.logger.Debug("Session registered",
		zap.String("userId", userID),
		zap.String("sessionId", s.ID()))
}

// Unregister detaches a session; the user's entry is pruned once empty.
func (f *Fanout) Unregister(userID, sessionID string) {
	set, ok := f.sessions.Load(userID)
	if !ok {
		return
	}
	if remaining := set.remove(sessionID); remaining == 0 {
		f.sessions.Delete(userID)
	}
	f.logger.Debug("Session unregistered",
		zap.String("userId", userID),
		zap.String("sessionId", sessionID))
}

// SessionCount returns the number of sessions held for a user.
func (f *Fanout) SessionCount(userID string) int {
	set, ok := f.sessions.Load(userID)
	if !ok {
		return 0
	}
	return len(set.snapshot())
}

// Emit delivers an event to the user's direct sessions and publishes it to
// the user's broadcast channel. A session subscribed to the channel while
// also held here receives the event on both paths; that redundancy is
// intentional and harmless at the application level.
func (f *Fanout) Emit(ctx context.Context, userID, event string, payload any) {
	env := Envelope{Event: event, Payload: payload}

	if set, ok := f.sessions.Load(userID); ok {
		for _, s := range set.snapshot() {
			if !s.Deliver(env) {
				f.logger.Warn("Dropped event for slow session",
					zap.String("userId", userID),
					zap.String("sessionId", s.ID()),
					zap.String("event", event))
			}
		}
	}

	if f.broadcaster == nil {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		f.logger.Error("Failed to encode fanout event",
			zap.String("userId", userID),
			zap.String("event", event),
			zap.Error(err))
		return
	}
	f.broadcaster.Publish(ctx, UserChannel(userID), raw)
}
