package presence

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/fusionchat/server/cache"
)

// PresenceChannel is the pub/sub channel carrying online-user snapshots.
const PresenceChannel = "presence"

// Registry tracks which users currently hold a live WebSocket session.
// At most one session per user: a new connection displaces the old one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	pubsub cache.PubSub
	logger *zap.Logger
}

func NewRegistry(pubsub cache.PubSub, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		pubsub:   pubsub,
		logger:   logger,
	}
}

// Register binds a session to its user. If the user already has a live
// session the old one is closed and replaced (last connection wins).
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	old, existed := r.sessions[s.UserID]
	r.sessions[s.UserID] = s
	r.mu.Unlock()

	if existed && old != s {
		old.Close()
		r.logger.Info("session displaced by new connection",
			zap.Int64("user_id", s.UserID))
	}
	r.logger.Info("session registered",
		zap.Int64("user_id", s.UserID),
		zap.String("display_name", s.DisplayName))

	r.broadcastPresence()
}

// Unregister removes the user's session only if it is still the one
// given. A displaced session unregistering late must not evict its
// replacement.
func (r *Registry) Unregister(userID int64, s *Session) {
	r.mu.Lock()
	cur, ok := r.sessions[userID]
	if !ok || cur != s {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	s.Close()
	r.logger.Info("session unregistered", zap.Int64("user_id", userID))

	r.broadcastPresence()
}

// Get returns the live session for a user, or nil.
func (r *Registry) Get(userID int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[userID]
}

// IsOnline reports whether the user has a live session.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// OnlineIDs returns a snapshot of all online user IDs.
func (r *Registry) OnlineIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast sends a packet to every live session.
func (r *Registry) Broadcast(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	for _, s := range targets {
		s.SendRaw(data)
	}
}

// CloseAll closes every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[int64]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

type presencePayload struct {
	UserIDs []int64 `json:"user_ids"`
}

// broadcastPresence pushes the current online snapshot to every session
// and publishes it on the presence pub/sub channel.
func (r *Registry) broadcastPresence() {
	ids := r.OnlineIDs()
	payload, err := json.Marshal(presencePayload{UserIDs: ids})
	if err != nil {
		return
	}
	r.Broadcast(&Packet{Type: "presence_changed", Payload: payload})

	if r.pubsub != nil {
		if err := r.pubsub.Publish(context.Background(), PresenceChannel, string(payload)); err != nil {
			r.logger.Warn("presence publish failed", zap.Error(err))
		}
	}
}
