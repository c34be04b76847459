package delivery

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fusionchat/server/presence"
)

// Event types pushed to clients.
const (
	EventNewMessage            = "new_message"
	EventNewFriendRequest      = "new_friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
)

// Router delivers realtime events to online users. Delivery is
// best-effort, at most once: offline recipients and full send buffers
// lose the event, the durable record stays in the database.
type Router struct {
	registry *presence.Registry
	logger   *zap.Logger
}

func NewRouter(registry *presence.Registry, logger *zap.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Notify pushes one event to one user. Returns true if the user had a
// live session and the packet was queued (or dropped on a full buffer,
// which still counts as an attempt).
func (r *Router) Notify(userID int64, event string, payload any) bool {
	s := r.registry.Get(userID)
	if s == nil {
		return false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("notify payload marshal failed",
			zap.String("event", event),
			zap.Error(err))
		return false
	}
	s.Send(&presence.Packet{Type: event, Payload: data})
	r.logger.Debug("event delivered",
		zap.Int64("user_id", userID),
		zap.String("event", event))
	return true
}

// NotifyAll pushes one event to every online user.
func (r *Router) NotifyAll(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("broadcast payload marshal failed",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	r.registry.Broadcast(&presence.Packet{Type: event, Payload: data})
}
