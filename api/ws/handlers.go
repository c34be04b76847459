package ws

import (
	"context"
	"encoding/json"

	"github.com/fusionchat/server/presence"
)

type pingPayload struct {
	ClientTS int64 `json:"client_ts"`
}

// RegisterHandlers wires the client-to-server message handlers. The
// realtime channel is push-oriented; the only inbound message is the
// application heartbeat.
func RegisterHandlers(router *Router) {
	router.On("ping", handlePing)
}

func handlePing(_ context.Context, s *presence.Session, payload json.RawMessage) error {
	var req pingPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return err
		}
	}
	s.SendHeartbeatPong(req.ClientTS)
	return nil
}
