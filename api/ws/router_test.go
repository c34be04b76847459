package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fusionchat/server/presence"
)

func testSession() *presence.Session {
	return presence.NewDetachedSession(1, "tester", zap.NewNop())
}

func TestDispatchRoutesByType(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var got string
	r.On("hello", func(_ context.Context, _ *presence.Session, payload json.RawMessage) error {
		got = string(payload)
		return nil
	})

	r.Dispatch(testSession(), []byte(`{"type":"hello","payload":{"x":1}}`))
	assert.JSONEq(t, `{"x":1}`, got)
}

func TestDispatchMalformedPacket(t *testing.T) {
	r := NewRouter(zap.NewNop())
	// Must not panic.
	r.Dispatch(testSession(), []byte(`not json`))
}

func TestDispatchUnknownType(t *testing.T) {
	r := NewRouter(zap.NewNop())
	// Must not panic.
	r.Dispatch(testSession(), []byte(`{"type":"nope"}`))
}

func TestDispatchSeqReplayRejected(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var calls int
	r.On("op", func(context.Context, *presence.Session, json.RawMessage) error {
		calls++
		return nil
	})

	s := testSession()
	r.Dispatch(s, []byte(`{"seq":5,"type":"op"}`))
	r.Dispatch(s, []byte(`{"seq":5,"type":"op"}`)) // replay
	r.Dispatch(s, []byte(`{"seq":4,"type":"op"}`)) // out of order
	r.Dispatch(s, []byte(`{"seq":6,"type":"op"}`))

	assert.Equal(t, 2, calls)
}

func TestDispatchAssignsTraceID(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var traceID string
	r.On("op", func(ctx context.Context, _ *presence.Session, _ json.RawMessage) error {
		traceID = TraceIDFromCtx(ctx)
		return nil
	})

	s := testSession()
	r.Dispatch(s, []byte(`{"type":"op"}`))
	assert.NotEmpty(t, traceID)
	assert.Equal(t, s.TraceID, traceID)
}

func TestPingHandlerRepliesWithPong(t *testing.T) {
	r := NewRouter(zap.NewNop())
	RegisterHandlers(r)

	s := testSession()
	r.Dispatch(s, []byte(`{"type":"ping","payload":{"client_ts":123}}`))

	require.Len(t, s.SendChan, 1)
	var pkt presence.Packet
	require.NoError(t, json.Unmarshal(<-s.SendChan, &pkt))
	assert.Equal(t, "pong", pkt.Type)

	var pong struct {
		ClientTS int64 `json:"client_ts"`
		ServerTS int64 `json:"server_ts"`
	}
	require.NoError(t, json.Unmarshal(pkt.Payload, &pong))
	assert.Equal(t, int64(123), pong.ClientTS)
	assert.NotZero(t, pong.ServerTS)
}
