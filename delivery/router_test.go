package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fusionchat/server/presence"
	"github.com/fusionchat/server/testutil"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// dialSession opens a real WebSocket pair and returns the server-side
// Session plus the client connection to read delivered events from.
func dialSession(t *testing.T, userID int64) (*presence.Session, *websocket.Conn) {
	t.Helper()
	sessCh := make(chan *presence.Session, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sessCh <- presence.NewSession(userID, "user", conn, zap.NewNop())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return <-sessCh, client
}

func readPacket(t *testing.T, client *websocket.Conn) presence.Packet {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pkt presence.Packet
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &pkt))
	return pkt
}

func TestNotifyOnlineUser(t *testing.T) {
	_, pubsub := testutil.SetupTestCache(t)
	reg := presence.NewRegistry(pubsub, zap.NewNop())
	router := NewRouter(reg, zap.NewNop())

	sess, client := dialSession(t, 1)
	reg.Register(sess)

	// Consume the presence snapshot pushed on register.
	pkt := readPacket(t, client)
	require.Equal(t, "presence_changed", pkt.Type)

	ok := router.Notify(1, EventNewMessage, map[string]string{"text": "hi"})
	assert.True(t, ok)

	pkt = readPacket(t, client)
	assert.Equal(t, EventNewMessage, pkt.Type)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(pkt.Payload, &payload))
	assert.Equal(t, "hi", payload["text"])
}

func TestNotifyOfflineUserIsNoop(t *testing.T) {
	_, pubsub := testutil.SetupTestCache(t)
	reg := presence.NewRegistry(pubsub, zap.NewNop())
	router := NewRouter(reg, zap.NewNop())

	ok := router.Notify(99, EventNewFriendRequest, map[string]string{"from": "x"})
	assert.False(t, ok)
}

func TestNotifyAll(t *testing.T) {
	_, pubsub := testutil.SetupTestCache(t)
	reg := presence.NewRegistry(pubsub, zap.NewNop())
	router := NewRouter(reg, zap.NewNop())

	sessA, clientA := dialSession(t, 1)
	reg.Register(sessA)
	readPacket(t, clientA) // presence snapshot

	sessB, clientB := dialSession(t, 2)
	reg.Register(sessB)
	readPacket(t, clientA) // second snapshot on A
	readPacket(t, clientB)

	router.NotifyAll(EventFriendRequestAccepted, map[string]int64{"id": 5})

	for _, client := range []*websocket.Conn{clientA, clientB} {
		pkt := readPacket(t, client)
		assert.Equal(t, EventFriendRequestAccepted, pkt.Type)
	}
}
