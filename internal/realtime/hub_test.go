package realtime

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
)

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newServer(t *testing.T, h *Hub) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestPublishReachesOnlyTargetUser(t *testing.T) {
	h := NewHub(nil)
	srv := newServer(t, h)

	alice1 := dial(t, srv, "alice")
	alice2 := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitFor(t, func() bool { return h.Connections("alice") == 2 && h.Connections("bob") == 1 })

	h.Publish("alice", "message.new", map[string]string{"id": "m1"})

	for _, c := range []*websocket.Conn{alice1, alice2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := c.ReadMessage()
		require.NoError(t, err)
		var ev struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, "message.new", ev.Type)
		assert.Equal(t, "m1", ev.Data["id"])
	}

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestDisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	srv := newServer(t, h)

	c := dial(t, srv, "carol")
	waitFor(t, func() bool { return h.Connections("carol") == 1 })

	require.NoError(t, c.Close())
	waitFor(t, func() bool { return h.Connections("carol") == 0 })

	// publishing to a user with no connections is a no-op
	h.Publish("carol", "offer.updated", nil)
}

func TestCloseRefusesNewClients(t *testing.T) {
	h := NewHub(nil)
	srv := newServer(t, h)

	c := dial(t, srv, "dan")
	waitFor(t, func() bool { return h.Connections("dan") == 1 })
	h.Close()
	assert.Equal(t, 0, h.Connections("dan"))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)

	dial(t, srv, "dan")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.Connections("dan"))
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	h := NewHub(nil)
	c := &client{userID: "eve", send: make(chan []byte, 1)}
	require.True(t, h.register(c))

	h.Publish("eve", "a", nil)
	h.Publish("eve", "b", nil)
	assert.Len(t, c.send, 1)
}
