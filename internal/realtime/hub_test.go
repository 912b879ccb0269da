package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/middleware"
)

// server exposes the hub with the user taken from ?user= in place of a JWT.
func server(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.GET("/ws", h.Serve, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", c.QueryParam("user"))
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_PushReachesEverySocketOfUser(t *testing.T) {
	h := NewHub()
	srv := server(t, h)

	a := dial(t, srv, "ana")
	defer a.Close()
	b := dial(t, srv, "ana")
	defer b.Close()
	other := dial(t, srv, "pablo")
	defer other.Close()

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients["ana"]) == 2 && len(h.clients["pablo"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	n := h.Push("ana", Message{Type: "new_interest", Data: map[string]any{"request_id": "r1"}})
	assert.Equal(t, 2, n)

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		assert.Equal(t, "new_interest", m.Type)
	}

	assert.Equal(t, 0, h.Push("nobody", Message{Type: "x"}))
}

func TestHub_OnlineTracksConnections(t *testing.T) {
	h := NewHub()
	srv := server(t, h)
	assert.False(t, h.Online("ana"))

	conn := dial(t, srv, "ana")
	require.Eventually(t, func() bool { return h.Online("ana") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !h.Online("ana") }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_FullBufferDropsFrames(t *testing.T) {
	h := NewHub()
	c := &client{userID: "ana", send: make(chan []byte, 1)}
	h.register(c)

	assert.Equal(t, 1, h.Push("ana", Message{Type: "first"}))
	assert.Equal(t, 0, h.Push("ana", Message{Type: "second"}), "nobody drains the buffer")

	h.unregister(c)
	assert.False(t, h.Online("ana"))
	assert.Equal(t, 0, h.Push("ana", Message{Type: "third"}))
}

func TestHub_RequiresUser(t *testing.T) {
	h := NewHub()
	srv := server(t, h)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
