package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsEchoServer stands in for a concrete protocol's server side: no
// protocol in core ships with a live transport, so exercising
// Connection against a real async socket needs a fixture rather than a
// registered Protocol. It upgrades once and echoes every frame it reads
// until the client closes.
func wsEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
}

// wsConnection drives a Connection the way a real socket-backed Protocol
// would: Connect dials asynchronously and transitions on the outcome,
// Context().Done() aborts the read loop, and Disconnect tears the socket
// down.
type wsConnection struct {
	c    *Connection
	ws   *websocket.Conn
	echo chan string
}

func dialWS(t *testing.T, c *Connection, url string) *wsConnection {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")

	c.Transition(Connecting, nil)
	ws, _, err := websocket.DefaultDialer.DialContext(c.Context(), wsURL, nil)
	if err != nil {
		c.Transition(Disconnected, err)
		require.NoError(t, err)
		return nil
	}
	c.Transition(Connected, nil)

	wc := &wsConnection{c: c, ws: ws, echo: make(chan string, 8)}

	// Tear the socket down once the connection-wide context is cancelled.
	go func() {
		<-c.Context().Done()
		ws.Close()
	}()

	go func() {
		for {
			select {
			case <-c.Context().Done():
				return
			default:
			}
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			select {
			case wc.echo <- string(msg):
			case <-c.Context().Done():
				return
			}
		}
	}()

	return wc
}

func (wc *wsConnection) send(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, wc.ws.WriteMessage(websocket.TextMessage, []byte(text)))
}

func (wc *wsConnection) waitEcho(t *testing.T) string {
	t.Helper()
	select {
	case got := <-wc.echo:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo frame")
		return ""
	}
}

func TestWebsocketBackedConnectionLifecycle(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	c := New(context.Background())
	wc := dialWS(t, c, srv.URL)
	require.Equal(t, Connected, c.State())

	wc.send(t, "hello")
	assert.Equal(t, "hello", wc.waitEcho(t))

	c.Disconnect()
	assert.Equal(t, Disconnected, c.State())
	assert.Error(t, c.Context().Err())

	_, _, err := wc.ws.ReadMessage()
	assert.Error(t, err, "socket read must fail once the connection-wide context is cancelled")
}

func TestWebsocketBackedConnectionAbortsReadLoopOnCancel(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	c := New(context.Background())
	wc := dialWS(t, c, srv.URL)

	c.Disconnect()

	select {
	case <-wc.echo:
		t.Fatal("no frame should arrive after the context was cancelled")
	case <-time.After(100 * time.Millisecond):
	}
}
