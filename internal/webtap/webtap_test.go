package webtap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, srv
}

func TestBroadcastDeliversToConnectedClient(t *testing.T) {
	h := NewHub(nil)
	conn, srv := dialHub(t, h)
	defer srv.Close()
	defer conn.Close()

	waitForClientCount(t, h, 1)

	var f frame.Frame
	f.Channel = frame.ChanDebug
	f.SetData([]byte("hello"))
	h.Broadcast(&f)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := hostlink.EncodeMessage(&f)
	if string(msg) != string(want) {
		t.Errorf("received message = %v, want %v", msg, want)
	}
}

func TestBroadcastWithNoClientsDoesNotPanic(t *testing.T) {
	h := NewHub(nil)
	var f frame.Frame
	f.Channel = frame.ChanMarker
	h.Broadcast(&f)
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	h := NewHub(nil)
	conn, srv := dialHub(t, h)
	defer srv.Close()
	defer conn.Close()

	waitForClientCount(t, h, 1)

	// Flood the client's buffer without it ever reading, so both the
	// send channel and the underlying socket buffer back up and the
	// broadcast finds the channel full and drops it.
	var f frame.Frame
	f.Channel = frame.ChanDebug
	f.SetData(make([]byte, 250))
	for i := 0; i < 10*sendBuffer; i++ {
		h.Broadcast(&f)
	}

	waitForClientCount(t, h, 0)
}

func waitForClientCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.clientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d, got %d", want, h.clientCount())
}
