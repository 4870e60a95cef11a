package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
)

// controllerStub is a minimal control-channel server for connector tests.
type controllerStub struct {
	srv      *httptest.Server
	upgrades atomic.Int32
	inbound  chan []byte

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newControllerStub(t *testing.T) *controllerStub {
	t.Helper()
	cs := &controllerStub{inbound: make(chan []byte, 32)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs.upgrades.Add(1)
		cs.mu.Lock()
		cs.conns = append(cs.conns, conn)
		cs.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cs.inbound <- raw
		}
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *controllerStub) url() string {
	return "ws" + strings.TrimPrefix(cs.srv.URL, "http")
}

func (cs *controllerStub) send(t *testing.T, v any) {
	t.Helper()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.conns) == 0 {
		t.Fatal("no client connected")
	}
	if err := cs.conns[len(cs.conns)-1].WriteJSON(v); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func (cs *controllerStub) sendRaw(t *testing.T, raw string) {
	t.Helper()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.conns[len(cs.conns)-1].WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func (cs *controllerStub) dropClient() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.conns {
		c.Close()
	}
	cs.conns = nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnectorConnectAndSend(t *testing.T) {
	cs := newControllerStub(t)
	c := NewConnector(cs.url())

	if err := c.Connect(""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("expected CONNECTED")
	}
	// Connecting again is a no-op.
	if err := c.Connect(""); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if got := cs.upgrades.Load(); got != 1 {
		t.Fatalf("expected 1 upgrade, got %d", got)
	}

	msg := model.NewMessage(model.MessageTypeUserAction, "AMOUNT_SELECT", "tx-1", model.ActionData{Action: model.ActionAmountSelect, Amount: 10})
	if !c.Send(msg) {
		t.Fatal("send should succeed while connected")
	}
	select {
	case raw := <-cs.inbound:
		if !strings.Contains(string(raw), `"USER_ACTION"`) {
			t.Fatalf("unexpected frame: %s", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive the message")
	}

	c.Disconnect()
	if c.State() != model.StateDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", c.State())
	}
}

func TestConnectorSendWhileDisconnected(t *testing.T) {
	t.Parallel()

	c := NewConnector("ws://127.0.0.1:1/never")
	if c.Send(model.NewMessage(model.MessageTypeUserAction, "", "tx", nil)) {
		t.Fatal("send must fail when not connected")
	}
}

func TestConnectorReconnectsOnceAfterDelay(t *testing.T) {
	cs := newControllerStub(t)
	c := NewConnector(cs.url())
	c.reconnectDelay = 150 * time.Millisecond

	if err := c.Connect(""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	cs.dropClient()
	waitFor(t, time.Second, func() bool { return c.State() == model.StateDisconnected })

	// No attempt before the fixed delay elapses.
	time.Sleep(75 * time.Millisecond)
	if got := cs.upgrades.Load(); got != 1 {
		t.Fatalf("reconnected too early: %d upgrades", got)
	}

	waitFor(t, time.Second, func() bool { return cs.upgrades.Load() == 2 })
	waitFor(t, time.Second, c.IsConnected)

	// Exactly one attempt was scheduled.
	time.Sleep(2 * c.reconnectDelay)
	if got := cs.upgrades.Load(); got != 2 {
		t.Fatalf("expected exactly one reconnect, got %d upgrades", got)
	}
}

func TestConnectorDefaultReconnectDelay(t *testing.T) {
	t.Parallel()

	if ReconnectDelay != 5*time.Second {
		t.Fatalf("reconnect delay changed: %s", ReconnectDelay)
	}
}

func TestConnectorBroadcastsInbound(t *testing.T) {
	cs := newControllerStub(t)
	c := NewConnector(cs.url())
	msgs := c.SubscribeMessages()

	if err := c.Connect(""); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Malformed frames are skipped without killing the connection.
	cs.sendRaw(t, "{not json")
	cs.send(t, model.NewMessage(model.MessageTypeScreenChange, "AMOUNT_SELECT", "tx-9", nil))

	select {
	case got := <-msgs:
		if got.MessageType != model.MessageTypeScreenChange || got.Screen != "AMOUNT_SELECT" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	if !c.IsConnected() {
		t.Fatal("malformed frame must not drop the connection")
	}
}

func TestConnectorStateStream(t *testing.T) {
	cs := newControllerStub(t)
	c := NewConnector(cs.url())
	states := c.SubscribeState()

	if got := <-states; got != model.StateDisconnected {
		t.Fatalf("expected primed DISCONNECTED, got %s", got)
	}
	if err := c.Connect(""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := <-states; got != model.StateConnecting {
		t.Fatalf("expected CONNECTING, got %s", got)
	}
	if got := <-states; got != model.StateConnected {
		t.Fatalf("expected CONNECTED, got %s", got)
	}
}

func TestConnectorLivenessProbe(t *testing.T) {
	cs := newControllerStub(t)
	c := NewConnector(cs.url())

	if err := c.Connect(""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.EnsureConnected()

	select {
	case raw := <-cs.inbound:
		if strings.TrimSpace(string(raw)) != `{"type":"ping"}` {
			t.Fatalf("unexpected probe frame: %s", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("no probe received")
	}
}

func TestConnectorEnsureConnectedDials(t *testing.T) {
	cs := newControllerStub(t)
	c := NewConnector(cs.url())

	c.EnsureConnected()
	waitFor(t, time.Second, c.IsConnected)
	if got := cs.upgrades.Load(); got != 1 {
		t.Fatalf("expected 1 upgrade, got %d", got)
	}
}
