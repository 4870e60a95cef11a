package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
)

// ReconnectDelay is the fixed wait between reconnection attempts. Retries
// never stop; a terminal in the field must come back on its own.
const ReconnectDelay = 5 * time.Second

// probeFrame is the liveness probe. Deliberately not a ProtocolMessage so
// the controller can drop it without touching the flow.
type probeFrame struct {
	Type string `json:"type"`
}

// --- Control Channel Connector ---

// Connector owns the single logical socket to the remote flow controller.
// It exposes broadcast streams for connection state and inbound messages;
// all state transitions happen here and nowhere else.
type Connector struct {
	mu               sync.Mutex
	state            model.ConnectionState
	conn             *websocket.Conn
	endpoint         string
	closed           bool
	reconnectPending bool
	reconnectDelay   time.Duration

	writeMu sync.Mutex

	subMu     sync.Mutex
	stateSubs []chan model.ConnectionState
	msgSubs   []chan model.ProtocolMessage
}

func NewConnector(endpoint string) *Connector {
	return &Connector{
		endpoint:       endpoint,
		state:          model.StateDisconnected,
		reconnectDelay: ReconnectDelay,
	}
}

// Connect dials the controller. Already connected is a no-op. An empty
// endpoint reuses the last one.
func (c *Connector) Connect(endpoint string) error {
	c.mu.Lock()
	if c.state == model.StateConnected || c.state == model.StateConnecting {
		// Already up, or another dial is in flight.
		c.mu.Unlock()
		return nil
	}
	if endpoint != "" {
		c.endpoint = endpoint
	}
	target := c.endpoint
	c.closed = false
	c.setStateLocked(model.StateConnecting)
	c.mu.Unlock()

	log.Printf("[Connector] Connecting to %s...", target)
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		log.Printf("[Connector] Connection failed: %v. Retrying in %s...", err, c.reconnectDelay)
		c.setStateLocked(model.StateDisconnected)
		c.scheduleReconnectLocked()
		return err
	}
	if c.closed {
		// Disconnect raced the dial; drop the socket.
		conn.Close()
		return nil
	}
	c.conn = conn
	c.setStateLocked(model.StateConnected)
	log.Printf("[Connector] Connected.")
	go c.readLoop(conn)
	return nil
}

// Disconnect closes the socket if present and goes DISCONNECTED
// unconditionally. A deliberate disconnect does not trigger reconnects.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(model.StateDisconnected)
	log.Printf("[Connector] Disconnected.")
}

// EnsureConnected reconnects if the channel is down; when it is up it
// sends a fire-and-forget liveness probe instead. Probe outcome never
// changes connection state; the read loop is the authority on that.
func (c *Connector) EnsureConnected() {
	c.mu.Lock()
	connected := c.state == model.StateConnected
	conn := c.conn
	c.mu.Unlock()

	if !connected {
		_ = c.Connect("")
		return
	}
	c.writeMu.Lock()
	err := conn.WriteJSON(probeFrame{Type: "ping"})
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("[Connector] Liveness probe failed: %v", err)
	}
}

// Send writes one message to the controller. Returns false (never panics,
// never errors out) when the channel is not CONNECTED or the write fails.
func (c *Connector) Send(msg model.ProtocolMessage) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == model.StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		log.Printf("[Connector] Dropping %s message: not connected", msg.MessageType)
		return false
	}
	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("[Connector] Write failed: %v", err)
		return false
	}
	return true
}

func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == model.StateConnected
}

func (c *Connector) State() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// --- Broadcast Streams ---

// SubscribeState returns a stream of connection-state changes, primed
// with the current state.
func (c *Connector) SubscribeState() <-chan model.ConnectionState {
	ch := make(chan model.ConnectionState, 16)
	c.mu.Lock()
	ch <- c.state
	c.mu.Unlock()
	c.subMu.Lock()
	c.stateSubs = append(c.stateSubs, ch)
	c.subMu.Unlock()
	return ch
}

// SubscribeMessages returns a stream of inbound protocol messages.
func (c *Connector) SubscribeMessages() <-chan model.ProtocolMessage {
	ch := make(chan model.ProtocolMessage, 16)
	c.subMu.Lock()
	c.msgSubs = append(c.msgSubs, ch)
	c.subMu.Unlock()
	return ch
}

func (c *Connector) setStateLocked(s model.ConnectionState) {
	if c.state == s {
		return
	}
	c.state = s
	c.subMu.Lock()
	for _, ch := range c.stateSubs {
		select {
		case ch <- s:
		default: // slow subscriber, drop
		}
	}
	c.subMu.Unlock()
}

func (c *Connector) publish(msg model.ProtocolMessage) {
	c.subMu.Lock()
	for _, ch := range c.msgSubs {
		select {
		case ch <- msg:
		default:
		}
	}
	c.subMu.Unlock()
}

// --- Read Loop & Reconnection ---

func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[Connector] Read error: %v", err)
			c.handleClosed(conn)
			return
		}
		var msg model.ProtocolMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[Connector] Malformed frame, skipping: %v", err)
			continue
		}
		c.publish(msg)
	}
}

func (c *Connector) handleClosed(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		return
	}
	c.conn = nil
	c.setStateLocked(model.StateDisconnected)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms a single reconnection attempt after the
// fixed delay. At most one attempt may be pending, and it only fires if
// the connector is still DISCONNECTED by then.
func (c *Connector) scheduleReconnectLocked() {
	if c.closed || c.reconnectPending {
		return
	}
	c.reconnectPending = true
	log.Printf("[Connector] Reconnecting in %s...", c.reconnectDelay)
	time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectPending = false
		if c.closed || c.state != model.StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		_ = c.Connect("")
	})
}
