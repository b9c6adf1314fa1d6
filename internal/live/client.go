package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// InboundHandler receives researcher/participant events read off the socket.
type InboundHandler func(ctx context.Context, sessionID string, event Event)

// Client is one websocket connection attached to the hub.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	topics    []string

	// Send carries serialized events toward the socket. Closed by the hub.
	Send chan []byte

	ctx     context.Context
	cancel  context.CancelFunc
	inbound InboundHandler
	log     *zap.Logger

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. topics lists the bus topics this
// client receives; inbound handles events the peer sends (may be nil for
// receive-only sockets).
func NewClient(conn *websocket.Conn, sessionID string, topics []string, inbound InboundHandler, log *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:      conn,
		sessionID: sessionID,
		topics:    topics,
		Send:      make(chan []byte, sendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		inbound:   inbound,
		log:       log,
	}
	return c
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

// ReadPump consumes frames from the peer until the connection drops. ping
// events are answered directly; everything else goes to the inbound handler.
// Must run on its own goroutine; unregisters the client on exit.
func (c *Client) ReadPump(hub *Hub) {
	defer hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.log.Warn("unparseable live event", zap.String("session_id", c.sessionID), zap.Error(err))
			continue
		}

		if event.Type == EventPing {
			pong, _ := json.Marshal(Event{Type: EventPong, SessionID: c.sessionID, Timestamp: time.Now().UTC()})
			select {
			case c.Send <- pong:
			default:
			}
			continue
		}

		if c.inbound != nil {
			if event.SessionID == "" {
				event.SessionID = c.sessionID
			}
			c.inbound(c.ctx, c.sessionID, event)
		}
	}
}

// WritePump flushes the send channel to the socket and keeps the connection
// alive with periodic pings. Must run on its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
