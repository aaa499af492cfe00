package websocket

import (
	"chat-realtime/domain/event"
	"chat-realtime/runtime"
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Hub is the realtime core seen from the transport.
type Hub interface {
	Dispatch(ctx context.Context, c runtime.Client, in event.Inbound) error
	Disconnect(c runtime.Client)
}

// Client pumps frames between one websocket and the hub.
type Client struct {
	log    *slog.Logger
	hub    Hub
	conn   *websocket.Conn
	sink   *Sink
	client runtime.Client
}

func NewClient(log *slog.Logger, hub Hub, conn *websocket.Conn, sink *Sink, client runtime.Client) *Client {
	return &Client{
		log:    log.With("user_id", client.UserID, "connection_id", client.ConnectionID),
		hub:    hub,
		conn:   conn,
		sink:   sink,
		client: client,
	}
}

// Serve runs the write pump in the background and the read pump until the
// connection drops. The hub is told about the disconnect exactly once.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Disconnect(c.client)
		c.sink.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error("Failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected websocket close", "error", err)
			}
			return
		}
		var in event.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.log.Debug("Dropping unreadable frame", "error", err)
			continue
		}
		if err := c.hub.Dispatch(ctx, c.client, in); err != nil {
			c.log.Error("Event not applied", "event", in.Event, "error", err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.sink.Frames():
			if err := c.write(frame); err != nil {
				c.log.Debug("Failed to write frame", "error", err)
				return
			}
		case <-c.sink.Done():
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever was queued before the sink was closed.
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.sink.Frames():
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(frame event.Envelope) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
