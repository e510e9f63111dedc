// Package gateway manages each client's live push channel: registration,
// join/leave, disconnect cleanup and delivery of fanned-out messages.
//
// Delivery is at-most-once and best-effort: a message enqueued for a
// connection that is gone, slow or already closed is silently dropped. An
// offline client catches up through history retrieval, not redelivery.
package gateway

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groupcast/internal/directory"
	"groupcast/internal/model"
)

// EventNewMessage is the frame type pushed to subscribers after a commit.
const EventNewMessage = "new_message"

// sendBuffer bounds the per-connection outbound queue. A connection that
// falls further behind than this starts losing messages.
const sendBuffer = 64

// Conn is the transport-level write side of one client connection.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Event is the envelope written to the push channel.
type Event struct {
	Event string        `json:"event"`
	Data  model.Message `json:"data"`
}

type connection struct {
	id       string
	sock     Conn
	outbound chan Event
}

// Gateway tracks live connections. Every connection owns a buffered outbound
// queue drained by a single writer goroutine, so delivery to one connection
// is serialized in enqueue order.
type Gateway struct {
	log       zerolog.Logger
	directory *directory.Directory

	mu    sync.RWMutex
	conns map[string]*connection
}

func New(dir *directory.Directory, log zerolog.Logger) *Gateway {
	return &Gateway{
		log:       log.With().Str("component", "gateway").Logger(),
		directory: dir,
		conns:     make(map[string]*connection),
	}
}

// Register adds a connected client and returns its connection id. A fresh
// connection holds no subscriptions.
func (g *Gateway) Register(sock Conn) string {
	c := &connection{
		id:       uuid.NewString(),
		sock:     sock,
		outbound: make(chan Event, sendBuffer),
	}

	g.mu.Lock()
	g.conns[c.id] = c
	total := len(g.conns)
	g.mu.Unlock()

	go g.writeLoop(c)

	g.log.Info().Str("conn_id", c.id).Int("total", total).Msg("connection registered")
	return c.id
}

// Join subscribes the connection to a group. Idempotent.
func (g *Gateway) Join(connID, groupID string) {
	g.directory.Join(connID, groupID)
	g.log.Debug().Str("conn_id", connID).Str("group_id", groupID).Msg("joined group")
}

// Leave removes the subscription. Idempotent.
func (g *Gateway) Leave(connID, groupID string) {
	g.directory.Leave(connID, groupID)
	g.log.Debug().Str("conn_id", connID).Str("group_id", groupID).Msg("left group")
}

// Disconnect drops every subscription of the connection and forgets it.
// Called unconditionally on transport closure, voluntary or not. Safe to
// call more than once.
func (g *Gateway) Disconnect(connID string) {
	g.directory.RemoveConnection(connID)

	g.mu.Lock()
	c, ok := g.conns[connID]
	if ok {
		delete(g.conns, connID)
		close(c.outbound)
	}
	total := len(g.conns)
	g.mu.Unlock()

	if ok {
		g.log.Info().Str("conn_id", connID).Int("total", total).Msg("connection removed")
	}
}

// Deliver enqueues a committed message for one connection. A missing
// connection or a full queue makes this a no-op: no error surfaces to the
// sender, no retry, no queueing for later.
func (g *Gateway) Deliver(connID string, msg model.Message) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.conns[connID]
	if !ok {
		return
	}

	select {
	case c.outbound <- Event{Event: EventNewMessage, Data: msg}:
	default:
		g.log.Warn().Str("conn_id", connID).Int64("message_id", msg.ID).Msg("outbound queue full, message dropped")
	}
}

// writeLoop is the single writer for one connection. A write failure closes
// the connection and cleans up its subscriptions.
func (g *Gateway) writeLoop(c *connection) {
	for ev := range c.outbound {
		if err := c.sock.WriteJSON(ev); err != nil {
			g.log.Debug().Str("conn_id", c.id).Err(err).Msg("write failed, dropping connection")
			g.Disconnect(c.id)
			break
		}
	}
	c.sock.Close()
}
