package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/services"
)

const (
	writeWait = 10 * time.Second

	// pongWait is three missed 30s heartbeats.
	pongWait = 90 * time.Second

	// maxMessageSize fits a 2000-character message in multi-byte runes.
	maxMessageSize = 16 * 1024

	// sendBufferSize is how far a client may fall behind before it is
	// dropped.
	sendBufferSize = 256
)

// Client is one WebSocket connection and its chat session.
//
// ReadPump handles requests in arrival order; WritePump is the only writer
// of conn.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	admin   services.ChatAdminService
	session *services.ChatSession
	log     zerolog.Logger

	// ctx is cancelled when the connection goes away.
	ctx    context.Context
	cancel context.CancelFunc

	idMu     sync.RWMutex
	identity models.Identity

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	adminMu  sync.Mutex
	adminSub docstore.Subscription

	writeMu sync.Mutex
}

func newClient(hub *Hub, conn *websocket.Conn, admin services.ChatAdminService, identity models.Identity, log zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		admin:    admin,
		identity: identity,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBufferSize),
		log:      log,
	}
}

// Identity is the current identity of the connection. It is the
// IdentityFunc of the chat session.
func (c *Client) Identity() models.Identity {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.identity
}

func (c *Client) key() string {
	return c.Identity().UserID
}

// ReadPump reads requests until the connection fails, then tears the
// client down. It blocks.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("failed to set read deadline")
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Str("user_id", c.key()).Msg("unexpected close")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Debug().Err(err).Msg("invalid frame")
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("failed to renew read deadline")
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpChatInit:
		threadID := c.session.ResolveOrInitThread(c.ctx)
		c.sendResult(event.Op, c.session.State().Error == "", threadID)

	case OpChatSend:
		var data ChatSendData
		if !decodeData(event, &data) {
			c.sendResult(event.Op, false, "")
			return
		}
		ok := c.session.SendMessage(c.ctx, data.Text)
		c.sendResult(event.Op, ok, c.session.ThreadID())

	case OpChatMarkRead:
		ok := c.session.MarkReadByUser(c.ctx)
		c.sendResult(event.Op, ok, c.session.ThreadID())

	case OpChatDelete:
		var data ChatDeleteData
		if event.Data != nil && !decodeData(event, &data) {
			c.sendResult(event.Op, false, "")
			return
		}
		target := data.ThreadID
		if target == "" {
			target = c.session.ThreadID()
		}
		ok := c.session.DeleteChat(c.ctx, target)
		c.sendResult(event.Op, ok, target)

	case OpChatReset:
		c.session.ResetLocalState()

	case OpAdminThreadsSubscribe:
		c.sendResult(event.Op, c.watchAdminThreads(), "")

	case OpAdminThreadsUnsubscribe:
		c.stopAdminThreads()
		c.sendResult(event.Op, true, "")

	default:
		c.log.Debug().Str("op", event.Op).Msg("unknown op")
	}
}

// decodeData maps the untyped payload of event into v.
func decodeData(event Event, v any) bool {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (c *Client) sendResult(op string, ok bool, threadID string) {
	c.sendEvent(Event{
		Op:   OpChatResult,
		Data: ChatResultData{Op: op, OK: ok, ThreadID: threadID},
	})
}

// pushState is the OnChange callback of the chat session.
func (c *Client) pushState(state models.ChatState) {
	c.sendEvent(Event{Op: OpChatState, Data: state})
}

// ─── Admin thread list ───

func (c *Client) watchAdminThreads() bool {
	if !c.Identity().IsAdmin {
		return false
	}

	c.adminMu.Lock()
	defer c.adminMu.Unlock()
	if c.adminSub != nil {
		return true
	}

	c.adminSub = c.admin.SubscribeThreads(
		func(threads []models.ChatThread) {
			c.sendEvent(Event{Op: OpAdminThreads, Data: AdminThreadsData{Threads: threads}})
		},
		func(err error) {
			c.log.Error().Err(err).Msg("admin thread subscription failed")
		},
	)
	return true
}

func (c *Client) stopAdminThreads() {
	c.adminMu.Lock()
	defer c.adminMu.Unlock()
	if c.adminSub != nil {
		c.adminSub.Cancel()
		c.adminSub = nil
	}
}

// signOut turns the connection into a guest connection with an empty chat
// view.
func (c *Client) signOut() {
	c.idMu.Lock()
	c.identity = models.Identity{}
	c.idMu.Unlock()

	c.stopAdminThreads()
	c.session.ResetLocalState()
	c.sendEvent(Event{Op: OpReady, Data: ReadyData{}})
}

// close releases the session and subscriptions of a finished connection.
func (c *Client) close() {
	c.cancel()
	c.stopAdminThreads()
	c.session.Close()
}

// ─── Outbound ───

// sendEvent queues event without blocking. A client whose buffer is full is
// dropped.
func (c *Client) sendEvent(event Event) {
	data, err := c.hub.encode(event)
	if err != nil {
		c.log.Error().Err(err).Str("op", event.Op).Msg("failed to marshal event")
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn().Str("user_id", c.key()).Msg("send buffer full, dropping connection")
		c.hub.drop(c)
	}
}

// closeSend closes the send channel once; WritePump then closes the
// connection.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump writes queued events until the send channel is closed.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.writeMessage(websocket.CloseMessage, nil)
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
