// Package ws carries the live chat session over WebSocket.
//
// Every connection owns one services.ChatSession. Client requests are
// handled in order on the connection's read goroutine; the session pushes
// its view state back as chat_state events whenever it changes.
package ws

import "github.com/akinalp/runeshop/models"

// Event is the envelope of every frame in both directions.
//
// Seq increases with every outbound event of a connection so the client can
// spot gaps.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// ─── Operations ───

// Client → Server
const (
	OpHeartbeat               = "heartbeat"
	OpChatInit                = "chat_init"
	OpChatSend                = "chat_send"
	OpChatMarkRead            = "chat_mark_read"
	OpChatDelete              = "chat_delete"
	OpChatReset               = "chat_reset"
	OpAdminThreadsSubscribe   = "admin_threads_subscribe"
	OpAdminThreadsUnsubscribe = "admin_threads_unsubscribe"
)

// Server → Client
const (
	OpReady        = "ready"
	OpHeartbeatAck = "heartbeat_ack"
	OpChatState    = "chat_state"
	OpChatResult   = "chat_result"
	OpAdminThreads = "admin_threads"
)

// ─── Payloads ───

// ReadyData is sent on connect and again when the identity of the
// connection changes (logout).
type ReadyData struct {
	Identity *models.Identity `json:"identity"` // nil = guest
}

// ChatSendData is the payload of chat_send.
type ChatSendData struct {
	Text string `json:"text"`
}

// ChatDeleteData is the payload of chat_delete. An empty ThreadID deletes
// the active thread.
type ChatDeleteData struct {
	ThreadID string `json:"thread_id"`
}

// ChatResultData answers every chat_* request except chat_reset.
type ChatResultData struct {
	Op       string `json:"op"`
	OK       bool   `json:"ok"`
	ThreadID string `json:"thread_id,omitempty"`
}

// AdminThreadsData is one snapshot of the admin thread list.
type AdminThreadsData struct {
	Threads []models.ChatThread `json:"threads"`
}
