package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/pkg/email"
	"github.com/akinalp/runeshop/pkg/logger"
	"github.com/akinalp/runeshop/pkg/ratelimit"
)

// Document layout of the support chat:
//
//	chats/{threadID}                     models.ChatThread
//	chats/{threadID}/messages/{msgID}    models.ChatMessage
const (
	chatsCollection = "chats"

	fieldUserID        = "userId"
	fieldUserEmail     = "userEmail"
	fieldCreatedAt     = "createdAt"
	fieldUpdatedAt     = "updatedAt"
	fieldLastMessage   = "lastMessage"
	fieldUnreadByAdmin = "unreadByAdmin"
	fieldUnreadByUser  = "unreadByUser"
	fieldIsGuest       = "isGuest"

	fieldText        = "text"
	fieldSenderID    = "senderId"
	fieldSenderEmail = "senderEmail"
	fieldIsUser      = "isUser"
	fieldTimestamp   = "timestamp"
	fieldReadByAdmin = "readByAdmin"
	fieldReadByUser  = "readByUser"

	// guestSenderID is the senderId of every guest message.
	guestSenderID = "guest"

	notifyTimeout = 10 * time.Second
)

func threadPath(threadID string) string {
	return docstore.Doc(chatsCollection, threadID)
}

func messagesCollection(threadID string) string {
	return docstore.Collection(chatsCollection, threadID, "messages")
}

func messagePath(threadID, messageID string) string {
	return docstore.Doc(chatsCollection, threadID, "messages", messageID)
}

// validThreadID rejects ids that would address another part of the store.
func validThreadID(threadID string) error {
	if threadID == "" || strings.Contains(threadID, "/") {
		return fmt.Errorf("%w: invalid thread id", pkg.ErrBadRequest)
	}
	return nil
}

// IdentityFunc reports who is using a chat session right now.
type IdentityFunc func() models.Identity

// ChatService owns the collaborators shared by every chat session.
type ChatService struct {
	store      docstore.Store
	notifier   email.ChatNotifier // nil = no admin emails
	limiter    *ratelimit.MessageRateLimiter
	guestEmail string
	now        func() time.Time
	log        zerolog.Logger
}

// NewChatService wires the chat core. notifier may be nil.
func NewChatService(
	store docstore.Store,
	notifier email.ChatNotifier,
	limiter *ratelimit.MessageRateLimiter,
	guestEmail string,
) *ChatService {
	return &ChatService{
		store:      store,
		notifier:   notifier,
		limiter:    limiter,
		guestEmail: guestEmail,
		now:        time.Now,
		log:        logger.Module("chat"),
	}
}

// SessionConfig configures one chat session.
type SessionConfig struct {
	// Identity is consulted on every operation.
	Identity IdentityFunc
	// ClientKey identifies an anonymous client (its IP) for rate limiting.
	ClientKey string
	// OnChange receives the view state after every change. Calls are
	// serialised and never carry an older state than a previous call.
	OnChange func(models.ChatState)
}

// NewSession starts an empty chat session. Close it when the client goes
// away.
func (s *ChatService) NewSession(cfg SessionConfig) *ChatSession {
	ctx, cancel := context.WithCancel(context.Background())
	identity := cfg.Identity
	if identity == nil {
		identity = func() models.Identity { return models.Identity{} }
	}

	return &ChatSession{
		svc:       s,
		identity:  identity,
		clientKey: cfg.ClientKey,
		onChange:  cfg.OnChange,
		ctx:       ctx,
		cancel:    cancel,
		messages:  []models.ChatMessage{},
		log:       s.log,
	}
}

// ─── Shared store operations ───

// deleteThread removes a thread and all of its messages in one atomic batch.
func deleteThread(ctx context.Context, store docstore.Store, threadID string) (int, error) {
	docs, err := store.GetDocuments(ctx, docstore.Query{Collection: messagesCollection(threadID)})
	if err != nil {
		return 0, fmt.Errorf("failed to list messages of %s: %w", threadID, err)
	}

	batch := store.BeginBatch()
	for _, doc := range docs {
		batch.Delete(messagePath(threadID, doc.ID))
	}
	batch.Delete(threadPath(threadID))

	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return batch.Len(), nil
}

// decodeMessages maps a snapshot to typed messages. A message without a
// timestamp gets now so the view always has a total order; undecodable
// documents are skipped.
func decodeMessages(docs []docstore.Document, now time.Time, log zerolog.Logger) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		var m models.ChatMessage
		if err := doc.DataTo(&m); err != nil {
			log.Warn().Err(err).Str("path", doc.Path).Msg("skipping malformed message")
			continue
		}
		m.ID = doc.ID
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		messages = append(messages, m)
	}
	return messages
}

func decodeThread(doc docstore.Document) (models.ChatThread, error) {
	var t models.ChatThread
	if err := doc.DataTo(&t); err != nil {
		return models.ChatThread{}, err
	}
	t.ID = doc.ID
	return t, nil
}

// notifyNewChat emails the admins about a new thread without blocking the
// sender. Failures are only logged.
func (s *ChatService) notifyNewChat(threadID, userEmail, text string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyNewChat(ctx, threadID, userEmail, text); err != nil {
			s.log.Warn().Err(err).Str("thread_id", threadID).Msg("new chat notification failed")
		}
	}()
}
