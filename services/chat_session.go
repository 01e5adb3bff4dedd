package services

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
)

// User-facing error strings. The underlying error is logged, never shown.
const (
	errInitChat      = "failed to load chat"
	errReceive       = "failed to receive messages"
	errSend          = "failed to send message"
	errDelete        = "failed to delete chat"
	errNoChatToClear = "no chat to delete"
	errForeignChat   = "not allowed to delete this chat"
)

// ChatSession is the live chat view of one connected client: the active
// thread, its messages in timestamp order and the unread counter.
//
// Operations may be called from any goroutine. Snapshots arrive on the
// subscription goroutine; the view is replaced wholesale by each one.
type ChatSession struct {
	svc       *ChatService
	identity  IdentityFunc
	clientKey string
	onChange  func(models.ChatState)
	log       zerolog.Logger

	// ctx is cancelled by Close and bounds work started by snapshots.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	threadID    string
	messages    []models.ChatMessage
	unreadCount int
	loading     bool
	lastErr     string
	sub         docstore.Subscription
	gen         uint64 // bumped whenever the subscription is replaced or dropped
	closed      bool

	emitMu sync.Mutex
}

// ResolveOrInitThread finds the thread of the signed-in user and starts
// following it. It never creates a thread: that waits for the first
// message. Guests and users without a thread get "". Store failures are
// reported through the state error and also yield "".
func (s *ChatSession) ResolveOrInitThread(ctx context.Context) string {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
	s.emit()

	threadID, err := s.lookupThread(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = errInitChat
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("failed to resolve chat thread")
		s.emit()
		return ""
	}

	if threadID == "" {
		s.detach()
		s.emit()
		return ""
	}

	s.mu.Lock()
	s.threadID = threadID
	s.mu.Unlock()
	s.subscribe(threadID)
	s.emit()
	return threadID
}

func (s *ChatSession) lookupThread(ctx context.Context) (string, error) {
	id := s.identity()
	if !id.Authenticated() {
		return "", nil
	}

	docs, err := s.svc.store.GetDocuments(ctx, docstore.Query{
		Collection: chatsCollection,
		Filters:    []docstore.Filter{docstore.Where(fieldUserID, id.UserID)},
		Limit:      1,
	})
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ID, nil
}

// detach forgets the active thread and stops following it. The message list
// stays as it was.
func (s *ChatSession) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threadID = ""
	s.dropSubscriptionLocked()
}

// ResetLocalState clears the view: messages, error, thread and unread
// counter. The subscription of the old thread is cancelled. Used after the
// active thread is deleted and when the identity changes.
func (s *ChatSession) ResetLocalState() {
	s.mu.Lock()
	s.messages = []models.ChatMessage{}
	s.lastErr = ""
	s.threadID = ""
	s.unreadCount = 0
	s.dropSubscriptionLocked()
	s.mu.Unlock()

	s.emit()
}

// State returns a copy of the view state.
func (s *ChatSession) State() models.ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.ChatState{
		ThreadID:    s.threadID,
		Messages:    slices.Clone(s.messages),
		UnreadCount: s.unreadCount,
		Loading:     s.loading,
		Error:       s.lastErr,
	}
}

// ThreadID returns the active thread, "" when none.
func (s *ChatSession) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Close stops the subscription and any work it started. Further state
// changes are not reported.
func (s *ChatSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.dropSubscriptionLocked()
	s.mu.Unlock()

	s.cancel()
}

// dropSubscriptionLocked cancels the current subscription. Caller holds mu.
func (s *ChatSession) dropSubscriptionLocked() {
	s.gen++
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}

// setError records a user-facing error and reports the new state.
func (s *ChatSession) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.emit()
}

// emit hands the current state to onChange. The state is read under emitMu
// so consecutive calls never go back in time.
func (s *ChatSession) emit() {
	if s.onChange == nil {
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	s.onChange(s.State())
}
