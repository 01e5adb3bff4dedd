package services

import (
	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
)

// subscribe follows the messages of threadID, replacing any previous
// subscription of this session. Every snapshot rebuilds the message list.
func (s *ChatSession) subscribe(threadID string) {
	if threadID == "" {
		s.log.Error().Msg("subscribe called without a thread id")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.dropSubscriptionLocked()
	gen := s.gen
	s.mu.Unlock()

	sub := s.svc.store.Subscribe(
		docstore.Query{
			Collection: messagesCollection(threadID),
			OrderBy:    fieldTimestamp,
			Direction:  docstore.Asc,
		},
		func(docs []docstore.Document) { s.applySnapshot(gen, docs) },
		func(err error) { s.applySubscriptionError(gen, err) },
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// replaced or reset while registering
		sub.Cancel()
		return
	}
	s.sub = sub
}

// applySnapshot replaces the view with a snapshot of subscription gen and
// eagerly marks admin replies as read.
func (s *ChatSession) applySnapshot(gen uint64, docs []docstore.Document) {
	messages := decodeMessages(docs, s.svc.now(), s.log)

	unread := 0
	for i := range messages {
		if messages[i].UnreadForUser() {
			unread++
		}
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.messages = messages
	if unread > 0 {
		s.unreadCount = unread
	}
	s.mu.Unlock()

	s.emit()

	if unread > 0 {
		s.MarkReadByUser(s.ctx)
	}
}

// applySubscriptionError keeps the last known messages and reports the
// failure. The subscription stays registered.
func (s *ChatSession) applySubscriptionError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.lastErr = errReceive
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("message subscription failed")
	s.emit()
}

// messagesSnapshot is used by the unread tracker.
func (s *ChatSession) messagesSnapshot() (string, []models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID, s.messages
}
