package services

import (
	"context"

	"github.com/akinalp/runeshop/docstore"
)

// MarkReadByUser flags every admin reply in the current view as read by the
// user and zeroes the thread's unreadByUser counter, in one atomic batch.
//
// Returns false when there is no active thread, the client is a guest
// (guest unread tracking is skipped) or the write fails. Failures are
// logged only; the view error is left alone.
func (s *ChatSession) MarkReadByUser(ctx context.Context) bool {
	_, ok := s.markReadByUser(ctx)
	return ok
}

// markReadByUser returns how many messages were flipped.
func (s *ChatSession) markReadByUser(ctx context.Context) (int, bool) {
	threadID, messages := s.messagesSnapshot()
	if threadID == "" || !s.identity().Authenticated() {
		return 0, false
	}

	var unread []string
	for i := range messages {
		if messages[i].UnreadForUser() {
			unread = append(unread, messages[i].ID)
		}
	}
	if len(unread) == 0 {
		return 0, true
	}

	batch := s.svc.store.BeginBatch()
	for _, id := range unread {
		batch.Update(messagePath(threadID, id), docstore.Fields{fieldReadByUser: true})
	}
	batch.Update(threadPath(threadID), docstore.Fields{fieldUnreadByUser: 0})

	if err := batch.Commit(ctx); err != nil {
		s.log.Error().Err(err).Str("thread_id", threadID).Int("messages", len(unread)).Msg("failed to mark messages read")
		return 0, false
	}

	s.mu.Lock()
	s.unreadCount = 0
	s.mu.Unlock()
	s.emit()

	return len(unread), true
}
