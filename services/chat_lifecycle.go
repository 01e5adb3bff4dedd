package services

import (
	"context"
	"fmt"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
)

// SendMessage posts text to the active thread, creating the thread first
// when there is none. The thread preview is refreshed and unreadByAdmin is
// incremented atomically. Returns false on any failure; nothing is retried.
func (s *ChatSession) SendMessage(ctx context.Context, text string) bool {
	req := models.SendChatMessageRequest{Text: text}
	if err := req.Validate(); err != nil {
		s.setError(err.Error())
		return false
	}

	id := s.identity()
	if key := s.rateKey(id); !s.svc.limiter.Allow(key) {
		s.setError(fmt.Sprintf("sending too fast, try again in %d second(s)", s.svc.limiter.CooldownSeconds(key)))
		return false
	}

	threadID := s.ThreadID()
	if threadID == "" {
		created, err := s.createThread(ctx, id, req.Text)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to create chat thread")
			s.setError(errSend)
			return false
		}
		threadID = created
	}

	senderID, senderEmail := guestSenderID, s.svc.guestEmail
	if id.Authenticated() {
		senderID, senderEmail = id.UserID, id.Email
	}

	if _, err := s.svc.store.AddDocument(ctx, messagesCollection(threadID), docstore.Fields{
		fieldText:        req.Text,
		fieldSenderID:    senderID,
		fieldSenderEmail: senderEmail,
		fieldIsUser:      true,
		fieldTimestamp:   docstore.ServerTimestamp,
		fieldReadByAdmin: false,
		fieldReadByUser:  true,
	}); err != nil {
		s.log.Error().Err(err).Str("thread_id", threadID).Msg("failed to add message")
		s.setError(errSend)
		return false
	}

	if err := s.svc.store.UpdateDocument(ctx, threadPath(threadID), docstore.Fields{
		fieldUpdatedAt:     docstore.ServerTimestamp,
		fieldLastMessage:   req.Text,
		fieldUnreadByAdmin: docstore.Increment(1),
	}); err != nil {
		s.log.Error().Err(err).Str("thread_id", threadID).Msg("failed to update thread preview")
		s.setError(errSend)
		return false
	}

	return true
}

// createThread writes a new thread for the current identity, adopts it and
// starts following it. Guests get a synthetic owner id.
func (s *ChatSession) createThread(ctx context.Context, id models.Identity, firstMessage string) (string, error) {
	userID, userEmail := id.UserID, id.Email
	if !id.Authenticated() {
		userID = fmt.Sprintf("guest-%d", s.svc.now().UnixMilli())
		userEmail = s.svc.guestEmail
	}

	threadID, err := s.svc.store.AddDocument(ctx, chatsCollection, docstore.Fields{
		fieldUserID:        userID,
		fieldUserEmail:     userEmail,
		fieldCreatedAt:     docstore.ServerTimestamp,
		fieldUpdatedAt:     docstore.ServerTimestamp,
		fieldUnreadByAdmin: 0,
		fieldUnreadByUser:  0,
		fieldIsGuest:       !id.Authenticated(),
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.threadID = threadID
	s.mu.Unlock()

	s.subscribe(threadID)
	s.emit()

	s.log.Info().Str("thread_id", threadID).Bool("guest", !id.Authenticated()).Msg("chat thread created")
	s.svc.notifyNewChat(threadID, userEmail, firstMessage)
	return threadID, nil
}

// DeleteChat removes a thread and all of its messages atomically. An empty
// threadID means the active thread. Only admins may delete a thread other
// than their own active one. Deleting the active thread resets the view.
func (s *ChatSession) DeleteChat(ctx context.Context, threadID string) bool {
	active := s.ThreadID()
	target := threadID
	if target == "" {
		target = active
	}
	if target == "" {
		s.setError(errNoChatToClear)
		return false
	}
	if err := validThreadID(target); err != nil {
		s.setError(errDelete)
		return false
	}
	if target != active && !s.identity().IsAdmin {
		s.setError(errForeignChat)
		return false
	}

	n, err := deleteThread(ctx, s.svc.store, target)
	if err != nil {
		s.log.Error().Err(err).Str("thread_id", target).Msg("failed to delete chat")
		s.setError(errDelete)
		return false
	}
	s.log.Info().Str("thread_id", target).Int("documents", n).Msg("chat deleted")

	if target == s.ThreadID() {
		s.ResetLocalState()
	}
	return true
}

// rateKey identifies the sender for the message rate limiter.
func (s *ChatSession) rateKey(id models.Identity) string {
	if id.Authenticated() {
		return "user:" + id.UserID
	}
	return "guest:" + s.clientKey
}
