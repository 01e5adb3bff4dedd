package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/pkg/logger"
)

// ChatAdminService is the admin side of the support chat: the thread list,
// replies, read receipts and deletion.
type ChatAdminService interface {
	ListThreads(ctx context.Context) ([]models.ChatThread, error)
	// SubscribeThreads streams the thread list, newest activity first.
	SubscribeThreads(onThreads func([]models.ChatThread), onError func(error)) docstore.Subscription
	GetMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error)
	Reply(ctx context.Context, admin models.Identity, threadID string, req *models.SendChatMessageRequest) error
	// MarkReadByAdmin flags the user's messages as read by the admins and
	// returns how many were flipped.
	MarkReadByAdmin(ctx context.Context, threadID string) (int, error)
	DeleteThread(ctx context.Context, threadID string) error
}

type chatAdminService struct {
	store docstore.Store
	log   zerolog.Logger
}

// NewChatAdminService builds the admin chat service.
func NewChatAdminService(store docstore.Store) ChatAdminService {
	return &chatAdminService{
		store: store,
		log:   logger.Module("chat_admin"),
	}
}

func threadsQuery() docstore.Query {
	return docstore.Query{
		Collection: chatsCollection,
		OrderBy:    fieldUpdatedAt,
		Direction:  docstore.Desc,
	}
}

func (s *chatAdminService) ListThreads(ctx context.Context) ([]models.ChatThread, error) {
	docs, err := s.store.GetDocuments(ctx, threadsQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list chat threads: %w", err)
	}
	return s.decodeThreads(docs), nil
}

func (s *chatAdminService) SubscribeThreads(onThreads func([]models.ChatThread), onError func(error)) docstore.Subscription {
	return s.store.Subscribe(threadsQuery(),
		func(docs []docstore.Document) { onThreads(s.decodeThreads(docs)) },
		onError,
	)
}

func (s *chatAdminService) decodeThreads(docs []docstore.Document) []models.ChatThread {
	threads := make([]models.ChatThread, 0, len(docs))
	for _, doc := range docs {
		t, err := decodeThread(doc)
		if err != nil {
			s.log.Warn().Err(err).Str("path", doc.Path).Msg("skipping malformed thread")
			continue
		}
		threads = append(threads, t)
	}
	return threads
}

func (s *chatAdminService) GetMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error) {
	if err := s.requireThread(ctx, threadID); err != nil {
		return nil, err
	}

	docs, err := s.store.GetDocuments(ctx, docstore.Query{
		Collection: messagesCollection(threadID),
		OrderBy:    fieldTimestamp,
		Direction:  docstore.Asc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return decodeMessages(docs, time.Now(), s.log), nil
}

// Reply posts an admin message. It counts as unread for the user until the
// user's session marks it read.
func (s *chatAdminService) Reply(ctx context.Context, admin models.Identity, threadID string, req *models.SendChatMessageRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.requireThread(ctx, threadID); err != nil {
		return err
	}

	if _, err := s.store.AddDocument(ctx, messagesCollection(threadID), docstore.Fields{
		fieldText:        req.Text,
		fieldSenderID:    admin.UserID,
		fieldSenderEmail: admin.Email,
		fieldIsUser:      false,
		fieldTimestamp:   docstore.ServerTimestamp,
		fieldReadByAdmin: true,
		fieldReadByUser:  false,
	}); err != nil {
		return fmt.Errorf("failed to add reply: %w", err)
	}

	if err := s.store.UpdateDocument(ctx, threadPath(threadID), docstore.Fields{
		fieldUpdatedAt:    docstore.ServerTimestamp,
		fieldLastMessage:  req.Text,
		fieldUnreadByUser: docstore.Increment(1),
	}); err != nil {
		return fmt.Errorf("failed to update thread preview: %w", err)
	}

	return nil
}

func (s *chatAdminService) MarkReadByAdmin(ctx context.Context, threadID string) (int, error) {
	if err := s.requireThread(ctx, threadID); err != nil {
		return 0, err
	}

	docs, err := s.store.GetDocuments(ctx, docstore.Query{
		Collection: messagesCollection(threadID),
		Filters: []docstore.Filter{
			docstore.Where(fieldIsUser, true),
			docstore.Where(fieldReadByAdmin, false),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list unread messages: %w", err)
	}

	batch := s.store.BeginBatch()
	for _, doc := range docs {
		batch.Update(messagePath(threadID, doc.ID), docstore.Fields{fieldReadByAdmin: true})
	}
	batch.Update(threadPath(threadID), docstore.Fields{fieldUnreadByAdmin: 0})

	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return len(docs), nil
}

func (s *chatAdminService) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.requireThread(ctx, threadID); err != nil {
		return err
	}

	n, err := deleteThread(ctx, s.store, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	s.log.Info().Str("thread_id", threadID).Int("documents", n).Msg("chat thread deleted")
	return nil
}

// requireThread returns pkg.ErrNotFound for unknown threads.
func (s *chatAdminService) requireThread(ctx context.Context, threadID string) error {
	if err := validThreadID(threadID); err != nil {
		return err
	}
	if _, err := s.store.GetDocument(ctx, threadPath(threadID)); err != nil {
		return err
	}
	return nil
}
