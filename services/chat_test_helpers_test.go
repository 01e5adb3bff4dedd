package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/docstore/docstoretest"
	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg/ratelimit"
)

const testGuestEmail = "guest@example.com"

var testLog = zerolog.Nop()

func newTestChat(t *testing.T) (*ChatService, *docstore.SQLStore) {
	t.Helper()
	store := docstoretest.New(t)
	return newTestChatWith(t, store), store
}

func newTestChatWith(t *testing.T, store docstore.Store) *ChatService {
	t.Helper()
	limiter := ratelimit.NewMessageRateLimiter(1000, time.Second, time.Second)
	t.Cleanup(limiter.Close)
	return NewChatService(store, nil, limiter, testGuestEmail)
}

func userIdentity(id, email string) IdentityFunc {
	return func() models.Identity { return models.Identity{UserID: id, Email: email} }
}

func guestIdentity() IdentityFunc {
	return func() models.Identity { return models.Identity{} }
}

func newSession(t *testing.T, svc *ChatService, identity IdentityFunc) *ChatSession {
	t.Helper()
	sess := svc.NewSession(SessionConfig{Identity: identity, ClientKey: "127.0.0.1"})
	t.Cleanup(sess.Close)
	return sess
}

func getThread(t *testing.T, store docstore.Store, threadID string) models.ChatThread {
	t.Helper()
	doc, err := store.GetDocument(context.Background(), threadPath(threadID))
	require.NoError(t, err)
	th, err := decodeThread(*doc)
	require.NoError(t, err)
	return th
}

func listMessages(t *testing.T, store docstore.Store, threadID string) []models.ChatMessage {
	t.Helper()
	docs, err := store.GetDocuments(context.Background(), docstore.Query{
		Collection: messagesCollection(threadID),
		OrderBy:    fieldTimestamp,
	})
	require.NoError(t, err)
	return decodeMessages(docs, time.Now(), testLog)
}

func threadsOf(t *testing.T, store docstore.Store, userID string) []docstore.Document {
	t.Helper()
	docs, err := store.GetDocuments(context.Background(), docstore.Query{
		Collection: chatsCollection,
		Filters:    []docstore.Filter{docstore.Where(fieldUserID, userID)},
	})
	require.NoError(t, err)
	return docs
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond, msg)
}

// failingStore injects store failures.
type failingStore struct {
	docstore.Store
	failQuery bool
	failBatch bool
}

func (f *failingStore) GetDocuments(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if f.failQuery {
		return nil, errors.New("store unavailable")
	}
	return f.Store.GetDocuments(ctx, q)
}

func (f *failingStore) BeginBatch() docstore.Batch {
	b := f.Store.BeginBatch()
	if f.failBatch {
		return &failingBatch{Batch: b}
	}
	return b
}

// failingBatch queues operations but never commits them.
type failingBatch struct {
	docstore.Batch
}

func (b *failingBatch) Commit(context.Context) error {
	return errors.New("commit rejected")
}
