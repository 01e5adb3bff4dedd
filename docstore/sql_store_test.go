package docstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/docstore/docstoretest"
	"github.com/akinalp/runeshop/pkg"
)

type thread struct {
	UserID        string     `json:"userId"`
	UnreadByAdmin int        `json:"unreadByAdmin"`
	IsGuest       bool       `json:"isGuest"`
	UpdatedAt     *time.Time `json:"updatedAt"`
}

func TestAddGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)

	id, err := store.AddDocument(ctx, "chats", docstore.Fields{
		"userId":        "u1",
		"unreadByAdmin": 0,
		"updatedAt":     docstore.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.GetDocument(ctx, docstore.Doc("chats", id))
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "chats/"+id, doc.Path)

	var th thread
	require.NoError(t, doc.DataTo(&th))
	assert.Equal(t, "u1", th.UserID)
	require.NotNil(t, th.UpdatedAt)

	require.NoError(t, store.UpdateDocument(ctx, doc.Path, docstore.Fields{
		"unreadByAdmin": docstore.Increment(1),
		"updatedAt":     docstore.ServerTimestamp,
	}))
	require.NoError(t, store.UpdateDocument(ctx, doc.Path, docstore.Fields{
		"unreadByAdmin": docstore.Increment(2),
	}))

	doc, err = store.GetDocument(ctx, doc.Path)
	require.NoError(t, err)
	var updated thread
	require.NoError(t, doc.DataTo(&updated))
	assert.Equal(t, "u1", updated.UserID, "update must merge, not replace")
	assert.Equal(t, 3, updated.UnreadByAdmin)
	assert.True(t, updated.UpdatedAt.After(*th.UpdatedAt))
}

func TestIncrement_MissingFieldStartsAtZero(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)

	id, err := store.AddDocument(ctx, "chats", docstore.Fields{"userId": "u1"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateDocument(ctx, "chats/"+id, docstore.Fields{"unreadByAdmin": docstore.Increment(1)}))

	doc, err := store.GetDocument(ctx, "chats/"+id)
	require.NoError(t, err)
	var th thread
	require.NoError(t, doc.DataTo(&th))
	assert.Equal(t, 1, th.UnreadByAdmin)
}

func TestGetDocument_NotFound(t *testing.T) {
	store := docstoretest.New(t)

	_, err := store.GetDocument(context.Background(), "chats/missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	err = store.UpdateDocument(context.Background(), "chats/missing", docstore.Fields{"a": 1})
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestDeleteDocument_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)

	id, err := store.AddDocument(ctx, "chats", docstore.Fields{"userId": "u1"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(ctx, "chats/"+id))
	require.NoError(t, store.DeleteDocument(ctx, "chats/"+id))

	_, err = store.GetDocument(ctx, "chats/"+id)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)

	_, err := store.AddDocument(ctx, "chats/x", docstore.Fields{})
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = store.GetDocument(ctx, "chats")
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = store.GetDocuments(ctx, docstore.Query{Collection: "chats//messages"})
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = store.GetDocuments(ctx, docstore.Query{Collection: "chats", OrderBy: "x') OR 1=1 --"})
	assert.ErrorIs(t, err, docstore.ErrInvalidField)

	_, err = store.AddDocument(ctx, "chats", docstore.Fields{"bad key": 1})
	assert.ErrorIs(t, err, docstore.ErrInvalidField)
}

func TestGetDocuments_FilterOrderLimit(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)

	for _, f := range []docstore.Fields{
		{"userId": "u1", "isGuest": false, "n": 1},
		{"userId": "u2", "isGuest": true, "n": 2},
		{"userId": "u1", "isGuest": false, "n": 3},
	} {
		f["updatedAt"] = docstore.ServerTimestamp
		_, err := store.AddDocument(ctx, "chats", f)
		require.NoError(t, err)
	}

	docs, err := store.GetDocuments(ctx, docstore.Query{
		Collection: "chats",
		Filters:    []docstore.Filter{docstore.Where("userId", "u1")},
		OrderBy:    "updatedAt",
		Direction:  docstore.Desc,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var first thread
	require.NoError(t, docs[0].DataTo(&first))
	var second thread
	require.NoError(t, docs[1].DataTo(&second))
	assert.True(t, first.UpdatedAt.After(*second.UpdatedAt))

	docs, err = store.GetDocuments(ctx, docstore.Query{
		Collection: "chats",
		Filters:    []docstore.Filter{docstore.Where("isGuest", true)},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	docs, err = store.GetDocuments(ctx, docstore.Query{Collection: "chats", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = store.GetDocuments(ctx, docstore.Query{Collection: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestServerTimestamp_StrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := docstoretest.New(t, docstore.WithClock(func() time.Time { return frozen }))

	for i := 0; i < 5; i++ {
		_, err := store.AddDocument(ctx, "m", docstore.Fields{"i": i, "timestamp": docstore.ServerTimestamp})
		require.NoError(t, err)
	}

	docs, err := store.GetDocuments(ctx, docstore.Query{Collection: "m", OrderBy: "timestamp"})
	require.NoError(t, err)
	require.Len(t, docs, 5)

	var prev time.Time
	for i, d := range docs {
		var rec struct {
			I         int       `json:"i"`
			Timestamp time.Time `json:"timestamp"`
		}
		require.NoError(t, d.DataTo(&rec))
		assert.Equal(t, i, rec.I)
		assert.True(t, rec.Timestamp.After(prev))
		prev = rec.Timestamp
	}
}

func TestBatch_CommitsAtomically(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)

	a, err := store.AddDocument(ctx, "chats/t/messages", docstore.Fields{"readByUser": false})
	require.NoError(t, err)
	b, err := store.AddDocument(ctx, "chats/t/messages", docstore.Fields{"readByUser": false})
	require.NoError(t, err)

	batch := store.BeginBatch()
	batch.Update("chats/t/messages/"+a, docstore.Fields{"readByUser": true})
	batch.Delete("chats/t/messages/" + b)
	batch.Update("chats/t/messages/missing", docstore.Fields{"readByUser": true})
	assert.Equal(t, 3, batch.Len())

	err = batch.Commit(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	docs, err := store.GetDocuments(ctx, docstore.Query{Collection: "chats/t/messages"})
	require.NoError(t, err)
	require.Len(t, docs, 2, "failed batch must not delete anything")

	var rec struct {
		ReadByUser bool `json:"readByUser"`
	}
	require.NoError(t, docs[0].DataTo(&rec))
	assert.False(t, rec.ReadByUser, "failed batch must not update anything")

	batch = store.BeginBatch()
	batch.Update("chats/t/messages/"+a, docstore.Fields{"readByUser": true})
	batch.Delete("chats/t/messages/" + b)
	require.NoError(t, batch.Commit(ctx))

	docs, err = store.GetDocuments(ctx, docstore.Query{Collection: "chats/t/messages"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, docs[0].DataTo(&rec))
	assert.True(t, rec.ReadByUser)
}

func TestBatch_EmptyCommitIsNoop(t *testing.T) {
	store := docstoretest.New(t)
	assert.NoError(t, store.BeginBatch().Commit(context.Background()))
}

// snapshots collects deliveries of a live query.
type snapshots struct {
	mu   sync.Mutex
	got  [][]docstore.Document
	wake chan struct{}
}

func newSnapshots() *snapshots {
	return &snapshots{wake: make(chan struct{}, 64)}
}

func (s *snapshots) add(docs []docstore.Document) {
	s.mu.Lock()
	s.got = append(s.got, docs)
	s.mu.Unlock()
	s.wake <- struct{}{}
}

func (s *snapshots) last() []docstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil
	}
	return s.got[len(s.got)-1]
}

func (s *snapshots) waitFor(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.last()) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestSubscribe_DeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)
	snaps := newSnapshots()

	sub := store.Subscribe(docstore.Query{Collection: "chats/t/messages", OrderBy: "timestamp"}, snaps.add, func(err error) {
		t.Errorf("unexpected error: %v", err)
	})
	defer sub.Cancel()

	<-snaps.wake
	assert.Empty(t, snaps.last())

	for i := 0; i < 3; i++ {
		_, err := store.AddDocument(ctx, "chats/t/messages", docstore.Fields{"i": i, "timestamp": docstore.ServerTimestamp})
		require.NoError(t, err)
	}
	snaps.waitFor(t, 3)

	// writes to other collections do not matter
	_, err := store.AddDocument(ctx, "chats/other/messages", docstore.Fields{"i": 9})
	require.NoError(t, err)

	docs := snaps.last()
	for i, d := range docs {
		var rec struct {
			I int `json:"i"`
		}
		require.NoError(t, d.DataTo(&rec))
		assert.Equal(t, i, rec.I)
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := docstoretest.New(t)
	snaps := newSnapshots()

	sub := store.Subscribe(docstore.Query{Collection: "chats"}, snaps.add, nil)
	<-snaps.wake

	sub.Cancel()
	sub.Cancel()

	_, err := store.AddDocument(ctx, "chats", docstore.Fields{"userId": "u1"})
	require.NoError(t, err)

	select {
	case <-snaps.wake:
		t.Fatal("snapshot delivered after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotify_RequeriesMatchingSubscriptions(t *testing.T) {
	store := docstoretest.New(t)
	snaps := newSnapshots()

	sub := store.Subscribe(docstore.Query{Collection: "chats"}, snaps.add, nil)
	defer sub.Cancel()
	<-snaps.wake

	store.Notify("chats")

	select {
	case <-snaps.wake:
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after Notify")
	}
}

type recordingFeed struct {
	mu   sync.Mutex
	seen [][]string
}

func (f *recordingFeed) Publish(_ context.Context, collections []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, collections)
	return nil
}

func (f *recordingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func TestChangeFeed_ReceivesCommits(t *testing.T) {
	feed := &recordingFeed{}
	store := docstoretest.New(t, docstore.WithChangeFeed(feed))

	_, err := store.AddDocument(context.Background(), "chats", docstore.Fields{"userId": "u1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return feed.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGetDocuments_MissingOrderFieldRanksLowest(t *testing.T) {
	ctx := context.Background()
	s := docstoretest.New(t)

	_, err := s.AddDocument(ctx, "messages", docstore.Fields{"text": "stamped", "timestamp": docstore.ServerTimestamp})
	require.NoError(t, err)
	_, err = s.AddDocument(ctx, "messages", docstore.Fields{"text": "pending"})
	require.NoError(t, err)

	texts := func(dir docstore.Direction) []string {
		docs, err := s.GetDocuments(ctx, docstore.Query{Collection: "messages", OrderBy: "timestamp", Direction: dir})
		require.NoError(t, err)
		out := make([]string, 0, len(docs))
		for _, doc := range docs {
			var m struct {
				Text string `json:"text"`
			}
			require.NoError(t, doc.DataTo(&m))
			out = append(out, m.Text)
		}
		return out
	}

	assert.Equal(t, []string{"pending", "stamped"}, texts(docstore.Asc))
	assert.Equal(t, []string{"stamped", "pending"}, texts(docstore.Desc))
}
