package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
)

func TestChatAdminService_ListThreadsNewestFirst(t *testing.T) {
	svc, store := newTestChat(t)
	admin := NewChatAdminService(store)
	ctx := context.Background()

	older := newSession(t, svc, userIdentity("u1", "a@x.io"))
	require.True(t, older.SendMessage(ctx, "first"))
	newer := newSession(t, svc, userIdentity("u2", "b@x.io"))
	require.True(t, newer.SendMessage(ctx, "second"))

	threads, err := admin.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, newer.ThreadID(), threads[0].ID)
	assert.Equal(t, older.ThreadID(), threads[1].ID)

	// activity moves a thread to the top
	require.True(t, older.SendMessage(ctx, "bump"))
	threads, err = admin.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ThreadID(), threads[0].ID)
	assert.Equal(t, "bump", threads[0].LastMessage)
	assert.Equal(t, 2, threads[0].UnreadByAdmin)
}

func TestChatAdminService_ReplyAndMarkRead(t *testing.T) {
	svc, store := newTestChat(t)
	admin := NewChatAdminService(store)
	ctx := context.Background()

	sess := newSession(t, svc, userIdentity("u1", "a@x.io"))
	require.True(t, sess.SendMessage(ctx, "one"))
	require.True(t, sess.SendMessage(ctx, "two"))
	threadID := sess.ThreadID()

	n, err := admin.MarkReadByAdmin(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, getThread(t, store, threadID).UnreadByAdmin)

	n, err = admin.MarkReadByAdmin(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, admin.Reply(ctx, adminIdentity, threadID, &models.SendChatMessageRequest{Text: "  on its way  "}))

	msgs, err := admin.GetMessages(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	reply := msgs[2]
	assert.Equal(t, "on its way", reply.Text)
	assert.False(t, reply.IsUser)
	assert.True(t, reply.ReadByAdmin)
	assert.Equal(t, adminIdentity.UserID, reply.SenderID)
	for _, m := range msgs[:2] {
		assert.True(t, m.ReadByAdmin)
	}

	th := getThread(t, store, threadID)
	assert.Equal(t, "on its way", th.LastMessage)
	assert.Equal(t, 0, th.UnreadByAdmin)
}

func TestChatAdminService_ReplyValidation(t *testing.T) {
	svc, store := newTestChat(t)
	admin := NewChatAdminService(store)
	ctx := context.Background()

	err := admin.Reply(ctx, adminIdentity, "missing", &models.SendChatMessageRequest{Text: "hi"})
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	sess := newSession(t, svc, userIdentity("u1", "a@x.io"))
	require.True(t, sess.SendMessage(ctx, "hello"))

	err = admin.Reply(ctx, adminIdentity, sess.ThreadID(), &models.SendChatMessageRequest{Text: ""})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = admin.GetMessages(ctx, "chats/other")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestChatAdminService_DeleteThread(t *testing.T) {
	svc, store := newTestChat(t)
	admin := NewChatAdminService(store)
	ctx := context.Background()

	sess := newSession(t, svc, userIdentity("u1", "a@x.io"))
	require.True(t, sess.SendMessage(ctx, "hello"))
	threadID := sess.ThreadID()

	require.NoError(t, admin.DeleteThread(ctx, threadID))
	assert.Empty(t, threadsOf(t, store, "u1"))
	assert.Empty(t, listMessages(t, store, threadID))

	assert.ErrorIs(t, admin.DeleteThread(ctx, threadID), pkg.ErrNotFound)
}

func TestChatAdminService_SubscribeThreads(t *testing.T) {
	svc, store := newTestChat(t)
	admin := NewChatAdminService(store)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		latest []models.ChatThread
	)
	sub := admin.SubscribeThreads(func(threads []models.ChatThread) {
		mu.Lock()
		latest = threads
		mu.Unlock()
	}, func(err error) { t.Errorf("subscription error: %v", err) })
	defer sub.Cancel()

	sess := newSession(t, svc, userIdentity("u1", "a@x.io"))
	require.True(t, sess.SendMessage(ctx, "hello"))

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1 && latest[0].LastMessage == "hello"
	}, "thread list snapshot")
}
