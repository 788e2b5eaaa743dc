package store

import (
	"context"
	"testing"
	"time"

	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageIDs(ms []models.Message) []string {
	return ids(ms, func(m models.Message) string { return m.ID })
}

func TestGetConversationIsSymmetricAndOrdered(t *testing.T) {
	eachMode(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a, b := f.alice.UserID(), f.bob.UserID()

		// Sent out of order on purpose.
		m2, err := f.repo.SendMessage(ctx, f.bob, MessageInput{ToID: a, Text: "yes", CreatedAt: base.Add(2 * time.Hour)})
		require.NoError(t, err)
		m1, err := f.repo.SendMessage(ctx, f.alice, MessageInput{ToID: b, Text: "still for sale?", CreatedAt: base.Add(time.Hour)})
		require.NoError(t, err)
		_, err = f.repo.SendMessage(ctx, f.carol, MessageInput{ToID: a, Text: "unrelated"})
		require.NoError(t, err)

		fromAlice, err := f.repo.GetConversation(ctx, f.alice, b)
		require.NoError(t, err)
		fromBob, err := f.repo.GetConversation(ctx, f.bob, a)
		require.NoError(t, err)

		assert.Equal(t, []string{m1.ID, m2.ID}, messageIDs(fromAlice))
		assert.Equal(t, messageIDs(fromAlice), messageIDs(fromBob))
	})
}

func TestSendMessageDefaults(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	m, err := f.repo.SendMessage(ctx, f.carol, MessageInput{ToID: f.alice.UserID(), Text: "hi", ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, f.carol.UserID(), m.FromID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.Equal(t, "p1", m.ProductID)
	assert.Equal(t, []string{events.EventMessageSent}, f.events.Types())

	_, err = f.repo.SendMessage(ctx, f.carol, MessageInput{ToID: f.alice.UserID(), Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.repo.SendMessage(ctx, f.carol, MessageInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrNoRecipient)

	_, err = f.repo.SendMessage(ctx, nil, MessageInput{ToID: "x", Text: "hi"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	m, err := f.repo.SendMessage(ctx, f.alice, MessageInput{ToID: f.bob.UserID(), Text: "helo"})
	require.NoError(t, err)

	edited, err := f.repo.EditMessage(ctx, f.alice, m.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, m.ID, edited.ID)
	assert.True(t, m.CreatedAt.Equal(edited.CreatedAt))
	require.NotNil(t, edited.EditedAt)

	conv, err := f.repo.GetConversation(ctx, f.bob, f.alice.UserID())
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "hello", conv[0].Text)
	assert.Equal(t, m.ID, conv[0].ID)
	assert.True(t, m.CreatedAt.Equal(conv[0].CreatedAt))
	assert.NotNil(t, conv[0].EditedAt)

	_, err = f.repo.EditMessage(ctx, f.bob, m.ID, "hacked")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.repo.EditMessage(ctx, f.alice, "missing", "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	require.NoError(t, f.repo.DeleteMessage(ctx, f.alice, m.ID))
	_, err = f.repo.EditMessage(ctx, f.alice, m.ID, "again")
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestDeleteMessageIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	m, err := f.repo.SendMessage(ctx, f.alice, MessageInput{ToID: f.bob.UserID(), Text: "oops"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.repo.DeleteMessage(ctx, f.bob, m.ID), ErrForbidden)
	require.NoError(t, f.repo.DeleteMessage(ctx, f.alice, m.ID))
	require.NoError(t, f.repo.DeleteMessage(ctx, f.alice, m.ID))

	conv, err := f.repo.GetConversation(ctx, f.bob, f.alice.UserID())
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.True(t, conv[0].Deleted)
	assert.Empty(t, conv[0].Text)

	assert.Equal(t, []string{events.EventMessageSent, events.EventMessageDeleted}, f.events.Types())
}

func TestThreads(t *testing.T) {
	eachMode(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a, b, c := f.alice.UserID(), f.bob.UserID(), f.carol.UserID()

		_, err := f.repo.SendMessage(ctx, f.alice, MessageInput{ToID: b, Text: "1", CreatedAt: base.Add(time.Minute)})
		require.NoError(t, err)
		latestBob, err := f.repo.SendMessage(ctx, f.bob, MessageInput{ToID: a, Text: "2", CreatedAt: base.Add(3 * time.Minute)})
		require.NoError(t, err)
		latestCarol, err := f.repo.SendMessage(ctx, f.carol, MessageInput{ToID: a, Text: "3", CreatedAt: base.Add(5 * time.Minute)})
		require.NoError(t, err)
		_, err = f.repo.SendMessage(ctx, f.bob, MessageInput{ToID: c, Text: "not alice"})
		require.NoError(t, err)

		byUser, err := f.repo.ListThreads(ctx, f.alice)
		require.NoError(t, err)
		require.Len(t, byUser, 2)
		assert.Equal(t, latestBob.ID, byUser[b].ID)
		assert.Equal(t, latestCarol.ID, byUser[c].ID)

		threads, err := f.repo.Threads(ctx, f.alice)
		require.NoError(t, err)
		require.Len(t, threads, 2)
		assert.Equal(t, c, threads[0].With)
		assert.Equal(t, b, threads[1].With)
	})
}
