package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/sirupsen/logrus"
)

type MessageInput struct {
	ToID      string    `json:"toId"`
	Text      string    `json:"text"`
	ProductID string    `json:"productId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread is the latest message exchanged with one counterpart.
type Thread struct {
	With string         `json:"with"`
	Last models.Message `json:"last"`
}

func messagePayload(m *models.Message) events.MessagePayload {
	return events.MessagePayload{MessageID: m.ID, FromID: m.FromID, ToID: m.ToID, ProductID: m.ProductID}
}

func (r *Repository) SendMessage(ctx context.Context, sess *session.Session, in MessageInput) (*models.Message, error) {
	if err := authorize(sess, ""); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if in.ToID == "" {
		return nil, ErrNoRecipient
	}

	msg := models.Message{
		FromID:    sess.UserID(),
		ToID:      in.ToID,
		Text:      in.Text,
		ProductID: in.ProductID,
		CreatedAt: in.CreatedAt,
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now().UTC()
	}

	id, err := r.docs.Insert(ctx, models.CollectionMessages, msg)
	if err != nil {
		return nil, r.fail(err, "send message", logrus.Fields{"from_id": msg.FromID, "to_id": msg.ToID})
	}
	msg.ID = id

	for _, name := range messageIndexes(&msg) {
		r.indexAdd(ctx, name, id)
	}

	r.events.Publish(ctx, events.EventMessageSent, id, messagePayload(&msg))
	return &msg, nil
}

// GetConversation returns the messages between the session user and
// otherUserID in either direction, oldest first. Deleted messages keep
// their place but lose their text.
func (r *Repository) GetConversation(ctx context.Context, sess *session.Session, otherUserID string) ([]models.Message, error) {
	if err := authorize(sess, ""); err != nil {
		return []models.Message{}, err
	}
	me := sess.UserID()

	msgs, err := listBy(ctx, r, models.CollectionMessages, pairIndex(me, otherUserID), func(m models.Message) bool {
		return (m.FromID == me && m.ToID == otherUserID) || (m.FromID == otherUserID && m.ToID == me)
	})
	if err != nil {
		return []models.Message{}, r.fail(err, "get conversation", logrus.Fields{"user_id": me, "other_id": otherUserID})
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	for i := range msgs {
		msgs[i] = msgs[i].Redacted()
	}
	return msgs, nil
}

func (r *Repository) getMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := docstore.GetAs[models.Message](ctx, r.docs, models.CollectionMessages, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, r.fail(err, "get message", logrus.Fields{"message_id": id})
	}
	return m, nil
}

// sent loads message id and checks the session user wrote it.
func (r *Repository) sent(ctx context.Context, sess *session.Session, id string) (*models.Message, error) {
	if err := authorize(sess, ""); err != nil {
		return nil, err
	}
	m, err := r.getMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsUser(m.FromID) {
		return nil, ErrForbidden
	}
	return m, nil
}

// EditMessage replaces the text and stamps editedAt. Id and createdAt are
// never touched.
func (r *Repository) EditMessage(ctx context.Context, sess *session.Session, id, text string) (*models.Message, error) {
	m, err := r.sent(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, ErrMessageDeleted
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	edited := r.now().UTC()
	if err := r.docs.Update(ctx, models.CollectionMessages, id, docstore.Fields{"text": text, "editedAt": edited}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, r.fail(err, "edit message", logrus.Fields{"message_id": id})
	}
	m.Text = text
	m.EditedAt = &edited

	r.events.Publish(ctx, events.EventMessageEdited, id, messagePayload(m))
	return m, nil
}

// DeleteMessage marks the message deleted. Deleting it again is a no-op.
func (r *Repository) DeleteMessage(ctx context.Context, sess *session.Session, id string) error {
	m, err := r.sent(ctx, sess, id)
	if err != nil {
		return err
	}
	if m.Deleted {
		return nil
	}

	if err := r.docs.Update(ctx, models.CollectionMessages, id, docstore.Fields{"deleted": true}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrMessageNotFound
		}
		return r.fail(err, "delete message", logrus.Fields{"message_id": id})
	}

	r.events.Publish(ctx, events.EventMessageDeleted, id, messagePayload(m))
	return nil
}

// ListThreads maps each counterpart of the session user to the latest
// message exchanged with them.
func (r *Repository) ListThreads(ctx context.Context, sess *session.Session) (map[string]models.Message, error) {
	if err := authorize(sess, ""); err != nil {
		return map[string]models.Message{}, err
	}
	me := sess.UserID()

	msgs, err := listBy(ctx, r, models.CollectionMessages, userIndex(me), func(m models.Message) bool {
		return m.Involves(me)
	})
	if err != nil {
		return map[string]models.Message{}, r.fail(err, "list threads", logrus.Fields{"user_id": me})
	}

	threads := make(map[string]models.Message)
	for _, m := range msgs {
		with := m.Counterpart(me)
		if last, ok := threads[with]; ok && m.CreatedAt.Before(last.CreatedAt) {
			continue
		}
		threads[with] = m.Redacted()
	}
	return threads, nil
}

// Threads is ListThreads sorted newest first.
func (r *Repository) Threads(ctx context.Context, sess *session.Session) ([]Thread, error) {
	byUser, err := r.ListThreads(ctx, sess)
	if err != nil {
		return []Thread{}, err
	}

	out := make([]Thread, 0, len(byUser))
	for with, m := range byUser {
		out = append(out, Thread{With: with, Last: m})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Last.CreatedAt, out[j].Last.CreatedAt
		if a.Equal(b) {
			return out[i].With < out[j].With
		}
		return a.After(b)
	})
	return out, nil
}
