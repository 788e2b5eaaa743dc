package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/sirupsen/logrus"
)

const avatarURL = "https://i.pravatar.cc/150?u=%s"

// Login finds the user with exactly this email, creating one when none
// exists. New users get the configured default roles.
func (r *Repository) Login(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	users, err := docstore.ScanAs[models.User](ctx, r.docs, models.CollectionUsers)
	if err != nil {
		return nil, r.fail(err, "find user by email", logrus.Fields{"email": email})
	}
	for _, u := range users {
		if u.Email == email {
			return &u, nil
		}
	}

	name, _, _ := strings.Cut(email, "@")
	user := models.User{
		Email: email,
		Name:  name,
		Roles: r.newUserRoles,
	}

	id, err := r.docs.Insert(ctx, models.CollectionUsers, user)
	if err != nil {
		return nil, r.fail(err, "create user", logrus.Fields{"email": email})
	}
	user.ID = id
	user.ProfilePicURL = fmt.Sprintf(avatarURL, id)

	if err := r.docs.Update(ctx, models.CollectionUsers, id, docstore.Fields{"profilePicUrl": user.ProfilePicURL}); err != nil {
		return &user, r.fail(err, "set user avatar", logrus.Fields{"user_id": id})
	}

	r.log.WithFields(logrus.Fields{"user_id": id, "email": email}).Info("user created")
	return &user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := docstore.GetAs[models.User](ctx, r.docs, models.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, r.fail(err, "get user", logrus.Fields{"user_id": id})
	}
	return u, nil
}

// UpdateUser merges user into the stored record, creating it when missing. Users may only update
// themselves; the session is refreshed with the result.
func (r *Repository) UpdateUser(ctx context.Context, sess *session.Session, user models.User) (*models.User, error) {
	if err := authorize(sess, ""); err != nil {
		return nil, err
	}
	if !sess.IsUser(user.ID) {
		return nil, ErrForbidden
	}

	fields := docstore.Fields{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"profilePicUrl": user.ProfilePicURL,
		"roles":         user.Roles,
	}
	err := r.docs.Update(ctx, models.CollectionUsers, user.ID, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		err = r.docs.Put(ctx, models.CollectionUsers, user.ID, user)
	}
	if err != nil {
		return nil, r.fail(err, "update user", logrus.Fields{"user_id": user.ID})
	}

	sess.Refresh(user)
	return &user, nil
}

// SetRoles replaces the session user's roles.
func (r *Repository) SetRoles(ctx context.Context, sess *session.Session, roles models.RoleSet) (*models.User, error) {
	if err := authorize(sess, ""); err != nil {
		return nil, err
	}
	user := sess.User()
	user.Roles = roles
	return r.UpdateUser(ctx, sess, user)
}

// RestoreSession rebuilds a session from the pointer file. A pointer to a
// user that no longer exists is cleared and reported as logged out.
func (r *Repository) RestoreSession(ctx context.Context, pointer *session.PointerFile) (*session.Session, error) {
	id, ok, err := pointer.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, err := r.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if err := pointer.Clear(); err != nil {
				return nil, err
			}
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return session.New(*user), nil
}
