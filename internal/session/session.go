// Package session holds the logged-in user and the dashboard they are
// acting in. A Session is passed explicitly to every repository call made on
// a user's behalf.
package session

import (
	"errors"
	"fmt"

	"github.com/safar/sellanything/internal/models"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrNoRoles         = errors.New("user has no roles")
	ErrRoleNotGranted  = errors.New("role not granted")
)

type Session struct {
	user   models.User
	active models.Role
}

func New(user models.User) *Session {
	return &Session{user: user}
}

func (s *Session) User() models.User {
	return s.user
}

func (s *Session) UserID() string {
	return s.user.ID
}

func (s *Session) IsUser(id string) bool {
	return s != nil && s.user.ID != "" && s.user.ID == id
}

// Dashboard reports the active role, if one was entered.
func (s *Session) Dashboard() (models.Role, bool) {
	return s.active, s.active != ""
}

// Enter switches the session to the dashboard of role.
func (s *Session) Enter(role models.Role) error {
	if s.user.Roles.Empty() {
		return ErrNoRoles
	}
	if !s.user.Roles.Has(role) {
		return fmt.Errorf("enter %s dashboard: %w", role, ErrRoleNotGranted)
	}
	s.active = role
	return nil
}

func (s *Session) Leave() {
	s.active = ""
}

// Refresh replaces the cached user, dropping the active dashboard when its
// role was revoked.
func (s *Session) Refresh(user models.User) {
	s.user = user
	if s.active != "" && !user.Roles.Has(s.active) {
		s.active = ""
	}
}

// Require checks that s is a logged-in session holding role.
func Require(s *Session, role models.Role) error {
	if err := Check(s); err != nil {
		return err
	}
	if !s.user.Roles.Has(role) {
		return fmt.Errorf("%s required: %w", role, ErrRoleNotGranted)
	}
	return nil
}

// Check returns ErrUnauthenticated for a nil or anonymous session.
func Check(s *Session) error {
	if s == nil || s.user.ID == "" {
		return ErrUnauthenticated
	}
	return nil
}
