package store

import (
	"errors"
	"fmt"

	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = session.ErrUnauthenticated
	ErrEmptyMessage      = errors.New("message text is empty")
	ErrNoRecipient       = errors.New("message has no recipient")
	ErrMessageDeleted    = errors.New("message was deleted")
	ErrCartNotCleared    = errors.New("order created but cart was not cleared")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidStatus     = errors.New("invalid product status")
	ErrNotLive           = errors.New("product is not live")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOwnProduct        = errors.New("cannot buy your own product")
	ErrEmailRequired     = errors.New("email is required")
)

// authorize checks the session is logged in and, when role is set, holds it.
// A missing role is reported as ErrForbidden.
func authorize(sess *session.Session, role models.Role) error {
	if role == "" {
		return session.Check(sess)
	}
	if err := session.Require(sess, role); err != nil {
		if errors.Is(err, session.ErrRoleNotGranted) {
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return err
	}
	return nil
}
