package store

import (
	"context"
	"errors"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func emptyCart(userID string) *models.Cart {
	return &models.Cart{UserID: userID, ProductIDs: []string{}}
}

// GetCart returns the buyer's cart, creating an empty one on first use.
func (r *Repository) GetCart(ctx context.Context, sess *session.Session) (*models.Cart, error) {
	if err := authorize(sess, models.RoleBuyer); err != nil {
		return nil, err
	}
	return r.getCart(ctx, sess.UserID())
}

func (r *Repository) getCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := docstore.GetAs[models.Cart](ctx, r.docs, models.CollectionCarts, userID)
	if err == nil {
		if cart.ProductIDs == nil {
			cart.ProductIDs = []string{}
		}
		return cart, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return emptyCart(userID), r.fail(err, "get cart", logrus.Fields{"user_id": userID})
	}

	cart = emptyCart(userID)
	if err := r.docs.Put(ctx, models.CollectionCarts, userID, cart); err != nil {
		return cart, r.fail(err, "create cart", logrus.Fields{"user_id": userID})
	}
	return cart, nil
}

func (r *Repository) putCart(ctx context.Context, cart *models.Cart, msg string) error {
	if err := r.docs.Put(ctx, models.CollectionCarts, cart.UserID, cart); err != nil {
		return r.fail(err, msg, logrus.Fields{"user_id": cart.UserID})
	}
	return nil
}

// AddToCart appends productID once; adding it again changes nothing.
func (r *Repository) AddToCart(ctx context.Context, sess *session.Session, productID string) (*models.Cart, error) {
	cart, err := r.GetCart(ctx, sess)
	if err != nil {
		return cart, err
	}
	if cart.Contains(productID) {
		return cart, nil
	}

	updated := &models.Cart{UserID: cart.UserID, ProductIDs: append(append([]string{}, cart.ProductIDs...), productID)}
	if err := r.putCart(ctx, updated, "add to cart"); err != nil {
		return cart, err
	}
	return updated, nil
}

func (r *Repository) RemoveFromCart(ctx context.Context, sess *session.Session, productID string) (*models.Cart, error) {
	cart, err := r.GetCart(ctx, sess)
	if err != nil {
		return cart, err
	}
	if !cart.Contains(productID) {
		return cart, nil
	}

	updated := emptyCart(cart.UserID)
	for _, id := range cart.ProductIDs {
		if id != productID {
			updated.ProductIDs = append(updated.ProductIDs, id)
		}
	}
	if err := r.putCart(ctx, updated, "remove from cart"); err != nil {
		return cart, err
	}
	return updated, nil
}

func (r *Repository) ClearCart(ctx context.Context, sess *session.Session) (*models.Cart, error) {
	if err := authorize(sess, models.RoleBuyer); err != nil {
		return nil, err
	}
	cart := emptyCart(sess.UserID())
	if err := r.putCart(ctx, cart, "clear cart"); err != nil {
		return cart, err
	}
	return cart, nil
}

// CartItems resolves the cart against current products and sums their
// prices. Ids that no longer resolve are skipped.
func (r *Repository) CartItems(ctx context.Context, sess *session.Session) ([]models.Product, decimal.Decimal, error) {
	cart, err := r.GetCart(ctx, sess)
	if err != nil {
		return []models.Product{}, decimal.Zero, err
	}

	products := make([]models.Product, 0, len(cart.ProductIDs))
	total := decimal.Zero
	for _, id := range cart.ProductIDs {
		p, err := r.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			return []models.Product{}, decimal.Zero, err
		}
		products = append(products, *p)
		total = total.Add(p.Price)
	}
	return products, total, nil
}
