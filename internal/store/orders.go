package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/sirupsen/logrus"
)

// CreateOrder records a paid order for the session's user and then empties
// their cart. The two writes are separate: when the cart cannot be cleared
// the order is still returned, with an error wrapping ErrCartNotCleared.
func (r *Repository) CreateOrder(ctx context.Context, sess *session.Session, items []models.OrderItem) (*models.Order, error) {
	if err := authorize(sess, models.RoleBuyer); err != nil {
		return nil, err
	}
	order, err := r.insertOrder(ctx, sess.UserID(), items)
	if err != nil {
		return order, err
	}

	if err := r.docs.Put(ctx, models.CollectionCarts, order.BuyerID, emptyCart(order.BuyerID)); err != nil {
		return order, fmt.Errorf("%w: %w", ErrCartNotCleared,
			r.fail(err, "clear cart after order", logrus.Fields{"order_id": order.ID, "user_id": order.BuyerID}))
	}
	return order, nil
}

func (r *Repository) insertOrder(ctx context.Context, buyerID string, items []models.OrderItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := models.Order{
		BuyerID:      buyerID,
		Items:        append([]models.OrderItem(nil), items...),
		PurchaseDate: r.now().UTC(),
		Status:       models.OrderStatusPaid,
	}

	id, err := r.docs.Insert(ctx, models.CollectionOrders, order)
	if err != nil {
		return nil, r.fail(err, "create order", logrus.Fields{"user_id": buyerID})
	}
	order.ID = id

	for _, name := range orderIndexes(&order) {
		r.indexAdd(ctx, name, id)
	}

	r.events.Publish(ctx, events.EventOrderCreated, id, events.OrderCreatedPayload{
		OrderID: id,
		BuyerID: buyerID,
		Items:   order.Items,
		Total:   order.Total(),
	})
	return &order, nil
}

// purchasable checks that the buyer may order p.
func purchasable(sess *session.Session, p *models.Product) error {
	if !p.IsLive() {
		return fmt.Errorf("%s: %w", p.ID, ErrNotLive)
	}
	if sess.IsUser(p.SellerID) {
		return fmt.Errorf("%s: %w", p.ID, ErrOwnProduct)
	}
	return nil
}

// Checkout orders everything in the cart at current prices. Cart entries
// whose product no longer exists are dropped.
func (r *Repository) Checkout(ctx context.Context, sess *session.Session) (*models.Order, error) {
	products, _, err := r.CartItems(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]models.OrderItem, 0, len(products))
	for i := range products {
		if err := purchasable(sess, &products[i]); err != nil {
			return nil, err
		}
		items = append(items, models.OrderItem{ProductID: products[i].ID, Price: products[i].Price})
	}
	return r.CreateOrder(ctx, sess, items)
}

// BuyNow orders a single product. Only that product is taken out of the
// cart; the rest of the cart is kept.
func (r *Repository) BuyNow(ctx context.Context, sess *session.Session, productID string) (*models.Order, error) {
	if err := authorize(sess, models.RoleBuyer); err != nil {
		return nil, err
	}
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := purchasable(sess, p); err != nil {
		return nil, err
	}

	order, err := r.insertOrder(ctx, sess.UserID(), []models.OrderItem{{ProductID: p.ID, Price: p.Price}})
	if err != nil {
		return order, err
	}
	if _, err := r.RemoveFromCart(ctx, sess, p.ID); err != nil {
		return order, fmt.Errorf("%w: %w", ErrCartNotCleared, err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByBuyer(ctx context.Context, sess *session.Session) ([]models.Order, error) {
	if err := authorize(sess, ""); err != nil {
		return []models.Order{}, err
	}
	buyerID := sess.UserID()

	orders, err := listBy(ctx, r, models.CollectionOrders, buyerIndex(buyerID), func(o models.Order) bool {
		return o.BuyerID == buyerID
	})
	if err != nil {
		return []models.Order{}, r.fail(err, "list orders by buyer", logrus.Fields{"user_id": buyerID})
	}
	return orders, nil
}

// ListOrdersBySeller returns orders containing at least one of the seller's
// products, oldest first.
func (r *Repository) ListOrdersBySeller(ctx context.Context, sess *session.Session) ([]models.Order, error) {
	if err := authorize(sess, models.RoleSeller); err != nil {
		return []models.Order{}, err
	}
	sellerID := sess.UserID()

	products, err := r.ListProductsBySeller(ctx, sellerID)
	if err != nil {
		return []models.Order{}, err
	}
	if len(products) == 0 {
		return []models.Order{}, nil
	}

	mine := make(map[string]bool, len(products))
	for _, p := range products {
		mine[p.ID] = true
	}
	keep := func(o models.Order) bool {
		for _, item := range o.Items {
			if mine[item.ProductID] {
				return true
			}
		}
		return false
	}

	var orders []models.Order
	if !r.indexed() {
		orders, err = listBy(ctx, r, models.CollectionOrders, "", keep)
	} else {
		orders, err = r.ordersForProducts(ctx, products, keep)
	}
	if err != nil {
		return []models.Order{}, r.fail(err, "list orders by seller", logrus.Fields{"seller_id": sellerID})
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].PurchaseDate.Before(orders[j].PurchaseDate)
	})
	return orders, nil
}

func (r *Repository) ordersForProducts(ctx context.Context, products []models.Product, keep func(models.Order) bool) ([]models.Order, error) {
	var ids []string
	seen := map[string]bool{}
	for _, p := range products {
		members, err := r.index.IndexMembers(ctx, productIndex(p.ID))
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return getMany(ctx, r, models.CollectionOrders, ids, keep)
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := docstore.GetAs[models.Order](ctx, r.docs, models.CollectionOrders, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, r.fail(err, "get order", logrus.Fields{"order_id": id})
	}
	return o, nil
}

// UpdateOrderStatus moves an order forward one step. Only a seller of one of
// the order's products may do so.
func (r *Repository) UpdateOrderStatus(ctx context.Context, sess *session.Session, id string, status models.OrderStatus) (*models.Order, error) {
	if err := authorize(sess, models.RoleSeller); err != nil {
		return nil, err
	}
	order, err := r.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	products, err := r.ListProductsBySeller(ctx, sess.UserID())
	if err != nil {
		return nil, err
	}
	sells := false
	for _, p := range products {
		if order.HasProduct(p.ID) {
			sells = true
			break
		}
	}
	if !sells {
		return nil, ErrForbidden
	}

	if !models.CanTransition(order.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, status, ErrInvalidTransition)
	}

	if err := r.docs.Update(ctx, models.CollectionOrders, id, docstore.Fields{"status": status}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, r.fail(err, "update order status", logrus.Fields{"order_id": id})
	}
	order.Status = status
	return order, nil
}
