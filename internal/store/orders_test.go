package store

import (
	"context"
	"testing"

	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderClearsCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.product(t, f.alice, "Lamp", "20", true)

	_, err := f.repo.AddToCart(ctx, f.carol, p.ID)
	require.NoError(t, err)

	order, err := f.repo.CreateOrder(ctx, f.carol, []models.OrderItem{{ProductID: p.ID, Price: p.Price}})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, f.carol.UserID(), order.BuyerID)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.False(t, order.PurchaseDate.IsZero())

	cart, err := f.repo.GetCart(ctx, f.carol)
	require.NoError(t, err)
	assert.Empty(t, cart.ProductIDs)

	assert.Contains(t, f.events.Types(), events.EventOrderCreated)
}

func TestCreateOrderReportsUnclearedCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.product(t, f.alice, "Lamp", "20", true)

	f.docs.failOn["put:carts"] = true
	order, err := f.repo.CreateOrder(ctx, f.carol, []models.OrderItem{{ProductID: p.ID, Price: p.Price}})
	assert.ErrorIs(t, err, ErrCartNotCleared)
	assert.ErrorIs(t, err, errBoom)
	require.NotNil(t, order, "the order exists even though the cart was not cleared")

	orders, err := f.repo.ListOrdersByBuyer(ctx, f.carol)
	require.NoError(t, err)
	assert.Equal(t, []string{order.ID}, orderIDs(orders))
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.repo.CreateOrder(context.Background(), f.carol, nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutFreezesPrices(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p1 := f.product(t, f.alice, "Lamp", "20", true)
	p2 := f.product(t, f.bob, "Rug", "60", true)

	for _, id := range []string{p1.ID, p2.ID} {
		_, err := f.repo.AddToCart(ctx, f.carol, id)
		require.NoError(t, err)
	}

	order, err := f.repo.Checkout(ctx, f.carol)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Total().Equal(decimal.NewFromInt(80)))

	newPrice := decimal.NewFromInt(999)
	_, err = f.repo.UpdateProduct(ctx, f.alice, p1.ID, ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	orders, err := f.repo.ListOrdersByBuyer(ctx, f.carol)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Total().Equal(decimal.NewFromInt(80)))

	_, err = f.repo.Checkout(ctx, f.carol)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutRefusesUnpurchasable(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	draft := f.product(t, f.alice, "Draft", "20", false)
	own := f.product(t, f.carol, "Mine", "5", true)

	_, err := f.repo.AddToCart(ctx, f.carol, draft.ID)
	require.NoError(t, err)
	_, err = f.repo.Checkout(ctx, f.carol)
	assert.ErrorIs(t, err, ErrNotLive)

	_, err = f.repo.ClearCart(ctx, f.carol)
	require.NoError(t, err)
	_, err = f.repo.AddToCart(ctx, f.carol, own.ID)
	require.NoError(t, err)
	_, err = f.repo.Checkout(ctx, f.carol)
	assert.ErrorIs(t, err, ErrOwnProduct)
}

func TestBuyNowKeepsRestOfCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p1 := f.product(t, f.alice, "Lamp", "20", true)
	p2 := f.product(t, f.alice, "Rug", "60", true)

	for _, id := range []string{p1.ID, p2.ID} {
		_, err := f.repo.AddToCart(ctx, f.carol, id)
		require.NoError(t, err)
	}

	order, err := f.repo.BuyNow(ctx, f.carol, p1.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, p1.ID, order.Items[0].ProductID)

	cart, err := f.repo.GetCart(ctx, f.carol)
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID}, cart.ProductIDs)

	_, err = f.repo.BuyNow(ctx, f.alice, p2.ID)
	assert.ErrorIs(t, err, ErrOwnProduct)

	_, err = f.repo.BuyNow(ctx, f.carol, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestListOrders(t *testing.T) {
	eachMode(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		lamp := f.product(t, f.alice, "Lamp", "20", true)
		rug := f.product(t, f.bob, "Rug", "60", true)

		o1, err := f.repo.BuyNow(ctx, f.carol, lamp.ID)
		require.NoError(t, err)
		o2, err := f.repo.BuyNow(ctx, f.carol, rug.ID)
		require.NoError(t, err)
		o3, err := f.repo.CreateOrder(ctx, f.bob, []models.OrderItem{
			{ProductID: lamp.ID, Price: lamp.Price},
			{ProductID: rug.ID, Price: rug.Price},
		})
		require.NoError(t, err)

		byCarol, err := f.repo.ListOrdersByBuyer(ctx, f.carol)
		require.NoError(t, err)
		assert.Equal(t, []string{o1.ID, o2.ID}, orderIDs(byCarol))

		forAlice, err := f.repo.ListOrdersBySeller(ctx, f.alice)
		require.NoError(t, err)
		assert.Equal(t, []string{o1.ID, o3.ID}, orderIDs(forAlice))

		forBob, err := f.repo.ListOrdersBySeller(ctx, f.bob)
		require.NoError(t, err)
		assert.Equal(t, []string{o2.ID, o3.ID}, orderIDs(forBob))

		none, err := f.repo.ListOrdersBySeller(ctx, f.carol)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	lamp := f.product(t, f.alice, "Lamp", "20", true)

	order, err := f.repo.BuyNow(ctx, f.carol, lamp.ID)
	require.NoError(t, err)

	_, err = f.repo.UpdateOrderStatus(ctx, f.bob, order.ID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrForbidden)

	shipped, err := f.repo.UpdateOrderStatus(ctx, f.alice, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)

	_, err = f.repo.UpdateOrderStatus(ctx, f.alice, order.ID, models.OrderStatusPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, stored.Status)

	_, err = f.repo.UpdateOrderStatus(ctx, f.alice, "missing", models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
