package store

import (
	"context"
	"testing"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCartCreatesEmptyCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	cart, err := f.repo.GetCart(ctx, f.carol)
	require.NoError(t, err)
	assert.Equal(t, f.carol.UserID(), cart.UserID)
	assert.NotNil(t, cart.ProductIDs)
	assert.Empty(t, cart.ProductIDs)

	stored, err := docstore.GetAs[models.Cart](ctx, f.mem, models.CollectionCarts, f.carol.UserID())
	require.NoError(t, err)
	assert.Equal(t, f.carol.UserID(), stored.UserID)
}

func TestAddToCartIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p1 := f.product(t, f.alice, "Lamp", "20", true)
	p2 := f.product(t, f.alice, "Rug", "60", true)

	_, err := f.repo.AddToCart(ctx, f.carol, p1.ID)
	require.NoError(t, err)
	_, err = f.repo.AddToCart(ctx, f.carol, p2.ID)
	require.NoError(t, err)
	cart, err := f.repo.AddToCart(ctx, f.carol, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID, p2.ID}, cart.ProductIDs)

	again, err := f.repo.GetCart(ctx, f.carol)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID, p2.ID}, again.ProductIDs)
}

func TestRemoveAndClearCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := f.repo.AddToCart(ctx, f.carol, id)
		require.NoError(t, err)
	}

	cart, err := f.repo.RemoveFromCart(ctx, f.carol, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, cart.ProductIDs)

	cart, err = f.repo.RemoveFromCart(ctx, f.carol, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, cart.ProductIDs)

	cart, err = f.repo.ClearCart(ctx, f.carol)
	require.NoError(t, err)
	assert.Empty(t, cart.ProductIDs)

	cart, err = f.repo.GetCart(ctx, f.carol)
	require.NoError(t, err)
	assert.Empty(t, cart.ProductIDs)
}

func TestCartItemsSkipsMissingProducts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p1 := f.product(t, f.alice, "Lamp", "20.50", true)
	p2 := f.product(t, f.bob, "Rug", "60", true)

	for _, id := range []string{p1.ID, "gone", p2.ID} {
		_, err := f.repo.AddToCart(ctx, f.carol, id)
		require.NoError(t, err)
	}

	products, total, err := f.repo.CartItems(ctx, f.carol)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID, p2.ID}, productIDs(products))
	assert.True(t, total.Equal(decimal.RequireFromString("80.50")), total.String())
}

func TestCartWriteFailureKeepsCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.repo.AddToCart(ctx, f.carol, "a")
	require.NoError(t, err)

	f.docs.failOn["put:carts"] = true
	cart, err := f.repo.AddToCart(ctx, f.carol, "b")
	assert.ErrorIs(t, err, errBoom)
	require.NotNil(t, cart)
	assert.Equal(t, []string{"a"}, cart.ProductIDs)
}

func TestCartRequiresBuyer(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.repo.GetCart(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
