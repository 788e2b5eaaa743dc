package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CollectionUsers    = "users"
	CollectionProducts = "products"
	CollectionOrders   = "orders"
	CollectionCarts    = "carts"
	CollectionMessages = "messages"
)

const DefaultCurrency = "USD"

type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	ProfilePicURL string  `json:"profilePicUrl"`
	Roles         RoleSet `json:"roles"`
}

type ProductStatus string

const (
	ProductStatusDraft ProductStatus = "draft"
	ProductStatusLive  ProductStatus = "live"
)

func (s ProductStatus) Valid() bool {
	return s == ProductStatusDraft || s == ProductStatusLive
}

type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"sellerId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ImageURL    string          `json:"imageUrl"`
	Location    *Location       `json:"location,omitempty"`
	Status      ProductStatus   `json:"status"`
}

func (p Product) IsLive() bool {
	return p.Status == ProductStatusLive
}

// Cart is keyed by UserID; ProductIDs never holds duplicates.
type Cart struct {
	UserID     string   `json:"userId"`
	ProductIDs []string `json:"productIds"`
}

func (c Cart) Contains(productID string) bool {
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true},
	OrderStatusPaid:      {OrderStatusShipped: true},
	OrderStatusShipped:   {OrderStatusDelivered: true},
	OrderStatusDelivered: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// OrderItem carries the price paid, captured when the order was created.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID           string      `json:"id"`
	BuyerID      string      `json:"buyerId"`
	Items        []OrderItem `json:"items"`
	PurchaseDate time.Time   `json:"purchaseDate"`
	Status       OrderStatus `json:"status"`
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price)
	}
	return total
}

func (o Order) HasProduct(productID string) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

type Message struct {
	ID        string     `json:"id"`
	FromID    string     `json:"fromId"`
	ToID      string     `json:"toId"`
	Text      string     `json:"text"`
	ProductID string     `json:"productId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Deleted   bool       `json:"deleted,omitempty"`
}

// Counterpart returns the other participant as seen from userID.
func (m Message) Counterpart(userID string) string {
	if m.FromID == userID {
		return m.ToID
	}
	return m.FromID
}

func (m Message) Involves(userID string) bool {
	return m.FromID == userID || m.ToID == userID
}

// Redacted returns the message as presentation may see it: a deleted
// message keeps its id and timestamps but loses its text.
func (m Message) Redacted() Message {
	if m.Deleted {
		m.Text = ""
	}
	return m
}

var Categories = []string{
	"Electronics",
	"Clothing",
	"Home & Kitchen",
	"Beauty & Personal Care",
	"Sports & Outdoors",
	"Books",
	"Toys & Games",
	"Automotive",
	"Health & Household",
}
