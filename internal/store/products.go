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

type ProductInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Price       decimal.Decimal  `json:"price"`
	Currency    string           `json:"currency"`
	ImageURL    string           `json:"imageUrl"`
	Location    *models.Location `json:"location,omitempty"`
	Status      string           `json:"status"`
}

// ProductPatch holds the fields to change; nil fields are left alone.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
	Location    *models.Location `json:"location,omitempty"`
	Status      *string          `json:"status,omitempty"`
}

func (r *Repository) ListLiveProducts(ctx context.Context) ([]models.Product, error) {
	products, err := docstore.ScanAs[models.Product](ctx, r.docs, models.CollectionProducts)
	if err != nil {
		return []models.Product{}, r.fail(err, "list live products", nil)
	}

	live := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.IsLive() {
			live = append(live, p)
		}
	}
	return live, nil
}

// ListProductsBySeller returns every product of sellerID, drafts included.
func (r *Repository) ListProductsBySeller(ctx context.Context, sellerID string) ([]models.Product, error) {
	products, err := listBy(ctx, r, models.CollectionProducts, sellerIndex(sellerID), func(p models.Product) bool {
		return p.SellerID == sellerID
	})
	if err != nil {
		return []models.Product{}, r.fail(err, "list products by seller", logrus.Fields{"seller_id": sellerID})
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := docstore.GetAs[models.Product](ctx, r.docs, models.CollectionProducts, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, r.fail(err, "get product", logrus.Fields{"product_id": id})
	}
	return p, nil
}

func parseStatus(s string) (models.ProductStatus, error) {
	if s == "" {
		return models.ProductStatusDraft, nil
	}
	status := models.ProductStatus(s)
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func (r *Repository) CreateProduct(ctx context.Context, sess *session.Session, in ProductInput) (*models.Product, error) {
	if err := authorize(sess, models.RoleSeller); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if in.Currency == "" {
		in.Currency = models.DefaultCurrency
	}

	p := models.Product{
		SellerID:    sess.UserID(),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Currency:    in.Currency,
		ImageURL:    in.ImageURL,
		Location:    in.Location,
		Status:      status,
	}

	id, err := r.docs.Insert(ctx, models.CollectionProducts, p)
	if err != nil {
		return nil, r.fail(err, "create product", logrus.Fields{"seller_id": p.SellerID})
	}
	p.ID = id

	r.indexAdd(ctx, sellerIndex(p.SellerID), id)
	return &p, nil
}

// owned loads product id and checks that the session's user sells it.
func (r *Repository) owned(ctx context.Context, sess *session.Session, id string) (*models.Product, error) {
	if err := authorize(sess, models.RoleSeller); err != nil {
		return nil, err
	}
	p, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsUser(p.SellerID) {
		return nil, ErrForbidden
	}
	return p, nil
}

// UpdateProduct merges patch into the product. The id and seller never change.
func (r *Repository) UpdateProduct(ctx context.Context, sess *session.Session, id string, patch ProductPatch) (*models.Product, error) {
	p, err := r.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	fields := docstore.Fields{}
	if patch.Name != nil {
		p.Name = *patch.Name
		fields["name"] = p.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
		fields["description"] = p.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
		fields["category"] = p.Category
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		p.Price = *patch.Price
		fields["price"] = p.Price
	}
	if patch.Currency != nil {
		p.Currency = *patch.Currency
		fields["currency"] = p.Currency
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
		fields["imageUrl"] = p.ImageURL
	}
	if patch.Location != nil {
		p.Location = patch.Location
		fields["location"] = p.Location
	}
	if patch.Status != nil {
		status, err := parseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		p.Status = status
		fields["status"] = p.Status
	}

	if len(fields) == 0 {
		return p, nil
	}

	if err := r.docs.Update(ctx, models.CollectionProducts, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, r.fail(err, "update product", logrus.Fields{"product_id": id})
	}
	return p, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, sess *session.Session, id string) error {
	p, err := r.owned(ctx, sess, id)
	if err != nil {
		return err
	}

	if err := r.docs.Delete(ctx, models.CollectionProducts, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrProductNotFound
		}
		return r.fail(err, "delete product", logrus.Fields{"product_id": id})
	}

	r.indexRemove(ctx, sellerIndex(p.SellerID), id)
	return nil
}
