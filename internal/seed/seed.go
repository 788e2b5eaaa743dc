// Package seed loads the demo marketplace into an empty store.
package seed

import (
	"context"
	"fmt"

	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/safar/sellanything/internal/store"
	"github.com/shopspring/decimal"
)

type demoSeller struct {
	email string
	name  string
	roles models.RoleSet
}

type demoProduct struct {
	seller      int
	name        string
	description string
	category    string
	price       int64
	image       string
}

var sellers = []demoSeller{
	{"alice@example.com", "Alice", models.AllRoles()},
	{"bob@example.com", "Bob", models.NewRoleSet(models.RoleSeller)},
}

var products = []demoProduct{
	{0, "Vintage Leather Jacket", "A stylish vintage leather jacket.", "Clothing", 150, "prod1"},
	{0, "Handmade Wooden Chair", "A beautifully crafted wooden chair.", "Home & Kitchen", 250, "prod2"},
	{1, "Modern Art Print", "A vibrant abstract art print for your home.", "Home & Kitchen", 75, "prod3"},
	{1, "Wireless Headphones", "High-fidelity wireless headphones with noise cancellation.", "Electronics", 199, "prod4"},
	{0, "Gourmet Coffee Beans", "1lb bag of single-origin Ethiopian coffee beans.", "Health & Household", 22, "prod5"},
}

// Demo creates the demo sellers and their live products when docs holds no
// users and no products. It reports whether anything was written.
func Demo(ctx context.Context, repo *store.Repository, docs docstore.Store) (bool, error) {
	for _, c := range []string{models.CollectionUsers, models.CollectionProducts} {
		existing, err := docs.Scan(ctx, c)
		if err != nil {
			return false, fmt.Errorf("check %s: %w", c, err)
		}
		if len(existing) > 0 {
			return false, nil
		}
	}

	sessions := make([]*session.Session, 0, len(sellers))
	for _, s := range sellers {
		u, err := repo.Login(ctx, s.email)
		if err != nil {
			return false, fmt.Errorf("seed user %s: %w", s.email, err)
		}
		sess := session.New(*u)

		user := *u
		user.Name = s.name
		user.Roles = s.roles
		if _, err := repo.UpdateUser(ctx, sess, user); err != nil {
			return false, fmt.Errorf("seed user %s: %w", s.email, err)
		}
		sessions = append(sessions, sess)
	}

	for _, p := range products {
		_, err := repo.CreateProduct(ctx, sessions[p.seller], store.ProductInput{
			Name:        p.name,
			Description: p.description,
			Category:    p.category,
			Price:       decimal.NewFromInt(p.price),
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/400/300", p.image),
			Status:      string(models.ProductStatusLive),
		})
		if err != nil {
			return false, fmt.Errorf("seed product %s: %w", p.name, err)
		}
	}
	return true, nil
}
