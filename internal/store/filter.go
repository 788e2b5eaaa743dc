package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/safar/sellanything/internal/geo"
	"github.com/safar/sellanything/internal/models"
	"github.com/shopspring/decimal"
)

const AllCategories = "all"

// PriceRange is inclusive on both ends. A nil Max is open.
type PriceRange struct {
	Min decimal.Decimal
	Max *decimal.Decimal
}

func (pr PriceRange) Contains(price decimal.Decimal) bool {
	if price.LessThan(pr.Min) {
		return false
	}
	return pr.Max == nil || price.LessThanOrEqual(*pr.Max)
}

// ParsePriceRange reads "min-max" or "min-Infinity". "all" and "" mean no
// price filter and return nil.
func ParsePriceRange(s string) (*PriceRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return nil, nil
	}

	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("price range %q: %w", s, ErrInvalidPrice)
	}

	from, err := decimal.NewFromString(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("price range %q: %w", s, ErrInvalidPrice)
	}
	pr := &PriceRange{Min: from}

	hi = strings.TrimSpace(hi)
	if hi == "" || strings.EqualFold(hi, "infinity") {
		return pr, nil
	}
	to, err := decimal.NewFromString(hi)
	if err != nil || to.LessThan(from) {
		return nil, fmt.Errorf("price range %q: %w", s, ErrInvalidPrice)
	}
	pr.Max = &to
	return pr, nil
}

type ProductFilter struct {
	Query    string
	Category string
	Price    *PriceRange
	// Buyer enables distance sorting; MaxDistanceKm > 0 also drops products
	// farther away and products without a location.
	Buyer         *geo.Point
	MaxDistanceKm float64
}

type ProductResult struct {
	models.Product
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

func (f ProductFilter) match(p models.Product) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
		return false
	}
	if f.Price != nil && !f.Price.Contains(p.Price) {
		return false
	}
	return true
}

// FilterProducts applies f to products, keeping their order unless a buyer
// location is set, in which case results are sorted nearest first and
// products without a location come last.
func FilterProducts(products []models.Product, f ProductFilter) []ProductResult {
	out := make([]ProductResult, 0, len(products))
	for _, p := range products {
		if !f.match(p) {
			continue
		}
		res := ProductResult{Product: p}
		if f.Buyer != nil && p.Location != nil {
			d := geo.Haversine(*f.Buyer, geo.Point{Lat: p.Location.Lat, Lng: p.Location.Lng})
			res.DistanceKm = &d
		}
		if f.Buyer != nil && f.MaxDistanceKm > 0 {
			if res.DistanceKm == nil || *res.DistanceKm > f.MaxDistanceKm {
				continue
			}
		}
		out = append(out, res)
	}

	if f.Buyer != nil {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DistanceKm, out[j].DistanceKm
			if a == nil {
				return false
			}
			return b == nil || *a < *b
		})
	}
	return out
}

// BrowseProducts is the buyer catalogue: live products through f.
func (r *Repository) BrowseProducts(ctx context.Context, f ProductFilter) ([]ProductResult, error) {
	live, err := r.ListLiveProducts(ctx)
	if err != nil {
		return []ProductResult{}, err
	}
	return FilterProducts(live, f), nil
}

// Categories lists "all" followed by each distinct category in first-seen
// order.
func Categories(products []models.Product) []string {
	out := []string{AllCategories}
	seen := map[string]bool{}
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}
