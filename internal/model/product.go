package model

import (
	"context"
	"slices"
	"strings"
	"time"
)

// ProductStore defines persistence operations for the product catalog.
type ProductStore interface {
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Product, error)
	GetSummaryByID(ctx context.Context, id int64) (ProductSummary, error)
	Find(ctx context.Context, filter ProductFilter, page PageRequest) (Page[Product], error)
	FindSummaries(ctx context.Context, filter ProductFilter, page PageRequest) (Page[ProductSummary], error)
}

// Product is a catalog entry.
type Product struct {
	ID              int64           `json:"id" yaml:"-"`
	Name            string          `json:"name" yaml:"name"`
	Brand           string          `json:"brand" yaml:"brand"`
	ImageURL        string          `json:"imageUrl" yaml:"imageUrl"`
	ImageKey        string          `json:"-" yaml:"-"`
	Description     string          `json:"description" yaml:"description"`
	Category        Category        `json:"category" yaml:"category"`
	ApplicationTime ApplicationTime `json:"applicationTime" yaml:"applicationTime"`
	SkinTypes       []SkinType      `json:"skinTypes" yaml:"skinTypes"`
	Goals           []Goal          `json:"goals" yaml:"goals"`
	CreatedAt       time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt       time.Time       `json:"updatedAt" yaml:"-"`
}

// Summary projects the product to its listing shape.
func (p Product) Summary() ProductSummary {
	return ProductSummary{
		ID:       p.ID,
		Name:     p.Name,
		Brand:    p.Brand,
		ImageURL: p.ImageURL,
		Category: p.Category,
	}
}

// ProductSummary is the listing projection of a product.
type ProductSummary struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Brand    string   `json:"brand"`
	ImageURL string   `json:"imageUrl"`
	Category Category `json:"category"`
}

// ProductFilter narrows catalog queries. Zero-valued fields do not filter.
// Goals, when non-nil, requires a non-empty intersection with the product's goals;
// a non-nil empty slice therefore matches nothing.
type ProductFilter struct {
	Category *Category
	Time     *ApplicationTime
	SkinType *SkinType
	Goals    []Goal
	Brand    string
	Query    string
}

// Matches evaluates the filter against a product in memory. Postgres stores
// translate the same predicates to SQL.
func (f ProductFilter) Matches(p Product) bool {
	if f.Category != nil && p.Category != *f.Category {
		return false
	}
	if f.Time != nil && !p.ApplicationTime.CompatibleWith(*f.Time) {
		return false
	}
	if f.SkinType != nil && !slices.Contains(p.SkinTypes, *f.SkinType) {
		return false
	}
	if f.Goals != nil && !slices.ContainsFunc(p.Goals, func(g Goal) bool { return slices.Contains(f.Goals, g) }) {
		return false
	}
	if f.Brand != "" && !strings.EqualFold(p.Brand, f.Brand) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Brand), q) {
			return false
		}
	}
	return true
}
