// Package recommend selects catalog products for a routine slot.
//
// Matching walks an ordered list of tiers, from the most to the least
// restrictive, and returns the first tier whose result set is non-empty. Category
// and application time are never relaxed; skin type and goals are.
package recommend

import (
	"context"
	"fmt"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// Tier names as reported with every result.
const (
	TierFull         = "full"
	TierSkinType     = "skin_type"
	TierGoals        = "goals"
	TierCategoryTime = "category_time"
	TierNone         = "none"
)

// Query describes the slot to fill and the profile to match against.
type Query struct {
	Category model.Category
	Time     model.ApplicationTime
	SkinType model.SkinType
	Goals    []model.Goal
}

// Tier is one relaxation level: which of the optional refinements it applies.
type Tier struct {
	Name     string
	SkinType bool
	Goals    bool
}

// Filter builds the catalog filter for q at this tier.
func (t Tier) Filter(q Query) model.ProductFilter {
	category := q.Category
	appTime := q.Time
	filter := model.ProductFilter{Category: &category, Time: &appTime}

	if t.SkinType {
		skinType := q.SkinType
		filter.SkinType = &skinType
	}
	if t.Goals {
		// A profile without goals intersects with nothing.
		filter.Goals = append([]model.Goal{}, q.Goals...)
	}
	return filter
}

// Tiers is the cascade in evaluation order.
var Tiers = []Tier{
	{Name: TierFull, SkinType: true, Goals: true},
	{Name: TierSkinType, SkinType: true},
	{Name: TierGoals, Goals: true},
	{Name: TierCategoryTime},
}

// Result is a page of recommendations tagged with the tier that produced it.
type Result struct {
	Tier string                           `json:"tier"`
	Page model.Page[model.ProductSummary] `json:"page"`
}

// Recommender is implemented by Matcher and its cached decorator.
type Recommender interface {
	Match(ctx context.Context, q Query, page model.PageRequest) (Result, error)
}

// Finder is the catalog query the matcher needs.
type Finder interface {
	FindSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error)
}

// TierObserver records which tier served a lookup.
type TierObserver interface {
	ObserveTier(tier string)
}

// Matcher runs the tier cascade against the product catalog.
type Matcher struct {
	products Finder
	observer TierObserver
	logger   *logger.Logger
}

// NewMatcher creates a Matcher over products. observer may be nil.
func NewMatcher(products Finder, observer TierObserver, logger *logger.Logger) *Matcher {
	return &Matcher{
		products: products,
		observer: observer,
		logger:   logger,
	}
}

// Match returns the requested page of the first tier with at least one matching
// product. A tier is selected by its total size, not by the requested page, so
// paging past the end of a tier yields an empty page of that tier rather than
// falling through to a later one. When every tier is empty the result carries
// TierNone and an empty page.
func (m *Matcher) Match(ctx context.Context, q Query, page model.PageRequest) (Result, error) {
	if err := page.Validate(); err != nil {
		return Result{}, err
	}

	for _, tier := range Tiers {
		found, err := m.products.FindSummaries(ctx, tier.Filter(q), page)
		if err != nil {
			return Result{}, fmt.Errorf("failed to query tier %s: %w", tier.Name, err)
		}
		if found.TotalElements > 0 {
			m.observe(tier.Name)
			m.logger.Debug("Matcher: tier selected",
				"tier", tier.Name, "category", q.Category, "time", q.Time, "total", found.TotalElements)
			return Result{Tier: tier.Name, Page: found}, nil
		}
	}

	m.observe(TierNone)
	m.logger.Debug("Matcher: no product for slot", "category", q.Category, "time", q.Time)
	return Result{Tier: TierNone, Page: model.NewPage([]model.ProductSummary{}, page, 0)}, nil
}

func (m *Matcher) observe(tier string) {
	if m.observer != nil {
		m.observer.ObserveTier(tier)
	}
}

// Top returns up to limit best matches for q, using the same cascade as Match.
func Top(ctx context.Context, r Recommender, q Query, limit int) (Result, error) {
	if limit < 1 || limit > model.MaxPageSize {
		return Result{}, fmt.Errorf("limit must be between 1 and %d: %w", model.MaxPageSize, model.ErrInvalidInput)
	}
	return r.Match(ctx, q, model.PageRequest{Page: 0, Size: limit, Sort: model.SortByID})
}
