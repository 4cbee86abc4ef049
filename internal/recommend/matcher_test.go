package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/repository/memory"
	"github.com/klari-app/klari-server/internal/testutil"
)

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) FindSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(model.Page[model.ProductSummary]), args.Error(1)
}

type mockTierObserver struct {
	mock.Mock
}

func (m *mockTierObserver) ObserveTier(tier string) {
	m.Called(tier)
}

func catalog(t *testing.T, products ...model.Product) *memory.ProductRepository {
	t.Helper()
	repo := memory.NewProductRepository(memory.New())
	for _, p := range products {
		_, err := repo.Create(context.Background(), p)
		require.NoError(t, err)
	}
	return repo
}

func serum(name string, appTime model.ApplicationTime, skin []model.SkinType, goals []model.Goal) model.Product {
	return model.Product{
		Name:            name,
		Brand:           "Acme",
		Category:        model.CategorySerum,
		ApplicationTime: appTime,
		SkinTypes:       skin,
		Goals:           goals,
	}
}

func names(page model.Page[model.ProductSummary]) []string {
	out := make([]string, 0, len(page.Content))
	for _, p := range page.Content {
		out = append(out, p.Name)
	}
	return out
}

func TestMatcher_Match(t *testing.T) {
	p1 := serum("P1", model.TimeDay, []model.SkinType{model.SkinOily}, []model.Goal{model.GoalTexture})
	p2 := serum("P2", model.TimeDay, []model.SkinType{model.SkinDry}, nil)

	tests := map[string]struct {
		catalog   []model.Product
		query     Query
		wantTier  string
		wantNames []string
	}{
		"all refinements match": {
			catalog:   []model.Product{p1, p2},
			query:     Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinOily, Goals: []model.Goal{model.GoalTexture}},
			wantTier:  TierFull,
			wantNames: []string{"P1"},
		},
		"goal relaxed when skin type alone matches": {
			catalog:   []model.Product{p1, p2},
			query:     Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinDry, Goals: []model.Goal{model.GoalTexture}},
			wantTier:  TierSkinType,
			wantNames: []string{"P2"},
		},
		"skin type relaxed when only goals match": {
			catalog:   []model.Product{p1, p2},
			query:     Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinNormal, Goals: []model.Goal{model.GoalTexture}},
			wantTier:  TierGoals,
			wantNames: []string{"P1"},
		},
		"category and time only": {
			catalog:   []model.Product{p1, p2},
			query:     Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinNormal, Goals: []model.Goal{model.GoalHydration}},
			wantTier:  TierCategoryTime,
			wantNames: []string{"P1", "P2"},
		},
		"no goals never satisfies goal tiers": {
			catalog:   []model.Product{p1},
			query:     Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinNormal},
			wantTier:  TierCategoryTime,
			wantNames: []string{"P1"},
		},
		"both-time products fit any slot": {
			catalog:   []model.Product{serum("Both", model.TimeBoth, []model.SkinType{model.SkinOily}, nil)},
			query:     Query{Category: model.CategorySerum, Time: model.TimeNight, SkinType: model.SkinOily},
			wantTier:  TierSkinType,
			wantNames: []string{"Both"},
		},
		"time is never relaxed": {
			catalog:   []model.Product{p1, p2},
			query:     Query{Category: model.CategorySerum, Time: model.TimeNight, SkinType: model.SkinOily, Goals: []model.Goal{model.GoalTexture}},
			wantTier:  TierNone,
			wantNames: []string{},
		},
		"empty catalog": {
			query:     Query{Category: model.CategoryToner, Time: model.TimeDay, SkinType: model.SkinOily},
			wantTier:  TierNone,
			wantNames: []string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := NewMatcher(catalog(t, tt.catalog...), nil, testutil.MakeNoopLogger())

			res, err := m.Match(context.Background(), tt.query, model.PageRequest{Size: 10})
			require.NoError(t, err)

			assert.Equal(t, tt.wantTier, res.Tier)
			assert.Equal(t, tt.wantNames, names(res.Page))
		})
	}
}

func TestMatcher_PagingStaysInSelectedTier(t *testing.T) {
	repo := catalog(t,
		serum("Full", model.TimeDay, []model.SkinType{model.SkinOily}, []model.Goal{model.GoalPores}),
		serum("Other", model.TimeDay, []model.SkinType{model.SkinDry}, nil),
	)
	m := NewMatcher(repo, nil, testutil.MakeNoopLogger())
	q := Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinOily, Goals: []model.Goal{model.GoalPores}}

	res, err := m.Match(context.Background(), q, model.PageRequest{Page: 3, Size: 1})
	require.NoError(t, err)

	assert.Equal(t, TierFull, res.Tier)
	assert.Empty(t, res.Page.Content)
	assert.Equal(t, int64(1), res.Page.TotalElements)
}

func TestMatcher_StopsAtFirstNonEmptyTier(t *testing.T) {
	finder := new(mockFinder)
	observer := new(mockTierObserver)
	page := model.PageRequest{Size: 5}
	q := Query{Category: model.CategoryCleanser, Time: model.TimeNight, SkinType: model.SkinDry, Goals: []model.Goal{model.GoalIrritation}}

	empty := model.NewPage([]model.ProductSummary{}, page, 0)
	hit := model.NewPage([]model.ProductSummary{{ID: 4, Name: "Milk", Category: model.CategoryCleanser}}, page, 1)

	finder.On("FindSummaries", mock.Anything, Tiers[0].Filter(q), page).Return(empty, nil).Once()
	finder.On("FindSummaries", mock.Anything, Tiers[1].Filter(q), page).Return(hit, nil).Once()
	observer.On("ObserveTier", TierSkinType).Once()

	res, err := NewMatcher(finder, observer, testutil.MakeNoopLogger()).Match(context.Background(), q, page)
	require.NoError(t, err)

	assert.Equal(t, TierSkinType, res.Tier)
	assert.Equal(t, hit, res.Page)
	finder.AssertNumberOfCalls(t, "FindSummaries", 2)
	observer.AssertExpectations(t)
}

func TestMatcher_Errors(t *testing.T) {
	t.Run("store failure", func(t *testing.T) {
		finder := new(mockFinder)
		boom := errors.New("connection reset")
		finder.On("FindSummaries", mock.Anything, mock.Anything, mock.Anything).
			Return(model.Page[model.ProductSummary]{}, boom)

		_, err := NewMatcher(finder, nil, testutil.MakeNoopLogger()).
			Match(context.Background(), Query{Category: model.CategoryOil, Time: model.TimeDay}, model.PageRequest{Size: 1})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("invalid page", func(t *testing.T) {
		finder := new(mockFinder)
		_, err := NewMatcher(finder, nil, testutil.MakeNoopLogger()).
			Match(context.Background(), Query{}, model.PageRequest{Size: 0})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		finder.AssertNotCalled(t, "FindSummaries", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTop(t *testing.T) {
	repo := catalog(t,
		serum("A", model.TimeDay, []model.SkinType{model.SkinOily}, nil),
		serum("B", model.TimeDay, []model.SkinType{model.SkinOily}, nil),
		serum("C", model.TimeDay, []model.SkinType{model.SkinOily}, nil),
	)
	m := NewMatcher(repo, nil, testutil.MakeNoopLogger())
	q := Query{Category: model.CategorySerum, Time: model.TimeDay, SkinType: model.SkinOily}

	res, err := Top(context.Background(), m, q, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(res.Page))

	_, err = Top(context.Background(), m, q, 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestTierFilter(t *testing.T) {
	q := Query{Category: model.CategoryMask, Time: model.TimeNight, SkinType: model.SkinOily}

	full := Tiers[0].Filter(q)
	require.NotNil(t, full.SkinType)
	assert.Equal(t, model.SkinOily, *full.SkinType)
	assert.NotNil(t, full.Goals, "goal tier must filter even when the profile has no goals")
	assert.Empty(t, full.Goals)

	last := Tiers[len(Tiers)-1].Filter(q)
	assert.Nil(t, last.SkinType)
	assert.Nil(t, last.Goals)
	assert.Equal(t, model.CategoryMask, *last.Category)
	assert.Equal(t, model.TimeNight, *last.Time)
}
