package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/klari-app/klari-server/internal/mocks"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/recommend"
	"github.com/klari-app/klari-server/internal/testutil"
)

func newTestBuilder(f memoryFixture) *RoutineBuilder {
	log := testutil.MakeNoopLogger()
	routines := NewRoutine(f.routines, f.products, nil, log)
	return NewRoutineBuilder(routines, f.users, recommend.NewMatcher(f.products, nil, log), log)
}

func categories(r model.Routine) []model.Category {
	out := make([]model.Category, 0, len(r.Products))
	for _, p := range r.Products {
		out = append(out, p.Category)
	}
	return out
}

func TestRoutineBuilder_BuildInitial(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	oily := []model.SkinType{model.SkinOily}
	texture := []model.Goal{model.GoalTexture}

	f.product(t, "Night Cleanser", model.CategoryCleanser, model.TimeNight, oily, texture)
	dayCleanser := f.product(t, "Gel Cleanser", model.CategoryCleanser, model.TimeBoth, oily, nil)
	f.product(t, "Dry Serum", model.CategorySerum, model.TimeDay, []model.SkinType{model.SkinDry}, nil)
	texturedSerum := f.product(t, "Acid Serum", model.CategorySerum, model.TimeDay, oily, texture)
	sunscreen := f.product(t, "SPF 50", model.CategorySunscreen, model.TimeDay, nil, nil)

	user := f.user(t, "oily@example.com", model.SkinOily, model.GoalTexture)

	routine, err := newTestBuilder(f).BuildInitial(ctx, user.ID, user.ID, model.RoutineDay)
	require.NoError(t, err)

	assert.True(t, routine.Active)
	assert.Equal(t, user.ID, routine.OwnerID)
	assert.Equal(t, []model.Category{model.CategoryCleanser, model.CategorySerum, model.CategorySunscreen}, categories(routine),
		"moisturizer has no candidate and is left out")
	assert.Equal(t, dayCleanser.ID, routine.Products[0].ID)
	assert.Equal(t, texturedSerum.ID, routine.Products[1].ID)
	assert.Equal(t, sunscreen.ID, routine.Products[2].ID)

	stored, err := f.routines.GetActiveByType(ctx, user.ID, model.RoutineDay)
	require.NoError(t, err)
	assert.Equal(t, routine.ID, stored.ID)
}

func TestRoutineBuilder_ConflictCreatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	user := f.user(t, "a@example.com", model.SkinNormal, model.GoalPores)
	builder := newTestBuilder(f)

	first, err := builder.BuildInitial(ctx, user.ID, user.ID, model.RoutineNight)
	require.NoError(t, err)
	assert.Empty(t, first.Products)

	_, err = builder.BuildInitial(ctx, user.ID, user.ID, model.RoutineNight)
	require.ErrorIs(t, err, model.ErrConflict)

	all, err := f.routines.ListByOwner(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRoutineBuilder_RejectsOtherUsers(t *testing.T) {
	users := &servermocks.UserStore{}
	routines := &servermocks.RoutineStore{}
	products := &servermocks.ProductStore{}
	log := testutil.MakeNoopLogger()

	builder := NewRoutineBuilder(NewRoutine(routines, products, nil, log), users, recommend.NewMatcher(products, nil, log), log)

	_, err := builder.BuildInitial(context.Background(), 1, 2, model.RoutineDay)
	require.ErrorIs(t, err, model.ErrForbidden)
	assert.Empty(t, routines.Calls)
	assert.Empty(t, users.Calls)
}

func TestRoutineBuilder_StoreRaceMapsToConflict(t *testing.T) {
	users := &servermocks.UserStore{}
	routines := &servermocks.RoutineStore{}
	products := &servermocks.ProductStore{}
	log := testutil.MakeNoopLogger()
	recorder := &countingRecorder{}

	routines.On("GetActiveByType", mock.Anything, int64(3), model.RoutineNight).Return(model.Routine{}, model.ErrNotFound).Once()
	users.On("GetByID", mock.Anything, int64(3)).Return(model.User{ID: 3, SkinType: model.SkinDry, Goals: []model.Goal{model.GoalHydration}}, nil).Once()
	products.On("FindSummaries", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Page[model.ProductSummary]{Content: []model.ProductSummary{}}, nil)
	routines.On("Create", mock.Anything, mock.Anything).Return(model.Routine{}, model.ErrConflict).Once()

	builder := NewRoutineBuilder(NewRoutine(routines, products, recorder, log), users, recommend.NewMatcher(products, nil, log), log)

	_, err := builder.BuildInitial(context.Background(), 3, 3, model.RoutineNight)
	require.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, 1, recorder.count())
	routines.AssertExpectations(t)
}
