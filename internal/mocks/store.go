package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/klari-app/klari-server/internal/model"
)

// ProductStore is a mock of model.ProductStore.
type ProductStore struct {
	mock.Mock
}

func (m *ProductStore) Create(ctx context.Context, product model.Product) (model.Product, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *ProductStore) Update(ctx context.Context, product model.Product) (model.Product, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *ProductStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ProductStore) GetByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *ProductStore) GetSummaryByID(ctx context.Context, id int64) (model.ProductSummary, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.ProductSummary), args.Error(1)
}

func (m *ProductStore) Find(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.Product], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(model.Page[model.Product]), args.Error(1)
}

func (m *ProductStore) FindSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(model.Page[model.ProductSummary]), args.Error(1)
}

// UserStore is a mock of model.UserStore.
type UserStore struct {
	mock.Mock
}

func (m *UserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) GetByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *UserStore) SetSkinType(ctx context.Context, id int64, skinType model.SkinType) error {
	args := m.Called(ctx, id, skinType)
	return args.Error(0)
}

func (m *UserStore) AddGoal(ctx context.Context, id int64, goal model.Goal) error {
	args := m.Called(ctx, id, goal)
	return args.Error(0)
}

func (m *UserStore) RemoveGoal(ctx context.Context, id int64, goal model.Goal) error {
	args := m.Called(ctx, id, goal)
	return args.Error(0)
}

func (m *UserStore) AddToCollection(ctx context.Context, id int64, collection model.Collection, productID int64) error {
	args := m.Called(ctx, id, collection, productID)
	return args.Error(0)
}

func (m *UserStore) RemoveFromCollection(ctx context.Context, id int64, collection model.Collection, productID int64) error {
	args := m.Called(ctx, id, collection, productID)
	return args.Error(0)
}

func (m *UserStore) InCollection(ctx context.Context, id int64, collection model.Collection, productID int64) (bool, error) {
	args := m.Called(ctx, id, collection, productID)
	return args.Bool(0), args.Error(1)
}

func (m *UserStore) ListCollection(ctx context.Context, id int64, collection model.Collection, category *model.Category, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	args := m.Called(ctx, id, collection, category, page)
	return args.Get(0).(model.Page[model.ProductSummary]), args.Error(1)
}

// RoutineStore is a mock of model.RoutineStore.
type RoutineStore struct {
	mock.Mock
}

func (m *RoutineStore) Create(ctx context.Context, routine model.Routine) (model.Routine, error) {
	args := m.Called(ctx, routine)
	return args.Get(0).(model.Routine), args.Error(1)
}

func (m *RoutineStore) GetByID(ctx context.Context, id int64) (model.Routine, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Routine), args.Error(1)
}

func (m *RoutineStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Routine, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]model.Routine), args.Error(1)
}

func (m *RoutineStore) GetActiveByType(ctx context.Context, ownerID int64, routineType model.RoutineType) (model.Routine, error) {
	args := m.Called(ctx, ownerID, routineType)
	return args.Get(0).(model.Routine), args.Error(1)
}

func (m *RoutineStore) ListInactiveByType(ctx context.Context, ownerID int64, routineType model.RoutineType) ([]model.Routine, error) {
	args := m.Called(ctx, ownerID, routineType)
	return args.Get(0).([]model.Routine), args.Error(1)
}

func (m *RoutineStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RoutineStore) AddProduct(ctx context.Context, routineID int64, product model.ProductSummary) error {
	args := m.Called(ctx, routineID, product)
	return args.Error(0)
}

func (m *RoutineStore) RemoveProduct(ctx context.Context, routineID int64, productID int64) error {
	args := m.Called(ctx, routineID, productID)
	return args.Error(0)
}

func (m *RoutineStore) SetActive(ctx context.Context, routineID int64, active bool) error {
	args := m.Called(ctx, routineID, active)
	return args.Error(0)
}
