package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/klari-app/klari-server/internal/mocks"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/testutil"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func validProduct() model.Product {
	return model.Product{
		Name:            "Barrier Cream",
		Brand:           "Acme",
		Category:        "MOISTURIZER",
		ApplicationTime: "night",
		SkinTypes:       []model.SkinType{"dry", "Dry", "sensitive"},
		Goals:           []model.Goal{"fine_lines"},
	}
}

func TestProduct_Create(t *testing.T) {
	tests := []struct {
		name      string
		product   model.Product
		mockSetup func(*servermocks.ProductStore, *mockInvalidator)
		wantErr   error
	}{
		{
			name:    "normalizes enums and invalidates recommendations",
			product: validProduct(),
			mockSetup: func(store *servermocks.ProductStore, inv *mockInvalidator) {
				store.On("Create", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
					return p.Category == model.CategoryMoisturizer &&
						p.ApplicationTime == model.TimeNight &&
						assert.ObjectsAreEqual([]model.SkinType{model.SkinDry, model.SkinSensitive}, p.SkinTypes) &&
						assert.ObjectsAreEqual([]model.Goal{model.GoalFineLines}, p.Goals)
				})).Return(model.Product{ID: 1}, nil).Once()
				inv.On("Invalidate", mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "rejects missing name",
			product: func() model.Product {
				p := validProduct()
				p.Name = "  "
				return p
			}(),
			wantErr: model.ErrInvalidInput,
		},
		{
			name: "rejects unknown category",
			product: func() model.Product {
				p := validProduct()
				p.Category = "lipstick"
				return p
			}(),
			wantErr: model.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &servermocks.ProductStore{}
			inv := &mockInvalidator{}
			if tt.mockSetup != nil {
				tt.mockSetup(store, inv)
			}

			_, err := NewProduct(store, nil, inv, "", testutil.MakeNoopLogger()).Create(context.Background(), tt.product)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			store.AssertExpectations(t)
			inv.AssertExpectations(t)
		})
	}
}

func TestProduct_CreateBulkValidatesFirst(t *testing.T) {
	store := &servermocks.ProductStore{}
	bad := validProduct()
	bad.ApplicationTime = "noon"

	_, err := NewProduct(store, nil, nil, "", testutil.MakeNoopLogger()).
		CreateBulk(context.Background(), []model.Product{validProduct(), bad})
	require.ErrorIs(t, err, model.ErrInvalidInput)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProduct_UploadImage(t *testing.T) {
	ctx := context.Background()
	existing := model.Product{ID: 4, Name: "Gel", ImageKey: "products/4/old", ImageURL: "/api/products/4/image"}

	t.Run("stores object and replaces previous", func(t *testing.T) {
		store := &servermocks.ProductStore{}
		storage := &servermocks.Storage{}
		inv := &mockInvalidator{}

		store.On("GetByID", mock.Anything, int64(4)).Return(existing, nil).Once()
		storage.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "products/4/") && key != existing.ImageKey
		}), mock.Anything, "image/png").Return(nil).Once()
		store.On("Update", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
			return strings.HasPrefix(p.ImageURL, "https://cdn.example.com/products/4/")
		})).Return(model.Product{ID: 4}, nil).Once()
		inv.On("Invalidate", mock.Anything).Return(nil).Once()
		storage.On("Delete", mock.Anything, "products/4/old").Return(nil).Once()

		svc := NewProduct(store, storage, inv, "https://cdn.example.com/", testutil.MakeNoopLogger())
		_, err := svc.UploadImage(ctx, 4, bytes.NewReader([]byte("png")), "image/png")
		require.NoError(t, err)
		storage.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("removes new object when update fails", func(t *testing.T) {
		store := &servermocks.ProductStore{}
		storage := &servermocks.Storage{}

		store.On("GetByID", mock.Anything, int64(4)).Return(existing, nil).Once()
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, "image/jpeg").Return(nil).Once()
		store.On("Update", mock.Anything, mock.Anything).Return(model.Product{}, assert.AnError).Once()
		storage.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool { return key != existing.ImageKey })).Return(nil).Once()

		svc := NewProduct(store, storage, nil, "", testutil.MakeNoopLogger())
		_, err := svc.UploadImage(ctx, 4, bytes.NewReader([]byte("jpg")), "image/jpeg")
		require.ErrorIs(t, err, assert.AnError)
		storage.AssertExpectations(t)
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		svc := NewProduct(&servermocks.ProductStore{}, &servermocks.Storage{}, nil, "", testutil.MakeNoopLogger())
		_, err := svc.UploadImage(ctx, 4, bytes.NewReader(nil), "text/plain")
		require.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("storage disabled", func(t *testing.T) {
		svc := NewProduct(&servermocks.ProductStore{}, nil, nil, "", testutil.MakeNoopLogger())
		_, err := svc.UploadImage(ctx, 4, bytes.NewReader(nil), "image/png")
		require.ErrorIs(t, err, model.ErrUnavailable)
	})
}

func TestProduct_OpenImage(t *testing.T) {
	ctx := context.Background()
	store := &servermocks.ProductStore{}
	storage := &servermocks.Storage{}

	store.On("GetByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, ImageKey: "products/1/a"}, nil).Once()
	store.On("GetByID", mock.Anything, int64(2)).Return(model.Product{ID: 2}, nil).Once()
	storage.On("Download", mock.Anything, "products/1/a").Return(io.NopCloser(strings.NewReader("img")), nil).Once()

	svc := NewProduct(store, storage, nil, "", testutil.MakeNoopLogger())

	rc, err := svc.OpenImage(ctx, 1)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "img", string(body))

	_, err = svc.OpenImage(ctx, 2)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestProduct_DeleteCascadesInMemory(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()
	inv := &mockInvalidator{}
	inv.On("Invalidate", mock.Anything).Return(nil)

	svc := NewProduct(f.products, nil, inv, "", testutil.MakeNoopLogger())
	routines := NewRoutine(f.routines, f.products, nil, testutil.MakeNoopLogger())

	p := f.product(t, "Toner", model.CategoryToner, model.TimeBoth, nil, nil)
	user := f.user(t, "t@example.com", model.SkinNormal, model.GoalPores)
	routine, err := routines.Create(ctx, user.ID, user.ID, model.RoutineDay)
	require.NoError(t, err)
	_, err = routines.AddProduct(ctx, user.ID, routine.ID, p.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))

	got, err := routines.Get(ctx, user.ID, routine.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Products)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), model.ErrNotFound)
}

func TestProduct_UpdateKeepsStoredImage(t *testing.T) {
	store := &servermocks.ProductStore{}
	update := validProduct()
	update.ID = 9
	update.ImageURL = "https://elsewhere/img.png"

	store.On("GetByID", mock.Anything, int64(9)).Return(model.Product{ID: 9, ImageKey: "products/9/k", ImageURL: "/api/products/9/image"}, nil).Once()
	store.On("Update", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
		return p.ImageKey == "products/9/k" && p.ImageURL == "/api/products/9/image"
	})).Return(model.Product{ID: 9}, nil).Once()

	_, err := NewProduct(store, nil, nil, "", testutil.MakeNoopLogger()).Update(context.Background(), update)
	require.NoError(t, err)
	store.AssertExpectations(t)
}
