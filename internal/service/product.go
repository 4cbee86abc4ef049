package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// Invalidator drops derived data after catalog writes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Product manages the catalog and product images. storage and invalidator may be nil.
type Product struct {
	productStore model.ProductStore
	storage      model.Storage
	invalidator  Invalidator
	publicURL    string
	logger       *logger.Logger
}

// NewProduct creates the catalog service. Image URLs are built from publicURL.
func NewProduct(
	productStore model.ProductStore,
	storage model.Storage,
	invalidator Invalidator,
	publicURL string,
	logger *logger.Logger,
) *Product {
	return &Product{
		productStore: productStore,
		storage:      storage,
		invalidator:  invalidator,
		publicURL:    strings.TrimRight(publicURL, "/"),
		logger:       logger,
	}
}

// Create stores a new product. Any image key on the input is ignored.
func (s *Product) Create(ctx context.Context, product model.Product) (model.Product, error) {
	product, err := normalizeProduct(product)
	if err != nil {
		return model.Product{}, err
	}
	product.ImageKey = ""

	created, err := s.productStore.Create(ctx, product)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	s.invalidate(ctx)

	s.logger.Info("Product service: product created",
		"product_id", created.ID,
		"category", created.Category)

	return created, nil
}

// CreateBulk creates every product in order. It validates the whole batch first
// and stops at the first store failure, returning what was created so far.
func (s *Product) CreateBulk(ctx context.Context, products []model.Product) ([]model.Product, error) {
	normalized := make([]model.Product, 0, len(products))
	for i, p := range products {
		p, err := normalizeProduct(p)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		p.ImageKey = ""
		normalized = append(normalized, p)
	}

	created := make([]model.Product, 0, len(normalized))
	for _, p := range normalized {
		c, err := s.productStore.Create(ctx, p)
		if err != nil {
			s.invalidate(ctx)
			return created, fmt.Errorf("failed to create product %q: %w", p.Name, err)
		}
		created = append(created, c)
	}
	s.invalidate(ctx)

	s.logger.Info("Product service: bulk create completed",
		"count", len(created))

	return created, nil
}

func (s *Product) Get(ctx context.Context, id int64) (model.Product, error) {
	product, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return product, nil
}

func (s *Product) GetSummary(ctx context.Context, id int64) (model.ProductSummary, error) {
	summary, err := s.productStore.GetSummaryByID(ctx, id)
	if err != nil {
		return model.ProductSummary{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return summary, nil
}

// Update replaces the product's attributes. The stored image is kept.
func (s *Product) Update(ctx context.Context, product model.Product) (model.Product, error) {
	product, err := normalizeProduct(product)
	if err != nil {
		return model.Product{}, err
	}

	existing, err := s.productStore.GetByID(ctx, product.ID)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to get product %d: %w", product.ID, err)
	}
	product.ImageKey = existing.ImageKey
	if existing.ImageKey != "" {
		product.ImageURL = existing.ImageURL
	}

	updated, err := s.productStore.Update(ctx, product)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	s.invalidate(ctx)

	return updated, nil
}

// Delete removes the product from the catalog and from every routine and
// collection that referenced it.
func (s *Product) Delete(ctx context.Context, id int64) error {
	existing, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get product %d: %w", id, err)
	}

	if err := s.productStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.invalidate(ctx)

	if existing.ImageKey != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, existing.ImageKey); err != nil {
			s.logger.Error("Product service: failed to delete image from storage",
				"product_id", id,
				"key", existing.ImageKey,
				"error", err.Error())
		}
	}

	s.logger.Info("Product service: product deleted",
		"product_id", id)
	return nil
}

// List returns one page of products matching filter.
func (s *Product) List(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.Product], error) {
	products, err := s.productStore.Find(ctx, filter, page)
	if err != nil {
		return model.Page[model.Product]{}, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Product) ListSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	summaries, err := s.productStore.FindSummaries(ctx, filter, page)
	if err != nil {
		return model.Page[model.ProductSummary]{}, fmt.Errorf("failed to list product summaries: %w", err)
	}
	return summaries, nil
}

// UploadImage stores a new image for the product and points imageUrl at it.
// The previous image, if any, is removed once the product is updated.
func (s *Product) UploadImage(ctx context.Context, id int64, reader io.Reader, contentType string) (model.Product, error) {
	if s.storage == nil {
		return model.Product{}, fmt.Errorf("image storage is not configured: %w", model.ErrUnavailable)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return model.Product{}, fmt.Errorf("unsupported content type %q: %w", contentType, model.ErrInvalidInput)
	}

	product, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	key := fmt.Sprintf("products/%d/%s", id, uuid.New())
	if err := s.storage.Upload(ctx, key, reader, contentType); err != nil {
		return model.Product{}, fmt.Errorf("failed to upload to storage: %w", err)
	}

	previous := product.ImageKey
	product.ImageKey = key
	product.ImageURL = s.imageURL(id, key)

	updated, err := s.productStore.Update(ctx, product)
	if err != nil {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Error("Product service: failed to delete orphaned image",
				"key", key,
				"error", err.Error())
		}
		return model.Product{}, fmt.Errorf("failed to update product image: %w", err)
	}
	s.invalidate(ctx)

	if previous != "" {
		if err := s.storage.Delete(ctx, previous); err != nil {
			s.logger.Error("Product service: failed to delete previous image",
				"key", previous,
				"error", err.Error())
		}
	}

	s.logger.Info("Product service: image uploaded",
		"product_id", id,
		"key", key)

	return updated, nil
}

// OpenImage streams the product's stored image. The caller closes the reader.
func (s *Product) OpenImage(ctx context.Context, id int64) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("image storage is not configured: %w", model.ErrUnavailable)
	}

	product, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	if product.ImageKey == "" {
		return nil, fmt.Errorf("product %d has no stored image: %w", id, model.ErrNotFound)
	}

	reader, err := s.storage.Download(ctx, product.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download from storage: %w", err)
	}
	return reader, nil
}

// imageURL is the public location of a stored image: the object under the
// configured public base, or the API's own image route when none is set.
func (s *Product) imageURL(id int64, key string) string {
	if s.publicURL == "" {
		return fmt.Sprintf("/api/products/%d/image", id)
	}
	return s.publicURL + "/" + key
}

func (s *Product) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("Product service: failed to invalidate recommendations",
			"error", err.Error())
	}
}

// normalizeProduct checks required fields and rewrites enum values to their
// canonical wire names.
func normalizeProduct(p model.Product) (model.Product, error) {
	var errs []error
	p.Name = strings.TrimSpace(p.Name)
	p.Brand = strings.TrimSpace(p.Brand)
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.Brand == "" {
		errs = append(errs, errors.New("brand is required"))
	}

	var err error
	if p.Category, err = model.ParseCategory(string(p.Category)); err != nil {
		errs = append(errs, err)
	}
	if p.ApplicationTime, err = model.ParseApplicationTime(string(p.ApplicationTime)); err != nil {
		errs = append(errs, err)
	}

	skinTypes := make([]model.SkinType, 0, len(p.SkinTypes))
	for _, raw := range p.SkinTypes {
		st, err := model.ParseSkinType(string(raw))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !slices.Contains(skinTypes, st) {
			skinTypes = append(skinTypes, st)
		}
	}
	p.SkinTypes = skinTypes

	goals := make([]string, 0, len(p.Goals))
	for _, g := range p.Goals {
		goals = append(goals, string(g))
	}
	if p.Goals, err = model.ParseGoals(goals); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return model.Product{}, fmt.Errorf("invalid product: %w: %w", model.ErrInvalidInput, errors.Join(errs...))
	}
	return p, nil
}
