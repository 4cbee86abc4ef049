// Package seed loads catalog fixtures from YAML and bulk-creates them.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// DefaultBatchSize is how many products go into one bulk create.
const DefaultBatchSize = 100

// Catalog is the fixture file layout.
type Catalog struct {
	Products []model.Product `yaml:"products"`
}

// Creator persists a batch of products.
type Creator interface {
	CreateBulk(ctx context.Context, products []model.Product) ([]model.Product, error)
}

// Load decodes a catalog. Unknown keys are rejected so typos do not silently
// drop attributes.
func Load(r io.Reader) ([]model.Product, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var catalog Catalog
	if err := dec.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog is empty: %w", model.ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to decode catalog: %w: %w", model.ErrInvalidInput, err)
	}
	if len(catalog.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products: %w", model.ErrInvalidInput)
	}
	return catalog.Products, nil
}

// Run creates products in batches and returns how many were stored. A failed
// batch stops the run; products stored before the failure are kept.
func Run(ctx context.Context, creator Creator, products []model.Product, batchSize int, logger *logger.Logger) (int, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	created := 0
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))

		stored, err := creator.CreateBulk(ctx, products[start:end])
		created += len(stored)
		if err != nil {
			return created, fmt.Errorf("failed to create products %d..%d: %w", start+1, end, err)
		}

		logger.Info("Seed: batch stored",
			"from", start+1,
			"to", end,
			"total", created)
	}
	return created, nil
}
