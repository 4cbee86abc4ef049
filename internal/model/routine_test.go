package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutine_PutProduct_CategoryExclusive(t *testing.T) {
	r := Routine{}
	r.PutProduct(ProductSummary{ID: 1, Category: CategoryCleanser})
	r.PutProduct(ProductSummary{ID: 2, Category: CategorySerum})
	r.PutProduct(ProductSummary{ID: 3, Category: CategoryCleanser})

	assert.Equal(t, []ProductSummary{
		{ID: 2, Category: CategorySerum},
		{ID: 3, Category: CategoryCleanser},
	}, r.Products)
}

func TestRoutine_PutProduct_SameProductTwice(t *testing.T) {
	r := Routine{}
	r.PutProduct(ProductSummary{ID: 1, Category: CategoryCleanser})
	r.PutProduct(ProductSummary{ID: 1, Category: CategoryCleanser})

	assert.Len(t, r.Products, 1)
}

func TestRoutine_DropProduct(t *testing.T) {
	r := Routine{Products: []ProductSummary{{ID: 1}, {ID: 2}, {ID: 3}}}

	assert.True(t, r.DropProduct(2))
	assert.Equal(t, []ProductSummary{{ID: 1}, {ID: 3}}, r.Products)
	assert.False(t, r.DropProduct(42))
	assert.Len(t, r.Products, 2)
}
