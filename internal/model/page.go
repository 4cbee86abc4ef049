package model

import (
	"fmt"
	"math"
)

// Sortable product fields.
const (
	SortByID    = "id"
	SortByName  = "name"
	SortByBrand = "brand"
)

// MaxPageSize bounds any single page.
const MaxPageSize = 100

// PageRequest selects a page of results. Page is zero based.
type PageRequest struct {
	Page int
	Size int
	Sort string
	Desc bool
}

// Offset returns the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Validate rejects malformed paging parameters.
func (p PageRequest) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("page must not be negative: %w", ErrInvalidInput)
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf("size must be between 1 and %d: %w", MaxPageSize, ErrInvalidInput)
	}
	if p.Page > math.MaxInt/p.Size {
		return fmt.Errorf("page is out of range: %w", ErrInvalidInput)
	}
	switch p.Sort {
	case "", SortByID, SortByName, SortByBrand:
	default:
		return fmt.Errorf("unknown sort field %q: %w", p.Sort, ErrInvalidInput)
	}
	return nil
}

// Page is one page of an ordered result set.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// HasContent reports whether the page holds at least one element.
func (p Page[T]) HasContent() bool {
	return len(p.Content) > 0
}

// NewPage assembles a page, deriving the page count from total.
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
