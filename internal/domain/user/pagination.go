package user

import (
	"fmt"
	"math"

	apperrors "user-service/pkg/errors"
)

const (
	// DefaultPage is used when the caller does not request a page.
	DefaultPage int64 = 1
	// DefaultPageSize is used when the caller does not request a page size.
	DefaultPageSize int64 = 10
	// MaxPageSize bounds the page size unless configured otherwise.
	MaxPageSize int64 = 100
)

// PageRequest is a validated offset-pagination request.
type PageRequest struct {
	Page int64 // 1-based page number
	Size int64 // records per page, always >= 1
}

// NewPageRequest validates page and size. Page must be >= 1 and size must be
// in [1, maxSize]; a zero size is rejected here so that page counts never
// divide by zero.
func NewPageRequest(page, size, maxSize int64) (PageRequest, error) {
	if page < 1 {
		return PageRequest{}, apperrors.NewValidationError("page", "must be at least 1")
	}
	if size < 1 {
		return PageRequest{}, apperrors.NewValidationError("size", "must be at least 1")
	}
	if maxSize > 0 && size > maxSize {
		return PageRequest{}, apperrors.NewValidationError("size", fmt.Sprintf("must be at most %d", maxSize))
	}
	return PageRequest{Page: page, Size: size}, nil
}

// Offset returns the number of records to skip. It saturates at
// math.MaxInt64 so a huge page lands past the end of any table.
func (p PageRequest) Offset() int64 {
	if p.Page < 1 || p.Size < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt64/p.Size {
		return math.MaxInt64
	}
	return (p.Page - 1) * p.Size
}

// ListQuery is what the store needs to fetch one page of users.
type ListQuery struct {
	PageRequest
	Sort []SortDirective
}

// Pagination represents pagination information for list responses.
type Pagination struct {
	CurrentPage int64 // Current page number (1-based)
	Size        int64 // Number of records per page
	TotalItems  int64 // Total number of records in the table
	TotalPages  int64 // ceil(TotalItems / Size)
}

// NewPagination creates a new Pagination instance with calculated total pages.
func NewPagination(totalItems int64, req PageRequest) *Pagination {
	var totalPages int64
	if req.Size > 0 {
		totalPages = (totalItems + req.Size - 1) / req.Size
	}

	return &Pagination{
		CurrentPage: req.Page,
		Size:        req.Size,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
	}
}
