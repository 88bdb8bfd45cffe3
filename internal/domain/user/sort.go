package user

import (
	"fmt"
	"strings"

	apperrors "user-service/pkg/errors"
)

// SortDirection is the ordering applied to a single column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection parses "asc" or "desc" (any case). An empty string
// means no directive and yields an empty direction without error.
func ParseSortDirection(field SortField, raw string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", apperrors.NewValidationError(string(field), fmt.Sprintf("must be one of asc, desc (got %q)", raw))
	}
}

// SortField is a column users can be ordered by.
type SortField string

const (
	SortByFirstName SortField = "first_name"
	SortByLastName  SortField = "last_name"
	SortByPosition  SortField = "position"
)

// SortDirective orders results by one column.
type SortDirective struct {
	Field     SortField
	Direction SortDirection
}

// Desc reports whether the directive sorts in descending order.
func (d SortDirective) Desc() bool {
	return d.Direction == SortDesc
}

// SortOptions holds the optional direction for each sortable column.
type SortOptions struct {
	FirstName SortDirection
	LastName  SortDirection
	Position  SortDirection
}

// Directives returns the supplied directives in fixed priority order:
// first_name, then last_name, then position. Absent directives are omitted.
func (o SortOptions) Directives() []SortDirective {
	candidates := []SortDirective{
		{Field: SortByFirstName, Direction: o.FirstName},
		{Field: SortByLastName, Direction: o.LastName},
		{Field: SortByPosition, Direction: o.Position},
	}

	directives := make([]SortDirective, 0, len(candidates))
	for _, d := range candidates {
		if d.Direction != "" {
			directives = append(directives, d)
		}
	}
	return directives
}
