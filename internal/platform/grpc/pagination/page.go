// Package pagination normalizes page-size and order-by request fields.
package pagination

import (
	"fmt"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
// A nil value means the caller did not set page_size and receives the
// default; explicit values are clamped to [1, Max].
func ClampPageSize(value *int32, cfg PageSizeConfig) int {
	pageSize := cfg.Default
	if value != nil {
		pageSize = int(*value)
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return pageSize
}

// OrderBy is a validated ordering clause.
type OrderBy struct {
	Field      string
	Descending bool
}

// OrderByConfig configures order_by validation.
type OrderByConfig struct {
	Default string
	Allowed []string
}

// NormalizeOrderBy validates an order_by expression of the form
// "field" or "field desc" against the allowed field set.
func NormalizeOrderBy(orderBy string, cfg OrderByConfig) (OrderBy, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		orderBy = cfg.Default
	}
	if orderBy == "" {
		return OrderBy{}, nil
	}

	fields := strings.Fields(orderBy)
	result := OrderBy{Field: fields[0]}
	switch {
	case len(fields) == 1:
	case len(fields) == 2 && strings.EqualFold(fields[1], "desc"):
		result.Descending = true
	case len(fields) == 2 && strings.EqualFold(fields[1], "asc"):
	default:
		return OrderBy{}, fmt.Errorf("invalid order_by: %s", orderBy)
	}

	for _, allowed := range cfg.Allowed {
		if result.Field == allowed {
			return result, nil
		}
	}
	return OrderBy{}, fmt.Errorf("invalid order_by: %s", orderBy)
}
