package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	// DefaultListLimit is the default page size for endpoints paginated by a
	// plain "limit" query parameter (spec.md §4.4): patients, consultations,
	// portal appointments.
	DefaultListLimit = 20
	// DefaultPageSize is the default page size for the offset-paginated
	// audit log listing.
	DefaultPageSize = 25
	// MaxPageSize is the maximum page size accepted by any paginated
	// endpoint.
	MaxPageSize = 100
)

// ParseLimitParam extracts and validates a "limit" query parameter against
// spec.md §4.4/§8: unset defaults to DefaultListLimit; 0 or anything above
// MaxPageSize is rejected outright, not silently clamped, so the caller
// surfaces the error as a validation failure.
func ParseLimitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return DefaultListLimit, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > MaxPageSize {
		return 0, fmt.Errorf("limit must be at most %d", MaxPageSize)
	}
	return n, nil
}

// --- Offset-based pagination (audit log) ---

// OffsetParams holds the parsed query parameters for offset-based pagination.
type OffsetParams struct {
	Page     int
	PageSize int
	Offset   int // computed from Page and PageSize
}

// ParseOffsetParams extracts offset pagination parameters from the request.
// Page size is read from "limit" (spec.md §6: `GET /audit?page&limit&...`)
// and clamped to MaxPageSize, since the audit listing carries no
// boundary-rejection rule of its own.
func ParseOffsetParams(r *http.Request) (OffsetParams, error) {
	p := OffsetParams{Page: 1, PageSize: DefaultPageSize}

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		p.Page = n
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		p.PageSize = n
	}

	p.Offset = (p.Page - 1) * p.PageSize
	return p, nil
}

// OffsetPage is the response envelope for offset-paginated results.
type OffsetPage[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewOffsetPage builds an OffsetPage from a result set and total count.
func NewOffsetPage[T any](items []T, params OffsetParams, totalItems int) OffsetPage[T] {
	totalPages := 0
	if params.PageSize > 0 {
		totalPages = (totalItems + params.PageSize - 1) / params.PageSize
	}

	return OffsetPage[T]{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}
