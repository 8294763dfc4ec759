// Package pagination parses the cursor-paged listing query surface and mints
// the opaque page tokens the Firestore repositories resume from.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the client omits page_size.
	DefaultPageSize = 20
	// MaxPageSize caps page_size; larger requests are clamped, not rejected.
	MaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidSort      = errors.New("pagination: invalid sort")
	ErrInvalidPageToken = errors.New("pagination: invalid page token")
)

// Params carries the page bounds extracted from a listing request.
type Params struct {
	PageSize  int
	PageToken string
}

// Sort is a single order-by clause extracted from a listing request.
type Sort struct {
	Field      string
	Descending bool
}

// Limits tune ParseQuery for a given listing endpoint.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ParseQuery reads page_size and page_token from the query string. page_size
// must be a positive integer; values above the cap are clamped. The token is
// forwarded opaquely and resolved against the sort order by the repository
// that minted it.
func ParseQuery(values url.Values, limits Limits) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	maxSize := limits.MaxPageSize
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	defaultSize := limits.DefaultPageSize
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}

	params := Params{PageSize: defaultSize}

	if raw := strings.TrimSpace(values.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		}
		if size <= 0 {
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		}
		if size > maxSize {
			size = maxSize
		}
		params.PageSize = size
	}

	params.PageToken = strings.TrimSpace(values.Get("page_token"))

	return params, nil
}

// ParseSort reads sort_by and sort_order from the query string, constrained
// to the allowed fields. An omitted sort_by falls back to the first allowed
// field.
func ParseSort(values url.Values, allowedFields []string) (Sort, error) {
	if len(allowedFields) == 0 {
		return Sort{}, fmt.Errorf("%w: sorting not supported", ErrInvalidSort)
	}
	if values == nil {
		values = url.Values{}
	}

	field := strings.ToLower(strings.TrimSpace(values.Get("sort_by")))
	if field == "" {
		field = allowedFields[0]
	}
	allowed := false
	for _, candidate := range allowedFields {
		if field == candidate {
			allowed = true
			break
		}
	}
	if !allowed {
		return Sort{}, fmt.Errorf("%w: sort_by must be one of %s", ErrInvalidSort, strings.Join(allowedFields, ", "))
	}

	sort := Sort{Field: field}
	switch strings.ToLower(strings.TrimSpace(values.Get("sort_order"))) {
	case "", "asc":
	case "desc":
		sort.Descending = true
	default:
		return Sort{}, fmt.Errorf("%w: sort_order must be asc or desc", ErrInvalidSort)
	}
	return sort, nil
}
