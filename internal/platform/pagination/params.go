package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the number of items returned when the client omits _limit.
	DefaultLimit = 10
	// DefaultMaxLimit caps _limit to prevent unbounded queries.
	DefaultMaxLimit = 100
)

// Params bundles the offset pagination and sort values extracted from a request.
type Params struct {
	Page   int
	Limit  int
	SortBy string
	Desc   bool
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultLimit  int
	MaxLimit      int
	DefaultSortBy string
	// AllowedSortBy lists accepted _sortBy values. Unknown values fall back to DefaultSortBy unless
	// StrictSortBy is set.
	AllowedSortBy []string
	StrictSortBy  bool
	// DefaultDesc is the sort direction used when _sort is omitted.
	DefaultDesc bool
}

var (
	ErrInvalidPage   = errors.New("pagination: invalid _page")
	ErrInvalidLimit  = errors.New("pagination: invalid _limit")
	ErrInvalidSort   = errors.New("pagination: invalid _sort")
	ErrInvalidSortBy = errors.New("pagination: invalid _sortBy")
)

// FromRequest parses the supported query parameters from the supplied request.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes _page, _limit, _sort and _sortBy and returns the normalised Params.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	page, err := parsePage(values.Get("_page"))
	if err != nil {
		return Params{}, err
	}
	limit, err := parseLimit(values.Get("_limit"), opts)
	if err != nil {
		return Params{}, err
	}

	desc := opts.DefaultDesc
	switch strings.ToLower(strings.TrimSpace(values.Get("_sort"))) {
	case "":
	case "asc":
		desc = false
	case "desc":
		desc = true
	default:
		return Params{}, fmt.Errorf("%w: must be asc or desc", ErrInvalidSort)
	}

	sortBy, err := parseSortBy(values.Get("_sortBy"), opts)
	if err != nil {
		return Params{}, err
	}

	return Params{Page: page, Limit: limit, SortBy: sortBy, Desc: desc}, nil
}

// Offset returns the number of items to skip for the page.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit), zero when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Window returns the half-open [start, end) slice bounds of the page within total items.
func (p Params) Window(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}
	return start, end
}

func parsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("%w: page must be a positive number", ErrInvalidPage)
	}
	return value, nil
}

func parseLimit(raw string, opts Options) (int, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 || value > maxLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidLimit, maxLimit)
	}
	return value, nil
}

func parseSortBy(raw string, opts Options) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(opts.AllowedSortBy) == 0 {
		return opts.DefaultSortBy, nil
	}
	if slices.Contains(opts.AllowedSortBy, raw) {
		return raw, nil
	}
	if opts.StrictSortBy {
		return "", fmt.Errorf("%w: %q is not sortable", ErrInvalidSortBy, raw)
	}
	return opts.DefaultSortBy, nil
}
