package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{DefaultSortBy: "createdAt"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 1 || params.Limit != DefaultLimit {
		t.Fatalf("unexpected defaults %#v", params)
	}
	if params.SortBy != "createdAt" || params.Desc {
		t.Fatalf("unexpected sort defaults %#v", params)
	}
	if params.Offset() != 0 {
		t.Fatalf("expected zero offset, got %d", params.Offset())
	}
}

func TestParseValues(t *testing.T) {
	values := url.Values{}
	values.Set("_page", "3")
	values.Set("_limit", "20")
	values.Set("_sort", "DESC")
	values.Set("_sortBy", "invoice_total")

	params, err := Parse(values, Options{DefaultSortBy: "createdAt", AllowedSortBy: []string{"createdAt", "invoice_total"}})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 3 || params.Limit != 20 || !params.Desc || params.SortBy != "invoice_total" {
		t.Fatalf("unexpected params %#v", params)
	}
	if params.Offset() != 40 {
		t.Fatalf("expected offset 40, got %d", params.Offset())
	}
}

func TestParseRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want error
	}{
		{"page zero", "_page", "0", ErrInvalidPage},
		{"page text", "_page", "abc", ErrInvalidPage},
		{"limit zero", "_limit", "0", ErrInvalidLimit},
		{"limit over max", "_limit", "101", ErrInvalidLimit},
		{"sort direction", "_sort", "sideways", ErrInvalidSort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := url.Values{}
			values.Set(tc.key, tc.val)
			if _, err := Parse(values, Options{}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseSortByFallback(t *testing.T) {
	values := url.Values{}
	values.Set("_sortBy", "password")
	opts := Options{DefaultSortBy: "createdAt", AllowedSortBy: []string{"createdAt"}}

	params, err := Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.SortBy != "createdAt" {
		t.Fatalf("expected fallback sort field, got %q", params.SortBy)
	}

	opts.StrictSortBy = true
	if _, err := Parse(values, opts); !errors.Is(err, ErrInvalidSortBy) {
		t.Fatalf("expected ErrInvalidSortBy, got %v", err)
	}
}

func TestTotalPagesAndWindow(t *testing.T) {
	if got := TotalPages(21, 10); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
	if got := TotalPages(0, 10); got != 0 {
		t.Fatalf("expected 0 pages, got %d", got)
	}

	p := Params{Page: 3, Limit: 10}
	start, end := p.Window(21)
	if start != 20 || end != 21 {
		t.Fatalf("unexpected window [%d,%d)", start, end)
	}
	p.Page = 5
	start, end = p.Window(21)
	if start != 21 || end != 21 {
		t.Fatalf("expected empty window past the end, got [%d,%d)", start, end)
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/invoices?_page=2&_limit=5", nil)
	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.Page != 2 || params.Limit != 5 {
		t.Fatalf("unexpected params %#v", params)
	}
	if _, err := FromRequest(nil, Options{}); err == nil {
		t.Fatal("expected error for nil request")
	}
}
