package pagination

import (
	"errors"
	"testing"
)

func TestNormalizePageDefaults(t *testing.T) {
	req, err := DefaultLimits().NormalizePage(PageRequest{}, false, false)
	if err != nil {
		t.Fatalf("NormalizePage returned error: %v", err)
	}
	if req.Page != 1 || req.PerPage != 100 {
		t.Fatalf("unexpected defaults: %+v", req)
	}
}

func TestNormalizePageRejectsOutOfRange(t *testing.T) {
	_, err := DefaultLimits().NormalizePage(PageRequest{Page: 0, PerPage: 101}, true, true)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if len(reqErr.Fields["page"]) != 1 || len(reqErr.Fields["per_page"]) != 1 {
		t.Fatalf("unexpected fields: %v", reqErr.Fields)
	}
}

func TestNormalizeOffset(t *testing.T) {
	req, err := DefaultLimits().NormalizeOffset(OffsetRequest{Offset: 30}, true, false)
	if err != nil {
		t.Fatalf("NormalizeOffset returned error: %v", err)
	}
	if req.Offset != 30 || req.Limit != 100 {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := DefaultLimits().NormalizeOffset(OffsetRequest{Offset: -1, Limit: 0}, true, true); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestNewPageLastPage(t *testing.T) {
	cases := []struct {
		total    int64
		perPage  int
		lastPage int
	}{
		{total: 0, perPage: 10, lastPage: 1},
		{total: 10, perPage: 10, lastPage: 1},
		{total: 11, perPage: 10, lastPage: 2},
		{total: 250, perPage: 100, lastPage: 3},
	}

	for _, tc := range cases {
		page := NewPage[int](nil, PageRequest{Page: 1, PerPage: tc.perPage}, tc.total)
		if page.Meta.LastPage != tc.lastPage {
			t.Fatalf("total %d per page %d: expected last page %d, got %d", tc.total, tc.perPage, tc.lastPage, page.Meta.LastPage)
		}
		if page.Items == nil {
			t.Fatalf("expected non-nil items")
		}
	}
}

func TestPageRequestOffset(t *testing.T) {
	if got := (PageRequest{Page: 3, PerPage: 25}).Offset(); got != 50 {
		t.Fatalf("expected offset 50, got %d", got)
	}
}
