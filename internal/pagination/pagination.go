// Package pagination normalises page, offset and cursor requests and shapes their results.
package pagination

import (
	"errors"
	"fmt"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 100
	DefaultOffset  = 0
	DefaultLimit   = 100
	MaxPerPage     = 100
)

// ErrInvalidRequest is matched by every RequestError.
var ErrInvalidRequest = errors.New("pagination: invalid request")

// RequestError lists the offending pagination parameters keyed by query parameter name.
type RequestError struct {
	Fields map[string][]string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("pagination: invalid parameters %v", e.Fields)
}

// Is makes RequestError match ErrInvalidRequest.
func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func (e *RequestError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *RequestError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Limits bounds the page sizes a caller may request.
type Limits struct {
	DefaultPerPage int
	MaxPerPage     int
}

// DefaultLimits mirrors the listing defaults of the public API.
func DefaultLimits() Limits {
	return Limits{DefaultPerPage: DefaultPerPage, MaxPerPage: MaxPerPage}
}

func (l Limits) normalized() Limits {
	if l.MaxPerPage <= 0 {
		l.MaxPerPage = MaxPerPage
	}
	if l.DefaultPerPage <= 0 || l.DefaultPerPage > l.MaxPerPage {
		l.DefaultPerPage = l.MaxPerPage
	}
	return l
}

// PageRequest selects a numbered page. Zero values mean "use the default".
type PageRequest struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows to skip for the page.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PerPage
}

// OffsetRequest selects a raw offset/limit window.
type OffsetRequest struct {
	Offset int
	Limit  int
}

// CursorRequest selects the window after (or before) an opaque cursor.
type CursorRequest struct {
	Cursor  string
	PerPage int
}

// NormalizePage applies defaults and bounds to a page request.
func (l Limits) NormalizePage(req PageRequest, pageSet, perPageSet bool) (PageRequest, error) {
	l = l.normalized()
	errs := &RequestError{}

	if !pageSet {
		req.Page = DefaultPage
	} else if req.Page < 1 {
		errs.add("page", "must be at least 1")
	}

	if !perPageSet {
		req.PerPage = l.DefaultPerPage
	} else if req.PerPage < 1 || req.PerPage > l.MaxPerPage {
		errs.add("per_page", fmt.Sprintf("must be between 1 and %d", l.MaxPerPage))
	}

	return req, errs.orNil()
}

// NormalizeOffset applies defaults and bounds to an offset request.
func (l Limits) NormalizeOffset(req OffsetRequest, offsetSet, limitSet bool) (OffsetRequest, error) {
	l = l.normalized()
	errs := &RequestError{}

	if !offsetSet {
		req.Offset = DefaultOffset
	} else if req.Offset < 0 {
		errs.add("offset", "must be at least 0")
	}

	if !limitSet {
		req.Limit = l.DefaultPerPage
	} else if req.Limit < 1 || req.Limit > l.MaxPerPage {
		errs.add("limit", fmt.Sprintf("must be between 1 and %d", l.MaxPerPage))
	}

	return req, errs.orNil()
}

// PageMeta describes a numbered page.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	LastPage    int   `json:"last_page"`
	Total       int64 `json:"total"`
}

// Page is a numbered window over a filtered collection.
type Page[T any] struct {
	Items []T
	Meta  PageMeta
}

// NewPage builds page metadata from the filtered total. An empty set still has one page.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	lastPage := 1
	if total > 0 && req.PerPage > 0 {
		lastPage = int((total + int64(req.PerPage) - 1) / int64(req.PerPage))
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Meta: PageMeta{
			CurrentPage: req.Page,
			PerPage:     req.PerPage,
			LastPage:    lastPage,
			Total:       total,
		},
	}
}

// OffsetMeta describes an offset window.
type OffsetMeta struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
}

// OffsetPage is an offset/limit window over a filtered collection.
type OffsetPage[T any] struct {
	Items []T
	Meta  OffsetMeta
}

// NewOffsetPage builds offset metadata from the filtered total.
func NewOffsetPage[T any](items []T, req OffsetRequest, total int64) OffsetPage[T] {
	if items == nil {
		items = []T{}
	}
	return OffsetPage[T]{
		Items: items,
		Meta:  OffsetMeta{Offset: req.Offset, Limit: req.Limit, Total: total},
	}
}

// CursorMeta describes a keyset window.
type CursorMeta struct {
	PerPage    int     `json:"per_page"`
	NextCursor *string `json:"next_cursor"`
	PrevCursor *string `json:"prev_cursor"`
}

// CursorPage is a keyset window over a filtered collection.
type CursorPage[T any] struct {
	Items []T
	Meta  CursorMeta
}

// MapPage converts the items of a page keeping its metadata.
func MapPage[T, U any](page Page[T], fn func(T) U) Page[U] {
	return Page[U]{Items: mapItems(page.Items, fn), Meta: page.Meta}
}

// MapOffset converts the items of an offset window keeping its metadata.
func MapOffset[T, U any](page OffsetPage[T], fn func(T) U) OffsetPage[U] {
	return OffsetPage[U]{Items: mapItems(page.Items, fn), Meta: page.Meta}
}

// MapCursor converts the items of a cursor window keeping its metadata.
func MapCursor[T, U any](page CursorPage[T], fn func(T) U) CursorPage[U] {
	return CursorPage[U]{Items: mapItems(page.Items, fn), Meta: page.Meta}
}

func mapItems[T, U any](items []T, fn func(T) U) []U {
	out := make([]U, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
