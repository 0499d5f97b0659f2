package pagination

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCursor is returned when a cursor cannot be decoded or belongs to another listing.
var ErrInvalidCursor = errors.New("pagination: invalid cursor")

// Direction tells which side of the cursor position a window lies on.
type Direction string

const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

// Cursor is a decoded keyset position: the sort values of a boundary row.
type Cursor struct {
	Values    []string
	Direction Direction
}

type cursorClaims struct {
	Scope     string    `json:"s"`
	Values    []string  `json:"k"`
	Direction Direction `json:"d"`
	jwt.RegisteredClaims
}

// Codec signs cursors so clients cannot forge arbitrary keyset positions.
type Codec struct {
	secret []byte
}

// NewCodec returns a codec signing cursors with HMAC-SHA256.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serialises a cursor for the given listing scope.
func (c *Codec) Encode(scope string, cursor Cursor) (string, error) {
	claims := cursorClaims{
		Scope:     scope,
		Values:    cursor.Values,
		Direction: cursor.Direction,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign cursor: %w", err)
	}
	return signed, nil
}

// Decode parses a cursor previously produced by Encode for the same scope.
func (c *Codec) Decode(scope, raw string) (Cursor, error) {
	claims := &cursorClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if claims.Scope != scope || len(claims.Values) == 0 {
		return Cursor{}, ErrInvalidCursor
	}
	if claims.Direction != DirectionNext && claims.Direction != DirectionPrev {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{Values: claims.Values, Direction: claims.Direction}, nil
}

// CursorQuery is a normalised cursor request ready for a keyset fetch.
type CursorQuery struct {
	Scope   string
	PerPage int
	After   *Cursor
}

// Fetch returns how many rows the store should read: one extra to detect a following window.
func (q CursorQuery) Fetch() int {
	return q.PerPage + 1
}

// Backward reports whether the store must read in reverse order.
func (q CursorQuery) Backward() bool {
	return q.After != nil && q.After.Direction == DirectionPrev
}

// Engine combines request limits with the cursor codec.
type Engine struct {
	Limits
	codec *Codec
}

// NewEngine builds an engine with the given limits and cursor secret.
func NewEngine(limits Limits, cursorSecret string) *Engine {
	return &Engine{Limits: limits.normalized(), codec: NewCodec(cursorSecret)}
}

// NormalizeCursor applies defaults and decodes the cursor of a request.
func (e *Engine) NormalizeCursor(scope string, req CursorRequest, perPageSet bool) (CursorQuery, error) {
	errs := &RequestError{}
	query := CursorQuery{Scope: scope, PerPage: e.DefaultPerPage}

	if perPageSet {
		if req.PerPage < 1 || req.PerPage > e.MaxPerPage {
			errs.add("per_page", fmt.Sprintf("must be between 1 and %d", e.MaxPerPage))
		}
		query.PerPage = req.PerPage
	}

	if req.Cursor != "" {
		cursor, err := e.codec.Decode(scope, req.Cursor)
		if err != nil {
			errs.add("cursor", "is invalid")
		} else {
			query.After = &cursor
		}
	}

	return query, errs.orNil()
}

// BuildCursorPage trims a keyset fetch of PerPage+1 rows and signs the neighbour cursors.
// Rows of a backward fetch arrive in reverse order and are flipped back here.
func BuildCursorPage[T any](e *Engine, query CursorQuery, rows []T, key func(T) []string) (CursorPage[T], error) {
	hasMore := len(rows) > query.PerPage
	if hasMore {
		rows = rows[:query.PerPage]
	}

	items := make([]T, len(rows))
	copy(items, rows)

	var hasNext, hasPrev bool
	if query.Backward() {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		hasPrev = hasMore
		hasNext = len(items) > 0
	} else {
		hasNext = hasMore
		hasPrev = query.After != nil && len(items) > 0
	}

	page := CursorPage[T]{Items: items, Meta: CursorMeta{PerPage: query.PerPage}}
	if hasNext {
		token, err := e.codec.Encode(query.Scope, Cursor{Values: key(items[len(items)-1]), Direction: DirectionNext})
		if err != nil {
			return CursorPage[T]{}, err
		}
		page.Meta.NextCursor = &token
	}
	if hasPrev {
		token, err := e.codec.Encode(query.Scope, Cursor{Values: key(items[0]), Direction: DirectionPrev})
		if err != nil {
			return CursorPage[T]{}, err
		}
		page.Meta.PrevCursor = &token
	}
	return page, nil
}
