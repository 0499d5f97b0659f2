package pagination

import (
	"errors"
	"strconv"
	"testing"
)

type row struct {
	name string
	id   string
}

func rowKey(r row) []string {
	return []string{r.name, r.id}
}

func rows(from, to int) []row {
	out := make([]row, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, row{name: "n" + strconv.Itoa(i), id: strconv.Itoa(i)})
	}
	return out
}

func reversed(in []row) []row {
	out := make([]row, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func TestCodecRoundTripAndScope(t *testing.T) {
	codec := NewCodec("secret")
	token, err := codec.Encode("users", Cursor{Values: []string{"Ana", "Lopez", "id-1"}, Direction: DirectionNext})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	cursor, err := codec.Decode("users", token)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if cursor.Direction != DirectionNext || len(cursor.Values) != 3 || cursor.Values[2] != "id-1" {
		t.Fatalf("unexpected cursor: %+v", cursor)
	}

	if _, err := codec.Decode("roles", token); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor for foreign scope, got %v", err)
	}
	if _, err := NewCodec("other").Decode("users", token); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor for tampered signature, got %v", err)
	}
}

func TestNormalizeCursorRejectsGarbage(t *testing.T) {
	engine := NewEngine(DefaultLimits(), "secret")
	_, err := engine.NormalizeCursor("users", CursorRequest{Cursor: "not-a-cursor", PerPage: 0}, true)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if len(reqErr.Fields["cursor"]) != 1 || len(reqErr.Fields["per_page"]) != 1 {
		t.Fatalf("unexpected fields: %v", reqErr.Fields)
	}
}

func TestCursorWalkForwardAndBack(t *testing.T) {
	engine := NewEngine(DefaultLimits(), "secret")
	all := rows(1, 5)

	first, err := engine.NormalizeCursor("roles", CursorRequest{PerPage: 2}, true)
	if err != nil {
		t.Fatalf("NormalizeCursor returned error: %v", err)
	}
	page1, err := BuildCursorPage(engine, first, all[0:3], rowKey)
	if err != nil {
		t.Fatalf("BuildCursorPage returned error: %v", err)
	}
	if len(page1.Items) != 2 || page1.Meta.NextCursor == nil || page1.Meta.PrevCursor != nil {
		t.Fatalf("unexpected first page: %+v", page1.Meta)
	}

	second, err := engine.NormalizeCursor("roles", CursorRequest{Cursor: *page1.Meta.NextCursor, PerPage: 2}, true)
	if err != nil {
		t.Fatalf("NormalizeCursor returned error: %v", err)
	}
	if second.After == nil || second.After.Values[1] != "2" || second.Backward() {
		t.Fatalf("unexpected decoded cursor: %+v", second.After)
	}
	page2, err := BuildCursorPage(engine, second, all[2:5], rowKey)
	if err != nil {
		t.Fatalf("BuildCursorPage returned error: %v", err)
	}
	if page2.Items[0].id != "3" || page2.Meta.NextCursor == nil || page2.Meta.PrevCursor == nil {
		t.Fatalf("unexpected second page: %+v", page2)
	}

	back, err := engine.NormalizeCursor("roles", CursorRequest{Cursor: *page2.Meta.PrevCursor, PerPage: 2}, true)
	if err != nil {
		t.Fatalf("NormalizeCursor returned error: %v", err)
	}
	if !back.Backward() || back.After.Values[1] != "3" {
		t.Fatalf("unexpected backward cursor: %+v", back.After)
	}
	// A backward fetch reads rows before id 3 in descending order: 2, 1.
	prev, err := BuildCursorPage(engine, back, reversed(all[0:2]), rowKey)
	if err != nil {
		t.Fatalf("BuildCursorPage returned error: %v", err)
	}
	if len(prev.Items) != 2 || prev.Items[0].id != "1" || prev.Items[1].id != "2" {
		t.Fatalf("unexpected backward items: %+v", prev.Items)
	}
	if prev.Meta.PrevCursor != nil || prev.Meta.NextCursor == nil {
		t.Fatalf("expected only a next cursor on the first window: %+v", prev.Meta)
	}
}

func TestCursorPastEndIsEmpty(t *testing.T) {
	engine := NewEngine(DefaultLimits(), "secret")
	query := CursorQuery{Scope: "roles", PerPage: 2, After: &Cursor{Values: []string{"z", "9"}, Direction: DirectionNext}}

	page, err := BuildCursorPage[row](engine, query, nil, rowKey)
	if err != nil {
		t.Fatalf("BuildCursorPage returned error: %v", err)
	}
	if len(page.Items) != 0 || page.Meta.NextCursor != nil || page.Meta.PrevCursor != nil {
		t.Fatalf("expected empty window without cursors: %+v", page)
	}
}
