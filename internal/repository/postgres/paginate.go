package postgres

import (
	"context"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/jebauza/VetFlow/internal/pagination"
)

// keyset describes the total ordering a listing is paginated on.
// tuple and bound must list the same expressions; bound carries one placeholder per cursor value.
type keyset struct {
	order []string
	tuple string
	bound string
	size  int
}

func (k keyset) orderBy(backward bool) []string {
	if !backward {
		return k.order
	}
	reversed := make([]string, len(k.order))
	for i, expr := range k.order {
		reversed[i] = expr + " DESC"
	}
	return reversed
}

// apply narrows query to the window after (or before) the cursor and fetches PerPage+1 rows.
func (k keyset) apply(query squirrel.SelectBuilder, q pagination.CursorQuery) (squirrel.SelectBuilder, error) {
	if q.After != nil {
		if len(q.After.Values) != k.size {
			return query, pagination.ErrInvalidCursor
		}
		op := ">"
		if q.Backward() {
			op = "<"
		}
		args := make([]any, len(q.After.Values))
		for i, value := range q.After.Values {
			args[i] = value
		}
		query = query.Where(squirrel.Expr(k.tuple+" "+op+" "+k.bound, args...))
	}
	return query.OrderBy(k.orderBy(q.Backward())...).Limit(uint64(q.Fetch())), nil
}

// countFiltered counts the rows matched by the filtered listing before any slicing.
func countFiltered(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, filtered squirrel.SelectBuilder) (int64, error) {
	stmt, args, err := builder.Select("COUNT(*)").FromSelect(filtered, "filtered").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count sql: %w", err)
	}

	var total int64
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive substring pattern with LIKE wildcards escaped.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// searchAny matches term against any of the given columns.
func searchAny(term string, columns ...string) squirrel.Sqlizer {
	pattern := containsPattern(term)
	or := make(squirrel.Or, 0, len(columns))
	for _, column := range columns {
		or = append(or, squirrel.ILike{column: pattern})
	}
	return or
}
