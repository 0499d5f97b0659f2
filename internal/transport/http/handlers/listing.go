package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jebauza/VetFlow/internal/pagination"
)

func searchTerm(c *gin.Context) string {
	return strings.TrimSpace(c.Query("search"))
}

// parsePageQuery reads page and per_page. It writes a 422 and returns false on bad input.
func parsePageQuery(c *gin.Context, engine *pagination.Engine) (pagination.PageRequest, bool) {
	fields := map[string][]string{}
	page, pageSet := queryInt(c, "page", fields)
	perPage, perPageSet := queryInt(c, "per_page", fields)
	if len(fields) > 0 {
		respondValidation(c, fields)
		return pagination.PageRequest{}, false
	}

	req, err := engine.NormalizePage(pagination.PageRequest{Page: page, PerPage: perPage}, pageSet, perPageSet)
	if err != nil {
		respondPaginationError(c, err)
		return pagination.PageRequest{}, false
	}
	return req, true
}

// parseOffsetQuery reads offset and limit.
func parseOffsetQuery(c *gin.Context, engine *pagination.Engine) (pagination.OffsetRequest, bool) {
	fields := map[string][]string{}
	offset, offsetSet := queryInt(c, "offset", fields)
	limit, limitSet := queryInt(c, "limit", fields)
	if len(fields) > 0 {
		respondValidation(c, fields)
		return pagination.OffsetRequest{}, false
	}

	req, err := engine.NormalizeOffset(pagination.OffsetRequest{Offset: offset, Limit: limit}, offsetSet, limitSet)
	if err != nil {
		respondPaginationError(c, err)
		return pagination.OffsetRequest{}, false
	}
	return req, true
}

// parseCursorQuery reads cursor and per_page and decodes the cursor for scope.
func parseCursorQuery(c *gin.Context, engine *pagination.Engine, scope string) (pagination.CursorQuery, bool) {
	fields := map[string][]string{}
	perPage, perPageSet := queryInt(c, "per_page", fields)
	if len(fields) > 0 {
		respondValidation(c, fields)
		return pagination.CursorQuery{}, false
	}

	req := pagination.CursorRequest{Cursor: strings.TrimSpace(c.Query("cursor")), PerPage: perPage}
	query, err := engine.NormalizeCursor(scope, req, perPageSet)
	if err != nil {
		respondPaginationError(c, err)
		return pagination.CursorQuery{}, false
	}
	return query, true
}

func respondPaginationError(c *gin.Context, err error) {
	var rerr *pagination.RequestError
	if errors.As(err, &rerr) {
		respondValidation(c, rerr.Fields)
		return
	}
	respondValidation(c, map[string][]string{"pagination": {"The pagination parameters are invalid."}})
}
