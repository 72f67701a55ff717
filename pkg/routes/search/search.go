package search

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wareflow/packtrack/pkg/models"
	"github.com/wareflow/packtrack/pkg/paging"
)

// Resolver turns a scanned code into the entity it identifies.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*models.ResolvedEntity, error)
}

// Handler serves code resolution lookups
type Handler struct {
	resolver        Resolver
	defaultPageSize int
}

func NewHandler(r Resolver, defaultPageSize int) *Handler {
	return &Handler{
		resolver:        r,
		defaultPageSize: defaultPageSize,
	}
}

// Register registers search routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/search", h.Search)
}

type searchResponse struct {
	OK   bool                   `json:"ok"`
	Data *models.ResolvedEntity `json:"data"`
}

// Search resolves a scanned code to its entity. Child lists are paged with
// the skip and limit query parameters; totals always cover the whole union
// so clients can show "n of m".
func (h *Handler) Search(c echo.Context) error {
	ctx := c.Request().Context()

	code := c.QueryParam("code")
	skip := queryInt(c, "skip")
	if skip < 0 {
		skip = 0
	}
	limit := paging.ClampLimit(queryInt(c, "limit"), h.defaultPageSize)

	result, err := h.resolver.Resolve(ctx, code)
	if err != nil {
		return err
	}

	result.Components = pageSlice(result.Components, skip, limit)
	result.Packages = pageSlice(result.Packages, skip, limit)

	return c.JSON(http.StatusOK, searchResponse{OK: true, Data: result})
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}

func pageSlice[T any](items []T, skip, limit int) []T {
	if items == nil {
		return nil
	}
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}
