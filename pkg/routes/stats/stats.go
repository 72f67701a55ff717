package stats

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wareflow/packtrack/pkg/models"
)

// Counter is implemented by each repository that can report its sizes.
type Counter interface {
	CountAll(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Handler serves collection statistics
type Handler struct {
	components Counter
	packages   Counter
	pallets    Counter
}

func NewHandler(components, packages, pallets Counter) *Handler {
	return &Handler{
		components: components,
		packages:   packages,
		pallets:    pallets,
	}
}

// Register registers stats routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/stats", h.Stats)
}

// Stats reports collection sizes and status distributions
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	result := models.Stats{}
	var err error

	if result.Components, err = h.components.CountAll(ctx); err != nil {
		return err
	}
	if result.Packages, err = h.packages.CountAll(ctx); err != nil {
		return err
	}
	if result.Pallets, err = h.pallets.CountAll(ctx); err != nil {
		return err
	}
	if result.ComponentStatuses, err = h.components.CountByStatus(ctx); err != nil {
		return err
	}
	if result.PackageStatuses, err = h.packages.CountByStatus(ctx); err != nil {
		return err
	}
	if result.PalletStatuses, err = h.pallets.CountByStatus(ctx); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
