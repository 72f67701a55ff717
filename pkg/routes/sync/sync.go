package sync

import (
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/wareflow/packtrack/pkg/models"
	"github.com/wareflow/packtrack/pkg/syncer"
)

// Handler serves exporter batch ingestion
type Handler struct {
	engine *syncer.Engine
}

func NewHandler(engine *syncer.Engine) *Handler {
	return &Handler{engine: engine}
}

// Register registers sync routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/sync/components", h.SyncComponents)
	g.POST("/sync/packages", h.SyncPackages)
	g.POST("/sync/pallets", h.SyncPallets)
}

// SyncComponents ingests a batch of component rows
func (h *Handler) SyncComponents(c echo.Context) error {
	items, err := bindItems(c)
	if err != nil {
		return err
	}

	result, err := h.engine.SyncComponents(c.Request().Context(), items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// SyncPackages ingests a batch of package rows
func (h *Handler) SyncPackages(c echo.Context) error {
	items, err := bindItems(c)
	if err != nil {
		return err
	}

	result, err := h.engine.SyncPackages(c.Request().Context(), items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// SyncPallets ingests a batch of pallet rows
func (h *Handler) SyncPallets(c echo.Context) error {
	items, err := bindItems(c)
	if err != nil {
		return err
	}

	result, err := h.engine.SyncPallets(c.Request().Context(), items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func bindItems(c echo.Context) ([]json.RawMessage, error) {
	var req models.SyncRequest
	if err := c.Bind(&req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid sync payload")
	}
	if len(req.Items) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "items is required")
	}
	return req.Items, nil
}
