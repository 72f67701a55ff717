package maintenance

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/wareflow/packtrack/pkg/deletion"
	"github.com/wareflow/packtrack/pkg/repair"
)

// Handler serves destructive and corrective operations: cascade deletes,
// collection clears, legacy migration, and repair passes.
type Handler struct {
	deleter  *deletion.Engine
	repairer *repair.Engine
}

func NewHandler(deleter *deletion.Engine, repairer *repair.Engine) *Handler {
	return &Handler{
		deleter:  deleter,
		repairer: repairer,
	}
}

// Register registers maintenance routes
func (h *Handler) Register(g *echo.Group) {
	g.DELETE("/packages/:ref", h.DeletePackage)
	g.DELETE("/pallets/:ref", h.DeletePallet)
	g.POST("/delete/components", h.DeleteComponents)
	g.POST("/delete/packages", h.DeletePackages)
	g.POST("/delete/pallets", h.DeletePallets)
	g.POST("/clear", h.Clear)
	g.POST("/migrate", h.Migrate)
	g.POST("/maintenance/clear", h.ClearConfirmed)
	g.POST("/maintenance/migrate", h.Migrate)
	g.POST("/maintenance/repair", h.Repair)
}

// deleteRequest carries the business keys of the records to delete. Each
// item names its key field, matching the exporter's row shape.
type deleteRequest struct {
	Items []deleteItem `json:"items"`
}

type deleteItem struct {
	ComponentCode string `json:"component_code"`
	PackageNumber string `json:"package_number"`
	PalletNumber  string `json:"pallet_number"`
}

func bindDeleteRefs(c echo.Context, key func(deleteItem) string) ([]string, error) {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid delete payload")
	}
	refs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if ref := key(item); ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "delete payload is empty")
	}
	return refs, nil
}

// DeleteComponents removes a batch of components by business code
func (h *Handler) DeleteComponents(c echo.Context) error {
	refs, err := bindDeleteRefs(c, func(i deleteItem) string { return i.ComponentCode })
	if err != nil {
		return err
	}

	result, err := h.deleter.DeleteComponents(c.Request().Context(), refs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// DeletePackages cascade-deletes a batch of packages by business number
func (h *Handler) DeletePackages(c echo.Context) error {
	refs, err := bindDeleteRefs(c, func(i deleteItem) string { return i.PackageNumber })
	if err != nil {
		return err
	}

	result, err := h.deleter.DeletePackages(c.Request().Context(), refs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// DeletePallets cascade-deletes a batch of pallets by business number
func (h *Handler) DeletePallets(c echo.Context) error {
	refs, err := bindDeleteRefs(c, func(i deleteItem) string { return i.PalletNumber })
	if err != nil {
		return err
	}

	result, err := h.deleter.DeletePallets(c.Request().Context(), refs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// DeletePackage cascade-deletes a package by document id or business number
func (h *Handler) DeletePackage(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "ref is required")
	}

	result, err := h.deleter.DeletePackage(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// DeletePallet cascade-deletes a pallet by document id or business number
func (h *Handler) DeletePallet(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "ref is required")
	}

	result, err := h.deleter.DeletePallet(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// clearRequest optionally narrows a clear to named collections.
type clearRequest struct {
	Collections []string `json:"collections"`
}

// ClearConfirmed wraps Clear with a confirm=yes query check, so a stray
// request against the maintenance path cannot empty the database.
func (h *Handler) ClearConfirmed(c echo.Context) error {
	if c.QueryParam("confirm") != "yes" {
		return httperror.NewHTTPError(http.StatusBadRequest, "clear requires confirm=yes")
	}
	return h.Clear(c)
}

// Clear wipes collections, all of them when none are named.
func (h *Handler) Clear(c echo.Context) error {
	var req clearRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid clear payload")
	}
	for _, name := range req.Collections {
		if !deletion.KnownCollection(name) {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown collection %s", name)
		}
	}

	result, err := h.deleter.ClearCollections(c.Request().Context(), req.Collections)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Migrate ingests a legacy export. A payload with no rows runs the full
// database scan instead, backfilling columns and rebinding parents in place.
func (h *Handler) Migrate(c echo.Context) error {
	var req repair.MigrateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid migrate payload")
	}

	if len(req.Pallets)+len(req.Packages)+len(req.Components) == 0 {
		result, err := h.repairer.RepairAll(c.Request().Context(), req.DryRun)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, result)
	}

	result, err := h.repairer.MigrateAll(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Repair runs the consistency repair pass. dry_run=true reports what would
// change without writing.
func (h *Handler) Repair(c echo.Context) error {
	dryRun := c.QueryParam("dry_run") == "true"

	result, err := h.repairer.RepairAll(c.Request().Context(), dryRun)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
