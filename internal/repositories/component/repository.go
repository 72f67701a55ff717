package component

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/database"
	"github.com/wareflow/packtrack/pkg/models"
)

const table = "components"

var columns = []string{
	"id", "component_code", "component_name", "order_number", "material",
	"finished_size", "room_number", "cabinet_number", "customer_address",
	"status", "package_id", "package_number", "legacy_id", "raw",
	"created_at", "updated_at",
}

// updatableColumns is the allowlist for field-level updates. Keys outside it
// are rejected so callers cannot write arbitrary columns.
var updatableColumns = map[string]struct{}{
	"component_code": {}, "component_name": {}, "order_number": {},
	"material": {}, "finished_size": {}, "room_number": {},
	"cabinet_number": {}, "customer_address": {}, "status": {},
	"package_id": {}, "package_number": {}, "legacy_id": {}, "raw": {},
}

// Repository handles component persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByCode returns the component with the exact component_code, or nil when
// none exists. Codes are not unique across historic imports; the most
// recently updated row wins.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Component, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("component_code", code))
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, map[string]any{"component_code": code})
}

// GetByID returns the component with the given document id, or nil.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Component, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb, map[string]any{"id": id})
}

// GetByLegacyID returns the component carrying the given legacy numeric id.
func (r *Repository) GetByLegacyID(ctx context.Context, legacyID string) (*models.Component, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("legacy_id", legacyID))
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, map[string]any{"legacy_id": legacyID})
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder, fields map[string]any) (*models.Component, error) {
	query, args := sb.Build()
	var comp models.Component
	if err := r.db.GetContext(ctx, &comp, query, args...); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("Failed to get component")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get component")
	}
	return &comp, nil
}

// ListByPackageRef returns all components referencing the parent package
// through the given join strategy.
func (r *Repository) ListByPackageRef(ctx context.Context, ref codes.JoinRef) ([]models.Component, error) {
	if ref.Value == "" {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal(packageRefColumn(ref.Strategy), ref.Value))
	sb.OrderBy("component_code ASC")

	query, args := sb.Build()
	var comps []models.Component
	if err := r.db.SelectContext(ctx, &comps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"strategy": ref.Strategy.String(), "value": ref.Value}).Error("Failed to list components by package ref")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list components")
	}
	return comps, nil
}

// CountByPackageRef counts components referencing the parent package through
// the given join strategy.
func (r *Repository) CountByPackageRef(ctx context.Context, ref codes.JoinRef) (int, error) {
	if ref.Value == "" {
		return 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(sb.Equal(packageRefColumn(ref.Strategy), ref.Value))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"strategy": ref.Strategy.String(), "value": ref.Value}).Error("Failed to count components by package ref")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count components")
	}
	return count, nil
}

func packageRefColumn(strategy codes.JoinStrategy) string {
	if strategy == codes.ByBusinessNumber {
		return "package_number"
	}
	// Document ids and legacy numeric ids both live in package_id; the
	// strategies differ only in which parent value is queried.
	return "package_id"
}

// Insert creates a component, generating its document id and timestamps.
func (r *Repository) Insert(ctx context.Context, comp *models.Component) error {
	if comp.ID == "" {
		comp.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	comp.CreatedAt = now
	comp.UpdatedAt = now
	if comp.Status == "" {
		comp.Status = models.StatusPending
	}
	if len(comp.Raw) == 0 {
		comp.Raw = []byte("{}")
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		comp.ID, comp.ComponentCode, comp.ComponentName, comp.OrderNumber,
		comp.Material, comp.FinishedSize, comp.RoomNumber, comp.CabinetNumber,
		comp.CustomerAddress, comp.Status, comp.PackageID, comp.PackageNumber,
		comp.LegacyID, []byte(comp.Raw), comp.CreatedAt, comp.UpdatedAt,
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("component_code", comp.ComponentCode).Error("Failed to insert component")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert component")
	}
	return nil
}

// UpdateFields writes only the given columns on a component. Unknown keys
// are rejected.
func (r *Repository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	assignments := make([]string, 0, len(fields)+1)
	for col, val := range fields {
		if _, ok := updatableColumns[col]; !ok {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "column %s is not updatable", col)
		}
		assignments = append(assignments, ub.Assign(col, val))
	}
	assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to update component")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update component")
	}
	return nil
}

// UnlinkFromPackage clears parent references on every component linked to
// the package by either document id or business number, resetting the
// component to pending. Returns the number of rows touched.
func (r *Repository) UnlinkFromPackage(ctx context.Context, packageID, packageNumber string) (int64, error) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("package_id", ""),
		ub.Assign("package_number", ""),
		ub.Assign("status", models.StatusPending),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	conds := []string{}
	if packageID != "" {
		conds = append(conds, ub.Equal("package_id", packageID))
	}
	if packageNumber != "" {
		conds = append(conds, ub.Equal("package_number", packageNumber))
	}
	if len(conds) == 0 {
		return 0, nil
	}
	ub.Where(ub.Or(conds...))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"package_id": packageID, "package_number": packageNumber}).Error("Failed to unlink components from package")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to unlink components")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to delete component")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete component")
	}
	return nil
}

// ListPage returns a page of components ordered by creation for batch jobs.
func (r *Repository) ListPage(ctx context.Context, offset, limit int) ([]models.Component, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("created_at ASC", "id ASC")
	sb.Offset(offset)
	sb.Limit(limit)

	query, args := sb.Build()
	var comps []models.Component
	if err := r.db.SelectContext(ctx, &comps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"offset": offset, "limit": limit}).Error("Failed to list components page")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list components")
	}
	return comps, nil
}

// DeletePage removes up to limit components and reports how many went.
// Used by the collection clear loop to avoid one giant delete.
func (r *Repository) DeletePage(ctx context.Context, limit int) (int64, error) {
	query := `DELETE FROM components WHERE id IN (SELECT id FROM components LIMIT $1)`
	result, err := r.db.ExecContext(ctx, query, limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete components page")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete components")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// CountAll returns the total number of components.
func (r *Repository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM components"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count components")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count components")
	}
	return count, nil
}

// CountByStatus returns component counts grouped by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM components GROUP BY status")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count components by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count components")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan component counts")
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
