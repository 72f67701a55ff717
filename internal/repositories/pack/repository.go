package pack

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

const table = "packages"

var columns = []string{
	"id", "package_number", "order_number", "pallet_id", "pallet_number",
	"component_count", "status", "notes", "change_reason", "customer_address",
	"package_index", "legacy_id", "raw", "created_at", "updated_at",
}

var updatableColumns = map[string]struct{}{
	"package_number": {}, "order_number": {}, "pallet_id": {},
	"pallet_number": {}, "component_count": {}, "status": {}, "notes": {},
	"change_reason": {}, "customer_address": {}, "package_index": {},
	"legacy_id": {}, "raw": {},
}

// Repository handles package persistence
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

// GetByNumber returns the package with the exact package_number, or nil.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*models.Package, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("package_number", number))
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, map[string]any{"package_number": number})
}

// GetByID returns the package with the given document id, or nil.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Package, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb, map[string]any{"id": id})
}

// GetByLegacyID returns the package carrying the given legacy numeric id.
func (r *Repository) GetByLegacyID(ctx context.Context, legacyID string) (*models.Package, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("legacy_id", legacyID))
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, map[string]any{"legacy_id": legacyID})
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder, fields map[string]any) (*models.Package, error) {
	query, args := sb.Build()
	var pkg models.Package
	if err := r.db.GetContext(ctx, &pkg, query, args...); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("Failed to get package")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get package")
	}
	return &pkg, nil
}

// ListByPalletRef returns all packages referencing the parent pallet through
// the given join strategy.
func (r *Repository) ListByPalletRef(ctx context.Context, ref codes.JoinRef) ([]models.Package, error) {
	if ref.Value == "" {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal(palletRefColumn(ref.Strategy), ref.Value))
	sb.OrderBy("package_index ASC NULLS LAST", "package_number ASC")

	query, args := sb.Build()
	var pkgs []models.Package
	if err := r.db.SelectContext(ctx, &pkgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"strategy": ref.Strategy.String(), "value": ref.Value}).Error("Failed to list packages by pallet ref")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list packages")
	}
	return pkgs, nil
}

// CountByPalletRef counts packages referencing the parent pallet through the
// given join strategy.
func (r *Repository) CountByPalletRef(ctx context.Context, ref codes.JoinRef) (int, error) {
	if ref.Value == "" {
		return 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(sb.Equal(palletRefColumn(ref.Strategy), ref.Value))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"strategy": ref.Strategy.String(), "value": ref.Value}).Error("Failed to count packages by pallet ref")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count packages")
	}
	return count, nil
}

func palletRefColumn(strategy codes.JoinStrategy) string {
	if strategy == codes.ByBusinessNumber {
		return "pallet_number"
	}
	return "pallet_id"
}

// Insert creates a package, generating its document id and timestamps.
func (r *Repository) Insert(ctx context.Context, pkg *models.Package) error {
	if pkg.ID == "" {
		pkg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now
	if pkg.Status == "" {
		pkg.Status = models.StatusOpen
	}
	if len(pkg.Raw) == 0 {
		pkg.Raw = []byte("{}")
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		pkg.ID, pkg.PackageNumber, pkg.OrderNumber, pkg.PalletID,
		pkg.PalletNumber, pkg.ComponentCount, pkg.Status, pkg.Notes,
		pkg.ChangeReason, pkg.CustomerAddress, pkg.PackageIndex, pkg.LegacyID,
		[]byte(pkg.Raw), pkg.CreatedAt, pkg.UpdatedAt,
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("package_number", pkg.PackageNumber).Error("Failed to insert package")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert package")
	}
	return nil
}

// UpdateFields writes only the given columns on a package.
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
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to update package")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update package")
	}
	return nil
}

// UnlinkFromPallet clears parent references on every package linked to the
// pallet by either document id or business number.
func (r *Repository) UnlinkFromPallet(ctx context.Context, palletID, palletNumber string) (int64, error) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("pallet_id", ""),
		ub.Assign("pallet_number", ""),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	conds := []string{}
	if palletID != "" {
		conds = append(conds, ub.Equal("pallet_id", palletID))
	}
	if palletNumber != "" {
		conds = append(conds, ub.Equal("pallet_number", palletNumber))
	}
	if len(conds) == 0 {
		return 0, nil
	}
	ub.Where(ub.Or(conds...))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"pallet_id": palletID, "pallet_number": palletNumber}).Error("Failed to unlink packages from pallet")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to unlink packages")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// DeleteByID removes one package.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to delete package")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete package")
	}
	return nil
}

// ListPage returns a page of packages ordered by creation for batch jobs.
func (r *Repository) ListPage(ctx context.Context, offset, limit int) ([]models.Package, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("created_at ASC", "id ASC")
	sb.Offset(offset)
	sb.Limit(limit)

	query, args := sb.Build()
	var pkgs []models.Package
	if err := r.db.SelectContext(ctx, &pkgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"offset": offset, "limit": limit}).Error("Failed to list packages page")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list packages")
	}
	return pkgs, nil
}

// DeletePage removes up to limit packages and reports how many went.
func (r *Repository) DeletePage(ctx context.Context, limit int) (int64, error) {
	query := `DELETE FROM packages WHERE id IN (SELECT id FROM packages LIMIT $1)`
	result, err := r.db.ExecContext(ctx, query, limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete packages page")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete packages")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// CountAll returns the total number of packages.
func (r *Repository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM packages"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count packages")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count packages")
	}
	return count, nil
}

// CountByStatus returns package counts grouped by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM packages GROUP BY status")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count packages by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count packages")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan package counts")
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
