package pallet

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/wareflow/packtrack/pkg/database"
	"github.com/wareflow/packtrack/pkg/models"
)

const table = "pallets"

var columns = []string{
	"id", "pallet_number", "pallet_type", "order_number", "package_count",
	"status", "notes", "change_reason", "customer_address", "pallet_index",
	"legacy_id", "raw", "created_at", "updated_at",
}

var updatableColumns = map[string]struct{}{
	"pallet_number": {}, "pallet_type": {}, "order_number": {},
	"package_count": {}, "status": {}, "notes": {}, "change_reason": {},
	"customer_address": {}, "pallet_index": {}, "legacy_id": {}, "raw": {},
}

// Repository handles pallet persistence
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

// GetByNumber returns the pallet with the exact pallet_number, or nil.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*models.Pallet, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("pallet_number", number))
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, map[string]any{"pallet_number": number})
}

// GetByID returns the pallet with the given document id, or nil.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Pallet, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb, map[string]any{"id": id})
}

// GetByLegacyID returns the pallet carrying the given legacy numeric id.
func (r *Repository) GetByLegacyID(ctx context.Context, legacyID string) (*models.Pallet, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("legacy_id", legacyID))
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	return r.getOne(ctx, sb, map[string]any{"legacy_id": legacyID})
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder, fields map[string]any) (*models.Pallet, error) {
	query, args := sb.Build()
	var plt models.Pallet
	if err := r.db.GetContext(ctx, &plt, query, args...); err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("Failed to get pallet")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pallet")
	}
	return &plt, nil
}

// Insert creates a pallet, generating its document id and timestamps.
func (r *Repository) Insert(ctx context.Context, plt *models.Pallet) error {
	if plt.ID == "" {
		plt.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	plt.CreatedAt = now
	plt.UpdatedAt = now
	if plt.Status == "" {
		plt.Status = models.StatusOpen
	}
	if plt.PalletType == "" {
		plt.PalletType = models.PalletTypeDefault
	}
	if len(plt.Raw) == 0 {
		plt.Raw = []byte("{}")
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		plt.ID, plt.PalletNumber, plt.PalletType, plt.OrderNumber,
		plt.PackageCount, plt.Status, plt.Notes, plt.ChangeReason,
		plt.CustomerAddress, plt.PalletIndex, plt.LegacyID, []byte(plt.Raw),
		plt.CreatedAt, plt.UpdatedAt,
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("pallet_number", plt.PalletNumber).Error("Failed to insert pallet")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert pallet")
	}
	return nil
}

// UpdateFields writes only the given columns on a pallet.
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
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to update pallet")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update pallet")
	}
	return nil
}

// DeleteByID removes one pallet.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to delete pallet")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete pallet")
	}
	return nil
}

// ListPage returns a page of pallets ordered by creation for batch jobs.
func (r *Repository) ListPage(ctx context.Context, offset, limit int) ([]models.Pallet, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("created_at ASC", "id ASC")
	sb.Offset(offset)
	sb.Limit(limit)

	query, args := sb.Build()
	var plts []models.Pallet
	if err := r.db.SelectContext(ctx, &plts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"offset": offset, "limit": limit}).Error("Failed to list pallets page")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pallets")
	}
	return plts, nil
}

// DeletePage removes up to limit pallets and reports how many went.
func (r *Repository) DeletePage(ctx context.Context, limit int) (int64, error) {
	query := `DELETE FROM pallets WHERE id IN (SELECT id FROM pallets LIMIT $1)`
	result, err := r.db.ExecContext(ctx, query, limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete pallets page")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete pallets")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// CountAll returns the total number of pallets.
func (r *Repository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM pallets"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count pallets")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count pallets")
	}
	return count, nil
}

// CountByStatus returns pallet counts grouped by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM pallets GROUP BY status")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count pallets by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count pallets")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan pallet counts")
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
