package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/models"
)

// ComponentStore is the slice of the component repository the syncer needs.
type ComponentStore interface {
	GetByCode(ctx context.Context, code string) (*models.Component, error)
	Insert(ctx context.Context, comp *models.Component) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

// PackageStore is the slice of the package repository the syncer needs.
type PackageStore interface {
	GetByNumber(ctx context.Context, number string) (*models.Package, error)
	Insert(ctx context.Context, pkg *models.Package) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

// PalletStore is the slice of the pallet repository the syncer needs.
type PalletStore interface {
	GetByNumber(ctx context.Context, number string) (*models.Pallet, error)
	Insert(ctx context.Context, plt *models.Pallet) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

// Options tunes batch behavior. Strict aborts a batch on the first item
// error; the default pushes on and reports item errors in the result, which
// suits the nightly full export where one bad row should not block the rest.
type Options struct {
	Strict bool
}

// Engine ingests exporter batches, writing only rows that actually changed
// so repeated full exports stay cheap.
type Engine struct {
	components ComponentStore
	packages   PackageStore
	pallets    PalletStore
	opts       Options
	logger     ectologger.Logger
}

func New(components ComponentStore, packages PackageStore, pallets PalletStore, opts Options, logger ectologger.Logger) *Engine {
	return &Engine{
		components: components,
		packages:   packages,
		pallets:    pallets,
		opts:       opts,
		logger:     logger,
	}
}

// SyncComponents upserts a batch of component rows. Items are keyed by their
// normalized code; the first occurrence of a code in the batch wins and
// later duplicates are skipped.
func (e *Engine) SyncComponents(ctx context.Context, items []json.RawMessage) (*models.SyncResult, error) {
	result := &models.SyncResult{OK: true, Received: len(items)}
	seen := map[string]struct{}{}

	for i, raw := range items {
		err := e.syncComponent(ctx, raw, seen, result)
		if err != nil {
			if e.opts.Strict {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, err))
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"received": result.Received,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	}).Info("Component sync batch finished")
	return result, nil
}

func (e *Engine) syncComponent(ctx context.Context, raw json.RawMessage, seen map[string]struct{}, result *models.SyncResult) error {
	var item models.ComponentItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return fmt.Errorf("invalid component payload: %w", err)
	}

	code := codes.Normalize(item.ComponentCode)
	if code == "" {
		result.Skipped++
		return nil
	}
	if _, dup := seen[code]; dup {
		result.Skipped++
		return nil
	}
	seen[code] = struct{}{}

	// A row carrying only the business number gets its parent's document id
	// resolved here, so reads never have to chase the number again.
	if item.PackageID == "" && item.PackageNumber != "" {
		pkg, err := e.packages.GetByNumber(ctx, codes.NormalizeKey(item.PackageNumber))
		if err != nil {
			return err
		}
		if pkg != nil {
			item.PackageID = pkg.ID
		}
	}

	existing, err := e.components.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	if existing == nil {
		var legacyID *string
		if item.LegacyID != "" {
			legacyID = &item.LegacyID
		}
		comp := &models.Component{
			ComponentCode:   code,
			ComponentName:   item.ComponentName,
			OrderNumber:     item.OrderNumber,
			Material:        item.Material,
			FinishedSize:    item.FinishedSize,
			RoomNumber:      item.RoomNumber,
			CabinetNumber:   item.CabinetNumber,
			CustomerAddress: item.CustomerAddress,
			Status:          item.Status,
			PackageID:       item.PackageID,
			PackageNumber:   item.PackageNumber,
			LegacyID:        legacyID,
			Raw:             raw,
		}
		if err := e.components.Insert(ctx, comp); err != nil {
			return err
		}
		result.Inserted++
		return nil
	}

	fields := componentChanges(existing, &item, code)
	if len(fields) == 0 {
		result.Skipped++
		return nil
	}
	fields["raw"] = []byte(raw)
	if err := e.components.UpdateFields(ctx, existing.ID, fields); err != nil {
		return err
	}
	result.Updated++
	return nil
}

// SyncPackages upserts a batch of package rows keyed by package number.
func (e *Engine) SyncPackages(ctx context.Context, items []json.RawMessage) (*models.SyncResult, error) {
	result := &models.SyncResult{OK: true, Received: len(items)}
	seen := map[string]struct{}{}

	for i, raw := range items {
		err := e.syncPackage(ctx, raw, seen, result)
		if err != nil {
			if e.opts.Strict {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, err))
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"received": result.Received,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	}).Info("Package sync batch finished")
	return result, nil
}

func (e *Engine) syncPackage(ctx context.Context, raw json.RawMessage, seen map[string]struct{}, result *models.SyncResult) error {
	var item models.PackageItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return fmt.Errorf("invalid package payload: %w", err)
	}

	number := codes.NormalizeKey(item.PackageNumber)
	if number == "" {
		result.Skipped++
		return nil
	}
	if _, dup := seen[number]; dup {
		result.Skipped++
		return nil
	}
	seen[number] = struct{}{}

	if item.PalletID == "" && item.PalletNumber != "" {
		plt, err := e.pallets.GetByNumber(ctx, codes.NormalizeKey(item.PalletNumber))
		if err != nil {
			return err
		}
		if plt != nil {
			item.PalletID = plt.ID
		}
	}

	existing, err := e.packages.GetByNumber(ctx, number)
	if err != nil {
		return err
	}

	if existing == nil {
		var legacyID *string
		if item.LegacyID != "" {
			legacyID = &item.LegacyID
		}
		pkg := &models.Package{
			PackageNumber:   number,
			OrderNumber:     item.OrderNumber,
			PalletID:        item.PalletID,
			PalletNumber:    item.PalletNumber,
			ComponentCount:  item.ComponentCount,
			Status:          item.Status,
			Notes:           item.Notes,
			ChangeReason:    item.ChangeReason,
			CustomerAddress: item.CustomerAddress,
			PackageIndex:    item.PackageIndex,
			LegacyID:        legacyID,
			Raw:             raw,
		}
		if err := e.packages.Insert(ctx, pkg); err != nil {
			return err
		}
		result.Inserted++
		return nil
	}

	fields := packageChanges(existing, &item, number)
	if len(fields) == 0 {
		result.Skipped++
		return nil
	}
	fields["raw"] = []byte(raw)
	if err := e.packages.UpdateFields(ctx, existing.ID, fields); err != nil {
		return err
	}
	result.Updated++
	return nil
}

// SyncPallets upserts a batch of pallet rows keyed by pallet number.
func (e *Engine) SyncPallets(ctx context.Context, items []json.RawMessage) (*models.SyncResult, error) {
	result := &models.SyncResult{OK: true, Received: len(items)}
	seen := map[string]struct{}{}

	for i, raw := range items {
		err := e.syncPallet(ctx, raw, seen, result)
		if err != nil {
			if e.opts.Strict {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, err))
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"received": result.Received,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	}).Info("Pallet sync batch finished")
	return result, nil
}

func (e *Engine) syncPallet(ctx context.Context, raw json.RawMessage, seen map[string]struct{}, result *models.SyncResult) error {
	var item models.PalletItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return fmt.Errorf("invalid pallet payload: %w", err)
	}

	number := codes.NormalizeKey(item.PalletNumber)
	if number == "" {
		result.Skipped++
		return nil
	}
	if _, dup := seen[number]; dup {
		result.Skipped++
		return nil
	}
	seen[number] = struct{}{}

	existing, err := e.pallets.GetByNumber(ctx, number)
	if err != nil {
		return err
	}

	if existing == nil {
		var legacyID *string
		if item.LegacyID != "" {
			legacyID = &item.LegacyID
		}
		plt := &models.Pallet{
			PalletNumber:    number,
			PalletType:      item.PalletType,
			OrderNumber:     item.OrderNumber,
			PackageCount:    item.PackageCount,
			Status:          item.Status,
			Notes:           item.Notes,
			ChangeReason:    item.ChangeReason,
			CustomerAddress: item.CustomerAddress,
			PalletIndex:     item.PalletIndex,
			LegacyID:        legacyID,
			Raw:             raw,
		}
		if err := e.pallets.Insert(ctx, plt); err != nil {
			return err
		}
		result.Inserted++
		return nil
	}

	fields := palletChanges(existing, &item, number)
	if len(fields) == 0 {
		result.Skipped++
		return nil
	}
	fields["raw"] = []byte(raw)
	if err := e.pallets.UpdateFields(ctx, existing.ID, fields); err != nil {
		return err
	}
	result.Updated++
	return nil
}
