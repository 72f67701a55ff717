// Package deletion implements cascade deletes and collection clears. Parents
// never take their children with them: deleting a package releases its
// components back to pending, deleting a pallet releases its packages.
package deletion

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/models"
)

// ComponentStore is the slice of the component repository the engine needs.
type ComponentStore interface {
	GetByCode(ctx context.Context, code string) (*models.Component, error)
	UnlinkFromPackage(ctx context.Context, packageID, packageNumber string) (int64, error)
	DeleteByID(ctx context.Context, id string) error
	DeletePage(ctx context.Context, limit int) (int64, error)
}

// PackageStore is the slice of the package repository the engine needs.
type PackageStore interface {
	GetByID(ctx context.Context, id string) (*models.Package, error)
	GetByNumber(ctx context.Context, number string) (*models.Package, error)
	UnlinkFromPallet(ctx context.Context, palletID, palletNumber string) (int64, error)
	DeleteByID(ctx context.Context, id string) error
	DeletePage(ctx context.Context, limit int) (int64, error)
}

// PalletStore is the slice of the pallet repository the engine needs.
type PalletStore interface {
	GetByID(ctx context.Context, id string) (*models.Pallet, error)
	GetByNumber(ctx context.Context, number string) (*models.Pallet, error)
	DeleteByID(ctx context.Context, id string) error
	DeletePage(ctx context.Context, limit int) (int64, error)
}

// Engine executes cascade deletes and batched collection clears.
type Engine struct {
	components ComponentStore
	packages   PackageStore
	pallets    PalletStore
	batchSize  int
	logger     ectologger.Logger
}

func New(components ComponentStore, packages PackageStore, pallets PalletStore, batchSize int, logger ectologger.Logger) *Engine {
	if batchSize < 1 {
		batchSize = 1000
	}
	return &Engine{
		components: components,
		packages:   packages,
		pallets:    pallets,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// DeleteComponents removes components by business code. Missing codes are
// reported but do not stop the batch.
func (e *Engine) DeleteComponents(ctx context.Context, refs []string) (*models.DeleteResult, error) {
	result := &models.DeleteResult{OK: true}
	for _, ref := range refs {
		code := codes.Normalize(ref)
		if code == "" {
			continue
		}
		comp, err := codes.FindByCaseVariants(code, func(v string) (*models.Component, error) {
			return e.components.GetByCode(ctx, v)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("component %s: %v", code, err))
			continue
		}
		if comp == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("component %s not found", code))
			continue
		}
		if err := e.components.DeleteByID(ctx, comp.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("component %s: %v", code, err))
			continue
		}
		result.DeletedComponents++
	}
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"requested": len(refs),
		"deleted":   result.DeletedComponents,
		"errors":    len(result.Errors),
	}).Info("Component delete batch finished")
	return result, nil
}

// DeletePackages cascade-deletes a batch of packages. Each delete releases
// the package's components; a failed item is reported and skipped.
func (e *Engine) DeletePackages(ctx context.Context, refs []string) (*models.DeleteResult, error) {
	result := &models.DeleteResult{OK: true}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		one, err := e.DeletePackage(ctx, ref)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("package %s: %v", ref, err))
			continue
		}
		result.DeletedPackages += one.DeletedPackages
		result.UnlinkedComponents += one.UnlinkedComponents
	}
	return result, nil
}

// DeletePallets cascade-deletes a batch of pallets, releasing their packages.
func (e *Engine) DeletePallets(ctx context.Context, refs []string) (*models.DeleteResult, error) {
	result := &models.DeleteResult{OK: true}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		one, err := e.DeletePallet(ctx, ref)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("pallet %s: %v", ref, err))
			continue
		}
		result.DeletedPallets += one.DeletedPallets
		result.UnlinkedPackages += one.UnlinkedPackages
	}
	return result, nil
}

// DeletePackage removes a package identified by document id or business
// number, first unlinking every component that references it by id, number,
// or legacy id.
func (e *Engine) DeletePackage(ctx context.Context, ref string) (*models.DeleteResult, error) {
	pkg, err := e.findPackage(ctx, ref)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "package %s not found", ref)
	}

	unlinked, err := e.components.UnlinkFromPackage(ctx, pkg.ID, pkg.PackageNumber)
	if err != nil {
		return nil, err
	}
	if pkg.LegacyID != nil && *pkg.LegacyID != "" {
		n, err := e.components.UnlinkFromPackage(ctx, *pkg.LegacyID, "")
		if err != nil {
			return nil, err
		}
		unlinked += n
	}

	if err := e.packages.DeleteByID(ctx, pkg.ID); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"package_id":          pkg.ID,
		"package_number":      pkg.PackageNumber,
		"unlinked_components": unlinked,
	}).Info("Deleted package and released its components")

	return &models.DeleteResult{
		OK:                 true,
		DeletedPackages:    1,
		UnlinkedComponents: int(unlinked),
	}, nil
}

// DeletePallet removes a pallet identified by document id or business
// number, unlinking its packages. The packages keep their components.
func (e *Engine) DeletePallet(ctx context.Context, ref string) (*models.DeleteResult, error) {
	plt, err := e.findPallet(ctx, ref)
	if err != nil {
		return nil, err
	}
	if plt == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "pallet %s not found", ref)
	}

	unlinked, err := e.packages.UnlinkFromPallet(ctx, plt.ID, plt.PalletNumber)
	if err != nil {
		return nil, err
	}
	if plt.LegacyID != nil && *plt.LegacyID != "" {
		n, err := e.packages.UnlinkFromPallet(ctx, *plt.LegacyID, "")
		if err != nil {
			return nil, err
		}
		unlinked += n
	}

	if err := e.pallets.DeleteByID(ctx, plt.ID); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"pallet_id":         plt.ID,
		"pallet_number":     plt.PalletNumber,
		"unlinked_packages": unlinked,
	}).Info("Deleted pallet and released its packages")

	return &models.DeleteResult{
		OK:               true,
		DeletedPallets:   1,
		UnlinkedPackages: int(unlinked),
	}, nil
}

func (e *Engine) findPackage(ctx context.Context, ref string) (*models.Package, error) {
	if codes.IsDocumentID(ref) {
		pkg, err := e.packages.GetByID(ctx, ref)
		if err != nil || pkg != nil {
			return pkg, err
		}
	}
	return codes.FindByCaseVariants(codes.NormalizeKey(ref), func(v string) (*models.Package, error) {
		return e.packages.GetByNumber(ctx, v)
	})
}

func (e *Engine) findPallet(ctx context.Context, ref string) (*models.Pallet, error) {
	if codes.IsDocumentID(ref) {
		plt, err := e.pallets.GetByID(ctx, ref)
		if err != nil || plt != nil {
			return plt, err
		}
	}
	return codes.FindByCaseVariants(codes.NormalizeKey(ref), func(v string) (*models.Pallet, error) {
		return e.pallets.GetByNumber(ctx, v)
	})
}

// Collection names accepted by ClearCollections.
const (
	CollectionComponents = "components"
	CollectionPackages   = "packages"
	CollectionPallets    = "pallets"
)

// KnownCollection reports whether name is a clearable collection.
func KnownCollection(name string) bool {
	return name == CollectionComponents || name == CollectionPackages || name == CollectionPallets
}

// ClearCollections wipes the named collections in batches so the database
// never has to hold one giant delete. An empty name list clears all three.
func (e *Engine) ClearCollections(ctx context.Context, names []string) (*models.ClearResult, error) {
	result := &models.ClearResult{OK: true}

	wanted := map[string]bool{}
	for _, name := range names {
		wanted[name] = true
	}
	all := len(wanted) == 0

	if all || wanted[CollectionComponents] {
		comps, err := e.clearPaged(ctx, e.components.DeletePage)
		if err != nil {
			return nil, err
		}
		result.ComponentsDeleted = comps
	}

	if all || wanted[CollectionPackages] {
		pkgs, err := e.clearPaged(ctx, e.packages.DeletePage)
		if err != nil {
			return nil, err
		}
		result.PackagesDeleted = pkgs
	}

	if all || wanted[CollectionPallets] {
		plts, err := e.clearPaged(ctx, e.pallets.DeletePage)
		if err != nil {
			return nil, err
		}
		result.PalletsDeleted = plts
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"components_deleted": result.ComponentsDeleted,
		"packages_deleted":   result.PackagesDeleted,
		"pallets_deleted":    result.PalletsDeleted,
	}).Warn("Cleared collections")
	return result, nil
}

func (e *Engine) clearPaged(ctx context.Context, deletePage func(context.Context, int) (int64, error)) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := deletePage(ctx, e.batchSize)
		if err != nil {
			return total, err
		}
		total += int(n)
		if n < int64(e.batchSize) {
			return total, nil
		}
	}
}
