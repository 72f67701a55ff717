// Package repair migrates legacy exports into the current schema and fixes
// the inconsistencies older writers left behind: numeric parent references,
// stale cached counts, and placeholder addresses.
package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Gobusters/ectologger"

	"github.com/wareflow/packtrack/pkg/aggregate"
	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/models"
)

// ComponentStore is the slice of the component repository the engine needs.
type ComponentStore interface {
	GetByCode(ctx context.Context, code string) (*models.Component, error)
	Insert(ctx context.Context, comp *models.Component) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	ListPage(ctx context.Context, offset, limit int) ([]models.Component, error)
}

// PackageStore is the slice of the package repository the engine needs.
type PackageStore interface {
	GetByNumber(ctx context.Context, number string) (*models.Package, error)
	GetByLegacyID(ctx context.Context, legacyID string) (*models.Package, error)
	Insert(ctx context.Context, pkg *models.Package) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	ListPage(ctx context.Context, offset, limit int) ([]models.Package, error)
}

// PalletStore is the slice of the pallet repository the engine needs.
type PalletStore interface {
	GetByNumber(ctx context.Context, number string) (*models.Pallet, error)
	GetByLegacyID(ctx context.Context, legacyID string) (*models.Pallet, error)
	Insert(ctx context.Context, plt *models.Pallet) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	ListPage(ctx context.Context, offset, limit int) ([]models.Pallet, error)
}

// Aggregator recomputes child unions for count and address backfills.
type Aggregator interface {
	ComponentsOf(ctx context.Context, pkg *models.Package) ([]models.Component, int, error)
	PackagesOf(ctx context.Context, plt *models.Pallet) ([]models.PackageWithComponents, int, error)
}

// Options tunes batch behavior, mirroring the sync engine.
type Options struct {
	BatchSize int
	Strict    bool
}

// Engine runs legacy migrations and consistency repairs.
type Engine struct {
	components ComponentStore
	packages   PackageStore
	pallets    PalletStore
	aggregator Aggregator
	opts       Options
	logger     ectologger.Logger
}

func New(components ComponentStore, packages PackageStore, pallets PalletStore, aggregator Aggregator, opts Options, logger ectologger.Logger) *Engine {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1000
	}
	return &Engine{
		components: components,
		packages:   packages,
		pallets:    pallets,
		aggregator: aggregator,
		opts:       opts,
		logger:     logger,
	}
}

// MigrateRequest carries a full legacy export. Rows are raw maps because
// legacy exporters disagree on key names; see fields.go for the candidates.
type MigrateRequest struct {
	Pallets    []json.RawMessage `json:"pallets"`
	Packages   []json.RawMessage `json:"packages"`
	Components []json.RawMessage `json:"components"`
	DryRun     bool              `json:"dryRun"`
}

// parentRef remembers where a migrated legacy row landed, so children
// migrated later in the same run can be rebound immediately.
type parentRef struct {
	id     string
	number string
}

// MigrateAll ingests a legacy export. Pallets go first, then packages, then
// components, so every child can be rebound to its parent's fresh document
// id within the same run.
func (e *Engine) MigrateAll(ctx context.Context, req *MigrateRequest) (*models.RepairResult, error) {
	result := &models.RepairResult{OK: true, DryRun: req.DryRun}
	palletRefs := map[string]parentRef{}
	packageRefs := map[string]parentRef{}

	for i, raw := range req.Pallets {
		if err := e.migratePallet(ctx, raw, req.DryRun, palletRefs, result); err != nil {
			if e.opts.Strict {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("pallet %d: %v", i, err))
		}
	}
	for i, raw := range req.Packages {
		if err := e.migratePackage(ctx, raw, req.DryRun, palletRefs, packageRefs, result); err != nil {
			if e.opts.Strict {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("package %d: %v", i, err))
		}
	}
	for i, raw := range req.Components {
		if err := e.migrateComponent(ctx, raw, req.DryRun, packageRefs, result); err != nil {
			if e.opts.Strict {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("component %d: %v", i, err))
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"dry_run":             result.DryRun,
		"pallets_migrated":    result.PalletsMigrated,
		"packages_migrated":   result.PackagesMigrated,
		"components_migrated": result.ComponentsMigrated,
		"parents_rebound":     result.ParentsRebound,
		"errors":              len(result.Errors),
	}).Info("Legacy migration finished")
	return result, nil
}

func (e *Engine) migratePallet(ctx context.Context, raw json.RawMessage, dryRun bool, refs map[string]parentRef, result *models.RepairResult) error {
	record := map[string]any{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("invalid pallet row: %w", err)
	}

	number := codes.NormalizeKey(pickString(record, palletNumberKeys))
	if number == "" {
		return nil
	}
	legacyID := pickString(record, legacyIDKeys)

	existing, err := e.pallets.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	if existing != nil {
		if legacyID != "" {
			refs[legacyID] = parentRef{id: existing.ID, number: existing.PalletNumber}
			if existing.LegacyID == nil || *existing.LegacyID != legacyID {
				if !dryRun {
					if err := e.pallets.UpdateFields(ctx, existing.ID, map[string]any{"legacy_id": legacyID}); err != nil {
						return err
					}
				}
				result.PalletsMigrated++
			}
		}
		return nil
	}

	plt := &models.Pallet{
		PalletNumber:    number,
		PalletType:      pickString(record, palletTypeKeys),
		OrderNumber:     pickString(record, orderNumberKeys),
		PackageCount:    pickInt(record, packageCountKeys),
		Status:          pickString(record, statusKeys),
		Notes:           pickString(record, notesKeys),
		CustomerAddress: pickString(record, addressKeys),
		PalletIndex:     pickInt(record, palletIndexKeys),
		Raw:             raw,
	}
	if legacyID != "" {
		plt.LegacyID = &legacyID
	}
	if !dryRun {
		if err := e.pallets.Insert(ctx, plt); err != nil {
			return err
		}
	}
	if legacyID != "" {
		refs[legacyID] = parentRef{id: plt.ID, number: plt.PalletNumber}
	}
	result.PalletsMigrated++
	return nil
}

func (e *Engine) migratePackage(ctx context.Context, raw json.RawMessage, dryRun bool, palletRefs, refs map[string]parentRef, result *models.RepairResult) error {
	record := map[string]any{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("invalid package row: %w", err)
	}

	number := codes.NormalizeKey(pickString(record, packageNumberKeys))
	if number == "" {
		return nil
	}
	legacyID := pickString(record, legacyIDKeys)

	palletID := pickString(record, palletRefKeys)
	palletNumber := codes.NormalizeKey(pickString(record, palletNumberKeys))
	if rebound, ok := e.reboundParent(ctx, palletID, palletRefs, e.lookupPalletByLegacyID); ok {
		palletID = rebound.id
		palletNumber = rebound.number
		result.ParentsRebound++
	}

	existing, err := e.packages.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	if existing != nil {
		fields := map[string]any{}
		if legacyID != "" && (existing.LegacyID == nil || *existing.LegacyID != legacyID) {
			fields["legacy_id"] = legacyID
		}
		if palletID != "" && codes.IsDocumentID(palletID) && existing.PalletID != palletID {
			fields["pallet_id"] = palletID
			fields["pallet_number"] = palletNumber
		}
		if legacyID != "" {
			refs[legacyID] = parentRef{id: existing.ID, number: existing.PackageNumber}
		}
		if len(fields) == 0 {
			return nil
		}
		if !dryRun {
			if err := e.packages.UpdateFields(ctx, existing.ID, fields); err != nil {
				return err
			}
		}
		result.PackagesMigrated++
		return nil
	}

	pkg := &models.Package{
		PackageNumber:   number,
		OrderNumber:     pickString(record, orderNumberKeys),
		PalletID:        palletID,
		PalletNumber:    palletNumber,
		ComponentCount:  pickInt(record, componentCountKeys),
		Status:          pickString(record, statusKeys),
		Notes:           pickString(record, notesKeys),
		CustomerAddress: pickString(record, addressKeys),
		PackageIndex:    pickInt(record, packageIndexKeys),
		Raw:             raw,
	}
	if legacyID != "" {
		pkg.LegacyID = &legacyID
	}
	if !dryRun {
		if err := e.packages.Insert(ctx, pkg); err != nil {
			return err
		}
	}
	if legacyID != "" {
		refs[legacyID] = parentRef{id: pkg.ID, number: pkg.PackageNumber}
	}
	result.PackagesMigrated++
	return nil
}

func (e *Engine) migrateComponent(ctx context.Context, raw json.RawMessage, dryRun bool, packageRefs map[string]parentRef, result *models.RepairResult) error {
	record := map[string]any{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("invalid component row: %w", err)
	}

	code := codes.Normalize(pickString(record, componentCodeKeys))
	if code == "" {
		return nil
	}
	legacyID := pickString(record, legacyIDKeys)

	packageID := pickString(record, packageRefKeys)
	packageNumber := codes.NormalizeKey(pickString(record, packageNumberKeys))
	if rebound, ok := e.reboundParent(ctx, packageID, packageRefs, e.lookupPackageByLegacyID); ok {
		packageID = rebound.id
		packageNumber = rebound.number
		result.ParentsRebound++
	}

	existing, err := e.components.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if existing != nil {
		fields := map[string]any{}
		if legacyID != "" && (existing.LegacyID == nil || *existing.LegacyID != legacyID) {
			fields["legacy_id"] = legacyID
		}
		if packageID != "" && codes.IsDocumentID(packageID) && existing.PackageID != packageID {
			fields["package_id"] = packageID
			fields["package_number"] = packageNumber
		}
		if len(fields) == 0 {
			return nil
		}
		if !dryRun {
			if err := e.components.UpdateFields(ctx, existing.ID, fields); err != nil {
				return err
			}
		}
		result.ComponentsMigrated++
		return nil
	}

	comp := &models.Component{
		ComponentCode:   code,
		ComponentName:   pickString(record, componentNameKeys),
		OrderNumber:     pickString(record, orderNumberKeys),
		Material:        pickString(record, materialKeys),
		FinishedSize:    pickString(record, finishedSizeKeys),
		RoomNumber:      pickString(record, roomNumberKeys),
		CabinetNumber:   pickString(record, cabinetNumberKeys),
		CustomerAddress: pickString(record, addressKeys),
		Status:          pickString(record, statusKeys),
		PackageID:       packageID,
		PackageNumber:   packageNumber,
		Raw:             raw,
	}
	if legacyID != "" {
		comp.LegacyID = &legacyID
	}
	if !dryRun {
		if err := e.components.Insert(ctx, comp); err != nil {
			return err
		}
	}
	result.ComponentsMigrated++
	return nil
}

var legacyNumericRef = regexp.MustCompile(`^\d+$`)

// reboundParent maps a legacy numeric parent reference to the parent's
// current document id, first through refs collected this run and then
// through the database.
func (e *Engine) reboundParent(ctx context.Context, parentID string, refs map[string]parentRef, lookup func(context.Context, string) (*parentRef, error)) (parentRef, bool) {
	if parentID == "" || !legacyNumericRef.MatchString(parentID) {
		return parentRef{}, false
	}
	if ref, ok := refs[parentID]; ok && ref.id != "" {
		return ref, true
	}
	ref, err := lookup(ctx, parentID)
	if err != nil || ref == nil {
		return parentRef{}, false
	}
	return *ref, true
}

func (e *Engine) lookupPalletByLegacyID(ctx context.Context, legacyID string) (*parentRef, error) {
	plt, err := e.pallets.GetByLegacyID(ctx, legacyID)
	if err != nil || plt == nil {
		return nil, err
	}
	return &parentRef{id: plt.ID, number: plt.PalletNumber}, nil
}

func (e *Engine) lookupPackageByLegacyID(ctx context.Context, legacyID string) (*parentRef, error) {
	pkg, err := e.packages.GetByLegacyID(ctx, legacyID)
	if err != nil || pkg == nil {
		return nil, err
	}
	return &parentRef{id: pkg.ID, number: pkg.PackageNumber}, nil
}

// RepairAll walks the whole database in pages and fixes what it finds:
// standard columns older writers left empty but whose values survive in the
// stored raw row, numeric parent references left by partial migrations,
// cached counts that drifted from the real child unions, and placeholder
// addresses that can be recovered from children.
func (e *Engine) RepairAll(ctx context.Context, dryRun bool) (*models.RepairResult, error) {
	result := &models.RepairResult{OK: true, DryRun: dryRun}

	if err := e.repairComponents(ctx, dryRun, result); err != nil {
		return nil, err
	}
	if err := e.repairPackages(ctx, dryRun, result); err != nil {
		return nil, err
	}
	if err := e.repairPallets(ctx, dryRun, result); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"dry_run":            result.DryRun,
		"parents_rebound":    result.ParentsRebound,
		"fields_backfilled":  result.FieldsBackfilled,
		"counts_backfilled":  result.CountsBackfilled,
		"addresses_repaired": result.AddressesRepaired,
		"errors":             len(result.Errors),
	}).Info("Repair pass finished")
	return result, nil
}

func (e *Engine) repairComponents(ctx context.Context, dryRun bool, result *models.RepairResult) error {
	for offset := 0; ; offset += e.opts.BatchSize {
		comps, err := e.components.ListPage(ctx, offset, e.opts.BatchSize)
		if err != nil {
			return err
		}
		for i := range comps {
			comp := &comps[i]
			fields := componentBackfillFields(comp)
			backfilled := len(fields) > 0

			packageID := comp.PackageID
			if v, ok := fields["package_id"].(string); ok {
				packageID = v
			}
			if packageID != "" && legacyNumericRef.MatchString(packageID) {
				ref, err := e.lookupPackageByLegacyID(ctx, packageID)
				if err != nil {
					if e.opts.Strict {
						return err
					}
					result.Errors = append(result.Errors, fmt.Sprintf("component %s: %v", comp.ID, err))
					continue
				}
				if ref != nil {
					fields["package_id"] = ref.id
					fields["package_number"] = ref.number
					result.ParentsRebound++
				}
			}
			if len(fields) == 0 {
				continue
			}
			if !dryRun {
				if err := e.components.UpdateFields(ctx, comp.ID, fields); err != nil {
					if e.opts.Strict {
						return err
					}
					result.Errors = append(result.Errors, fmt.Sprintf("component %s: %v", comp.ID, err))
					continue
				}
			}
			if backfilled {
				result.FieldsBackfilled++
			}
		}
		if len(comps) < e.opts.BatchSize {
			return nil
		}
	}
}

func (e *Engine) repairPackages(ctx context.Context, dryRun bool, result *models.RepairResult) error {
	for offset := 0; ; offset += e.opts.BatchSize {
		pkgs, err := e.packages.ListPage(ctx, offset, e.opts.BatchSize)
		if err != nil {
			return err
		}
		for i := range pkgs {
			pkg := &pkgs[i]
			comps, total, err := e.aggregator.ComponentsOf(ctx, pkg)
			if err != nil {
				if e.opts.Strict {
					return err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("package %s: %v", pkg.ID, err))
				continue
			}

			fields := packageBackfillFields(pkg)
			backfilled := len(fields) > 0
			cached := 0
			if pkg.ComponentCount != nil {
				cached = *pkg.ComponentCount
			}
			countChanged := cached != total
			if countChanged {
				fields["component_count"] = total
			}
			own := pkg.CustomerAddress
			if v, ok := fields["customer_address"].(string); ok {
				own = v
			}
			address := aggregate.ResolveAddress(own, aggregate.ComponentAddressRecords(comps))
			addressChanged := address != "" && address != own
			if addressChanged {
				fields["customer_address"] = address
			}
			if len(fields) == 0 {
				continue
			}
			if !dryRun {
				if err := e.packages.UpdateFields(ctx, pkg.ID, fields); err != nil {
					if e.opts.Strict {
						return err
					}
					result.Errors = append(result.Errors, fmt.Sprintf("package %s: %v", pkg.ID, err))
					continue
				}
			}
			if backfilled {
				result.FieldsBackfilled++
			}
			if countChanged {
				result.CountsBackfilled++
			}
			if addressChanged {
				result.AddressesRepaired++
			}
		}
		if len(pkgs) < e.opts.BatchSize {
			return nil
		}
	}
}

func (e *Engine) repairPallets(ctx context.Context, dryRun bool, result *models.RepairResult) error {
	for offset := 0; ; offset += e.opts.BatchSize {
		plts, err := e.pallets.ListPage(ctx, offset, e.opts.BatchSize)
		if err != nil {
			return err
		}
		for i := range plts {
			plt := &plts[i]
			pkgs, total, err := e.aggregator.PackagesOf(ctx, plt)
			if err != nil {
				if e.opts.Strict {
					return err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("pallet %s: %v", plt.ID, err))
				continue
			}

			fields := palletBackfillFields(plt)
			backfilled := len(fields) > 0
			cached := 0
			if plt.PackageCount != nil {
				cached = *plt.PackageCount
			}
			countChanged := cached != total
			if countChanged {
				fields["package_count"] = total
			}
			bare := make([]models.Package, 0, len(pkgs))
			for j := range pkgs {
				bare = append(bare, pkgs[j].Package)
			}
			own := plt.CustomerAddress
			if v, ok := fields["customer_address"].(string); ok {
				own = v
			}
			address := aggregate.ResolveAddress(own, aggregate.PackageAddressRecords(bare))
			addressChanged := address != "" && address != own
			if addressChanged {
				fields["customer_address"] = address
			}
			if len(fields) == 0 {
				continue
			}
			if !dryRun {
				if err := e.pallets.UpdateFields(ctx, plt.ID, fields); err != nil {
					if e.opts.Strict {
						return err
					}
					result.Errors = append(result.Errors, fmt.Sprintf("pallet %s: %v", plt.ID, err))
					continue
				}
			}
			if backfilled {
				result.FieldsBackfilled++
			}
			if countChanged {
				result.CountsBackfilled++
			}
			if addressChanged {
				result.AddressesRepaired++
			}
		}
		if len(plts) < e.opts.BatchSize {
			return nil
		}
	}
}
