package resolver

import (
	"context"
	"net/http"
	"regexp"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wareflow/packtrack/pkg/aggregate"
	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/models"
)

// ComponentFinder is the slice of the component repository the resolver needs.
type ComponentFinder interface {
	GetByCode(ctx context.Context, code string) (*models.Component, error)
	GetByID(ctx context.Context, id string) (*models.Component, error)
	GetByLegacyID(ctx context.Context, legacyID string) (*models.Component, error)
}

// PackageFinder is the slice of the package repository the resolver needs.
type PackageFinder interface {
	GetByNumber(ctx context.Context, number string) (*models.Package, error)
	GetByID(ctx context.Context, id string) (*models.Package, error)
	GetByLegacyID(ctx context.Context, legacyID string) (*models.Package, error)
}

// PalletFinder is the slice of the pallet repository the resolver needs.
type PalletFinder interface {
	GetByNumber(ctx context.Context, number string) (*models.Pallet, error)
	GetByID(ctx context.Context, id string) (*models.Pallet, error)
	GetByLegacyID(ctx context.Context, legacyID string) (*models.Pallet, error)
}

// Resolver turns one scanned code into the entity it identifies, walking the
// hierarchy component first, then package, then pallet. Each level retries
// case variants because historic imports stored codes in mixed case.
type Resolver struct {
	components ComponentFinder
	packages   PackageFinder
	pallets    PalletFinder
	aggregator *aggregate.Engine
	logger     ectologger.Logger
}

func New(components ComponentFinder, packages PackageFinder, pallets PalletFinder, aggregator *aggregate.Engine, logger ectologger.Logger) *Resolver {
	return &Resolver{
		components: components,
		packages:   packages,
		pallets:    pallets,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Resolve looks up a code across all three levels. The code is normalized
// first, so scanner defects like a dropped trailing letter are repaired
// before any query runs. A code no level recognizes yields a 404.
func (r *Resolver) Resolve(ctx context.Context, rawCode string) (*models.ResolvedEntity, error) {
	code := codes.Normalize(rawCode)
	if code == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	comp, err := codes.FindByCaseVariants(code, func(v string) (*models.Component, error) {
		return r.components.GetByCode(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	if comp != nil {
		return r.resolveComponent(ctx, code, comp)
	}

	pkg, err := codes.FindByCaseVariants(code, func(v string) (*models.Package, error) {
		return r.packages.GetByNumber(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	if pkg != nil {
		return r.resolvePackage(ctx, code, pkg)
	}

	plt, err := codes.FindByCaseVariants(code, func(v string) (*models.Pallet, error) {
		return r.pallets.GetByNumber(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	if plt != nil {
		return r.resolvePallet(ctx, code, plt)
	}

	r.logger.WithContext(ctx).WithField("code", code).Info("Code did not resolve to any entity")
	return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no component, package, or pallet matches code %s", code)
}

// resolveComponent enriches a component hit with its parent package, the
// package's full component union, and the pallet above it, so a scan of one
// part shows everything packed alongside it.
func (r *Resolver) resolveComponent(ctx context.Context, code string, comp *models.Component) (*models.ResolvedEntity, error) {
	result := &models.ResolvedEntity{
		Type:        models.EntityTypeComponent,
		MatchedCode: code,
		Component:   comp,
	}

	pkg, err := r.parentPackage(ctx, comp)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return result, nil
	}

	siblings, total, err := r.aggregator.ComponentsOf(ctx, pkg)
	if err != nil {
		return nil, err
	}
	pkg.CustomerAddress = aggregate.ResolveAddress(pkg.CustomerAddress, aggregate.ComponentAddressRecords(siblings))
	if comp.CustomerAddress == "" {
		comp.CustomerAddress = pkg.CustomerAddress
	}

	plt, err := r.parentPallet(ctx, pkg)
	if err != nil {
		return nil, err
	}

	result.Package = pkg
	result.Pallet = plt
	result.Components = siblings
	result.ComponentTotal = total
	return result, nil
}

var numericRef = regexp.MustCompile(`^\d+$`)

// parentPackage chases a component's package reference. The reference may be
// a document id, a legacy numeric id, or absent with only the business
// number present.
func (r *Resolver) parentPackage(ctx context.Context, comp *models.Component) (*models.Package, error) {
	if comp.PackageID != "" {
		if codes.IsDocumentID(comp.PackageID) {
			pkg, err := r.packages.GetByID(ctx, comp.PackageID)
			if err != nil || pkg != nil {
				return pkg, err
			}
		} else if numericRef.MatchString(comp.PackageID) {
			pkg, err := r.packages.GetByLegacyID(ctx, comp.PackageID)
			if err != nil || pkg != nil {
				return pkg, err
			}
		}
	}

	if comp.PackageNumber == "" {
		return nil, nil
	}
	return codes.FindByCaseVariants(comp.PackageNumber, func(v string) (*models.Package, error) {
		return r.packages.GetByNumber(ctx, v)
	})
}

// parentPallet chases a package's pallet reference the same way parentPackage
// chases a component's: document id, legacy numeric id, then business number.
func (r *Resolver) parentPallet(ctx context.Context, pkg *models.Package) (*models.Pallet, error) {
	if pkg.PalletID != "" {
		if codes.IsDocumentID(pkg.PalletID) {
			plt, err := r.pallets.GetByID(ctx, pkg.PalletID)
			if err != nil || plt != nil {
				return plt, err
			}
		} else if numericRef.MatchString(pkg.PalletID) {
			plt, err := r.pallets.GetByLegacyID(ctx, pkg.PalletID)
			if err != nil || plt != nil {
				return plt, err
			}
		}
	}

	if pkg.PalletNumber == "" {
		return nil, nil
	}
	return codes.FindByCaseVariants(pkg.PalletNumber, func(v string) (*models.Pallet, error) {
		return r.pallets.GetByNumber(ctx, v)
	})
}

func (r *Resolver) resolvePackage(ctx context.Context, code string, pkg *models.Package) (*models.ResolvedEntity, error) {
	comps, total, err := r.aggregator.ComponentsOf(ctx, pkg)
	if err != nil {
		return nil, err
	}
	pkg.CustomerAddress = aggregate.ResolveAddress(pkg.CustomerAddress, aggregate.ComponentAddressRecords(comps))

	plt, err := r.parentPallet(ctx, pkg)
	if err != nil {
		return nil, err
	}

	return &models.ResolvedEntity{
		Type:           models.EntityTypePackage,
		MatchedCode:    code,
		Package:        pkg,
		Pallet:         plt,
		Components:     comps,
		ComponentTotal: total,
	}, nil
}

func (r *Resolver) resolvePallet(ctx context.Context, code string, plt *models.Pallet) (*models.ResolvedEntity, error) {
	pkgs, total, err := r.aggregator.PackagesOf(ctx, plt)
	if err != nil {
		return nil, err
	}

	bare := make([]models.Package, 0, len(pkgs))
	for i := range pkgs {
		bare = append(bare, pkgs[i].Package)
	}
	plt.CustomerAddress = aggregate.ResolveAddress(plt.CustomerAddress, aggregate.PackageAddressRecords(bare))

	return &models.ResolvedEntity{
		Type:         models.EntityTypePallet,
		MatchedCode:  code,
		Pallet:       plt,
		Packages:     pkgs,
		PackageTotal: total,
	}, nil
}
