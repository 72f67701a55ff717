package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/models"
)

// ComponentStore is the slice of the component repository the engine needs.
type ComponentStore interface {
	ListByPackageRef(ctx context.Context, ref codes.JoinRef) ([]models.Component, error)
	CountByPackageRef(ctx context.Context, ref codes.JoinRef) (int, error)
}

// PackageStore is the slice of the package repository the engine needs.
type PackageStore interface {
	ListByPalletRef(ctx context.Context, ref codes.JoinRef) ([]models.Package, error)
	CountByPalletRef(ctx context.Context, ref codes.JoinRef) (int, error)
}

// Engine gathers children across the three legacy join strategies and
// reconciles the duplicated, partially inconsistent results into one view.
type Engine struct {
	components ComponentStore
	packages   PackageStore
	logger     ectologger.Logger
}

func New(components ComponentStore, packages PackageStore, logger ectologger.Logger) *Engine {
	return &Engine{
		components: components,
		packages:   packages,
		logger:     logger,
	}
}

// packageRefs builds the join candidates for a package's children. The
// document id strategy is skipped when the stored id does not look like a
// real document id, which happens on rows imported before ids were assigned.
func packageRefs(pkg *models.Package) []codes.JoinRef {
	refs := []codes.JoinRef{}
	if codes.IsDocumentID(pkg.ID) {
		refs = append(refs, codes.JoinRef{Strategy: codes.ByDocumentID, Value: pkg.ID})
	}
	refs = append(refs, codes.JoinRef{Strategy: codes.ByBusinessNumber, Value: pkg.PackageNumber})
	if pkg.LegacyID != nil && *pkg.LegacyID != "" {
		refs = append(refs, codes.JoinRef{Strategy: codes.ByLegacyNumericID, Value: *pkg.LegacyID})
	}
	return refs
}

func palletRefs(plt *models.Pallet) []codes.JoinRef {
	refs := []codes.JoinRef{}
	if codes.IsDocumentID(plt.ID) {
		refs = append(refs, codes.JoinRef{Strategy: codes.ByDocumentID, Value: plt.ID})
	}
	refs = append(refs, codes.JoinRef{Strategy: codes.ByBusinessNumber, Value: plt.PalletNumber})
	if plt.LegacyID != nil && *plt.LegacyID != "" {
		refs = append(refs, codes.JoinRef{Strategy: codes.ByLegacyNumericID, Value: *plt.LegacyID})
	}
	return refs
}

// ComponentsOf returns the deduplicated, sorted component union of a package
// together with the reconciled total. The total is the maximum count any
// single strategy reports, because strategies overlap on clean data but each
// can see rows the others miss on dirty data.
func (e *Engine) ComponentsOf(ctx context.Context, pkg *models.Package) ([]models.Component, int, error) {
	var union []models.Component
	maxCount := 0

	for _, ref := range packageRefs(pkg) {
		comps, err := e.components.ListByPackageRef(ctx, ref)
		if err != nil {
			return nil, 0, err
		}
		union = append(union, comps...)

		count, err := e.components.CountByPackageRef(ctx, ref)
		if err != nil {
			return nil, 0, err
		}
		if count > maxCount {
			maxCount = count
		}
	}

	deduped := dedupComponents(union)
	sortComponents(deduped)

	if len(deduped) > maxCount {
		maxCount = len(deduped)
	}
	return deduped, maxCount, nil
}

// PackagesOf returns the deduplicated package union of a pallet, each
// package enriched with its own component union, plus the reconciled
// package total.
func (e *Engine) PackagesOf(ctx context.Context, plt *models.Pallet) ([]models.PackageWithComponents, int, error) {
	var union []models.Package
	maxCount := 0

	for _, ref := range palletRefs(plt) {
		pkgs, err := e.packages.ListByPalletRef(ctx, ref)
		if err != nil {
			return nil, 0, err
		}
		union = append(union, pkgs...)

		count, err := e.packages.CountByPalletRef(ctx, ref)
		if err != nil {
			return nil, 0, err
		}
		if count > maxCount {
			maxCount = count
		}
	}

	deduped := dedupPackages(union)
	sortPackages(deduped)

	if len(deduped) > maxCount {
		maxCount = len(deduped)
	}

	// Sibling component unions have no ordering dependency, so they are
	// fetched concurrently. Each goroutine writes only its own slot.
	enriched := make([]models.PackageWithComponents, len(deduped))
	errs := make([]error, len(deduped))
	var wg sync.WaitGroup
	for i := range deduped {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			comps, total, err := e.ComponentsOf(ctx, &deduped[i])
			if err != nil {
				errs[i] = err
				return
			}
			enriched[i] = models.PackageWithComponents{
				Package:        deduped[i],
				Components:     comps,
				ComponentTotal: total,
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, 0, err
		}
	}
	return enriched, maxCount, nil
}

// componentDedupKey identifies a physical component across strategy results.
// The code is the primary identity; codeless rows fall back to the document
// id and finally to a composite of the descriptive fields.
func componentDedupKey(c *models.Component) string {
	if code := codes.CanonicalComponentCode(c.ComponentCode); code != "" {
		return "code:" + code
	}
	if c.ID != "" {
		return "id:" + c.ID
	}
	return fmt.Sprintf("composite:%s|%s|%s", c.OrderNumber, c.ComponentName, c.FinishedSize)
}

func dedupComponents(comps []models.Component) []models.Component {
	seen := make(map[string]struct{}, len(comps))
	out := make([]models.Component, 0, len(comps))
	for i := range comps {
		key := componentDedupKey(&comps[i])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, comps[i])
	}
	return out
}

// sortComponents orders by code case-insensitively, with codeless rows last.
func sortComponents(comps []models.Component) {
	sort.SliceStable(comps, func(i, j int) bool {
		a := strings.ToUpper(strings.TrimSpace(comps[i].ComponentCode))
		b := strings.ToUpper(strings.TrimSpace(comps[j].ComponentCode))
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})
}

func packageDedupKey(p *models.Package) string {
	if number := strings.ToUpper(strings.TrimSpace(p.PackageNumber)); number != "" {
		return "number:" + number
	}
	if p.ID != "" {
		return "id:" + p.ID
	}
	index := ""
	if p.PackageIndex != nil {
		index = fmt.Sprintf("%d", *p.PackageIndex)
	}
	return fmt.Sprintf("composite:%s|%s", p.OrderNumber, index)
}

func dedupPackages(pkgs []models.Package) []models.Package {
	seen := make(map[string]struct{}, len(pkgs))
	out := make([]models.Package, 0, len(pkgs))
	for i := range pkgs {
		key := packageDedupKey(&pkgs[i])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, pkgs[i])
	}
	return out
}

func sortPackages(pkgs []models.Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		a := strings.ToUpper(strings.TrimSpace(pkgs[i].PackageNumber))
		b := strings.ToUpper(strings.TrimSpace(pkgs[j].PackageNumber))
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})
}
