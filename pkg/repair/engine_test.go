package repair

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareflow/packtrack/pkg/models"
)

type fakeComponentStore struct {
	byCode  map[string]*models.Component
	pages   [][]models.Component
	inserts []*models.Component
	updates map[string]map[string]any
}

func newFakeComponentStore() *fakeComponentStore {
	return &fakeComponentStore{
		byCode:  map[string]*models.Component{},
		updates: map[string]map[string]any{},
	}
}

func (f *fakeComponentStore) GetByCode(_ context.Context, code string) (*models.Component, error) {
	return f.byCode[code], nil
}

func (f *fakeComponentStore) Insert(_ context.Context, comp *models.Component) error {
	comp.ID = uuid.New().String()
	f.inserts = append(f.inserts, comp)
	return nil
}

func (f *fakeComponentStore) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	f.updates[id] = fields
	return nil
}

func (f *fakeComponentStore) ListPage(_ context.Context, _, _ int) ([]models.Component, error) {
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

type fakePackageStore struct {
	byNumber   map[string]*models.Package
	byLegacyID map[string]*models.Package
	pages      [][]models.Package
	inserts    []*models.Package
	updates    map[string]map[string]any
}

func newFakePackageStore() *fakePackageStore {
	return &fakePackageStore{
		byNumber:   map[string]*models.Package{},
		byLegacyID: map[string]*models.Package{},
		updates:    map[string]map[string]any{},
	}
}

func (f *fakePackageStore) GetByNumber(_ context.Context, number string) (*models.Package, error) {
	return f.byNumber[number], nil
}

func (f *fakePackageStore) GetByLegacyID(_ context.Context, legacyID string) (*models.Package, error) {
	return f.byLegacyID[legacyID], nil
}

func (f *fakePackageStore) Insert(_ context.Context, pkg *models.Package) error {
	pkg.ID = uuid.New().String()
	f.inserts = append(f.inserts, pkg)
	return nil
}

func (f *fakePackageStore) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	f.updates[id] = fields
	return nil
}

func (f *fakePackageStore) ListPage(_ context.Context, _, _ int) ([]models.Package, error) {
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

type fakePalletStore struct {
	byNumber   map[string]*models.Pallet
	byLegacyID map[string]*models.Pallet
	pages      [][]models.Pallet
	inserts    []*models.Pallet
	updates    map[string]map[string]any
}

func newFakePalletStore() *fakePalletStore {
	return &fakePalletStore{
		byNumber:   map[string]*models.Pallet{},
		byLegacyID: map[string]*models.Pallet{},
		updates:    map[string]map[string]any{},
	}
}

func (f *fakePalletStore) GetByNumber(_ context.Context, number string) (*models.Pallet, error) {
	return f.byNumber[number], nil
}

func (f *fakePalletStore) GetByLegacyID(_ context.Context, legacyID string) (*models.Pallet, error) {
	return f.byLegacyID[legacyID], nil
}

func (f *fakePalletStore) Insert(_ context.Context, plt *models.Pallet) error {
	plt.ID = uuid.New().String()
	f.inserts = append(f.inserts, plt)
	return nil
}

func (f *fakePalletStore) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	f.updates[id] = fields
	return nil
}

func (f *fakePalletStore) ListPage(_ context.Context, _, _ int) ([]models.Pallet, error) {
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

type fakeAggregator struct {
	components     map[string][]models.Component // keyed by package id
	componentTotal map[string]int
	packages       map[string][]models.PackageWithComponents // keyed by pallet id
	packageTotal   map[string]int
}

func (f *fakeAggregator) ComponentsOf(_ context.Context, pkg *models.Package) ([]models.Component, int, error) {
	return f.components[pkg.ID], f.componentTotal[pkg.ID], nil
}

func (f *fakeAggregator) PackagesOf(_ context.Context, plt *models.Pallet) ([]models.PackageWithComponents, int, error) {
	return f.packages[plt.ID], f.packageTotal[plt.ID], nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func intPtr(v int) *int { return &v }

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestMigrateAll(t *testing.T) {
	t.Run("migrates the full hierarchy and rebinds parents", func(t *testing.T) {
		comps := newFakeComponentStore()
		pkgs := newFakePackageStore()
		plts := newFakePalletStore()
		engine := New(comps, pkgs, plts, &fakeAggregator{}, Options{}, noopLogger())

		result, err := engine.MigrateAll(context.Background(), &MigrateRequest{
			Pallets: []json.RawMessage{
				raw(`{"托盘号":"plt-001","托盘类型":"物理","id":10}`),
			},
			Packages: []json.RawMessage{
				raw(`{"包裹号":"pkg-001","订单号":"O-1","pallet_id":10,"id":20}`),
			},
			Components: []json.RawMessage{
				raw(`{"编号":"2025091200431","板件名":"侧板","材质":"颗粒板","package_id":20,"状态":"pending"}`),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.PalletsMigrated)
		assert.Equal(t, 1, result.PackagesMigrated)
		assert.Equal(t, 1, result.ComponentsMigrated)
		assert.Equal(t, 2, result.ParentsRebound)

		require.Len(t, plts.inserts, 1)
		assert.Equal(t, "PLT-001", plts.inserts[0].PalletNumber)
		assert.Equal(t, "物理", plts.inserts[0].PalletType)
		require.NotNil(t, plts.inserts[0].LegacyID)
		assert.Equal(t, "10", *plts.inserts[0].LegacyID)

		require.Len(t, pkgs.inserts, 1)
		assert.Equal(t, "PKG-001", pkgs.inserts[0].PackageNumber)
		assert.Equal(t, plts.inserts[0].ID, pkgs.inserts[0].PalletID)
		assert.Equal(t, "PLT-001", pkgs.inserts[0].PalletNumber)

		require.Len(t, comps.inserts, 1)
		assert.Equal(t, "2025091200431Q", comps.inserts[0].ComponentCode)
		assert.Equal(t, "侧板", comps.inserts[0].ComponentName)
		assert.Equal(t, pkgs.inserts[0].ID, comps.inserts[0].PackageID)
	})

	t.Run("rebinds against the database when the parent predates the run", func(t *testing.T) {
		comps := newFakeComponentStore()
		pkgs := newFakePackageStore()
		pkgs.byLegacyID["20"] = &models.Package{ID: "existing-pkg-id-0123456789", PackageNumber: "PKG-020"}
		engine := New(comps, pkgs, newFakePalletStore(), &fakeAggregator{}, Options{}, noopLogger())

		result, err := engine.MigrateAll(context.Background(), &MigrateRequest{
			Components: []json.RawMessage{
				raw(`{"component_code":"A-1","package_id":"20"}`),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ParentsRebound)
		require.Len(t, comps.inserts, 1)
		assert.Equal(t, "existing-pkg-id-0123456789", comps.inserts[0].PackageID)
	})

	t.Run("dry run writes nothing but counts everything", func(t *testing.T) {
		comps := newFakeComponentStore()
		pkgs := newFakePackageStore()
		plts := newFakePalletStore()
		engine := New(comps, pkgs, plts, &fakeAggregator{}, Options{}, noopLogger())

		result, err := engine.MigrateAll(context.Background(), &MigrateRequest{
			DryRun: true,
			Pallets: []json.RawMessage{
				raw(`{"pallet_number":"PLT-001"}`),
			},
			Components: []json.RawMessage{
				raw(`{"component_code":"A-1"}`),
			},
		})
		require.NoError(t, err)

		assert.True(t, result.DryRun)
		assert.Equal(t, 1, result.PalletsMigrated)
		assert.Equal(t, 1, result.ComponentsMigrated)
		assert.Empty(t, plts.inserts)
		assert.Empty(t, comps.inserts)
	})

	t.Run("rows without business keys are ignored", func(t *testing.T) {
		engine := New(newFakeComponentStore(), newFakePackageStore(), newFakePalletStore(), &fakeAggregator{}, Options{}, noopLogger())

		result, err := engine.MigrateAll(context.Background(), &MigrateRequest{
			Components: []json.RawMessage{raw(`{"component_name":"no code"}`)},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.ComponentsMigrated)
	})

	t.Run("best effort collects row errors", func(t *testing.T) {
		engine := New(newFakeComponentStore(), newFakePackageStore(), newFakePalletStore(), &fakeAggregator{}, Options{}, noopLogger())

		result, err := engine.MigrateAll(context.Background(), &MigrateRequest{
			Components: []json.RawMessage{raw(`broken`), raw(`{"component_code":"A-1"}`)},
		})
		require.NoError(t, err)
		assert.Len(t, result.Errors, 1)
		assert.Equal(t, 1, result.ComponentsMigrated)
	})
}

func TestRepairAll(t *testing.T) {
	t.Run("rebinds numeric component parents", func(t *testing.T) {
		comps := newFakeComponentStore()
		comps.pages = [][]models.Component{{
			{ID: "c1", ComponentCode: "A-1", PackageID: "42"},
			{ID: "c2", ComponentCode: "A-2", PackageID: "8c2f7a1e-90b4-4d6e-a1c2-3f5e7d9b0a12"},
		}}
		pkgs := newFakePackageStore()
		pkgs.byLegacyID["42"] = &models.Package{ID: "new-pkg-id-0123456789abc", PackageNumber: "PKG-042"}
		engine := New(comps, pkgs, newFakePalletStore(), &fakeAggregator{}, Options{BatchSize: 10}, noopLogger())

		result, err := engine.RepairAll(context.Background(), false)
		require.NoError(t, err)

		assert.Equal(t, 1, result.ParentsRebound)
		require.Contains(t, comps.updates, "c1")
		assert.Equal(t, "new-pkg-id-0123456789abc", comps.updates["c1"]["package_id"])
		assert.Equal(t, "PKG-042", comps.updates["c1"]["package_number"])
		assert.NotContains(t, comps.updates, "c2")
	})

	t.Run("backfills empty columns from the stored raw row", func(t *testing.T) {
		comps := newFakeComponentStore()
		comps.pages = [][]models.Component{{
			{ID: "c1", ComponentCode: "A-1", Raw: raw(`{"板件名":"左侧板","material":"颗粒板"}`)},
			{ID: "c2", ComponentCode: "A-2", ComponentName: "right panel", Raw: raw(`{"component_name":"stale name"}`)},
		}}
		engine := New(comps, newFakePackageStore(), newFakePalletStore(), &fakeAggregator{}, Options{BatchSize: 10}, noopLogger())

		result, err := engine.RepairAll(context.Background(), false)
		require.NoError(t, err)

		assert.Equal(t, 1, result.FieldsBackfilled)
		require.Contains(t, comps.updates, "c1")
		assert.Equal(t, "左侧板", comps.updates["c1"]["component_name"])
		assert.Equal(t, "颗粒板", comps.updates["c1"]["material"])
		assert.NotContains(t, comps.updates, "c2")
	})

	t.Run("recovers a numeric parent reference hiding in the raw row", func(t *testing.T) {
		comps := newFakeComponentStore()
		comps.pages = [][]models.Component{{
			{ID: "c1", ComponentCode: "A-1", Raw: raw(`{"package_id":42}`)},
		}}
		pkgs := newFakePackageStore()
		pkgs.byLegacyID["42"] = &models.Package{ID: "new-pkg-id-0123456789abc", PackageNumber: "PKG-042"}
		engine := New(comps, pkgs, newFakePalletStore(), &fakeAggregator{}, Options{BatchSize: 10}, noopLogger())

		result, err := engine.RepairAll(context.Background(), false)
		require.NoError(t, err)

		assert.Equal(t, 1, result.ParentsRebound)
		require.Contains(t, comps.updates, "c1")
		assert.Equal(t, "new-pkg-id-0123456789abc", comps.updates["c1"]["package_id"])
		assert.Equal(t, "PKG-042", comps.updates["c1"]["package_number"])
	})

	t.Run("backfills drifted counts and placeholder addresses", func(t *testing.T) {
		pkgs := newFakePackageStore()
		pkgs.pages = [][]models.Package{{
			{ID: "p1", PackageNumber: "PKG-001", ComponentCount: intPtr(1), CustomerAddress: "未知"},
			{ID: "p2", PackageNumber: "PKG-002", ComponentCount: intPtr(2), CustomerAddress: "12 Harbor Rd"},
		}}
		agg := &fakeAggregator{
			components: map[string][]models.Component{
				"p1": {{CustomerAddress: "9 Mill Ln"}, {CustomerAddress: "9 Mill Ln"}, {}},
				"p2": {{}, {}},
			},
			componentTotal: map[string]int{"p1": 3, "p2": 2},
		}
		engine := New(newFakeComponentStore(), pkgs, newFakePalletStore(), agg, Options{BatchSize: 10}, noopLogger())

		result, err := engine.RepairAll(context.Background(), false)
		require.NoError(t, err)

		assert.Equal(t, 1, result.CountsBackfilled)
		assert.Equal(t, 1, result.AddressesRepaired)
		require.Contains(t, pkgs.updates, "p1")
		assert.Equal(t, 3, pkgs.updates["p1"]["component_count"])
		assert.Equal(t, "9 Mill Ln", pkgs.updates["p1"]["customer_address"])
		assert.NotContains(t, pkgs.updates, "p2")
	})

	t.Run("repairs pallets from their package union", func(t *testing.T) {
		plts := newFakePalletStore()
		plts.pages = [][]models.Pallet{{
			{ID: "t1", PalletNumber: "PLT-001"},
		}}
		agg := &fakeAggregator{
			packages: map[string][]models.PackageWithComponents{
				"t1": {
					{Package: models.Package{ID: "p1", CustomerAddress: "12 Harbor Rd"}},
					{Package: models.Package{ID: "p2", CustomerAddress: "12 Harbor Rd"}},
				},
			},
			packageTotal: map[string]int{"t1": 2},
		}
		engine := New(newFakeComponentStore(), newFakePackageStore(), plts, agg, Options{BatchSize: 10}, noopLogger())

		result, err := engine.RepairAll(context.Background(), false)
		require.NoError(t, err)

		assert.Equal(t, 1, result.CountsBackfilled)
		assert.Equal(t, 1, result.AddressesRepaired)
		require.Contains(t, plts.updates, "t1")
		assert.Equal(t, 2, plts.updates["t1"]["package_count"])
		assert.Equal(t, "12 Harbor Rd", plts.updates["t1"]["customer_address"])
	})

	t.Run("dry run reports without writing", func(t *testing.T) {
		pkgs := newFakePackageStore()
		pkgs.pages = [][]models.Package{{
			{ID: "p1", PackageNumber: "PKG-001"},
		}}
		agg := &fakeAggregator{componentTotal: map[string]int{"p1": 4}}
		engine := New(newFakeComponentStore(), pkgs, newFakePalletStore(), agg, Options{BatchSize: 10}, noopLogger())

		result, err := engine.RepairAll(context.Background(), true)
		require.NoError(t, err)

		assert.Equal(t, 1, result.CountsBackfilled)
		assert.Empty(t, pkgs.updates)
	})
}
