package integration

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareflow/packtrack/pkg/aggregate"
	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/deletion"
	"github.com/wareflow/packtrack/pkg/models"
	"github.com/wareflow/packtrack/pkg/repair"
	"github.com/wareflow/packtrack/pkg/resolver"
	"github.com/wareflow/packtrack/pkg/syncer"
)

// In-memory stores implementing the repository slices every engine consumes,
// so the full sync -> resolve -> repair -> delete flow runs without Postgres.

type memComponents struct {
	rows []*models.Component
}

func (m *memComponents) GetByCode(_ context.Context, code string) (*models.Component, error) {
	for _, c := range m.rows {
		if c.ComponentCode == code {
			return cloneComponent(c), nil
		}
	}
	return nil, nil
}

func (m *memComponents) GetByID(_ context.Context, id string) (*models.Component, error) {
	for _, c := range m.rows {
		if c.ID == id {
			return cloneComponent(c), nil
		}
	}
	return nil, nil
}

func (m *memComponents) GetByLegacyID(_ context.Context, legacyID string) (*models.Component, error) {
	for _, c := range m.rows {
		if c.LegacyID != nil && *c.LegacyID == legacyID {
			return cloneComponent(c), nil
		}
	}
	return nil, nil
}

func (m *memComponents) ListByPackageRef(_ context.Context, ref codes.JoinRef) ([]models.Component, error) {
	var out []models.Component
	for _, c := range m.rows {
		if ref.Strategy == codes.ByBusinessNumber {
			if c.PackageNumber == ref.Value {
				out = append(out, *cloneComponent(c))
			}
		} else if c.PackageID == ref.Value {
			out = append(out, *cloneComponent(c))
		}
	}
	return out, nil
}

func (m *memComponents) CountByPackageRef(ctx context.Context, ref codes.JoinRef) (int, error) {
	comps, _ := m.ListByPackageRef(ctx, ref)
	return len(comps), nil
}

func (m *memComponents) Insert(_ context.Context, comp *models.Component) error {
	comp.ID = uuid.New().String()
	if comp.Status == "" {
		comp.Status = models.StatusPending
	}
	m.rows = append(m.rows, cloneComponent(comp))
	return nil
}

func (m *memComponents) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	for _, c := range m.rows {
		if c.ID != id {
			continue
		}
		for col, val := range fields {
			switch col {
			case "component_code":
				c.ComponentCode = val.(string)
			case "component_name":
				c.ComponentName = val.(string)
			case "order_number":
				c.OrderNumber = val.(string)
			case "material":
				c.Material = val.(string)
			case "finished_size":
				c.FinishedSize = val.(string)
			case "room_number":
				c.RoomNumber = val.(string)
			case "cabinet_number":
				c.CabinetNumber = val.(string)
			case "customer_address":
				c.CustomerAddress = val.(string)
			case "status":
				c.Status = val.(string)
			case "package_id":
				c.PackageID = val.(string)
			case "package_number":
				c.PackageNumber = val.(string)
			case "legacy_id":
				s := val.(string)
				c.LegacyID = &s
			}
		}
	}
	return nil
}

func (m *memComponents) DeleteByID(_ context.Context, id string) error {
	for i, c := range m.rows {
		if c.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memComponents) UnlinkFromPackage(_ context.Context, packageID, packageNumber string) (int64, error) {
	var n int64
	for _, c := range m.rows {
		match := (packageID != "" && c.PackageID == packageID) ||
			(packageNumber != "" && c.PackageNumber == packageNumber)
		if !match {
			continue
		}
		c.PackageID = ""
		c.PackageNumber = ""
		c.Status = models.StatusPending
		n++
	}
	return n, nil
}

func (m *memComponents) ListPage(_ context.Context, offset, limit int) ([]models.Component, error) {
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	var out []models.Component
	for _, c := range m.rows[offset:end] {
		out = append(out, *cloneComponent(c))
	}
	return out, nil
}

func (m *memComponents) DeletePage(_ context.Context, limit int) (int64, error) {
	n := limit
	if n > len(m.rows) {
		n = len(m.rows)
	}
	m.rows = m.rows[n:]
	return int64(n), nil
}

func cloneComponent(c *models.Component) *models.Component {
	cp := *c
	return &cp
}

type memPackages struct {
	rows []*models.Package
}

func (m *memPackages) GetByNumber(_ context.Context, number string) (*models.Package, error) {
	for _, p := range m.rows {
		if p.PackageNumber == number {
			return clonePackage(p), nil
		}
	}
	return nil, nil
}

func (m *memPackages) GetByID(_ context.Context, id string) (*models.Package, error) {
	for _, p := range m.rows {
		if p.ID == id {
			return clonePackage(p), nil
		}
	}
	return nil, nil
}

func (m *memPackages) GetByLegacyID(_ context.Context, legacyID string) (*models.Package, error) {
	for _, p := range m.rows {
		if p.LegacyID != nil && *p.LegacyID == legacyID {
			return clonePackage(p), nil
		}
	}
	return nil, nil
}

func (m *memPackages) ListByPalletRef(_ context.Context, ref codes.JoinRef) ([]models.Package, error) {
	var out []models.Package
	for _, p := range m.rows {
		if ref.Strategy == codes.ByBusinessNumber {
			if p.PalletNumber == ref.Value {
				out = append(out, *clonePackage(p))
			}
		} else if p.PalletID == ref.Value {
			out = append(out, *clonePackage(p))
		}
	}
	return out, nil
}

func (m *memPackages) CountByPalletRef(ctx context.Context, ref codes.JoinRef) (int, error) {
	pkgs, _ := m.ListByPalletRef(ctx, ref)
	return len(pkgs), nil
}

func (m *memPackages) Insert(_ context.Context, pkg *models.Package) error {
	pkg.ID = uuid.New().String()
	if pkg.Status == "" {
		pkg.Status = models.StatusOpen
	}
	m.rows = append(m.rows, clonePackage(pkg))
	return nil
}

func (m *memPackages) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	for _, p := range m.rows {
		if p.ID != id {
			continue
		}
		for col, val := range fields {
			switch col {
			case "package_number":
				p.PackageNumber = val.(string)
			case "order_number":
				p.OrderNumber = val.(string)
			case "pallet_id":
				p.PalletID = val.(string)
			case "pallet_number":
				p.PalletNumber = val.(string)
			case "component_count":
				n := val.(int)
				p.ComponentCount = &n
			case "status":
				p.Status = val.(string)
			case "customer_address":
				p.CustomerAddress = val.(string)
			case "legacy_id":
				s := val.(string)
				p.LegacyID = &s
			}
		}
	}
	return nil
}

func (m *memPackages) UnlinkFromPallet(_ context.Context, palletID, palletNumber string) (int64, error) {
	var n int64
	for _, p := range m.rows {
		match := (palletID != "" && p.PalletID == palletID) ||
			(palletNumber != "" && p.PalletNumber == palletNumber)
		if !match {
			continue
		}
		p.PalletID = ""
		p.PalletNumber = ""
		n++
	}
	return n, nil
}

func (m *memPackages) DeleteByID(_ context.Context, id string) error {
	for i, p := range m.rows {
		if p.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memPackages) ListPage(_ context.Context, offset, limit int) ([]models.Package, error) {
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	var out []models.Package
	for _, p := range m.rows[offset:end] {
		out = append(out, *clonePackage(p))
	}
	return out, nil
}

func (m *memPackages) DeletePage(_ context.Context, limit int) (int64, error) {
	n := limit
	if n > len(m.rows) {
		n = len(m.rows)
	}
	m.rows = m.rows[n:]
	return int64(n), nil
}

func clonePackage(p *models.Package) *models.Package {
	cp := *p
	return &cp
}

type memPallets struct {
	rows []*models.Pallet
}

func (m *memPallets) GetByNumber(_ context.Context, number string) (*models.Pallet, error) {
	for _, p := range m.rows {
		if p.PalletNumber == number {
			return clonePallet(p), nil
		}
	}
	return nil, nil
}

func (m *memPallets) GetByID(_ context.Context, id string) (*models.Pallet, error) {
	for _, p := range m.rows {
		if p.ID == id {
			return clonePallet(p), nil
		}
	}
	return nil, nil
}

func (m *memPallets) GetByLegacyID(_ context.Context, legacyID string) (*models.Pallet, error) {
	for _, p := range m.rows {
		if p.LegacyID != nil && *p.LegacyID == legacyID {
			return clonePallet(p), nil
		}
	}
	return nil, nil
}

func (m *memPallets) Insert(_ context.Context, plt *models.Pallet) error {
	plt.ID = uuid.New().String()
	if plt.Status == "" {
		plt.Status = models.StatusOpen
	}
	if plt.PalletType == "" {
		plt.PalletType = models.PalletTypeDefault
	}
	m.rows = append(m.rows, clonePallet(plt))
	return nil
}

func (m *memPallets) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	for _, p := range m.rows {
		if p.ID != id {
			continue
		}
		for col, val := range fields {
			switch col {
			case "pallet_number":
				p.PalletNumber = val.(string)
			case "pallet_type":
				p.PalletType = val.(string)
			case "package_count":
				n := val.(int)
				p.PackageCount = &n
			case "status":
				p.Status = val.(string)
			case "customer_address":
				p.CustomerAddress = val.(string)
			case "legacy_id":
				s := val.(string)
				p.LegacyID = &s
			}
		}
	}
	return nil
}

func (m *memPallets) DeleteByID(_ context.Context, id string) error {
	for i, p := range m.rows {
		if p.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memPallets) ListPage(_ context.Context, offset, limit int) ([]models.Pallet, error) {
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	var out []models.Pallet
	for _, p := range m.rows[offset:end] {
		out = append(out, *clonePallet(p))
	}
	return out, nil
}

func (m *memPallets) DeletePage(_ context.Context, limit int) (int64, error) {
	n := limit
	if n > len(m.rows) {
		n = len(m.rows)
	}
	m.rows = m.rows[n:]
	return int64(n), nil
}

func clonePallet(p *models.Pallet) *models.Pallet {
	cp := *p
	return &cp
}

type world struct {
	components *memComponents
	packages   *memPackages
	pallets    *memPallets
	resolver   *resolver.Resolver
	syncer     *syncer.Engine
	deleter    *deletion.Engine
	repairer   *repair.Engine
}

func newWorld() *world {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	comps := &memComponents{}
	pkgs := &memPackages{}
	plts := &memPallets{}
	agg := aggregate.New(comps, pkgs, logger)
	return &world{
		components: comps,
		packages:   pkgs,
		pallets:    plts,
		resolver:   resolver.New(comps, pkgs, plts, agg, logger),
		syncer:     syncer.New(comps, pkgs, plts, syncer.Options{}, logger),
		deleter:    deletion.New(comps, pkgs, plts, 1000, logger),
		repairer:   repair.New(comps, pkgs, plts, agg, repair.Options{BatchSize: 100}, logger),
	}
}

func rawItems(payloads ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, json.RawMessage(p))
	}
	return out
}

func TestSyncThenResolveFlow(t *testing.T) {
	ctx := context.Background()
	w := newWorld()

	_, err := w.syncer.SyncPallets(ctx, rawItems(
		`{"pallet_number":"PLT-001","pallet_type":"physical"}`,
	))
	require.NoError(t, err)

	_, err = w.syncer.SyncPackages(ctx, rawItems(
		`{"package_number":"PKG-001","order_number":"O-1","pallet_number":"PLT-001","customer_address":"12 Harbor Rd"}`,
		`{"package_number":"PKG-002","order_number":"O-1","pallet_number":"PLT-001"}`,
	))
	require.NoError(t, err)

	result, err := w.syncer.SyncComponents(ctx, rawItems(
		`{"component_code":"2025091200431","component_name":"side panel","package_number":"PKG-001","customer_address":"12 Harbor Rd"}`,
		`{"component_code":"2025091200432q","component_name":"back panel","package_number":"PKG-001","customer_address":"12 Harbor Rd"}`,
		`{"component_code":"2025091200431","component_name":"duplicate"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Skipped)

	t.Run("component scan shows the whole package", func(t *testing.T) {
		resolved, err := w.resolver.Resolve(ctx, "2025091200431")
		require.NoError(t, err)

		assert.Equal(t, models.EntityTypeComponent, resolved.Type)
		require.NotNil(t, resolved.Package)
		assert.Equal(t, "PKG-001", resolved.Package.PackageNumber)
		require.NotNil(t, resolved.Pallet)
		assert.Equal(t, "PLT-001", resolved.Pallet.PalletNumber)
		assert.Len(t, resolved.Components, 2)
		assert.Equal(t, 2, resolved.ComponentTotal)
	})

	t.Run("pallet scan shows packages with component unions", func(t *testing.T) {
		resolved, err := w.resolver.Resolve(ctx, "plt-001")
		require.NoError(t, err)

		assert.Equal(t, models.EntityTypePallet, resolved.Type)
		assert.Len(t, resolved.Packages, 2)
		assert.Equal(t, 2, resolved.PackageTotal)
		assert.Equal(t, "12 Harbor Rd", resolved.Pallet.CustomerAddress)
	})

	t.Run("resync of identical data writes nothing", func(t *testing.T) {
		result, err := w.syncer.SyncComponents(ctx, rawItems(
			`{"component_code":"2025091200431Q","component_name":"side panel","package_number":"PKG-001","customer_address":"12 Harbor Rd"}`,
		))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("repair backfills package counts", func(t *testing.T) {
		result, err := w.repairer.RepairAll(ctx, false)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.CountsBackfilled, 1)

		pkg, err := w.packages.GetByNumber(ctx, "PKG-001")
		require.NoError(t, err)
		require.NotNil(t, pkg.ComponentCount)
		assert.Equal(t, 2, *pkg.ComponentCount)
	})

	t.Run("deleting the package releases its components", func(t *testing.T) {
		result, err := w.deleter.DeletePackage(ctx, "PKG-001")
		require.NoError(t, err)
		assert.Equal(t, 2, result.UnlinkedComponents)

		resolved, err := w.resolver.Resolve(ctx, "2025091200431Q")
		require.NoError(t, err)
		assert.Nil(t, resolved.Package)
		assert.Equal(t, models.StatusPending, resolved.Component.Status)
	})

	t.Run("clear empties everything", func(t *testing.T) {
		result, err := w.deleter.ClearCollections(ctx, nil)
		require.NoError(t, err)
		assert.True(t, result.OK)

		_, err = w.resolver.Resolve(ctx, "PLT-001")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "no component, package, or pallet"))
	})
}

func TestMigrateLegacyExportFlow(t *testing.T) {
	ctx := context.Background()
	w := newWorld()

	result, err := w.repairer.MigrateAll(ctx, &repair.MigrateRequest{
		Pallets: rawItems(
			`{"托盘号":"plt-100","托盘类型":"physical","id":7}`,
		),
		Packages: rawItems(
			`{"包裹号":"pkg-100","订单号":"O-9","pallet_id":7,"id":70}`,
		),
		Components: rawItems(
			`{"编号":"2025091200881","板件名":"门板","材质":"多层板","package_id":70,"客户地址":"5 Quay St"}`,
		),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.PalletsMigrated)
	assert.Equal(t, 1, result.PackagesMigrated)
	assert.Equal(t, 1, result.ComponentsMigrated)
	assert.Equal(t, 2, result.ParentsRebound)

	resolved, err := w.resolver.Resolve(ctx, "2025091200881")
	require.NoError(t, err)
	assert.Equal(t, models.EntityTypeComponent, resolved.Type)
	require.NotNil(t, resolved.Package)
	assert.Equal(t, "PKG-100", resolved.Package.PackageNumber)

	resolved, err = w.resolver.Resolve(ctx, "PLT-100")
	require.NoError(t, err)
	assert.Equal(t, models.EntityTypePallet, resolved.Type)
	assert.Len(t, resolved.Packages, 1)
}
