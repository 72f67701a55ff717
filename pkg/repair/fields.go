package repair

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wareflow/packtrack/pkg/codes"
	"github.com/wareflow/packtrack/pkg/models"
)

// Legacy exports name the same field differently per generation: the oldest
// desktop tool wrote Chinese column headers straight into JSON, later ones
// used snake_case. Each candidate list is in preference order.
var (
	componentCodeKeys = []string{"component_code", "编号", "code"}
	componentNameKeys = []string{"component_name", "板件名", "name"}
	orderNumberKeys   = []string{"order_number", "订单号", "order"}
	materialKeys      = []string{"material", "材质"}
	finishedSizeKeys  = []string{"finished_size", "成品尺寸", "size"}
	roomNumberKeys    = []string{"room_number", "房间号"}
	cabinetNumberKeys = []string{"cabinet_number", "柜号"}
	addressKeys       = []string{"customer_address", "客户地址", "收货地址", "address"}
	statusKeys        = []string{"status", "状态"}
	packageNumberKeys = []string{"package_number", "包裹号"}
	packageRefKeys    = []string{"package_id", "packageId"}
	palletNumberKeys  = []string{"pallet_number", "托盘号"}
	palletRefKeys     = []string{"pallet_id", "palletId"}
	palletTypeKeys    = []string{"pallet_type", "托盘类型"}
	legacyIDKeys      = []string{"id", "_id", "local_id", "legacy_id"}

	componentCountKeys = []string{"component_count", "板件数量", "count"}
	packageCountKeys   = []string{"package_count", "包裹数量", "count"}
	packageIndexKeys   = []string{"package_index", "index"}
	palletIndexKeys    = []string{"pallet_index", "index"}
	notesKeys          = []string{"notes", "备注"}
)

// pickString returns the first usable value among the candidate keys.
// Numeric values are rendered without a decimal point because legacy ids
// arrive as JSON numbers.
func pickString(record map[string]any, keys []string) string {
	for _, key := range keys {
		value, ok := record[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// backfillString adds a column value recovered from the stored raw row, but
// only when the column is currently empty. Repaired values are never
// overwritten with stale export data.
func backfillString(fields map[string]any, record map[string]any, column, current string, keys []string) {
	if current != "" {
		return
	}
	if v := pickString(record, keys); v != "" {
		fields[column] = v
	}
}

// componentBackfillFields recovers standard component columns from the stored
// raw row. Rows without a stored raw yield an empty map.
func componentBackfillFields(comp *models.Component) map[string]any {
	fields := map[string]any{}
	record := map[string]any{}
	if len(comp.Raw) == 0 || json.Unmarshal(comp.Raw, &record) != nil {
		return fields
	}

	backfillString(fields, record, "component_name", comp.ComponentName, componentNameKeys)
	backfillString(fields, record, "order_number", comp.OrderNumber, orderNumberKeys)
	backfillString(fields, record, "material", comp.Material, materialKeys)
	backfillString(fields, record, "finished_size", comp.FinishedSize, finishedSizeKeys)
	backfillString(fields, record, "room_number", comp.RoomNumber, roomNumberKeys)
	backfillString(fields, record, "cabinet_number", comp.CabinetNumber, cabinetNumberKeys)
	backfillString(fields, record, "customer_address", comp.CustomerAddress, addressKeys)
	backfillString(fields, record, "status", comp.Status, statusKeys)
	backfillString(fields, record, "package_id", comp.PackageID, packageRefKeys)
	if comp.PackageNumber == "" {
		if v := pickString(record, packageNumberKeys); v != "" {
			fields["package_number"] = codes.NormalizeKey(v)
		}
	}
	if comp.LegacyID == nil || *comp.LegacyID == "" {
		backfillString(fields, record, "legacy_id", "", legacyIDKeys)
	}
	return fields
}

// packageBackfillFields recovers standard package columns from the stored
// raw row.
func packageBackfillFields(pkg *models.Package) map[string]any {
	fields := map[string]any{}
	record := map[string]any{}
	if len(pkg.Raw) == 0 || json.Unmarshal(pkg.Raw, &record) != nil {
		return fields
	}

	backfillString(fields, record, "order_number", pkg.OrderNumber, orderNumberKeys)
	backfillString(fields, record, "status", pkg.Status, statusKeys)
	backfillString(fields, record, "notes", pkg.Notes, notesKeys)
	backfillString(fields, record, "customer_address", pkg.CustomerAddress, addressKeys)
	backfillString(fields, record, "pallet_id", pkg.PalletID, palletRefKeys)
	if pkg.PalletNumber == "" {
		if v := pickString(record, palletNumberKeys); v != "" {
			fields["pallet_number"] = codes.NormalizeKey(v)
		}
	}
	if pkg.LegacyID == nil || *pkg.LegacyID == "" {
		backfillString(fields, record, "legacy_id", "", legacyIDKeys)
	}
	return fields
}

// palletBackfillFields recovers standard pallet columns from the stored
// raw row.
func palletBackfillFields(plt *models.Pallet) map[string]any {
	fields := map[string]any{}
	record := map[string]any{}
	if len(plt.Raw) == 0 || json.Unmarshal(plt.Raw, &record) != nil {
		return fields
	}

	backfillString(fields, record, "pallet_type", plt.PalletType, palletTypeKeys)
	backfillString(fields, record, "order_number", plt.OrderNumber, orderNumberKeys)
	backfillString(fields, record, "status", plt.Status, statusKeys)
	backfillString(fields, record, "notes", plt.Notes, notesKeys)
	backfillString(fields, record, "customer_address", plt.CustomerAddress, addressKeys)
	if plt.LegacyID == nil || *plt.LegacyID == "" {
		backfillString(fields, record, "legacy_id", "", legacyIDKeys)
	}
	return fields
}

// pickInt returns the first numeric value among the candidate keys, or nil.
func pickInt(record map[string]any, keys []string) *int {
	for _, key := range keys {
		value, ok := record[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			n := int(v)
			return &n
		case int:
			n := v
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return &n
			}
		}
	}
	return nil
}
