package syncer

import (
	"github.com/wareflow/packtrack/pkg/models"
)

// Diffing rules: an empty string or nil pointer from the exporter means the
// field was absent from that row, not a request to clear it, so only present
// values are compared. Counts coerce nil to zero because old exporters sent
// 0 and new ones omit the field for the same meaning. Index fields stay
// null-aware: an explicit 0 is a real position, nil is no position.

func setIfChanged(fields map[string]any, col, incoming, existing string) {
	if incoming != "" && incoming != existing {
		fields[col] = incoming
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func setCountIfChanged(fields map[string]any, col string, incoming, existing *int) {
	if incoming == nil {
		return
	}
	if intOrZero(incoming) != intOrZero(existing) {
		fields[col] = *incoming
	}
}

func setIndexIfChanged(fields map[string]any, col string, incoming, existing *int) {
	if incoming == nil {
		return
	}
	if existing == nil || *existing != *incoming {
		fields[col] = *incoming
	}
}

func existingLegacyID(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// componentChanges returns the columns that differ between a synced item and
// the stored row. The normalized code is passed separately because the item
// carries the exporter's raw casing.
func componentChanges(existing *models.Component, item *models.ComponentItem, code string) map[string]any {
	fields := map[string]any{}
	setIfChanged(fields, "component_code", code, existing.ComponentCode)
	setIfChanged(fields, "component_name", item.ComponentName, existing.ComponentName)
	setIfChanged(fields, "order_number", item.OrderNumber, existing.OrderNumber)
	setIfChanged(fields, "material", item.Material, existing.Material)
	setIfChanged(fields, "finished_size", item.FinishedSize, existing.FinishedSize)
	setIfChanged(fields, "room_number", item.RoomNumber, existing.RoomNumber)
	setIfChanged(fields, "cabinet_number", item.CabinetNumber, existing.CabinetNumber)
	setIfChanged(fields, "customer_address", item.CustomerAddress, existing.CustomerAddress)
	setIfChanged(fields, "status", item.Status, existing.Status)
	setIfChanged(fields, "package_id", item.PackageID, existing.PackageID)
	setIfChanged(fields, "package_number", item.PackageNumber, existing.PackageNumber)
	setIfChanged(fields, "legacy_id", item.LegacyID, existingLegacyID(existing.LegacyID))
	return fields
}

func packageChanges(existing *models.Package, item *models.PackageItem, number string) map[string]any {
	fields := map[string]any{}
	setIfChanged(fields, "package_number", number, existing.PackageNumber)
	setIfChanged(fields, "order_number", item.OrderNumber, existing.OrderNumber)
	setIfChanged(fields, "pallet_id", item.PalletID, existing.PalletID)
	setIfChanged(fields, "pallet_number", item.PalletNumber, existing.PalletNumber)
	setCountIfChanged(fields, "component_count", item.ComponentCount, existing.ComponentCount)
	setIfChanged(fields, "status", item.Status, existing.Status)
	setIfChanged(fields, "notes", item.Notes, existing.Notes)
	setIfChanged(fields, "change_reason", item.ChangeReason, existing.ChangeReason)
	setIfChanged(fields, "customer_address", item.CustomerAddress, existing.CustomerAddress)
	setIndexIfChanged(fields, "package_index", item.PackageIndex, existing.PackageIndex)
	setIfChanged(fields, "legacy_id", item.LegacyID, existingLegacyID(existing.LegacyID))
	return fields
}

func palletChanges(existing *models.Pallet, item *models.PalletItem, number string) map[string]any {
	fields := map[string]any{}
	setIfChanged(fields, "pallet_number", number, existing.PalletNumber)
	setIfChanged(fields, "pallet_type", item.PalletType, existing.PalletType)
	setIfChanged(fields, "order_number", item.OrderNumber, existing.OrderNumber)
	setCountIfChanged(fields, "package_count", item.PackageCount, existing.PackageCount)
	setIfChanged(fields, "status", item.Status, existing.Status)
	setIfChanged(fields, "notes", item.Notes, existing.Notes)
	setIfChanged(fields, "change_reason", item.ChangeReason, existing.ChangeReason)
	setIfChanged(fields, "customer_address", item.CustomerAddress, existing.CustomerAddress)
	setIndexIfChanged(fields, "pallet_index", item.PalletIndex, existing.PalletIndex)
	setIfChanged(fields, "legacy_id", item.LegacyID, existingLegacyID(existing.LegacyID))
	return fields
}
