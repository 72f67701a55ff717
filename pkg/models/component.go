package models

import (
	"encoding/json"
	"time"
)

// Component is the finest-grained tracked item (a manufactured board/part).
// Parent references are plain text, not foreign keys: legacy datasets carry
// stale document ids or numeric local-database ids in package_id, so
// referential integrity is maintained by the resolution engine instead.
type Component struct {
	ID              string          `json:"id" db:"id"`
	ComponentCode   string          `json:"component_code" db:"component_code"`
	ComponentName   string          `json:"component_name" db:"component_name"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	Material        string          `json:"material" db:"material"`
	FinishedSize    string          `json:"finished_size" db:"finished_size"`
	RoomNumber      string          `json:"room_number" db:"room_number"`
	CabinetNumber   string          `json:"cabinet_number" db:"cabinet_number"`
	CustomerAddress string          `json:"customer_address" db:"customer_address"`
	Status          string          `json:"status" db:"status"`
	PackageID       string          `json:"package_id" db:"package_id"`
	PackageNumber   string          `json:"package_number" db:"package_number"`
	LegacyID        *string         `json:"legacy_id,omitempty" db:"legacy_id"`
	Raw             json.RawMessage `json:"-" db:"raw"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// StatusPending is the safe default a component falls back to when it is
// created without a status or unlinked from a deleted package.
const StatusPending = "pending"
