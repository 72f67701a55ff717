package models

import (
	"encoding/json"
	"time"
)

// Package groups components, identified by its package_number business key.
// ComponentCount is a cached value that may lag behind reality; when nil the
// aggregation engine derives it from the component union.
type Package struct {
	ID              string          `json:"id" db:"id"`
	PackageNumber   string          `json:"package_number" db:"package_number"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	PalletID        string          `json:"pallet_id" db:"pallet_id"`
	PalletNumber    string          `json:"pallet_number" db:"pallet_number"`
	ComponentCount  *int            `json:"component_count,omitempty" db:"component_count"`
	Status          string          `json:"status" db:"status"`
	Notes           string          `json:"notes" db:"notes"`
	ChangeReason    string          `json:"change_reason" db:"change_reason"`
	CustomerAddress string          `json:"customer_address" db:"customer_address"`
	PackageIndex    *int            `json:"package_index,omitempty" db:"package_index"`
	LegacyID        *string         `json:"legacy_id,omitempty" db:"legacy_id"`
	Raw             json.RawMessage `json:"-" db:"raw"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// StatusOpen is the default status for newly synced packages and pallets.
const StatusOpen = "open"
