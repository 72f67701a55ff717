package models

import (
	"encoding/json"
	"time"
)

// Pallet groups packages, identified by its pallet_number business key.
type Pallet struct {
	ID              string          `json:"id" db:"id"`
	PalletNumber    string          `json:"pallet_number" db:"pallet_number"`
	PalletType      string          `json:"pallet_type" db:"pallet_type"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	PackageCount    *int            `json:"package_count,omitempty" db:"package_count"`
	Status          string          `json:"status" db:"status"`
	Notes           string          `json:"notes" db:"notes"`
	ChangeReason    string          `json:"change_reason" db:"change_reason"`
	CustomerAddress string          `json:"customer_address" db:"customer_address"`
	PalletIndex     *int            `json:"pallet_index,omitempty" db:"pallet_index"`
	LegacyID        *string         `json:"legacy_id,omitempty" db:"legacy_id"`
	Raw             json.RawMessage `json:"-" db:"raw"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// PalletTypeDefault is applied when a synced pallet does not declare a type.
const PalletTypeDefault = "physical"
