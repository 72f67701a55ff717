package models

import "encoding/json"

// SyncRequest carries a batch of upstream records. Items are kept raw so the
// original payload can be stored alongside the typed columns; unknown fields
// from older exporters survive round trips that way.
type SyncRequest struct {
	Items []json.RawMessage `json:"items"`
}

// SyncResult reports the outcome of a single sync batch.
type SyncResult struct {
	OK       bool     `json:"ok"`
	Received int      `json:"received"`
	Inserted int      `json:"added"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ComponentItem is the typed view of a synced component record.
type ComponentItem struct {
	ComponentCode   string `json:"component_code"`
	ComponentName   string `json:"component_name"`
	OrderNumber     string `json:"order_number"`
	Material        string `json:"material"`
	FinishedSize    string `json:"finished_size"`
	RoomNumber      string `json:"room_number"`
	CabinetNumber   string `json:"cabinet_number"`
	CustomerAddress string `json:"customer_address"`
	Status          string `json:"status"`
	PackageID       string `json:"package_id"`
	PackageNumber   string `json:"package_number"`
	LegacyID        string `json:"legacy_id"`
}

// PackageItem is the typed view of a synced package record.
type PackageItem struct {
	PackageNumber   string `json:"package_number"`
	OrderNumber     string `json:"order_number"`
	PalletID        string `json:"pallet_id"`
	PalletNumber    string `json:"pallet_number"`
	ComponentCount  *int   `json:"component_count"`
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	ChangeReason    string `json:"change_reason"`
	CustomerAddress string `json:"customer_address"`
	PackageIndex    *int   `json:"package_index"`
	LegacyID        string `json:"legacy_id"`
}

// PalletItem is the typed view of a synced pallet record.
type PalletItem struct {
	PalletNumber    string `json:"pallet_number"`
	PalletType      string `json:"pallet_type"`
	OrderNumber     string `json:"order_number"`
	PackageCount    *int   `json:"package_count"`
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	ChangeReason    string `json:"change_reason"`
	CustomerAddress string `json:"customer_address"`
	PalletIndex     *int   `json:"pallet_index"`
	LegacyID        string `json:"legacy_id"`
}

// DeleteResult reports the outcome of a cascade delete.
type DeleteResult struct {
	OK                 bool     `json:"ok"`
	DeletedComponents  int      `json:"deleted_components,omitempty"`
	DeletedPackages    int      `json:"deleted_packages"`
	DeletedPallets     int      `json:"deleted_pallets"`
	UnlinkedComponents int      `json:"unlinked_components"`
	UnlinkedPackages   int      `json:"unlinked_packages"`
	Errors             []string `json:"errors,omitempty"`
}

// ClearResult reports per-collection row counts removed by a full clear.
type ClearResult struct {
	OK                bool `json:"ok"`
	ComponentsDeleted int  `json:"components_deleted"`
	PackagesDeleted   int  `json:"packages_deleted"`
	PalletsDeleted    int  `json:"pallets_deleted"`
}

// RepairResult reports the outcome of a legacy data migration / repair run.
type RepairResult struct {
	OK                 bool     `json:"ok"`
	DryRun             bool     `json:"dry_run"`
	PalletsMigrated    int      `json:"pallets_migrated"`
	PackagesMigrated   int      `json:"packages_migrated"`
	ComponentsMigrated int      `json:"components_migrated"`
	ParentsRebound     int      `json:"parents_rebound"`
	FieldsBackfilled   int      `json:"fields_backfilled"`
	CountsBackfilled   int      `json:"counts_backfilled"`
	AddressesRepaired  int      `json:"addresses_repaired"`
	Errors             []string `json:"errors,omitempty"`
}

// Stats summarizes collection sizes and status distribution.
type Stats struct {
	Components        int            `json:"components"`
	Packages          int            `json:"packages"`
	Pallets           int            `json:"pallets"`
	ComponentStatuses map[string]int `json:"component_statuses"`
	PackageStatuses   map[string]int `json:"package_statuses"`
	PalletStatuses    map[string]int `json:"pallet_statuses"`
}
