package aggregate

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wareflow/packtrack/pkg/models"
)

// addressFields is the candidate order inside one record. Different exporter
// generations wrote the customer address under different keys.
var addressFields = []string{"customer_address", "address", "delivery_address", "shipping_address"}

var unknownAddress = regexp.MustCompile(`(?i)^(未知|地址未知|unknown)$`)

// validAddress rejects empty values and the placeholder strings legacy
// exporters wrote when the address was missing.
func validAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	return !unknownAddress.MatchString(addr)
}

// ReconcileAddress picks the customer address by frequency vote. Each record
// contributes its first valid candidate field; the most frequent address
// wins and ties go to the address seen first.
func ReconcileAddress(records []map[string]any) string {
	counts := map[string]int{}
	var order []string

	for _, record := range records {
		for _, field := range addressFields {
			value, ok := record[field].(string)
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			if !validAddress(value) {
				continue
			}
			if _, seen := counts[value]; !seen {
				order = append(order, value)
			}
			counts[value]++
			break
		}
	}

	best := ""
	bestCount := 0
	for _, addr := range order {
		if counts[addr] > bestCount {
			best = addr
			bestCount = counts[addr]
		}
	}
	return best
}

// ComponentAddressRecords builds voting records from components: the raw
// payload keys overlaid with the typed customer address column.
func ComponentAddressRecords(comps []models.Component) []map[string]any {
	records := make([]map[string]any, 0, len(comps))
	for i := range comps {
		record := map[string]any{}
		if len(comps[i].Raw) > 0 {
			_ = json.Unmarshal(comps[i].Raw, &record)
		}
		if comps[i].CustomerAddress != "" {
			record["customer_address"] = comps[i].CustomerAddress
		}
		records = append(records, record)
	}
	return records
}

// PackageAddressRecords builds voting records from packages, used to fill a
// pallet's address from its children.
func PackageAddressRecords(pkgs []models.Package) []map[string]any {
	records := make([]map[string]any, 0, len(pkgs))
	for i := range pkgs {
		record := map[string]any{}
		if len(pkgs[i].Raw) > 0 {
			_ = json.Unmarshal(pkgs[i].Raw, &record)
		}
		if pkgs[i].CustomerAddress != "" {
			record["customer_address"] = pkgs[i].CustomerAddress
		}
		records = append(records, record)
	}
	return records
}

// ResolveAddress returns the entity's own address when it is usable and
// otherwise falls back to a vote over its children.
func ResolveAddress(own string, children []map[string]any) string {
	if validAddress(own) {
		return strings.TrimSpace(own)
	}
	return ReconcileAddress(children)
}
