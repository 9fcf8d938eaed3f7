package model

import (
	"strings"

	"github.com/roach88/medibox/internal/store"
)

// Watched path patterns.
const (
	CompartmentPattern   = "User/{name}/Medicine-Box/Compartment-Details/{pushId}/compartmentDetailsMap/{compartmentNumber}"
	MedicineEntryPattern = CompartmentPattern + "/medicineDetails"
	ActiveOrderPattern   = "Medicine-Order/Active/{pushId}"
)

// Fixed nodes.
const (
	PharmacyRoot       = "Pharmacy"
	ActiveOrdersPath   = "Medicine-Order/Active"
	InactiveOrdersPath = "Medicine-Order/Inactive"
)

func join(segs ...string) string {
	return strings.Join(segs, "/")
}

// CatalogPath holds a pharmacy's medicine catalog records.
func CatalogPath(pharmacy string) string {
	return join(PharmacyRoot, pharmacy, "Pharmacy-Medicine-Details")
}

// PharmacyDetailsPath holds a pharmacy's organization detail record.
func PharmacyDetailsPath(pharmacy string) string {
	return join(PharmacyRoot, pharmacy, "Pharmacy-Details")
}

// OrderQueuePath is where an order routed to pharmacy is stored.
func OrderQueuePath(pharmacy, id string) string {
	return join(PharmacyRoot, pharmacy, "Order-Queue", id)
}

// ActiveOrderPath is where a new order waits to be routed.
func ActiveOrderPath(pushID string) string {
	return join(ActiveOrdersPath, pushID)
}

// InactiveOrderPath is where a rejected order ends up.
func InactiveOrderPath(id string) string {
	return join(InactiveOrdersPath, id)
}

// IsKey reports whether s can be used as a single path segment.
func IsKey(s string) bool {
	segs, err := store.SplitPath(s)
	return err == nil && len(segs) == 1 && segs[0] == s
}
