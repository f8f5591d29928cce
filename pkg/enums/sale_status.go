package enums

import "fmt"

// SaleStatus tracks the lifecycle of a sale.
type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "pending"
	SaleStatusProcessing SaleStatus = "processing"
	SaleStatusShipped    SaleStatus = "shipped"
	SaleStatusDelivered  SaleStatus = "delivered"
	SaleStatusCompleted  SaleStatus = "completed"
	SaleStatusCancelled  SaleStatus = "cancelled"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPending,
	SaleStatusProcessing,
	SaleStatusShipped,
	SaleStatusDelivered,
	SaleStatusCompleted,
	SaleStatusCancelled,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// RestoresStockOnCancel reports whether cancelling from this status must
// return the order's quantities to inventory. Stock committed by a pending
// order is not compensated, matching the source system's behavior.
func (s SaleStatus) RestoresStockOnCancel() bool {
	switch s {
	case SaleStatusProcessing, SaleStatusShipped, SaleStatusDelivered, SaleStatusCompleted:
		return true
	default:
		return false
	}
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
