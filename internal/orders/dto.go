package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
)

// Actor identifies who is invoking an operation, as resolved from the
// access token by the transport layer.
type Actor struct {
	CustomerID uuid.UUID
	Role       enums.Role
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// LineInput is one requested cart line.
type LineInput struct {
	ProductID uuid.UUID
	SizeID    *uuid.UUID
	ColorID   *uuid.UUID
	Quantity  int
}

// CreateOrderInput carries everything the coordinator needs for one checkout.
type CreateOrderInput struct {
	CustomerID uuid.UUID
	Lines      []LineInput
	Actor      Actor
}

// UpdateStatusInput carries an admin status transition request.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.SaleStatus
	Notes   *string
	Actor   Actor
}

// ListFilters describe the inputs supported by the admin order list.
type ListFilters struct {
	Status     *enums.SaleStatus
	CustomerID *uuid.UUID
}

// OrderSummary exposes the aggregated fields returned in the admin list.
type OrderSummary struct {
	ID          uuid.UUID        `json:"id"`
	CustomerID  uuid.UUID        `json:"customer_id"`
	Status      enums.SaleStatus `json:"status"`
	TotalAmount int64            `json:"total_amount"`
	ItemCount   int              `json:"item_count"`
	CreatedAt   time.Time        `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderCreatedEvent is emitted when a checkout commits.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Subtotal      int64     `json:"subtotal"`
	DiscountTotal int64     `json:"discount_total"`
	TotalAmount   int64     `json:"total_amount"`
	ItemCount     int       `json:"item_count"`
}

// OrderStatusChangedEvent is emitted when a transition commits.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID        `json:"order_id"`
	CustomerID    uuid.UUID        `json:"customer_id"`
	FromStatus    enums.SaleStatus `json:"from_status"`
	ToStatus      enums.SaleStatus `json:"to_status"`
	StockRestored bool             `json:"stock_restored"`
}
