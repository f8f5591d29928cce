package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/catalog"
	"github.com/storefront-labs/storefront-backend/internal/customers"
	"github.com/storefront-labs/storefront-backend/internal/discount"
	"github.com/storefront-labs/storefront-backend/internal/inventory"
	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	"github.com/storefront-labs/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the order engine operations exposed to transports.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Sale, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Sale, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Sale, error)
	ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
}

type service struct {
	repo      Repository
	catalog   catalog.Repository
	customers customers.Repository
	inventory inventory.Repository
	tx        txRunner
	outbox    outboxPublisher
	metrics   *metrics.OrderMetrics
	cfg       config.OrderConfig
}

// NewService builds the order service with the required dependencies.
func NewService(
	repo Repository,
	catalogRepo catalog.Repository,
	customerRepo customers.Repository,
	inventoryRepo inventory.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	orderMetrics *metrics.OrderMetrics,
	cfg config.OrderConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		catalog:   catalogRepo,
		customers: customerRepo,
		inventory: inventoryRepo,
		tx:        tx,
		outbox:    outboxSvc,
		metrics:   orderMetrics,
		cfg:       cfg,
	}, nil
}

// lineState carries the per-line working data assembled during checkout.
type lineState struct {
	input    LineInput
	product  *models.Product
	variant  *models.InventoryVariant
	discount int64
}

func (l lineState) subtotal() int64 {
	return l.product.Price * int64(l.input.Quantity)
}

// CreateOrder runs the whole checkout in one transaction: lock balance, lock
// variants in canonical order, validate stock, allocate store credit,
// decrement inventory and persist the five-record aggregate. Any failure
// rolls the entire attempt back.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Sale, error) {
	start := time.Now()
	sale, err := s.createOrder(ctx, input)
	if err != nil {
		s.metrics.ObserveCreateDuration("rolled_back", time.Since(start))
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncRejected(string(typed.Code()))
		} else {
			s.metrics.IncRejected("internal")
		}
		return nil, err
	}
	s.metrics.ObserveCreateDuration("committed", time.Since(start))
	s.metrics.IncCreated()
	return sale, nil
}

func (s *service) createOrder(ctx context.Context, input CreateOrderInput) (*models.Sale, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	for i, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required").
				WithDetails(map[string]any{"line": i})
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"line": i, "quantity": line.Quantity})
		}
	}

	var created *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)
		customerRepo := s.customers.WithTx(tx)
		inventoryRepo := s.inventory.WithTx(tx)

		customer, err := customerRepo.LockAndGet(ctx, input.CustomerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock customer balance")
		}

		lines := make([]lineState, len(input.Lines))
		for i, line := range input.Lines {
			product, err := catalogRepo.FindProduct(ctx, line.ProductID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"line": i, "product_id": line.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			lines[i] = lineState{input: line, product: product}
		}

		if err := s.lockAndValidateStock(ctx, inventoryRepo, lines); err != nil {
			return err
		}

		allocations, newBalance := discount.Allocate(customer.Balance, len(lines), s.cfg.DiscountLineCap)
		for i := range lines {
			lines[i].discount = allocations[i].Amount
		}
		discountTotal := discount.Total(allocations)

		// Decrement once per variant so duplicate lines collapse into one write.
		decremented := map[uuid.UUID]int{}
		for _, line := range lines {
			decremented[line.variant.ID] += line.input.Quantity
		}
		for variantID, qty := range decremented {
			if err := inventoryRepo.Decrement(ctx, variantID, qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
			}
		}

		sale, err := repo.CreateSale(ctx, &models.Sale{
			CustomerID: customer.ID,
			Status:     enums.SaleStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
		}

		items := make([]models.SalesItem, len(lines))
		var subtotal int64
		for i, line := range lines {
			items[i] = models.SalesItem{
				SaleID:         sale.ID,
				ProductID:      line.product.ID,
				VariantID:      line.variant.ID,
				SizeID:         line.input.SizeID,
				ColorID:        line.input.ColorID,
				ProductName:    line.product.Name,
				Quantity:       line.input.Quantity,
				PriceAtSale:    line.product.Price,
				DiscountAmount: line.discount,
			}
			subtotal += line.subtotal()
		}
		if err := repo.CreateSalesItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sales items")
		}

		totalAmount := subtotal - discountTotal + s.cfg.ShippingFee
		totals, err := repo.CreateSalesTotals(ctx, &models.SalesTotals{
			SaleID:        sale.ID,
			Subtotal:      subtotal,
			DiscountTotal: discountTotal,
			ShippingFee:   s.cfg.ShippingFee,
			TotalAmount:   totalAmount,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sales totals")
		}

		if err := customerRepo.SetBalance(ctx, customer.ID, newBalance); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balance")
		}

		note := fmt.Sprintf("order created, discount applied: %d", discountTotal)
		if err := repo.AppendHistory(ctx, &models.SalesHistory{
			SaleID: sale.ID,
			Status: enums.SaleStatusPending,
			Notes:  &note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         buildActor(input.Actor),
			Data: OrderCreatedEvent{
				OrderID:       sale.ID,
				CustomerID:    customer.ID,
				Subtotal:      subtotal,
				DiscountTotal: discountTotal,
				TotalAmount:   totalAmount,
				ItemCount:     len(items),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		sale.Items = items
		sale.Totals = totals
		created = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// lockAndValidateStock acquires the variant locks in canonical key order to
// avoid deadlocks between orders touching the same variants in opposite cart
// order, then validates each line in cart order against a running remainder
// so duplicate lines for one variant are checked against shared stock.
func (s *service) lockAndValidateStock(ctx context.Context, inventoryRepo inventory.Repository, lines []lineState) error {
	keys := make(map[string]inventory.VariantKey, len(lines))
	for _, line := range lines {
		key := inventory.VariantKey{
			ProductID: line.input.ProductID,
			SizeID:    line.input.SizeID,
			ColorID:   line.input.ColorID,
		}
		keys[key.String()] = key
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	variants := make(map[string]*models.InventoryVariant, len(ordered))
	remaining := make(map[string]int, len(ordered))
	for _, k := range ordered {
		variant, err := inventoryRepo.LockAndGet(ctx, keys[k])
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return s.outOfStockError(lines, keys[k], 0)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory variant")
		}
		variants[k] = variant
		remaining[k] = variant.Quantity
	}

	for i := range lines {
		key := inventory.VariantKey{
			ProductID: lines[i].input.ProductID,
			SizeID:    lines[i].input.SizeID,
			ColorID:   lines[i].input.ColorID,
		}.String()
		if remaining[key] < lines[i].input.Quantity {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{
					"line":      i,
					"product":   lines[i].product.Name,
					"requested": lines[i].input.Quantity,
					"available": remaining[key],
				})
		}
		remaining[key] -= lines[i].input.Quantity
		lines[i].variant = variants[key]
	}
	return nil
}

func (s *service) outOfStockError(lines []lineState, key inventory.VariantKey, available int) error {
	for i, line := range lines {
		candidate := inventory.VariantKey{
			ProductID: line.input.ProductID,
			SizeID:    line.input.SizeID,
			ColorID:   line.input.ColorID,
		}
		if candidate.String() == key.String() {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{
					"line":      i,
					"product":   line.product.Name,
					"requested": line.input.Quantity,
					"available": available,
				})
		}
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")
}

// UpdateStatus applies an admin transition. Requesting the current status is
// an idempotent no-op: nothing is written, the sale is returned as-is.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Sale, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", input.Status))
	}
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var result *models.Sale
	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inventoryRepo := s.inventory.WithTx(tx)

		sale, err := repo.LockAndGetSale(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock sale")
		}

		if sale.Status == input.Status {
			result = sale
			return nil
		}
		fromStatus := sale.Status

		if err := repo.UpdateSaleStatus(ctx, sale.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sale status")
		}

		notes := input.Notes
		if notes == nil {
			defaultNote := fmt.Sprintf("status changed from %s to %s", fromStatus, input.Status)
			notes = &defaultNote
		}
		if err := repo.AppendHistory(ctx, &models.SalesHistory{
			SaleID: sale.ID,
			Status: input.Status,
			Notes:  notes,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
		}

		// Stock was committed once the order left pending; cancelling after
		// that point hands it back.
		restored := false
		if input.Status == enums.SaleStatusCancelled && fromStatus.RestoresStockOnCancel() {
			items, err := repo.FindItemsBySale(ctx, sale.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale items")
			}
			for _, item := range items {
				if err := inventoryRepo.Increment(ctx, item.VariantID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore inventory")
				}
			}
			restored = true
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         buildActor(input.Actor),
			Data: OrderStatusChangedEvent{
				OrderID:       sale.ID,
				CustomerID:    sale.CustomerID,
				FromStatus:    fromStatus,
				ToStatus:      input.Status,
				StockRestored: restored,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status changed")
		}

		sale.Status = input.Status
		result = sale
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.IncTransition(string(result.Status))
	}
	return result, nil
}

// GetOrder returns the full aggregate. Customers may only read their own
// orders; admins may read any.
func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Sale, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	sale, err := s.repo.FindSaleDetail(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.IsAdmin() && sale.CustomerID != actor.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return sale, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *filters.Status))
	}
	list, err := s.repo.ListSales(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.CustomerID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		CustomerID: actor.CustomerID,
		Role:       string(actor.Role),
	}
}
