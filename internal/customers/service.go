package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	dbpkg "github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	"github.com/storefront-labs/storefront-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateCustomerInput carries the fields an admin supplies for a new account.
type CreateCustomerInput struct {
	Name     string
	Email    string
	Password string
	Balance  int64
	ActorID  uuid.UUID
}

// CustomerCreatedEvent is emitted when an account is provisioned.
type CustomerCreatedEvent struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Email      string    `json:"email"`
	Balance    int64     `json:"balance"`
}

// Service defines customer account operations.
type Service interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	password config.PasswordConfig
}

// NewService builds a customer service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, password config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		password: password,
	}, nil
}

// CreateCustomer provisions an account with an optional starting store-credit
// balance. Password hashing happens here, at the call site, not in a
// persistence hook.
func (s *service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.Balance < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "balance cannot be negative")
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "hash password")
	}

	customer := &models.Customer{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Balance:      input.Balance,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, customer)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_customers_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
		}
		customer = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCustomerCreated,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   customer.ID,
			Actor:         &outbox.ActorRef{CustomerID: input.ActorID, Role: string(enums.RoleAdmin)},
			Data: CustomerCreatedEvent{
				CustomerID: customer.ID,
				Email:      customer.Email,
				Balance:    customer.Balance,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}
