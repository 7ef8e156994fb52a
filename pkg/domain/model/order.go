package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	Buyer     *Buyer
	Items     []OrderItem
	CreatedAt time.Time
}

// Personalization is only ever attached to items of personalizable products.
type Personalization struct {
	Name   *string
	Number *int
}

type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	Product         *Product
	Size            string
	Personalization *Personalization
	Quantity        int
	UnitPrice       decimal.Decimal
}

func (i OrderItem) IsPersonalized() bool {
	return i.Personalization != nil
}

type OrderRepository interface {
	NextID() (uuid.UUID, error)
	// Create stores the order row together with all of its items.
	Create(ctx context.Context, order *Order) error
}

type RepositoryProvider interface {
	BuyerRepository() BuyerRepository
	OrderRepository() OrderRepository
	NotificationRepository() NotificationRepository
}

// UnitOfWork runs fn inside one transaction. Repositories handed to fn are bound to it;
// any error returned by fn rolls everything back.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(provider RepositoryProvider) error) error
}
