package mysql

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/domain/model"
)

const (
	insertOrderQuery     = `INSERT INTO orders (id, buyer_id, created_at) VALUES (?, ?, ?)`
	insertOrderItemQuery = `INSERT INTO order_items
	(id, order_id, product_id, size, personalized_name, personalized_number, quantity, unit_price)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

func NewOrderRepository(db sqlx.ExtContext) model.OrderRepository {
	return &orderRepository{db: db}
}

type orderRepository struct {
	db sqlx.ExtContext
}

func (r *orderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	if len(order.Items) == 0 {
		return errors.Errorf("order %s has no items", order.ID)
	}

	if _, err := r.db.ExecContext(ctx, insertOrderQuery, order.ID, order.BuyerID, order.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	for _, item := range order.Items {
		var (
			name   *string
			number *int
		)
		if item.Personalization != nil {
			name = item.Personalization.Name
			number = item.Personalization.Number
		}

		_, err := r.db.ExecContext(ctx, insertOrderItemQuery,
			item.ID, order.ID, item.ProductID, item.Size, name, number, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert order item")
		}
	}
	return nil
}
