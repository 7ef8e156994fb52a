package mysql

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/domain/model"
)

func NewUnitOfWork(db *sqlx.DB) model.UnitOfWork {
	return &unitOfWork{db: db}
}

type unitOfWork struct {
	db *sqlx.DB
}

func (u *unitOfWork) Execute(ctx context.Context, fn func(provider model.RepositoryProvider) error) (err error) {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&repositoryProvider{tx: tx}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

type repositoryProvider struct {
	tx *sqlx.Tx
}

func (p *repositoryProvider) BuyerRepository() model.BuyerRepository {
	return NewBuyerRepository(p.tx)
}

func (p *repositoryProvider) OrderRepository() model.OrderRepository {
	return NewOrderRepository(p.tx)
}

func (p *repositoryProvider) NotificationRepository() model.NotificationRepository {
	return NewNotificationRepository(p.tx)
}
