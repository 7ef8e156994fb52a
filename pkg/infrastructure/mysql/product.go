package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/pkg/domain/model"
)

const productColumns = `id, name, sizes, is_personalizable, base_price, member_discount, athlete_discount, personalization_price`

const storeProductQuery = `INSERT INTO products (` + productColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	name = VALUES(name),
	sizes = VALUES(sizes),
	is_personalizable = VALUES(is_personalizable),
	base_price = VALUES(base_price),
	member_discount = VALUES(member_discount),
	athlete_discount = VALUES(athlete_discount),
	personalization_price = VALUES(personalization_price)`

type productRow struct {
	ID                   uuid.UUID       `db:"id"`
	Name                 string          `db:"name"`
	Sizes                types.JSONText  `db:"sizes"`
	IsPersonalizable     bool            `db:"is_personalizable"`
	BasePrice            decimal.Decimal `db:"base_price"`
	MemberDiscount       decimal.Decimal `db:"member_discount"`
	AthleteDiscount      decimal.Decimal `db:"athlete_discount"`
	PersonalizationPrice decimal.Decimal `db:"personalization_price"`
}

func NewProductRepository(db sqlx.ExtContext) model.ProductRepository {
	return &productRepository{db: db}
}

type productRepository struct {
	db sqlx.ExtContext
}

func (r *productRepository) Find(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load product")
	}
	return row.toModel()
}

func (r *productRepository) FindAll(ctx context.Context) ([]model.Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT `+productColumns+` FROM products ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}

	products := make([]model.Product, 0, len(rows))
	for _, row := range rows {
		product, err := row.toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, nil
}

func (r *productRepository) Store(ctx context.Context, product *model.Product) error {
	sizes, err := json.Marshal(product.Sizes)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = r.db.ExecContext(ctx, storeProductQuery,
		product.ID, product.Name, types.JSONText(sizes), product.IsPersonalizable,
		product.BasePrice, product.MemberDiscount, product.AthleteDiscount, product.PersonalizationPrice,
	)
	return errors.Wrapf(err, "failed to store product %s", product.Name)
}

func (row productRow) toModel() (*model.Product, error) {
	var sizes []string
	if err := row.Sizes.Unmarshal(&sizes); err != nil {
		return nil, errors.Wrapf(err, "product %s has malformed sizes", row.ID)
	}
	return &model.Product{
		ID:                   row.ID,
		Name:                 row.Name,
		Sizes:                sizes,
		IsPersonalizable:     row.IsPersonalizable,
		BasePrice:            row.BasePrice,
		MemberDiscount:       row.MemberDiscount,
		AthleteDiscount:      row.AthleteDiscount,
		PersonalizationPrice: row.PersonalizationPrice,
	}, nil
}
