package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/domain/model"
)

// The update list runs left to right: updated_at is compared against the old phone and type before they change.
const upsertBuyerQuery = `INSERT INTO buyers (id, first_name, last_name, vat_id, email, phone, type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	updated_at = IF(phone <=> VALUES(phone) AND type = VALUES(type), updated_at, VALUES(updated_at)),
	phone = VALUES(phone),
	type = VALUES(type)`

const findBuyerByIdentityQuery = `SELECT id, first_name, last_name, vat_id, email, phone, type, created_at, updated_at
FROM buyers
WHERE first_name = ? AND last_name = ? AND vat_id = ? AND email = ?
FOR UPDATE`

type buyerRow struct {
	ID        uuid.UUID `db:"id"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	VatID     string    `db:"vat_id"`
	Email     string    `db:"email"`
	Phone     *string   `db:"phone"`
	Type      string    `db:"type"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func NewBuyerRepository(db sqlx.ExtContext) model.BuyerRepository {
	return &buyerRepository{db: db}
}

type buyerRepository struct {
	db sqlx.ExtContext
}

func (r *buyerRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// GetOrUpsert relies on uq_buyers_identity: concurrent first orders from one person converge on a single row.
// MySQL reports 1 affected row for an insert, 2 for a changed row and 0 when nothing changed.
func (r *buyerRepository) GetOrUpsert(ctx context.Context, identity model.BuyerIdentity, phone *string, buyerType model.BuyerType) (*model.Buyer, model.UpsertResult, error) {
	id, err := r.NextID()
	if err != nil {
		return nil, model.Unchanged, errors.WithStack(err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, upsertBuyerQuery,
		id, identity.FirstName, identity.LastName, identity.VatID, identity.Email,
		phone, buyerType.String(), now, now,
	)
	if err != nil {
		return nil, model.Unchanged, errors.Wrap(err, "failed to upsert buyer")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, model.Unchanged, errors.Wrap(err, "failed to read buyer upsert result")
	}

	var row buyerRow
	err = sqlx.GetContext(ctx, r.db, &row, findBuyerByIdentityQuery,
		identity.FirstName, identity.LastName, identity.VatID, identity.Email,
	)
	if err != nil {
		return nil, model.Unchanged, errors.Wrap(err, "failed to load buyer")
	}

	buyer, err := row.toModel()
	if err != nil {
		return nil, model.Unchanged, err
	}
	return buyer, upsertResult(affected), nil
}

func upsertResult(affected int64) model.UpsertResult {
	switch affected {
	case 1:
		return model.Created
	case 2:
		return model.Updated
	default:
		return model.Unchanged
	}
}

func (row buyerRow) toModel() (*model.Buyer, error) {
	buyerType, err := model.ParseBuyerType(row.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "buyer %s", row.ID)
	}
	return &model.Buyer{
		ID: row.ID,
		BuyerIdentity: model.BuyerIdentity{
			FirstName: row.FirstName,
			LastName:  row.LastName,
			VatID:     row.VatID,
			Email:     row.Email,
		},
		Phone:     row.Phone,
		Type:      buyerType,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
