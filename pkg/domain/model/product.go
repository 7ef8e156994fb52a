package model

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("product violates catalog invariants")
)

type Product struct {
	ID                   uuid.UUID
	Name                 string
	Sizes                []string
	IsPersonalizable     bool
	BasePrice            decimal.Decimal
	MemberDiscount       decimal.Decimal
	AthleteDiscount      decimal.Decimal
	PersonalizationPrice decimal.Decimal
}

func (p *Product) HasSize(size string) bool {
	return slices.Contains(p.Sizes, size)
}

func (p *Product) Validate() error {
	if p.Name == "" || len(p.Sizes) == 0 {
		return ErrInvalidProduct
	}
	seen := make(map[string]struct{}, len(p.Sizes))
	for _, size := range p.Sizes {
		if _, dup := seen[size]; dup || size == "" {
			return ErrInvalidProduct
		}
		seen[size] = struct{}{}
	}
	if p.BasePrice.IsNegative() || p.PersonalizationPrice.IsNegative() {
		return ErrInvalidProduct
	}
	for _, d := range []decimal.Decimal{p.MemberDiscount, p.AthleteDiscount} {
		if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return ErrInvalidProduct
		}
	}
	return nil
}

type ProductRepository interface {
	Find(ctx context.Context, id uuid.UUID) (*Product, error)
	FindAll(ctx context.Context) ([]Product, error)
	Store(ctx context.Context, product *Product) error
}
