package service

import (
	"errors"

	"github.com/shopspring/decimal"

	"storefront/pkg/domain/model"
)

var ErrProductNotPersonalizable = errors.New("product cannot be personalized")

// PricingPolicy decides whether the personalization surcharge is part of the unit price.
type PricingPolicy struct {
	ChargePersonalization bool
}

func (p PricingPolicy) UnitPrice(product *model.Product, buyerType model.BuyerType, personalized bool) (decimal.Decimal, error) {
	if personalized && !product.IsPersonalizable {
		return decimal.Zero, ErrProductNotPersonalizable
	}
	if personalized && p.ChargePersonalization {
		return product.PersonalizedUnitPrice(buyerType)
	}
	return product.UnitPrice(buyerType)
}
