package model

import "github.com/shopspring/decimal"

func (p *Product) Discount(buyerType BuyerType) (decimal.Decimal, error) {
	switch buyerType {
	case Guest:
		return decimal.Zero, nil
	case Member:
		return p.MemberDiscount, nil
	case Athlete:
		return p.AthleteDiscount, nil
	default:
		return decimal.Zero, ErrUnknownBuyerType
	}
}

// UnitPrice is basePrice * (1 - discount) for the buyer's category.
func (p *Product) UnitPrice(buyerType BuyerType) (decimal.Decimal, error) {
	discount, err := p.Discount(buyerType)
	if err != nil {
		return decimal.Zero, err
	}
	return p.BasePrice.Mul(decimal.NewFromInt(1).Sub(discount)), nil
}

// PersonalizedUnitPrice adds the personalization surcharge on top of the discounted price.
// The surcharge itself is never discounted.
func (p *Product) PersonalizedUnitPrice(buyerType BuyerType) (decimal.Decimal, error) {
	price, err := p.UnitPrice(buyerType)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Add(p.PersonalizationPrice), nil
}
