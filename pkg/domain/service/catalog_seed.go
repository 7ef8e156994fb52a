package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/pkg/domain/model"
)

var productNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("storefront/products"))

// DefaultCatalog is the club's shirt collection. Ids derive from the product name so reseeding is stable.
func DefaultCatalog() []model.Product {
	return []model.Product{
		clubShirt("Camisola Principal 2022/23", []string{"S", "M", "L", "XL"}, true, 30, 5),
		clubShirt("Camisola Alternativa 2022/23", []string{"S", "M", "L", "XL", "2XL"}, true, 30, 5),
		clubShirt("Camisola de treino 2021/22", []string{"16", "S", "M", "L", "XL", "2XL"}, false, 20, 0),
	}
}

func clubShirt(name string, sizes []string, personalizable bool, basePrice, personalizationPrice int64) model.Product {
	return model.Product{
		ID:                   uuid.NewSHA1(productNamespace, []byte(name)),
		Name:                 name,
		Sizes:                sizes,
		IsPersonalizable:     personalizable,
		BasePrice:            decimal.NewFromInt(basePrice),
		MemberDiscount:       decimal.RequireFromString("0.25"),
		AthleteDiscount:      decimal.RequireFromString("0.5"),
		PersonalizationPrice: decimal.NewFromInt(personalizationPrice),
	}
}
