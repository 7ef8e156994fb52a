package transport

import (
	"time"

	"storefront/pkg/domain/model"
)

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type quoteResponse struct {
	UnitPrice string `json:"unitPrice"`
}

type productResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Sizes                []string `json:"sizes"`
	IsPersonalizable     bool     `json:"isPersonalizable"`
	BasePrice            string   `json:"basePrice"`
	MemberDiscount       string   `json:"memberDiscount"`
	AthleteDiscount      string   `json:"athleteDiscount"`
	PersonalizationPrice string   `json:"personalizationPrice"`
}

type buyerResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	VatID     string    `json:"vatId"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type orderItemResponse struct {
	ID                 string           `json:"id"`
	OrderID            string           `json:"orderId"`
	ProductID          string           `json:"productId"`
	Product            *productResponse `json:"product,omitempty"`
	Size               string           `json:"size"`
	PersonalizedName   *string          `json:"personalizedName"`
	PersonalizedNumber *int             `json:"personalizedNumber"`
	Quantity           int              `json:"quantity"`
	UnitPrice          string           `json:"unitPrice"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	BuyerID    string              `json:"buyerId"`
	Buyer      *buyerResponse      `json:"buyer,omitempty"`
	OrderItems []orderItemResponse `json:"orderItems"`
	CreatedAt  time.Time           `json:"createdAt"`
}

func newProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:                   p.ID.String(),
		Name:                 p.Name,
		Sizes:                p.Sizes,
		IsPersonalizable:     p.IsPersonalizable,
		BasePrice:            p.BasePrice.StringFixed(2),
		MemberDiscount:       p.MemberDiscount.String(),
		AthleteDiscount:      p.AthleteDiscount.String(),
		PersonalizationPrice: p.PersonalizationPrice.StringFixed(2),
	}
}

func newOrderResponse(o *model.Order) orderResponse {
	response := orderResponse{
		ID:         o.ID.String(),
		BuyerID:    o.BuyerID.String(),
		OrderItems: make([]orderItemResponse, 0, len(o.Items)),
		CreatedAt:  o.CreatedAt,
	}
	if b := o.Buyer; b != nil {
		response.Buyer = &buyerResponse{
			ID:        b.ID.String(),
			FirstName: b.FirstName,
			LastName:  b.LastName,
			VatID:     b.VatID,
			Email:     b.Email,
			Phone:     b.Phone,
			Type:      b.Type.String(),
			CreatedAt: b.CreatedAt,
			UpdatedAt: b.UpdatedAt,
		}
	}

	for _, item := range o.Items {
		entry := orderItemResponse{
			ID:        item.ID.String(),
			OrderID:   item.OrderID.String(),
			ProductID: item.ProductID.String(),
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
		if item.Product != nil {
			product := newProductResponse(item.Product)
			entry.Product = &product
		}
		if item.Personalization != nil {
			entry.PersonalizedName = item.Personalization.Name
			entry.PersonalizedNumber = item.Personalization.Number
		}
		response.OrderItems = append(response.OrderItems, entry)
	}
	return response
}
