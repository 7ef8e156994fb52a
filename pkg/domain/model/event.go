package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BuyerRegistered struct {
	BuyerID   uuid.UUID `json:"buyerId"`
	Email     string    `json:"email"`
	BuyerType BuyerType `json:"buyerType"`
}

func (e BuyerRegistered) Type() string { return "BuyerRegistered" }

type BuyerContactUpdated struct {
	BuyerID   uuid.UUID `json:"buyerId"`
	BuyerType BuyerType `json:"buyerType"`
}

func (e BuyerContactUpdated) Type() string { return "BuyerContactUpdated" }

type OrderPlaced struct {
	OrderID   uuid.UUID       `json:"orderId"`
	BuyerID   uuid.UUID       `json:"buyerId"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (e OrderPlaced) Type() string { return "OrderPlaced" }

type NotificationSent struct {
	NotificationID uuid.UUID `json:"notificationId"`
	OrderID        uuid.UUID `json:"orderId"`
}

func (e NotificationSent) Type() string { return "NotificationSent" }

type NotificationFailed struct {
	NotificationID uuid.UUID `json:"notificationId"`
	OrderID        uuid.UUID `json:"orderId"`
	Reason         string    `json:"reason"`
}

func (e NotificationFailed) Type() string { return "NotificationFailed" }
