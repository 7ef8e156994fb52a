package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownBuyerType = errors.New("unknown buyer type")
)

type BuyerType int

const (
	Guest BuyerType = iota
	Member
	Athlete
)

func (t BuyerType) String() string {
	switch t {
	case Guest:
		return "GUEST"
	case Member:
		return "MEMBER"
	case Athlete:
		return "ATHLETE"
	default:
		return "UNKNOWN"
	}
}

func (t BuyerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func ParseBuyerType(s string) (BuyerType, error) {
	switch s {
	case "GUEST":
		return Guest, nil
	case "MEMBER":
		return Member, nil
	case "ATHLETE":
		return Athlete, nil
	default:
		return Guest, ErrUnknownBuyerType
	}
}

// BuyerIdentity is the natural key of a buyer. It never changes once stored.
type BuyerIdentity struct {
	FirstName string
	LastName  string
	VatID     string
	Email     string
}

type Buyer struct {
	ID uuid.UUID
	BuyerIdentity
	Phone     *string
	Type      BuyerType
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UpsertResult int

const (
	Unchanged UpsertResult = iota
	Created
	Updated
)

type BuyerRepository interface {
	NextID() (uuid.UUID, error)
	// GetOrUpsert creates the buyer on first appearance and refreshes phone and type in place
	// when they differ from the stored row.
	GetOrUpsert(ctx context.Context, identity BuyerIdentity, phone *string, buyerType BuyerType) (*Buyer, UpsertResult, error)
}
