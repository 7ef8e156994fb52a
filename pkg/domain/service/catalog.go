package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/pkg/domain/model"
)

type CatalogService interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	// Quote is the unit price the order form shows before submitting.
	Quote(ctx context.Context, productID uuid.UUID, buyerType model.BuyerType, personalized bool) (decimal.Decimal, error)
	SeedProducts(ctx context.Context, products []model.Product) error
}

func NewCatalogService(repo model.ProductRepository, pricing PricingPolicy) CatalogService {
	return &catalogService{repo: repo, pricing: pricing}
}

type catalogService struct {
	repo    model.ProductRepository
	pricing PricingPolicy
}

func (s *catalogService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.FindAll(ctx)
}

func (s *catalogService) Quote(ctx context.Context, productID uuid.UUID, buyerType model.BuyerType, personalized bool) (decimal.Decimal, error) {
	product, err := s.repo.Find(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.pricing.UnitPrice(product, buyerType, personalized)
}

func (s *catalogService) SeedProducts(ctx context.Context, products []model.Product) error {
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return err
		}
	}
	for i := range products {
		if err := s.repo.Store(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}
