package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/pkg/domain/model"
	"storefront/pkg/domain/validation"
)

const defaultNotifyTimeout = 10 * time.Second

const (
	msgUnknownProduct     = "O produto selecionado não existe."
	msgUnavailableSize    = "Este tamanho não está disponível para o produto selecionado."
	msgNotPersonalizable  = "Este produto não pode ser personalizado."
	fieldProductID        = "productId"
	fieldProductSize      = "productSize"
	fieldPersonalizedName = "productPersonalizedName"
	fieldPersonalizedNum  = "productPersonalizedNumber"
)

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(event Event) error
}

type OrderService interface {
	// PlaceOrder validates the submission, stores buyer, order and item atomically and
	// notifies the store operator once the order is committed.
	PlaceOrder(ctx context.Context, raw validation.RawOrder) (*model.Order, error)
}

type OrderServiceDeps struct {
	UnitOfWork    model.UnitOfWork
	Products      model.ProductRepository
	Validator     *validation.OrderValidator
	Notifications NotificationService
	Dispatcher    EventDispatcher
	Pricing       PricingPolicy
	NotifyTimeout time.Duration
	Logger        logrus.FieldLogger
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	notifyTimeout := deps.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &orderService{
		uow:           deps.UnitOfWork,
		products:      deps.Products,
		validator:     deps.Validator,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		pricing:       deps.Pricing,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

type orderService struct {
	uow           model.UnitOfWork
	products      model.ProductRepository
	validator     *validation.OrderValidator
	notifications NotificationService
	dispatcher    EventDispatcher
	pricing       PricingPolicy
	notifyTimeout time.Duration
	logger        logrus.FieldLogger
}

func (s *orderService) PlaceOrder(ctx context.Context, raw validation.RawOrder) (*model.Order, error) {
	payload, verr, err := s.validator.Check(raw)
	if err != nil {
		return nil, err
	}

	product, err := s.findProduct(ctx, payload.ProductID, verr)
	if err != nil {
		return nil, err
	}
	var item model.OrderItem
	if product != nil {
		item, err = s.buildItem(product, payload, verr)
		if err != nil {
			return nil, err
		}
	}
	if !verr.Empty() {
		return nil, verr
	}

	var (
		order        *model.Order
		upsert       model.UpsertResult
		notification *model.Notification
	)
	err = s.uow.Execute(ctx, func(provider model.RepositoryProvider) error {
		buyer, result, err := provider.BuyerRepository().GetOrUpsert(ctx, payload.Buyer, payload.BuyerMobilePhone, payload.BuyerType)
		if err != nil {
			return err
		}
		upsert = result

		orders := provider.OrderRepository()
		orderID, err := orders.NextID()
		if err != nil {
			return err
		}
		itemID, err := orders.NextID()
		if err != nil {
			return err
		}
		item.ID = itemID
		item.OrderID = orderID

		order = &model.Order{
			ID:        orderID,
			BuyerID:   buyer.ID,
			Buyer:     buyer,
			Items:     []model.OrderItem{item},
			CreatedAt: time.Now().UTC(),
		}
		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		notification, err = s.notifications.Enqueue(ctx, provider.NotificationRepository(), order)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatchBuyerEvent(order.Buyer, upsert)
	_ = s.dispatcher.Dispatch(model.OrderPlaced{
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
	})

	s.notify(ctx, order, notification)

	return order, nil
}

// findProduct reports an unknown product on verr. It skips the lookup when productId is already invalid.
func (s *orderService) findProduct(ctx context.Context, id uuid.UUID, verr *validation.Error) (*model.Product, error) {
	if verr.Has(fieldProductID) {
		return nil, nil
	}
	product, err := s.products.Find(ctx, id)
	if errors.Is(err, model.ErrProductNotFound) {
		verr.Add(fieldProductID, msgUnknownProduct)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *orderService) buildItem(product *model.Product, payload *validation.OrderPlacementPayload, verr *validation.Error) (model.OrderItem, error) {
	if payload.ProductSize != "" && !product.HasSize(payload.ProductSize) {
		verr.Add(fieldProductSize, msgUnavailableSize)
	}

	var personalization *model.Personalization
	if payload.ProductPersonalizedName != nil || payload.ProductPersonalizedNumber != nil {
		personalization = &model.Personalization{
			Name:   payload.ProductPersonalizedName,
			Number: payload.ProductPersonalizedNumber,
		}
	}

	unitPrice, err := s.pricing.UnitPrice(product, payload.BuyerType, personalization != nil)
	if errors.Is(err, ErrProductNotPersonalizable) {
		if payload.ProductPersonalizedName != nil {
			verr.Add(fieldPersonalizedName, msgNotPersonalizable)
		}
		if payload.ProductPersonalizedNumber != nil {
			verr.Add(fieldPersonalizedNum, msgNotPersonalizable)
		}
	} else if err != nil {
		return model.OrderItem{}, err
	}

	return model.OrderItem{
		ProductID:       product.ID,
		Product:         product,
		Size:            payload.ProductSize,
		Personalization: personalization,
		Quantity:        payload.ProductQuantity,
		UnitPrice:       unitPrice,
	}, nil
}

// notify runs after commit. Delivery problems stay in the outbox and never fail the placement.
func (s *orderService) notify(ctx context.Context, order *model.Order, notification *model.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifications.Deliver(ctx, notification.ID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id":        order.ID,
			"notification_id": notification.ID,
		}).WithError(err).Error("failed to notify store operator, left for retry")
	}
}

func (s *orderService) dispatchBuyerEvent(buyer *model.Buyer, result model.UpsertResult) {
	switch result {
	case model.Created:
		_ = s.dispatcher.Dispatch(model.BuyerRegistered{BuyerID: buyer.ID, Email: buyer.Email, BuyerType: buyer.Type})
	case model.Updated:
		_ = s.dispatcher.Dispatch(model.BuyerContactUpdated{BuyerID: buyer.ID, BuyerType: buyer.Type})
	}
}
