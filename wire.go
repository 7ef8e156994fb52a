package main

import (
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"storefront/pkg/config"
	"storefront/pkg/domain/service"
	"storefront/pkg/domain/validation"
	"storefront/pkg/infrastructure/kafka"
	"storefront/pkg/infrastructure/logging"
	"storefront/pkg/infrastructure/mail"
	"storefront/pkg/infrastructure/mysql"
)

func wire(cfg *config.Config, db *sqlx.DB) (*dependencies, error) {
	deps := &dependencies{}

	var dispatcher service.EventDispatcher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaDispatcher := kafka.NewEventDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic, log.StandardLogger())
		deps.closers = append(deps.closers, kafkaDispatcher.Close)
		dispatcher = kafkaDispatcher
	} else {
		log.Warn("no kafka brokers configured, domain events are only logged")
		dispatcher = logging.NewEventDispatcher(log.StandardLogger())
	}

	validator, err := validation.NewOrderValidator(cfg.PhoneRegion)
	if err != nil {
		return nil, err
	}

	pricing := service.PricingPolicy{ChargePersonalization: cfg.ChargePersonalization}
	products := mysql.NewProductRepository(db)
	sender := mail.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, cfg.SendGridHost)

	deps.notifications = service.NewNotificationService(
		mysql.NewNotificationRepository(db), sender, dispatcher, cfg.MailTo, cfg.NotifyMaxAttempts,
	)
	deps.catalog = service.NewCatalogService(products, pricing)
	deps.orders = service.NewOrderService(service.OrderServiceDeps{
		UnitOfWork:    mysql.NewUnitOfWork(db),
		Products:      products,
		Validator:     validator,
		Notifications: deps.notifications,
		Dispatcher:    dispatcher,
		Pricing:       pricing,
		NotifyTimeout: cfg.NotifyTimeout,
		Logger:        log.StandardLogger(),
	})
	return deps, nil
}
