package logging

import (
	"github.com/sirupsen/logrus"

	"storefront/pkg/domain/service"
)

// EventDispatcher writes domain events to the log. Used when no broker is configured.
type EventDispatcher struct {
	logger logrus.FieldLogger
}

func NewEventDispatcher(logger logrus.FieldLogger) *EventDispatcher {
	return &EventDispatcher{logger: logger}
}

func (d *EventDispatcher) Dispatch(event service.Event) error {
	d.logger.WithFields(logrus.Fields{
		"event":   event.Type(),
		"payload": event,
	}).Info("domain event")
	return nil
}
