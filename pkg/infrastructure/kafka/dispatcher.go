package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"storefront/pkg/domain/model"
	"storefront/pkg/domain/service"
)

const (
	publishTimeout = 5 * time.Second
	batchTimeout   = 10 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type envelope struct {
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurredAt"`
	Payload    service.Event `json:"payload"`
}

// EventDispatcher publishes domain events as JSON to a single topic.
type EventDispatcher struct {
	writer messageWriter
}

// NewEventDispatcher returns a dispatcher whose writes are queued and flushed in the background.
// Delivery failures are reported to logger since Dispatch has already returned by then.
func NewEventDispatcher(brokers []string, topic string, logger logrus.FieldLogger) *EventDispatcher {
	return &EventDispatcher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireOne,
			BatchTimeout: batchTimeout,
			WriteTimeout: publishTimeout,
			Async:        true,
			Completion:   completionLogger(topic, logger),
		},
	}
}

func completionLogger(topic string, logger logrus.FieldLogger) func([]kafkago.Message, error) {
	return func(messages []kafkago.Message, err error) {
		if err == nil {
			return
		}
		for _, m := range messages {
			logger.WithFields(logrus.Fields{
				"topic": topic,
				"key":   string(m.Key),
			}).WithError(err).Error("failed to publish event")
		}
	}
}

func (d *EventDispatcher) Dispatch(event service.Event) error {
	value, err := json.Marshal(envelope{
		Type:       event.Type(),
		OccurredAt: time.Now().UTC(),
		Payload:    event,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", event.Type())
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = d.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(messageKey(event)),
		Value: value,
	})
	return errors.Wrapf(err, "failed to publish %s", event.Type())
}

func (d *EventDispatcher) Close() error {
	return d.writer.Close()
}

// messageKey keeps the events of one aggregate on one partition.
func messageKey(event service.Event) string {
	switch e := event.(type) {
	case model.BuyerRegistered:
		return e.BuyerID.String()
	case model.BuyerContactUpdated:
		return e.BuyerID.String()
	case model.OrderPlaced:
		return e.OrderID.String()
	case model.NotificationSent:
		return e.OrderID.String()
	case model.NotificationFailed:
		return e.OrderID.String()
	default:
		return event.Type()
	}
}
