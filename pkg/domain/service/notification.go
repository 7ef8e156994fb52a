package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/domain/model"
)

const (
	defaultMaxAttempts = 5
	// claimLease is how long a Sending notification stays reserved before another sender may take it over.
	claimLease = 5 * time.Minute
)

var orderEmailTemplate = template.Must(template.New("order").Parse(`<h1>Encomenda #{{.Order.ID}}</h1>
<p>Nome: {{.Buyer.FirstName}} {{.Buyer.LastName}}</p>
<p>NIF: {{.Buyer.VatID}}</p>
<p>Email: {{.Buyer.Email}}</p>
<p>Telemóvel: {{.Buyer.Phone}}</p>
<p>Tipo de comprador: {{.Buyer.Type}}</p>
{{range .Items}}<hr>
<p>Produto: {{.ProductName}}</p>
<p>Tamanho: {{.Size}}</p>
<p>Nome personalizado: {{.PersonalizedName}}</p>
<p>Número personalizado: {{.PersonalizedNumber}}</p>
<p>Quantidade: {{.Quantity}}</p>
<p>Preço unitário: {{.UnitPrice}} €</p>
{{end}}`))

type emailBuyer struct {
	FirstName string
	LastName  string
	VatID     string
	Email     string
	Phone     string
	Type      string
}

type emailItem struct {
	ProductName        string
	Size               string
	PersonalizedName   string
	PersonalizedNumber string
	Quantity           int
	UnitPrice          string
}

type NotificationService interface {
	// Enqueue stores a Pending email for the order through repo, usually bound to the order's transaction.
	Enqueue(ctx context.Context, repo model.NotificationRepository, order *model.Order) (*model.Notification, error)
	Deliver(ctx context.Context, notificationID uuid.UUID) error
	RetryUndelivered(ctx context.Context, limit int) (sent, failed int, err error)
}

func NewNotificationService(repo model.NotificationRepository, sender model.NotificationSender, dispatcher EventDispatcher, operatorAddress string, maxAttempts int) NotificationService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &notificationService{
		repo:            repo,
		sender:          sender,
		dispatcher:      dispatcher,
		operatorAddress: operatorAddress,
		maxAttempts:     maxAttempts,
	}
}

type notificationService struct {
	repo            model.NotificationRepository
	sender          model.NotificationSender
	dispatcher      EventDispatcher
	operatorAddress string
	maxAttempts     int
}

func (s *notificationService) Enqueue(ctx context.Context, repo model.NotificationRepository, order *model.Order) (*model.Notification, error) {
	subject, body, err := composeOrderEmail(order)
	if err != nil {
		return nil, err
	}

	notifID, err := repo.NextID()
	if err != nil {
		return nil, err
	}
	notification := &model.Notification{
		ID:               notifID,
		OrderID:          order.ID,
		RecipientAddress: s.operatorAddress,
		Subject:          subject,
		Body:             body,
		Status:           model.Pending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *notificationService) Deliver(ctx context.Context, notificationID uuid.UUID) error {
	notification, err := s.repo.Find(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.Status == model.Sent {
		return nil
	}
	_, err = s.deliver(ctx, notification)
	return err
}

func (s *notificationService) RetryUndelivered(ctx context.Context, limit int) (sent, failed int, err error) {
	notifications, err := s.repo.FindUndelivered(ctx, s.maxAttempts, staleClaimCutoff(), limit)
	if err != nil {
		return 0, 0, err
	}

	for i := range notifications {
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		delivered, err := s.deliver(ctx, &notifications[i])
		if err != nil {
			failed++
			continue
		}
		if delivered {
			sent++
		}
	}
	return sent, failed, nil
}

// deliver sends the notification only if it wins the claim. It reports false when another sender holds it.
func (s *notificationService) deliver(ctx context.Context, notification *model.Notification) (bool, error) {
	claimed, err := s.repo.Claim(ctx, notification, staleClaimCutoff())
	if err != nil || !claimed {
		return false, err
	}

	sendErr := s.sender.Send(ctx, notification.RecipientAddress, notification.Subject, notification.Body)
	if sendErr != nil {
		notification.Status = model.Failed
		notification.FailureReason = sendErr.Error()
		_ = s.dispatcher.Dispatch(model.NotificationFailed{
			NotificationID: notification.ID, OrderID: notification.OrderID, Reason: sendErr.Error(),
		})
	} else {
		now := time.Now().UTC()
		notification.Status = model.Sent
		notification.SentAt = &now
		notification.FailureReason = ""
		_ = s.dispatcher.Dispatch(model.NotificationSent{
			NotificationID: notification.ID, OrderID: notification.OrderID,
		})
	}

	if err := s.repo.Update(ctx, notification); err != nil {
		return false, err
	}
	return sendErr == nil, sendErr
}

func staleClaimCutoff() time.Time {
	return time.Now().UTC().Add(-claimLease)
}

func composeOrderEmail(order *model.Order) (subject, body string, err error) {
	if order.Buyer == nil {
		return "", "", fmt.Errorf("order %s has no buyer attached", order.ID)
	}

	buyer := emailBuyer{
		FirstName: order.Buyer.FirstName,
		LastName:  order.Buyer.LastName,
		VatID:     order.Buyer.VatID,
		Email:     order.Buyer.Email,
		Phone:     "-",
		Type:      order.Buyer.Type.String(),
	}
	if order.Buyer.Phone != nil {
		buyer.Phone = *order.Buyer.Phone
	}

	items := make([]emailItem, 0, len(order.Items))
	for _, item := range order.Items {
		entry := emailItem{
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
		if item.Product != nil {
			entry.ProductName = item.Product.Name
		}
		if item.Personalization != nil {
			if item.Personalization.Name != nil {
				entry.PersonalizedName = *item.Personalization.Name
			}
			if item.Personalization.Number != nil {
				entry.PersonalizedNumber = fmt.Sprint(*item.Personalization.Number)
			}
		}
		items = append(items, entry)
	}

	var buf bytes.Buffer
	err = orderEmailTemplate.Execute(&buf, struct {
		Order *model.Order
		Buyer emailBuyer
		Items []emailItem
	}{Order: order, Buyer: buyer, Items: items})
	if err != nil {
		return "", "", err
	}

	return fmt.Sprintf("Encomenda #%s", order.ID), buf.String(), nil
}
