package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrNotificationNotClaimed = errors.New("notification is not claimed for delivery")
)

type NotificationStatus int

const (
	Pending NotificationStatus = iota
	Sent
	Failed
	// Sending marks a notification claimed by one sender until it records the outcome.
	Sending
)

type Notification struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	RecipientAddress string
	Subject          string
	Body             string
	Status           NotificationStatus
	Attempts         int
	FailureReason    string
	CreatedAt        time.Time
	SentAt           *time.Time
	ClaimedAt        *time.Time
}

type NotificationRepository interface {
	NextID() (uuid.UUID, error)
	Create(ctx context.Context, notification *Notification) error
	// Claim moves the notification to Sending and counts the attempt. It reports false when the
	// notification is already sent or another sender claimed it after staleBefore.
	Claim(ctx context.Context, notification *Notification, staleBefore time.Time) (bool, error)
	// Update records the outcome of a claimed delivery.
	Update(ctx context.Context, notification *Notification) error
	Find(ctx context.Context, id uuid.UUID) (*Notification, error)
	// FindUndelivered returns Pending, Failed and stale Sending notifications with fewer than maxAttempts attempts, oldest first.
	FindUndelivered(ctx context.Context, maxAttempts int, staleBefore time.Time, limit int) ([]Notification, error)
}

type NotificationSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
