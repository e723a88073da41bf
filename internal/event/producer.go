// Package event publishes identity lifecycle events. A downstream
// notification service consumes them to send verification and reset emails,
// so nothing in this service blocks on SMTP.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/identware/identity-service/pkg/kafka"
	"github.com/identware/identity-service/pkg/logger"
)

const (
	TopicUserEvents = "identity.user.events"

	TypeUserRegistered      = "user.registered"
	TypeUserEmailVerified   = "user.email_verified"
	TypePasswordResetIssued = "user.password_reset_issued"
	TypePasswordChanged     = "user.password_changed"

	aggregateUser = "user"
	source        = "identity-service"
)

// UserRegistered carries the verification token the notifier embeds in the
// verification email link.
type UserRegistered struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	VerificationToken string `json:"verification_token"`
}

// EmailVerified signals a completed verification.
type EmailVerified struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// PasswordResetIssued carries the combined selector.secret token for the
// reset email link.
type PasswordResetIssued struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// PasswordChanged signals a completed password change or reset.
type PasswordChanged struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Publisher is the outbound event port. The kafka implementation is below;
// service tests mock it.
type Publisher interface {
	UserRegistered(ctx context.Context, p UserRegistered) error
	EmailVerified(ctx context.Context, p EmailVerified) error
	PasswordResetIssued(ctx context.Context, p PasswordResetIssued) error
	PasswordChanged(ctx context.Context, p PasswordChanged) error
}

// KafkaPublisher publishes events through the shared kafka producer.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaPublisher creates a publisher over an established producer.
func NewKafkaPublisher(producer *kafka.Producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (k *KafkaPublisher) publish(ctx context.Context, eventType, aggregateID string, payload any) error {
	evt, err := kafka.NewEvent(eventType, aggregateID, aggregateUser, source, payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	return k.producer.Publish(ctx, TopicUserEvents, evt)
}

func (k *KafkaPublisher) UserRegistered(ctx context.Context, p UserRegistered) error {
	return k.publish(ctx, TypeUserRegistered, p.UserID, p)
}

func (k *KafkaPublisher) EmailVerified(ctx context.Context, p EmailVerified) error {
	return k.publish(ctx, TypeUserEmailVerified, p.UserID, p)
}

func (k *KafkaPublisher) PasswordResetIssued(ctx context.Context, p PasswordResetIssued) error {
	return k.publish(ctx, TypePasswordResetIssued, p.UserID, p)
}

func (k *KafkaPublisher) PasswordChanged(ctx context.Context, p PasswordChanged) error {
	return k.publish(ctx, TypePasswordChanged, p.UserID, p)
}
