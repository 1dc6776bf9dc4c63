package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	pkgkafka "github.com/bouabca/hawiyat-site-sub000/pkg/kafka"
	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

const (
	AggregateTypeUser = "user"
	SourceAccounts    = "accounts-service"
)

// UserData is the payload for user.registered and user.email_verified.
type UserData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PasswordResetData is the payload for user.password_reset.
type PasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// OAuthLinkedData is the payload for user.oauth_linked.
type OAuthLinkedData struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
	Created  bool   `json:"created"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account lifecycle events to the user events topic.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, domain.EventUserRegistered, u.ID, UserData{ID: u.ID, Email: u.Email, Name: u.Name})
}

func (p *Producer) PublishEmailVerified(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, domain.EventUserEmailVerified, u.ID, UserData{ID: u.ID, Email: u.Email, Name: u.Name})
}

func (p *Producer) PublishPasswordReset(ctx context.Context, userID, email string) error {
	return p.publish(ctx, domain.EventUserPasswordReset, userID, PasswordResetData{UserID: userID, Email: email})
}

func (p *Producer) PublishOAuthLinked(ctx context.Context, u *domain.User, provider string, created bool) error {
	return p.publish(ctx, domain.EventUserOAuthLinked, u.ID, OAuthLinkedData{
		UserID:   u.ID,
		Email:    u.Email,
		Provider: provider,
		Created:  created,
	})
}

func (p *Producer) publish(ctx context.Context, eventType, userID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, userID, AggregateTypeUser, SourceAccounts, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, domain.UserEventsTopic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
	)
	return nil
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishUserRegistered(context.Context, *domain.User) error            { return nil }
func (Noop) PublishEmailVerified(context.Context, *domain.User) error             { return nil }
func (Noop) PublishPasswordReset(context.Context, string, string) error           { return nil }
func (Noop) PublishOAuthLinked(context.Context, *domain.User, string, bool) error { return nil }
