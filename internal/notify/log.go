package notify

import (
	"context"
	"log/slog"

	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

// LogMailer stands in for SMTP when no relay is configured. With
// includeLinks set the action link is logged so local accounts can be
// verified; it must stay off outside development.
type LogMailer struct {
	baseURL      string
	includeLinks bool
	logger       *slog.Logger
}

func NewLogMailer(baseURL string, includeLinks bool, log *slog.Logger) *LogMailer {
	return &LogMailer{baseURL: baseURL, includeLinks: includeLinks, logger: log}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, _, token string) error {
	m.log(ctx, TemplateVerification, to, VerificationURL(m.baseURL, token, to))
	return nil
}

func (m *LogMailer) SendWelcomeEmail(ctx context.Context, to, _ string) error {
	m.log(ctx, TemplateWelcome, to, "")
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, _, token string) error {
	m.log(ctx, TemplateReset, to, ResetURL(m.baseURL, token, to))
	return nil
}

func (m *LogMailer) log(ctx context.Context, tpl, to, link string) {
	attrs := []any{slog.String("template", tpl), slog.String("to", logger.MaskEmail(to))}
	if m.includeLinks && link != "" {
		attrs = append(attrs, slog.String("link", link))
	}
	m.logger.WarnContext(ctx, "smtp not configured, email not delivered", attrs...)
}
