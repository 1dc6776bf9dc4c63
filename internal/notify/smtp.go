package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers emails through an SMTP relay.
type SMTPMailer struct {
	cfg       Config
	dialer    sender
	templates map[string]templatePair
	logger    *slog.Logger
	now       func() time.Time
}

// NewSMTPMailer parses the embedded templates and prepares the dialer.
func NewSMTPMailer(cfg Config, log *slog.Logger) (*SMTPMailer, error) {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.Secure
	return newSMTPMailer(cfg, d, log)
}

func newSMTPMailer(cfg Config, d sender, log *slog.Logger) (*SMTPMailer, error) {
	tpls, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{cfg: cfg, dialer: d, templates: tpls, logger: log, now: time.Now}, nil
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	return m.send(ctx, TemplateVerification, "Verify your email address - "+m.cfg.AppName, templateData{
		Subtitle: "Verify your email address",
		To:       to,
		Name:     name,
		Link:     VerificationURL(m.cfg.BaseURL, token, to),
		Expiry:   humanDuration(m.cfg.VerificationTTL),
	})
}

func (m *SMTPMailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	return m.send(ctx, TemplateWelcome, "Welcome to "+m.cfg.AppName+"!", templateData{
		Subtitle: "Welcome aboard!",
		To:       to,
		Name:     name,
	})
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	return m.send(ctx, TemplateReset, "Reset your password - "+m.cfg.AppName, templateData{
		Subtitle: "Reset your password",
		To:       to,
		Name:     name,
		Link:     ResetURL(m.cfg.BaseURL, token, to),
		Expiry:   humanDuration(m.cfg.ResetTTL),
	})
}

func (m *SMTPMailer) send(ctx context.Context, tpl, subject string, data templateData) error {
	msg, err := m.build(tpl, subject, data)
	if err != nil {
		return err
	}

	// A cancelled caller is checked before dialing only. gomail has no
	// context support, and abandoning a send in flight would report a
	// failure for a message the relay may still deliver.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send %s email: %w", tpl, err)
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()

	timer := time.NewTimer(m.cfg.sendTimeout())
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send %s email: %w", tpl, err)
		}
	case <-timer.C:
		m.logger.WarnContext(ctx, "email send timed out",
			slog.String("template", tpl),
			slog.String("to", logger.MaskEmail(data.To)),
		)
		return fmt.Errorf("send %s email: %w", tpl, ErrDeliveryUnknown)
	}

	m.logger.InfoContext(ctx, "email sent",
		slog.String("template", tpl),
		slog.String("to", logger.MaskEmail(data.To)),
	)
	return nil
}

func (m *SMTPMailer) build(tpl, subject string, data templateData) (*gomail.Message, error) {
	pair, ok := m.templates[tpl]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", tpl)
	}

	data.Title = subject
	data.AppName = m.cfg.AppName
	data.BaseURL = m.cfg.baseURL()
	data.Year = m.now().Year()
	data.HasLogo = m.logoAvailable()

	html, text, err := pair.render(data)
	if err != nil {
		return nil, fmt.Errorf("render %s email: %w", tpl, err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.FromAddress(), m.cfg.AppName)
	msg.SetHeader("To", data.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	if data.HasLogo {
		msg.Embed(m.cfg.LogoPath, gomail.Rename("logo.png"))
	}
	return msg, nil
}

func (m *SMTPMailer) logoAvailable() bool {
	if m.cfg.LogoPath == "" {
		return false
	}
	info, err := os.Stat(m.cfg.LogoPath)
	return err == nil && !info.IsDir()
}
