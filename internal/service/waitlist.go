package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bouabca/hawiyat-site-sub000/internal/domain"
	"github.com/bouabca/hawiyat-site-sub000/internal/repository"
	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/logger"
)

// JoinWaitlistInput is a waitlist sign-up.
type JoinWaitlistInput struct {
	Email     string
	IPAddress string
	UserAgent string
}

// JoinWaitlistResult reports the caller's place in line.
type JoinWaitlistResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Position int64  `json:"position"`
}

// WaitlistService records pre-launch interest.
type WaitlistService struct {
	repo   repository.WaitlistRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewWaitlistService creates a waitlist service.
func NewWaitlistService(repo repository.WaitlistRepository, logger *slog.Logger) *WaitlistService {
	return &WaitlistService{repo: repo, now: time.Now, logger: logger}
}

// Join adds an address to the waitlist. Joining twice is a Conflict that
// carries the existing position.
func (s *WaitlistService) Join(ctx context.Context, in JoinWaitlistInput) (_ *JoinWaitlistResult, err error) {
	ctx, end := startSpan(ctx, "WaitlistService.Join")
	defer func() { end(err) }()

	if strings.TrimSpace(in.Email) == "" {
		return nil, apperrors.Validation("EMAIL_REQUIRED", "Email is required")
	}
	email := domain.NormalizeEmail(in.Email)
	if len(email) > domain.MaxEmailLength {
		return nil, apperrors.Validation("EMAIL_TOO_LONG", "Email is too long")
	}
	if !domain.ValidEmail(email) {
		return nil, apperrors.Validation("INVALID_EMAIL", "Please enter a valid email address")
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		pos, perr := s.repo.Position(ctx, existing.CreatedAt)
		if perr != nil {
			return nil, perr
		}
		return nil, errOnWaitlist().WithDetail("position", pos)
	case !apperrors.IsNotFound(err):
		return nil, err
	}

	userAgent := in.UserAgent
	if userAgent == "" {
		userAgent = "unknown"
	}
	ip := in.IPAddress
	if ip == "" {
		ip = "unknown"
	}

	entry := &domain.WaitlistEntry{
		ID:        uuid.New().String(),
		Email:     email,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if apperrors.IsConflict(err) {
			return nil, errOnWaitlist()
		}
		return nil, err
	}

	pos, err := s.repo.Position(ctx, entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "waitlist joined",
		slog.String("email", logger.MaskEmail(email)),
		slog.Int64("position", pos),
	)
	return &JoinWaitlistResult{Success: true, Message: "Successfully joined waitlist!", Position: pos}, nil
}

func errOnWaitlist() *apperrors.AppError {
	return apperrors.Conflict("ALREADY_ON_WAITLIST", "Email already exists in waitlist")
}
