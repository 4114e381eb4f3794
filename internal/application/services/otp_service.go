package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

// OTPSettings controls code length, lifetime and attempt limits
type OTPSettings struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	VerifiedTTL time.Duration
}

// OTPService issues and verifies one-time passwords. Codes live only in the
// cache provider, so expiry is the cache TTL.
type OTPService struct {
	cache    providers.CacheProvider
	notifier providers.Notifier
	settings OTPSettings
	generate func(length int) (string, error)
}

// NewOTPService creates a new OTP service
func NewOTPService(cache providers.CacheProvider, notifier providers.Notifier, settings OTPSettings) *OTPService {
	return &OTPService{
		cache:    cache,
		notifier: notifier,
		settings: settings,
		generate: generateOTP,
	}
}

func otpKey(email string) string         { return "otp:" + email }
func otpAttemptsKey(email string) string { return "otp:attempts:" + email }
func otpVerifiedKey(email string) string { return "otp:verified:" + email }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateOTP(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Request creates a fresh code for email and delivers it to phone, or to the
// email address when no phone is given. A new request resets the attempt counter.
func (s *OTPService) Request(ctx context.Context, email, phone string) (time.Duration, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return 0, apperrors.NewValidationError("a valid email is required")
	}

	code, err := s.generate(s.settings.Length)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to generate otp", err)
	}

	if err := s.cache.Set(ctx, otpKey(email), []byte(code), int(s.settings.TTL.Seconds())); err != nil {
		return 0, apperrors.NewInternalError("failed to store otp", err)
	}
	if err := s.cache.Delete(ctx, otpAttemptsKey(email)); err != nil {
		return 0, apperrors.NewInternalError("failed to reset otp attempts", err)
	}

	to := strings.TrimSpace(phone)
	if to == "" {
		to = email
	}
	body := "Your SocioDent verification code is " + code + ". It expires in " + s.settings.TTL.String() + "."
	if _, err := s.notifier.SendText(ctx, to, body); err != nil {
		_ = s.cache.Delete(ctx, otpKey(email))
		return 0, apperrors.NewExternalError("failed to deliver otp", err)
	}

	observability.LoggerFromContext(ctx).Info().Str("email", email).Msg("otp issued")
	return s.settings.TTL, nil
}

// Verify checks code for email. After MaxAttempts wrong guesses the code is
// discarded and a new one must be requested.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return apperrors.NewValidationError("email and code are required")
	}

	attempts, err := s.cache.Incr(ctx, otpAttemptsKey(email), int(s.settings.TTL.Seconds()))
	if err != nil {
		return apperrors.NewInternalError("failed to count otp attempts", err)
	}
	if s.settings.MaxAttempts > 0 && attempts > int64(s.settings.MaxAttempts) {
		_ = s.cache.Delete(ctx, otpKey(email))
		return apperrors.NewUnauthorizedError("too many attempts, request a new code")
	}

	stored, err := s.cache.Get(ctx, otpKey(email))
	if errors.Is(err, providers.ErrCacheMiss) {
		return apperrors.NewUnauthorizedError("code expired or was never requested")
	}
	if err != nil {
		return apperrors.NewInternalError("failed to read otp", err)
	}

	if subtle.ConstantTimeCompare(stored, []byte(code)) != 1 {
		return apperrors.NewUnauthorizedError("invalid code")
	}

	_ = s.cache.Delete(ctx, otpKey(email))
	_ = s.cache.Delete(ctx, otpAttemptsKey(email))
	if err := s.cache.Set(ctx, otpVerifiedKey(email), []byte("1"), int(s.settings.VerifiedTTL.Seconds())); err != nil {
		return apperrors.NewInternalError("failed to mark email verified", err)
	}

	observability.LoggerFromContext(ctx).Info().Str("email", email).Msg("otp verified")
	return nil
}

// IsVerified reports whether email passed verification within VerifiedTTL
func (s *OTPService) IsVerified(ctx context.Context, email string) (bool, error) {
	return s.cache.Exists(ctx, otpVerifiedKey(normalizeEmail(email)))
}
