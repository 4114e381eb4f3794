package services_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/adapters/cache"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func newOTPFixture(t *testing.T) (*services.OTPService, *MockNotifier, *string) {
	t.Helper()
	store, err := cache.NewMemoryAdapter(64)
	require.NoError(t, err)

	notifier := new(MockNotifier)
	var sent string
	notifier.On("SendText", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.String(2) }).
		Return("msg-1", nil)

	svc := services.NewOTPService(store, notifier, services.OTPSettings{
		Length:      6,
		TTL:         5 * time.Minute,
		MaxAttempts: 3,
		VerifiedTTL: 30 * time.Minute,
	})
	return svc, notifier, &sent
}

func sentCode(t *testing.T, body string) string {
	t.Helper()
	m := codePattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "no code in %q", body)
	return m[1]
}

func TestOTPService_RequestAndVerify(t *testing.T) {
	svc, notifier, sent := newOTPFixture(t)
	ctx := context.Background()

	ttl, err := svc.Request(ctx, "Asha@Example.com", "+919800000001")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
	notifier.AssertCalled(t, "SendText", mock.Anything, "+919800000001", mock.Anything)

	ok, err := svc.IsVerified(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Verify(ctx, "asha@example.com", sentCode(t, *sent)))

	ok, err = svc.IsVerified(ctx, "ASHA@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	err = svc.Verify(ctx, "asha@example.com", sentCode(t, *sent))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized), "a code is single use")
}

func TestOTPService_FallsBackToEmailRecipient(t *testing.T) {
	svc, notifier, _ := newOTPFixture(t)
	_, err := svc.Request(context.Background(), "asha@example.com", "")
	require.NoError(t, err)
	notifier.AssertCalled(t, "SendText", mock.Anything, "asha@example.com", mock.Anything)
}

func TestOTPService_WrongCodeAndLockout(t *testing.T) {
	svc, _, sent := newOTPFixture(t)
	ctx := context.Background()

	_, err := svc.Request(ctx, "asha@example.com", "")
	require.NoError(t, err)
	code := sentCode(t, *sent)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 3; i++ {
		err := svc.Verify(ctx, "asha@example.com", wrong)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	}

	err = svc.Verify(ctx, "asha@example.com", code)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized), "locked out after max attempts")

	_, err = svc.Request(ctx, "asha@example.com", "")
	require.NoError(t, err)
	assert.NoError(t, svc.Verify(ctx, "asha@example.com", sentCode(t, *sent)), "a new request resets attempts")
}

func TestOTPService_Validation(t *testing.T) {
	svc, _, _ := newOTPFixture(t)
	ctx := context.Background()

	_, err := svc.Request(ctx, "not-an-email", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = svc.Verify(ctx, "asha@example.com", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = svc.Verify(ctx, "nobody@example.com", "123456")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestOTPService_DeliveryFailureDiscardsCode(t *testing.T) {
	store, err := cache.NewMemoryAdapter(64)
	require.NoError(t, err)
	notifier := new(MockNotifier)
	notifier.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("breaker open"))

	svc := services.NewOTPService(store, notifier, services.OTPSettings{Length: 6, TTL: time.Minute, MaxAttempts: 3, VerifiedTTL: time.Minute})
	_, err = svc.Request(context.Background(), "asha@example.com", "+919800000001")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))

	exists, err := store.Exists(context.Background(), "otp:asha@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
