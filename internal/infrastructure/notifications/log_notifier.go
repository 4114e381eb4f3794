package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
)

// LogNotifier writes messages to the log instead of delivering them.
// It is used when no WhatsApp credentials are configured.
type LogNotifier struct{}

var _ providers.Notifier = LogNotifier{}

// SendText logs the message and returns a synthetic ID
func (LogNotifier) SendText(ctx context.Context, to, body string) (string, error) {
	id := "log-" + uuid.NewString()
	observability.LoggerFromContext(ctx).Info().
		Str("to", to).
		Str("message_id", id).
		Str("body", body).
		Msg("notification not delivered: no WhatsApp credentials")
	return id, nil
}
