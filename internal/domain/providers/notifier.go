package providers

import "context"

// Notifier delivers a plain text message to a patient or doctor phone number
type Notifier interface {
	SendText(ctx context.Context, to, body string) (messageID string, err error)
}
