package notification

import "context"

// Messenger sends push notifications. Implemented by the Firebase client.
type Messenger interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}
