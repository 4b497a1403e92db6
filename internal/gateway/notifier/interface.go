package notifier

import "context"

// TextNotifier is the one method components need to push an operator message.
type TextNotifier interface {
	SendTextContext(ctx context.Context, text string) error
}
