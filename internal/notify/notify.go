// Package notify publishes core events to interested collaborators. Delivery
// and ordering are the subscriber's problem: the core fires and forgets.
package notify

import (
	"context"
	"log"
)

// Event names published by the core.
const (
	EventNewNotification = "new_notification"
	EventStorageUpdated  = "storage_updated"
)

type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}

// LogNotifier is the fallback when no event channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event string, payload any) {
	log.Printf("notify: %s %v", event, payload)
}
