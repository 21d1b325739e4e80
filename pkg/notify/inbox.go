package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/storage"
)

// Inbox is a user's view of the notification store: the latest
// notifications and the unread count derived from them.
//
// The unread count only sees the latest storage.RecentNotificationLimit
// rows, so unread rows older than that window are not counted.
type Inbox struct {
	mu     sync.Mutex
	store  storage.NotificationStore
	userID string
	items  []model.Notification
	unread int
	logger *slog.Logger
}

// NewInbox creates an empty inbox for userID. Call Refresh to load it.
func NewInbox(store storage.NotificationStore, userID string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{store: store, userID: userID, logger: logger}
}

// Refresh reloads the latest notifications and recomputes the unread count.
func (i *Inbox) Refresh(ctx context.Context) error {
	list, err := i.store.RecentNotifications(ctx, i.userID, storage.RecentNotificationLimit)
	if err != nil {
		return fmt.Errorf("refresh inbox: %w", err)
	}

	unread := 0
	for _, n := range list {
		if !n.IsRead {
			unread++
		}
	}

	i.mu.Lock()
	i.items = list
	i.unread = unread
	i.mu.Unlock()
	return nil
}

// Add persists a new unread notification, puts it at the front of the list
// and bumps the unread count without reloading.
func (i *Inbox) Add(ctx context.Context, typ model.NotificationType, message string) (*model.Notification, error) {
	n, err := i.store.CreateNotification(ctx, i.userID, typ, message)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	items := make([]model.Notification, 0, len(i.items)+1)
	items = append(items, *n)
	items = append(items, i.items...)
	if len(items) > storage.RecentNotificationLimit {
		items = items[:storage.RecentNotificationLimit]
	}
	i.items = items
	i.unread++
	return n, nil
}

// MarkAllRead marks every notification read, in the store and locally.
func (i *Inbox) MarkAllRead(ctx context.Context) error {
	if err := i.store.MarkAllNotificationsRead(ctx, i.userID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for k := range i.items {
		i.items[k].IsRead = true
	}
	i.unread = 0
	return nil
}

// Items returns a copy of the loaded notifications, newest first.
func (i *Inbox) Items() []model.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]model.Notification, len(i.items))
	copy(out, i.items)
	return out
}

// Unread returns the unread count.
func (i *Inbox) Unread() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unread
}
