package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, recipientID, ntype, title, body string) (string, error)
	RecipientEmail(ctx context.Context, recipientID string) (string, error)
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, recipientID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}
