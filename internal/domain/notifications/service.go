package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const emailTimeout = 30 * time.Second

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service persists in-app notifications and mirrors them by email. Email
// runs in the background; its failures are logged and never returned.
type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
	// OnEmailResult, when set, observes every email attempt.
	OnEmailResult func(err error)

	wg sync.WaitGroup
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

func (s *Service) Create(ctx context.Context, recipientID, ntype, title, body string) error {
	if _, err := s.store.CreateNotification(ctx, recipientID, ntype, title, body); err != nil {
		return err
	}
	if s.Mailer == nil {
		return nil
	}

	email, err := s.store.RecipientEmail(ctx, recipientID)
	if err != nil {
		slog.Warn("notification email lookup failed", "recipientId", recipientID, "err", err)
		return nil
	}
	if email == "" {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
		defer cancel()
		err := s.Mailer.Send(sendCtx, s.DefaultFrom, email, title, body)
		if err != nil {
			slog.Warn("notification email send failed", "recipientId", recipientID, "type", ntype, "err", err)
		}
		if s.OnEmailResult != nil {
			s.OnEmailResult(err)
		}
	}()
	return nil
}

// Wait blocks until queued emails have been attempted.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) List(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, recipientID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, recipientID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, recipientID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	return s.store.MarkRead(ctx, recipientID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.store.MarkAllRead(ctx, recipientID)
}
