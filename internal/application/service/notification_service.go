package service

import (
	"context"
	"fmt"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/event"
)

// Unread is the shape pushed to live clients and returned by the pull
// fallback: the same idempotent snapshot either way.
type Unread struct {
	Count int                    `json:"count"`
	List  []*entity.Notification `json:"list"`
}

// NotificationService serves unread notifications per user and handles the
// live-push side effect after committed transitions.
type NotificationService interface {
	// Unread returns the unread count and list for a user, including the
	// pool notifications of the tier the user belongs to (tier 0 = none)
	Unread(ctx context.Context, userID string, tier int) (*Unread, error)

	// MarkRead marks the given notifications read; already-read ones are a no-op
	MarkRead(ctx context.Context, userID string, tier int, ids []int64) error

	// MarkAllRead marks everything addressed to the user (and tier pool) read
	MarkAllRead(ctx context.Context, userID string, tier int) error

	// HandleCaseTransitioned is the dispatcher handler that pushes a fresh
	// {count, list} frame to every recipient of a committed transition
	HandleCaseTransitioned(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifRepo port.NotificationRepository
	pusher    port.Pusher
	listLimit int
	logger    Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifRepo port.NotificationRepository, pusher port.Pusher, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifRepo: notifRepo,
		pusher:    pusher,
		listLimit: 50,
		logger:    logger,
	}
}

// recipientKeys expands a user into the recipient keys addressed to them
func recipientKeys(userID string, tier int) []string {
	keys := []string{userID}
	if tier > 0 {
		keys = append(keys, entity.PoolRecipient(tier))
	}
	return keys
}

func (s *notificationServiceImpl) Unread(ctx context.Context, userID string, tier int) (*Unread, error) {
	keys := recipientKeys(userID, tier)

	count, err := s.notifRepo.CountUnread(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	list, err := s.notifRepo.ListUnread(ctx, keys, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	return &Unread{Count: count, List: list}, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID string, tier int, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.notifRepo.MarkRead(ctx, ids, recipientKeys(userID, tier)); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID string, tier int) error {
	if err := s.notifRepo.MarkAllRead(ctx, recipientKeys(userID, tier)); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// HandleCaseTransitioned pushes fresh unread snapshots to the recipients named
// in the event payload. Push failures are logged and dropped: the data is
// already durable and clients reconcile via the pull endpoint.
func (s *notificationServiceImpl) HandleCaseTransitioned(ctx context.Context, evt *event.Event) error {
	if s.pusher == nil {
		return nil
	}

	action := evt.GetPayloadString("action")
	recipients, _ := evt.Payload["recipients"].([]string)
	for _, recipient := range recipients {
		count, err := s.notifRepo.CountUnread(ctx, []string{recipient})
		if err != nil {
			s.logger.Error("Failed to count unread for push", "error", err, "recipient", recipient)
			continue
		}
		list, err := s.notifRepo.ListUnread(ctx, []string{recipient}, s.listLimit)
		if err != nil {
			s.logger.Error("Failed to list unread for push", "error", err, "recipient", recipient)
			continue
		}

		s.pusher.Push(recipient, &Unread{Count: count, List: list})
		s.logger.Info("Pushed unread snapshot",
			"recipient", recipient,
			"case_id", evt.CaseID,
			"action", action,
			"correlation_id", evt.CorrelationID,
		)
	}

	return nil
}
