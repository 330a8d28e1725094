package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/user"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
)

// mailTimeout bounds one background email request
const mailTimeout = 15 * time.Second

// Service handles notification business logic
type Service struct {
	repo   *Repository
	mailer *Mailer
	logger *zap.Logger
	now    func() time.Time
	sends  sync.WaitGroup
}

// NewService creates a new notification service. mailer may be nil.
func NewService(repo *Repository, mailer *Mailer, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a new notification
func (s *Service) Create(ctx context.Context, recipientID, message string, entityType, entityID *string) (*Notification, error) {
	n := &Notification{
		ID:                uuid.NewString(),
		RecipientID:       recipientID,
		Message:           message,
		RelatedEntityType: entityType,
		RelatedEntityID:   entityID,
		CreatedAt:         s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id string) (*Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

// ListByRecipientID retrieves all notifications for a user
func (s *Service) ListByRecipientID(ctx context.Context, recipientID string, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID string) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notification == nil {
		return ErrNotificationNotFound
	}
	if notification.RecipientID != userID {
		return ErrNotRecipient
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

// NotifyAssigned tells an assignee about a task: an in-app notification and,
// when a mail endpoint is configured, an email request sent in the background.
// Failures are logged and never returned.
func (s *Service) NotifyAssigned(ctx context.Context, assignee *user.User, t *task.Task) {
	if assignee == nil || t == nil {
		return
	}

	message := "You have been assigned to task: " + t.Title
	if t.AssignedBy != "" {
		message = t.AssignedBy + " assigned you to task: " + t.Title
	}
	entityType := EntityTask
	if _, err := s.Create(ctx, assignee.ID, message, &entityType, &t.ID); err != nil {
		s.logger.Warn("notification failed",
			zap.String("recipient_id", assignee.ID),
			zap.String("task_id", t.ID),
			zap.Error(err),
		)
	}

	if !s.mailer.Enabled() {
		s.logger.Debug("no notify endpoint configured, skipping email",
			zap.String("to", assignee.Email),
			zap.String("task_id", t.ID),
		)
		return
	}

	to, taskID, payload := assignee.Email, t.ID, t.ToResponse()
	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()
		defer cancel()
		if err := s.mailer.Send(mailCtx, to, payload); err != nil {
			s.logger.Warn("notify assignee failed",
				zap.String("to", to),
				zap.String("task_id", taskID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until background emails have finished
func (s *Service) Wait() {
	s.sends.Wait()
}
