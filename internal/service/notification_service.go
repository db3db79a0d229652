package service

import (
	"context"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EmailEnqueuer is satisfied by *worker.Dispatcher.
type EmailEnqueuer interface {
	EnqueueNotificationEmail(ctx context.Context, payload worker.NotificationEmailPayload) error
}

// NotificationService stores in-app notifications and mirrors them by e-mail
// when the recipient has an address and a dispatcher is configured.
// Delivery failures never fail the business operation that triggered them.
type NotificationService interface {
	Notify(ctx context.Context, recipients []uuid.UUID, kind, subject, body string, jobOrderID *uuid.UUID)
	NotifyRole(ctx context.Context, role, kind, subject, body string, jobOrderID *uuid.UUID)
	List(ctx context.Context, actor Actor) ([]dto.NotificationResponse, error)
}

type notificationService struct {
	repo   repository.NotificationRepository
	users  repository.UserRepository
	emails EmailEnqueuer
	bus    changebus.Publisher
}

// NewNotificationService accepts a nil emails for deployments without redis.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, emails EmailEnqueuer, bus changebus.Publisher) NotificationService {
	return &notificationService{repo: repo, users: users, emails: emails, bus: bus}
}

func (s *notificationService) Notify(ctx context.Context, recipients []uuid.UUID, kind, subject, body string, jobOrderID *uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(recipients))
	for _, id := range recipients {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		s.notifyOne(ctx, id, kind, subject, body, jobOrderID)
	}
}

func (s *notificationService) NotifyRole(ctx context.Context, role, kind, subject, body string, jobOrderID *uuid.UUID) {
	users, err := s.users.List(ctx, role)
	if err != nil {
		log.Error().Err(err).Str("role", role).Msg("notification: list recipients failed")
		return
	}
	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	s.Notify(ctx, ids, kind, subject, body, jobOrderID)
}

func (s *notificationService) notifyOne(ctx context.Context, recipientID uuid.UUID, kind, subject, body string, jobOrderID *uuid.UUID) {
	status := model.EmailSkipped
	if s.emails != nil {
		if u, err := s.users.FindByID(ctx, recipientID); err == nil && u.Email != nil && *u.Email != "" {
			status = model.EmailQueued
		}
	}
	n := &model.Notification{
		RecipientID: recipientID,
		Kind:        kind,
		Subject:     subject,
		Body:        body,
		JobOrderID:  jobOrderID,
		EmailStatus: status,
	}
	if err := s.repo.Create(ctx, nil, n); err != nil {
		log.Error().Err(err).Str("kind", kind).Str("recipient", recipientID.String()).Msg("notification: persist failed")
		return
	}
	s.bus.Publish(changebus.TopicNotifications, n.ID.String(), "created")

	if status != model.EmailQueued {
		return
	}
	if err := s.emails.EnqueueNotificationEmail(ctx, worker.NotificationEmailPayload{NotificationID: n.ID.String()}); err != nil {
		// leave it to the retry sweep
		msg := err.Error()
		n.EmailStatus = model.EmailFailed
		n.LastError = &msg
		n.NextRetryAt = ptr(n.CreatedAt.Add(worker.RetryBackoff(1)))
		_ = s.repo.UpdateDelivery(ctx, n)
		log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("notification: enqueue e-mail failed")
	}
}

func (s *notificationService) List(ctx context.Context, actor Actor) ([]dto.NotificationResponse, error) {
	ns, err := s.repo.ListByRecipient(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.NotificationResponse, len(ns))
	for i := range ns {
		resp[i] = notificationToResponse(&ns[i])
	}
	return resp, nil
}
