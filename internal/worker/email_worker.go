package worker

// email_worker.go
// Delivers notification e-mails. Failures are rescheduled with exponential
// backoff on the notification row itself; the scheduler picks them up again.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MaxEmailAttempts is the number of deliveries tried before the notification is buried as a dead letter.
const MaxEmailAttempts = 5

// MailSender is satisfied by *infra.Mailer.
type MailSender interface {
	Send(to, subject, body string) error
}

// EmailWorker processes jobs from QueueNotificationEmail.
type EmailWorker struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	mailer        MailSender
	rdb           *redis.Client
	now           func() time.Time
}

func NewEmailWorker(notifications repository.NotificationRepository, users repository.UserRepository, mailer MailSender, rdb *redis.Client) *EmailWorker {
	return &EmailWorker{notifications: notifications, users: users, mailer: mailer, rdb: rdb, now: time.Now}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload NotificationEmailPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	id, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		return fmt.Errorf("email_worker: invalid notification id: %w", err)
	}
	n, err := w.notifications.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("email_worker: load notification: %w", err)
	}
	if n.EmailStatus == model.EmailSent {
		return nil
	}
	return w.Deliver(ctx, n)
}

// Deliver sends n and records the outcome on the row.
func (w *EmailWorker) Deliver(ctx context.Context, n *model.Notification) error {
	user, err := w.users.FindByID(ctx, n.RecipientID)
	if err != nil || user.Email == nil || *user.Email == "" {
		n.EmailStatus = model.EmailSkipped
		n.NextRetryAt = nil
		log.Warn().Str("notification_id", n.ID.String()).Msg("email_worker: recipient has no e-mail, skipping")
		return w.notifications.UpdateDelivery(ctx, n)
	}

	n.Attempts++
	sendErr := w.mailer.Send(*user.Email, n.Subject, n.Body)
	if sendErr == nil {
		n.EmailStatus = model.EmailSent
		n.NextRetryAt = nil
		n.LastError = nil
		log.Info().Str("notification_id", n.ID.String()).Str("to", *user.Email).Msg("email_worker: notification sent")
		return w.notifications.UpdateDelivery(ctx, n)
	}

	msg := sendErr.Error()
	n.EmailStatus = model.EmailFailed
	n.LastError = &msg
	if n.Attempts >= MaxEmailAttempts {
		n.NextRetryAt = nil
		payload, _ := json.Marshal(NotificationEmailPayload{NotificationID: n.ID.String()})
		Bury(ctx, w.rdb, DeadLetter{
			Queue:    QueueNotificationEmail,
			JobType:  JobNotificationEmail,
			Payload:  payload,
			Reason:   fmt.Sprintf("max attempts (%d) exceeded: %s", MaxEmailAttempts, msg),
			Attempts: n.Attempts,
		})
	} else {
		next := w.now().Add(RetryBackoff(n.Attempts))
		n.NextRetryAt = &next
		log.Warn().
			Str("notification_id", n.ID.String()).
			Int("attempts", n.Attempts).
			Time("next_retry_at", next).
			Msg("email_worker: delivery failed, scheduled next attempt")
	}
	if err := w.notifications.UpdateDelivery(ctx, n); err != nil {
		return err
	}
	return sendErr
}

// RetryBackoff returns 30s, 1m, 2m, 4m ... capped at 30m.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 30 * time.Second << uint(attempt-1)
	if d > 30*time.Minute || d <= 0 {
		d = 30 * time.Minute
	}
	return d
}
