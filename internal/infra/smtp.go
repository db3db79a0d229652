package infra

import (
	"fmt"
	"net/smtp"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends notification e-mails through the configured SMTP relay.
// Every send goes through a circuit breaker so a dead relay fails fast and
// the notification is left for the retry job.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	from     string
	cb       *CircuitBreaker
	send     func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from:     cfg.SMTPUser,
		cb:       NewCircuitBreaker(DefaultCBConfig()),
		send:     func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// Enabled is false when no SMTP host is configured; notifications are then
// stored in-app only.
func (m *Mailer) Enabled() bool { return m != nil && m.host != "" }

// Breaker exposes the mailer circuit breaker state for the health endpoint.
func (m *Mailer) Breaker() *CircuitBreaker { return m.cb }

// Send delivers a plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer: SMTP not configured")
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return m.cb.Execute(func() error { return m.send(e, m.addr, auth) })
}
