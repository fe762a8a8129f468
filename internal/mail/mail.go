// Package mail delivers the plain-text account emails (verification and
// password reset links).
package mail

import (
	"context"
	"fmt"
	"sync"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/diewo77/freelance-desk/internal/config"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when a host is configured, otherwise a mailer
// that only logs the message.
func New(cfg config.MailConfig, log *zap.Logger) (Mailer, error) {
	if cfg.Host == "" {
		return &LogMailer{log: log}, nil
	}
	return NewSMTP(cfg)
}

// SMTP sends through an SMTP relay.
type SMTP struct {
	client *gomail.Client
	from   string
}

func NewSMTP(cfg config.MailConfig) (*SMTP, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log and keeps the last one, for
// development and tests.
type LogMailer struct {
	log  *zap.Logger
	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()
	if l.log != nil {
		l.log.Info("mail (not delivered)",
			zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	}
	return nil
}

// Sent returns a copy of every message handed to the mailer.
func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
