// Package mailer delivers outbound account emails such as password reset
// links.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Providers accepted by New.
const (
	ProviderLog  = "log"
	ProviderSMTP = "smtp"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a single message. Implementations must honour ctx
// cancellation for network calls.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures a Mailer.
type Config struct {
	Provider string
	From     string
	SMTP     SMTPConfig
}

// New returns the mailer for cfg.Provider. An empty provider falls back to
// the log mailer.
func New(cfg Config, logger *slog.Logger) (Mailer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLog:
		return NewLogMailer(logger, cfg.From), nil
	case ProviderSMTP:
		return NewSMTPMailer(cfg.SMTP, cfg.From)
	default:
		return nil, fmt.Errorf("mailer: unknown provider %q", cfg.Provider)
	}
}

// LogMailer writes messages to the logger instead of delivering them. It is
// the development default.
type LogMailer struct {
	logger *slog.Logger
	from   string
}

func NewLogMailer(logger *slog.Logger, from string) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger, from: from}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "email sent (logged)",
		"from", m.from,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
