// Package log provides sender implementations that only log the outgoing
// message. Used for local development and as a stand-in when no provider is
// configured.
package log

import (
	"context"
	"log/slog"

	"github.com/ojmachado/leadflow/pkg/notify"
)

// Sender logs outgoing messages instead of delivering them. It implements
// both notify.EmailSender and notify.WhatsAppSender.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{logger: logger.With("module", "log_sender")}
}

func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "Email message",
		"to", to,
		"subject", subject,
		"body_length", len(body))

	return nil
}

func (s *Sender) SendHybrid(ctx context.Context, message notify.HybridMessage) error {
	s.logger.InfoContext(ctx, "WhatsApp message",
		"to", message.To,
		"template", message.TemplateName,
		"fallback_length", len(message.FallbackText))

	return nil
}
