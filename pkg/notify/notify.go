// Package notify defines the outbound message sender contracts the funnel
// engine dispatches through. Concrete provider integrations live outside this
// repository; the engine only needs the send operations.
package notify

import "context"

// ForceFallbackTemplate, used as a hybrid message's template name, instructs
// the WhatsApp provider to skip template matching and deliver the fallback
// text as a plain message.
const ForceFallbackTemplate = "FORCE_FALLBACK"

// EmailSender delivers one email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HybridMessage is a WhatsApp message that prefers a provider template and
// falls back to plain text.
type HybridMessage struct {
	To           string   `json:"to"`
	TemplateName string   `json:"template_name"`
	Variables    []string `json:"variables"`
	FallbackText string   `json:"fallback_text"`
}

// WhatsAppSender delivers one WhatsApp message.
type WhatsAppSender interface {
	SendHybrid(ctx context.Context, message HybridMessage) error
}
