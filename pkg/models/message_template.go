package models

// MessageTemplate is an internally managed WhatsApp message template referenced
// by WHATSAPP nodes through their waTemplateId.
type MessageTemplate struct {
	ID      string `json:"id"`
	Title   string `json:"title"   validate:"required"`
	Content string `json:"content" validate:"required"`
	Type    string `json:"type"`
}
