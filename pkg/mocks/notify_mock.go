package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ojmachado/leadflow/pkg/notify"
)

// MockEmailSender is a mock implementation of the notify.EmailSender
// interface.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)

	return args.Error(0)
}

// MockWhatsAppSender is a mock implementation of the notify.WhatsAppSender
// interface.
type MockWhatsAppSender struct {
	mock.Mock
}

func (m *MockWhatsAppSender) SendHybrid(ctx context.Context, message notify.HybridMessage) error {
	args := m.Called(ctx, message)

	return args.Error(0)
}
