package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cedricperpignand1/bbbmailer/config"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// EmailMessage is one outgoing email
type EmailMessage struct {
	From        string
	To          string
	Subject     string
	Body        string
	ContentType string
}

// EmailSender handles email sending operations
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (providerMessageID string, err error)
}

// EmailServiceImpl sends email through the configured HTTP relay
type EmailServiceImpl struct {
	relay    *relayClient
	fromName string
}

func NewEmailService(cfg *config.EmailConfig) EmailSender {
	return &EmailServiceImpl{
		relay:    newRelayClient(cfg.RelayURL, cfg.APIKey, cfg.Timeout),
		fromName: cfg.FromName,
	}
}

func (s *EmailServiceImpl) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	from := msg.From
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, msg.From)
	}
	id, err := s.relay.post(ctx, relayRequest{
		To:          msg.To,
		From:        from,
		Subject:     msg.Subject,
		Body:        msg.Body,
		ContentType: msg.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("email: %w", err)
	}
	return id, nil
}

// MockEmailService records messages instead of sending them
type MockEmailService struct {
	mu     sync.Mutex
	logger zerolog.Logger
	Sent   []MockEmailMessage
}

type MockEmailMessage struct {
	EmailMessage
	SentAt time.Time
}

func NewMockEmailService(logger zerolog.Logger) *MockEmailService {
	return &MockEmailService{logger: logger.With().Str("component", "mock_email").Logger()}
}

func (m *MockEmailService) SendEmail(_ context.Context, msg EmailMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, MockEmailMessage{EmailMessage: msg, SentAt: utils.UTCNow()})
	id := fmt.Sprintf("mock-email-%d", len(m.Sent))
	m.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("id", id).Msg("mock email sent")
	return id, nil
}

func (m *MockEmailService) GetSentMessages() []MockEmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockEmailMessage(nil), m.Sent...)
}
