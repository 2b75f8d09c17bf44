// Package services provides external service integrations and technical concerns like transports and tokens
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

// SMSSender handles SMS sending operations
type SMSSender interface {
	SendSMS(ctx context.Context, from, to, body string) (providerMessageID string, err error)
}

// SMSServiceImpl sends SMS through the configured HTTP relay
type SMSServiceImpl struct {
	relay *relayClient
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSSender {
	return &SMSServiceImpl{relay: newRelayClient(cfg.RelayURL, cfg.APIKey, cfg.Timeout)}
}

// SendSMS sends an SMS message
func (s *SMSServiceImpl) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	id, err := s.relay.post(ctx, relayRequest{To: to, From: from, Body: body})
	if err != nil {
		return "", fmt.Errorf("sms: %w", err)
	}
	return id, nil
}

// MockSMSService implements SMSSender for development and tests
type MockSMSService struct {
	mu           sync.Mutex
	logger       zerolog.Logger
	SentMessages []MockSMSMessage
}

// MockSMSMessage represents a mock SMS message
type MockSMSMessage struct {
	From   string
	To     string
	Body   string
	SentAt time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService(logger zerolog.Logger) *MockSMSService {
	return &MockSMSService{
		logger:       logger.With().Str("component", "mock_sms").Logger(),
		SentMessages: make([]MockSMSMessage, 0),
	}
}

func (m *MockSMSService) SendSMS(_ context.Context, from, to, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, MockSMSMessage{From: from, To: to, Body: body, SentAt: utils.UTCNow()})
	id := fmt.Sprintf("mock-sms-%d", len(m.SentMessages))
	m.logger.Info().Str("to", to).Str("id", id).Msg("mock sms sent")
	return id, nil
}

// GetSentMessages returns all sent mock messages
func (m *MockSMSService) GetSentMessages() []MockSMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockSMSMessage(nil), m.SentMessages...)
}
