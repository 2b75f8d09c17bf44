package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/models"
)

// NotificationService routes scheduler messages to the channel sender
type NotificationService struct {
	email EmailSender
	sms   SMSSender
}

// NewNotificationService creates a new notification service
func NewNotificationService(email EmailSender, sms SMSSender) *NotificationService {
	return &NotificationService{email: email, sms: sms}
}

// Send implements scheduler.Transport
func (s *NotificationService) Send(ctx context.Context, msg scheduler.Message) (string, error) {
	switch msg.Channel {
	case models.ChannelEmail:
		if s.email == nil {
			return "", fmt.Errorf("email provider not configured")
		}
		if _, err := mail.ParseAddress(msg.To); err != nil {
			return "", fmt.Errorf("invalid email address %q: %w", msg.To, err)
		}
		return s.email.SendEmail(ctx, EmailMessage{
			From:        msg.From,
			To:          msg.To,
			Subject:     msg.Subject,
			Body:        msg.Body,
			ContentType: msg.ContentType,
		})
	case models.ChannelSMS:
		if s.sms == nil {
			return "", fmt.Errorf("SMS provider not configured")
		}
		if !validPhone(msg.To) {
			return "", fmt.Errorf("invalid phone number: %s", msg.To)
		}
		return s.sms.SendSMS(ctx, msg.From, msg.To, msg.Body)
	default:
		return "", fmt.Errorf("unsupported channel %q", msg.Channel)
	}
}

// validPhone accepts E.164 style numbers
func validPhone(p string) bool {
	if !strings.HasPrefix(p, "+") || len(p) < 8 || len(p) > 16 {
		return false
	}
	for _, r := range p[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
