package scheduler

import (
	"context"

	"github.com/cedricperpignand1/bbbmailer/models"
)

// Message is one rendered delivery
type Message struct {
	Channel     models.Channel
	To          string
	From        string
	Subject     string
	Body        string
	ContentType string
}

// Transport delivers a message and returns the provider message id.
// Non-2xx provider answers are errors.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}
