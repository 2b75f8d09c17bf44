package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/cedricperpignand1/bbbmailer/models"
)

// TemplateStore resolves a stored template
type TemplateStore interface {
	ByID(ctx context.Context, id uint) (*models.Template, error)
}

// Content is the unrendered message of a campaign
type Content struct {
	Subject     string
	Body        string
	ContentType string
}

// ResolveContent picks the template when referenced, otherwise the inline fields.
// Email needs subject and body, sms needs a body.
func ResolveContent(ctx context.Context, templates TemplateStore, c *models.AutoCampaign) (Content, error) {
	var out Content
	if c.TemplateID != nil {
		t, err := templates.ByID(ctx, *c.TemplateID)
		if err != nil {
			return Content{}, fmt.Errorf("load template %d: %w", *c.TemplateID, err)
		}
		if t == nil {
			return Content{}, newConfigError(CodeTemplateMissing, "template %d of campaign %d does not exist", *c.TemplateID, c.ID)
		}
		out = Content{Subject: t.Subject, Body: t.Body, ContentType: t.ContentType}
		if out.ContentType == "" {
			out.ContentType = models.ContentTypeHTML
		}
	} else {
		out.ContentType = c.ContentType
		if c.Subject != nil {
			out.Subject = *c.Subject
		}
		if c.Body != nil {
			out.Body = *c.Body
		}
		if out.ContentType == "" {
			out.ContentType = models.ContentTypeText
		}
	}

	if strings.TrimSpace(out.Body) == "" {
		return Content{}, newConfigError(CodeTemplateMissing, "campaign %d has no body", c.ID)
	}
	if c.Channel == models.ChannelEmail && strings.TrimSpace(out.Subject) == "" {
		return Content{}, newConfigError(CodeTemplateMissing, "email campaign %d has no subject", c.ID)
	}
	if c.Channel == models.ChannelSMS {
		out.Subject = ""
		out.ContentType = models.ContentTypeText
	}
	return out, nil
}

// ResolveSender returns the campaign identity or the channel default
func ResolveSender(c *models.AutoCampaign, emailFrom, smsFrom string) (string, error) {
	if c.FromIdentity != nil && strings.TrimSpace(*c.FromIdentity) != "" {
		return strings.TrimSpace(*c.FromIdentity), nil
	}
	def := emailFrom
	if c.Channel == models.ChannelSMS {
		def = smsFrom
	}
	if strings.TrimSpace(def) == "" {
		return "", newConfigError(CodeSenderMissing, "campaign %d has no sender identity for %s", c.ID, c.Channel)
	}
	return def, nil
}
