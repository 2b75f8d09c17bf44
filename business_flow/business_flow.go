// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds caller information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSubject records the authenticated operator or trigger
func (cm *ClientMetadata) SetSubject(subject string) {
	cm.Subject = subject
}

const civilDateLayout = "2006-01-02"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}

// formatCivilDate renders an instant as its civil date in loc
func formatCivilDate(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(civilDateLayout)
	return &s
}

// ToAutoCampaignDTO converts a campaign model; window bounds are rendered as civil dates in loc
func ToAutoCampaignDTO(c models.AutoCampaign, loc *time.Location) dto.AutoCampaignDTO {
	addresses := []string(c.Addresses)
	if addresses == nil {
		addresses = []string{}
	}
	return dto.AutoCampaignDTO{
		ID:                    c.ID,
		Name:                  c.Name,
		Channel:               c.Channel.String(),
		IsActive:              c.Active(),
		CategoryID:            c.CategoryID,
		TemplateID:            c.TemplateID,
		Subject:               c.Subject,
		Body:                  c.Body,
		ContentType:           c.ContentType,
		FromIdentity:          c.FromIdentity,
		MaxPerDay:             c.MaxPerDay,
		SendHour:              c.SendHour,
		SendMinute:            c.SendMinute,
		DayOfMonth:            c.DayOfMonth,
		ScheduleMode:          c.ScheduleMode.String(),
		WindowStart:           formatCivilDate(c.WindowStart, loc),
		WindowEnd:             formatCivilDate(c.WindowEnd, loc),
		StopAfterDays:         c.StopAfterDays,
		Addresses:             addresses,
		AddressStrategy:       string(c.AddressStrategy),
		RetryFailedRecipients: c.RetryFailedRecipients,
		CreatedAt:             formatTimestamp(c.CreatedAt),
		UpdatedAt:             formatTimestamp(c.UpdatedAt),
	}
}

func ToCampaignRunDTO(r models.CampaignRun) dto.CampaignRunDTO {
	return dto.CampaignRunDTO{
		ID:           r.ID,
		UUID:         r.UUID.String(),
		PeriodKey:    r.PeriodKey,
		Scheme:       r.Scheme.String(),
		Forced:       r.Forced,
		Status:       string(r.Status),
		AddressUsed:  r.AddressUsed,
		Queued:       r.QueuedCount,
		Sent:         r.SentCount,
		Failed:       r.FailedCount,
		ErrorSummary: r.ErrorSummary,
		FiredAt:      formatTimestamp(r.FiredAt),
		CompletedAt:  formatTimestampPtr(r.CompletedAt),
	}
}

func ToSendLogDTO(l models.SendLog) dto.SendLogDTO {
	return dto.SendLogDTO{
		ID:                l.ID,
		RunID:             l.RunID,
		ContactID:         l.ContactID,
		Recipient:         l.Recipient,
		Status:            string(l.Status),
		AddressUsed:       l.AddressUsed,
		ProviderMessageID: l.ProviderMessageID,
		Error:             l.Error,
		CreatedAt:         formatTimestamp(l.CreatedAt),
		SentAt:            formatTimestampPtr(l.SentAt),
	}
}

// ToRunResultDTO converts a scheduler outcome for the API
func ToRunResultDTO(r *scheduler.RunResult) dto.RunResultDTO {
	out := dto.RunResultDTO{
		OK:         r.OK,
		Skipped:    r.Skipped,
		Reason:     r.Reason,
		Message:    r.Message,
		CampaignID: r.CampaignID,
		PeriodKey:  r.PeriodKey,
		Forced:     r.Forced,
		Queued:     r.Queued,
		Sent:       r.Sent,
		Failed:     r.Failed,
		LogErrors:  r.LogErrors,
		RunID:      r.RunID,
		RunUUID:    r.RunUUID,
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, dto.RecipientErrorDTO{Recipient: e.Recipient, Error: e.Error})
	}
	return out
}
