package models

import "time"

// SendLogStatus enumerates the state of a per-recipient delivery
type SendLogStatus string

const (
	SendLogStatusQueued SendLogStatus = "queued"
	SendLogStatusSent   SendLogStatus = "sent"
	SendLogStatusFailed SendLogStatus = "failed"
)

// SendLog records one delivery attempt to one contact under a campaign run
type SendLog struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	RunID             uint          `gorm:"not null;index:idx_send_logs_run_id" json:"run_id"`
	CampaignID        uint          `gorm:"not null;index:idx_send_logs_campaign_contact,priority:1" json:"campaign_id"`
	ContactID         uint          `gorm:"not null;index:idx_send_logs_campaign_contact,priority:2" json:"contact_id"`
	Channel           Channel       `gorm:"type:varchar(16);not null" json:"channel"`
	Recipient         string        `gorm:"size:320;not null" json:"recipient"`
	AddressUsed       *string       `gorm:"size:512" json:"address_used,omitempty"`
	Subject           *string       `gorm:"type:text" json:"subject,omitempty"`
	Status            SendLogStatus `gorm:"size:16;not null;default:'queued';index:idx_send_logs_status" json:"status"`
	ProviderMessageID *string       `gorm:"size:255" json:"provider_message_id,omitempty"`
	Error             *string       `gorm:"type:text" json:"error,omitempty"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_send_logs_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SendLog) TableName() string { return "send_logs" }

// SendLogFilter provides filter fields for repository queries
type SendLogFilter struct {
	ID         *uint
	RunID      *uint
	CampaignID *uint
	ContactID  *uint
	Status     *SendLogStatus
	Statuses   []SendLogStatus
}
