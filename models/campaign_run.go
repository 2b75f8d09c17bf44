package models

import (
	"time"

	"github.com/google/uuid"
)

// CampaignRunStatus tracks the dispatch progress of a run
type CampaignRunStatus string

const (
	CampaignRunStatusRunning     CampaignRunStatus = "running"
	CampaignRunStatusCompleted   CampaignRunStatus = "completed"
	CampaignRunStatusInterrupted CampaignRunStatus = "interrupted"
)

// CampaignRun proves that a campaign fired for one period.
// The (campaign_id, period_key) unique index is what prevents a second firing;
// rows are inserted before dispatch and counts are filled in afterwards.
type CampaignRun struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_campaign_runs_uuid" json:"uuid"`
	CampaignID   uint              `gorm:"not null;uniqueIndex:ux_campaign_runs_campaign_period,priority:1" json:"campaign_id"`
	PeriodKey    string            `gorm:"size:32;not null;uniqueIndex:ux_campaign_runs_campaign_period,priority:2" json:"period_key"`
	Scheme       ScheduleMode      `gorm:"type:varchar(32);not null" json:"scheme"`
	Forced       bool              `gorm:"not null;default:false" json:"forced"`
	Status       CampaignRunStatus `gorm:"size:16;not null;default:'running';index:idx_campaign_runs_status" json:"status"`
	AddressUsed  *string           `gorm:"size:512" json:"address_used,omitempty"`
	QueuedCount  int               `gorm:"not null;default:0" json:"queued_count"`
	SentCount    int               `gorm:"not null;default:0" json:"sent_count"`
	FailedCount  int               `gorm:"not null;default:0" json:"failed_count"`
	ErrorSummary *string           `gorm:"type:text" json:"error_summary,omitempty"`
	FiredAt      time.Time         `gorm:"not null;index:idx_campaign_runs_fired_at" json:"fired_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CampaignRun) TableName() string { return "campaign_runs" }

// CampaignRunCounts is the outcome written back after dispatch
type CampaignRunCounts struct {
	Queued       int
	Sent         int
	Failed       int
	Status       CampaignRunStatus
	AddressUsed  *string
	ErrorSummary *string
	CompletedAt  *time.Time
}

// CampaignRunFilter provides filter fields for repository queries
type CampaignRunFilter struct {
	ID          *uint
	CampaignID  *uint
	PeriodKey   *string
	Status      *CampaignRunStatus
	FiredAfter  *time.Time
	FiredBefore *time.Time
}
