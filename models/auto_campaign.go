package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
)

// Channel is the delivery medium of an auto campaign
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) String() string { return string(c) }

// Valid checks if the channel is known
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Channel
func (c *Channel) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*c = ""
	case string:
		*c = Channel(v)
	case []byte:
		*c = Channel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Channel", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for Channel
func (c Channel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid Channel: %s", c)
	}
	return string(c), nil
}

// ScheduleMode selects how a campaign derives its period key
type ScheduleMode string

const (
	// ScheduleModeDaily fires at most once per civil date
	ScheduleModeDaily ScheduleMode = "daily"
	// ScheduleModeMonthlyBucket fires once per weekday per month, one fifth of the audience each time
	ScheduleModeMonthlyBucket ScheduleMode = "monthly_bucket"
	// ScheduleModeWeeklyBucket fires once per weekday per ISO week, one fifth of the audience each time
	ScheduleModeWeeklyBucket ScheduleMode = "weekly_bucket"
)

func (m ScheduleMode) String() string { return string(m) }

func (m ScheduleMode) Valid() bool {
	switch m {
	case ScheduleModeDaily, ScheduleModeMonthlyBucket, ScheduleModeWeeklyBucket:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ScheduleMode
func (m *ScheduleMode) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = ""
	case string:
		*m = ScheduleMode(v)
	case []byte:
		*m = ScheduleMode(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleMode", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for ScheduleMode
func (m ScheduleMode) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid ScheduleMode: %s", m)
	}
	return string(m), nil
}

// AddressStrategy selects how an entry of the address pool is assigned
type AddressStrategy string

const (
	AddressStrategyHashed   AddressStrategy = "hashed"
	AddressStrategyRandom   AddressStrategy = "random"
	AddressStrategyRotating AddressStrategy = "rotating"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeHTML = "text/html"
)

var addressPlaceholder = regexp.MustCompile(`\{\{\s*(address|project)\s*\}\}`)

// AutoCampaign is a recurring campaign definition evaluated by the scheduler
type AutoCampaign struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	Name                  string          `gorm:"size:255;not null" json:"name"`
	Channel               Channel         `gorm:"type:varchar(16);not null;index:idx_auto_campaigns_channel" json:"channel"`
	IsActive              *bool           `gorm:"not null;default:false;index:idx_auto_campaigns_is_active" json:"is_active"`
	CategoryID            uint            `gorm:"not null;index:idx_auto_campaigns_category_id" json:"category_id"`
	TemplateID            *uint           `json:"template_id,omitempty"`
	Subject               *string         `gorm:"type:text" json:"subject,omitempty"`
	Body                  *string         `gorm:"type:text" json:"body,omitempty"`
	ContentType           string          `gorm:"size:32;not null;default:'text/plain'" json:"content_type"`
	FromIdentity          *string         `gorm:"size:255" json:"from_identity,omitempty"`
	MaxPerDay             int             `gorm:"not null;default:45" json:"max_per_day"`
	SendHour              *int            `json:"send_hour,omitempty"`
	SendMinute            *int            `json:"send_minute,omitempty"`
	DayOfMonth            *int            `json:"day_of_month,omitempty"`
	ScheduleMode          ScheduleMode    `gorm:"type:varchar(32);not null;default:'daily'" json:"schedule_mode"`
	WindowStart           *time.Time      `json:"window_start,omitempty"`
	WindowEnd             *time.Time      `json:"window_end,omitempty"`
	StopAfterDays         *int            `json:"stop_after_days,omitempty"`
	Addresses             pq.StringArray  `gorm:"type:text[]" json:"addresses"`
	AddressStrategy       AddressStrategy `gorm:"size:16;not null;default:'hashed'" json:"address_strategy"`
	AddressCursor         int             `gorm:"not null;default:0" json:"address_cursor"`
	RetryFailedRecipients *bool           `json:"retry_failed_recipients,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AutoCampaign) TableName() string { return "auto_campaigns" }

// Active reports the campaign's active flag
func (c *AutoCampaign) Active() bool {
	return c.IsActive != nil && *c.IsActive
}

// UsesAddressPool reports whether the given content references a pool entry
func UsesAddressPool(parts ...string) bool {
	for _, p := range parts {
		if addressPlaceholder.MatchString(p) {
			return true
		}
	}
	return false
}

// AutoCampaignFilter provides filter fields for repository queries
type AutoCampaignFilter struct {
	ID         *uint
	Channel    *Channel
	IsActive   *bool
	CategoryID *uint
}
