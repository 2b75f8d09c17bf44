package dto

// UpsertAutoCampaignRequest creates a campaign when ID is nil, otherwise updates it.
// Numeric scheduling fields are clamped to their ranges rather than rejected.
type UpsertAutoCampaignRequest struct {
	ID                    *uint    `json:"id,omitempty"`
	Name                  string   `json:"name" validate:"required,max=255"`
	Channel               string   `json:"channel" validate:"required,oneof=email sms"`
	IsActive              *bool    `json:"isActive,omitempty"`
	CategoryID            uint     `json:"categoryId" validate:"required,gt=0"`
	TemplateID            *uint    `json:"templateId,omitempty" validate:"omitempty,gt=0"`
	Subject               *string  `json:"subject,omitempty" validate:"omitempty,max=998"`
	Body                  *string  `json:"body,omitempty"`
	ContentType           string   `json:"contentType,omitempty" validate:"omitempty,oneof=text/plain text/html"`
	FromIdentity          *string  `json:"fromIdentity,omitempty" validate:"omitempty,max=255"`
	MaxPerDay             *int     `json:"maxPerDay,omitempty"`
	SendHour              *int     `json:"sendHour,omitempty"`
	SendMinute            *int     `json:"sendMinute,omitempty"`
	DayOfMonth            *int     `json:"dayOfMonth,omitempty"`
	ScheduleMode          string   `json:"scheduleMode,omitempty" validate:"omitempty,oneof=daily monthly_bucket weekly_bucket"`
	WindowStart           *string  `json:"windowStart,omitempty" validate:"omitempty,datetime=2006-01-02"`
	WindowEnd             *string  `json:"windowEnd,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StopAfterDays         *int     `json:"stopAfterDays,omitempty"`
	Addresses             []string `json:"addresses,omitempty" validate:"omitempty,dive,max=512"`
	AddressStrategy       string   `json:"addressStrategy,omitempty" validate:"omitempty,oneof=hashed random rotating"`
	RetryFailedRecipients *bool    `json:"retryFailedRecipients,omitempty"`
}

// ToggleAutoCampaignRequest switches a campaign on or off
type ToggleAutoCampaignRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// TestSendRequest sends one rendered message outside of any run
type TestSendRequest struct {
	To        string `json:"to" validate:"required,max=320"`
	FirstName string `json:"firstName,omitempty" validate:"max=255"`
}

// ListAutoCampaignsRequest pages through campaigns, newest first
type ListAutoCampaignsRequest struct {
	Page    int     `json:"page" validate:"min=1"`
	Limit   int     `json:"limit" validate:"min=1,max=100"`
	Runs    int     `json:"runs" validate:"min=0,max=100"`
	Channel *string `json:"channel,omitempty" validate:"omitempty,oneof=email sms"`
	Active  *bool   `json:"active,omitempty"`
}

type AutoCampaignListItemDTO struct {
	Campaign   AutoCampaignDTO  `json:"campaign"`
	RecentRuns []CampaignRunDTO `json:"recentRuns"`
}

type ListAutoCampaignsResponse struct {
	Items      []AutoCampaignListItemDTO `json:"items"`
	Pagination PaginationDTO             `json:"pagination"`
}

type PaginationDTO struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type TestSendResponse struct {
	To                string `json:"to"`
	ProviderMessageID string `json:"providerMessageId"`
}

type AutoCampaignDTO struct {
	ID                    uint     `json:"id"`
	Name                  string   `json:"name"`
	Channel               string   `json:"channel"`
	IsActive              bool     `json:"isActive"`
	CategoryID            uint     `json:"categoryId"`
	TemplateID            *uint    `json:"templateId,omitempty"`
	Subject               *string  `json:"subject,omitempty"`
	Body                  *string  `json:"body,omitempty"`
	ContentType           string   `json:"contentType"`
	FromIdentity          *string  `json:"fromIdentity,omitempty"`
	MaxPerDay             int      `json:"maxPerDay"`
	SendHour              *int     `json:"sendHour,omitempty"`
	SendMinute            *int     `json:"sendMinute,omitempty"`
	DayOfMonth            *int     `json:"dayOfMonth,omitempty"`
	ScheduleMode          string   `json:"scheduleMode"`
	WindowStart           *string  `json:"windowStart,omitempty"`
	WindowEnd             *string  `json:"windowEnd,omitempty"`
	StopAfterDays         *int     `json:"stopAfterDays,omitempty"`
	Addresses             []string `json:"addresses"`
	AddressStrategy       string   `json:"addressStrategy"`
	RetryFailedRecipients *bool    `json:"retryFailedRecipients,omitempty"`
	CreatedAt             string   `json:"createdAt"`
	UpdatedAt             string   `json:"updatedAt"`
}

type CampaignRunDTO struct {
	ID           uint    `json:"id"`
	UUID         string  `json:"uuid"`
	PeriodKey    string  `json:"periodKey"`
	Scheme       string  `json:"scheme"`
	Forced       bool    `json:"forced"`
	Status       string  `json:"status"`
	AddressUsed  *string `json:"addressUsed,omitempty"`
	Queued       int     `json:"queued"`
	Sent         int     `json:"sent"`
	Failed       int     `json:"failed"`
	ErrorSummary *string `json:"errorSummary,omitempty"`
	FiredAt      string  `json:"firedAt"`
	CompletedAt  *string `json:"completedAt,omitempty"`
}

type SendLogDTO struct {
	ID                uint    `json:"id"`
	RunID             uint    `json:"runId"`
	ContactID         uint    `json:"contactId"`
	Recipient         string  `json:"recipient"`
	Status            string  `json:"status"`
	AddressUsed       *string `json:"addressUsed,omitempty"`
	ProviderMessageID *string `json:"providerMessageId,omitempty"`
	Error             *string `json:"error,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	SentAt            *string `json:"sentAt,omitempty"`
}

// NextCheckDTO previews what a non-forced trigger would decide right now
type NextCheckDTO struct {
	Fire      bool   `json:"fire"`
	Reason    string `json:"reason,omitempty"`
	PeriodKey string `json:"periodKey,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CivilNow  string `json:"civilNow"`
}

type AutoCampaignStateResponse struct {
	Campaign          AutoCampaignDTO  `json:"campaign"`
	Runs              []CampaignRunDTO `json:"runs"`
	Logs              []SendLogDTO     `json:"logs"`
	Totals            map[string]int64 `json:"totals"`
	RemainingAudience int              `json:"remainingAudience"`
	NextCheck         NextCheckDTO     `json:"nextCheck"`
}

type RecipientErrorDTO struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// RunResultDTO is the per campaign outcome of a trigger
type RunResultDTO struct {
	OK         bool                `json:"ok"`
	Skipped    bool                `json:"skipped"`
	Reason     string              `json:"reason,omitempty"`
	Message    string              `json:"message,omitempty"`
	CampaignID uint                `json:"campaignId"`
	PeriodKey  string              `json:"periodKey,omitempty"`
	Forced     bool                `json:"forced"`
	Queued     int                 `json:"queued"`
	Sent       int                 `json:"sent"`
	Failed     int                 `json:"failed"`
	LogErrors  int                 `json:"logErrors,omitempty"`
	Errors     []RecipientErrorDTO `json:"errors,omitempty"`
	RunID      *uint               `json:"runId,omitempty"`
	RunUUID    string              `json:"runUuid,omitempty"`
}

// RunDueResponse aggregates a trigger over all active campaigns
type RunDueResponse struct {
	OK        bool           `json:"ok"`
	Forced    bool           `json:"forced"`
	Campaigns int            `json:"campaigns"`
	Fired     int            `json:"fired"`
	Sent      int            `json:"sent"`
	Failed    int            `json:"failed"`
	Results   []RunResultDTO `json:"results"`
}
