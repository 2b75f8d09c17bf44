// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/cedricperpignand1/bbbmailer/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AutoCampaignRepository defines operations for scheduled campaign definitions
type AutoCampaignRepository interface {
	Repository[models.AutoCampaign, models.AutoCampaignFilter]
	ListActive(ctx context.Context) ([]*models.AutoCampaign, error)
	Update(ctx context.Context, campaign *models.AutoCampaign) error
	SetActive(ctx context.Context, id uint, active bool, windowStart, windowEnd *time.Time) error
	AdvanceAddressCursor(ctx context.Context, id uint) error
}

// CampaignRunRepository defines operations for run records
type CampaignRunRepository interface {
	Repository[models.CampaignRun, models.CampaignRunFilter]
	ByPeriod(ctx context.Context, campaignID uint, periodKey string) (*models.CampaignRun, error)
	// InsertIfAbsent relies on the (campaign_id, period_key) unique index; when the row
	// already exists it reports created=false together with the stored row.
	InsertIfAbsent(ctx context.Context, run *models.CampaignRun) (created bool, existing *models.CampaignRun, err error)
	UpdateCounts(ctx context.Context, runID uint, counts models.CampaignRunCounts) error
	ListRecent(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignRun, error)
}

// SendLogRepository defines operations for per-recipient send logs
type SendLogRepository interface {
	Repository[models.SendLog, models.SendLogFilter]
	MarkSent(ctx context.Context, id uint, providerMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uint, errText string) error
	ContactIDsWithStatus(ctx context.Context, campaignID uint, statuses []models.SendLogStatus) ([]uint, error)
	CountByStatus(ctx context.Context, campaignID uint) (map[models.SendLogStatus]int64, error)
	ListByRun(ctx context.Context, runID uint) ([]*models.SendLog, error)
}

// ContactRepository defines operations for audience contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ListActiveByCategory(ctx context.Context, categoryID uint) ([]*models.Contact, error)
}

// TemplateRepository defines operations for stored templates
type TemplateRepository interface {
	ByID(ctx context.Context, id uint) (*models.Template, error)
	Save(ctx context.Context, entity *models.Template) error
}
