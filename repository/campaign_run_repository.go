package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cedricperpignand1/bbbmailer/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRunRepositoryImpl implements CampaignRunRepository
type CampaignRunRepositoryImpl struct {
	*BaseRepository[models.CampaignRun, models.CampaignRunFilter]
}

func NewCampaignRunRepository(db *gorm.DB) CampaignRunRepository {
	return &CampaignRunRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignRun, models.CampaignRunFilter](db)}
}

func (r *CampaignRunRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignRunFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.PeriodKey != nil {
		db = db.Where("period_key = ?", *f.PeriodKey)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.FiredAfter != nil {
		db = db.Where("fired_at >= ?", *f.FiredAfter)
	}
	if f.FiredBefore != nil {
		db = db.Where("fired_at < ?", *f.FiredBefore)
	}
	return db
}

func (r *CampaignRunRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignRunFilter, orderBy string, limit, offset int) ([]*models.CampaignRun, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.CampaignRun{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaign runs: %w", err)
	}
	return rows, nil
}

func (r *CampaignRunRepositoryImpl) Count(ctx context.Context, filter models.CampaignRunFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.CampaignRun{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignRunRepositoryImpl) Exists(ctx context.Context, filter models.CampaignRunFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *CampaignRunRepositoryImpl) ByPeriod(ctx context.Context, campaignID uint, periodKey string) (*models.CampaignRun, error) {
	var row models.CampaignRun
	err := r.getDB(ctx).
		Where("campaign_id = ? AND period_key = ?", campaignID, periodKey).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find run for campaign %d period %s: %w", campaignID, periodKey, err)
	}
	return &row, nil
}

func (r *CampaignRunRepositoryImpl) InsertIfAbsent(ctx context.Context, run *models.CampaignRun) (bool, *models.CampaignRun, error) {
	res := r.getDB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "period_key"}},
			DoNothing: true,
		}).
		Create(run)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return false, nil, fmt.Errorf("failed to insert run for campaign %d period %s: %w", run.CampaignID, run.PeriodKey, res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return true, nil, nil
	}

	existing, err := r.ByPeriod(ctx, run.CampaignID, run.PeriodKey)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		return false, nil, fmt.Errorf("run for campaign %d period %s conflicted but cannot be read back", run.CampaignID, run.PeriodKey)
	}
	return false, existing, nil
}

func (r *CampaignRunRepositoryImpl) UpdateCounts(ctx context.Context, runID uint, counts models.CampaignRunCounts) error {
	updates := map[string]any{
		"queued_count": counts.Queued,
		"sent_count":   counts.Sent,
		"failed_count": counts.Failed,
		"updated_at":   time.Now().UTC(),
	}
	if counts.Status != "" {
		updates["status"] = counts.Status
	}
	if counts.AddressUsed != nil {
		updates["address_used"] = *counts.AddressUsed
	}
	if counts.ErrorSummary != nil {
		updates["error_summary"] = *counts.ErrorSummary
	}
	if counts.CompletedAt != nil {
		updates["completed_at"] = *counts.CompletedAt
	}
	err := r.getDB(ctx).Model(&models.CampaignRun{}).Where("id = ?", runID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update counts of run %d: %w", runID, err)
	}
	return nil
}

func (r *CampaignRunRepositoryImpl) ListRecent(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignRun, error) {
	return r.ByFilter(ctx, models.CampaignRunFilter{CampaignID: &campaignID}, "fired_at DESC, id DESC", limit, 0)
}
