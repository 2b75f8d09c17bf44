package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cedricperpignand1/bbbmailer/models"
	"gorm.io/gorm"
)

// AutoCampaignRepositoryImpl implements AutoCampaignRepository
type AutoCampaignRepositoryImpl struct {
	*BaseRepository[models.AutoCampaign, models.AutoCampaignFilter]
}

func NewAutoCampaignRepository(db *gorm.DB) AutoCampaignRepository {
	return &AutoCampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.AutoCampaign, models.AutoCampaignFilter](db)}
}

func (r *AutoCampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.AutoCampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.CategoryID != nil {
		db = db.Where("category_id = ?", *f.CategoryID)
	}
	return db
}

func (r *AutoCampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.AutoCampaignFilter, orderBy string, limit, offset int) ([]*models.AutoCampaign, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.AutoCampaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AutoCampaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list auto campaigns: %w", err)
	}
	return rows, nil
}

func (r *AutoCampaignRepositoryImpl) Count(ctx context.Context, filter models.AutoCampaignFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.AutoCampaign{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AutoCampaignRepositoryImpl) Exists(ctx context.Context, filter models.AutoCampaignFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *AutoCampaignRepositoryImpl) ListActive(ctx context.Context) ([]*models.AutoCampaign, error) {
	active := true
	return r.ByFilter(ctx, models.AutoCampaignFilter{IsActive: &active}, "id ASC", 0, 0)
}

// Update persists all columns of an existing campaign
func (r *AutoCampaignRepositoryImpl) Update(ctx context.Context, campaign *models.AutoCampaign) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	campaign.UpdatedAt = time.Now().UTC()
	if err = db.Save(campaign).Error; err != nil {
		return fmt.Errorf("failed to update auto campaign %d: %w", campaign.ID, err)
	}
	return nil
}

func (r *AutoCampaignRepositoryImpl) SetActive(ctx context.Context, id uint, active bool, windowStart, windowEnd *time.Time) error {
	updates := map[string]any{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}
	if windowStart != nil {
		updates["window_start"] = *windowStart
	}
	if windowEnd != nil {
		updates["window_end"] = *windowEnd
	}
	res := r.getDB(ctx).Model(&models.AutoCampaign{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to set active=%t on auto campaign %d: %w", active, id, res.Error)
	}
	return nil
}

func (r *AutoCampaignRepositoryImpl) AdvanceAddressCursor(ctx context.Context, id uint) error {
	err := r.getDB(ctx).Model(&models.AutoCampaign{}).
		Where("id = ?", id).
		UpdateColumn("address_cursor", gorm.Expr("address_cursor + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to advance address cursor of auto campaign %d: %w", id, err)
	}
	return nil
}
