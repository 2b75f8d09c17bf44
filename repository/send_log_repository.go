package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cedricperpignand1/bbbmailer/models"
	"gorm.io/gorm"
)

// SendLogRepositoryImpl implements SendLogRepository
type SendLogRepositoryImpl struct {
	*BaseRepository[models.SendLog, models.SendLogFilter]
}

func NewSendLogRepository(db *gorm.DB) SendLogRepository {
	return &SendLogRepositoryImpl{BaseRepository: NewBaseRepository[models.SendLog, models.SendLogFilter](db)}
}

func (r *SendLogRepositoryImpl) applyFilter(db *gorm.DB, f models.SendLogFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.RunID != nil {
		db = db.Where("run_id = ?", *f.RunID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.ContactID != nil {
		db = db.Where("contact_id = ?", *f.ContactID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	return db
}

func (r *SendLogRepositoryImpl) ByFilter(ctx context.Context, filter models.SendLogFilter, orderBy string, limit, offset int) ([]*models.SendLog, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.SendLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SendLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list send logs: %w", err)
	}
	return rows, nil
}

func (r *SendLogRepositoryImpl) Count(ctx context.Context, filter models.SendLogFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.SendLog{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SendLogRepositoryImpl) Exists(ctx context.Context, filter models.SendLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// MarkSent moves a queued log to sent
func (r *SendLogRepositoryImpl) MarkSent(ctx context.Context, id uint, providerMessageID string, sentAt time.Time) error {
	updates := map[string]any{
		"status":     models.SendLogStatusSent,
		"sent_at":    sentAt,
		"updated_at": time.Now().UTC(),
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}
	return r.transition(ctx, id, updates)
}

// MarkFailed moves a queued log to failed
func (r *SendLogRepositoryImpl) MarkFailed(ctx context.Context, id uint, errText string) error {
	return r.transition(ctx, id, map[string]any{
		"status":     models.SendLogStatusFailed,
		"error":      errText,
		"updated_at": time.Now().UTC(),
	})
}

func (r *SendLogRepositoryImpl) transition(ctx context.Context, id uint, updates map[string]any) error {
	res := r.getDB(ctx).Model(&models.SendLog{}).
		Where("id = ? AND status = ?", id, models.SendLogStatusQueued).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update send log %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("send log %d is not queued", id)
	}
	return nil
}

func (r *SendLogRepositoryImpl) ContactIDsWithStatus(ctx context.Context, campaignID uint, statuses []models.SendLogStatus) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.SendLog{}).
		Where("campaign_id = ? AND status IN ?", campaignID, statuses).
		Distinct().
		Pluck("contact_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contacted ids of campaign %d: %w", campaignID, err)
	}
	return ids, nil
}

func (r *SendLogRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.SendLogStatus]int64, error) {
	var rows []struct {
		Status models.SendLogStatus
		Total  int64
	}
	err := r.getDB(ctx).Model(&models.SendLog{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count send logs of campaign %d: %w", campaignID, err)
	}
	out := make(map[models.SendLogStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *SendLogRepositoryImpl) ListByRun(ctx context.Context, runID uint) ([]*models.SendLog, error) {
	return r.ByFilter(ctx, models.SendLogFilter{RunID: &runID}, "id ASC", 0, 0)
}
