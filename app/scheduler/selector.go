package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/cedricperpignand1/bbbmailer/models"
)

// AudienceStore lists the active contacts of a category ordered by id
type AudienceStore interface {
	ListActiveByCategory(ctx context.Context, categoryID uint) ([]*models.Contact, error)
}

// SendHistory answers lifetime dedup questions for a campaign
type SendHistory interface {
	ContactIDsWithStatus(ctx context.Context, campaignID uint, statuses []models.SendLogStatus) ([]uint, error)
}

// ExcludedStatuses returns the log statuses that keep a contact from being selected
// again. queued is always excluded: its outcome is unknown.
func ExcludedStatuses(retryFailed bool) []models.SendLogStatus {
	if retryFailed {
		return []models.SendLogStatus{models.SendLogStatusSent, models.SendLogStatusQueued}
	}
	return []models.SendLogStatus{models.SendLogStatusSent, models.SendLogStatusFailed, models.SendLogStatusQueued}
}

// Selector picks the recipients of one run
type Selector struct {
	audience AudienceStore
	history  SendHistory
}

func NewSelector(audience AudienceStore, history SendHistory) *Selector {
	return &Selector{audience: audience, history: history}
}

// LoadAudience returns the active contacts that have an address on the campaign channel
func (s *Selector) LoadAudience(ctx context.Context, c *models.AutoCampaign) ([]*models.Contact, error) {
	contacts, err := s.audience.ListActiveByCategory(ctx, c.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("load audience of category %d: %w", c.CategoryID, err)
	}
	out := make([]*models.Contact, 0, len(contacts))
	for _, ct := range contacts {
		if ct == nil || ct.Status != models.ContactStatusActive || ct.AddressFor(c.Channel) == "" {
			continue
		}
		out = append(out, ct)
	}
	if len(out) == 0 {
		return nil, newConfigError(CodeAudienceEmpty, "category %d has no active %s contacts", c.CategoryID, c.Channel)
	}
	return out, nil
}

// Select applies bucket filter, lifetime dedup and the per run cap
func (s *Selector) Select(ctx context.Context, c *models.AutoCampaign, audience []*models.Contact, key PeriodKey, retryFailed bool, limit int) ([]*models.Contact, error) {
	ids, err := s.history.ContactIDsWithStatus(ctx, c.ID, ExcludedStatuses(retryFailed))
	if err != nil {
		return nil, fmt.Errorf("load send history of campaign %d: %w", c.ID, err)
	}
	excluded := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}
	return SelectRecipients(audience, key, excluded, limit), nil
}

// SelectRecipients is the pure part of selection. Order is ascending id.
func SelectRecipients(audience []*models.Contact, key PeriodKey, excluded map[uint]struct{}, limit int) []*models.Contact {
	sorted := make([]*models.Contact, len(audience))
	copy(sorted, audience)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := make([]*models.Contact, 0)
	for _, ct := range sorted {
		if limit > 0 && len(out) >= limit {
			break
		}
		if key.Bucketed() && int(ct.ID%BucketCount) != key.Bucket {
			continue
		}
		if _, skip := excluded[ct.ID]; skip {
			continue
		}
		out = append(out, ct)
	}
	return out
}
