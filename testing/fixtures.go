package testing

import (
	"context"
	"fmt"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/repository"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// TestFixtures creates rows for repository tests
type TestFixtures struct {
	db *TestDB
}

func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{db: db}
}

// CreateCategory inserts a category with count active contacts that have both an email and a phone.
// Category and contacts are written in one transaction.
func (tf *TestFixtures) CreateCategory(name string, count int) (*models.Category, []*models.Contact, error) {
	category := &models.Category{Name: name}
	var contacts []*models.Contact
	err := repository.WithTransaction(context.Background(), tf.db.DB, func(ctx context.Context) error {
		if err := repository.GetDB(ctx, tf.db.DB).Create(category).Error; err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		contacts = buildContacts(category, name, count)
		return repository.NewContactRepository(tf.db.DB).SaveBatch(ctx, contacts)
	})
	if err != nil {
		return nil, nil, err
	}
	return category, contacts, nil
}

func buildContacts(category *models.Category, name string, count int) []*models.Contact {
	contacts := make([]*models.Contact, 0, count)
	for i := 0; i < count; i++ {
		contacts = append(contacts, &models.Contact{
			CategoryID: category.ID,
			FirstName:  utils.ToPtr(fmt.Sprintf("Contact%d", i+1)),
			Email:      utils.ToPtr(fmt.Sprintf("%s-%d@example.com", name, i+1)),
			Phone:      utils.ToPtr(fmt.Sprintf("+1555000%04d", i+1)),
			Status:     models.ContactStatusActive,
		})
	}
	return contacts
}

// CreateAutoCampaign inserts an active daily email campaign for the category
func (tf *TestFixtures) CreateAutoCampaign(categoryID uint) (*models.AutoCampaign, error) {
	c := &models.AutoCampaign{
		Name:            "fixture",
		Channel:         models.ChannelEmail,
		IsActive:        utils.ToPtr(true),
		CategoryID:      categoryID,
		Subject:         utils.ToPtr("Hello {{firstName}}"),
		Body:            utils.ToPtr("Hi {{firstName}}"),
		ContentType:     models.ContentTypeText,
		MaxPerDay:       utils.DefaultMaxPerDay,
		SendHour:        utils.ToPtr(utils.DefaultSendHour),
		SendMinute:      utils.ToPtr(utils.DefaultSendMinute),
		ScheduleMode:    models.ScheduleModeDaily,
		Addresses:       []string{"12 Main St", "40 Elm Ave"},
		AddressStrategy: models.AddressStrategyHashed,
		CreatedAt:       utils.UTCNow(),
		UpdatedAt:       utils.UTCNow(),
	}
	if err := tf.db.DB.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create auto campaign: %w", err)
	}
	return c, nil
}
