package models

import "time"

// ContactStatus is the subscription state of a contact
type ContactStatus string

const (
	ContactStatusActive       ContactStatus = "active"
	ContactStatusUnsubscribed ContactStatus = "unsubscribed"
	ContactStatusBounced      ContactStatus = "bounced"
)

// Category groups contacts into an audience
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uk_categories_name" json:"name"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Category) TableName() string { return "categories" }

// Contact is a recipient; its ID doubles as the ordinal used for weekday bucketing
type Contact struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CategoryID uint          `gorm:"not null;index:idx_contacts_category_status,priority:1" json:"category_id"`
	FirstName  *string       `gorm:"size:255" json:"first_name,omitempty"`
	LastName   *string       `gorm:"size:255" json:"last_name,omitempty"`
	Email      *string       `gorm:"size:320;index:idx_contacts_email" json:"email,omitempty"`
	Phone      *string       `gorm:"size:32;index:idx_contacts_phone" json:"phone,omitempty"`
	Status     ContactStatus `gorm:"size:16;not null;default:'active';index:idx_contacts_category_status,priority:2" json:"status"`
	CreatedAt  time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }

// AddressFor returns the contact's address for the channel, empty when missing
func (c *Contact) AddressFor(ch Channel) string {
	var p *string
	switch ch {
	case ChannelEmail:
		p = c.Email
	case ChannelSMS:
		p = c.Phone
	}
	if p == nil {
		return ""
	}
	return *p
}

// ContactFilter provides filter fields for repository queries
type ContactFilter struct {
	ID         *uint
	CategoryID *uint
	Status     *ContactStatus
	IDNotIn    []uint
}
