package models

import "time"

// Template is reusable subject/body content referenced by campaigns
type Template struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Subject     string    `gorm:"type:text;not null;default:''" json:"subject"`
	Body        string    `gorm:"type:text;not null;default:''" json:"body"`
	ContentType string    `gorm:"size:32;not null;default:'text/html'" json:"content_type"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Template) TableName() string { return "templates" }
