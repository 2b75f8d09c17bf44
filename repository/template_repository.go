package repository

import (
	"github.com/cedricperpignand1/bbbmailer/models"
	"gorm.io/gorm"
)

// TemplateRepositoryImpl implements TemplateRepository
type TemplateRepositoryImpl struct {
	*BaseRepository[models.Template, struct{}]
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &TemplateRepositoryImpl{BaseRepository: NewBaseRepository[models.Template, struct{}](db)}
}
