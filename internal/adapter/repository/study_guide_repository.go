package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

// StudyGuideRepository handles study guide data operations
type StudyGuideRepository struct {
	db *gorm.DB
}

// NewStudyGuideRepository creates a new study guide repository
func NewStudyGuideRepository(db *gorm.DB) *StudyGuideRepository {
	return &StudyGuideRepository{db: db}
}

// FetchStudyGuide retrieves a sermon's study guide, or nil while generation
// is incomplete or has failed.
func (r *StudyGuideRepository) FetchStudyGuide(ctx context.Context, sermonID uuid.UUID) (*entities.StudyGuide, error) {
	var guide entities.StudyGuide
	if err := r.db.WithContext(ctx).Where("sermon_id = ?", sermonID).First(&guide).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &guide, nil
}

// CreateStudyGuide creates a new study guide
func (r *StudyGuideRepository) CreateStudyGuide(ctx context.Context, guide *entities.StudyGuide) error {
	if guide == nil {
		return errors.New("study guide cannot be nil")
	}
	return r.db.WithContext(ctx).Create(guide).Error
}
