package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

// ResultRepository bundles transcript and study-guide lookups behind the
// single results port the flow consumes.
type ResultRepository struct {
	transcripts *TranscriptRepository
	studyGuides *StudyGuideRepository
}

// NewResultRepository creates a combined results repository
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{
		transcripts: NewTranscriptRepository(db),
		studyGuides: NewStudyGuideRepository(db),
	}
}

func (r *ResultRepository) FetchTranscript(ctx context.Context, sermonID uuid.UUID) (*entities.Transcript, error) {
	return r.transcripts.FetchTranscript(ctx, sermonID)
}

func (r *ResultRepository) FetchStudyGuide(ctx context.Context, sermonID uuid.UUID) (*entities.StudyGuide, error) {
	return r.studyGuides.FetchStudyGuide(ctx, sermonID)
}
