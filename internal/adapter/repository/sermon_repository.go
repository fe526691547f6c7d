package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

// SermonRepository handles sermon and chunk data operations
type SermonRepository struct {
	db *gorm.DB
}

// NewSermonRepository creates a new sermon repository
func NewSermonRepository(db *gorm.DB) *SermonRepository {
	return &SermonRepository{db: db}
}

// CreateSermonWithChunks persists a sermon and its chunk records atomically.
// The chunk sequence is validated before anything is written.
func (r *SermonRepository) CreateSermonWithChunks(ctx context.Context, sermon *entities.Sermon, chunks []entities.AudioChunk) error {
	if sermon == nil {
		return errors.New("sermon cannot be nil")
	}
	if err := entities.ValidateChunkSequence(chunks); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sermon).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
}

// GetSermonByID retrieves a sermon by ID
func (r *SermonRepository) GetSermonByID(ctx context.Context, id uuid.UUID) (*entities.Sermon, error) {
	var sermon entities.Sermon
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sermon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sermon, nil
}

// GetChunksBySermonID retrieves a sermon's chunks in index order
func (r *SermonRepository) GetChunksBySermonID(ctx context.Context, sermonID uuid.UUID) ([]entities.AudioChunk, error) {
	var chunks []entities.AudioChunk
	if err := r.db.WithContext(ctx).
		Where("sermon_id = ?", sermonID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateStageStatuses updates the two processing stage statuses and error
// messages for a sermon.
func (r *SermonRepository) UpdateStageStatuses(ctx context.Context, sermon *entities.Sermon) error {
	if sermon == nil {
		return errors.New("sermon cannot be nil")
	}
	return r.db.WithContext(ctx).
		Model(&entities.Sermon{}).
		Where("id = ?", sermon.ID).
		Updates(map[string]interface{}{
			"transcription_status": sermon.TranscriptionStatus,
			"study_guide_status":   sermon.StudyGuideStatus,
			"transcription_error":  sermon.TranscriptionError,
			"study_guide_error":    sermon.StudyGuideError,
			"duration_seconds":     sermon.DurationSeconds,
			"updated_at":           sermon.UpdatedAt,
		}).Error
}

// MarkChunkUploaded records a chunk's remote reference
func (r *SermonRepository) MarkChunkUploaded(ctx context.Context, chunk *entities.AudioChunk) error {
	if chunk == nil {
		return errors.New("chunk cannot be nil")
	}
	return r.db.WithContext(ctx).
		Model(&entities.AudioChunk{}).
		Where("id = ?", chunk.ID).
		Updates(map[string]interface{}{
			"upload_pending": chunk.UploadPending,
			"remote_ref":     chunk.RemoteRef,
			"updated_at":     chunk.UpdatedAt,
		}).Error
}

// DeleteSermon removes a sermon and its chunks in one transaction.
func (r *SermonRepository) DeleteSermon(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sermon_id = ?", id).Delete(&entities.AudioChunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Sermon{}, id).Error
	})
}
