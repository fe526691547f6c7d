package entities

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WaveformBuckets is the fixed number of amplitude buckets kept per chunk.
const WaveformBuckets = 100

// AudioChunk is one bounded-duration segment of a sermon's audio, the unit
// of upload and of waveform summarization. For a given sermon, indices are
// contiguous from 0 and StartOffset equals the sum of prior chunk durations.
type AudioChunk struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SermonID        uuid.UUID      `json:"sermon_id" gorm:"type:uuid;not null;index"`
	Index           int            `json:"index" gorm:"column:chunk_index;not null"`
	StartOffset     float64        `json:"start_offset" gorm:"type:double precision;not null;default:0"`
	DurationSeconds float64        `json:"duration_seconds" gorm:"type:double precision;not null;default:0"`
	LocalPath       string         `json:"local_path" gorm:"type:text"`
	Waveform        datatypes.JSON `json:"waveform,omitempty" gorm:"type:jsonb"`
	UploadPending   bool           `json:"upload_pending" gorm:"not null;default:true"`
	RemoteRef       *string        `json:"remote_ref,omitempty" gorm:"type:text"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (AudioChunk) TableName() string {
	return "audio_chunks"
}

// NewAudioChunk creates a chunk record pending upload.
func NewAudioChunk(sermonID uuid.UUID, index int, startOffset, duration float64, localPath string) *AudioChunk {
	now := time.Now()
	return &AudioChunk{
		ID:              uuid.New(),
		SermonID:        sermonID,
		Index:           index,
		StartOffset:     startOffset,
		DurationSeconds: duration,
		LocalPath:       localPath,
		UploadPending:   true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MarkUploaded records the remote reference once the chunk is stored remotely.
func (c *AudioChunk) MarkUploaded(remoteRef string) {
	c.UploadPending = false
	c.RemoteRef = &remoteRef
	c.UpdatedAt = time.Now()
}

// ValidateChunkSequence checks that chunk indices run 0..N-1 with no gaps and
// that each start offset equals the prefix sum of prior durations.
func ValidateChunkSequence(chunks []AudioChunk) error {
	var offset float64
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("chunk at position %d has index %d, want %d", i, c.Index, i)
		}
		if math.Abs(c.StartOffset-offset) > 1e-6 {
			return fmt.Errorf("chunk %d has start offset %.6f, want %.6f", i, c.StartOffset, offset)
		}
		if c.DurationSeconds < 0 {
			return fmt.Errorf("chunk %d has negative duration %.6f", i, c.DurationSeconds)
		}
		offset += c.DurationSeconds
	}
	return nil
}

// TotalDuration sums chunk durations in seconds.
func TotalDuration(chunks []AudioChunk) float64 {
	var total float64
	for _, c := range chunks {
		total += c.DurationSeconds
	}
	return total
}
