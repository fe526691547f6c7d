package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TranscriptSegment is one speaker-attributed span of the transcript.
type TranscriptSegment struct {
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Start   float64 `json:"start"` // seconds from sermon start
	End     float64 `json:"end"`
}

// Transcript is the persisted transcription result for a sermon.
type Transcript struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SermonID   uuid.UUID      `json:"sermon_id" gorm:"type:uuid;not null;uniqueIndex"`
	Text       string         `json:"text" gorm:"type:text;not null"`
	Language   string         `json:"language" gorm:"type:varchar(10)"`
	Confidence float64        `json:"confidence" gorm:"type:double precision"`
	Segments   datatypes.JSON `json:"segments,omitempty" gorm:"type:jsonb"`
	ModelUsed  string         `json:"model_used" gorm:"type:varchar(100)"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Transcript) TableName() string {
	return "transcripts"
}
