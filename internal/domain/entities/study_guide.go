package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudyGuide is the persisted study-guide result generated from a sermon's
// transcript.
type StudyGuide struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SermonID        uuid.UUID      `json:"sermon_id" gorm:"type:uuid;not null;uniqueIndex"`
	Summary         string         `json:"summary" gorm:"type:text"`
	KeyPoints       datatypes.JSON `json:"key_points,omitempty" gorm:"type:jsonb"`
	ScriptureRefs   datatypes.JSON `json:"scripture_refs,omitempty" gorm:"type:jsonb"`
	DiscussionItems datatypes.JSON `json:"discussion_items,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (StudyGuide) TableName() string {
	return "study_guides"
}
