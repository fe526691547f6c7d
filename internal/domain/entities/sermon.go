package entities

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus represents the status of one remote processing stage
// (transcription or study-guide generation).
type StageStatus string

const (
	StagePending   StageStatus = "pending"   // Not yet started remotely
	StageRunning   StageStatus = "running"   // Remote worker is processing
	StageSucceeded StageStatus = "succeeded" // Result persisted and loadable
	StageFailed    StageStatus = "failed"    // Remote worker gave up
)

// Sermon represents one captured or imported sermon recording.
type Sermon struct {
	ID                  uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID              uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	Title               string      `json:"title" gorm:"type:varchar(255);not null"`
	Speaker             string      `json:"speaker" gorm:"type:varchar(255)"`
	RecordedAt          time.Time   `json:"recorded_at" gorm:"not null;default:now()"`
	DurationSeconds     float64     `json:"duration_seconds" gorm:"type:double precision;not null;default:0"`
	TranscriptionStatus StageStatus `json:"transcription_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	StudyGuideStatus    StageStatus `json:"study_guide_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	TranscriptionError  *string     `json:"transcription_error,omitempty" gorm:"type:text"`
	StudyGuideError     *string     `json:"study_guide_error,omitempty" gorm:"type:text"`
	CreatedAt           time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Sermon) TableName() string {
	return "sermons"
}

// NewSermon creates a sermon record with both stages pending.
func NewSermon(userID uuid.UUID, title, speaker string) *Sermon {
	now := time.Now()
	return &Sermon{
		ID:                  uuid.New(),
		UserID:              userID,
		Title:               title,
		Speaker:             speaker,
		RecordedAt:          now,
		TranscriptionStatus: StagePending,
		StudyGuideStatus:    StagePending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Status derives the display status from the two stage statuses.
func (s *Sermon) Status() SermonStatus {
	return SermonStatusFrom(s.TranscriptionStatus, s.StudyGuideStatus)
}

// MarkTranscriptionFailed records a terminal transcription failure.
func (s *Sermon) MarkTranscriptionFailed(errMsg string) {
	s.TranscriptionStatus = StageFailed
	s.TranscriptionError = &errMsg
	s.UpdatedAt = time.Now()
}

// MarkStudyGuideFailed records a study-guide failure; the transcript stays usable.
func (s *Sermon) MarkStudyGuideFailed(errMsg string) {
	s.StudyGuideStatus = StageFailed
	s.StudyGuideError = &errMsg
	s.UpdatedAt = time.Now()
}

// SermonStatus is the single status surfaced wherever a sermon is displayed.
type SermonStatus string

const (
	SermonStatusPending    SermonStatus = "pending"
	SermonStatusProcessing SermonStatus = "processing"
	SermonStatusReady      SermonStatus = "ready"
	SermonStatusDegraded   SermonStatus = "degraded" // transcript viewable, study guide failed
	SermonStatusError      SermonStatus = "error"    // transcription failed, nothing viewable
)

// SermonStatusFrom derives the display status from the two stage statuses.
// Rule order matters: a failed transcription wins over everything else.
func SermonStatusFrom(transcription, studyGuide StageStatus) SermonStatus {
	switch {
	case transcription == StageFailed:
		return SermonStatusError
	case transcription == StageRunning || studyGuide == StageRunning:
		return SermonStatusProcessing
	case transcription == StagePending && studyGuide == StagePending:
		return SermonStatusPending
	case transcription == StageSucceeded && studyGuide == StageFailed:
		return SermonStatusDegraded
	case transcription == StageSucceeded && studyGuide == StageSucceeded:
		return SermonStatusReady
	case transcription == StageSucceeded:
		return SermonStatusProcessing
	default:
		return SermonStatusPending
	}
}

// IsViewable reports whether the transcript can be shown to the user.
func (s SermonStatus) IsViewable() bool {
	return s == SermonStatusReady || s == SermonStatusDegraded
}

// CanRetryStudyGuide reports whether study-guide generation can be re-run
// without touching the transcript.
func (s SermonStatus) CanRetryStudyGuide() bool {
	return s == SermonStatusDegraded
}
