package entities

import "github.com/google/uuid"

// ProcessingJob mirrors the remote job record keyed by sermon ID. It is
// read-only on this side; the queue publishes snapshots of it alongside
// progress updates.
type ProcessingJob struct {
	SermonID            uuid.UUID   `json:"sermon_id"`
	TranscriptionStatus StageStatus `json:"transcription_status"`
	StudyGuideStatus    StageStatus `json:"study_guide_status"`
	Complete            bool        `json:"complete"`
	TranscriptionError  string      `json:"transcription_error,omitempty"`
	StudyGuideError     string      `json:"study_guide_error,omitempty"`
}

// IsTerminal reports whether no further progress updates will be emitted for
// this job. The same predicate is applied regardless of how the snapshot was
// delivered (stream update or one-off load).
func (j ProcessingJob) IsTerminal() bool {
	return j.Complete ||
		j.TranscriptionStatus == StageFailed ||
		j.StudyGuideStatus == StageFailed
}

// Succeeded reports whether both stages finished successfully.
func (j ProcessingJob) Succeeded() bool {
	return j.TranscriptionStatus == StageSucceeded && j.StudyGuideStatus == StageSucceeded
}

// StillRunning reports whether either stage is pending or running remotely.
func (j ProcessingJob) StillRunning() bool {
	return !j.IsTerminal() && !j.Succeeded()
}
