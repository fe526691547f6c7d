package entities

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrNotAuthenticated           = errors.New("not authenticated")
	ErrMicrophonePermissionDenied = errors.New("microphone permission denied")
	ErrProcessingTimeout          = errors.New("processing timed out")
	ErrSermonNotFound             = errors.New("sermon not found")
	ErrNotRecording               = errors.New("no recording in progress")
)

// RecordingFailedError reports a device or capture-session failure.
type RecordingFailedError struct {
	Reason string
	Err    error
}

func (e *RecordingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recording failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("recording failed: %s", e.Reason)
}

func (e *RecordingFailedError) Unwrap() error { return e.Err }

// RecordingTooShortError is returned when stop is requested before the
// minimum recording duration has elapsed. Capture keeps running.
type RecordingTooShortError struct {
	Actual  time.Duration
	Minimum time.Duration
}

func (e *RecordingTooShortError) Error() string {
	return fmt.Sprintf("recording too short: %s elapsed, minimum is %s", e.Actual.Round(time.Second), e.Minimum)
}

// FileTooLargeError is returned when an imported file exceeds the size cap.
type FileTooLargeError struct {
	SizeBytes int64
	MaxBytes  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file is %d bytes, maximum import size is %d MB", e.SizeBytes, e.MaxBytes/(1024*1024))
}

// MaxMB returns the cap in megabytes, as rendered to the user.
func (e *FileTooLargeError) MaxMB() int64 { return e.MaxBytes / (1024 * 1024) }

// UnsupportedAudioFormatError is returned when an imported file's container
// type is not on the allow-list.
type UnsupportedAudioFormatError struct {
	ContentType string
}

func (e *UnsupportedAudioFormatError) Error() string {
	return fmt.Sprintf("unsupported audio format %q", e.ContentType)
}

// ImportFailedError wraps metadata or copy failures during import.
type ImportFailedError struct {
	Reason string
	Err    error
}

func (e *ImportFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("import failed: %s", e.Reason)
}

func (e *ImportFailedError) Unwrap() error { return e.Err }

// ChunkNotFoundError is returned when a chunk lacks a readable local file at
// upload time.
type ChunkNotFoundError struct {
	Index int
	Path  string
}

func (e *ChunkNotFoundError) Error() string {
	return fmt.Sprintf("chunk %d not found at %q", e.Index, e.Path)
}

// TranscriptionFailedError is the terminal, unrecoverable transcription
// failure for a sermon.
type TranscriptionFailedError struct {
	Reason string
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("transcription failed: %s", e.Reason)
}

// StudyGuideFailedError reports a study-guide generation failure. With a
// successful transcription this routes to the degraded, still-viewable state
// rather than a blocking error.
type StudyGuideFailedError struct {
	Reason string
}

func (e *StudyGuideFailedError) Error() string {
	return fmt.Sprintf("study guide generation failed: %s", e.Reason)
}
