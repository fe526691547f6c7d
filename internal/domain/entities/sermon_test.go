package entities

import (
	"testing"

	"github.com/google/uuid"
)

func TestSermonStatusFrom(t *testing.T) {
	cases := []struct {
		name          string
		transcription StageStatus
		studyGuide    StageStatus
		want          SermonStatus
	}{
		{"transcription failed wins", StageFailed, StageSucceeded, SermonStatusError},
		{"transcription failed with failed guide", StageFailed, StageFailed, SermonStatusError},
		{"transcription running", StageRunning, StagePending, SermonStatusProcessing},
		{"study guide running", StageSucceeded, StageRunning, SermonStatusProcessing},
		{"both pending", StagePending, StagePending, SermonStatusPending},
		{"degraded", StageSucceeded, StageFailed, SermonStatusDegraded},
		{"ready", StageSucceeded, StageSucceeded, SermonStatusReady},
		{"transcript done guide pending", StageSucceeded, StagePending, SermonStatusProcessing},
		{"fallback", StagePending, StageSucceeded, SermonStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SermonStatusFrom(tc.transcription, tc.studyGuide)
			if got != tc.want {
				t.Fatalf("SermonStatusFrom(%s, %s) = %s, want %s", tc.transcription, tc.studyGuide, got, tc.want)
			}
		})
	}
}

func TestSermonStatusViewability(t *testing.T) {
	degraded := SermonStatusFrom(StageSucceeded, StageFailed)
	if !degraded.IsViewable() {
		t.Fatal("degraded sermon should be viewable")
	}
	if !degraded.CanRetryStudyGuide() {
		t.Fatal("degraded sermon should allow study guide retry")
	}

	failed := SermonStatusFrom(StageFailed, StagePending)
	if failed.IsViewable() {
		t.Fatal("failed transcription should not be viewable")
	}
	if failed.CanRetryStudyGuide() {
		t.Fatal("failed transcription should not offer study guide retry")
	}

	if !SermonStatusReady.IsViewable() {
		t.Fatal("ready sermon should be viewable")
	}
}

func TestSermonMarkFailures(t *testing.T) {
	s := NewSermon(uuid.New(), "Sunday Service", "Pastor Kim")
	if s.Status() != SermonStatusPending {
		t.Fatalf("new sermon status = %s, want pending", s.Status())
	}

	s.TranscriptionStatus = StageSucceeded
	s.MarkStudyGuideFailed("model overloaded")
	if s.Status() != SermonStatusDegraded {
		t.Fatalf("status = %s, want degraded", s.Status())
	}
	if s.StudyGuideError == nil || *s.StudyGuideError != "model overloaded" {
		t.Fatal("study guide error message not recorded")
	}

	s.MarkTranscriptionFailed("audio unreadable")
	if s.Status() != SermonStatusError {
		t.Fatalf("status = %s, want error", s.Status())
	}
}
