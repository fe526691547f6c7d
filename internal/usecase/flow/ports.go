package flow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pulpitworks/sermon-engine/internal/adapter/jobqueue"
	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
	"github.com/pulpitworks/sermon-engine/internal/usecase/capture"
	"github.com/pulpitworks/sermon-engine/internal/usecase/importer"
	"github.com/pulpitworks/sermon-engine/internal/usecase/upload"
)

// Auth yields the current user identity. RefreshSession is best-effort; its
// errors are ignored.
type Auth interface {
	CurrentUserID(ctx context.Context) (uuid.UUID, bool)
	RefreshSession(ctx context.Context) error
}

// Permission gates microphone access.
type Permission interface {
	RequestMicrophonePermission(ctx context.Context) bool
}

// Capture is the microphone session owner (implemented by capture.Service).
type Capture interface {
	Start(ctx context.Context, sermonID uuid.UUID, chunkDuration time.Duration) error
	Pause()
	Resume()
	Elapsed() time.Duration
	Stop() ([]capture.ChunkEvent, error)
	Cancel() error
	LevelHistory() []float64
}

// Importer validates and ingests external audio files.
type Importer interface {
	Import(ctx context.Context, sermonID uuid.UUID, req importer.Request) (*entities.AudioChunk, error)
}

// Uploader pushes chunk files to remote storage in index order and removes
// a sermon's remote audio when it is deleted.
type Uploader interface {
	UploadAll(ctx context.Context, chunks []entities.AudioChunk, onProgress func(upload.Progress)) error
	RemoveAll(ctx context.Context, sermonID uuid.UUID) error
}

// Queue is the remote processing job queue client.
type Queue interface {
	Enqueue(ctx context.Context, sermonID uuid.UUID, chunkTotal int) error
	LoadJob(ctx context.Context, sermonID uuid.UUID) (*entities.ProcessingJob, error)
	ProgressStream(ctx context.Context, sermonID uuid.UUID) (<-chan jobqueue.Update, func(), error)
}

// SermonStore is the sermon/chunk persistence contract.
type SermonStore interface {
	CreateSermonWithChunks(ctx context.Context, sermon *entities.Sermon, chunks []entities.AudioChunk) error
	GetSermonByID(ctx context.Context, id uuid.UUID) (*entities.Sermon, error)
	GetChunksBySermonID(ctx context.Context, sermonID uuid.UUID) ([]entities.AudioChunk, error)
	UpdateStageStatuses(ctx context.Context, sermon *entities.Sermon) error
	MarkChunkUploaded(ctx context.Context, chunk *entities.AudioChunk) error
	DeleteSermon(ctx context.Context, id uuid.UUID) error
}

// ResultRepository loads processing results. Both methods legitimately
// return nil while processing is incomplete.
type ResultRepository interface {
	FetchTranscript(ctx context.Context, sermonID uuid.UUID) (*entities.Transcript, error)
	FetchStudyGuide(ctx context.Context, sermonID uuid.UUID) (*entities.StudyGuide, error)
}
