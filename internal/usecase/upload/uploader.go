// Package upload moves local chunk files into remote object storage,
// strictly in index order.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

// ChunkStore persists chunk bytes remotely. The production implementation is
// MinIO-backed; tests substitute fakes.
type ChunkStore interface {
	PutChunk(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (remoteRef string, err error)
	RemoveSermonAudio(ctx context.Context, sermonPrefix string) error
}

// Progress reports aggregate upload progress after each completed chunk.
type Progress struct {
	Fraction float64
	Index    int
	Total    int
}

// Uploader uploads chunks sequentially. It never retries on its own; retry
// is the orchestrator's top-level path.
type Uploader struct {
	logger *zap.Logger
	store  ChunkStore
}

// NewUploader constructs a chunk uploader.
func NewUploader(logger *zap.Logger, store ChunkStore) *Uploader {
	return &Uploader{logger: logger, store: store}
}

// UploadAll uploads every chunk in index order and reports (index+1)/total
// after each one. Chunks already uploaded (a retry after partial success)
// are skipped but still counted in the reported fraction.
func (u *Uploader) UploadAll(ctx context.Context, chunks []entities.AudioChunk, onProgress func(Progress)) error {
	if err := entities.ValidateChunkSequence(chunks); err != nil {
		return fmt.Errorf("refusing to upload out-of-order chunks: %w", err)
	}

	total := len(chunks)
	for i := range chunks {
		chunk := &chunks[i]
		if chunk.UploadPending {
			if err := u.uploadOne(ctx, chunk); err != nil {
				return err
			}
		}
		if onProgress != nil {
			onProgress(Progress{
				Fraction: float64(i+1) / float64(total),
				Index:    i,
				Total:    total,
			})
		}
	}
	return nil
}

func (u *Uploader) uploadOne(ctx context.Context, chunk *entities.AudioChunk) error {
	if chunk.LocalPath == "" {
		return &entities.ChunkNotFoundError{Index: chunk.Index, Path: chunk.LocalPath}
	}
	f, err := os.Open(chunk.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &entities.ChunkNotFoundError{Index: chunk.Index, Path: chunk.LocalPath}
		}
		return fmt.Errorf("open chunk %d: %w", chunk.Index, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat chunk %d: %w", chunk.Index, err)
	}

	objectName := fmt.Sprintf("sermons/%s/chunk-%04d%s", chunk.SermonID, chunk.Index, filepath.Ext(chunk.LocalPath))
	remoteRef, err := u.store.PutChunk(ctx, objectName, f, info.Size(), contentTypeFor(chunk.LocalPath))
	if err != nil {
		return fmt.Errorf("upload chunk %d: %w", chunk.Index, err)
	}
	chunk.MarkUploaded(remoteRef)

	u.logger.Info("chunk uploaded",
		zap.String("sermon_id", chunk.SermonID.String()),
		zap.Int("index", chunk.Index),
		zap.String("remote_ref", remoteRef),
		zap.Int64("size_bytes", info.Size()),
	)
	return nil
}

// RemoveAll deletes every remote object stored for a sermon. Objects are
// keyed under a per-sermon prefix, so one prefix removal covers all chunks.
func (u *Uploader) RemoveAll(ctx context.Context, sermonID uuid.UUID) error {
	prefix := fmt.Sprintf("sermons/%s/", sermonID)
	if err := u.store.RemoveSermonAudio(ctx, prefix); err != nil {
		return fmt.Errorf("remove sermon audio: %w", err)
	}
	u.logger.Info("remote audio removed", zap.String("sermon_id", sermonID.String()))
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
