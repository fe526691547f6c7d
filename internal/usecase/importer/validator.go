// Package importer validates externally supplied audio files and copies them
// into local sermon storage as a single chunk.
package importer

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
	pkgvalidator "github.com/pulpitworks/sermon-engine/pkg/validator"
)

// DefaultAllowedTypes is the audio container allow-list for import.
var DefaultAllowedTypes = []string{
	"audio/mpeg",
	"audio/mp4",
	"audio/x-m4a",
	"audio/wav",
}

// DurationProber determines the playable duration of an audio file from its
// media metadata.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (seconds float64, err error)
}

// Request describes one import attempt.
type Request struct {
	SourcePath  string `validate:"required"`
	ContentType string `validate:"required"`
	SizeBytes   int64  `validate:"gte=0"`
}

// Options configures a Validator.
type Options struct {
	BaseDir      string
	MaxSizeBytes int64
	AllowedTypes []string
}

// Validator checks and ingests imported audio files.
type Validator struct {
	logger   *zap.Logger
	prober   DurationProber
	opts     Options
	validate *pkgvalidator.StructValidator
}

// NewValidator constructs an import validator.
func NewValidator(logger *zap.Logger, prober DurationProber, opts Options) *Validator {
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = DefaultAllowedTypes
	}
	return &Validator{
		logger:   logger,
		prober:   prober,
		opts:     opts,
		validate: pkgvalidator.New(),
	}
}

// Import validates the source file, copies it into the sermon's local
// directory, and returns a single synthetic chunk covering the whole file.
// Validation failures happen before any sermon-scoped state is created.
func (v *Validator) Import(ctx context.Context, sermonID uuid.UUID, req Request) (*entities.AudioChunk, error) {
	if err := v.validate.Validate(req); err != nil {
		return nil, &entities.ImportFailedError{Reason: "invalid import request", Err: err}
	}

	size := req.SizeBytes
	if size == 0 {
		info, err := os.Stat(req.SourcePath)
		if err != nil {
			return nil, &entities.ImportFailedError{Reason: "stat source file", Err: err}
		}
		size = info.Size()
	}
	if size > v.opts.MaxSizeBytes {
		return nil, &entities.FileTooLargeError{SizeBytes: size, MaxBytes: v.opts.MaxSizeBytes}
	}

	if !v.typeAllowed(req.ContentType) {
		return nil, &entities.UnsupportedAudioFormatError{ContentType: req.ContentType}
	}

	duration, err := v.prober.ProbeDuration(ctx, req.SourcePath)
	if err != nil {
		return nil, &entities.ImportFailedError{Reason: "read media metadata", Err: err}
	}

	dir := filepath.Join(v.opts.BaseDir, sermonID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &entities.ImportFailedError{Reason: "create sermon directory", Err: err}
	}

	dest := filepath.Join(dir, "chunk-0000"+extensionFor(req.ContentType, req.SourcePath))
	if err := copyFile(req.SourcePath, dest); err != nil {
		os.RemoveAll(dir)
		return nil, &entities.ImportFailedError{Reason: "copy source file", Err: err}
	}

	v.logger.Info("audio imported",
		zap.String("sermon_id", sermonID.String()),
		zap.String("path", dest),
		zap.Float64("duration_s", duration),
		zap.Int64("size_bytes", size),
	)

	return entities.NewAudioChunk(sermonID, 0, 0, duration, dest), nil
}

func (v *Validator) typeAllowed(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range v.opts.AllowedTypes {
		if ct == allowed {
			return true
		}
	}
	// Generic audio fallback.
	return strings.HasPrefix(ct, "audio/")
}

func extensionFor(contentType, sourcePath string) string {
	switch strings.ToLower(contentType) {
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/wav":
		return ".wav"
	}
	if ext := filepath.Ext(sourcePath); ext != "" {
		return ext
	}
	return ".audio"
}

// copyFile copies src to dst; dst access lasts only for the copy.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	return out.Close()
}
