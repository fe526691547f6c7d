// Package capture owns the microphone session: it turns a PCM source into a
// sequence of bounded-duration WAV chunk files plus a level-meter stream.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

// Frame is one block of interleaved 16-bit PCM samples from a source.
type Frame struct {
	Samples []int16
}

// Source is a device-level PCM producer. Implementations deliver frames on
// the returned channel until the context is cancelled or Stop is called,
// then close it.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop() error
	SampleRate() int
	Channels() int
}

// ChunkEvent describes one finalized chunk file.
type ChunkEvent struct {
	Index    int
	Path     string
	Duration float64 // seconds
}

// Options configures a capture service.
type Options struct {
	BaseDir          string
	MinimumDuration  time.Duration
	LevelHistorySize int
}

// Service records microphone audio into per-sermon chunk files. One
// recording session is active at a time.
type Service struct {
	logger *zap.Logger
	source Source
	opts   Options

	mu        sync.Mutex
	recording bool
	sermonID  uuid.UUID
	dir       string
	cancelRun context.CancelFunc
	done      chan struct{}
	runErr    error

	chunkSamples int // per-channel samples per chunk boundary
	chunks       []ChunkEvent
	writer       *wavWriter

	paused   atomic.Bool
	captured atomic.Int64 // per-channel samples captured while unpaused

	events chan ChunkEvent
	levels chan float64
	meter  *LevelMeter
}

// NewService constructs a capture service over the given PCM source.
func NewService(logger *zap.Logger, source Source, opts Options) *Service {
	if opts.LevelHistorySize <= 0 {
		opts.LevelHistorySize = 100
	}
	return &Service{
		logger: logger,
		source: source,
		opts:   opts,
		meter:  NewLevelMeter(opts.LevelHistorySize),
	}
}

// Start begins capturing for the given sermon, rotating chunk files every
// chunkDuration of captured audio.
func (s *Service) Start(ctx context.Context, sermonID uuid.UUID, chunkDuration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		return &entities.RecordingFailedError{Reason: "a recording is already in progress"}
	}

	dir := filepath.Join(s.opts.BaseDir, sermonID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &entities.RecordingFailedError{Reason: "create sermon directory", Err: err}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	frames, err := s.source.Start(runCtx)
	if err != nil {
		cancel()
		return &entities.RecordingFailedError{Reason: "start audio source", Err: err}
	}

	s.recording = true
	s.sermonID = sermonID
	s.dir = dir
	s.cancelRun = cancel
	s.done = make(chan struct{})
	s.runErr = nil
	s.chunkSamples = int(chunkDuration.Seconds() * float64(s.source.SampleRate()))
	s.chunks = nil
	s.writer = nil
	s.paused.Store(false)
	s.captured.Store(0)
	s.meter.Reset()
	s.events = make(chan ChunkEvent, 16)
	s.levels = make(chan float64, 64)

	// ctx bounds only session startup; the run loop lives until Stop/Cancel.
	_ = ctx

	go s.run(runCtx, frames)

	s.logger.Info("recording started",
		zap.String("sermon_id", sermonID.String()),
		zap.Duration("chunk_duration", chunkDuration),
	)
	return nil
}

// run is the single goroutine that owns chunk files while recording.
func (s *Service) run(ctx context.Context, frames <-chan Frame) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if s.paused.Load() {
				continue
			}
			level := rmsLevel(f.Samples)
			s.meter.Push(level)
			select {
			case s.levels <- level:
			default: // consumer lagging, drop
			}
			if err := s.writeFrame(f); err != nil {
				s.mu.Lock()
				s.runErr = err
				s.mu.Unlock()
				s.logger.Error("chunk write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Service) writeFrame(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		path := filepath.Join(s.dir, fmt.Sprintf("chunk-%04d.wav", len(s.chunks)))
		w, err := newWAVWriter(path, s.source.SampleRate(), s.source.Channels())
		if err != nil {
			return err
		}
		s.writer = w
	}
	if err := s.writer.WriteSamples(f.Samples); err != nil {
		return err
	}
	s.captured.Add(int64(len(f.Samples) / s.source.Channels()))

	if s.writer.samples/int64(s.source.Channels()) >= int64(s.chunkSamples) {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}
	return nil
}

// rotateLocked finalizes the current chunk file and emits its event.
// Caller holds s.mu.
func (s *Service) rotateLocked() error {
	w := s.writer
	s.writer = nil
	path := filepath.Join(s.dir, fmt.Sprintf("chunk-%04d.wav", len(s.chunks)))
	duration := w.Duration()
	if err := w.Close(); err != nil {
		return err
	}
	ev := ChunkEvent{Index: len(s.chunks), Path: path, Duration: duration}
	s.chunks = append(s.chunks, ev)
	select {
	case s.events <- ev:
	default:
	}
	s.logger.Info("chunk finalized",
		zap.String("sermon_id", s.sermonID.String()),
		zap.Int("index", ev.Index),
		zap.Float64("duration_s", ev.Duration),
	)
	return nil
}

// Pause suspends capture. No-op when not recording.
func (s *Service) Pause() {
	s.mu.Lock()
	recording := s.recording
	s.mu.Unlock()
	if recording {
		s.paused.Store(true)
	}
}

// Resume continues capture after a pause. No-op when not recording.
func (s *Service) Resume() {
	s.mu.Lock()
	recording := s.recording
	s.mu.Unlock()
	if recording {
		s.paused.Store(false)
	}
}

// Elapsed returns the captured (unpaused) recording time.
func (s *Service) Elapsed() time.Duration {
	rate := s.source.SampleRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(float64(s.captured.Load()) / float64(rate) * float64(time.Second))
}

// Events delivers finalized chunk events while recording.
func (s *Service) Events() <-chan ChunkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Levels delivers instantaneous audio level samples while capturing and not
// paused. Samples are dropped when the consumer lags.
func (s *Service) Levels() <-chan float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels
}

// LevelHistory returns the bounded recent-level window, oldest-first.
func (s *Service) LevelHistory() []float64 {
	return s.meter.Snapshot()
}

// Stop finalizes the in-progress chunk and returns all chunks in index
// order. Calling before the minimum recording duration has elapsed returns
// RecordingTooShortError and leaves capture running.
func (s *Service) Stop() ([]ChunkEvent, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil, entities.ErrNotRecording
	}
	s.mu.Unlock()

	if elapsed := s.Elapsed(); elapsed < s.opts.MinimumDuration {
		return nil, &entities.RecordingTooShortError{Actual: elapsed, Minimum: s.opts.MinimumDuration}
	}

	s.shutdownSource()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		// A concurrent Cancel won the shutdown and already reset the session.
		return nil, entities.ErrNotRecording
	}
	if s.writer != nil && s.writer.samples > 0 {
		if err := s.rotateLocked(); err != nil {
			s.resetLocked()
			return nil, &entities.RecordingFailedError{Reason: "finalize last chunk", Err: err}
		}
	} else if s.writer != nil {
		s.writer.Close()
		s.writer = nil
	}
	if s.runErr != nil {
		err := s.runErr
		s.resetLocked()
		return nil, &entities.RecordingFailedError{Reason: "capture loop", Err: err}
	}
	chunks := s.chunks
	s.resetLocked()

	s.logger.Info("recording stopped", zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// Cancel discards all captured audio including any partial chunk. Always
// valid while recording.
func (s *Service) Cancel() error {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil
	}
	dir := s.dir
	s.mu.Unlock()

	s.shutdownSource()

	s.mu.Lock()
	if !s.recording {
		// A concurrent Stop won the shutdown; its caller owns the chunks.
		s.mu.Unlock()
		return nil
	}
	if s.writer != nil {
		s.writer.Close()
		s.writer = nil
	}
	s.resetLocked()
	s.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("discard captured audio: %w", err)
	}
	s.logger.Info("recording cancelled", zap.String("dir", dir))
	return nil
}

// shutdownSource stops the PCM source and waits for the run loop to exit.
func (s *Service) shutdownSource() {
	s.mu.Lock()
	cancel := s.cancelRun
	done := s.done
	s.mu.Unlock()

	s.source.Stop()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// resetLocked clears session state. Caller holds s.mu.
func (s *Service) resetLocked() {
	s.recording = false
	s.cancelRun = nil
	s.done = nil
	s.chunks = nil
	s.captured.Store(0)
	s.paused.Store(false)
	if s.events != nil {
		close(s.events)
		s.events = nil
	}
	if s.levels != nil {
		close(s.levels)
		s.levels = nil
	}
}

// SummarizeWaveform reads a chunk file and reduces it to the given number of
// normalized peak-amplitude buckets.
func SummarizeWaveform(path string, buckets int) ([]float64, error) {
	samples, _, channels, err := readWAVSamples(path)
	if err != nil {
		return nil, err
	}
	if buckets < 1 {
		buckets = 1
	}
	out := make([]float64, buckets)
	if len(samples) == 0 {
		return out, nil
	}
	frames := len(samples) / channels
	if frames == 0 {
		return out, nil
	}
	perBucket := frames/buckets + 1
	for i := 0; i < frames; i++ {
		var peak float64
		for c := 0; c < channels; c++ {
			v := float64(samples[i*channels+c]) / 32768.0
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		b := i / perBucket
		if b >= buckets {
			b = buckets - 1
		}
		if peak > out[b] {
			out[b] = peak
		}
	}
	return out, nil
}
