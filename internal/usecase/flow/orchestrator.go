// Package flow ties capture, import, upload, the remote job queue, and the
// repository together behind a single observable state machine.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
	"github.com/pulpitworks/sermon-engine/internal/usecase/capture"
	"github.com/pulpitworks/sermon-engine/internal/usecase/importer"
	"github.com/pulpitworks/sermon-engine/internal/usecase/upload"
	"github.com/pulpitworks/sermon-engine/pkg/jobcontext"
)

// Config holds the orchestrator's timing policy.
type Config struct {
	ChunkDuration     time.Duration
	ProcessingTimeout time.Duration
	WaveformBuckets   int
}

// Deps are the orchestrator's collaborators, injected at construction so
// tests can substitute fakes.
type Deps struct {
	Auth       Auth
	Permission Permission
	Capture    Capture
	Importer   Importer
	Uploader   Uploader
	Queue      Queue
	Store      SermonStore
	Results    ResultRepository
}

// Result is what the Viewing phase exposes to the presentation layer. The
// study guide is nil for degraded sermons.
type Result struct {
	Sermon     *entities.Sermon
	Transcript *entities.Transcript
	StudyGuide *entities.StudyGuide
}

// processingStage selects where the processing sequence starts: a fresh
// cycle runs everything, a retry replays from upload, a resume after
// relaunch re-subscribes to the stream only.
type processingStage int

const (
	stageFull processingStage = iota
	stageUpload
	stageStream
)

// Orchestrator is the single-writer state machine for one recording, import,
// or processing cycle. All mutating entry points serialize on one mutex;
// the processing sequence runs on its own cancellable task.
type Orchestrator struct {
	logger *zap.Logger
	cfg    Config
	deps   Deps

	mu        sync.Mutex
	gen       uint64 // bumped whenever an entry point takes over the phase
	phase     entities.FlowPhase
	sermon    *entities.Sermon
	chunks    []entities.AudioChunk
	persisted bool
	attempt   int
	result    *Result

	cancelCycle    context.CancelFunc
	processingDone chan struct{}

	updates chan entities.FlowPhase
	closed  bool
}

// New constructs an orchestrator in the Input phase.
func New(logger *zap.Logger, cfg Config, deps Deps) *Orchestrator {
	if cfg.WaveformBuckets <= 0 {
		cfg.WaveformBuckets = entities.WaveformBuckets
	}
	return &Orchestrator{
		logger:  logger,
		cfg:     cfg,
		deps:    deps,
		phase:   entities.InputPhase(),
		updates: make(chan entities.FlowPhase, 16),
	}
}

// Phase returns the current phase snapshot.
func (o *Orchestrator) Phase() entities.FlowPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Updates delivers phase changes. Stale updates are dropped when the
// consumer lags; Phase() always has the current value.
func (o *Orchestrator) Updates() <-chan entities.FlowPhase {
	return o.updates
}

// CurrentResult returns the loaded result while in the Viewing phase.
func (o *Orchestrator) CurrentResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// setPhaseLocked updates the phase and publishes it. Caller holds o.mu.
func (o *Orchestrator) setPhaseLocked(p entities.FlowPhase) {
	o.phase = p
	if o.closed {
		return
	}
	select {
	case o.updates <- p:
	default:
		// Drop the oldest pending update to make room for the newest.
		select {
		case <-o.updates:
		default:
		}
		select {
		case o.updates <- p:
		default:
		}
	}
}

// setPhaseIf updates the phase only if gen still owns it, so a cancelled
// processing task cannot clobber a newer cycle's state.
func (o *Orchestrator) setPhaseIf(gen uint64, p entities.FlowPhase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return false
	}
	o.setPhaseLocked(p)
	return true
}

// StartRecording creates a new sermon and begins microphone capture.
func (o *Orchestrator) StartRecording(ctx context.Context, title, speaker string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase.Kind != entities.PhaseInput {
		return fmt.Errorf("cannot start recording from phase %s", o.phase.Kind)
	}

	userID, ok := o.deps.Auth.CurrentUserID(ctx)
	if !ok {
		o.gen++
		o.setPhaseLocked(entities.ErrorPhase(entities.ErrNotAuthenticated))
		return entities.ErrNotAuthenticated
	}
	if !o.deps.Permission.RequestMicrophonePermission(ctx) {
		o.gen++
		o.setPhaseLocked(entities.ErrorPhase(entities.ErrMicrophonePermissionDenied))
		return entities.ErrMicrophonePermissionDenied
	}
	// Best-effort; a stale session is refreshed again before upload.
	if err := o.deps.Auth.RefreshSession(ctx); err != nil {
		o.logger.Warn("session refresh failed", zap.Error(err))
	}

	sermon := entities.NewSermon(userID, title, speaker)
	if err := o.deps.Capture.Start(ctx, sermon.ID, o.cfg.ChunkDuration); err != nil {
		o.gen++
		o.setPhaseLocked(entities.ErrorPhase(err))
		return err
	}

	o.gen++
	o.sermon = sermon
	o.chunks = nil
	o.persisted = false
	o.result = nil
	o.setPhaseLocked(entities.FlowPhase{Kind: entities.PhaseRecording})

	o.logger.Info("recording flow started",
		zap.String("sermon_id", sermon.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// PauseRecording and ResumeRecording toggle capture; no-ops outside the
// Recording phase.
func (o *Orchestrator) PauseRecording() {
	if o.Phase().Kind == entities.PhaseRecording {
		o.deps.Capture.Pause()
	}
}

func (o *Orchestrator) ResumeRecording() {
	if o.Phase().Kind == entities.PhaseRecording {
		o.deps.Capture.Resume()
	}
}

// StopRecording finalizes capture and enters the processing sequence. Before
// the minimum recording duration it returns RecordingTooShortError and the
// phase stays Recording with capture still running.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase.Kind != entities.PhaseRecording {
		return fmt.Errorf("cannot stop recording from phase %s", o.phase.Kind)
	}

	events, err := o.deps.Capture.Stop()
	if err != nil {
		var tooShort *entities.RecordingTooShortError
		if errors.As(err, &tooShort) {
			// Capture keeps running; the phase does not change.
			return err
		}
		o.gen++
		o.setPhaseLocked(entities.ErrorPhase(err))
		return err
	}

	chunks := make([]entities.AudioChunk, 0, len(events))
	var offset float64
	for _, ev := range events {
		chunks = append(chunks, *entities.NewAudioChunk(o.sermon.ID, ev.Index, offset, ev.Duration, ev.Path))
		offset += ev.Duration
	}
	o.chunks = chunks
	o.sermon.DurationSeconds = offset

	o.beginProcessingLocked(stageFull)
	return nil
}

// CancelRecording discards captured audio and the in-progress sermon.
func (o *Orchestrator) CancelRecording(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase.Kind != entities.PhaseRecording {
		return fmt.Errorf("cannot cancel recording from phase %s", o.phase.Kind)
	}
	if err := o.deps.Capture.Cancel(); err != nil {
		o.logger.Warn("capture cancel failed", zap.Error(err))
	}
	o.gen++
	o.sermon = nil
	o.chunks = nil
	o.setPhaseLocked(entities.InputPhase())
	return nil
}

// ImportAudio validates an external audio file and enters the same
// processing sequence as a stopped recording. The copy itself runs outside
// the intent lock; Phase() and other intents stay responsive while a large
// file is being ingested.
func (o *Orchestrator) ImportAudio(ctx context.Context, title, speaker string, req importer.Request) error {
	o.mu.Lock()
	if o.phase.Kind != entities.PhaseInput {
		o.mu.Unlock()
		return fmt.Errorf("cannot import from phase %s", o.phase.Kind)
	}

	userID, ok := o.deps.Auth.CurrentUserID(ctx)
	if !ok {
		o.gen++
		o.setPhaseLocked(entities.ErrorPhase(entities.ErrNotAuthenticated))
		o.mu.Unlock()
		return entities.ErrNotAuthenticated
	}
	if err := o.deps.Auth.RefreshSession(ctx); err != nil {
		o.logger.Warn("session refresh failed", zap.Error(err))
	}

	o.gen++
	gen := o.gen
	sermon := entities.NewSermon(userID, title, speaker)
	o.setPhaseLocked(entities.FlowPhase{Kind: entities.PhaseImporting})
	o.mu.Unlock()

	chunk, err := o.deps.Importer.Import(ctx, sermon.ID, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		// Reset took over while the file was copying; discard the copy.
		if chunk != nil {
			if rmErr := os.RemoveAll(filepath.Dir(chunk.LocalPath)); rmErr != nil {
				o.logger.Warn("discard imported audio failed", zap.Error(rmErr))
			}
		}
		return nil
	}
	if err != nil {
		o.setPhaseLocked(entities.ErrorPhase(err))
		return err
	}

	o.sermon = sermon
	o.chunks = []entities.AudioChunk{*chunk}
	o.sermon.DurationSeconds = chunk.DurationSeconds
	o.persisted = false
	o.result = nil

	o.beginProcessingLocked(stageFull)
	return nil
}

// Retry replays the processing sequence from upload, reusing the existing
// local chunk files. Only valid from the Error phase.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase.Kind != entities.PhaseError {
		return fmt.Errorf("cannot retry from phase %s", o.phase.Kind)
	}
	if o.sermon == nil || len(o.chunks) == 0 {
		return fmt.Errorf("nothing to retry: no sermon in this cycle")
	}

	stage := stageUpload
	if !o.persisted {
		stage = stageFull
	}
	o.beginProcessingLocked(stage)
	return nil
}

// Dismiss leaves the Error phase back to Input.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase.Kind != entities.PhaseError {
		return
	}
	o.gen++
	o.sermon = nil
	o.chunks = nil
	o.persisted = false
	o.setPhaseLocked(entities.InputPhase())
}

// EnterBackground cancels the progress-stream subscription and timeout while
// processing, conserving resources. Uploaded chunks and the remote job stay
// intact; LoadExistingSermon resumes later.
func (o *Orchestrator) EnterBackground() {
	o.mu.Lock()
	cancel := o.cancelCycle
	processing := o.phase.Kind == entities.PhaseProcessing
	o.mu.Unlock()

	if processing && cancel != nil {
		o.logger.Info("backgrounding: releasing progress stream and timeout")
		cancel()
	}
}

// Reset cancels any in-flight work and returns to Input.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	// Capture teardown stays under the intent lock so it cannot race a
	// concurrent StopRecording against the capture session.
	if o.phase.Kind == entities.PhaseRecording {
		if err := o.deps.Capture.Cancel(); err != nil {
			o.logger.Warn("capture cancel failed", zap.Error(err))
		}
	}
	cancel := o.cancelCycle
	done := o.processingDone
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	o.sermon = nil
	o.chunks = nil
	o.persisted = false
	o.result = nil
	o.cancelCycle = nil
	o.processingDone = nil
	o.setPhaseLocked(entities.InputPhase())
}

// Close tears the orchestrator down.
func (o *Orchestrator) Close() {
	o.Reset()
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.updates)
	}
}

// DeleteSermon removes a stored sermon: its remote audio, its database
// record, and any local chunk files. Valid from Input or Viewing; deleting
// the sermon currently on screen returns the flow to Input.
func (o *Orchestrator) DeleteSermon(ctx context.Context, id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase.Kind != entities.PhaseInput && o.phase.Kind != entities.PhaseViewing {
		return fmt.Errorf("cannot delete a sermon from phase %s", o.phase.Kind)
	}

	sermon, err := o.deps.Store.GetSermonByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load sermon: %w", err)
	}
	if sermon == nil {
		return entities.ErrSermonNotFound
	}
	chunks, err := o.deps.Store.GetChunksBySermonID(ctx, id)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}

	// Remote audio goes first so a failure leaves the record intact and the
	// delete can be retried.
	if err := o.deps.Uploader.RemoveAll(ctx, id); err != nil {
		return fmt.Errorf("remove remote audio: %w", err)
	}
	if err := o.deps.Store.DeleteSermon(ctx, id); err != nil {
		return fmt.Errorf("delete sermon: %w", err)
	}
	if len(chunks) > 0 && chunks[0].LocalPath != "" {
		// Capture and import both keep a sermon's chunks in one directory.
		if rmErr := os.RemoveAll(filepath.Dir(chunks[0].LocalPath)); rmErr != nil {
			o.logger.Warn("remove local audio failed", zap.Error(rmErr))
		}
	}

	if o.sermon != nil && o.sermon.ID == id {
		o.gen++
		o.sermon = nil
		o.chunks = nil
		o.persisted = false
		o.result = nil
		o.setPhaseLocked(entities.InputPhase())
	}

	o.logger.Info("sermon deleted", zap.String("sermon_id", id.String()))
	return nil
}

// LoadExistingSermon resumes a past sermon: straight to Viewing when done,
// re-subscribe without re-enqueuing while remote work is still running, or
// surface the stage failure.
func (o *Orchestrator) LoadExistingSermon(ctx context.Context, id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sermon, err := o.deps.Store.GetSermonByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load sermon: %w", err)
	}
	if sermon == nil {
		return entities.ErrSermonNotFound
	}

	o.gen++
	o.sermon = sermon
	o.persisted = true
	o.result = nil

	switch status := sermon.Status(); {
	case status.IsViewable():
		result, err := o.loadResult(ctx, sermon)
		if err != nil {
			o.setPhaseLocked(entities.ErrorPhase(err))
			return err
		}
		o.result = result
		o.setPhaseLocked(entities.FlowPhase{Kind: entities.PhaseViewing})
		return nil

	case sermon.TranscriptionStatus == entities.StageFailed:
		reason := "transcription failed"
		if sermon.TranscriptionError != nil {
			reason = *sermon.TranscriptionError
		}
		err := &entities.TranscriptionFailedError{Reason: reason}
		o.setPhaseLocked(entities.ErrorPhase(err))
		return nil

	case sermon.StudyGuideStatus == entities.StageFailed:
		reason := "study guide generation failed"
		if sermon.StudyGuideError != nil {
			reason = *sermon.StudyGuideError
		}
		err := &entities.StudyGuideFailedError{Reason: reason}
		o.setPhaseLocked(entities.ErrorPhase(err))
		return nil

	default:
		chunks, err := o.deps.Store.GetChunksBySermonID(ctx, id)
		if err != nil {
			return fmt.Errorf("load chunks: %w", err)
		}
		o.chunks = chunks
		// The job is already enqueued; only the stream is re-attached.
		o.beginProcessingLocked(stageStream)
		return nil
	}
}

// beginProcessingLocked spawns the processing task. Caller holds o.mu.
func (o *Orchestrator) beginProcessingLocked(stage processingStage) {
	o.gen++
	gen := o.gen
	o.attempt++

	ctx, cancel := jobcontext.CycleBegin(context.Background(), o.sermon.ID, o.attempt, o.cfg.ProcessingTimeout)
	o.cancelCycle = cancel
	done := make(chan struct{})
	o.processingDone = done

	o.setPhaseLocked(entities.ProcessingPhase(entities.ProcessingStep{Kind: entities.StepUploading, Fraction: 0}))

	sermon := o.sermon
	chunks := make([]entities.AudioChunk, len(o.chunks))
	copy(chunks, o.chunks)

	go func() {
		defer close(done)
		defer cancel()
		o.runProcessing(ctx, gen, stage, sermon, chunks)
	}()
}

// runProcessing executes one processing cycle: waveforms → persist → upload
// → enqueue → progress stream, racing the stream against the cycle timeout.
func (o *Orchestrator) runProcessing(ctx context.Context, gen uint64, stage processingStage, sermon *entities.Sermon, chunks []entities.AudioChunk) {
	log := o.logger.With(
		zap.String("sermon_id", sermon.ID.String()),
		zap.Int("attempt", jobcontext.Attempt(ctx)),
	)

	if stage == stageFull {
		o.summarizeWaveforms(chunks, log)

		if err := o.deps.Store.CreateSermonWithChunks(ctx, sermon, chunks); err != nil {
			o.failCycle(ctx, gen, fmt.Errorf("persist sermon: %w", err), log)
			return
		}
		o.mu.Lock()
		if o.gen == gen {
			o.persisted = true
			o.chunks = chunks
		}
		o.mu.Unlock()
	}

	if stage == stageFull || stage == stageUpload {
		err := o.deps.Uploader.UploadAll(ctx, chunks, func(p upload.Progress) {
			o.setPhaseIf(gen, entities.ProcessingPhase(entities.ProcessingStep{
				Kind:     entities.StepUploading,
				Fraction: p.Fraction,
			}))
		})
		if err != nil {
			o.failCycle(ctx, gen, err, log)
			return
		}
		for i := range chunks {
			if err := o.deps.Store.MarkChunkUploaded(ctx, &chunks[i]); err != nil {
				log.Warn("persist chunk upload state failed", zap.Error(err))
			}
		}
		o.mu.Lock()
		if o.gen == gen {
			o.chunks = chunks
		}
		o.mu.Unlock()

		if err := o.deps.Queue.Enqueue(ctx, sermon.ID, len(chunks)); err != nil {
			o.failCycle(ctx, gen, fmt.Errorf("enqueue processing job: %w", err), log)
			return
		}
	}

	if stage == stageStream {
		// The job may have reached a terminal state while we were away.
		job, err := o.deps.Queue.LoadJob(ctx, sermon.ID)
		if err != nil {
			log.Warn("load job state failed", zap.Error(err))
		} else if job != nil && job.IsTerminal() {
			o.finishCycle(ctx, gen, sermon, *job, log)
			return
		} else if job != nil && job.StillRunning() {
			log.Info("remote job still running, re-attaching progress stream")
		}
	}

	stream, stop, err := o.deps.Queue.ProgressStream(ctx, sermon.ID)
	if err != nil {
		o.failCycle(ctx, gen, fmt.Errorf("subscribe progress: %w", err), log)
		return
	}
	defer stop()

	chunkTotal := len(chunks)
	for {
		select {
		case <-ctx.Done():
			// The cycle timeout and explicit cancellation both land here;
			// only the timeout is an error the user sees.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Error("processing timed out")
				o.setPhaseIf(gen, entities.ErrorPhase(entities.ErrProcessingTimeout))
			}
			return

		case u, ok := <-stream:
			if !ok {
				o.failCycle(ctx, gen, fmt.Errorf("progress stream closed before a terminal update"), log)
				return
			}
			o.setPhaseIf(gen, entities.ProcessingPhase(entities.StepForFraction(u.Fraction, chunkTotal)))
			if u.Job.IsTerminal() {
				o.finishCycle(ctx, gen, sermon, u.Job, log)
				return
			}
		}
	}
}

// summarizeWaveforms computes per-chunk waveform buckets. Best-effort: only
// WAV chunks produced by the capture pipeline are summarized locally.
func (o *Orchestrator) summarizeWaveforms(chunks []entities.AudioChunk, log *zap.Logger) {
	for i := range chunks {
		if chunks[i].Waveform != nil || !strings.HasSuffix(chunks[i].LocalPath, ".wav") {
			continue
		}
		buckets, err := capture.SummarizeWaveform(chunks[i].LocalPath, o.cfg.WaveformBuckets)
		if err != nil {
			log.Warn("waveform summary failed", zap.Int("chunk", chunks[i].Index), zap.Error(err))
			continue
		}
		raw, err := json.Marshal(buckets)
		if err != nil {
			continue
		}
		chunks[i].Waveform = raw
	}
}

// failCycle routes a processing failure into the Error phase unless the
// cycle was cancelled out from under us.
func (o *Orchestrator) failCycle(ctx context.Context, gen uint64, err error, log *zap.Logger) {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = entities.ErrProcessingTimeout
	}
	log.Error("processing cycle failed", zap.Error(err))
	o.setPhaseIf(gen, entities.ErrorPhase(err))
}

// finishCycle applies a terminal job to the sermon and moves to Viewing or
// Error. A failed study guide over a successful transcription stays
// viewable (degraded) and must not discard the transcript.
func (o *Orchestrator) finishCycle(ctx context.Context, gen uint64, sermon *entities.Sermon, job entities.ProcessingJob, log *zap.Logger) {
	sermon.TranscriptionStatus = job.TranscriptionStatus
	sermon.StudyGuideStatus = job.StudyGuideStatus
	if job.TranscriptionError != "" {
		msg := job.TranscriptionError
		sermon.TranscriptionError = &msg
	}
	if job.StudyGuideError != "" {
		msg := job.StudyGuideError
		sermon.StudyGuideError = &msg
	}
	sermon.UpdatedAt = time.Now()

	if err := o.deps.Store.UpdateStageStatuses(ctx, sermon); err != nil {
		log.Warn("persist stage statuses failed", zap.Error(err))
	}

	if job.TranscriptionStatus == entities.StageFailed {
		reason := job.TranscriptionError
		if reason == "" {
			reason = "remote transcription failed"
		}
		o.setPhaseIf(gen, entities.ErrorPhase(&entities.TranscriptionFailedError{Reason: reason}))
		return
	}

	result, err := o.loadResult(ctx, sermon)
	if err != nil {
		o.failCycle(ctx, gen, err, log)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return
	}
	o.result = result
	o.setPhaseLocked(entities.FlowPhase{Kind: entities.PhaseViewing})

	log.Info("processing complete",
		zap.String("status", string(sermon.Status())),
		zap.Bool("degraded", sermon.Status() == entities.SermonStatusDegraded),
	)
}

// loadResult fetches the transcript (required) and study guide (optional
// for degraded sermons) from the repository.
func (o *Orchestrator) loadResult(ctx context.Context, sermon *entities.Sermon) (*Result, error) {
	transcript, err := o.deps.Results.FetchTranscript(ctx, sermon.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	if transcript == nil {
		return nil, fmt.Errorf("transcript missing for completed sermon %s", sermon.ID)
	}

	var guide *entities.StudyGuide
	if sermon.StudyGuideStatus == entities.StageSucceeded {
		guide, err = o.deps.Results.FetchStudyGuide(ctx, sermon.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch study guide: %w", err)
		}
	}
	return &Result{Sermon: sermon, Transcript: transcript, StudyGuide: guide}, nil
}
