package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/domain/entities"
)

// fakeSource replays scripted PCM frames on demand.
type fakeSource struct {
	rate     int
	channels int
	frames   chan Frame

	mu      sync.Mutex
	started bool
}

func newFakeSource(rate int) *fakeSource {
	return &fakeSource{rate: rate, channels: 1, frames: make(chan Frame, 256)}
}

func (f *fakeSource) Start(ctx context.Context) (<-chan Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.frames, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		close(f.frames)
		f.started = false
	}
	return nil
}

func (f *fakeSource) SampleRate() int { return f.rate }
func (f *fakeSource) Channels() int   { return f.channels }

// push emits n seconds of audio at the source's sample rate.
func (f *fakeSource) push(seconds float64, amplitude int16) {
	total := int(seconds * float64(f.rate))
	for total > 0 {
		n := total
		if n > f.rate { // 1s frames
			n = f.rate
		}
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = amplitude
		}
		f.frames <- Frame{Samples: samples}
		total -= n
	}
}

func newTestService(t *testing.T, src Source, minimum time.Duration) *Service {
	t.Helper()
	return NewService(zap.NewNop(), src, Options{
		BaseDir:          t.TempDir(),
		MinimumDuration:  minimum,
		LevelHistorySize: 100,
	})
}

func waitElapsed(t *testing.T, svc *Service, want time.Duration) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.Elapsed() < want {
		if time.Now().After(deadline) {
			t.Fatalf("capture loop never consumed %v of audio (elapsed %v)", want, svc.Elapsed())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStopFinalizesChunksInOrder(t *testing.T) {
	src := newFakeSource(100)
	svc := newTestService(t, src, 0)

	if err := svc.Start(context.Background(), uuid.New(), 2*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.push(5, 1000) // 2 full chunks + 1s partial
	waitElapsed(t, svc, 5*time.Second)

	chunks, err := svc.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	var offset float64
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if _, err := os.Stat(c.Path); err != nil {
			t.Fatalf("chunk file missing: %v", err)
		}
		offset += c.Duration
	}
	if offset < 4.9 || offset > 5.1 {
		t.Fatalf("total duration = %v, want ~5s", offset)
	}
	if chunks[0].Duration != 2 || chunks[1].Duration != 2 {
		t.Fatalf("full chunk durations = %v, %v, want 2s each", chunks[0].Duration, chunks[1].Duration)
	}
}

func TestStopTooShortKeepsRecording(t *testing.T) {
	src := newFakeSource(100)
	svc := newTestService(t, src, 30*time.Second)

	if err := svc.Start(context.Background(), uuid.New(), 600*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.push(5, 500)
	waitElapsed(t, svc, 5*time.Second)

	_, err := svc.Stop()
	var tooShort *entities.RecordingTooShortError
	if !errors.As(err, &tooShort) {
		t.Fatalf("Stop before minimum returned %v, want RecordingTooShortError", err)
	}

	// Still recording: more audio is accepted and a later stop succeeds.
	src.push(26, 500)
	waitElapsed(t, svc, 31*time.Second)

	chunks, err := svc.Stop()
	if err != nil {
		t.Fatalf("Stop after minimum failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestStopTooShortErrorCarriesDurations(t *testing.T) {
	src := newFakeSource(100)
	svc := newTestService(t, src, 30*time.Second)

	if err := svc.Start(context.Background(), uuid.New(), 600*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.push(2, 500)
	waitElapsed(t, svc, 2*time.Second)

	_, err := svc.Stop()
	var tooShort *entities.RecordingTooShortError
	if !errors.As(err, &tooShort) {
		t.Fatalf("Stop returned %v, want RecordingTooShortError", err)
	}
	if tooShort.Minimum != 30*time.Second {
		t.Fatalf("Minimum = %v, want 30s", tooShort.Minimum)
	}
	if tooShort.Actual < 2*time.Second || tooShort.Actual >= 30*time.Second {
		t.Fatalf("Actual = %v, want within [2s, 30s)", tooShort.Actual)
	}
	svc.Cancel()
}

func TestCancelDiscardsAudio(t *testing.T) {
	src := newFakeSource(100)
	svc := newTestService(t, src, 0)
	id := uuid.New()

	if err := svc.Start(context.Background(), id, 600*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.push(3, 500)
	waitElapsed(t, svc, 3*time.Second)

	if err := svc.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	dir := filepath.Join(svc.opts.BaseDir, id.String())
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("sermon directory should be removed, stat err = %v", err)
	}
}

func TestPauseSuppressesCapture(t *testing.T) {
	src := newFakeSource(100)
	svc := newTestService(t, src, 0)

	if err := svc.Start(context.Background(), uuid.New(), 600*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.push(2, 500)
	waitElapsed(t, svc, 2*time.Second)

	svc.Pause()
	src.push(2, 500)
	time.Sleep(50 * time.Millisecond)
	if svc.Elapsed() > 2100*time.Millisecond {
		t.Fatalf("elapsed advanced while paused: %v", svc.Elapsed())
	}

	svc.Resume()
	src.push(2, 500)
	waitElapsed(t, svc, 4*time.Second)

	if _, err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestLevelHistoryBounded(t *testing.T) {
	src := newFakeSource(100)
	svc := NewService(zap.NewNop(), src, Options{
		BaseDir:          t.TempDir(),
		LevelHistorySize: 10,
	})

	if err := svc.Start(context.Background(), uuid.New(), 600*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.push(30, 8000) // 30 one-second frames → 30 level samples
	waitElapsed(t, svc, 30*time.Second)

	history := svc.LevelHistory()
	if len(history) != 10 {
		t.Fatalf("history length = %d, want 10", len(history))
	}
	for _, lvl := range history {
		if lvl <= 0 || lvl > 1 {
			t.Fatalf("level %v outside (0, 1]", lvl)
		}
	}
	svc.Cancel()
}

func TestSummarizeWaveform(t *testing.T) {
	src := newFakeSource(100)
	svc := newTestService(t, src, 0)

	if err := svc.Start(context.Background(), uuid.New(), 600*time.Second); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.push(4, 16000)
	waitElapsed(t, svc, 4*time.Second)

	chunks, err := svc.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	buckets, err := SummarizeWaveform(chunks[0].Path, 100)
	if err != nil {
		t.Fatalf("SummarizeWaveform failed: %v", err)
	}
	if len(buckets) != 100 {
		t.Fatalf("got %d buckets, want 100", len(buckets))
	}
	want := 16000.0 / 32768.0
	for i, b := range buckets {
		if b < want-0.001 || b > want+0.001 {
			t.Fatalf("bucket %d = %v, want ~%v", i, b, want)
		}
	}
}

func TestConcurrentStopAndCancel(t *testing.T) {
	// Stop and Cancel may arrive together; exactly one tears the session
	// down and the loser must observe a cleanly reset service.
	for i := 0; i < 25; i++ {
		src := newFakeSource(8000)
		svc := newTestService(t, src, 0)
		if err := svc.Start(context.Background(), uuid.New(), time.Hour); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		src.push(1, 1000)
		waitElapsed(t, svc, time.Second)

		var (
			barrier            = make(chan struct{})
			wg                 sync.WaitGroup
			stopErr, cancelErr error
			chunks             []ChunkEvent
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-barrier
			chunks, stopErr = svc.Stop()
		}()
		go func() {
			defer wg.Done()
			<-barrier
			cancelErr = svc.Cancel()
		}()
		close(barrier)
		wg.Wait()

		if stopErr != nil && !errors.Is(stopErr, entities.ErrNotRecording) {
			t.Fatalf("iteration %d: Stop error = %v", i, stopErr)
		}
		if stopErr == nil && len(chunks) == 0 {
			t.Fatalf("iteration %d: Stop succeeded with no chunks", i)
		}
		if cancelErr != nil {
			t.Fatalf("iteration %d: Cancel error = %v", i, cancelErr)
		}
		if _, err := svc.Stop(); !errors.Is(err, entities.ErrNotRecording) {
			t.Fatalf("iteration %d: second Stop error = %v, want ErrNotRecording", i, err)
		}
	}
}
