// Package audio provides the PulseAudio-backed PCM source for microphone
// capture.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/usecase/capture"
)

const defaultSampleRate = 44100

// PulseSource records mono s16 PCM from one Pulse input source and delivers
// it as capture frames. One recording stream is active at a time.
type PulseSource struct {
	logger     *zap.Logger
	device     string
	sampleRate int

	mu       sync.Mutex
	client   *pulse.Client
	stream   *pulse.RecordStream
	frames   chan capture.Frame
	stopCh   chan struct{}
	stopped  bool
	inflight sync.WaitGroup
}

// NewPulseSource constructs a source over the named Pulse device. An empty
// or "default" device selects the server's default input.
func NewPulseSource(logger *zap.Logger, device string, sampleRate int) *PulseSource {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &PulseSource{
		logger:     logger,
		device:     device,
		sampleRate: sampleRate,
	}
}

func (p *PulseSource) SampleRate() int { return p.sampleRate }

func (p *PulseSource) Channels() int { return 1 }

// Start connects to the Pulse server and begins recording. Frames flow on
// the returned channel until Stop is called or the context is cancelled.
func (p *PulseSource) Start(ctx context.Context) (<-chan capture.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil, errors.New("pulse capture already running")
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("sermon-engine"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	var source *pulse.Source
	if p.device == "" || p.device == "default" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(p.device)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", p.device, err)
	}

	p.client = client
	p.frames = make(chan capture.Frame, 64)
	p.stopCh = make(chan struct{})
	p.stopped = false

	writer := pulse.NewWriter(writerFunc(p.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(p.sampleRate),
		pulse.RecordMediaName("sermon capture"),
	)
	if err != nil {
		client.Close()
		p.client = nil
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	p.stream = stream
	stream.Start()

	p.logger.Info("pulse capture started",
		zap.String("source", source.ID()),
		zap.Int("sample_rate", p.sampleRate),
	)

	go func() {
		select {
		case <-ctx.Done():
			_ = p.Stop()
		case <-p.stopCh:
		}
	}()

	return p.frames, nil
}

// Stop halts the record stream and closes the frame channel exactly once.
func (p *PulseSource) Stop() error {
	p.mu.Lock()
	if p.stopped || p.client == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	stream := p.stream
	client := p.client
	frames := p.frames
	p.stream = nil
	p.client = nil
	p.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	client.Close()

	p.inflight.Wait()
	close(frames)
	return nil
}

// onPCM receives raw little-endian s16 buffers from Pulse and forwards them
// as frames. It must never block past a stop.
func (p *PulseSource) onPCM(buffer []byte) (int, error) {
	if len(buffer) < 2 {
		return len(buffer), nil
	}

	p.inflight.Add(1)
	defer p.inflight.Done()

	select {
	case <-p.stopCh:
		return 0, io.EOF
	default:
	}

	samples := make([]int16, len(buffer)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buffer[i*2:]))
	}

	select {
	case p.frames <- capture.Frame{Samples: samples}:
	case <-p.stopCh:
		return 0, io.EOF
	}
	return len(samples) * 2, nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
