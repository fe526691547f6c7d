package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavWriter streams 16-bit PCM into a RIFF/WAVE file. Header sizes are
// patched on Close once the data length is known.
type wavWriter struct {
	f          *os.File
	sampleRate int
	channels   int
	samples    int64
}

const wavHeaderSize = 44

func newWAVWriter(path string, sampleRate, channels int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create chunk file: %w", err)
	}
	// Reserve header space; sizes are written on Close.
	if _, err := f.Write(make([]byte, wavHeaderSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("reserve wav header: %w", err)
	}
	return &wavWriter{f: f, sampleRate: sampleRate, channels: channels}, nil
}

// WriteSamples appends interleaved 16-bit samples.
func (w *wavWriter) WriteSamples(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("write pcm data: %w", err)
	}
	w.samples += int64(len(samples))
	return nil
}

// Duration returns the written audio length in seconds.
func (w *wavWriter) Duration() float64 {
	if w.sampleRate == 0 || w.channels == 0 {
		return 0
	}
	return float64(w.samples) / float64(w.channels) / float64(w.sampleRate)
}

// Close patches the RIFF header and closes the file.
func (w *wavWriter) Close() error {
	dataLen := w.samples * 2
	header := make([]byte, wavHeaderSize)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataLen))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(w.sampleRate*w.channels*2))
	binary.LittleEndian.PutUint16(header[32:], uint16(w.channels*2))
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataLen))

	if _, err := w.f.WriteAt(header, 0); err != nil {
		w.f.Close()
		return fmt.Errorf("patch wav header: %w", err)
	}
	return w.f.Close()
}

// readWAVSamples reads all 16-bit PCM samples from a WAV file written by
// wavWriter, returning the samples plus format info.
func readWAVSamples(path string) (samples []int16, sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, 0, 0, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("not a wav file: %s", path)
	}
	channels = int(binary.LittleEndian.Uint16(header[22:]))
	sampleRate = int(binary.LittleEndian.Uint32(header[24:]))
	dataLen := binary.LittleEndian.Uint32(header[40:])

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, 0, 0, fmt.Errorf("read pcm data: %w", err)
	}
	samples = make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, sampleRate, channels, nil
}
