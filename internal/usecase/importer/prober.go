package importer

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WAVProber reads duration from a RIFF/WAVE header without decoding audio.
// Compressed containers (MP3, M4A) need an external prober; this covers the
// files the capture pipeline itself produces.
type WAVProber struct{}

// ProbeDuration implements DurationProber for PCM WAV files.
func (WAVProber) ProbeDuration(_ context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 44)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a wav file: %s", path)
	}

	byteRate := binary.LittleEndian.Uint32(header[28:])
	dataLen := binary.LittleEndian.Uint32(header[40:])
	if byteRate == 0 {
		return 0, fmt.Errorf("wav header has zero byte rate")
	}
	return float64(dataLen) / float64(byteRate), nil
}
