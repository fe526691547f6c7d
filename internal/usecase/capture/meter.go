package capture

import (
	"math"
	"sync"
)

// LevelMeter keeps a bounded window of recent audio level samples for
// display. Older samples are dropped, never persisted.
type LevelMeter struct {
	mu    sync.Mutex
	ring  []float64
	next  int
	count int
}

// NewLevelMeter creates a meter retaining the last size samples.
func NewLevelMeter(size int) *LevelMeter {
	if size < 1 {
		size = 1
	}
	return &LevelMeter{ring: make([]float64, size)}
}

// Push records one level sample, evicting the oldest when full.
func (m *LevelMeter) Push(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring[m.next] = level
	m.next = (m.next + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
}

// Snapshot returns retained samples oldest-first.
func (m *LevelMeter) Snapshot() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, 0, m.count)
	start := m.next - m.count
	for i := 0; i < m.count; i++ {
		out = append(out, m.ring[((start+i)%len(m.ring)+len(m.ring))%len(m.ring)])
	}
	return out
}

// Reset discards retained samples.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.count = 0
}

// rmsLevel computes the normalized RMS level of a frame of 16-bit samples.
func rmsLevel(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
