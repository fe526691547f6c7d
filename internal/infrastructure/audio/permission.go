package audio

import (
	"context"

	"github.com/jfreymuth/pulse"
	"go.uber.org/zap"
)

// RequestMicrophonePermission probes the Pulse server for a usable input
// source. There is no interactive grant on the server side; access is denied
// when the daemon is unreachable or exposes no input.
func (p *PulseSource) RequestMicrophonePermission(_ context.Context) bool {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("sermon-engine"),
	)
	if err != nil {
		p.logger.Warn("pulse server unreachable", zap.Error(err))
		return false
	}
	defer client.Close()

	if p.device == "" || p.device == "default" {
		_, err = client.DefaultSource()
	} else {
		_, err = client.SourceByID(p.device)
	}
	if err != nil {
		p.logger.Warn("no usable input source", zap.String("device", p.device), zap.Error(err))
		return false
	}
	return true
}
