package live

import (
	"log/slog"
	"sync"

	"github.com/Bonniface/TeachTap/internal/audio"
)

// Resources bundles every handle acquired for one session: the remote
// channel, the capture source and processor, and the playback
// scheduler. Release covers all of them on every exit path.
type Resources struct {
	Channel  Channel
	Source   audio.Source
	Capture  *audio.CaptureProcessor
	Playback *audio.Scheduler

	logger      *slog.Logger
	releaseOnce sync.Once
}

// NewResources creates a bundle; any field may be nil if acquisition
// failed partway through connect.
func NewResources(logger *slog.Logger) *Resources {
	return &Resources{logger: logger}
}

// Release tears everything down best-effort: close the channel, stop
// capture, release the microphone, flush playback. Idempotent; errors
// from already defunct handles are logged and swallowed.
func (r *Resources) Release() {
	r.releaseOnce.Do(r.release)
}

func (r *Resources) release() {
	// The channel goes first so a capture loop blocked mid-send is cut
	// loose before Capture.Stop waits on it.
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.logger.Warn("Error closing remote channel", slog.String("error", err.Error()))
		}
	}

	if r.Capture != nil {
		r.Capture.Stop()
	}

	if r.Source != nil {
		if err := r.Source.Stop(); err != nil {
			r.logger.Warn("Error releasing capture source", slog.String("error", err.Error()))
		}
	}

	if r.Playback != nil {
		r.Playback.Interrupt()
	}
}
