package audio

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Clock supplies the playback timeline in seconds. Injectable for tests.
type Clock interface {
	Now() float64
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a Clock measuring seconds since creation.
func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// Handle is one scheduled playback buffer. Stop halts it immediately;
// stopping an already finished handle is a no-op.
type Handle interface {
	Stop()
}

// Sink starts playback of decoded PCM buffers at scheduled timeline
// positions. done fires asynchronously after natural completion and must
// never fire once the handle has been stopped.
type Sink interface {
	Start(pcm []int16, start float64, done func()) (Handle, error)
}

// Scheduler plays independently arriving audio chunks back-to-back. It
// keeps a monotonically non-decreasing next-start watermark and the set
// of in-flight handles so an interruption can silence everything at once.
type Scheduler struct {
	clock      Clock
	sink       Sink
	sampleRate int

	mu        sync.Mutex
	nextStart float64
	handles   map[Handle]struct{}
	scheduled uint64
}

// NewScheduler creates a playback scheduler on the given clock and sink.
func NewScheduler(clock Clock, sink Sink, sampleRate int) *Scheduler {
	return &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		handles:    make(map[Handle]struct{}),
	}
}

// Schedule queues pcm to start exactly at the current watermark and
// advances the watermark by the chunk's duration. A watermark that has
// fallen behind the clock is first clamped forward, so late arrivals are
// never scheduled in the past.
func (s *Scheduler) Schedule(pcm []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.clock.Now(); s.nextStart < now {
		s.nextStart = now
	}

	// The sink may fire done before Start returns; reading h under the
	// lock orders that read after the assignment below.
	var h Handle
	h, err := s.sink.Start(pcm, s.nextStart, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handles, h)
	})
	if err != nil {
		return fmt.Errorf("start playback buffer: %w", err)
	}

	s.handles[h] = struct{}{}
	s.nextStart += DurationSeconds(len(pcm), s.sampleRate)
	s.scheduled++

	return nil
}

// Interrupt halts every scheduled and playing buffer immediately, clears
// the tracked set and resets the watermark so the next chunk starts a
// fresh utterance.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h := range s.handles {
		h.Stop()
	}

	s.handles = make(map[Handle]struct{})
	s.nextStart = 0
}

// NextStart returns the current watermark. Mainly for monitoring.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// ActiveCount returns the number of in-flight playback buffers.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// ChunksScheduled returns the total number of chunks scheduled.
func (s *Scheduler) ChunksScheduled() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// writerSink plays buffers by writing raw PCM to an io.Writer at their
// scheduled wall-clock offsets. It stands in for a hardware output
// device.
type writerSink struct {
	w          io.Writer
	clock      Clock
	sampleRate int

	mu sync.Mutex
}

// NewWriterSink creates a Sink emitting PCM-16 bytes to w on schedule.
func NewWriterSink(w io.Writer, clock Clock, sampleRate int) Sink {
	return &writerSink{w: w, clock: clock, sampleRate: sampleRate}
}

type writerHandle struct {
	mu      sync.Mutex
	stopped bool
	write   *time.Timer
	finish  *time.Timer
}

func (h *writerHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true

	if h.write != nil {
		h.write.Stop()
	}
	if h.finish != nil {
		h.finish.Stop()
	}
}

func (s *writerSink) Start(pcm []int16, start float64, done func()) (Handle, error) {
	delay := time.Duration((start - s.clock.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}

	h := &writerHandle{}
	raw := SamplesToBytes(pcm)

	h.write = time.AfterFunc(delay, func() {
		h.mu.Lock()
		stopped := h.stopped
		h.mu.Unlock()
		if stopped {
			return
		}

		s.mu.Lock()
		s.w.Write(raw)
		s.mu.Unlock()
	})

	h.finish = time.AfterFunc(delay+Duration(len(pcm), s.sampleRate), func() {
		h.mu.Lock()
		stopped := h.stopped
		h.stopped = true
		h.mu.Unlock()
		if stopped {
			return
		}

		done()
	})

	return h, nil
}
