package audio

import (
	"io"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced playback clock.
type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(seconds float64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

// fakeHandle records whether it was stopped or completed.
type fakeHandle struct {
	start   float64
	pcm     []int16
	done    func()
	stopped bool
}

func (h *fakeHandle) Stop() { h.stopped = true }

// fakeSink collects scheduled buffers without any real timing.
type fakeSink struct {
	mu      sync.Mutex
	handles []*fakeHandle
}

func (s *fakeSink) Start(pcm []int16, start float64, done func()) (Handle, error) {
	h := &fakeHandle{start: start, pcm: pcm, done: done}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

func seconds(n float64, rate int) []int16 {
	return make([]int16, int(n*float64(rate)))
}

func TestSchedulerGaplessBackToBack(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, PlaybackSampleRate)

	// Two one-second chunks arriving in a burst at t=0.
	if err := s.Schedule(seconds(1.0, PlaybackSampleRate)); err != nil {
		t.Fatalf("schedule A failed: %v", err)
	}
	if err := s.Schedule(seconds(1.0, PlaybackSampleRate)); err != nil {
		t.Fatalf("schedule B failed: %v", err)
	}

	if sink.handles[0].start != 0 {
		t.Errorf("chunk A scheduled at %v, expected 0", sink.handles[0].start)
	}
	if sink.handles[1].start != 1.0 {
		t.Errorf("chunk B scheduled at %v, expected 1.0", sink.handles[1].start)
	}
	if s.NextStart() != 2.0 {
		t.Errorf("watermark %v, expected 2.0", s.NextStart())
	}
}

func TestSchedulerClampsWatermarkToClock(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, PlaybackSampleRate)

	if err := s.Schedule(seconds(0.5, PlaybackSampleRate)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	// The next chunk arrives well after the first finished playing; it
	// must not be scheduled in the past.
	clock.advance(3.0)
	if err := s.Schedule(seconds(0.5, PlaybackSampleRate)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	if sink.handles[1].start != 3.0 {
		t.Errorf("late chunk scheduled at %v, expected clock time 3.0", sink.handles[1].start)
	}
	if s.NextStart() != 3.5 {
		t.Errorf("watermark %v, expected 3.5", s.NextStart())
	}
}

func TestSchedulerInterruptFlushesEverything(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, PlaybackSampleRate)

	// Chunk A plays at t=0 for 1s; chunk B is queued behind it at t=1.
	s.Schedule(seconds(1.0, PlaybackSampleRate))
	s.Schedule(seconds(1.0, PlaybackSampleRate))

	// Interruption arrives mid-playback of A.
	clock.advance(0.5)
	s.Interrupt()

	if !sink.handles[0].stopped {
		t.Error("playing chunk A was not stopped")
	}
	if !sink.handles[1].stopped {
		t.Error("pending chunk B was not stopped before starting")
	}
	if s.ActiveCount() != 0 {
		t.Errorf("tracked set not cleared: %d handles", s.ActiveCount())
	}
	if s.NextStart() != 0 {
		t.Errorf("watermark %v after interrupt, expected 0", s.NextStart())
	}

	// The next chunk starts a fresh utterance at the current clock time.
	if err := s.Schedule(seconds(1.0, PlaybackSampleRate)); err != nil {
		t.Fatalf("schedule after interrupt failed: %v", err)
	}
	if got := sink.handles[2].start; got != 0.5 {
		t.Errorf("post-interrupt chunk scheduled at %v, expected 0.5", got)
	}
}

func TestSchedulerWriterSinkNaturalCompletion(t *testing.T) {
	clock := NewMonotonicClock()
	s := NewScheduler(clock, NewWriterSink(io.Discard, clock, PlaybackSampleRate), PlaybackSampleRate)

	// Many short chunks whose done callbacks fire from timer goroutines
	// while Schedule is still running.
	for i := 0; i < 50; i++ {
		if err := s.Schedule(make([]int16, 24)); err != nil {
			t.Fatalf("schedule %d failed: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.ActiveCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d handles never completed", s.ActiveCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := s.ChunksScheduled(); got != 50 {
		t.Errorf("chunks scheduled = %d, expected 50", got)
	}
}

func TestSchedulerHandleSelfRemovesOnCompletion(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, sink, PlaybackSampleRate)

	s.Schedule(seconds(1.0, PlaybackSampleRate))
	if s.ActiveCount() != 1 {
		t.Fatalf("expected 1 tracked handle, got %d", s.ActiveCount())
	}

	// Natural completion fires the done callback.
	sink.handles[0].done()

	if s.ActiveCount() != 0 {
		t.Errorf("handle did not self-remove: %d tracked", s.ActiveCount())
	}
}
