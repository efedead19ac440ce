package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Source is a live PCM-16 capture source (mono, CaptureSampleRate).
// Read blocks until data is available; Stop releases the underlying
// device and unblocks any pending Read.
type Source interface {
	io.Reader

	// Stop releases the capture device. After Stop returns, Active
	// reports false and Read returns an error or io.EOF.
	Stop() error

	// Active reports whether the source is still capturing.
	Active() bool
}

// readerSource adapts an io.ReadCloser (device node, pipe, file) into a
// Source.
type readerSource struct {
	rc io.ReadCloser

	mu     sync.Mutex
	active bool
}

// NewReaderSource wraps rc as a capture Source.
func NewReaderSource(rc io.ReadCloser) Source {
	return &readerSource{rc: rc, active: true}
}

func (s *readerSource) Read(p []byte) (int, error) {
	return s.rc.Read(p)
}

func (s *readerSource) Stop() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()

	return s.rc.Close()
}

func (s *readerSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SendFunc transmits one encoded frame to the outbound channel.
type SendFunc func(Frame) error

// CaptureProcessor digitizes a capture source into fixed-size encoded
// frames and hands each frame to the outbound channel in capture order.
// Frame boundaries carry no semantic meaning; a frame is sent as soon as
// it is filled.
type CaptureProcessor struct {
	src          Source
	send         SendFunc
	logger       *slog.Logger
	frameSamples int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once

	mu         sync.Mutex
	framesSent uint64
}

// NewCaptureProcessor creates a processor reading FrameSamples-sample
// frames from src and transmitting them via send.
func NewCaptureProcessor(src Source, send SendFunc, logger *slog.Logger) *CaptureProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	return &CaptureProcessor{
		src:          src,
		send:         send,
		logger:       logger,
		frameSamples: FrameSamples,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the capture loop. The processor stays attached until Stop.
func (p *CaptureProcessor) Start() {
	p.wg.Add(1)
	go p.captureLoop()
}

// Stop halts the capture loop and releases the source. After Stop
// returns, no further frames are transmitted. Safe to call repeatedly.
func (p *CaptureProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()

		// Unblock a pending Read before waiting for the loop.
		if err := p.src.Stop(); err != nil {
			p.logger.Warn("Error stopping capture source", slog.String("error", err.Error()))
		}

		p.wg.Wait()
	})
}

// FramesSent returns the number of frames transmitted so far.
func (p *CaptureProcessor) FramesSent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framesSent
}

// captureLoop reads full frames and transmits them until stopped or the
// source ends.
func (p *CaptureProcessor) captureLoop() {
	defer p.wg.Done()

	buf := make([]byte, p.frameSamples*2)

	for {
		if p.ctx.Err() != nil {
			return
		}

		if _, err := io.ReadFull(p.src, buf); err != nil {
			if p.ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				p.logger.Warn("Capture read failed", slog.String("error", err.Error()))
			}
			return
		}

		samples, err := BytesToSamples(buf)
		if err != nil {
			p.logger.Error("Invalid capture frame", slog.String("error", err.Error()))
			return
		}

		// Re-check after the blocking read so a frame captured during
		// shutdown is never transmitted.
		if p.ctx.Err() != nil {
			return
		}

		if err := p.send(EncodeFrame(samples)); err != nil {
			if p.ctx.Err() == nil {
				p.logger.Warn("Frame transmission failed", slog.String("error", err.Error()))
			}
			return
		}

		p.mu.Lock()
		p.framesSent++
		p.mu.Unlock()
	}
}
