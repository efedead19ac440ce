package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bonniface/TeachTap/internal/audio"
)

// SessionConfig is the fixed configuration sent when a channel opens.
type SessionConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// Channel is an open duplex connection to the remote model. Messages
// delivers decoded inbound events until the channel closes; Err reports
// why the message stream ended, nil on a clean close.
type Channel interface {
	SendRealtimeInput(frame audio.Frame) error
	Messages() <-chan Message
	Err() error
	Close() error
}

// Dialer opens a Channel. The context bounds the connect attempt.
type Dialer interface {
	DialContext(ctx context.Context, cfg SessionConfig) (Channel, error)
}

// Outbound wire shapes.
type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model            string          `json:"model"`
	GenerationConfig json.RawMessage `json:"generationConfig"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []audio.Frame `json:"mediaChunks"`
}

// WebsocketDialer opens live sessions over a websocket endpoint.
type WebsocketDialer struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DialContext connects, sends the session setup message and starts the
// read loop. The connect attempt is bounded by the configured timeout.
func (d *WebsocketDialer) DialContext(ctx context.Context, cfg SessionConfig) (Channel, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	url := d.URL
	if d.APIKey != "" {
		url = fmt.Sprintf("%s?key=%s", url, d.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial live endpoint: %w", err)
	}

	genCfg, err := json.Marshal(map[string]any{
		"responseModalities": []string{"AUDIO"},
		"speechConfig": map[string]any{
			"voiceConfig": map[string]any{
				"prebuiltVoiceConfig": map[string]string{"voiceName": cfg.Voice},
			},
		},
		"systemInstruction":        cfg.SystemInstruction,
		"inputAudioTranscription":  map[string]any{},
		"outputAudioTranscription": map[string]any{},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("marshal session config: %w", err)
	}

	if err := conn.WriteJSON(setupMessage{Setup: setupPayload{Model: cfg.Model, GenerationConfig: genCfg}}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send session setup: %w", err)
	}

	ch := &wsChannel{
		conn:   conn,
		logger: d.Logger,
		msgs:   make(chan Message, 64),
	}

	go ch.readLoop()

	return ch, nil
}

// wsChannel is a Channel over one websocket connection.
type wsChannel struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	msgs chan Message

	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
	err    error
}

// SendRealtimeInput transmits one captured frame.
func (c *wsChannel) SendRealtimeInput(frame audio.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := realtimeInputMessage{RealtimeInput: realtimeInput{MediaChunks: []audio.Frame{frame}}}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send realtime input: %w", err)
	}
	return nil
}

func (c *wsChannel) Messages() <-chan Message {
	return c.msgs
}

func (c *wsChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close shuts the connection down. Safe to call repeatedly; close
// errors on an already defunct connection are swallowed.
func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		// WriteControl is safe concurrently with other writers, so Close
		// never waits behind a send stalled on a dead peer. The
		// connection close below aborts any such send.
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		c.conn.Close()
	})
	return nil
}

// readLoop decodes inbound payloads and feeds them to the message
// channel until the connection ends.
func (c *wsChannel) readLoop() {
	defer close(c.msgs)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.setErr(err)
			return
		}

		msgs, err := DecodeServerMessage(raw)
		if err != nil {
			c.logger.Warn("Dropping undecodable server message", slog.String("error", err.Error()))
			continue
		}

		for _, m := range msgs {
			c.msgs <- m
		}
	}
}

// setErr records the first read failure. Failures after a local Close
// are the expected result of tearing the connection down.
func (c *wsChannel) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.err != nil {
		return
	}
	c.err = err
}
