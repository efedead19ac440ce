package live

import (
	"encoding/json"
	"fmt"

	"github.com/Bonniface/TeachTap/internal/audio"
)

// Role identifies the speaker of a transcript fragment.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one decoded inbound event. Exactly one of the concrete
// types below; the raw wire shape is decoded once at the channel
// boundary and never probed again.
type Message interface {
	isMessage()
}

// TranscriptFragment carries a partial transcript of one direction.
type TranscriptFragment struct {
	Role Role
	Text string
}

// AudioChunk carries decoded synthesized PCM ready for playback.
type AudioChunk struct {
	PCM []int16
}

// TurnComplete marks the end of the current conversational turn.
type TurnComplete struct{}

// Interrupted signals that the remote model was barged in on and all
// pending playback must be flushed.
type Interrupted struct{}

func (TranscriptFragment) isMessage() {}
func (AudioChunk) isMessage()         {}
func (TurnComplete) isMessage()       {}
func (Interrupted) isMessage()        {}

// Wire shapes of the remote server message.
type serverMessage struct {
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type part struct {
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// DecodeServerMessage converts one raw inbound payload into its decoded
// events, in the order the session handler consumes them. A message with
// no recognized content decodes to an empty slice.
func DecodeServerMessage(raw []byte) ([]Message, error) {
	var wire serverMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}

	sc := wire.ServerContent
	if sc == nil {
		return nil, nil
	}

	var msgs []Message

	// A single message carries at most one transcription direction; the
	// output direction takes precedence.
	if sc.OutputTranscription != nil {
		msgs = append(msgs, TranscriptFragment{Role: RoleModel, Text: sc.OutputTranscription.Text})
	} else if sc.InputTranscription != nil {
		msgs = append(msgs, TranscriptFragment{Role: RoleUser, Text: sc.InputTranscription.Text})
	}

	if sc.TurnComplete {
		msgs = append(msgs, TurnComplete{})
	}

	if sc.ModelTurn != nil && len(sc.ModelTurn.Parts) > 0 {
		if data := sc.ModelTurn.Parts[0].InlineData; data != nil && data.Data != "" {
			pcm, err := audio.DecodePCM(data.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline audio: %w", err)
			}
			msgs = append(msgs, AudioChunk{PCM: pcm})
		}
	}

	if sc.Interrupted {
		msgs = append(msgs, Interrupted{})
	}

	return msgs, nil
}
