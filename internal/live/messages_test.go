package live

import (
	"encoding/json"
	"testing"

	"github.com/Bonniface/TeachTap/internal/audio"
)

func TestDecodeOutputTranscription(t *testing.T) {
	raw := []byte(`{"serverContent":{"outputTranscription":{"text":"hello there"}}}`)

	msgs, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	frag, ok := msgs[0].(TranscriptFragment)
	if !ok {
		t.Fatalf("expected TranscriptFragment, got %T", msgs[0])
	}
	if frag.Role != RoleModel || frag.Text != "hello there" {
		t.Errorf("unexpected fragment %+v", frag)
	}
}

func TestDecodeInputTranscription(t *testing.T) {
	raw := []byte(`{"serverContent":{"inputTranscription":{"text":"what is recursion"}}}`)

	msgs, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	frag, ok := msgs[0].(TranscriptFragment)
	if !ok {
		t.Fatalf("expected TranscriptFragment, got %T", msgs[0])
	}
	if frag.Role != RoleUser {
		t.Errorf("expected user role, got %q", frag.Role)
	}
}

func TestDecodeOutputTakesPrecedenceOverInput(t *testing.T) {
	raw := []byte(`{"serverContent":{"outputTranscription":{"text":"a"},"inputTranscription":{"text":"b"}}}`)

	msgs, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if frag := msgs[0].(TranscriptFragment); frag.Role != RoleModel {
		t.Errorf("expected model fragment to win, got %+v", frag)
	}
}

func TestDecodeAudioChunk(t *testing.T) {
	frame := audio.EncodeFrame([]int16{10, -20, 30})
	raw, _ := json.Marshal(map[string]any{
		"serverContent": map[string]any{
			"modelTurn": map[string]any{
				"parts": []map[string]any{
					{"inlineData": map[string]string{"mimeType": "audio/pcm;rate=24000", "data": frame.Data}},
				},
			},
		},
	})

	msgs, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	chunk, ok := msgs[0].(AudioChunk)
	if !ok {
		t.Fatalf("expected AudioChunk, got %T", msgs[0])
	}
	if len(chunk.PCM) != 3 || chunk.PCM[0] != 10 || chunk.PCM[1] != -20 || chunk.PCM[2] != 30 {
		t.Errorf("unexpected PCM %v", chunk.PCM)
	}
}

func TestDecodeCombinedMessageOrder(t *testing.T) {
	frame := audio.EncodeFrame([]int16{1})
	raw, _ := json.Marshal(map[string]any{
		"serverContent": map[string]any{
			"outputTranscription": map[string]string{"text": "done"},
			"turnComplete":        true,
			"modelTurn": map[string]any{
				"parts": []map[string]any{
					{"inlineData": map[string]string{"data": frame.Data}},
				},
			},
			"interrupted": true,
		},
	})

	msgs, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}

	if _, ok := msgs[0].(TranscriptFragment); !ok {
		t.Errorf("message 0 is %T, expected TranscriptFragment", msgs[0])
	}
	if _, ok := msgs[1].(TurnComplete); !ok {
		t.Errorf("message 1 is %T, expected TurnComplete", msgs[1])
	}
	if _, ok := msgs[2].(AudioChunk); !ok {
		t.Errorf("message 2 is %T, expected AudioChunk", msgs[2])
	}
	if _, ok := msgs[3].(Interrupted); !ok {
		t.Errorf("message 3 is %T, expected Interrupted", msgs[3])
	}
}

func TestDecodeEmptyMessage(t *testing.T) {
	msgs, err := DecodeServerMessage([]byte(`{"setupComplete":{}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	if _, err := DecodeServerMessage([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}

	raw := []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"data":"!!!"}}]}}}`)
	if _, err := DecodeServerMessage(raw); err == nil {
		t.Error("expected error for invalid base64 audio")
	}
}
