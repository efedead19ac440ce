package audio

import (
	"testing"
	"time"
)

func TestSampleByteConversion(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}

	raw := SamplesToBytes(samples)
	if len(raw) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(raw))
	}

	back, err := BytesToSamples(raw)
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}

	for i, s := range samples {
		if back[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, back[i])
		}
	}
}

func TestBytesToSamplesRejectsOddLength(t *testing.T) {
	if _, err := BytesToSamples([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected odd-length data to be rejected")
	}
}

func TestEncodeFrameWireFormat(t *testing.T) {
	frame := EncodeFrame([]int16{100, -100})

	if frame.MimeType != "audio/pcm;rate=16000" {
		t.Errorf("unexpected mime type %q", frame.MimeType)
	}

	samples, err := DecodePCM(frame.Data)
	if err != nil {
		t.Fatalf("DecodePCM failed: %v", err)
	}
	if len(samples) != 2 || samples[0] != 100 || samples[1] != -100 {
		t.Errorf("round trip mismatch: %v", samples)
	}
}

func TestDuration(t *testing.T) {
	// One second of playback audio.
	if d := Duration(PlaybackSampleRate, PlaybackSampleRate); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}

	if sec := DurationSeconds(12000, PlaybackSampleRate); sec != 0.5 {
		t.Errorf("expected 0.5s, got %v", sec)
	}
}
