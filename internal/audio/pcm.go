package audio

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Fixed session audio parameters. Capture and synthesized playback run at
// different native sample rates.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
	FrameSamples       = 4096

	// CaptureMimeType is the wire mime type for outbound capture frames.
	CaptureMimeType = "audio/pcm;rate=16000"
)

// Frame is one encoded capture frame in the wire blob format expected by
// the remote streaming endpoint.
type Frame struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// EncodeFrame packs mono PCM samples into a wire frame.
func EncodeFrame(samples []int16) Frame {
	return Frame{
		MimeType: CaptureMimeType,
		Data:     base64.StdEncoding.EncodeToString(SamplesToBytes(samples)),
	}
}

// DecodePCM unpacks a base64 wire payload into PCM samples.
func DecodePCM(data string) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}

	return BytesToSamples(raw)
}

// SamplesToBytes serializes samples as little-endian PCM-16.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// BytesToSamples parses little-endian PCM-16 bytes.
func BytesToSamples(raw []byte) ([]int16, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("audio data length must be even (got %d bytes)", len(raw))
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return samples, nil
}

// Duration returns the playback duration of samples at the given rate.
func Duration(sampleCount, sampleRate int) time.Duration {
	return time.Duration(float64(sampleCount) / float64(sampleRate) * float64(time.Second))
}

// DurationSeconds is Duration expressed on the playback clock's time base.
func DurationSeconds(sampleCount, sampleRate int) float64 {
	return float64(sampleCount) / float64(sampleRate)
}
