// Package audio implements microphone frame capture and gapless playback
// scheduling for the live session, plus the PCM wire codec shared by both.
package audio
