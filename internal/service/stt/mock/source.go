package mock

import (
	"context"
	"io"
	"math"
	"time"
)

// AudioSource yields synthetic speech-band audio for a fixed duration,
// then io.EOF. It pairs with the scripted providers for credential-free
// runs: the samples carry plausible energy so RMS-based confidence
// heuristics behave, but the text comes from the script.
type AudioSource struct {
	rate      int
	chunkSize int
	remaining int
	phase     float64
}

// NewAudioSource creates a source producing total seconds of audio at
// the given sample rate, in quarter-second chunks.
func NewAudioSource(rate int, total time.Duration) *AudioSource {
	return &AudioSource{
		rate:      rate,
		chunkSize: rate / 4,
		remaining: int(total.Seconds() * float64(rate)),
	}
}

// SampleRate returns the declared sample rate.
func (s *AudioSource) SampleRate() int { return s.rate }

// Read returns the next chunk, or io.EOF when the source is exhausted.
func (s *AudioSource) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.remaining <= 0 {
		return nil, io.EOF
	}

	n := s.chunkSize
	if n > s.remaining {
		n = s.remaining
	}
	s.remaining -= n

	// 220Hz tone at moderate amplitude: enough energy to read as speech.
	chunk := make([]int16, n)
	step := 2 * math.Pi * 220 / float64(s.rate)
	for i := range chunk {
		chunk[i] = int16(6000 * math.Sin(s.phase))
		s.phase += step
	}
	return chunk, nil
}
