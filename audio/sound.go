// Package audio synthesises the stage's sound effects with beep and plays
// them through the system speaker.
package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Collision sound shape: a sine whose pitch and gain both fall
// exponentially over CollisionDuration.
const (
	CollisionDuration = 200 * time.Millisecond
	collisionFreqFrom = 220.0
	collisionFreqTo   = 0.01
	collisionGainFrom = 0.3
	collisionGainTo   = 0.01
)

// expRamp returns the value of an exponential ramp from a to b at t in [0, 1].
func expRamp(a, b, t float64) float64 {
	return a * math.Pow(b/a, t)
}

// sweep generates a sine whose frequency and amplitude ramp exponentially.
type sweep struct {
	rate               beep.SampleRate
	freqFrom, freqTo   float64
	gainFrom, gainTo   float64
	phase              float64
	position, duration int
}

// NewSweep creates a sine sweep of the given duration.
func NewSweep(freqFrom, freqTo, gainFrom, gainTo float64, duration time.Duration, rate beep.SampleRate) beep.Streamer {
	return &sweep{
		rate:     rate,
		freqFrom: freqFrom,
		freqTo:   freqTo,
		gainFrom: gainFrom,
		gainTo:   gainTo,
		duration: rate.N(duration),
	}
}

func (s *sweep) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.position >= s.duration {
			return i, i > 0
		}
		t := float64(s.position) / float64(s.duration)
		val := math.Sin(2*math.Pi*s.phase) * expRamp(s.gainFrom, s.gainTo, t)
		samples[i][0] = val
		samples[i][1] = val

		s.phase += expRamp(s.freqFrom, s.freqTo, t) / float64(s.rate)
		s.phase -= math.Floor(s.phase) // keep in [0, 1)
		s.position++
	}
	return len(samples), true
}

func (s *sweep) Err() error { return nil }

// CollisionSound returns the thud played when two sprites collide.
func CollisionSound(rate beep.SampleRate) beep.Streamer {
	return NewSweep(collisionFreqFrom, collisionFreqTo, collisionGainFrom, collisionGainTo, CollisionDuration, rate)
}

// withVolume scales s by a linear volume. math.Log2(0) is -Inf, so zero
// volume is made silent instead.
func withVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}
