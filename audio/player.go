package audio

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(48000)

// Player mixes sound effects into the speaker. When no audio device is
// available it stays silent and Play becomes a no-op.
type Player struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	volume      float64
	initialized bool
	silent      bool
	log         *log.Logger
}

// NewPlayer creates a player at the given linear volume (1 = unchanged). A
// nil logger logs to stderr.
func NewPlayer(volume float64, logger *log.Logger) *Player {
	if logger == nil {
		logger = log.New(os.Stderr, "[audio] ", log.LstdFlags)
	}
	return &Player{mixer: &beep.Mixer{}, volume: volume, log: logger}
}

// Init opens the speaker. A failure switches the player to silent mode and
// is returned for the caller to report.
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized || p.silent {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		p.silent = true
		p.log.Printf("no audio device, running silent: %v", err)
		return err
	}
	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Silent reports whether the player has no device.
func (p *Player) Silent() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.silent || !p.initialized
}

// Play mixes s into the output.
func (p *Player) Play(s beep.Streamer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	s = withVolume(s, p.volume)
	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}

// PlayCollision plays the collision sound.
func (p *Player) PlayCollision() {
	p.Play(CollisionSound(sampleRate))
}

// Close stops every sound and releases the speaker.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	p.initialized = false
}
