package blockstage

import (
	"fmt"
	"os"
	"time"
)

// debugStats holds per-frame timing and scheduling counts.
// Only populated when Stage.debug is true.
type debugStats struct {
	stepTime time.Duration
	frame    uint64
	runs     int
	motions  int
	pending  int
}

// debugLog prints frame stats to stderr.
func (s *Stage) debugLog(stats debugStats) {
	if !s.debug.Load() {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr,
		"[blockstage] frame %d | step: %v | runs: %d | motions: %d | scheduled: %d\n",
		stats.frame, stats.stepTime, stats.runs, stats.motions, stats.pending)
	if stats.stepTime > s.tuning.FrameDuration() {
		_, _ = fmt.Fprintf(os.Stderr, "[blockstage] warning: frame %d took %v (budget %v)\n",
			stats.frame, stats.stepTime, s.tuning.FrameDuration())
	}
}
