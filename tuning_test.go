package blockstage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTuningOverlaysDefaults(t *testing.T) {
	path := writeTuning(t, `
frame_rate: 30
animation:
  turn_duration_ms: 150
physics:
  energy_loss: 0.5
`)
	got, err := LoadTuning(path)
	require.NoError(t, err)

	want := DefaultTuning()
	want.FrameRate = 30
	want.Animation.TurnDurationMs = 150
	want.Physics.EnergyLoss = 0.5
	assert.Equal(t, want, got)
	assert.Equal(t, time.Second/30, got.FrameDuration())
}

func TestLoadTuningRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"energy loss", "physics:\n  energy_loss: 1.5\n", "energy_loss"},
		{"max below base", "animation:\n  max_duration_ms: 10\n", "max_duration_ms"},
		{"frame rate", "frame_rate: 0\n", "frame_rate"},
		{"stage", "stage:\n  half_width: -1\n", "stage extents"},
		{"syntax", "animation: [\n", "tuning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuning(writeTuning(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTuningMissingFile(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultTuningIsValid(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())
}
