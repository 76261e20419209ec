package blockstage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the timing and physics constants of a stage. The defaults
// reproduce the editor's feel; every value can be overridden from YAML.
type Tuning struct {
	FrameRate int             `yaml:"frame_rate"`
	Animation AnimationTuning `yaml:"animation"`
	Physics   PhysicsTuning   `yaml:"physics"`
	Stage     StageTuning     `yaml:"stage"`
}

// AnimationTuning controls interpreter timing.
type AnimationTuning struct {
	BaseDurationMs  float64 `yaml:"base_duration_ms"`
	MaxDurationMs   float64 `yaml:"max_duration_ms"`
	TurnDurationMs  float64 `yaml:"turn_duration_ms"`
	LooksDurationMs float64 `yaml:"looks_duration_ms"`
	RepeatDelayMs   float64 `yaml:"repeat_delay_ms"`
	BlockDelayMs    float64 `yaml:"block_delay_ms"`
	PixelsPerStep   float64 `yaml:"pixels_per_step"`
	StepDistance    float64 `yaml:"step_distance"`
	MoveIncrement   float64 `yaml:"move_increment"`
}

// PhysicsTuning controls the collision loop.
type PhysicsTuning struct {
	PauseDurationMs    float64 `yaml:"pause_duration_ms"`
	CooldownDurationMs float64 `yaml:"cooldown_duration_ms"`
	SpriteSize         float64 `yaml:"sprite_size"`
	EnergyLoss         float64 `yaml:"energy_loss"`
	StepLength         float64 `yaml:"step_length"`
}

// StageTuning describes the stage extents used by touchingEdge.
type StageTuning struct {
	HalfWidth  float64 `yaml:"half_width"`
	HalfHeight float64 `yaml:"half_height"`
}

// DefaultTuning returns the built-in constants.
func DefaultTuning() Tuning {
	return Tuning{
		FrameRate: 60,
		Animation: AnimationTuning{
			BaseDurationMs:  400,
			MaxDurationMs:   1500,
			TurnDurationMs:  300,
			LooksDurationMs: 2000,
			RepeatDelayMs:   300,
			BlockDelayMs:    50,
			PixelsPerStep:   1,
			StepDistance:    0.5,
			MoveIncrement:   0.5,
		},
		Physics: PhysicsTuning{
			PauseDurationMs:    500,
			CooldownDurationMs: 800,
			SpriteSize:         DefaultSpriteSize,
			EnergyLoss:         0.7,
			StepLength:         1,
		},
		Stage: StageTuning{
			HalfWidth:  50,
			HalfHeight: 50,
		},
	}
}

// LoadTuning reads a YAML file on top of DefaultTuning. Keys missing from
// the file keep their defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// Validate reports the first inconsistent value.
func (t Tuning) Validate() error {
	a, p := t.Animation, t.Physics
	switch {
	case t.FrameRate <= 0:
		return errors.New("frame_rate must be positive")
	case a.BaseDurationMs <= 0 || a.TurnDurationMs <= 0 || a.LooksDurationMs <= 0:
		return errors.New("animation durations must be positive")
	case a.MaxDurationMs < a.BaseDurationMs:
		return errors.New("max_duration_ms must not be below base_duration_ms")
	case a.RepeatDelayMs < 0 || a.BlockDelayMs < 0:
		return errors.New("delays must not be negative")
	case a.MoveIncrement <= 0 || a.StepDistance <= 0:
		return errors.New("move_increment and step_distance must be positive")
	case p.EnergyLoss <= 0 || p.EnergyLoss > 1:
		return errors.New("energy_loss must be in (0, 1]")
	case p.PauseDurationMs < 0 || p.CooldownDurationMs < 0:
		return errors.New("physics durations must not be negative")
	case p.SpriteSize <= 0 || p.StepLength <= 0:
		return errors.New("sprite_size and step_length must be positive")
	case t.Stage.HalfWidth <= 0 || t.Stage.HalfHeight <= 0:
		return errors.New("stage extents must be positive")
	}
	return nil
}

// FrameDuration is the length of one frame at FrameRate.
func (t Tuning) FrameDuration() time.Duration {
	return time.Second / time.Duration(t.FrameRate)
}

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}
