package blockstage

import (
	"encoding/json"
	"fmt"
)

// scriptStep represents a single action in an input script.
type scriptStep struct {
	Action string  `json:"action"`
	Key    string  `json:"key,omitempty"`
	Sprite string  `json:"sprite,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Steps  float64 `json:"steps,omitempty"`
	Frames int     `json:"frames,omitempty"`
}

// script is the top-level JSON structure for an input script.
type script struct {
	Steps []scriptStep `json:"steps"`
}

// ScriptRunner replays scripted input and driver actions against a Stage,
// one step per frame. Attach it with Stage.SetScript.
//
// Supported actions: keyDown, keyUp (key), mouseDown, mouseUp, run,
// runSprite (sprite), stop, drag (sprite, x, y; picks up, moves and drops),
// motion (sprite, steps) and wait (frames).
type ScriptRunner struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
	errs      []error
}

// LoadScript parses a JSON input script.
func LoadScript(jsonData []byte) (*ScriptRunner, error) {
	var sc script
	if err := json.Unmarshal(jsonData, &sc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range sc.Steps {
		if !knownScriptAction(st.Action) {
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &ScriptRunner{steps: sc.Steps}, nil
}

func knownScriptAction(a string) bool {
	switch a {
	case "keyDown", "keyUp", "mouseDown", "mouseUp", "run", "runSprite", "stop", "drag", "motion", "wait":
		return true
	}
	return false
}

// Done reports whether every step has been executed.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// Errors returns the failures of steps that could not be applied.
func (r *ScriptRunner) Errors() []error {
	return r.errs
}

// step advances the runner by one frame. Called from Stage.Update.
func (r *ScriptRunner) step(s *Stage) {
	if r.done {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	var err error
	switch st.Action {
	case "keyDown":
		s.InjectKeyDown(st.Key)
	case "keyUp":
		s.InjectKeyUp(st.Key)
	case "mouseDown":
		s.InjectMouse(true)
	case "mouseUp":
		s.InjectMouse(false)
	case "run":
		s.RunAll()
	case "runSprite":
		_, err = s.RunSprite(st.Sprite)
	case "stop":
		s.StopAll()
	case "drag":
		if err = s.StartDrag(st.Sprite); err == nil {
			if err = s.DragTo(st.Sprite, Vec2{st.X, st.Y}); err == nil {
				err = s.EndDrag(st.Sprite, st.Steps)
			}
		}
	case "motion":
		err = s.StartMotion(st.Sprite, st.Steps)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	}
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("script step %d (%s): %w", r.cursor-1, st.Action, err))
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 {
		r.done = true
	}
}
