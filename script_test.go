package blockstage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"invalid json", `{"steps": [`, "parse script"},
		{"no steps", `{"steps": []}`, "no steps"},
		{"unknown action", `{"steps": [{"action": "jump"}]}`, `unknown action "jump"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScript([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScriptRunnerDrivesStage(t *testing.T) {
	s := newTestStage(t)
	cond := NewBlock(BlockIfElse, Str(string(CondKeyPressed)), Str(" ")).
		WithChildren(
			NewBlock(BlockSay, Str("pressed"), Num(5)),
			NewBlock(BlockSay, Str("idle"), Num(5)).Else(),
		)
	require.NoError(t, s.Store.SetBlocks("sprite-1", []Block{cond}))

	r, err := LoadScript([]byte(`{"steps": [
		{"action": "keyDown", "key": " "},
		{"action": "run"},
		{"action": "wait", "frames": 3},
		{"action": "keyUp", "key": " "},
		{"action": "stop"}
	]}`))
	require.NoError(t, err)
	s.SetScript(r)

	// keyDown, run (first frame of the program sees the key).
	s.Update(frame)
	s.Update(frame)
	sp, _ := s.Store.Sprite("sprite-1")
	require.NotNil(t, sp.Speech)
	assert.Equal(t, "pressed", sp.Speech.Message)

	for i := 0; i < 10 && !r.Done(); i++ {
		s.Update(frame)
	}
	assert.True(t, r.Done())
	assert.Empty(t, r.Errors())
	assert.False(t, s.Input.IsKeyPressed(" "))
	assert.False(t, s.Snapshot().Execution.IsPlaying)
	sp, _ = s.Store.Sprite("sprite-1")
	assert.Nil(t, sp.Speech, "stop clears speech")
}

func TestScriptRunnerRecordsStepErrors(t *testing.T) {
	s := newTestStage(t)
	r, err := LoadScript([]byte(`{"steps": [
		{"action": "runSprite", "sprite": "sprite-9"},
		{"action": "motion", "sprite": "sprite-1", "steps": 2},
		{"action": "drag", "sprite": "sprite-1", "x": 0, "y": -4, "steps": 1}
	]}`))
	require.NoError(t, err)
	s.SetScript(r)
	for i := 0; i < 5; i++ {
		s.Update(frame)
	}
	assert.True(t, r.Done())
	require.Len(t, r.Errors(), 1)
	assert.True(t, strings.HasPrefix(r.Errors()[0].Error(), "script step 0 (runSprite)"))
	assert.ErrorIs(t, r.Errors()[0], ErrSpriteNotFound)
}
