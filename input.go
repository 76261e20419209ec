package blockstage

import "sync"

// InputState holds the keyboard and mouse state read by keyPressed and
// mouseDown conditions. Front ends write into it; the interpreter only reads.
// It is owned by a Stage and closed when the stage unmounts, after which
// writes are ignored and every key reads as released.
type InputState struct {
	mu        sync.RWMutex
	keys      map[string]bool
	mouseDown bool
	closed    bool
}

// NewInputState returns an open input state with nothing pressed.
func NewInputState() *InputState {
	return &InputState{keys: make(map[string]bool)}
}

// KeyDown records key as pressed. Keys use browser names (" ", "ArrowUp",
// "Enter", "a").
func (in *InputState) KeyDown(key string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.keys[key] = true
}

// KeyUp records key as released.
func (in *InputState) KeyUp(key string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.keys, key)
}

// SetMouseDown records the primary mouse button state.
func (in *InputState) SetMouseDown(down bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.mouseDown = down
}

// IsKeyPressed reports whether key is currently held.
func (in *InputState) IsKeyPressed(key string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.keys[key]
}

// IsMouseDown reports whether the primary mouse button is held.
func (in *InputState) IsMouseDown() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.mouseDown
}

// PressedKeys returns the number of keys currently held.
func (in *InputState) PressedKeys() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.keys)
}

// Reset releases every key and the mouse button.
func (in *InputState) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	clear(in.keys)
	in.mouseDown = false
}

// Close resets the state and ignores all further writes.
func (in *InputState) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	clear(in.keys)
	in.mouseDown = false
	in.closed = true
}
