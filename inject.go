package blockstage

import "time"

// InjectKeyDown presses key as if it came from the keyboard.
func (s *Stage) InjectKeyDown(key string) {
	s.Input.KeyDown(key)
}

// InjectKeyUp releases key.
func (s *Stage) InjectKeyUp(key string) {
	s.Input.KeyUp(key)
}

// InjectKeyTap presses key and releases it after hold of stage time. Front
// ends without key-up events (terminals) use this for every key press; a
// repeated tap before the release extends the hold.
func (s *Stage) InjectKeyTap(key string, hold time.Duration) {
	s.mu.Lock()
	if s.taps == nil {
		s.taps = make(map[string]Handle)
	}
	if h, ok := s.taps[key]; ok {
		s.Scheduler.Cancel(h)
	}
	s.Input.KeyDown(key)
	var h Handle
	h = s.Scheduler.After(nil, hold, func() {
		s.mu.Lock()
		if s.taps[key] == h {
			delete(s.taps, key)
		}
		s.mu.Unlock()
		s.Input.KeyUp(key)
	})
	s.taps[key] = h
	s.mu.Unlock()
}

// InjectMouse sets the primary mouse button state.
func (s *Stage) InjectMouse(down bool) {
	s.Input.SetMouseDown(down)
}
