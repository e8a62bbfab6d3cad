package plaque

// syntheticPointerEvent is a single injected pointer event in viewport
// pixels, fed through ProcessPointer exactly like real mouse input.
type syntheticPointerEvent struct {
	screenX, screenY float64
	pressed          bool
	button           MouseButton
	wheel            float64
}

// InjectPress queues a left-button press at the given viewport
// coordinates. Each queued event is consumed by one ProcessEbitenInput
// call.
func (s *Scene) InjectPress(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: true,
		button:  MouseButtonLeft,
	})
}

// InjectMove queues a move with the button held. Use it between
// InjectPress and InjectRelease to orbit the camera.
func (s *Scene) InjectMove(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: true,
		button:  MouseButtonLeft,
	})
}

// InjectHover queues a move with no button held, for hover feedback.
func (s *Scene) InjectHover(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		button: MouseButtonLeft,
	})
}

// InjectRelease queues a release at the given viewport coordinates.
func (s *Scene) InjectRelease(x, y float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: x, screenY: y,
		pressed: false,
		button:  MouseButtonLeft,
	})
}

// InjectClick queues a press followed by a release at the same point.
// Consumes two frames.
func (s *Scene) InjectClick(x, y float64) {
	s.InjectPress(x, y)
	s.InjectRelease(x, y)
}

// InjectDrag queues a press at (fromX, fromY), frames-2 interpolated moves
// and a release at (toX, toY). Minimum frames is 2.
func (s *Scene) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	s.InjectPress(fromX, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		s.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
	s.InjectRelease(toX, toY)
}

// InjectWheel queues a wheel step; positive dy dollies closer.
func (s *Scene) InjectWheel(dy float64) {
	s.injectQueue = append(s.injectQueue, syntheticPointerEvent{
		screenX: s.pointer.lastX, screenY: s.pointer.lastY,
		pressed: s.pointer.down,
		button:  s.pointer.button,
		wheel:   dy,
	})
}

// Injecting reports whether injected events are waiting.
func (s *Scene) Injecting() bool {
	return len(s.injectQueue) > 0
}

// processInjectedInput pops one queued event and feeds it through the
// pointer state machine. It reports whether an event was consumed, in
// which case real mouse input is skipped for the frame.
func (s *Scene) processInjectedInput() bool {
	if len(s.injectQueue) == 0 {
		return false
	}
	evt := s.injectQueue[0]
	copy(s.injectQueue, s.injectQueue[1:])
	s.injectQueue = s.injectQueue[:len(s.injectQueue)-1]

	if evt.wheel != 0 {
		s.ProcessWheel(evt.wheel)
		return true
	}
	s.ProcessPointer(evt.screenX, evt.screenY, evt.pressed, evt.button)
	return true
}
