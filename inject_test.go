package plaque

import "testing"

func TestInjectClick(t *testing.T) {
	s, near, _ := pickScene(t)
	var clicked *Node
	s.OnClick(func(ev PointerEvent) { clicked = ev.Hit.Node })

	s.InjectClick(401, 299)
	if len(s.injectQueue) != 2 {
		t.Fatalf("expected 2 queued events, got %d", len(s.injectQueue))
	}

	// Frame 1: press
	if !s.processInjectedInput() {
		t.Fatal("press not consumed")
	}
	if clicked != nil {
		t.Error("click should not fire on press frame")
	}

	// Frame 2: release fires the click
	s.processInjectedInput()
	if s.Injecting() {
		t.Fatalf("expected empty queue, got %d", len(s.injectQueue))
	}
	if clicked != near {
		t.Errorf("clicked = %v, want near quad", clicked)
	}
	if s.processInjectedInput() {
		t.Error("empty queue should not consume")
	}
}

func TestInjectDragOrbits(t *testing.T) {
	s, _, _ := pickScene(t)
	clicks := 0
	s.OnClick(func(PointerEvent) { clicks++ })
	before := s.Camera().Position

	s.InjectDrag(401, 299, 600, 299, 5)
	if len(s.injectQueue) != 5 {
		t.Fatalf("queued %d events, want 5", len(s.injectQueue))
	}
	for s.Injecting() {
		s.processInjectedInput()
	}
	if clicks != 0 {
		t.Error("drag should not click")
	}
	if s.Camera().Position == before {
		t.Error("drag should orbit the camera")
	}
}

func TestInjectDragMinimumFrames(t *testing.T) {
	s := NewScene(testViewport())
	s.InjectDrag(0, 0, 10, 10, 0)
	if len(s.injectQueue) != 2 {
		t.Errorf("queued %d events, want press and release", len(s.injectQueue))
	}
}

func TestInjectWheel(t *testing.T) {
	s, _, _ := pickScene(t)
	before := s.Camera().Distance()
	s.InjectWheel(1)
	s.processInjectedInput()
	if s.Camera().Distance() >= before {
		t.Errorf("distance %f -> %f, want closer", before, s.Camera().Distance())
	}
}
