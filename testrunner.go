package plaque

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ScriptAction names one kind of scripted step.
type ScriptAction string

const (
	ActionClick      ScriptAction = "click"      // x, y
	ActionMove       ScriptAction = "move"       // x, y with no button held
	ActionDrag       ScriptAction = "drag"       // fromX, fromY, toX, toY, frames
	ActionWheel      ScriptAction = "wheel"      // dy
	ActionWait       ScriptAction = "wait"       // frames
	ActionScreenshot ScriptAction = "screenshot" // label
)

// scriptStep is one decoded step. Unused fields stay zero.
type scriptStep struct {
	Action ScriptAction `json:"action"`
	Label  string       `json:"label,omitempty"`
	X      float64      `json:"x,omitempty"`
	Y      float64      `json:"y,omitempty"`
	FromX  float64      `json:"fromX,omitempty"`
	FromY  float64      `json:"fromY,omitempty"`
	ToX    float64      `json:"toX,omitempty"`
	ToY    float64      `json:"toY,omitempty"`
	DY     float64      `json:"dy,omitempty"`
	Frames int          `json:"frames,omitempty"`
}

func (st scriptStep) validate() error {
	switch st.Action {
	case ActionClick, ActionMove:
	case ActionDrag:
		if st.Frames < 0 {
			return errors.New("drag frames must not be negative")
		}
	case ActionWheel:
		if st.DY == 0 {
			return errors.New("wheel needs a non-zero dy")
		}
	case ActionWait:
		if st.Frames <= 0 {
			return errors.New("wait needs a positive frame count")
		}
	case ActionScreenshot:
		if st.Label == "" {
			return errors.New("screenshot needs a label")
		}
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

// TestRunner plays a JSON script of pointer input and screenshot requests
// against a Scene, one step per frame, for automated visual checks of an
// editing session. Attach it with Scene.SetTestRunner.
//
//	{"steps": [
//	  {"action": "click", "x": 400, "y": 300},
//	  {"action": "wait", "frames": 10},
//	  {"action": "screenshot", "label": "selected"}
//	]}
type TestRunner struct {
	// OnScreenshot receives each screenshot label. Without it those steps
	// are logged and skipped.
	OnScreenshot func(label string)

	steps []scriptStep
	next  int
	// hold is the number of frames left before the next step runs.
	hold int
	done bool
}

// LoadTestScript decodes and checks a script. Every step is validated up
// front so a bad script fails before any input is injected.
func LoadTestScript(data []byte) (*TestRunner, error) {
	var script struct {
		Steps []scriptStep `json:"steps"`
	}
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, errors.New("parse test script: no steps")
	}
	for i, st := range script.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("parse test script: step %d: %w", i, err)
		}
	}
	return &TestRunner{steps: script.Steps}, nil
}

// SetTestRunner attaches a runner; Update steps it once per frame. Nil
// detaches.
func (s *Scene) SetTestRunner(runner *TestRunner) {
	s.testRunner = runner
}

// Done reports whether every step has run and all injected input drained.
func (r *TestRunner) Done() bool {
	return r.done
}

// Remaining returns the number of steps not yet started.
func (r *TestRunner) Remaining() int {
	return len(r.steps) - r.next
}

// step runs at most one script step. Injected input from earlier steps
// must drain first.
func (r *TestRunner) step(s *Scene) {
	switch {
	case r.done, s.Injecting():
		return
	case r.hold > 0:
		r.hold--
		return
	case r.next == len(r.steps):
		r.done = true
		return
	}

	st := r.steps[r.next]
	r.next++
	r.apply(s, st)
	r.done = r.next == len(r.steps) && r.hold == 0 && !s.Injecting()
}

func (r *TestRunner) apply(s *Scene, st scriptStep) {
	switch st.Action {
	case ActionClick:
		s.InjectClick(st.X, st.Y)
	case ActionMove:
		s.InjectHover(st.X, st.Y)
	case ActionDrag:
		s.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case ActionWheel:
		s.InjectWheel(st.DY)
	case ActionWait:
		// The current frame is the first one waited.
		r.hold = st.Frames - 1
	case ActionScreenshot:
		if r.OnScreenshot == nil {
			Logger().Debug("plaque: screenshot step skipped", "label", st.Label)
			return
		}
		r.OnScreenshot(st.Label)
	}
}
