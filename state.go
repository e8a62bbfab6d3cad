package plaque

import "sync"

// ExportPhase is the state of the export sequencer.
type ExportPhase uint8

const (
	ExportIdle ExportPhase = iota
	ExportRamping
	ExportCapturing
	ExportFinishing
)

// String returns the lower-case phase name.
func (p ExportPhase) String() string {
	switch p {
	case ExportRamping:
		return "ramping"
	case ExportCapturing:
		return "capturing"
	case ExportFinishing:
		return "finishing"
	default:
		return "idle"
	}
}

// ExportSession is the transient export state the host surfaces to the
// user. Progress runs 0 to 100.
type ExportSession struct {
	Phase     ExportPhase
	Progress  int
	Cancelled bool
}

// Active reports whether an export is running.
func (s ExportSession) Active() bool {
	return s.Phase != ExportIdle
}

// EditorState is the state shared between the host UI and the export
// sequencer. All methods are safe for concurrent use.
type EditorState struct {
	mu         sync.Mutex
	mode       InteractionMode
	background string
	export     ExportSession

	listeners []func(ExportSession)
}

// NewEditorState returns a state in view mode with the default background.
func NewEditorState() *EditorState {
	return &EditorState{background: DefaultBackgroundColor}
}

// Mode returns the interaction mode.
func (s *EditorState) Mode() InteractionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the interaction mode.
func (s *EditorState) SetMode(m InteractionMode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Background returns the scene background as a CSS color string.
func (s *EditorState) Background() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

// SetBackground sets the background color, stored as opaque "#rrggbb".
// Strings that do not parse as a color are ignored and false is returned.
func (s *EditorState) SetBackground(c string) bool {
	col, ok := ParseColor(c)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.background = col.Hex()
	s.mu.Unlock()
	return true
}

// Export returns a snapshot of the export session.
func (s *EditorState) Export() ExportSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export
}

// OnExportChange registers fn to receive every export session change. fn
// runs on the goroutine that made the change, without the lock held.
func (s *EditorState) OnExportChange(fn func(ExportSession)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// beginExport opens a session in the ramping phase. It returns false when
// one is already active.
func (s *EditorState) beginExport() bool {
	s.mu.Lock()
	if s.export.Active() {
		s.mu.Unlock()
		return false
	}
	s.export = ExportSession{Phase: ExportRamping}
	s.notifyLocked()
	return true
}

// setExport moves the session to phase at progress.
func (s *EditorState) setExport(phase ExportPhase, progress int) {
	s.mu.Lock()
	s.export.Phase = phase
	s.export.Progress = progress
	s.notifyLocked()
}

// endExport resets the session to idle.
func (s *EditorState) endExport() {
	s.mu.Lock()
	s.export = ExportSession{}
	s.notifyLocked()
}

// cancelExport flags the running session for cancellation. Only a ramping
// session can be cancelled.
func (s *EditorState) cancelExport() bool {
	s.mu.Lock()
	if s.export.Phase != ExportRamping {
		s.mu.Unlock()
		return false
	}
	s.export.Cancelled = true
	s.notifyLocked()
	return true
}

func (s *EditorState) exportCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export.Cancelled
}

// notifyLocked unlocks s and then calls the listeners with the new session.
func (s *EditorState) notifyLocked() {
	snap := s.export
	listeners := append(([]func(ExportSession))(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
