package plaque

import (
	"fmt"
	"strings"
)

// Initial popup text before any mesh is selected.
const (
	initialHexInput = "#FFFFFF"
	initialRGBInput = "255, 255, 255"
)

// CommitFunc receives a finalized color pick: the mesh key (see MeshKey)
// and a "#rrggbb" color.
type CommitFunc func(meshKey, hex string)

// ColorPicker is the color-pick interaction. In color mode, hovering a
// model mesh shows a crosshair, clicking it selects it and opens the
// popup, and clicking empty space returns to view mode. Popup edits
// recolor the mesh live; only Commit reports the color to the host.
// Not safe for concurrent use; drive it from the update goroutine.
type ColorPicker struct {
	state    *EditorState
	onCommit CommitFunc

	selected *Node
	pending  string
	cursor   Cursor

	// HexInput and RGBInput are the popup's text fields. They hold the raw
	// text last entered, which may be invalid.
	HexInput string
	RGBInput string

	handles []CallbackHandle
}

// NewColorPicker creates a picker and subscribes it to scene pointer
// events. onCommit may be nil.
func NewColorPicker(scene *Scene, state *EditorState, onCommit CommitFunc) *ColorPicker {
	p := &ColorPicker{
		state:    state,
		onCommit: onCommit,
		HexInput: initialHexInput,
		RGBInput: initialRGBInput,
	}
	if scene != nil {
		p.handles = append(p.handles,
			scene.OnPointerOver(func(ev PointerEvent) { p.PointerOver(ev.Hit.Node) }),
			scene.OnPointerOut(func(PointerEvent) { p.PointerOut() }),
			scene.OnClick(func(ev PointerEvent) { p.Click(ev.Hit) }),
			scene.OnPointerMissed(func(PointerEvent) { p.PointerMissed() }),
		)
	}
	return p
}

// Detach unsubscribes the picker from its scene.
func (p *ColorPicker) Detach() {
	for _, h := range p.handles {
		h.Remove()
	}
	p.handles = nil
}

// Cursor returns the requested pointer cursor.
func (p *ColorPicker) Cursor() Cursor {
	return p.cursor
}

// Selected returns the mesh being recolored, or nil.
func (p *ColorPicker) Selected() *Node {
	return p.selected
}

// Open reports whether the popup should be shown.
func (p *ColorPicker) Open() bool {
	return p.selected != nil && p.state.Mode() == ModeColor
}

// Pending returns the live color not yet committed.
func (p *ColorPicker) Pending() (string, bool) {
	return p.pending, p.pending != ""
}

// PointerOver shows the crosshair over a model mesh in color mode.
func (p *ColorPicker) PointerOver(n *Node) {
	if n != nil && p.state.Mode() == ModeColor {
		p.cursor = CursorCrosshair
	}
}

// PointerOut restores the default cursor.
func (p *ColorPicker) PointerOut() {
	p.cursor = CursorAuto
}

// Click selects the hit mesh in color mode and loads its current color
// into the popup fields. It does nothing in view mode.
func (p *ColorPicker) Click(hit Hit) {
	if p.state.Mode() != ModeColor || hit.Node == nil || hit.Node.Mesh == nil || hit.Node.Mesh.Material == nil {
		return
	}
	p.selected = hit.Node
	p.pending = ""
	c := hit.Node.Mesh.Material.Color
	p.HexInput = strings.ToUpper(c.Hex())
	p.RGBInput = formatRGB(c)
}

// PointerMissed returns to view mode when a click in color mode hits
// nothing.
func (p *ColorPicker) PointerMissed() {
	if p.state.Mode() == ModeColor {
		p.state.SetMode(ModeView)
		p.cursor = CursorAuto
	}
}

// SetColor applies hex to the selected mesh immediately and remembers it as
// the pending color. Invalid colors are ignored. It reports whether the
// color was applied.
func (p *ColorPicker) SetColor(hex string) bool {
	norm, ok := NormalizeHex(hex)
	if !ok || p.selected == nil || p.selected.Mesh == nil || p.selected.Mesh.Material == nil {
		return false
	}
	mat := p.selected.Mesh.Material
	c := MustParseColor(norm, mat.Color)
	c.A = mat.Color.A
	mat.SetColor(c)
	p.HexInput = strings.ToUpper(norm)
	p.RGBInput = formatRGB(c)
	p.pending = norm
	return true
}

// PickHSV applies a saturation/hue picker position: h in degrees, s and v
// in [0, 1].
func (p *ColorPicker) PickHSV(h, s, v float64) bool {
	return p.SetColor(HSVHex(h, s, v))
}

// SetHexInput updates the hex field and applies it when it is six hex
// digits with an optional '#'.
func (p *ColorPicker) SetHexInput(text string) bool {
	p.HexInput = text
	norm, ok := NormalizeHex(text)
	if !ok {
		return false
	}
	return p.SetColor(norm)
}

// SetRGBInput updates the RGB field and applies it when it holds three
// integers in [0, 255].
func (p *ColorPicker) SetRGBInput(text string) bool {
	p.RGBInput = text
	norm, ok := NormalizeRGB(text)
	if !ok {
		return false
	}
	return p.SetColor(norm)
}

// Commit reports the pending color for the selected mesh and clears it.
// Without a selection or a pending color it does nothing and returns false.
func (p *ColorPicker) Commit() bool {
	if p.selected == nil || p.pending == "" {
		return false
	}
	key, hex := MeshKey(p.selected), p.pending
	p.pending = ""
	if p.onCommit != nil {
		p.onCommit(key, hex)
	}
	return true
}

// Close returns to view mode and clears the selection. An uncommitted color
// stays on the mesh but is not reported.
func (p *ColorPicker) Close() {
	p.state.SetMode(ModeView)
	p.selected = nil
	p.pending = ""
	p.cursor = CursorAuto
}

// Forget drops the selection when its mesh belongs to a model being
// replaced.
func (p *ColorPicker) Forget() {
	p.selected = nil
	p.pending = ""
}

func formatRGB(c Color) string {
	n := c.NRGBA()
	return fmt.Sprintf("%d, %d, %d", n.R, n.G, n.B)
}
