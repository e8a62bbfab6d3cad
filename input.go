package plaque

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
)

// --- Constants ---

const (
	defaultDragDeadZone = 4.0 // pixels
	orbitRotateSpeed    = 0.8
	wheelDollyStep      = 0.95
)

// MouseButton identifies a mouse button.
type MouseButton uint8

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// EventType identifies a scene-level pointer event.
type EventType uint8

const (
	EventPointerOver EventType = iota
	EventPointerOut
	EventClick
	EventPointerMissed
)

// Hit is the result of a pick: the nearest model mesh along a ray.
type Hit struct {
	Node     *Node
	Distance float64
	Point    mgl64.Vec3
}

// PointerEvent is passed to scene-level handlers. Hit.Node is nil for
// EventPointerMissed.
type PointerEvent struct {
	Hit     Hit
	ScreenX float64
	ScreenY float64
	Button  MouseButton
}

// --- Per-pointer state ---

type pointerState struct {
	down     bool
	startX   float64
	startY   float64
	lastX    float64
	lastY    float64
	hitNode  *Node
	dragging bool
	button   MouseButton // button captured at press time
}

// --- Handler registry ---

type pointerHandler struct {
	id uint32
	fn func(PointerEvent)
}

type handlerRegistry struct {
	pointerOver   []pointerHandler
	pointerOut    []pointerHandler
	click         []pointerHandler
	pointerMissed []pointerHandler
	nextID        uint32
}

// CallbackHandle allows removing a registered scene-level callback.
type CallbackHandle struct {
	id    uint32
	reg   *handlerRegistry
	event EventType
}

// Remove unregisters this callback so it no longer fires.
func (h CallbackHandle) Remove() {
	if h.reg == nil {
		return
	}
	switch h.event {
	case EventPointerOver:
		h.reg.pointerOver = removePointerHandler(h.reg.pointerOver, h.id)
	case EventPointerOut:
		h.reg.pointerOut = removePointerHandler(h.reg.pointerOut, h.id)
	case EventClick:
		h.reg.click = removePointerHandler(h.reg.click, h.id)
	case EventPointerMissed:
		h.reg.pointerMissed = removePointerHandler(h.reg.pointerMissed, h.id)
	}
}

func removePointerHandler(s []pointerHandler, id uint32) []pointerHandler {
	for i, h := range s {
		if h.id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = pointerHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

func (s *Scene) register(list *[]pointerHandler, event EventType, fn func(PointerEvent)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	*list = append(*list, pointerHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: event}
}

// --- Scene-level callback registration ---

// OnPointerOver registers a callback fired when the pointer starts hovering
// a model mesh.
func (s *Scene) OnPointerOver(fn func(PointerEvent)) CallbackHandle {
	return s.register(&s.handlers.pointerOver, EventPointerOver, fn)
}

// OnPointerOut registers a callback fired when the pointer stops hovering a
// model mesh.
func (s *Scene) OnPointerOut(fn func(PointerEvent)) CallbackHandle {
	return s.register(&s.handlers.pointerOut, EventPointerOut, fn)
}

// OnClick registers a callback fired when a model mesh is pressed and
// released without dragging.
func (s *Scene) OnClick(fn func(PointerEvent)) CallbackHandle {
	return s.register(&s.handlers.click, EventClick, fn)
}

// OnPointerMissed registers a callback fired when a click lands on empty
// background.
func (s *Scene) OnPointerMissed(fn func(PointerEvent)) CallbackHandle {
	return s.register(&s.handlers.pointerMissed, EventPointerMissed, fn)
}

// SetDragDeadZone sets the minimum pointer travel in pixels before a press
// turns into a camera drag.
func (s *Scene) SetDragDeadZone(pixels float64) {
	s.dragDeadZone = pixels
}

// Hovered returns the model mesh under the pointer, or nil.
func (s *Scene) Hovered() *Node {
	return s.hovered
}

// --- Picking ---

// Pick returns the nearest visible model mesh hit by r. Overlay planes are
// never returned. World matrices must be current (see Update).
func (s *Scene) Pick(r Ray) (Hit, bool) {
	var best Hit
	found := false
	Walk(s.modelLayer, func(n *Node) bool {
		if !n.Visible {
			return false
		}
		if n.Type != NodeTypeMesh || n.Mesh == nil || n.Mesh.Geometry == nil {
			return true
		}
		d, ok := n.WorldBounds().IntersectRay(r)
		if !ok || (found && d > best.Distance) {
			return true
		}
		d, ok = n.Mesh.Geometry.IntersectRay(r, n.worldMatrix)
		if ok && (!found || d < best.Distance) {
			best = Hit{Node: n, Distance: d, Point: r.At(d)}
			found = true
		}
		return true
	})
	return best, found
}

// PickScreen picks through the viewport pixel (sx, sy).
func (s *Scene) PickScreen(sx, sy float64) (Hit, bool) {
	return s.Pick(s.camera.ScreenRay(sx, sy))
}

// --- Input processing ---

// ProcessPointer runs the pointer state machine for the mouse at viewport
// pixel (sx, sy). Hover changes fire over/out events, a press and release
// without drag fires click or pointer-missed, and a drag orbits the camera.
func (s *Scene) ProcessPointer(sx, sy float64, pressed bool, button MouseButton) {
	ps := &s.pointer
	hit, ok := s.PickScreen(sx, sy)
	var target *Node
	if ok {
		target = hit.Node
	}

	if !ps.dragging {
		s.setHovered(target, PointerEvent{Hit: hit, ScreenX: sx, ScreenY: sy, Button: button})
	}

	switch {
	case pressed && !ps.down:
		ps.down = true
		ps.button = button
		ps.startX, ps.startY = sx, sy
		ps.lastX, ps.lastY = sx, sy
		ps.hitNode = target
		ps.dragging = false

	case !pressed && ps.down:
		ev := PointerEvent{Hit: hit, ScreenX: sx, ScreenY: sy, Button: ps.button}
		if !ps.dragging {
			if target == nil {
				s.fire(s.handlers.pointerMissed, ev)
			} else if target == ps.hitNode {
				s.fire(s.handlers.click, ev)
			}
		}
		ps.down = false
		ps.hitNode = nil
		ps.dragging = false

	case pressed && ps.down:
		if sx != ps.lastX || sy != ps.lastY {
			if !ps.dragging {
				dx, dy := sx-ps.startX, sy-ps.startY
				if math.Sqrt(dx*dx+dy*dy) > s.dragDeadZone {
					ps.dragging = true
				}
			}
			if ps.dragging {
				s.orbitBy(sx-ps.lastX, sy-ps.lastY)
			}
		}
		ps.lastX, ps.lastY = sx, sy

	default:
		ps.lastX, ps.lastY = sx, sy
	}
}

// ProcessWheel dollies the camera; positive dy moves closer.
func (s *Scene) ProcessWheel(dy float64) {
	if dy == 0 {
		return
	}
	s.camera.Dolly(math.Pow(wheelDollyStep, dy))
}

// ProcessEbitenInput reads the ebiten mouse state and feeds it to
// ProcessPointer and ProcessWheel. Call once per tick from Game.Update.
// While injected events are queued, one is consumed instead and the mouse
// is ignored.
func (s *Scene) ProcessEbitenInput() {
	if s.processInjectedInput() {
		return
	}
	mx, my := ebiten.CursorPosition()
	var pressed bool
	button := s.pointer.button
	left := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	right := ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	middle := ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle)
	if left || right || middle {
		pressed = true
		if !s.pointer.down {
			switch {
			case left:
				button = MouseButtonLeft
			case right:
				button = MouseButtonRight
			default:
				button = MouseButtonMiddle
			}
		}
	}
	s.ProcessPointer(float64(mx), float64(my), pressed, button)
	if _, wy := ebiten.Wheel(); wy != 0 {
		s.ProcessWheel(wy)
	}
}

// orbitBy rotates the camera for a pointer drag of (dx, dy) pixels: a drag
// across the full viewport height turns 0.8 of a full circle.
func (s *Scene) orbitBy(dx, dy float64) {
	h := s.camera.Viewport.Height
	if h <= 0 {
		return
	}
	k := 2 * math.Pi * orbitRotateSpeed / h
	s.camera.Orbit(-dx*k, -dy*k)
}

// setHovered fires out/over events when the hovered mesh changes.
func (s *Scene) setHovered(target *Node, ev PointerEvent) {
	if target == s.hovered {
		return
	}
	if prev := s.hovered; prev != nil {
		out := ev
		out.Hit = Hit{Node: prev}
		if prev.OnPointerOut != nil {
			prev.OnPointerOut(prev)
		}
		s.fire(s.handlers.pointerOut, out)
	}
	s.hovered = target
	if target != nil {
		if target.OnPointerOver != nil {
			target.OnPointerOver(target)
		}
		s.fire(s.handlers.pointerOver, ev)
	}
}

func (s *Scene) fire(list []pointerHandler, ev PointerEvent) {
	for _, h := range list {
		h.fn(ev)
	}
}
