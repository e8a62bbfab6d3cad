package plaque

import "github.com/go-gl/mathgl/mgl64"

// stageOffsetY lowers the model and its overlays so a model resting on
// y=0 sits slightly below the camera's eye line.
const stageOffsetY = -0.5

const defaultCommandCap = 256

// Scene is the top-level object that owns the node tree, the camera, pointer
// state and render buffers. The tree is:
//
//	root
//	└── stage (y = -0.5)
//	    ├── model layer   imported model, pickable
//	    └── overlay layer image and text planes, never pickable
//
// Not safe for concurrent use; drive it from the update goroutine.
type Scene struct {
	root         *Node
	stage        *Node
	modelLayer   *Node
	overlayLayer *Node

	// Background is the clear color of every render.
	Background Color

	camera *Camera
	debug  bool

	// Render state
	commands     []RenderCommand
	sortBuf      []RenderCommand
	maskedImages map[maskedKey]*maskedImage

	// Input state
	handlers     handlerRegistry
	pointer      pointerState
	hovered      *Node
	dragDeadZone float64
	injectQueue  []syntheticPointerEvent
	testRunner   *TestRunner
}

// NewScene creates a scene with an empty model and a default camera for the
// given viewport.
func NewScene(viewport Rect) *Scene {
	root := NewContainer("root")
	stage := NewContainer("stage")
	stage.Position = Vec3{0, stageOffsetY, 0}
	model := NewContainer("model")
	overlays := NewContainer("overlays")
	root.AddChild(stage)
	stage.AddChild(model)
	stage.AddChild(overlays)
	return &Scene{
		root:         root,
		stage:        stage,
		modelLayer:   model,
		overlayLayer: overlays,
		Background:   MustParseColor(DefaultBackgroundColor, ColorBlack),
		camera:       NewCamera(viewport),
		commands:     make([]RenderCommand, 0, defaultCommandCap),
		sortBuf:      make([]RenderCommand, 0, defaultCommandCap),
		dragDeadZone: defaultDragDeadZone,
	}
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node {
	return s.root
}

// ModelLayer returns the container holding the imported model.
func (s *Scene) ModelLayer() *Node {
	return s.modelLayer
}

// OverlayLayer returns the container holding overlay planes.
func (s *Scene) OverlayLayer() *Node {
	return s.overlayLayer
}

// Camera returns the scene camera.
func (s *Scene) Camera() *Camera {
	return s.camera
}

// Model returns the current model root, or nil.
func (s *Scene) Model() *Node {
	if s.modelLayer.NumChildren() == 0 {
		return nil
	}
	return s.modelLayer.ChildAt(0)
}

// SetModel replaces the model under the model layer. The previous model is
// detached and returned so the caller can dispose of it; nil clears the
// layer.
func (s *Scene) SetModel(model *Node) *Node {
	prev := s.Model()
	if prev == model {
		return nil
	}
	if s.hovered != nil {
		s.setHovered(nil, PointerEvent{})
	}
	s.modelLayer.RemoveChildren()
	if model != nil {
		s.modelLayer.AddChild(model)
	}
	return prev
}

// Update advances an attached test runner and the camera by dt seconds and
// refreshes world matrices.
func (s *Scene) Update(dt float32) {
	if s.testRunner != nil {
		s.testRunner.step(s)
	}
	s.camera.Update(dt)
	s.root.UpdateWorld()
}

// SetDebugMode enables or disables debug mode for the scene and its tree
// operations.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	SetDebugMode(enabled)
}

// CenterModel positions model so its bounds are centered on X and Z and its
// lowest point rests on y=0 in its parent's frame.
func CenterModel(model *Node) {
	if model == nil {
		return
	}
	model.Position = Vec3{}
	b := boundsRelative(model, computeLocalMatrix(model))
	if b.IsEmpty() {
		model.MarkDirty()
		return
	}
	c := b.Center()
	model.SetPosition(Vec3{-c[0], -b.Min[1], -c[2]})
}

// boundsRelative returns the mesh bounds of n's subtree under matrix m,
// without touching cached world matrices.
func boundsRelative(n *Node, m mgl64.Mat4) AABB {
	b := EmptyAABB()
	if n.Mesh != nil && n.Mesh.Geometry != nil {
		b = n.Mesh.Geometry.Bounds().Transform(m)
	}
	for _, c := range n.children {
		b = b.Union(boundsRelative(c, m.Mul4(computeLocalMatrix(c))))
	}
	return b
}
