package plaque

import "math"

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default material and text color.
var ColorWhite = Color{1, 1, 1, 1}

// ColorBlack is the default shadow and emissive color.
var ColorBlack = Color{0, 0, 0, 1}

// ColorTransparent is fully transparent black.
var ColorTransparent = Color{}

// Vec2 is a 2D vector used for texture repeats and normal scales.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is a 3D vector used for positions, Euler rotations and scales.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v scaled uniformly by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// DegToRad converts every component from degrees to radians.
func (v Vec3) DegToRad() Vec3 {
	return Vec3{v.X * math.Pi / 180, v.Y * math.Pi / 180, v.Z * math.Pi / 180}
}

// NodeType distinguishes behavior for a Node.
type NodeType uint8

const (
	NodeTypeContainer NodeType = iota // group node with no visual output
	NodeTypeMesh                      // imported model geometry with materials
	NodeTypeOverlay                   // quad carrying an image or text overlay
)

// OverlayKind identifies what an overlay plane displays.
type OverlayKind uint8

const (
	OverlayImage OverlayKind = iota // picture or QR code with a rounded alpha mask
	OverlayText                     // rasterized text label
)

// InteractionMode selects what pointer clicks on the model do.
type InteractionMode uint8

const (
	ModeView  InteractionMode = iota // clicks pass through to the camera controls
	ModeColor                        // clicks select meshes for recoloring
)

// String returns "view" or "color".
func (m InteractionMode) String() string {
	if m == ModeColor {
		return "color"
	}
	return "view"
}

// Cursor is the pointer feedback requested by the interaction layer.
type Cursor uint8

const (
	CursorAuto      Cursor = iota // platform default
	CursorCrosshair               // hovering a recolorable mesh
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Rect is an axis-aligned rectangle in screen pixels. The origin is at the
// top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}
