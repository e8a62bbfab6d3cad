package plaque

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Default camera placement for a freshly loaded model.
const (
	DefaultFovY         = 40
	DefaultNear         = 0.1
	DefaultFar          = 100
	DefaultMaxPolar     = math.Pi / 1.9
	defaultMinDistance  = 0.5
	defaultMaxDistance  = 40
	defaultCameraHeight = 1.5
	defaultCameraDist   = 5
)

// flyAnim holds active fly-to tweens for the camera eye position.
type flyAnim struct {
	tweens [3]*gween.Tween
	done   [3]bool
}

// Camera is a perspective camera orbiting a target point.
type Camera struct {
	// Position is the eye in world space.
	Position mgl64.Vec3
	// Target is the point the camera looks at and orbits around.
	Target mgl64.Vec3
	// Up is the world up direction, +Y by default.
	Up mgl64.Vec3
	// FovY is the vertical field of view in degrees.
	FovY      float64
	Near, Far float64
	// Viewport is the screen-space rectangle this camera renders into.
	Viewport Rect

	// MinPolar and MaxPolar bound the angle from +Y during Orbit, in radians.
	MinPolar, MaxPolar float64
	// MinDistance and MaxDistance bound the eye distance during Dolly.
	MinDistance, MaxDistance float64

	view, proj mgl64.Mat4
	dirty      bool

	fly *flyAnim
}

// NewCamera creates a camera at (0, 1.5, 5) looking at the origin with a
// 40 degree field of view.
func NewCamera(viewport Rect) *Camera {
	return &Camera{
		Position:    mgl64.Vec3{0, defaultCameraHeight, defaultCameraDist},
		Up:          mgl64.Vec3{0, 1, 0},
		FovY:        DefaultFovY,
		Near:        DefaultNear,
		Far:         DefaultFar,
		Viewport:    viewport,
		MinPolar:    0,
		MaxPolar:    DefaultMaxPolar,
		MinDistance: defaultMinDistance,
		MaxDistance: defaultMaxDistance,
		dirty:       true,
	}
}

// Aspect returns the viewport aspect ratio, or 1 for an empty viewport.
func (c *Camera) Aspect() float64 {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return 1
	}
	return c.Viewport.Width / c.Viewport.Height
}

// SetViewport changes the render rectangle, e.g. on window resize.
func (c *Camera) SetViewport(r Rect) {
	c.Viewport = r
	c.dirty = true
}

// LookAt moves the camera to eye and points it at target.
func (c *Camera) LookAt(eye, target mgl64.Vec3) {
	c.Position = eye
	c.Target = target
	c.dirty = true
}

// MarkDirty forces a recomputation of the matrices after fields were set
// directly.
func (c *Camera) MarkDirty() {
	c.dirty = true
}

func (c *Camera) recompute() {
	if !c.dirty {
		return
	}
	up := c.Up
	if up.Len() < 1e-12 {
		up = mgl64.Vec3{0, 1, 0}
	}
	c.view = mgl64.LookAtV(c.Position, c.Target, up)
	c.proj = mgl64.Perspective(mgl64.DegToRad(c.FovY), c.Aspect(), c.Near, c.Far)
	c.dirty = false
}

// ViewMatrix returns the world-to-camera matrix.
func (c *Camera) ViewMatrix() mgl64.Mat4 {
	c.recompute()
	return c.view
}

// ProjectionMatrix returns the camera-to-clip matrix.
func (c *Camera) ProjectionMatrix() mgl64.Mat4 {
	c.recompute()
	return c.proj
}

// WorldToScreen projects a world point into viewport pixels. ok is false for
// points behind the camera.
func (c *Camera) WorldToScreen(p mgl64.Vec3) (sx, sy float64, ok bool) {
	c.recompute()
	clip := c.proj.Mul4(c.view).Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, false
	}
	nx, ny := clip[0]/clip[3], clip[1]/clip[3]
	sx = c.Viewport.X + (nx+1)/2*c.Viewport.Width
	sy = c.Viewport.Y + (1-ny)/2*c.Viewport.Height
	return sx, sy, true
}

// ScreenRay returns the world-space ray through the given viewport pixel.
// The direction is normalized.
func (c *Camera) ScreenRay(sx, sy float64) Ray {
	c.recompute()
	w, h := c.Viewport.Width, c.Viewport.Height
	if w <= 0 || h <= 0 {
		return Ray{Origin: c.Position, Dir: c.Target.Sub(c.Position).Normalize()}
	}
	nx := 2*(sx-c.Viewport.X)/w - 1
	ny := 1 - 2*(sy-c.Viewport.Y)/h
	inv := c.proj.Mul4(c.view).Inv()
	near := mgl64.TransformCoordinate(mgl64.Vec3{nx, ny, -1}, inv)
	far := mgl64.TransformCoordinate(mgl64.Vec3{nx, ny, 1}, inv)
	return Ray{Origin: near, Dir: far.Sub(near).Normalize()}
}

// Distance returns the eye-to-target distance.
func (c *Camera) Distance() float64 {
	return c.Position.Sub(c.Target).Len()
}

// spherical returns the eye offset from the target as radius, polar angle
// from +Y, and azimuth around +Y measured from +Z.
func (c *Camera) spherical() (r, polar, azimuth float64) {
	off := c.Position.Sub(c.Target)
	r = off.Len()
	if r < 1e-12 {
		return 0, 0, 0
	}
	polar = math.Acos(mgl64.Clamp(off[1]/r, -1, 1))
	azimuth = math.Atan2(off[0], off[2])
	return r, polar, azimuth
}

func (c *Camera) setSpherical(r, polar, azimuth float64) {
	sp := math.Sin(polar)
	c.Position = c.Target.Add(mgl64.Vec3{
		r * sp * math.Sin(azimuth),
		r * math.Cos(polar),
		r * sp * math.Cos(azimuth),
	})
	c.dirty = true
}

// Orbit rotates the eye around the target by the given azimuth and polar
// deltas in radians. The polar angle stays within [MinPolar, MaxPolar].
func (c *Camera) Orbit(dAzimuth, dPolar float64) {
	r, polar, azimuth := c.spherical()
	if r == 0 {
		return
	}
	polar = mgl64.Clamp(polar+dPolar, c.MinPolar, c.MaxPolar)
	c.setSpherical(r, polar, azimuth+dAzimuth)
}

// Dolly scales the eye distance by factor, within [MinDistance, MaxDistance].
// Factors below 1 move closer.
func (c *Camera) Dolly(factor float64) {
	r, polar, azimuth := c.spherical()
	if r == 0 || factor <= 0 || !isFinite(factor) {
		return
	}
	c.setSpherical(mgl64.Clamp(r*factor, c.MinDistance, c.MaxDistance), polar, azimuth)
}

// Frame positions the camera so that box fills the view, keeping the
// current viewing direction.
func (c *Camera) Frame(box AABB) {
	if box.IsEmpty() {
		return
	}
	center := box.Center()
	radius := box.Size().Len() / 2
	if radius < 1e-6 {
		radius = 0.5
	}
	dist := radius / math.Sin(mgl64.DegToRad(c.FovY)/2)
	dir := c.Position.Sub(c.Target)
	if dir.Len() < 1e-12 {
		dir = mgl64.Vec3{0, defaultCameraHeight, defaultCameraDist}
	}
	c.Target = center
	c.Position = center.Add(dir.Normalize().Mul(dist))
	c.dirty = true
}

// FlyTo animates the eye to pos over duration seconds. A nil easing is
// linear. Advanced by Update.
func (c *Camera) FlyTo(pos mgl64.Vec3, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	a := &flyAnim{}
	for i := 0; i < 3; i++ {
		a.tweens[i] = gween.New(float32(c.Position[i]), float32(pos[i]), duration, easeFn)
	}
	c.fly = a
}

// Flying reports whether a FlyTo animation is in progress.
func (c *Camera) Flying() bool {
	return c.fly != nil
}

// Update advances the fly-to animation by dt seconds.
func (c *Camera) Update(dt float32) {
	if c.fly == nil {
		return
	}
	for i := 0; i < 3; i++ {
		if c.fly.done[i] {
			continue
		}
		v, done := c.fly.tweens[i].Update(dt)
		c.Position[i] = float64(v)
		c.fly.done[i] = done
	}
	c.dirty = true
	if c.fly.done[0] && c.fly.done[1] && c.fly.done[2] {
		c.fly = nil
	}
}
