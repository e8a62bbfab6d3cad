package plaque

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates several float64 fields on a Node simultaneously.
// Create one via the convenience constructors (TweenPosition, TweenScale,
// TweenRotation, TweenOverlay, TweenOpacity) and call Update(dt) each frame.
// The group writes values and marks the node dirty. If the target node is
// disposed, the group stops immediately.
//
// There is no global animation manager; callers call Update themselves.
type TweenGroup struct {
	tweens []*gween.Tween
	fields []*float64
	target *Node
	Done   bool
}

func (g *TweenGroup) add(field *float64, to float64, duration float32, fn ease.TweenFunc) {
	g.tweens = append(g.tweens, gween.New(float32(*field), float32(to), duration, fn))
	g.fields = append(g.fields, field)
}

func (g *TweenGroup) addVec3(field *Vec3, to Vec3, duration float32, fn ease.TweenFunc) {
	g.add(&field.X, to.X, duration, fn)
	g.add(&field.Y, to.Y, duration, fn)
	g.add(&field.Z, to.Z, duration, fn)
}

// Update advances all tweens by dt seconds, writes values to the target
// fields, and marks the node dirty. If the target node has been disposed,
// Done is set and no writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	allDone := true
	for i, tw := range g.tweens {
		val, finished := tw.Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone

	if g.target != nil {
		g.target.MarkDirty()
	}
}

func newTweenGroup(node *Node, fn ease.TweenFunc) (*TweenGroup, ease.TweenFunc) {
	if fn == nil {
		fn = ease.Linear
	}
	return &TweenGroup{target: node}, fn
}

// TweenPosition animates node.Position to the target over duration seconds.
// A nil easing is linear.
func TweenPosition(node *Node, to Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g, fn := newTweenGroup(node, fn)
	g.addVec3(&node.Position, to, duration, fn)
	return g
}

// TweenScale animates node.Scale to the target.
func TweenScale(node *Node, to Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g, fn := newTweenGroup(node, fn)
	g.addVec3(&node.Scale, to, duration, fn)
	return g
}

// TweenRotation animates node.Rotation (radians) to the target.
func TweenRotation(node *Node, to Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g, fn := newTweenGroup(node, fn)
	g.addVec3(&node.Rotation, to, duration, fn)
	return g
}

// TweenOverlay animates an overlay plane from its current placement to t,
// using the same conversion the composer applies: rotation in degrees,
// uniform scale, non-finite components as zero.
func TweenOverlay(node *Node, t OverlayTransform, duration float32, fn ease.TweenFunc) *TweenGroup {
	g, fn := newTweenGroup(node, fn)
	s := t.uniformScale()
	g.addVec3(&node.Position, finiteVec(t.Position), duration, fn)
	g.addVec3(&node.Rotation, finiteVec(t.Rotation).DegToRad(), duration, fn)
	g.addVec3(&node.Scale, Vec3{s, s, s}, duration, fn)
	return g
}

// TweenOpacity fades the node's material opacity to the target. The
// material is marked transparent so intermediate values blend. A node
// without a material yields a group that is already done.
func TweenOpacity(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g, fn := newTweenGroup(node, fn)
	if node.Mesh == nil || node.Mesh.Material == nil {
		g.Done = true
		return g
	}
	m := node.Mesh.Material
	m.Transparent = true
	g.add(&m.Opacity, to, duration, fn)
	return g
}
