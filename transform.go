package plaque

import "github.com/go-gl/mathgl/mgl64"

// computeLocalMatrix builds the local matrix from the node's transform
// properties.
//
// Composition order:
//
//	Translate(Position) * Rz * Ry * Rx * Scale
//
// which matches an XYZ Euler order.
func computeLocalMatrix(n *Node) mgl64.Mat4 {
	t := mgl64.Translate3D(n.Position.X, n.Position.Y, n.Position.Z)
	r := mgl64.HomogRotate3DZ(n.Rotation.Z).
		Mul4(mgl64.HomogRotate3DY(n.Rotation.Y)).
		Mul4(mgl64.HomogRotate3DX(n.Rotation.X))
	s := mgl64.Scale3D(n.Scale.X, n.Scale.Y, n.Scale.Z)
	return t.Mul4(r).Mul4(s)
}

// updateWorldMatrix recomputes a node's world matrix and its subtree.
// parentRecomputed forces recomputation even when this node is not dirty.
func updateWorldMatrix(n *Node, parent mgl64.Mat4, parentRecomputed bool) {
	recompute := n.transformDirty || parentRecomputed
	if recompute {
		n.worldMatrix = parent.Mul4(computeLocalMatrix(n))
		n.transformDirty = false
	}
	for _, child := range n.children {
		updateWorldMatrix(child, n.worldMatrix, recompute)
	}
}

// UpdateWorld recomputes world matrices for the subtree rooted at n, using
// the parent's current world matrix.
func (n *Node) UpdateWorld() {
	parent := mgl64.Ident4()
	if n.Parent != nil {
		parent = n.Parent.worldMatrix
	}
	updateWorldMatrix(n, parent, false)
}

// WorldMatrix returns the last computed world matrix.
func (n *Node) WorldMatrix() mgl64.Mat4 {
	return n.worldMatrix
}

// --- Transform property setters ---

// SetPosition sets the local position and marks the node dirty.
func (n *Node) SetPosition(p Vec3) {
	n.Position = p
	markSubtreeDirty(n)
}

// SetRotation sets the local Euler rotation (radians) and marks the node dirty.
func (n *Node) SetRotation(r Vec3) {
	n.Rotation = r
	markSubtreeDirty(n)
}

// SetRotationDegrees sets the local Euler rotation from degrees.
func (n *Node) SetRotationDegrees(r Vec3) {
	n.SetRotation(r.DegToRad())
}

// SetScale sets the local scale and marks the node dirty.
func (n *Node) SetScale(s Vec3) {
	n.Scale = s
	markSubtreeDirty(n)
}

// SetUniformScale sets all three scale axes to s.
func (n *Node) SetUniformScale(s float64) {
	n.SetScale(Vec3{s, s, s})
}

// MarkDirty marks the node's transform as dirty, forcing recomputation
// on the next update. Useful after bulk-setting fields directly.
func (n *Node) MarkDirty() {
	markSubtreeDirty(n)
}

// --- Coordinate conversion ---

// LocalToWorld converts a local-space point to world space.
func (n *Node) LocalToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, n.worldMatrix)
}

// WorldToLocal converts a world-space point to this node's local space.
// A singular world matrix leaves the point unchanged.
func (n *Node) WorldToLocal(p mgl64.Vec3) mgl64.Vec3 {
	if d := n.worldMatrix.Det(); d > -1e-12 && d < 1e-12 {
		return p
	}
	return mgl64.TransformCoordinate(p, n.worldMatrix.Inv())
}

// WorldBounds returns the world-space box of the node's mesh, or an empty box.
func (n *Node) WorldBounds() AABB {
	if n.Mesh == nil || n.Mesh.Geometry == nil {
		return EmptyAABB()
	}
	return n.Mesh.Geometry.Bounds().Transform(n.worldMatrix)
}

// SubtreeBounds returns the union of every mesh's world box under n.
func (n *Node) SubtreeBounds() AABB {
	b := EmptyAABB()
	Walk(n, func(c *Node) bool {
		b = b.Union(c.WorldBounds())
		return true
	})
	return b
}
