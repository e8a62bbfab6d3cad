package plaque

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

func vecNear(a, b mgl64.Vec3) bool {
	return math.Abs(a[0]-b[0]) < 1e-6 && math.Abs(a[1]-b[1]) < 1e-6 && math.Abs(a[2]-b[2]) < 1e-6
}

// --- World matrix ---

func TestWorldMatrixTranslation(t *testing.T) {
	root := NewContainer("root")
	child := NewContainer("child")
	root.AddChild(child)
	root.SetPosition(Vec3{1, 2, 3})
	child.SetPosition(Vec3{10, 0, 0})
	root.UpdateWorld()

	got := child.LocalToWorld(mgl64.Vec3{})
	if !vecNear(got, mgl64.Vec3{11, 2, 3}) {
		t.Errorf("child origin = %v, want (11, 2, 3)", got)
	}
}

func TestWorldMatrixRotationThenScale(t *testing.T) {
	n := NewContainer("n")
	n.SetScale(Vec3{2, 2, 2})
	n.SetRotationDegrees(Vec3{0, 0, 90})
	n.UpdateWorld()

	// Scale first, then rotate +X onto +Y.
	got := n.LocalToWorld(mgl64.Vec3{1, 0, 0})
	if !vecNear(got, mgl64.Vec3{0, 2, 0}) {
		t.Errorf("got %v, want (0, 2, 0)", got)
	}
}

func TestWorldMatrixEulerOrder(t *testing.T) {
	n := NewContainer("n")
	n.SetRotationDegrees(Vec3{90, 90, 0})
	n.UpdateWorld()

	// Rx first: +Y -> +Z, then Ry: +Z -> +X.
	got := n.LocalToWorld(mgl64.Vec3{0, 1, 0})
	if !vecNear(got, mgl64.Vec3{1, 0, 0}) {
		t.Errorf("got %v, want (1, 0, 0)", got)
	}
}

func TestDirtyPropagation(t *testing.T) {
	root := NewContainer("root")
	child := NewContainer("child")
	root.AddChild(child)
	root.UpdateWorld()
	if root.transformDirty || child.transformDirty {
		t.Fatal("update should clear dirty flags")
	}

	root.SetPosition(Vec3{0, 5, 0})
	if !child.transformDirty {
		t.Error("moving the parent should dirty the child")
	}
	root.UpdateWorld()
	if got := child.LocalToWorld(mgl64.Vec3{}); !vecNear(got, mgl64.Vec3{0, 5, 0}) {
		t.Errorf("child origin = %v", got)
	}
}

func TestUpdateWorldUsesParentMatrix(t *testing.T) {
	root := NewContainer("root")
	child := NewContainer("child")
	root.AddChild(child)
	root.SetPosition(Vec3{3, 0, 0})
	root.UpdateWorld()

	child.SetPosition(Vec3{0, 1, 0})
	child.UpdateWorld()
	if got := child.LocalToWorld(mgl64.Vec3{}); !vecNear(got, mgl64.Vec3{3, 1, 0}) {
		t.Errorf("child origin = %v, want (3, 1, 0)", got)
	}
}

// --- Coordinate conversion ---

func TestWorldToLocalRoundTrip(t *testing.T) {
	n := NewContainer("n")
	n.SetPosition(Vec3{1, -2, 4})
	n.SetRotationDegrees(Vec3{10, 20, 30})
	n.SetScale(Vec3{2, 3, 0.5})
	n.UpdateWorld()

	p := mgl64.Vec3{0.3, 0.7, -1.1}
	back := n.WorldToLocal(n.LocalToWorld(p))
	if !vecNear(back, p) {
		t.Errorf("round trip = %v, want %v", back, p)
	}
}

func TestWorldToLocalSingular(t *testing.T) {
	n := NewContainer("n")
	n.SetScale(Vec3{0, 1, 1})
	n.UpdateWorld()
	p := mgl64.Vec3{1, 2, 3}
	if got := n.WorldToLocal(p); got != p {
		t.Errorf("singular matrix should leave the point, got %v", got)
	}
}

// --- Bounds ---

func TestWorldBounds(t *testing.T) {
	n := NewMeshNode("quad", NewQuadGeometry(2, 2), NewStandardMaterial("m"))
	n.SetPosition(Vec3{5, 0, 0})
	n.UpdateWorld()
	b := n.WorldBounds()
	if !vecNear(b.Min, mgl64.Vec3{4, -1, 0}) || !vecNear(b.Max, mgl64.Vec3{6, 1, 0}) {
		t.Errorf("bounds = %+v", b)
	}
	if !NewContainer("c").WorldBounds().IsEmpty() {
		t.Error("container bounds should be empty")
	}
}

func TestSubtreeBounds(t *testing.T) {
	root := NewContainer("root")
	a := NewMeshNode("a", NewQuadGeometry(1, 1), NewStandardMaterial("m"))
	b := NewMeshNode("b", NewQuadGeometry(1, 1), NewStandardMaterial("m"))
	b.SetPosition(Vec3{0, 0, -3})
	root.AddChild(a)
	root.AddChild(b)
	root.UpdateWorld()
	bb := root.SubtreeBounds()
	if math.Abs(bb.Min[2]+3) > epsilon || math.Abs(bb.Max[2]) > epsilon {
		t.Errorf("z extent = [%v, %v], want [-3, 0]", bb.Min[2], bb.Max[2])
	}
}
