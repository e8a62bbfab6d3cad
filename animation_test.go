package plaque

import (
	"math"
	"testing"

	"github.com/tanema/gween/ease"
)

func TestTweenPositionReachesTarget(t *testing.T) {
	node := NewContainer("pos")
	node.Position = Vec3{10, 20, 0}

	g := TweenPosition(node, Vec3{100, 200, -3}, 1.0, ease.Linear)

	// Exact halves avoid float32 accumulation drift.
	g.Update(0.5)
	g.Update(0.5)

	if !g.Done {
		t.Fatal("expected Done after full duration")
	}
	want := Vec3{100, 200, -3}
	if !approxVec(node.Position, want, 0.01) {
		t.Errorf("Position = %+v, want %+v", node.Position, want)
	}
}

func TestTweenScaleAndRotation(t *testing.T) {
	node := NewContainer("sr")

	s := TweenScale(node, Vec3{2, 3, 4}, 0.5, nil)
	r := TweenRotation(node, Vec3{0, math.Pi, 0}, 0.5, ease.InOutQuad)
	for range 2 {
		s.Update(0.25)
		r.Update(0.25)
	}
	if !s.Done || !r.Done {
		t.Fatal("expected both groups done")
	}
	if !approxVec(node.Scale, Vec3{2, 3, 4}, 0.01) {
		t.Errorf("Scale = %+v", node.Scale)
	}
	if math.Abs(node.Rotation.Y-math.Pi) > 0.01 {
		t.Errorf("Rotation.Y = %f, want pi", node.Rotation.Y)
	}
}

func TestTweenOverlayMatchesPlacement(t *testing.T) {
	tests := []struct {
		name string
		to   OverlayTransform
	}{
		{"plain", OverlayTransform{Position: Vec3{0.1, 0.2, 0.3}, Rotation: Vec3{0, 90, 0}, Scale: 1.5}},
		{"unset scale", OverlayTransform{Position: Vec3{-1, 0, 0}}},
		{"non-finite", OverlayTransform{Position: Vec3{math.NaN(), 1, 0}, Scale: math.Inf(1)}},
	}
	for _, tt := range tests {
		animated := NewContainer("a")
		placed := NewContainer("p")

		g := TweenOverlay(animated, tt.to, 0.2, ease.OutCubic)
		g.Update(0.1)
		g.Update(0.1)
		placeOverlay(placed, tt.to)

		if !g.Done {
			t.Errorf("%s: not done", tt.name)
		}
		if !approxVec(animated.Position, placed.Position, 0.01) ||
			!approxVec(animated.Rotation, placed.Rotation, 0.01) ||
			!approxVec(animated.Scale, placed.Scale, 0.01) {
			t.Errorf("%s: animated %+v/%+v/%+v, placed %+v/%+v/%+v", tt.name,
				animated.Position, animated.Rotation, animated.Scale,
				placed.Position, placed.Rotation, placed.Scale)
		}
	}
}

func TestTweenOpacity(t *testing.T) {
	mat := NewBasicMaterial("fade")
	mat.Opacity = 1
	node := NewOverlayNode(OverlayImage, "img-1", NewQuadGeometry(1, 1), mat)

	g := TweenOpacity(node, 0, 1.0, ease.Linear)
	if !mat.Transparent {
		t.Error("material should be transparent while fading")
	}
	g.Update(0.5)
	if g.Done {
		t.Fatal("should not be done at halfway")
	}
	if math.Abs(mat.Opacity-0.5) > 0.05 {
		t.Errorf("Opacity = %f, want ~0.5", mat.Opacity)
	}
	g.Update(0.5)
	if !g.Done || math.Abs(mat.Opacity) > 0.01 {
		t.Errorf("Opacity = %f done=%v", mat.Opacity, g.Done)
	}

	bare := TweenOpacity(NewContainer("bare"), 0, 1, nil)
	if !bare.Done {
		t.Error("group for node without material should be done")
	}
}

// --- Lifecycle ---

func TestTweenGroupDoneFlagTransition(t *testing.T) {
	node := NewContainer("done")
	g := TweenPosition(node, Vec3{50, 50, 0}, 0.5, ease.Linear)

	if g.Done {
		t.Fatal("should not be Done at start")
	}
	g.Update(0.25)
	if g.Done {
		t.Fatal("should not be Done partway through")
	}
	g.Update(0.25)
	if !g.Done {
		t.Fatal("should be Done after full duration")
	}

	// Update after done is a no-op.
	g.Update(0.1)
	if !g.Done {
		t.Fatal("should remain Done")
	}
}

func TestTweenGroupMarksDirty(t *testing.T) {
	node := NewContainer("dirty")
	node.transformDirty = false

	g := TweenPosition(node, Vec3{100, 100, 0}, 1.0, ease.Linear)
	g.Update(0.1)

	if !node.transformDirty {
		t.Fatal("expected node to be marked dirty after TweenGroup update")
	}
}

func TestTweenGroupDisposedNode(t *testing.T) {
	node := NewContainer("disposed")
	node.Position = Vec3{10, 20, 0}

	g := TweenPosition(node, Vec3{100, 200, 0}, 1.0, ease.Linear)
	node.Dispose()
	g.Update(0.1)

	if !g.Done {
		t.Fatal("expected Done after disposed node detected")
	}
	if node.Position != (Vec3{10, 20, 0}) {
		t.Errorf("Position changed to %+v on disposed node", node.Position)
	}
}

func TestTweenGroupDisposedMidAnimation(t *testing.T) {
	node := NewContainer("mid-dispose")

	g := TweenPosition(node, Vec3{100, 100, 0}, 1.0, ease.Linear)
	g.Update(0.1)
	g.Update(0.1)
	if g.Done {
		t.Fatal("should not be Done yet")
	}

	node.Dispose()
	saved := node.Position
	g.Update(0.1)

	if !g.Done {
		t.Fatal("expected Done after mid-animation dispose")
	}
	if node.Position != saved {
		t.Errorf("Position changed after dispose: %+v -> %+v", saved, node.Position)
	}
}

func approxVec(a, b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}
