package plaque

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// --- Geometry ---

func TestQuadGeometry(t *testing.T) {
	g := NewQuadGeometry(2, 1)
	if g.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", g.TriangleCount())
	}
	b := g.Bounds()
	if !vecNear(b.Min, mgl64.Vec3{-1, -0.5, 0}) || !vecNear(b.Max, mgl64.Vec3{1, 0.5, 0}) {
		t.Errorf("bounds = %+v", b)
	}
	if len(g.UVs) != 4 || len(g.Normals) != 4 {
		t.Error("quad should carry UVs and normals")
	}
}

func TestBoundsInvalidate(t *testing.T) {
	g := NewGeometry([]mgl64.Vec3{{0, 0, 0}, {1, 1, 1}}, nil, nil)
	_ = g.Bounds()
	g.Positions[1] = mgl64.Vec3{5, 5, 5}
	if g.Bounds().Max[0] != 1 {
		t.Error("bounds should stay cached until invalidated")
	}
	g.InvalidateBounds()
	if g.Bounds().Max[0] != 5 {
		t.Error("bounds should update after InvalidateBounds")
	}
}

func TestComputeVertexNormals(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    mgl64.Vec3
	}{
		{"indexed ccw", []uint32{0, 1, 2}, mgl64.Vec3{0, 0, 1}},
		{"indexed cw", []uint32{0, 2, 1}, mgl64.Vec3{0, 0, -1}},
		{"non-indexed", nil, mgl64.Vec3{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeometry([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, nil, tt.indices)
			g.ComputeVertexNormals()
			for i, n := range g.Normals {
				if !vecNear(n, tt.want) {
					t.Errorf("normal[%d] = %v, want %v", i, n, tt.want)
				}
			}
		})
	}
}

func TestComputeVertexNormalsIgnoresBadIndices(t *testing.T) {
	g := NewGeometry([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}, nil, []uint32{0, 1, 9})
	g.ComputeVertexNormals()
	if len(g.Normals) != 2 || g.Normals[0] != (mgl64.Vec3{}) {
		t.Errorf("normals = %v", g.Normals)
	}
}

// --- AABB ---

func TestAABBEmpty(t *testing.T) {
	b := EmptyAABB()
	if !b.IsEmpty() {
		t.Error("EmptyAABB should be empty")
	}
	if b.Size() != (mgl64.Vec3{}) {
		t.Error("empty size should be zero")
	}
	u := b.Union(AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}})
	if u.IsEmpty() || u.Max != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("union with empty = %+v", u)
	}
}

func TestAABBTransformRotated(t *testing.T) {
	b := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
	m := mgl64.HomogRotate3DZ(math.Pi / 4)
	out := b.Transform(m)
	want := math.Sqrt2
	if math.Abs(out.Max[0]-want) > 1e-9 || math.Abs(out.Min[1]+want) > 1e-9 {
		t.Errorf("rotated box = %+v", out)
	}
}

func TestAABBIntersectRay(t *testing.T) {
	box := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float64
	}{
		{"front", Ray{mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, -1}}, true, 4},
		{"miss", Ray{mgl64.Vec3{3, 0, 5}, mgl64.Vec3{0, 0, -1}}, false, 0},
		{"behind", Ray{mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, 1}}, false, 0},
		{"inside", Ray{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}}, true, 0},
		{"parallel outside", Ray{mgl64.Vec3{0, 2, 5}, mgl64.Vec3{0, 0, -1}}, false, 0},
		{"diagonal", Ray{mgl64.Vec3{-5, -5, 0}, mgl64.Vec3{1, 1, 0}}, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := box.IntersectRay(tt.ray)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && math.Abs(d-tt.wantT) > 1e-9 {
				t.Errorf("t = %v, want %v", d, tt.wantT)
			}
		})
	}
	if _, ok := EmptyAABB().IntersectRay(Ray{Dir: mgl64.Vec3{1, 0, 0}}); ok {
		t.Error("empty box should never be hit")
	}
}

func TestRayAt(t *testing.T) {
	r := Ray{Origin: mgl64.Vec3{1, 0, 0}, Dir: mgl64.Vec3{0, 2, 0}}
	if got := r.At(1.5); got != (mgl64.Vec3{1, 3, 0}) {
		t.Errorf("At = %v", got)
	}
}

func TestGeometryIntersectRay(t *testing.T) {
	g := NewQuadGeometry(2, 2)
	world := mgl64.Translate3D(0, 0, -1)
	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float64
	}{
		{"inside", Ray{mgl64.Vec3{0.2, -0.3, 4}, mgl64.Vec3{0, 0, -1}}, true, 5},
		{"corner triangle", Ray{mgl64.Vec3{0.9, -0.9, 4}, mgl64.Vec3{0, 0, -1}}, true, 5},
		{"outside", Ray{mgl64.Vec3{1.5, 0, 4}, mgl64.Vec3{0, 0, -1}}, false, 0},
		{"back face", Ray{mgl64.Vec3{-0.4, 0.3, -4}, mgl64.Vec3{0, 0, 1}}, true, 3},
		{"parallel", Ray{mgl64.Vec3{0, 0, -1}, mgl64.Vec3{1, 0, 0}}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := g.IntersectRay(tt.ray, world)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && math.Abs(d-tt.wantT) > 1e-9 {
				t.Errorf("t = %v, want %v", d, tt.wantT)
			}
		})
	}
}
