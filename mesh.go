package plaque

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Geometry is an indexed triangle list in local space.
type Geometry struct {
	Positions []mgl64.Vec3
	Normals   []mgl64.Vec3
	UVs       []mgl64.Vec2
	// Indices may be nil for non-indexed triangle lists.
	Indices []uint32

	aabb      AABB
	aabbDirty bool
}

// NewGeometry creates a geometry and marks its bounds for computation.
func NewGeometry(positions []mgl64.Vec3, uvs []mgl64.Vec2, indices []uint32) *Geometry {
	return &Geometry{Positions: positions, UVs: uvs, Indices: indices, aabbDirty: true}
}

// NewQuadGeometry creates a w×h quad in the XY plane centered on the origin,
// facing +Z.
func NewQuadGeometry(w, h float64) *Geometry {
	hw, hh := w/2, h/2
	g := NewGeometry(
		[]mgl64.Vec3{{-hw, -hh, 0}, {hw, -hh, 0}, {hw, hh, 0}, {-hw, hh, 0}},
		[]mgl64.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	g.Normals = []mgl64.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	return g
}

// InvalidateBounds marks the cached bounds as stale. Call this after
// modifying Positions.
func (g *Geometry) InvalidateBounds() {
	g.aabbDirty = true
}

// Bounds returns the local-space bounding box.
func (g *Geometry) Bounds() AABB {
	if g.aabbDirty {
		g.aabb = computeAABB(g.Positions)
		g.aabbDirty = false
	}
	return g.aabb
}

// triangle returns the vertex indices of triangle i.
func (g *Geometry) triangle(i int) (a, b, c int) {
	if g.Indices != nil {
		return int(g.Indices[3*i]), int(g.Indices[3*i+1]), int(g.Indices[3*i+2])
	}
	return 3 * i, 3*i + 1, 3*i + 2
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	if g.Indices != nil {
		return len(g.Indices) / 3
	}
	return len(g.Positions) / 3
}

// ComputeVertexNormals replaces Normals with area-weighted averages of the
// adjacent face normals.
func (g *Geometry) ComputeVertexNormals() {
	normals := make([]mgl64.Vec3, len(g.Positions))
	for i := 0; i < g.TriangleCount(); i++ {
		a, b, c := g.triangle(i)
		if a >= len(g.Positions) || b >= len(g.Positions) || c >= len(g.Positions) {
			continue
		}
		pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
		face := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(face)
		normals[b] = normals[b].Add(face)
		normals[c] = normals[c].Add(face)
	}
	for i, n := range normals {
		if l := n.Len(); l > 1e-12 {
			normals[i] = n.Mul(1 / l)
		}
	}
	g.Normals = normals
}

// IntersectRay returns the distance along r to the nearest triangle of g
// after transforming it by world. Both faces count as hits.
func (g *Geometry) IntersectRay(r Ray, world mgl64.Mat4) (float64, bool) {
	best := math.Inf(1)
	n := len(g.Positions)
	for i := 0; i < g.TriangleCount(); i++ {
		a, b, c := g.triangle(i)
		if a >= n || b >= n || c >= n {
			continue
		}
		t, ok := intersectTriangle(r,
			mgl64.TransformCoordinate(g.Positions[a], world),
			mgl64.TransformCoordinate(g.Positions[b], world),
			mgl64.TransformCoordinate(g.Positions[c], world))
		if ok && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

// intersectTriangle is the Moller-Trumbore ray/triangle test.
func intersectTriangle(r Ray, a, b, c mgl64.Vec3) (float64, bool) {
	const eps = 1e-12
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// AABB is an axis-aligned bounding box. An empty box has Min > Max.
type AABB struct {
	Min, Max mgl64.Vec3
}

// EmptyAABB returns a box that contains nothing.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box contains no points.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend grows b to contain p.
func (b AABB) Extend(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the edge lengths of the box.
func (b AABB) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Transform returns the box enclosing b's eight corners after applying m.
func (b AABB) Transform(m mgl64.Mat4) AABB {
	if b.IsEmpty() {
		return b
	}
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		c := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		out = out.Extend(mgl64.TransformCoordinate(c, m))
	}
	return out
}

// IntersectRay returns the distance along the ray to the nearest point of
// the box, using the slab method. A ray starting inside the box hits at 0.
func (b AABB) IntersectRay(r Ray) (float64, bool) {
	if b.IsEmpty() {
		return 0, false
	}
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(r.Dir[i]) < 1e-12 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Dir[i]
		t1 := (b.Min[i] - r.Origin[i]) * inv
		t2 := (b.Max[i] - r.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	return math.Max(tmin, 0), true
}

func computeAABB(points []mgl64.Vec3) AABB {
	b := EmptyAABB()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// Ray is a half-line in world space. Dir need not be normalized; distances
// are in units of Dir's length.
type Ray struct {
	Origin, Dir mgl64.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}
