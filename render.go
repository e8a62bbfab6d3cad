package plaque

import (
	"image"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/colorm"
)

// RenderLayer groups commands; lower layers draw first.
type RenderLayer uint8

const (
	LayerModel   RenderLayer = iota // depth-tested meshes, including image planes
	LayerOverlay                    // planes drawn over everything, such as text
)

// polygonOffsetDepth is the view-space distance one unit of polygon offset
// factor moves a command's sort depth.
const polygonOffsetDepth = 1e-3

// RenderCommand is one projected mesh ready for submission. Vertices are in
// target pixels with texel source coordinates; triangles are ordered far to
// near.
type RenderCommand struct {
	Node        *Node
	Layer       RenderLayer
	RenderOrder int
	Transparent bool
	// Depth is the view-space distance of the mesh center.
	Depth     float64
	treeOrder int

	Texture  Texture
	AlphaMap Texture
	Vertices []ebiten.Vertex
	Indices  []uint16
}

// whitePixel is the source image for untextured meshes.
var whitePixel *ebiten.Image

func ensureWhitePixel() *ebiten.Image {
	if whitePixel == nil {
		whitePixel = ebiten.NewImage(1, 1)
		whitePixel.Fill(ColorWhite.NRGBA())
	}
	return whitePixel
}

// textureSize returns the pixel size of t when it exposes Bounds, else 1x1.
func textureSize(t Texture) (w, h float64) {
	if b, ok := t.(interface{ Bounds() image.Rectangle }); ok {
		r := b.Bounds()
		if r.Dx() > 0 && r.Dy() > 0 {
			return float64(r.Dx()), float64(r.Dy())
		}
	}
	return 1, 1
}

// BuildCommands projects every visible mesh under the scene root into
// s.commands for a target of w×h pixels, then sorts them. World matrices
// must be current.
func (s *Scene) BuildCommands(w, h int) []RenderCommand {
	s.commands = s.commands[:0]
	cam := *s.camera
	cam.SetViewport(Rect{Width: float64(w), Height: float64(h)})
	viewProj := cam.ProjectionMatrix().Mul4(cam.ViewMatrix())
	view := cam.ViewMatrix()

	treeOrder := 0
	var walk func(n *Node)
	walk = func(n *Node) {
		if !n.Visible {
			return
		}
		if n.Mesh != nil && n.Mesh.Geometry != nil && n.Mesh.Material != nil {
			treeOrder++
			if cmd, ok := projectMesh(n, viewProj, view, float64(w), float64(h)); ok {
				cmd.treeOrder = treeOrder
				s.commands = append(s.commands, cmd)
			}
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(s.root)
	s.mergeSort()
	return s.commands
}

// projectMesh builds a command for one mesh node. Triangles with a vertex
// behind the near plane are dropped.
func projectMesh(n *Node, viewProj, view mgl64.Mat4, w, h float64) (RenderCommand, bool) {
	g, mat := n.Mesh.Geometry, n.Mesh.Material
	mvp := viewProj.Mul4(n.worldMatrix)
	mv := view.Mul4(n.worldMatrix)

	cmd := RenderCommand{
		Node:        n,
		RenderOrder: n.RenderOrder,
		Transparent: mat.Transparent || mat.Opacity < 1,
	}
	var texW, texH float64 = 1, 1
	if mat.Map != nil && mat.Map.Texture != nil {
		cmd.Texture = mat.Map.Texture
		texW, texH = textureSize(cmd.Texture)
	}
	if mat.AlphaMap != nil {
		cmd.AlphaMap = mat.AlphaMap.Texture
	}

	if !mat.DepthTest {
		cmd.Layer = LayerOverlay
	}
	center := mgl64.TransformCoordinate(g.Bounds().Center(), mv)
	cmd.Depth = -center[2]
	if mat.PolygonOffset {
		cmd.Depth += (mat.PolygonOffsetFactor + mat.PolygonOffsetUnits) * polygonOffsetDepth
	}

	cr, cg, cb, ca := float32(mat.Color.R), float32(mat.Color.G), float32(mat.Color.B), float32(mat.Color.A*mat.Opacity)
	verts := make([]ebiten.Vertex, len(g.Positions))
	depth := make([]float64, len(g.Positions))
	visible := make([]bool, len(g.Positions))
	for i, p := range g.Positions {
		clip := mvp.Mul4x1(p.Vec4(1))
		if clip[3] <= 1e-9 {
			continue
		}
		visible[i] = true
		depth[i] = clip[3]
		v := ebiten.Vertex{
			DstX:   float32((clip[0]/clip[3] + 1) / 2 * w),
			DstY:   float32((1 - clip[1]/clip[3]) / 2 * h),
			ColorR: cr, ColorG: cg, ColorB: cb, ColorA: ca,
		}
		if i < len(g.UVs) {
			v.SrcX = float32(g.UVs[i][0] * texW)
			v.SrcY = float32(g.UVs[i][1] * texH)
		}
		if mat.Kind != MaterialBasic && i < len(g.Normals) {
			shade := float32(headlightShade(g.Normals[i], mv))
			v.ColorR *= shade
			v.ColorG *= shade
			v.ColorB *= shade
		}
		verts[i] = v
	}

	type tri struct {
		a, b, c int
		depth   float64
	}
	tris := make([]tri, 0, g.TriangleCount())
	for i := 0; i < g.TriangleCount(); i++ {
		a, b, c := g.triangle(i)
		if a >= len(verts) || b >= len(verts) || c >= len(verts) {
			continue
		}
		if !visible[a] || !visible[b] || !visible[c] {
			continue
		}
		tris = append(tris, tri{a, b, c, depth[a] + depth[b] + depth[c]})
	}
	if len(tris) == 0 || len(verts) > math.MaxUint16 {
		return cmd, false
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].depth > tris[j].depth })

	cmd.Vertices = verts
	cmd.Indices = make([]uint16, 0, 3*len(tris))
	for _, t := range tris {
		cmd.Indices = append(cmd.Indices, uint16(t.a), uint16(t.b), uint16(t.c))
	}
	return cmd, true
}

// headlightShade returns a brightness factor for a light at the eye, so
// unlit previews keep their shape.
func headlightShade(normal mgl64.Vec3, mv mgl64.Mat4) float64 {
	n := mv.Mat3().Mul3x1(normal)
	l := n.Len()
	if l < 1e-12 {
		return 1
	}
	return 0.35 + 0.65*math.Abs(n[2]/l)
}

// --- Merge sort ---

// commandLessOrEqual orders by layer first. Depth-tested commands then sort
// far before near so nearer geometry occludes them; ties fall back to render
// order, opaque before transparent, then tree order. Overlay commands sort
// by render order, opaque before transparent, far before near, then tree
// order. Using <= for treeOrder keeps the sort stable.
func commandLessOrEqual(a, b RenderCommand) bool {
	if a.Layer != b.Layer {
		return a.Layer < b.Layer
	}
	if a.Layer == LayerModel && a.Depth != b.Depth {
		return a.Depth > b.Depth
	}
	if a.RenderOrder != b.RenderOrder {
		return a.RenderOrder < b.RenderOrder
	}
	if a.Transparent != b.Transparent {
		return !a.Transparent
	}
	if a.Depth != b.Depth {
		return a.Depth > b.Depth
	}
	return a.treeOrder <= b.treeOrder
}

// mergeSort sorts s.commands in-place using s.sortBuf as scratch space.
// Bottom-up merge sort: zero allocations after the sort buffer reaches high-water mark.
func (s *Scene) mergeSort() {
	n := len(s.commands)
	if n <= 1 {
		return
	}
	if cap(s.sortBuf) < n {
		s.sortBuf = make([]RenderCommand, n)
	}
	s.sortBuf = s.sortBuf[:n]

	a := s.commands
	b := s.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := lo + width
			if mid > n {
				mid = n
			}
			hi := lo + 2*width
			if hi > n {
				hi = n
			}
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(s.commands, s.sortBuf)
	}
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []RenderCommand, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if commandLessOrEqual(src[i], src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}

// --- Submission ---

// Draw clears target with the background and draws the scene from the
// scene camera. This is a painter's-order preview with a fixed headlight
// and no depth buffer.
func (s *Scene) Draw(target *ebiten.Image) {
	b := target.Bounds()
	target.Fill(s.Background.NRGBA())
	s.BuildCommands(b.Dx(), b.Dy())
	for _, m := range s.maskedImages {
		m.used = false
	}
	for i := range s.commands {
		s.submit(target, &s.commands[i])
	}
	s.releaseUnusedMasked()
}

func (s *Scene) submit(target *ebiten.Image, cmd *RenderCommand) {
	src := ensureWhitePixel()
	if img, ok := cmd.Texture.(*ebiten.Image); ok && img != nil {
		src = img
		if mask, ok := cmd.AlphaMap.(*ebiten.Image); ok && mask != nil {
			src = s.masked(img, mask)
		}
	}
	var op ebiten.DrawTrianglesOptions
	op.Filter = ebiten.FilterLinear
	target.DrawTriangles(cmd.Vertices, cmd.Indices, src, &op)
}

// --- Alpha-masked sources ---

type maskedKey struct {
	color, mask *ebiten.Image
}

type maskedImage struct {
	img  *ebiten.Image
	used bool
}

// masked returns img with mask's luminance applied as alpha, at the mask's
// resolution. Results are kept while they are drawn every frame.
func (s *Scene) masked(img, mask *ebiten.Image) *ebiten.Image {
	key := maskedKey{img, mask}
	if m, ok := s.maskedImages[key]; ok {
		m.used = true
		return m.img
	}
	mb, ib := mask.Bounds(), img.Bounds()
	out := ebiten.NewImage(mb.Dx(), mb.Dy())

	var op ebiten.DrawImageOptions
	op.GeoM.Scale(float64(mb.Dx())/float64(ib.Dx()), float64(mb.Dy())/float64(ib.Dy()))
	op.Filter = ebiten.FilterLinear
	out.DrawImage(img, &op)

	// Alpha takes the mask's green channel.
	var cm colorm.ColorM
	cm.SetElement(3, 0, 0)
	cm.SetElement(3, 1, 1)
	cm.SetElement(3, 2, 0)
	cm.SetElement(3, 3, 0)
	var mop colorm.DrawImageOptions
	mop.Blend = ebiten.BlendDestinationIn
	colorm.DrawImage(out, mask, cm, &mop)

	if s.maskedImages == nil {
		s.maskedImages = make(map[maskedKey]*maskedImage)
	}
	s.maskedImages[key] = &maskedImage{img: out, used: true}
	return out
}

func (s *Scene) releaseUnusedMasked() {
	for k, m := range s.maskedImages {
		if !m.used {
			m.img.Deallocate()
			delete(s.maskedImages, k)
		}
	}
}
