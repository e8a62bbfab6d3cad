package plaque

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// maxModelBytes caps model downloads.
const maxModelBytes = 256 << 20

// Model is a loaded glTF scene: its node tree and the textures decoded
// from the file.
type Model struct {
	Root     *Node
	Textures []Texture
}

// Dispose disposes the node tree and deallocates the model's textures.
func (m *Model) Dispose() {
	if m.Root != nil {
		m.Root.Dispose()
	}
	for _, t := range m.Textures {
		if t != nil {
			t.Deallocate()
		}
	}
	m.Textures = nil
}

// ModelLoader reads glTF 2.0 and GLB files into node trees. Only triangle
// primitives are kept; skins, morph targets, cameras and lights are
// ignored.
type ModelLoader struct {
	Client *http.Client
	Upload TextureUploader
	// BaseDir resolves relative paths.
	BaseDir string
}

// Load reads the model at src, which may be a path, a file:// URL, an
// http(s) URL or a data: URL. Local .gltf files may reference external
// buffers and images next to them; remote sources must be self-contained.
func (l *ModelLoader) Load(ctx context.Context, src string) (*Model, error) {
	var doc *gltf.Document
	var dir string
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"), strings.HasPrefix(src, "data:"):
		data, err := fetchSource(ctx, l.Client, l.BaseDir, src, maxModelBytes)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		doc = new(gltf.Document)
		if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
			return nil, fmt.Errorf("decode model: %w", err)
		}
	default:
		path := strings.TrimPrefix(src, "file://")
		path = resolvePath(l.BaseDir, path)
		var err error
		if doc, err = gltf.Open(path); err != nil {
			return nil, fmt.Errorf("open model: %w", err)
		}
		dir = filepath.Dir(path)
	}
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if strings.HasPrefix(src, "data:") {
		name = "model"
	}
	return l.build(doc, name, dir)
}

// Decode builds a model from an already parsed document.
func (l *ModelLoader) Decode(doc *gltf.Document, name string) (*Model, error) {
	return l.build(doc, name, l.BaseDir)
}

type modelBuilder struct {
	doc       *gltf.Document
	dir       string
	upload    TextureUploader
	model     *Model
	textures  map[int]Texture
	materials map[int]*Material
}

func (l *ModelLoader) build(doc *gltf.Document, name, dir string) (*Model, error) {
	upload := l.Upload
	if upload == nil {
		upload = EbitenUploader
	}
	b := &modelBuilder{
		doc:       doc,
		dir:       dir,
		upload:    upload,
		model:     &Model{Root: NewModelRoot(name)},
		textures:  make(map[int]Texture),
		materials: make(map[int]*Material),
	}
	roots := sceneRoots(doc)
	visiting := make(map[int]bool)
	for _, i := range roots {
		if err := b.node(b.model.Root, i, visiting); err != nil {
			b.model.Dispose()
			return nil, err
		}
	}
	return b.model, nil
}

// sceneRoots returns the root node indices of the default scene, the first
// scene, or every node that is no other node's child.
func sceneRoots(doc *gltf.Document) []int {
	var out []int
	switch {
	case doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes):
		for _, n := range doc.Scenes[*doc.Scene].Nodes {
			out = append(out, int(n))
		}
	case len(doc.Scenes) > 0:
		for _, n := range doc.Scenes[0].Nodes {
			out = append(out, int(n))
		}
	default:
		child := make(map[int]bool)
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				child[int(c)] = true
			}
		}
		for i := range doc.Nodes {
			if !child[i] {
				out = append(out, i)
			}
		}
	}
	return out
}

func (b *modelBuilder) node(parent *Node, index int, visiting map[int]bool) error {
	if index < 0 || index >= len(b.doc.Nodes) {
		return fmt.Errorf("model: node %d out of range", index)
	}
	if visiting[index] {
		return fmt.Errorf("model: node %d is its own ancestor", index)
	}
	visiting[index] = true
	defer delete(visiting, index)

	src := b.doc.Nodes[index]
	n := NewContainer(src.Name)
	n.Extras = extrasMap(src.Extras)
	setNodeTransform(n, src)
	parent.AddChild(n)

	if src.Mesh != nil {
		if err := b.mesh(n, int(*src.Mesh)); err != nil {
			return err
		}
	}
	for _, c := range src.Children {
		if err := b.node(n, int(c), visiting); err != nil {
			return err
		}
	}
	return nil
}

// mesh attaches one mesh node per triangle primitive. A single primitive
// turns the container itself into the mesh node so it keeps the glTF
// node's name.
func (b *modelBuilder) mesh(n *Node, index int) error {
	if index < 0 || index >= len(b.doc.Meshes) {
		return fmt.Errorf("model: mesh %d out of range", index)
	}
	m := b.doc.Meshes[index]
	name := n.Name
	if name == "" {
		name = m.Name
	}
	var prims []*Mesh
	for i, p := range m.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			Logger().Debug("plaque: skipping non-triangle primitive", "mesh", m.Name, "primitive", i)
			continue
		}
		g, err := b.geometry(p)
		if err != nil {
			return fmt.Errorf("model: mesh %q primitive %d: %w", m.Name, i, err)
		}
		mat := NewStandardMaterial("")
		if p.Material != nil {
			if mat, err = b.material(int(*p.Material)); err != nil {
				return err
			}
		}
		prims = append(prims, &Mesh{Geometry: g, Material: mat})
	}
	switch len(prims) {
	case 0:
	case 1:
		n.Type = NodeTypeMesh
		n.Name = name
		n.Mesh = prims[0]
	default:
		for i, pm := range prims {
			child := NewMeshNode(name+"_"+strconv.Itoa(i), pm.Geometry, pm.Material)
			n.AddChild(child)
		}
	}
	return nil
}

func (b *modelBuilder) geometry(p *gltf.Primitive) (*Geometry, error) {
	pa, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	pos, err := modeler.ReadPosition(b.doc, b.doc.Accessors[pa], nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	positions := make([]mgl64.Vec3, len(pos))
	for i, v := range pos {
		positions[i] = mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
	}

	var uvs []mgl64.Vec2
	if ua, ok := p.Attributes[gltf.TEXCOORD_0]; ok {
		tc, err := modeler.ReadTextureCoord(b.doc, b.doc.Accessors[ua], nil)
		if err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
		uvs = make([]mgl64.Vec2, len(tc))
		for i, v := range tc {
			uvs[i] = mgl64.Vec2{float64(v[0]), float64(v[1])}
		}
	}

	var indices []uint32
	if p.Indices != nil {
		if indices, err = modeler.ReadIndices(b.doc, b.doc.Accessors[*p.Indices], nil); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	}
	g := NewGeometry(positions, uvs, indices)

	if na, ok := p.Attributes[gltf.NORMAL]; ok {
		nv, err := modeler.ReadNormal(b.doc, b.doc.Accessors[na], nil)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
		g.Normals = make([]mgl64.Vec3, len(nv))
		for i, v := range nv {
			g.Normals[i] = mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
		}
	}
	return g, nil
}

func (b *modelBuilder) material(index int) (*Material, error) {
	if m, ok := b.materials[index]; ok {
		return m, nil
	}
	if index < 0 || index >= len(b.doc.Materials) {
		return nil, fmt.Errorf("model: material %d out of range", index)
	}
	src := b.doc.Materials[index]
	m := NewStandardMaterial(src.Name)
	m.Extras = extrasMap(src.Extras)
	m.Metalness = 1
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if f := pbr.BaseColorFactor; f != nil {
			m.Color = Color{float64(f[0]), float64(f[1]), float64(f[2]), float64(f[3])}
			m.Opacity = float64(f[3])
		}
		if pbr.MetallicFactor != nil {
			m.Metalness = float64(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			m.Roughness = float64(*pbr.RoughnessFactor)
		}
		if ti := pbr.BaseColorTexture; ti != nil {
			m.Map = b.textureRef(int(ti.Index))
		}
		if ti := pbr.MetallicRoughnessTexture; ti != nil {
			ref := b.textureRef(int(ti.Index))
			m.RoughnessMap, m.MetalnessMap = ref, ref
		}
	}
	if ti := src.NormalTexture; ti != nil && ti.Index != nil {
		m.NormalMap = b.textureRef(int(*ti.Index))
	}
	if ti := src.EmissiveTexture; ti != nil {
		m.EmissiveMap = b.textureRef(int(ti.Index))
	}
	e := src.EmissiveFactor
	m.Emissive = Color{float64(e[0]), float64(e[1]), float64(e[2]), 1}
	switch src.AlphaMode {
	case gltf.AlphaBlend:
		m.Transparent = true
	case gltf.AlphaMask:
		m.AlphaTest = 0.5
		if src.AlphaCutoff != nil {
			m.AlphaTest = float64(*src.AlphaCutoff)
		}
	}
	if src.AlphaMode != gltf.AlphaBlend {
		m.Opacity = 1
	}
	if src.DoubleSided {
		m.Side = SideDouble
	}
	b.materials[index] = m
	return m, nil
}

// textureRef decodes and uploads the texture's image once. Images that fail
// to load are logged and leave the slot empty.
func (b *modelBuilder) textureRef(index int) *TextureRef {
	if index < 0 || index >= len(b.doc.Textures) || b.doc.Textures[index].Source == nil {
		return nil
	}
	src := int(*b.doc.Textures[index].Source)
	tex, ok := b.textures[src]
	if !ok {
		data, err := b.imageData(src)
		if err == nil {
			img, derr := DecodeImage(data)
			if derr == nil {
				tex = b.upload(img)
				b.model.Textures = append(b.model.Textures, tex)
			}
			err = derr
		}
		if err != nil {
			Logger().Warn("plaque: model texture skipped", "image", src, "err", err)
		}
		b.textures[src] = tex
	}
	if tex == nil {
		return nil
	}
	return &TextureRef{Texture: tex, Source: "image:" + strconv.Itoa(src), Repeat: Vec2{1, 1}}
}

func (b *modelBuilder) imageData(index int) ([]byte, error) {
	if index < 0 || index >= len(b.doc.Images) {
		return nil, fmt.Errorf("image %d out of range", index)
	}
	img := b.doc.Images[index]
	if img.BufferView != nil {
		bv := b.doc.BufferViews[*img.BufferView]
		data := b.doc.Buffers[bv.Buffer].Data
		start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
		if end > len(data) {
			return nil, fmt.Errorf("image %d buffer view out of range", index)
		}
		return data[start:end], nil
	}
	if img.IsEmbeddedResource() {
		return img.MarshalData()
	}
	if img.URI == "" {
		return nil, fmt.Errorf("image %d has no source", index)
	}
	if b.dir == "" {
		return nil, fmt.Errorf("image %d: external uri %q needs a local model", index, img.URI)
	}
	return readFileLimited(filepath.Join(b.dir, filepath.FromSlash(img.URI)), maxImageBytes)
}

// setNodeTransform copies a glTF node's TRS or matrix onto n.
func setNodeTransform(n *Node, src *gltf.Node) {
	m := src.MatrixOrDefault()
	var mat mgl64.Mat4
	identity := true
	for i := range mat {
		mat[i] = float64(m[i])
		if mat[i] != mgl64.Ident4()[i] {
			identity = false
		}
	}
	if !identity {
		n.Position, n.Rotation, n.Scale = decomposeMatrix(mat)
		return
	}
	t, r, s := src.TranslationOrDefault(), src.RotationOrDefault(), src.ScaleOrDefault()
	n.Position = Vec3{float64(t[0]), float64(t[1]), float64(t[2])}
	n.Scale = Vec3{float64(s[0]), float64(s[1]), float64(s[2])}
	q := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}
	n.Rotation = eulerXYZ(q.Normalize().Mat4())
}

// decomposeMatrix splits an affine matrix without shear into translation,
// XYZ Euler rotation and scale.
func decomposeMatrix(m mgl64.Mat4) (pos, rot, scale Vec3) {
	pos = Vec3{m[12], m[13], m[14]}
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}
	scale = Vec3{sx, sy, sz}
	var r mgl64.Mat4
	for c, s := range [3]float64{sx, sy, sz} {
		if s == 0 {
			s = 1
		}
		r.SetCol(c, m.Col(c).Mul(1/s))
	}
	r.SetCol(3, mgl64.Vec4{0, 0, 0, 1})
	return pos, eulerXYZ(r), scale
}

// eulerXYZ extracts the angles of a rotation matrix composed as Rz·Ry·Rx.
func eulerXYZ(r mgl64.Mat4) Vec3 {
	sy := -r.At(2, 0)
	sy = mgl64.Clamp(sy, -1, 1)
	y := math.Asin(sy)
	if math.Abs(sy) < 0.9999999 {
		return Vec3{
			X: math.Atan2(r.At(2, 1), r.At(2, 2)),
			Y: y,
			Z: math.Atan2(r.At(1, 0), r.At(0, 0)),
		}
	}
	return Vec3{X: 0, Y: y, Z: math.Atan2(-r.At(0, 1), r.At(1, 1))}
}

// extrasMap returns glTF extras as a map when they are a JSON object.
func extrasMap(extras any) map[string]any {
	m, _ := extras.(map[string]any)
	return m
}
