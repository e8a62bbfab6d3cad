package plaque

import (
	"strconv"
	"strings"
)

// SurfaceClass distinguishes display faces from structural parts.
type SurfaceClass uint8

const (
	SurfacePrimary   SurfaceClass = iota // display face: clear-coat, optional transmission
	SurfaceSecondary                     // base, back or stand: matte, no transmission
)

// String returns "primary" or "secondary".
func (c SurfaceClass) String() string {
	if c == SurfaceSecondary {
		return "secondary"
	}
	return "primary"
}

// secondaryKeywords mark structural parts by mesh name.
var secondaryKeywords = []string{"base", "back", "plate", "stand"}

// ClassifySurface guesses the surface class from a mesh name: names
// containing base, back, plate or stand (any case) are secondary. This is a
// naming heuristic and misclassifies meshes named otherwise, e.g. a
// "backdrop" display panel is treated as secondary.
func ClassifySurface(name string) SurfaceClass {
	label := strings.ToLower(name)
	for _, kw := range secondaryKeywords {
		if strings.Contains(label, kw) {
			return SurfaceSecondary
		}
	}
	return SurfacePrimary
}

// Extras keys understood by the adapter.
const (
	extraAdapted = "isAcrylicMaterial"
	extraSurface = "surface"
)

// DetailTextures are the tiled roughness details of the acrylic look.
// Either may be nil.
type DetailTextures struct {
	Fingerprints Texture
	Scratches    Texture
}

// Acrylic recipe constants.
const (
	acrylicIOR               = 1.49
	acrylicSpecularIntensity = 1.15
	fingerprintRepeat        = 12
	scratchRepeat            = 8
)

// BuildAcrylicMaterial derives a physical material from src. Color, maps,
// transparency, opacity, emissive, side and depth settings are preserved;
// the acrylic parameters are fixed per surface class. src is not modified.
func BuildAcrylicMaterial(src *Material, secondary bool, detail DetailTextures) *Material {
	if src == nil {
		src = NewStandardMaterial("")
	}
	translucent := !secondary && (src.Transparent || src.Opacity < 1)

	m := &Material{
		Name:              src.Name,
		Kind:              MaterialPhysical,
		Color:             src.Color,
		Map:               src.Map,
		NormalMap:         src.NormalMap,
		NormalScale:       src.NormalScale,
		RoughnessMap:      src.RoughnessMap,
		MetalnessMap:      src.MetalnessMap,
		AOMap:             src.AOMap,
		EmissiveMap:       src.EmissiveMap,
		AlphaMap:          src.AlphaMap,
		Emissive:          src.Emissive,
		EmissiveIntensity: src.EmissiveIntensity,
		Transparent:       src.Transparent,
		Opacity:           src.Opacity,
		AlphaTest:         src.AlphaTest,
		Side:              src.Side,
		DepthTest:         src.DepthTest,
		DepthWrite:        src.DepthWrite,

		Metalness:         0,
		IOR:               acrylicIOR,
		Reflectivity:      1,
		SpecularIntensity: acrylicSpecularIntensity,
		SpecularColor:     ColorWhite,
		AttenuationColor:  ColorWhite,
		NeedsUpdate:       true,
	}
	if m.NormalScale == (Vec2{}) {
		m.NormalScale = Vec2{1, 1}
	}

	var tex Texture
	var repeat float64
	if secondary {
		m.Clearcoat = 0
		m.ClearcoatRoughness = 0.2
		m.Roughness = 0.35
		m.EnvMapIntensity = 1.0
		tex, repeat = detail.Scratches, scratchRepeat
	} else {
		m.Clearcoat = 1.0
		m.ClearcoatRoughness = 0.04
		m.Roughness = 0.06
		m.EnvMapIntensity = 1.2
		tex, repeat = detail.Fingerprints, fingerprintRepeat
	}
	if translucent {
		m.Transmission = 0.95
		m.Thickness = 0.6
		m.AttenuationDistance = 0.8
		m.AttenuationColor = src.Color
	}
	if tex != nil {
		source := "fingerprints"
		if secondary {
			source = "scratches"
		}
		m.RoughnessMap = &TextureRef{
			Texture: tex,
			Source:  source,
			Repeat:  Vec2{repeat, repeat},
			Wrap:    WrapRepeat,
		}
	}

	m.Extras = make(map[string]any, len(src.Extras)+1)
	for k, v := range src.Extras {
		m.Extras[k] = v
	}
	m.Extras[extraAdapted] = true
	return m
}

// IsAdapted reports whether m carries the adapted tag.
func IsAdapted(m *Material) bool {
	if m == nil {
		return false
	}
	v, _ := m.Extras[extraAdapted].(bool)
	return v
}

// MaterialAdapter gives every model mesh an acrylic material once per loaded
// model and applies color overrides on top.
type MaterialAdapter struct {
	Detail DetailTextures

	// initialized records model roots already adapted.
	initialized map[*Node]struct{}
	// adapted records every material this adapter produced.
	adapted map[*Material]SurfaceClass
}

// NewMaterialAdapter creates an adapter using the given detail textures.
func NewMaterialAdapter(detail DetailTextures) *MaterialAdapter {
	return &MaterialAdapter{
		Detail:      detail,
		initialized: make(map[*Node]struct{}),
		adapted:     make(map[*Material]SurfaceClass),
	}
}

// Initialize adapts every mesh under root. It runs once per root: later
// calls return false and change nothing. Materials already adapted, by this
// adapter or tagged in their extras, are kept as they are.
func (a *MaterialAdapter) Initialize(root *Node) bool {
	if root == nil {
		return false
	}
	if _, done := a.initialized[root]; done {
		return false
	}
	count := 0
	Walk(root, func(n *Node) bool {
		if n.Type != NodeTypeMesh || n.Mesh == nil {
			return true
		}
		n.CastShadow = true
		n.ReceiveShadow = true
		if g := n.Mesh.Geometry; g != nil {
			g.ComputeVertexNormals()
		}
		src := n.Mesh.Material
		if _, ok := a.adapted[src]; ok || IsAdapted(src) {
			return true
		}
		class := ClassifySurface(n.Name)
		if src != nil {
			if s, _ := src.Extras[extraSurface].(string); s == SurfaceSecondary.String() {
				class = SurfaceSecondary
			}
		}
		m := BuildAcrylicMaterial(src, class == SurfaceSecondary, a.Detail)
		a.adapted[m] = class
		n.Mesh.Material = m
		count++
		return true
	})
	a.initialized[root] = struct{}{}
	Logger().Debug("plaque: materials adapted", "root", root.Name, "count", count)
	return true
}

// Initialized reports whether root has been adapted.
func (a *MaterialAdapter) Initialized(root *Node) bool {
	_, ok := a.initialized[root]
	return ok
}

// Class returns the surface class recorded for an adapted material.
func (a *MaterialAdapter) Class(m *Material) (SurfaceClass, bool) {
	c, ok := a.adapted[m]
	return c, ok
}

// Forget drops the records for root and the materials under it, typically
// when the model is unloaded.
func (a *MaterialAdapter) Forget(root *Node) {
	delete(a.initialized, root)
	Walk(root, func(n *Node) bool {
		if n.Mesh != nil {
			delete(a.adapted, n.Mesh.Material)
		}
		return true
	})
}

// AdaptedCount returns how many materials the adapter has produced and still
// tracks.
func (a *MaterialAdapter) AdaptedCount() int {
	return len(a.adapted)
}

// ApplyOverrides sets the color of every model mesh whose key appears in
// overrides and returns how many were changed. Meshes without an entry, and
// entries that do not parse as colors, are left alone.
func ApplyOverrides(root *Node, overrides MaterialOverrides) int {
	if len(overrides) == 0 {
		return 0
	}
	n := 0
	Walk(root, func(node *Node) bool {
		if node.Type != NodeTypeMesh || node.Mesh == nil || node.Mesh.Material == nil {
			return true
		}
		value, ok := overrides[MeshKey(node)]
		if !ok {
			return true
		}
		c, ok := ParseColor(value)
		if !ok {
			Logger().Warn("plaque: ignoring invalid override color", "mesh", MeshKey(node), "color", value)
			return true
		}
		c.A = node.Mesh.Material.Color.A
		node.Mesh.Material.SetColor(c)
		n++
		return true
	})
	return n
}

// MeshKey identifies a mesh for overrides: its name, or for unnamed nodes a
// path of child indices from the model root such as "#0.2.1". The path is
// stable for a given model file.
func MeshKey(n *Node) string {
	if n.Name != "" {
		return n.Name
	}
	var idx []int
	for c := n; c.Parent != nil && !c.modelRoot; c = c.Parent {
		idx = append(idx, c.Parent.IndexOf(c))
	}
	var b strings.Builder
	b.WriteByte('#')
	for i := len(idx) - 1; i >= 0; i-- {
		b.WriteString(strconv.Itoa(idx[i]))
		if i > 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}
