package plaque

// Side selects which faces of a mesh are rendered.
type Side uint8

const (
	SideFront Side = iota
	SideBack
	SideDouble
)

// MaterialKind identifies the shading model of a Material.
type MaterialKind uint8

const (
	MaterialStandard MaterialKind = iota // metallic-roughness PBR, as imported
	MaterialPhysical                     // PBR with clear-coat and transmission
	MaterialBasic                        // unlit
)

// WrapMode is the texture addressing mode.
type WrapMode uint8

const (
	WrapClamp WrapMode = iota
	WrapRepeat
)

// TextureRef binds a texture to a material slot.
type TextureRef struct {
	Texture Texture
	// Source names where the texture came from (URL, image index or detail name).
	Source string
	Repeat Vec2
	Wrap   WrapMode
}

// Material describes the surface of a mesh or overlay plane. Colors are
// straight alpha.
type Material struct {
	Name string
	Kind MaterialKind

	Color        Color
	Map          *TextureRef
	NormalMap    *TextureRef
	NormalScale  Vec2
	RoughnessMap *TextureRef
	MetalnessMap *TextureRef
	AOMap        *TextureRef
	EmissiveMap  *TextureRef
	AlphaMap     *TextureRef

	Emissive          Color
	EmissiveIntensity float64
	Metalness         float64
	Roughness         float64

	Transparent bool
	Opacity     float64
	AlphaTest   float64
	Side        Side
	DepthTest   bool
	DepthWrite  bool

	Clearcoat           float64
	ClearcoatRoughness  float64
	Transmission        float64
	Thickness           float64
	AttenuationDistance float64
	AttenuationColor    Color
	IOR                 float64
	Reflectivity        float64
	SpecularIntensity   float64
	SpecularColor       Color
	EnvMapIntensity     float64

	PolygonOffset       bool
	PolygonOffsetFactor float64
	PolygonOffsetUnits  float64

	// Extras carries loader metadata, such as glTF material extras.
	Extras map[string]any

	// NeedsUpdate is set whenever a property changes after creation; the
	// renderer clears it after re-uploading uniforms.
	NeedsUpdate bool
}

// NewStandardMaterial returns an opaque, white, depth-tested material with
// the default metallic-roughness values.
func NewStandardMaterial(name string) *Material {
	return &Material{
		Name:              name,
		Kind:              MaterialStandard,
		Color:             ColorWhite,
		NormalScale:       Vec2{1, 1},
		Emissive:          ColorBlack,
		EmissiveIntensity: 1,
		Metalness:         0,
		Roughness:         1,
		Opacity:           1,
		DepthTest:         true,
		DepthWrite:        true,
		IOR:               1.5,
		Reflectivity:      0.5,
		SpecularIntensity: 1,
		SpecularColor:     ColorWhite,
		EnvMapIntensity:   1,
	}
}

// NewBasicMaterial returns an unlit material.
func NewBasicMaterial(name string) *Material {
	m := NewStandardMaterial(name)
	m.Kind = MaterialBasic
	return m
}

// Clone returns a shallow copy of m with its own Extras map. Texture
// references are shared.
func (m *Material) Clone() *Material {
	c := *m
	if m.Extras != nil {
		c.Extras = make(map[string]any, len(m.Extras))
		for k, v := range m.Extras {
			c.Extras[k] = v
		}
	}
	return &c
}

// SetColor changes the base color and flags the material for re-upload.
func (m *Material) SetColor(c Color) {
	m.Color = c
	m.NeedsUpdate = true
}

// Mesh is drawable geometry with a single material.
type Mesh struct {
	Geometry *Geometry
	Material *Material
}
