package plaque

import (
	"context"
	"errors"
	"image"
	"net/http"
)

// Overlay plane constants.
const (
	imagePlaneRoughness     = 0.32
	imagePlanePolygonOffset = -1
	textPlaneWidth          = 1.2
	textPlaneAlphaTest      = 0.01
	textPlanePolygonOffset  = -2
	textPlaneRenderOrder    = 5
)

// ComposerOptions configures a Composer. The zero value is usable: textures
// go to ebiten, fonts come from DefaultFonts and images are fetched with
// http.DefaultClient.
type ComposerOptions struct {
	Upload TextureUploader
	Fonts  *FontRegistry
	// Detail textures for the acrylic look. Nil fields leave the roughness
	// maps off.
	Detail DetailTextures
	// Images overrides the image loader. When nil one is created from
	// HTTPClient and Upload.
	Images     *ImageLoader
	HTTPClient *http.Client
}

// Composer keeps the scene in step with the overlay lists, the model and
// its color overrides. It owns the mask and text caches and the image
// loader; planes only borrow their textures. Not safe for concurrent use.
type Composer struct {
	scene   *Scene
	adapter *MaterialAdapter
	masks   *TextureCache
	texts   *TextureCache
	images  *ImageLoader
	fonts   *FontRegistry

	overrides   MaterialOverrides
	imagePlanes map[string]*Node
	textPlanes  map[string]*textPlane
	imageOrder  []*Node
	textOrder   []*Node
}

type textPlane struct {
	node       *Node
	generation uint64
}

// NewComposer creates a composer drawing into scene.
func NewComposer(scene *Scene, opts ComposerOptions) *Composer {
	images := opts.Images
	if images == nil {
		images = NewImageLoader(opts.HTTPClient, opts.Upload)
	}
	return &Composer{
		scene:       scene,
		adapter:     NewMaterialAdapter(opts.Detail),
		masks:       NewTextureCache("mask", opts.Upload),
		texts:       NewTextureCache("text", opts.Upload),
		images:      images,
		fonts:       opts.Fonts,
		imagePlanes: make(map[string]*Node),
		textPlanes:  make(map[string]*textPlane),
	}
}

// Scene returns the scene the composer draws into.
func (c *Composer) Scene() *Scene {
	return c.scene
}

// Adapter returns the material adapter.
func (c *Composer) Adapter() *MaterialAdapter {
	return c.adapter
}

// SetModel replaces the model. The new model is centered on its base,
// adapted once and recolored with the current overrides. The previous
// model is forgotten by the adapter and disposed.
func (c *Composer) SetModel(model *Node) {
	if model == c.scene.Model() {
		return
	}
	if model != nil {
		CenterModel(model)
		c.adapter.Initialize(model)
		ApplyOverrides(model, c.overrides)
	}
	if prev := c.scene.SetModel(model); prev != nil {
		c.adapter.Forget(prev)
		prev.Dispose()
	}
}

// SetOverrides stores a copy of overrides and applies it to the current
// model. Meshes dropped from the map keep their last color.
func (c *Composer) SetOverrides(overrides MaterialOverrides) int {
	c.overrides = overrides.Clone()
	if m := c.scene.Model(); m != nil {
		return ApplyOverrides(m, c.overrides)
	}
	return 0
}

// Overrides returns a copy of the current overrides.
func (c *Composer) Overrides() MaterialOverrides {
	return c.overrides.Clone()
}

// SyncImages makes the image planes match images: one plane per overlay,
// in list order, with its picture as color map and its rounded mask as
// alpha map. Overlays whose image fails to load get no plane; their errors
// are joined into the result. Masks and images of removed overlays are
// released.
func (c *Composer) SyncImages(ctx context.Context, images []ImageOverlay) error {
	var errs []error
	order := make([]*Node, 0, len(images))
	seen := make(map[string]struct{}, len(images))
	urls := make(map[string]struct{}, len(images))

	for _, o := range images {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		urls[o.URL] = struct{}{}

		img, err := c.images.Load(ctx, o.URL)
		if err != nil {
			errs = append(errs, err)
			c.dropImagePlane(o.ID)
			continue
		}
		radius := o.MaskRadius()
		mask := c.masks.GetOrCreate(o.ID, o.MaskSignature(), func() (image.Image, bool) {
			return RasterizeRoundedMask(radius), true
		})

		n, ok := c.imagePlanes[o.ID]
		if !ok {
			n = NewOverlayNode(OverlayImage, o.ID, NewQuadGeometry(1, 1), newImagePlaneMaterial(o.ID))
			c.imagePlanes[o.ID] = n
		}
		mat := n.Mesh.Material
		setTextureRef(&mat.Map, img.Texture, o.URL)
		if mask != nil {
			setTextureRef(&mat.AlphaMap, mask.Texture, "mask:"+o.ID)
		} else {
			mat.AlphaMap = nil
		}
		placeOverlay(n, o.OverlayTransform)
		order = append(order, n)
	}

	for id := range c.imagePlanes {
		if _, ok := seen[id]; !ok {
			c.dropImagePlane(id)
		}
	}
	c.masks.Prune(seen)
	c.images.Prune(urls)
	c.imageOrder = order
	c.relayout()
	return errors.Join(errs...)
}

// SyncTexts makes the text planes match texts. Labels are rasterized only
// when their styling changes; a label with nothing to draw has no plane.
func (c *Composer) SyncTexts(texts []TextOverlay) {
	order := make([]*Node, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))

	for _, o := range texts {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}

		style := o.TextStyle
		entry := c.texts.GetOrCreate(o.ID, style.Signature(), func() (image.Image, bool) {
			bm, ok := RasterizeText(style, c.fonts)
			if !ok {
				return nil, false
			}
			return bm.Image, true
		})
		if entry == nil {
			c.dropTextPlane(o.ID)
			continue
		}

		tp, ok := c.textPlanes[o.ID]
		if !ok {
			tp = &textPlane{node: NewOverlayNode(OverlayText, o.ID, nil, newTextPlaneMaterial(o.ID))}
			tp.node.RenderOrder = textPlaneRenderOrder
			c.textPlanes[o.ID] = tp
		}
		if tp.generation != entry.Generation || tp.node.Mesh.Geometry == nil {
			w, h := textPlaneSize(entry.Aspect())
			tp.node.Mesh.Geometry = NewQuadGeometry(w, h)
			setTextureRef(&tp.node.Mesh.Material.Map, entry.Texture, "text:"+o.ID)
			tp.generation = entry.Generation
		}
		placeOverlay(tp.node, o.OverlayTransform)
		order = append(order, tp.node)
	}

	for id := range c.textPlanes {
		if _, ok := seen[id]; !ok {
			c.dropTextPlane(id)
		}
	}
	c.texts.Prune(seen)
	c.textOrder = order
	c.relayout()
}

// Dispose removes every plane and the model and deallocates every texture
// the composer owns. Detail textures belong to the caller.
func (c *Composer) Dispose() {
	for id := range c.imagePlanes {
		c.dropImagePlane(id)
	}
	for id := range c.textPlanes {
		c.dropTextPlane(id)
	}
	c.imageOrder, c.textOrder = nil, nil
	c.scene.OverlayLayer().RemoveChildren()
	if prev := c.scene.SetModel(nil); prev != nil {
		c.adapter.Forget(prev)
		prev.Dispose()
	}
	c.masks.DisposeAll()
	c.texts.DisposeAll()
	c.images.DisposeAll()
}

// Stats reports composer resources.
func (c *Composer) Stats() ComposerStats {
	hits, misses := c.texts.Stats()
	return ComposerStats{
		ImagePlanes:      len(c.imagePlanes),
		TextPlanes:       len(c.textPlanes),
		MaskEntries:      c.masks.Len(),
		TextEntries:      c.texts.Len(),
		TextHits:         hits,
		TextMisses:       misses,
		LoadedImages:     c.images.Len(),
		AdaptedMaterials: c.adapter.AdaptedCount(),
	}
}

// ImagePlane returns the plane for an image overlay.
func (c *Composer) ImagePlane(id string) (*Node, bool) {
	n, ok := c.imagePlanes[id]
	return n, ok
}

// TextPlane returns the plane for a text overlay.
func (c *Composer) TextPlane(id string) (*Node, bool) {
	tp, ok := c.textPlanes[id]
	if !ok {
		return nil, false
	}
	return tp.node, true
}

// relayout re-attaches planes under the overlay layer: images first, then
// texts, each in list order.
func (c *Composer) relayout() {
	layer := c.scene.OverlayLayer()
	layer.RemoveChildren()
	for _, n := range c.imageOrder {
		layer.AddChild(n)
	}
	for _, n := range c.textOrder {
		layer.AddChild(n)
	}
}

func (c *Composer) dropImagePlane(id string) {
	n, ok := c.imagePlanes[id]
	if !ok {
		return
	}
	delete(c.imagePlanes, id)
	c.imageOrder = removeNode(c.imageOrder, n)
	n.Dispose()
}

func (c *Composer) dropTextPlane(id string) {
	tp, ok := c.textPlanes[id]
	if !ok {
		return
	}
	delete(c.textPlanes, id)
	c.textOrder = removeNode(c.textOrder, tp.node)
	tp.node.Dispose()
}

func removeNode(list []*Node, n *Node) []*Node {
	for i, c := range list {
		if c == n {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func newImagePlaneMaterial(id string) *Material {
	m := NewStandardMaterial("image:" + id)
	m.Transparent = true
	m.Roughness = imagePlaneRoughness
	m.Metalness = 0
	m.PolygonOffset = true
	m.PolygonOffsetFactor = imagePlanePolygonOffset
	return m
}

func newTextPlaneMaterial(id string) *Material {
	m := NewBasicMaterial("text:" + id)
	m.Transparent = true
	m.AlphaTest = textPlaneAlphaTest
	m.DepthTest = false
	m.DepthWrite = false
	m.Side = SideDouble
	m.PolygonOffset = true
	m.PolygonOffsetFactor = textPlanePolygonOffset
	return m
}

// textPlaneSize returns the plane extent for a bitmap aspect ratio. Unusable
// sizes fall back to 1.
func textPlaneSize(aspect float64) (w, h float64) {
	w = textPlaneWidth
	h = w / aspect
	if !isFinite(h) || h <= 0 {
		h = 1
	}
	return w, h
}

// setTextureRef points *ref at tex, reusing the ref when it exists.
func setTextureRef(ref **TextureRef, tex Texture, source string) {
	if *ref == nil {
		*ref = &TextureRef{Repeat: Vec2{1, 1}}
	}
	if (*ref).Texture != tex {
		(*ref).Texture = tex
		(*ref).Source = source
	}
}

// placeOverlay copies an overlay transform onto its plane. Rotation is in
// degrees; non-finite components are treated as zero.
func placeOverlay(n *Node, t OverlayTransform) {
	s := t.uniformScale()
	n.Position = finiteVec(t.Position)
	n.Rotation = finiteVec(t.Rotation).DegToRad()
	n.Scale = Vec3{s, s, s}
	n.MarkDirty()
}

func finiteVec(v Vec3) Vec3 {
	f := func(x float64) float64 {
		if isFinite(x) {
			return x
		}
		return 0
	}
	return Vec3{f(v.X), f(v.Y), f(v.Z)}
}
