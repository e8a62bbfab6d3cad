package plaque

import (
	"context"
	"encoding/base64"
	"math"
	"testing"
)

func newTestComposer(t *testing.T) (*Composer, *fakeUploader) {
	t.Helper()
	u := &fakeUploader{}
	c := NewComposer(NewScene(testViewport()), ComposerOptions{Upload: u.upload})
	return c, u
}

// pngDataURL returns a data URL for a w×h red PNG.
func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, w, h))
}

func imageOverlay(t *testing.T, id string, radius float64) ImageOverlay {
	t.Helper()
	o := NewImageOverlay(id, pngDataURL(t, 4, 4))
	o.ID = id
	o.CornerRadius = radius
	return o
}

func textOverlay(id, content string) TextOverlay {
	o := NewTextOverlay(id, content)
	o.ID = id
	return o
}

// --- Model ---

func TestComposerSetModel(t *testing.T) {
	c, _ := newTestComposer(t)
	root, front, _, _ := testModel(t)
	c.SetOverrides(MaterialOverrides{"FrontPanel": "#ff0000"})
	c.SetModel(root)

	if c.Scene().Model() != root {
		t.Fatal("model not attached")
	}
	if !c.Adapter().Initialized(root) {
		t.Error("model should be adapted")
	}
	if !IsAdapted(front.Mesh.Material) {
		t.Error("front material should be acrylic")
	}
	if !colorNear(front.Mesh.Material.Color, Color{1, 0, 0, 1}) {
		t.Errorf("override not applied: %+v", front.Mesh.Material.Color)
	}

	next := NewModelRoot("next")
	c.SetModel(next)
	if !root.IsDisposed() {
		t.Error("previous model should be disposed")
	}
	if c.Adapter().Initialized(root) {
		t.Error("previous model should be forgotten")
	}
	if c.Stats().AdaptedMaterials != 0 {
		t.Errorf("adapted = %d, want 0", c.Stats().AdaptedMaterials)
	}
}

func TestComposerSetOverrides(t *testing.T) {
	c, _ := newTestComposer(t)
	root, front, base, _ := testModel(t)
	c.SetModel(root)
	before := base.Mesh.Material.Color

	src := MaterialOverrides{"FrontPanel": "#00ff00"}
	if n := c.SetOverrides(src); n != 1 {
		t.Errorf("changed = %d, want 1", n)
	}
	src["FrontPanel"] = "#0000ff"
	if c.Overrides()["FrontPanel"] != "#00ff00" {
		t.Error("overrides should be copied")
	}
	if !colorNear(front.Mesh.Material.Color, Color{0, 1, 0, 1}) {
		t.Errorf("front color = %+v", front.Mesh.Material.Color)
	}
	if base.Mesh.Material.Color != before {
		t.Error("unmapped mesh changed color")
	}
}

// --- Images ---

func TestComposerSyncImages(t *testing.T) {
	c, _ := newTestComposer(t)
	a := imageOverlay(t, "a", 25)
	a.Position = Vec3{1, 2, 3}
	a.Rotation = Vec3{0, 90, 0}
	a.Scale = 2
	b := imageOverlay(t, "b", 0)

	if err := c.SyncImages(context.Background(), []ImageOverlay{a, b}); err != nil {
		t.Fatal(err)
	}
	n, ok := c.ImagePlane("a")
	if !ok {
		t.Fatal("no plane for a")
	}
	m := n.Mesh.Material
	if m.Map == nil || m.Map.Texture == nil || m.AlphaMap == nil || m.AlphaMap.Texture == nil {
		t.Fatal("plane should carry color and alpha maps")
	}
	if !m.Transparent || m.Roughness != 0.32 || m.Metalness != 0 || m.PolygonOffsetFactor != -1 {
		t.Errorf("material = %+v", m)
	}
	if !m.DepthTest {
		t.Error("image planes are depth tested")
	}
	if n.Position != (Vec3{1, 2, 3}) || n.Scale != (Vec3{2, 2, 2}) {
		t.Errorf("transform = %+v / %+v", n.Position, n.Scale)
	}
	if !approxEqual(n.Rotation.Y, math.Pi/2, 1e-12) {
		t.Errorf("rotation y = %v, want pi/2", n.Rotation.Y)
	}
	layer := c.Scene().OverlayLayer()
	if layer.NumChildren() != 2 || layer.ChildAt(0) != n {
		t.Error("planes should follow list order")
	}
	st := c.Stats()
	if st.ImagePlanes != 2 || st.MaskEntries != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestComposerImageMaskReuse(t *testing.T) {
	c, u := newTestComposer(t)
	a := imageOverlay(t, "a", 10)
	ctx := context.Background()
	if err := c.SyncImages(ctx, []ImageOverlay{a}); err != nil {
		t.Fatal(err)
	}
	made := len(u.made)

	a.Position = Vec3{0, 1, 0}
	if err := c.SyncImages(ctx, []ImageOverlay{a}); err != nil {
		t.Fatal(err)
	}
	if len(u.made) != made {
		t.Errorf("moving an overlay uploaded %d textures", len(u.made)-made)
	}

	n, _ := c.ImagePlane("a")
	oldMask := n.Mesh.Material.AlphaMap.Texture.(*fakeTexture)
	a.CornerRadius = 40
	if err := c.SyncImages(ctx, []ImageOverlay{a}); err != nil {
		t.Fatal(err)
	}
	if oldMask.deallocated != 1 {
		t.Error("old mask should be deallocated on radius change")
	}
	if n.Mesh.Material.AlphaMap.Texture == Texture(oldMask) {
		t.Error("plane should use the new mask")
	}
}

func TestComposerImageRemoval(t *testing.T) {
	c, u := newTestComposer(t)
	ctx := context.Background()
	a, b := imageOverlay(t, "a", 5), imageOverlay(t, "b", 5)
	b.URL = pngDataURL(t, 2, 2)
	if err := c.SyncImages(ctx, []ImageOverlay{a, b}); err != nil {
		t.Fatal(err)
	}
	nb, _ := c.ImagePlane("b")
	if err := c.SyncImages(ctx, []ImageOverlay{a}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.ImagePlane("b"); ok {
		t.Error("b plane should be gone")
	}
	if !nb.IsDisposed() {
		t.Error("b plane should be disposed")
	}
	st := c.Stats()
	if st.MaskEntries != 1 || st.LoadedImages != 1 {
		t.Errorf("stats = %+v", st)
	}
	live := 0
	for _, tex := range u.made {
		if tex.deallocated == 0 {
			live++
		}
	}
	if live != 2 {
		t.Errorf("live textures = %d, want 2 (a image + a mask)", live)
	}
}

func TestComposerImageLoadFailure(t *testing.T) {
	c, _ := newTestComposer(t)
	bad := ImageOverlay{ID: "bad", URL: "data:text/plain,hello"}
	good := imageOverlay(t, "good", 0)
	err := c.SyncImages(context.Background(), []ImageOverlay{bad, good})
	if err == nil {
		t.Fatal("expected error for undecodable image")
	}
	if _, ok := c.ImagePlane("bad"); ok {
		t.Error("failed image should have no plane")
	}
	if _, ok := c.ImagePlane("good"); !ok {
		t.Error("good image should still get a plane")
	}
}

// --- Texts ---

func TestComposerSyncTexts(t *testing.T) {
	c, u := newTestComposer(t)
	o := textOverlay("t", "Hello")
	o.Scale = math.NaN()
	c.SyncTexts([]TextOverlay{o})

	n, ok := c.TextPlane("t")
	if !ok {
		t.Fatal("no text plane")
	}
	m := n.Mesh.Material
	if m.Kind != MaterialBasic || m.DepthTest || m.DepthWrite || m.Side != SideDouble {
		t.Errorf("material = %+v", m)
	}
	if m.AlphaTest != 0.01 || m.PolygonOffsetFactor != -2 || n.RenderOrder != 5 {
		t.Errorf("alphaTest=%v offset=%v order=%d", m.AlphaTest, m.PolygonOffsetFactor, n.RenderOrder)
	}
	if n.Scale != (Vec3{1, 1, 1}) {
		t.Errorf("NaN scale should fall back to 1, got %+v", n.Scale)
	}
	entry, _ := c.texts.Entry("t")
	size := n.Mesh.Geometry.Bounds().Size()
	if !approxEqual(size[0], 1.2, 1e-9) || !approxEqual(size[1], 1.2/entry.Aspect(), 1e-9) {
		t.Errorf("plane size = %v, aspect %v", size, entry.Aspect())
	}

	made := len(u.made)
	o.Position = Vec3{0, 1, 0}
	c.SyncTexts([]TextOverlay{o})
	if len(u.made) != made {
		t.Error("moving a label should not re-rasterize")
	}
	if st := c.Stats(); st.TextHits != 1 || st.TextMisses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestComposerTextRestyle(t *testing.T) {
	c, u := newTestComposer(t)
	o := textOverlay("t", "Hello")
	c.SyncTexts([]TextOverlay{o})
	n, _ := c.TextPlane("t")
	geom := n.Mesh.Geometry

	o.Content = "Hello, world"
	c.SyncTexts([]TextOverlay{o})
	if u.made[0].deallocated != 1 {
		t.Error("old label texture should be deallocated")
	}
	if n.Mesh.Geometry == geom {
		t.Error("plane should be resized for the new bitmap")
	}
	if n.Mesh.Material.Map.Texture != Texture(u.made[1]) {
		t.Error("plane should show the new texture")
	}
}

func TestComposerBlankTextHasNoPlane(t *testing.T) {
	c, u := newTestComposer(t)
	o := textOverlay("t", "Hi")
	c.SyncTexts([]TextOverlay{o})
	o.Content = "   "
	c.SyncTexts([]TextOverlay{o})
	if _, ok := c.TextPlane("t"); ok {
		t.Error("blank label should have no plane")
	}
	if u.made[0].deallocated != 1 {
		t.Error("blank label should release its texture")
	}
	if c.Scene().OverlayLayer().NumChildren() != 0 {
		t.Error("overlay layer should be empty")
	}
}

func TestComposerOverlayOrder(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SyncTexts([]TextOverlay{textOverlay("t1", "a"), textOverlay("t2", "b")})
	if err := c.SyncImages(context.Background(), []ImageOverlay{imageOverlay(t, "i", 0)}); err != nil {
		t.Fatal(err)
	}
	layer := c.Scene().OverlayLayer()
	want := []string{"i", "t1", "t2"}
	if layer.NumChildren() != len(want) {
		t.Fatalf("children = %d, want %d", layer.NumChildren(), len(want))
	}
	for i, id := range want {
		if got := layer.ChildAt(i).OverlayID; got != id {
			t.Errorf("child[%d] = %q, want %q", i, got, id)
		}
	}
}

// --- Dispose ---

func TestComposerDispose(t *testing.T) {
	c, u := newTestComposer(t)
	root, _, _, _ := testModel(t)
	c.SetModel(root)
	c.SyncTexts([]TextOverlay{textOverlay("t", "Hi")})
	if err := c.SyncImages(context.Background(), []ImageOverlay{imageOverlay(t, "i", 10)}); err != nil {
		t.Fatal(err)
	}
	c.Dispose()
	for i, tex := range u.made {
		if tex.deallocated != 1 {
			t.Errorf("texture %d deallocated %d times, want 1", i, tex.deallocated)
		}
	}
	st := c.Stats()
	if st != (ComposerStats{TextMisses: 1}) {
		t.Errorf("stats after dispose = %+v", st)
	}
	if c.Scene().Model() != nil || c.Scene().OverlayLayer().NumChildren() != 0 {
		t.Error("scene should be empty")
	}
}
