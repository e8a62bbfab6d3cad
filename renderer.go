package plaque

import (
	"errors"
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// maxRenderPixels bounds the backing store of an offscreen render.
const maxRenderPixels = 8192

// --- Render texture pool ---

// renderTexturePool manages reusable offscreen ebiten.Images keyed by
// power-of-two dimensions. After warmup, Acquire/Release are zero-alloc.
type renderTexturePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image with at least (w, h) pixels.
// Dimensions are rounded up to the next power of two.
func (p *renderTexturePool) Acquire(w, h int) *ebiten.Image {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, pw, ph),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. The image is cleared on
// next Acquire, not here.
func (p *renderTexturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// Dispose deallocates every pooled image.
func (p *renderTexturePool) Dispose() {
	for k, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.buckets, k)
	}
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

// --- Offscreen renderer ---

// OffscreenRenderer draws a Scene into a pooled offscreen image whose size
// is the logical size times the pixel ratio. It implements Renderer. Render
// and Capture need a running ebiten game loop.
type OffscreenRenderer struct {
	scene  *Scene
	width  int
	height int
	ratio  float64
	device float64

	pool    renderTexturePool
	backing *ebiten.Image
	target  *ebiten.Image
}

// NewOffscreenRenderer creates a renderer with a logical size of w×h and a
// device pixel ratio of device (values <= 0 mean 1).
func NewOffscreenRenderer(scene *Scene, w, h int, device float64) *OffscreenRenderer {
	if device <= 0 || !isFinite(device) {
		device = 1
	}
	return &OffscreenRenderer{scene: scene, width: max(w, 1), height: max(h, 1), ratio: device, device: device}
}

// PixelRatio returns the current pixel ratio.
func (r *OffscreenRenderer) PixelRatio() float64 { return r.ratio }

// DevicePixelRatio returns the display's native pixel ratio.
func (r *OffscreenRenderer) DevicePixelRatio() float64 { return r.device }

// SetPixelRatio changes the pixel ratio used by the next Render. Unusable
// values are ignored.
func (r *OffscreenRenderer) SetPixelRatio(ratio float64) {
	if ratio > 0 && isFinite(ratio) {
		r.ratio = ratio
	}
}

// SetSize changes the logical size.
func (r *OffscreenRenderer) SetSize(w, h int) {
	r.width, r.height = max(w, 1), max(h, 1)
}

// PixelSize returns the physical size of the next Render.
func (r *OffscreenRenderer) PixelSize() (w, h int) {
	w = int(math.Round(float64(r.width) * r.ratio))
	h = int(math.Round(float64(r.height) * r.ratio))
	return min(max(w, 1), maxRenderPixels), min(max(h, 1), maxRenderPixels)
}

// Render draws the scene at the current pixel ratio.
func (r *OffscreenRenderer) Render() error {
	if r.scene == nil {
		return errors.New("plaque: renderer has no scene")
	}
	w, h := r.PixelSize()
	if r.target == nil || r.target.Bounds().Dx() != w || r.target.Bounds().Dy() != h {
		r.pool.Release(r.backing)
		r.backing = r.pool.Acquire(w, h)
		r.target = r.backing.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
	}
	r.scene.Draw(r.target)
	return nil
}

// Image returns the last rendered frame, or nil.
func (r *OffscreenRenderer) Image() *ebiten.Image {
	return r.target
}

// Capture reads back the last rendered frame as a straight-alpha image.
func (r *OffscreenRenderer) Capture() (image.Image, error) {
	if r.target == nil {
		return nil, errors.New("plaque: nothing rendered")
	}
	b := r.target.Bounds()
	pixels := make([]byte, 4*b.Dx()*b.Dy())
	r.target.ReadPixels(pixels)
	return unpremultiply(pixels, b.Dx(), b.Dy()), nil
}

// Dispose releases every offscreen image.
func (r *OffscreenRenderer) Dispose() {
	r.pool.Release(r.backing)
	r.backing, r.target = nil, nil
	r.pool.Dispose()
}
