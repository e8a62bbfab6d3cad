package plaque

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Texture is a GPU resource owned by a TextureCache or ImageLoader.
// *ebiten.Image satisfies it.
type Texture interface {
	Deallocate()
}

// TextureUploader turns a CPU bitmap into a Texture.
type TextureUploader func(img image.Image) Texture

// EbitenUploader uploads img as a new *ebiten.Image.
func EbitenUploader(img image.Image) Texture {
	return ebiten.NewImageFromImage(img)
}

// SynthesizeFunc produces the bitmap for a cache miss. ok false means there
// is nothing to draw for the owner.
type SynthesizeFunc func() (img image.Image, ok bool)

// CacheEntry is one synthesized texture. Consumers borrow Texture for the
// duration of a render and never deallocate it.
type CacheEntry struct {
	OwnerID   string
	Signature string
	Texture   Texture
	Width     int
	Height    int
	// Generation increases with every synthesis, so holders of an older
	// entry can tell it was replaced.
	Generation uint64
}

// Aspect returns Width/Height, or 1 when either is zero.
func (e *CacheEntry) Aspect() float64 {
	if e == nil || e.Width <= 0 || e.Height <= 0 {
		return 1
	}
	return float64(e.Width) / float64(e.Height)
}

// TextureCache maps an owner ID plus a content signature to a synthesized
// texture. It holds at most one entry per owner and is the only component
// that deallocates those textures. Not safe for concurrent use; call it from
// the update goroutine.
type TextureCache struct {
	name       string
	upload     TextureUploader
	entries    map[string]*CacheEntry
	generation uint64

	hits, misses int
}

// NewTextureCache creates an empty cache. A nil upload uses EbitenUploader.
// name labels log records.
func NewTextureCache(name string, upload TextureUploader) *TextureCache {
	if upload == nil {
		upload = EbitenUploader
	}
	return &TextureCache{
		name:    name,
		upload:  upload,
		entries: make(map[string]*CacheEntry),
	}
}

// GetOrCreate returns the entry for ownerID when its signature matches.
// Otherwise it deallocates any prior entry for ownerID, calls synth and
// stores the result. It returns nil when synth has nothing to draw.
func (c *TextureCache) GetOrCreate(ownerID, signature string, synth SynthesizeFunc) *CacheEntry {
	if e, ok := c.entries[ownerID]; ok {
		if e.Signature == signature {
			c.hits++
			return e
		}
		c.remove(ownerID)
	}
	c.misses++
	img, ok := synth()
	if !ok || img == nil {
		return nil
	}
	tex := c.upload(img)
	if tex == nil {
		Logger().Warn("plaque: texture upload returned nil", "cache", c.name, "owner", ownerID)
		return nil
	}
	c.generation++
	b := img.Bounds()
	e := &CacheEntry{
		OwnerID:    ownerID,
		Signature:  signature,
		Texture:    tex,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Generation: c.generation,
	}
	c.entries[ownerID] = e
	Logger().Debug("plaque: texture synthesized", "cache", c.name, "owner", ownerID, "w", e.Width, "h", e.Height)
	return e
}

// Entry returns the live entry for ownerID.
func (c *TextureCache) Entry(ownerID string) (*CacheEntry, bool) {
	e, ok := c.entries[ownerID]
	return e, ok
}

// Remove deallocates and drops the entry for ownerID. It reports whether an
// entry existed.
func (c *TextureCache) Remove(ownerID string) bool {
	if _, ok := c.entries[ownerID]; !ok {
		return false
	}
	c.remove(ownerID)
	return true
}

func (c *TextureCache) remove(ownerID string) {
	e := c.entries[ownerID]
	delete(c.entries, ownerID)
	if e.Texture != nil {
		e.Texture.Deallocate()
		e.Texture = nil
	}
}

// Prune deallocates every entry whose owner is not in live and returns how
// many were removed.
func (c *TextureCache) Prune(live map[string]struct{}) int {
	n := 0
	for id := range c.entries {
		if _, ok := live[id]; !ok {
			c.remove(id)
			n++
		}
	}
	if n > 0 {
		Logger().Debug("plaque: texture cache pruned", "cache", c.name, "removed", n, "remaining", len(c.entries))
	}
	return n
}

// DisposeAll deallocates every entry.
func (c *TextureCache) DisposeAll() {
	for id := range c.entries {
		c.remove(id)
	}
}

// Len returns the number of live entries.
func (c *TextureCache) Len() int {
	return len(c.entries)
}

// Stats returns the number of cache hits and misses so far.
func (c *TextureCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// LiveSet builds a set of owner IDs for Prune.
func LiveSet[T any](items []T, id func(T) string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[id(it)] = struct{}{}
	}
	return set
}
