package plaque

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// FontFamily holds the parsed sources of one typeface. Missing variants fall
// back to Regular.
type FontFamily struct {
	Regular      *text.FontSource
	Medium       *text.FontSource
	Bold         *text.FontSource
	Italic       *text.FontSource
	MediumItalic *text.FontSource
	BoldItalic   *text.FontSource
}

// pick selects a variant for a CSS weight and italic flag.
func (f *FontFamily) pick(weight float64, italic bool) *text.FontSource {
	var src *text.FontSource
	switch {
	case weight >= 600 && italic:
		src = f.BoldItalic
	case weight >= 600:
		src = f.Bold
	case weight >= 500 && italic:
		src = f.MediumItalic
	case weight >= 500:
		src = f.Medium
	case italic:
		src = f.Italic
	}
	if src == nil && italic {
		src = f.Italic
	}
	if src == nil {
		src = f.Regular
	}
	return src
}

// FontRegistry maps family names to parsed font sources. Lookups are case
// insensitive; unknown families use the fallback family. Safe for concurrent
// use.
type FontRegistry struct {
	mu       sync.RWMutex
	families map[string]*FontFamily
	fallback *FontFamily
}

var (
	defaultFontsOnce sync.Once
	defaultFonts     *FontRegistry
	defaultFontsErr  error
)

// DefaultFonts returns a shared registry holding the Go font family, which
// also serves as the fallback for unknown families.
func DefaultFonts() (*FontRegistry, error) {
	defaultFontsOnce.Do(func() {
		defaultFonts, defaultFontsErr = NewFontRegistry()
	})
	return defaultFonts, defaultFontsErr
}

// NewFontRegistry parses the embedded Go fonts into a new registry.
func NewFontRegistry() (*FontRegistry, error) {
	goFamily := &FontFamily{}
	for _, v := range []struct {
		dst  **text.FontSource
		name string
		data []byte
	}{
		{&goFamily.Regular, "regular", goregular.TTF},
		{&goFamily.Medium, "medium", gomedium.TTF},
		{&goFamily.Bold, "bold", gobold.TTF},
		{&goFamily.Italic, "italic", goitalic.TTF},
		{&goFamily.MediumItalic, "medium italic", gomediumitalic.TTF},
		{&goFamily.BoldItalic, "bold italic", gobolditalic.TTF},
	} {
		src, err := text.NewFontSource(v.data)
		if err != nil {
			return nil, fmt.Errorf("plaque: parse go %s font: %w", v.name, err)
		}
		*v.dst = src
	}
	r := &FontRegistry{
		families: make(map[string]*FontFamily),
		fallback: goFamily,
	}
	r.families["go"] = goFamily
	r.families[DefaultFontFamily] = goFamily
	return r, nil
}

// Register adds or replaces a family. Regular must be set.
func (r *FontRegistry) Register(name string, family *FontFamily) error {
	if family == nil || family.Regular == nil {
		return fmt.Errorf("plaque: font family %q has no regular face", name)
	}
	r.mu.Lock()
	r.families[strings.ToLower(strings.TrimSpace(name))] = family
	r.mu.Unlock()
	return nil
}

// RegisterTTF parses data and registers it as the regular face of name.
func (r *FontRegistry) RegisterTTF(name string, data []byte) error {
	src, err := text.NewFontSource(data)
	if err != nil {
		return fmt.Errorf("plaque: parse font %q: %w", name, err)
	}
	return r.Register(name, &FontFamily{Regular: src})
}

// Face resolves a face for a CSS-style family list ("Inter, sans-serif"),
// weight, italic flag and pixel size.
func (r *FontRegistry) Face(family string, weight float64, italic bool, size float64) text.Face {
	return r.lookup(family).pick(weight, italic).Face(size)
}

func (r *FontRegistry) lookup(family string) *FontFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range strings.Split(family, ",") {
		name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
		if f, ok := r.families[name]; ok {
			return f
		}
	}
	return r.fallback
}
