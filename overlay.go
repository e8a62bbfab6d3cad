package plaque

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OverlayTransform places an overlay plane in model space. Rotation is in
// degrees; the composer converts to radians.
type OverlayTransform struct {
	Position Vec3    `json:"position"`
	Rotation Vec3    `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// uniformScale returns Scale, or 1 when Scale is unset or unusable.
func (t OverlayTransform) uniformScale() float64 {
	if t.Scale <= 0 || !isFinite(t.Scale) {
		return 1
	}
	return t.Scale
}

// ImageOverlay is a picture (or QR code) decal on the model. ID is stable for
// the overlay's lifetime and keys its alpha-mask texture.
type ImageOverlay struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	OverlayTransform
	// CornerRadius is in editor units, 0 to 50.
	CornerRadius float64 `json:"cornerRadius"`
}

// NewImageOverlay returns an image overlay with a fresh ID at the origin.
func NewImageOverlay(name, url string) ImageOverlay {
	return ImageOverlay{
		ID:               uuid.NewString(),
		Name:             name,
		URL:              url,
		OverlayTransform: OverlayTransform{Scale: 1},
	}
}

// MaskRadius returns the normalized mask radius in [0, 1].
func (o ImageOverlay) MaskRadius() float64 {
	if !isFinite(o.CornerRadius) {
		return 0
	}
	return clamp01(o.CornerRadius / 50)
}

// MaskSignature is the cache key for the overlay's alpha mask. Only the corner
// radius affects mask pixels.
func (o ImageOverlay) MaskSignature() string {
	return strconv.FormatFloat(o.CornerRadius, 'g', -1, 64)
}

// TextOverlay is a rasterized text label on the model.
type TextOverlay struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	OverlayTransform
	TextStyle
}

// NewTextOverlay returns a text overlay with a fresh ID and default styling.
func NewTextOverlay(name, content string) TextOverlay {
	return TextOverlay{
		ID:               uuid.NewString(),
		Name:             name,
		OverlayTransform: OverlayTransform{Scale: 1},
		TextStyle:        TextStyle{Content: content},
	}
}

// FontWeight is a CSS font weight. It decodes from either a number or a
// string such as "600", "bold" or "normal".
type FontWeight float64

// UnmarshalJSON implements json.Unmarshaler.
func (w *FontWeight) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*w = FontWeight(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("font weight: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bold":
		*w = 700
	case "normal", "":
		*w = 400
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*w = FontWeight(math.NaN())
			return nil
		}
		*w = FontWeight(f)
	}
	return nil
}

// MarshalJSON encodes NaN weights as null so signatures stay valid JSON.
func (w FontWeight) MarshalJSON() ([]byte, error) {
	if !isFinite(float64(w)) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(w), 'g', -1, 64), nil
}

// TextStyle is the typography descriptor of a text overlay. Pointer and empty
// string fields mean "use the default"; see NormalizeTextStyle.
type TextStyle struct {
	Content             string      `json:"content"`
	Color               string      `json:"color,omitempty"`
	FontSize            *float64    `json:"fontSize,omitempty"`
	FontFamily          string      `json:"fontFamily,omitempty"`
	FontWeight          *FontWeight `json:"fontWeight,omitempty"`
	IsBold              bool        `json:"isBold,omitempty"`
	IsItalic            bool        `json:"isItalic,omitempty"`
	Alignment           Alignment   `json:"alignment,omitempty"`
	TextDecoration      Decoration  `json:"textDecoration,omitempty"`
	BackgroundColor     string      `json:"backgroundColor,omitempty"`
	TextBackgroundColor string      `json:"textBackgroundColor,omitempty"`
	HighlightColor      string      `json:"highlightColor,omitempty"`
	EnableHighlight     bool        `json:"enableHighlight,omitempty"`
	LineHeight          *float64    `json:"lineHeight,omitempty"`
	LetterSpacing       *float64    `json:"letterSpacing,omitempty"`
	TextShadowColor     string      `json:"textShadowColor,omitempty"`
	TextShadowBlur      *float64    `json:"textShadowBlur,omitempty"`
	TextShadowOffsetX   *float64    `json:"textShadowOffsetX,omitempty"`
	TextShadowOffsetY   *float64    `json:"textShadowOffsetY,omitempty"`
	TextTransform       Transform   `json:"textTransform,omitempty"`
	CaseControl         CaseControl `json:"caseControl,omitempty"`
	Padding             *float64    `json:"padding,omitempty"`
	MaxWidth            *float64    `json:"maxWidth,omitempty"`
	MaxHeight           *float64    `json:"maxHeight,omitempty"`
	TextOverflow        Overflow    `json:"textOverflow,omitempty"`
	ParagraphSpacing    *float64    `json:"paragraphSpacing,omitempty"`
	VerticalAlign       VAlign      `json:"verticalAlign,omitempty"`
}

// Signature returns the deterministic serialization of every field that
// affects the rasterized bitmap. Styles that normalize to the same values
// share a signature.
func (s TextStyle) Signature() string {
	b, err := json.Marshal(NormalizeTextStyle(s))
	if err != nil {
		// Unreachable: the resolved style holds only finite numbers and strings.
		return s.Content
	}
	return string(b)
}

// F returns a pointer to v, for filling optional style fields.
func F(v float64) *float64 { return &v }

// W returns a pointer to a font weight.
func W(v float64) *FontWeight {
	w := FontWeight(v)
	return &w
}

// MaterialOverrides maps a mesh key (see MeshKey) to a "#rrggbb" color.
type MaterialOverrides map[string]string

// Clone returns an independent copy of m.
func (m MaterialOverrides) Clone() MaterialOverrides {
	out := make(MaterialOverrides, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DefaultBackgroundColor is the scene background of a fresh editor.
const DefaultBackgroundColor = "#252525"

// Template is a persisted, named snapshot of an editing session.
type Template struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	ModelURL          string            `json:"modelUrl"`
	PreviewURL        string            `json:"previewUrl,omitempty"`
	BackgroundColor   string            `json:"backgroundColor"`
	Images            []ImageOverlay    `json:"images"`
	Texts             []TextOverlay     `json:"texts"`
	MaterialOverrides MaterialOverrides `json:"materialOverrides"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy of t.
func (t Template) Clone() Template {
	out := t
	out.Images = append([]ImageOverlay(nil), t.Images...)
	out.Texts = append([]TextOverlay(nil), t.Texts...)
	out.MaterialOverrides = t.MaterialOverrides.Clone()
	return out
}
