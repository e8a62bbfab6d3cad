package plaque

import (
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	hexInputPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)
	rgbInputPattern = regexp.MustCompile(`-?\d+`)
	rgbFuncPattern  = regexp.MustCompile(`^rgba?\(([^)]*)\)$`)
)

// NormalizeHex validates a hex color entry of exactly six hex digits with an
// optional leading '#'. It returns the lower-case "#rrggbb" form.
func NormalizeHex(input string) (string, bool) {
	m := hexInputPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", false
	}
	return "#" + strings.ToLower(m[1]), true
}

// NormalizeRGB validates an "r, g, b" entry. The first three integers found
// are used and each must lie in [0, 255]; negative or longer numbers are
// rejected rather than split.
func NormalizeRGB(input string) (string, bool) {
	parts := rgbInputPattern.FindAllString(input, 3)
	if len(parts) < 3 {
		return "", false
	}
	var ch [3]float64
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return "", false
		}
		ch[i] = float64(v) / 255
	}
	return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}.Hex(), true
}

// HSVHex converts a hue in degrees and saturation/value in [0, 1] to "#rrggbb".
func HSVHex(h, s, v float64) string {
	return colorful.Hsv(h, clamp01(s), clamp01(v)).Clamped().Hex()
}

// HexToRGB returns the 0-255 channels of a "#rrggbb" color.
func HexToRGB(hex string) (r, g, b uint8, ok bool) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0, 0, 0, false
	}
	r, g, b = c.RGB255()
	return r, g, b, true
}

// ParseColor parses a CSS-style color string. Supported forms are "#rgb",
// "#rrggbb", "#rrggbbaa", "rgb(r, g, b)", "rgba(r, g, b, a)", "transparent",
// "white" and "black". ok is false when the string cannot be parsed.
func ParseColor(s string) (Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return Color{}, false
	case "transparent":
		return ColorTransparent, true
	case "white":
		return ColorWhite, true
	case "black":
		return ColorBlack, true
	}
	if m := rgbFuncPattern.FindStringSubmatch(s); m != nil {
		return parseRGBFunc(m[1])
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, false
	}
	switch len(s) {
	case 4, 7:
		c, err := colorful.Hex(s)
		if err != nil {
			return Color{}, false
		}
		return Color{c.R, c.G, c.B, 1}, true
	case 9:
		c, err := colorful.Hex(s[:7])
		if err != nil {
			return Color{}, false
		}
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, false
		}
		return Color{c.R, c.G, c.B, float64(a) / 255}, true
	}
	return Color{}, false
}

func parseRGBFunc(args string) (Color, bool) {
	fields := strings.Split(args, ",")
	if len(fields) != 3 && len(fields) != 4 {
		return Color{}, false
	}
	var out [4]float64
	out[3] = 1
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil || !isFinite(v) {
			return Color{}, false
		}
		if i < 3 {
			out[i] = clamp01(v / 255)
		} else {
			out[i] = clamp01(v)
		}
	}
	return Color{out[0], out[1], out[2], out[3]}, true
}

// MustParseColor is ParseColor with a fallback for unparseable input.
func MustParseColor(s string, fallback Color) Color {
	if c, ok := ParseColor(s); ok {
		return c
	}
	return fallback
}

// Hex formats c as "#rrggbb", ignoring alpha.
func (c Color) Hex() string {
	return colorful.Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}.Hex()
}

// NRGBA converts c to a straight-alpha 8-bit color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{
		R: uint8(clamp01(c.R)*255 + 0.5),
		G: uint8(clamp01(c.G)*255 + 0.5),
		B: uint8(clamp01(c.B)*255 + 0.5),
		A: uint8(clamp01(c.A)*255 + 0.5),
	}
}
