package plaque

import (
	"math"
	"testing"
)

// --- Hex entry ---

func TestNormalizeHex(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"FFAA00", "#ffaa00", true},
		{"#ffaa00", "#ffaa00", true},
		{"  #1A2b3C ", "#1a2b3c", true},
		{"ZZZZZZ", "", false},
		{"#12345", "", false},
		{"#1234567", "", false},
		{"", "", false},
		{"##ffaa00", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeHex(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeHex(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// --- RGB entry ---

func TestNormalizeRGB(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"255, 170, 0", "#ffaa00", true},
		{"rgb(0 0 0)", "#000000", true},
		{"10,20,30,40", "#0a141e", true},
		{"256, 0, 0", "", false},
		{"1000, 2, 3", "", false},
		{"-5, 10, 20", "", false},
		{"99999999999999999999, 0, 0", "", false},
		{"12, 34", "", false},
		{"red", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeRGB(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeRGB(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHSVHex(t *testing.T) {
	tests := []struct {
		h, s, v float64
		want    string
	}{
		{0, 1, 1, "#ff0000"},
		{120, 1, 1, "#00ff00"},
		{240, 1, 1, "#0000ff"},
		{0, 0, 1, "#ffffff"},
		{0, 0, 0, "#000000"},
		{0, 2, 1, "#ff0000"},
	}
	for _, tt := range tests {
		if got := HSVHex(tt.h, tt.s, tt.v); got != tt.want {
			t.Errorf("HSVHex(%v, %v, %v) = %q, want %q", tt.h, tt.s, tt.v, got, tt.want)
		}
	}
}

func TestHexToRGB(t *testing.T) {
	r, g, b, ok := HexToRGB("#ffaa00")
	if !ok || r != 255 || g != 170 || b != 0 {
		t.Errorf("HexToRGB = (%d, %d, %d, %v)", r, g, b, ok)
	}
	if _, _, _, ok := HexToRGB("nope"); ok {
		t.Error("HexToRGB should reject invalid input")
	}
}

// --- CSS colors ---

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"#ffffff", ColorWhite, true},
		{"#000", ColorBlack, true},
		{"transparent", ColorTransparent, true},
		{"WHITE", ColorWhite, true},
		{"#ff000080", Color{1, 0, 0, 128.0 / 255}, true},
		{"rgba(255, 0, 0, 0.5)", Color{1, 0, 0, 0.5}, true},
		{"rgb(0,255,0)", Color{0, 1, 0, 1}, true},
		{"", Color{}, false},
		{"#gggggg", Color{}, false},
		{"hotpink", Color{}, false},
		{"rgb(1,2)", Color{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseColor(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseColor(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !colorNear(got, tt.want) {
			t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestColorHexRoundTrip(t *testing.T) {
	c, ok := ParseColor("#3366cc")
	if !ok {
		t.Fatal("parse failed")
	}
	if got := c.Hex(); got != "#3366cc" {
		t.Errorf("Hex() = %q", got)
	}
	n := c.NRGBA()
	if n.R != 0x33 || n.G != 0x66 || n.B != 0xcc || n.A != 255 {
		t.Errorf("NRGBA() = %+v", n)
	}
}

func colorNear(a, b Color) bool {
	const eps = 1e-3
	return math.Abs(a.R-b.R) < eps && math.Abs(a.G-b.G) < eps &&
		math.Abs(a.B-b.B) < eps && math.Abs(a.A-b.A) < eps
}
