package plaque

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func isDark(c color.NRGBA) bool  { return c.R < 64 && c.G < 64 && c.B < 64 }
func isWhite(c color.NRGBA) bool { return c.R > 240 && c.G > 240 && c.B > 240 }

// --- Generation ---

func TestGenerateQRDefaults(t *testing.T) {
	img, err := GenerateQR("https://your-link.com", QROptions{})
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != DefaultQRSize || b.Dy() != DefaultQRSize {
		t.Fatalf("size = %v, want %d square", b, DefaultQRSize)
	}
	if !isWhite(img.NRGBAAt(1, 1)) || !isWhite(img.NRGBAAt(DefaultQRSize-2, DefaultQRSize-2)) {
		t.Error("quiet zone should be white")
	}
}

func TestGenerateQRFinderPattern(t *testing.T) {
	img, err := GenerateQR("hello", QROptions{Size: 300})
	if err != nil {
		t.Fatal(err)
	}
	// Version 1 at level H is 21 modules; plus two margin modules per side.
	cell := 300.0 / 25
	at := int(2*cell + cell/2)
	if !isDark(img.NRGBAAt(at, at)) {
		t.Errorf("finder corner = %+v, want dark", img.NRGBAAt(at, at))
	}
	inner := int(3*cell + cell/2)
	if !isWhite(img.NRGBAAt(inner, inner)) {
		t.Errorf("finder ring = %+v, want white", img.NRGBAAt(inner, inner))
	}
}

func TestGenerateQRBlankContent(t *testing.T) {
	if _, err := GenerateQR("   ", QROptions{Size: 100}); err != nil {
		t.Fatalf("blank content should encode a space: %v", err)
	}
}

// --- Logo ---

func TestGenerateQRLogo(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	img, err := GenerateQR("https://your-link.com", QROptions{Logo: solidImage(8, 8, red)})
	if err != nil {
		t.Fatal(err)
	}
	c := img.NRGBAAt(DefaultQRSize/2, DefaultQRSize/2)
	if c.R < 240 || c.G > 16 || c.B > 16 {
		t.Errorf("center = %+v, want logo red", c)
	}

	logoSize := float64(DefaultQRLogoSize)
	dim := int(float64(DefaultQRSize) * logoSize / 100)
	off := (DefaultQRSize - dim) / 2
	if corner := img.NRGBAAt(off, off); !isWhite(corner) {
		t.Errorf("logo corner = %+v, want white backing outside the rounded clip", corner)
	}
	pad := int(float64(dim) * qrLogoPadding)
	if edge := img.NRGBAAt(DefaultQRSize/2, off-pad/2); !isWhite(edge) {
		t.Errorf("padding = %+v, want white", edge)
	}
}

func TestQROptionsClamp(t *testing.T) {
	tests := []struct {
		in        QROptions
		logo, rad float64
		size      int
	}{
		{QROptions{}, DefaultQRLogoSize, DefaultQRLogoCornerRadius, DefaultQRSize},
		{QROptions{Size: 64, LogoSize: 90, LogoCornerRadius: 100}, 40, 40, 64},
		{QROptions{LogoSize: 3, LogoCornerRadius: -1}, 10, 0, DefaultQRSize},
	}
	for _, tt := range tests {
		got := tt.in.withDefaults()
		if got.LogoSize != tt.logo || got.LogoCornerRadius != tt.rad || got.Size != tt.size {
			t.Errorf("withDefaults(%+v) = %+v", tt.in, got)
		}
	}
}

// --- Overlay ---

func TestNewQROverlay(t *testing.T) {
	o, err := NewQROverlay("plaque", QROptions{Size: 128})
	if err != nil {
		t.Fatal(err)
	}
	if o.Name != "QR Code" || o.ID == "" || o.Scale != 1 {
		t.Errorf("overlay = %+v", o)
	}
	if !strings.HasPrefix(o.URL, "data:image/png;base64,") {
		t.Fatalf("url prefix = %q", o.URL[:min(len(o.URL), 30)])
	}
	data, err := decodeDataURL(o.URL)
	if err != nil {
		t.Fatal(err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("decoded width = %d", img.Bounds().Dx())
	}
}
