package plaque

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"github.com/skip2/go-qrcode"
)

// QR defaults.
const (
	DefaultQRSize             = 520
	DefaultQRLogoSize         = 22
	DefaultQRLogoCornerRadius = 12

	qrMarginModules = 2
	qrLogoPadding   = 0.08
)

// QROptions configures GenerateQR. Zero values take the defaults above.
type QROptions struct {
	// Size is the output edge length in pixels.
	Size int
	// LogoSize is the logo edge as a percentage of Size, 10 to 40.
	LogoSize float64
	// LogoCornerRadius rounds the logo backing and clip, in pixels, up to
	// 40. Negative values give square corners.
	LogoCornerRadius float64
	// Logo is drawn centered over the code when non-nil.
	Logo image.Image
}

func (o QROptions) withDefaults() QROptions {
	if o.Size <= 0 {
		o.Size = DefaultQRSize
	}
	if o.LogoSize <= 0 || !isFinite(o.LogoSize) {
		o.LogoSize = DefaultQRLogoSize
	}
	o.LogoSize = min(max(o.LogoSize, 10), 40)
	switch {
	case o.LogoCornerRadius == 0 || !isFinite(o.LogoCornerRadius):
		o.LogoCornerRadius = DefaultQRLogoCornerRadius
	case o.LogoCornerRadius < 0:
		o.LogoCornerRadius = 0
	}
	o.LogoCornerRadius = min(o.LogoCornerRadius, 40)
	return o
}

// GenerateQR renders content as a square QR code with the highest error
// correction level, so a centered logo covering up to 40% of the edge still
// scans. Blank content encodes a single space.
func GenerateQR(content string, opts QROptions) (*image.NRGBA, error) {
	opts = opts.withDefaults()
	content = strings.TrimSpace(content)
	if content == "" {
		content = " "
	}
	q, err := qrcode.New(content, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	q.DisableBorder = true
	bits := q.Bitmap()

	size := opts.Size
	dc := gg.NewContext(size, size)
	defer dc.Close()
	dc.ClearWithColor(gg.RGBA{R: 1, G: 1, B: 1, A: 1})

	modules := len(bits) + 2*qrMarginModules
	cell := float64(size) / float64(modules)
	edge := func(i int) float64 { return math.Round(float64(i+qrMarginModules) * cell) }
	dc.SetRGBA(0, 0, 0, 1)
	for y, row := range bits {
		for x, dark := range row {
			if dark {
				dc.DrawRectangle(edge(x), edge(y), edge(x+1)-edge(x), edge(y+1)-edge(y))
			}
		}
	}
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("qr draw: %w", err)
	}

	if opts.Logo != nil {
		dim := float64(size) * opts.LogoSize / 100
		x := (float64(size) - dim) / 2
		pad := dim * qrLogoPadding
		dc.SetRGBA(1, 1, 1, 1)
		roundedRectPath(dc, x-pad, x-pad, dim+2*pad, dim+2*pad, opts.LogoCornerRadius)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("qr logo backing: %w", err)
		}
	}
	_ = dc.FlushGPU()
	out := imaging.Clone(dc.Image())

	if opts.Logo != nil {
		drawQRLogo(out, opts)
	}
	return out, nil
}

// drawQRLogo scales the logo to its square slot and composites it through a
// rounded-corner mask.
func drawQRLogo(dst *image.NRGBA, opts QROptions) {
	dim := int(math.Round(float64(opts.Size) * opts.LogoSize / 100))
	if dim <= 0 {
		return
	}
	logo := imaging.Resize(opts.Logo, dim, dim, imaging.Lanczos)
	off := (opts.Size - dim) / 2
	rect := image.Rect(off, off, off+dim, off+dim)
	draw.DrawMask(dst, rect, logo, image.Point{}, roundedAlpha(dim, opts.LogoCornerRadius), image.Point{}, draw.Over)
}

// roundedAlpha rasterizes a dim×dim rounded rectangle as an alpha mask.
func roundedAlpha(dim int, radius float64) *image.Alpha {
	dc := gg.NewContext(dim, dim)
	defer dc.Close()
	dc.ClearWithColor(gg.RGBA{A: 1})
	dc.SetRGBA(1, 1, 1, 1)
	roundedRectPath(dc, 0, 0, float64(dim), float64(dim), radius)
	if err := dc.Fill(); err != nil {
		Logger().Warn("plaque: qr logo mask failed", "err", err)
	}
	_ = dc.FlushGPU()
	g := toGray(dc.Image())
	return &image.Alpha{Pix: g.Pix, Stride: g.Stride, Rect: g.Rect}
}

// QRDataURL renders content with GenerateQR and encodes it as a PNG data URL
// suitable for an image overlay.
func QRDataURL(content string, opts QROptions) (string, error) {
	img, err := GenerateQR(content, opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("qr png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// NewQROverlay returns an image overlay showing a QR code for content.
func NewQROverlay(content string, opts QROptions) (ImageOverlay, error) {
	url, err := QRDataURL(content, opts)
	if err != nil {
		return ImageOverlay{}, err
	}
	return NewImageOverlay("QR Code", url), nil
}
