package plaque

import (
	"image"

	"github.com/gogpu/gg"
)

// MaskSize is the edge length in pixels of rounded alpha masks.
const MaskSize = 256

// RasterizeRoundedMask draws a MaskSize square grayscale mask: white inside a
// rounded rectangle covering the canvas, black outside. radius is clamped to
// [0, 1]; 1 rounds each corner by half the canvas edge.
func RasterizeRoundedMask(radius float64) *image.Gray {
	if !isFinite(radius) {
		radius = 0
	}
	radius = clamp01(radius)
	const size = float64(MaskSize)
	r := radius * size / 2

	dc := gg.NewContext(MaskSize, MaskSize)
	defer dc.Close()
	dc.ClearWithColor(gg.RGBA{A: 1})
	dc.SetRGBA(1, 1, 1, 1)
	roundedRectPath(dc, 0, 0, size, size, r)
	if err := dc.Fill(); err != nil {
		Logger().Warn("plaque: mask fill failed", "radius", radius, "err", err)
	}
	_ = dc.FlushGPU()
	return toGray(dc.Image())
}

// roundedRectPath adds a rectangle with quadratic corners of radius r to the
// current path. r is capped at half the shorter side.
func roundedRectPath(dc *gg.Context, x, y, w, h, r float64) {
	r = min(max(r, 0), w/2, h/2)
	dc.MoveTo(x+r, y)
	dc.LineTo(x+w-r, y)
	dc.QuadraticTo(x+w, y, x+w, y+r)
	dc.LineTo(x+w, y+h-r)
	dc.QuadraticTo(x+w, y+h, x+w-r, y+h)
	dc.LineTo(x+r, y+h)
	dc.QuadraticTo(x, y+h, x, y+h-r)
	dc.LineTo(x, y+r)
	dc.QuadraticTo(x, y, x+r, y)
	dc.ClosePath()
}

// toGray keeps the red channel of an opaque grayscale drawing.
func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			row := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Stride+x] = row[x*4]
			}
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Pix[y*out.Stride+x] = uint8(r >> 8)
		}
	}
	return out
}
