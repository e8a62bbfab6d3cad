package plaque

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/gogpu/gg"
)

// DetailSize is the edge length of generated detail textures.
const DetailSize = 512

// GenerateFingerprintDetail draws a tileable-looking roughness detail of
// faint whorls, seeded for reproducible output.
func GenerateFingerprintDetail(seed uint64) image.Image {
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	dc := gg.NewContext(DetailSize, DetailSize)
	defer dc.Close()
	dc.ClearWithColor(gg.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1})
	dc.SetLineWidth(1.2)
	for i := 0; i < 7; i++ {
		cx := rng.Float64() * DetailSize
		cy := rng.Float64() * DetailSize
		rot := rng.Float64() * math.Pi
		shade := 0.55 + rng.Float64()*0.15
		dc.SetRGBA(shade, shade, shade, 0.35)
		for ring := 1; ring <= 14; ring++ {
			rx := float64(ring) * 3.2
			ry := rx * 1.35
			const steps = 48
			for s := 0; s <= steps; s++ {
				a := float64(s) / steps * 2 * math.Pi
				x := rx * math.Cos(a)
				y := ry * math.Sin(a)
				px := cx + x*math.Cos(rot) - y*math.Sin(rot)
				py := cy + x*math.Sin(rot) + y*math.Cos(rot)
				if s == 0 {
					dc.MoveTo(px, py)
				} else {
					dc.LineTo(px, py)
				}
			}
			if err := dc.Stroke(); err != nil {
				Logger().Debug("plaque: fingerprint stroke failed", "err", err)
			}
		}
	}
	_ = dc.FlushGPU()
	return dc.Image()
}

// GenerateScratchDetail draws a roughness detail of thin random scratches,
// seeded for reproducible output.
func GenerateScratchDetail(seed uint64) image.Image {
	rng := rand.New(rand.NewPCG(seed, 0xbf58476d1ce4e5b9))
	dc := gg.NewContext(DetailSize, DetailSize)
	defer dc.Close()
	dc.ClearWithColor(gg.RGBA{R: 0.35, G: 0.35, B: 0.35, A: 1})
	for i := 0; i < 220; i++ {
		x := rng.Float64() * DetailSize
		y := rng.Float64() * DetailSize
		length := 10 + rng.Float64()*90
		angle := rng.Float64() * 2 * math.Pi
		shade := 0.5 + rng.Float64()*0.4
		dc.SetRGBA(shade, shade, shade, 0.6)
		dc.SetLineWidth(0.5 + rng.Float64())
		dc.DrawLine(x, y, x+length*math.Cos(angle), y+length*math.Sin(angle))
		if err := dc.Stroke(); err != nil {
			Logger().Debug("plaque: scratch stroke failed", "err", err)
		}
	}
	_ = dc.FlushGPU()
	return dc.Image()
}

// NewDetailTextures generates and uploads both detail textures.
func NewDetailTextures(upload TextureUploader) DetailTextures {
	if upload == nil {
		upload = EbitenUploader
	}
	return DetailTextures{
		Fingerprints: upload(GenerateFingerprintDetail(1)),
		Scratches:    upload(GenerateScratchDetail(2)),
	}
}

// Dispose deallocates both textures.
func (d DetailTextures) Dispose() {
	if d.Fingerprints != nil {
		d.Fingerprints.Deallocate()
	}
	if d.Scratches != nil {
		d.Scratches.Deallocate()
	}
}
