package plaque

import (
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
)

// ellipsisMarker is appended to the last visible line under OverflowEllipsis.
const ellipsisMarker = "…"

// TextBitmap is a rasterized text overlay.
type TextBitmap struct {
	Image         image.Image
	Width, Height int
}

// Aspect returns Width/Height, or 1 for an empty bitmap.
func (b TextBitmap) Aspect() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 1
	}
	return float64(b.Width) / float64(b.Height)
}

// PlacedWord is one word of a justified line.
type PlacedWord struct {
	Text string
	X    float64
}

// PlacedLine is a visible line with its box origin (top-left) and width.
type PlacedLine struct {
	Text  string
	X, Y  float64
	Width float64
	// Words is set for justified lines; glyphs are drawn per word.
	Words []PlacedWord
}

// TextLayout is the resolved geometry of a text bitmap, computed before any
// pixels are drawn.
type TextLayout struct {
	Style         ResolvedTextStyle
	Width, Height int
	LineHeight    float64
	// Wrapped holds every wrapped line; Lines only those that fit.
	Wrapped []string
	Lines   []PlacedLine
}

// LayoutText wraps and places the lines of a resolved style. content is the
// already transformed text. ok is false when content is blank.
func LayoutText(r ResolvedTextStyle, content string, m Measurer) (TextLayout, bool) {
	if strings.TrimSpace(content) == "" {
		return TextLayout{}, false
	}
	contentWidth := r.ContentWidth()
	lh := r.LineHeightPx()
	wrapped := WrapLines(content, contentWidth, r.LetterSpacing, m)

	total := float64(len(wrapped))*lh + 2*r.Padding
	if r.ParagraphSpacing > 0 {
		total += float64(CountParagraphs(content)-1) * r.ParagraphSpacing
	}
	height := math.Max(1, math.Min(r.MaxHeight, total))

	l := TextLayout{
		Style:      r,
		Width:      int(math.Ceil(r.MaxWidth)),
		Height:     int(math.Ceil(height)),
		LineHeight: lh,
		Wrapped:    wrapped,
	}

	maxLines := max(1, int(math.Floor((float64(l.Height)-2*r.Padding)/lh)))
	blockHeight := float64(len(wrapped)) * lh
	y := r.Padding
	switch r.VerticalAlign {
	case VAlignCenter:
		y = (float64(l.Height) - blockHeight) / 2
	case VAlignBottom:
		y = float64(l.Height) - blockHeight - r.Padding
	}

	visible := wrapped[:min(len(wrapped), maxLines)]
	for i, s := range visible {
		if i == maxLines-1 && len(wrapped) > maxLines && r.TextOverflow == OverflowEllipsis {
			s += ellipsisMarker
		}
		l.Lines = append(l.Lines, placeLine(r, s, y+float64(i)*lh, float64(l.Width), contentWidth, m))
	}
	return l, true
}

func placeLine(r ResolvedTextStyle, s string, y, canvasWidth, contentWidth float64, m Measurer) PlacedLine {
	lw := lineWidth(m, s, r.LetterSpacing)
	pl := PlacedLine{Text: s, X: r.Padding, Y: y, Width: lw}
	switch r.Alignment {
	case AlignCenter:
		pl.X = (canvasWidth - lw) / 2
	case AlignRight:
		pl.X = canvasWidth - lw - r.Padding
	case AlignJustify:
		words := strings.Split(s, " ")
		if len(words) < 2 {
			break
		}
		var sum float64
		for _, w := range words {
			sum += m.Measure(w)
		}
		gap := (contentWidth - sum) / float64(len(words)-1)
		cursor := r.Padding
		for _, w := range words {
			pl.Words = append(pl.Words, PlacedWord{Text: w, X: cursor})
			cursor += m.Measure(w) + gap
		}
		pl.Width = contentWidth
	}
	return pl
}

// faceMeasurer measures strings with a gg font face.
type faceMeasurer struct{ face text.Face }

func (f faceMeasurer) Measure(s string) float64 { return f.face.Advance(s) }

// RasterizeText renders a text style to a bitmap. A nil registry uses
// DefaultFonts. ok is false when the transformed content is blank; the
// caller must treat that as "nothing to draw".
func RasterizeText(style TextStyle, fonts *FontRegistry) (TextBitmap, bool) {
	if fonts == nil {
		var err error
		if fonts, err = DefaultFonts(); err != nil {
			Logger().Warn("plaque: text rasterizer has no fonts", "err", err)
			return TextBitmap{}, false
		}
	}
	r := NormalizeTextStyle(style)
	content := ApplyTextTransform(r.Content, r.TextTransform, r.CaseControl)
	face := fonts.Face(r.FontFamily, r.EffectiveWeight(), r.IsItalic, r.FontSize)
	layout, ok := LayoutText(r, content, faceMeasurer{face})
	if !ok {
		return TextBitmap{}, false
	}
	return TextBitmap{
		Image:  drawLayout(layout, face),
		Width:  layout.Width,
		Height: layout.Height,
	}, true
}

func drawLayout(l TextLayout, face text.Face) image.Image {
	r := l.Style
	dc := gg.NewContext(l.Width, l.Height)
	defer dc.Close()

	if bg, ok := ParseColor(r.BackgroundColor); ok && bg.A > 0 {
		dc.ClearWithColor(gg.RGBA{R: bg.R, G: bg.G, B: bg.B, A: bg.A})
	}

	textBg := MustParseColor(r.TextBackgroundColor, ColorTransparent)
	highlight := MustParseColor(r.HighlightColor, ColorTransparent)
	for _, line := range l.Lines {
		if textBg.A > 0 {
			fillLineBox(dc, line, l.LineHeight, textBg)
		}
		if r.EnableHighlight && highlight.A > 0 {
			fillLineBox(dc, line, l.LineHeight, highlight)
		}
	}

	ascent := face.Metrics().Ascent
	shadow := MustParseColor(r.TextShadowColor, ColorBlack)
	if shadow.A > 0 && (r.TextShadowBlur > 0 || r.TextShadowOffsetX != 0 || r.TextShadowOffsetY != 0) {
		layer := gg.NewContext(l.Width, l.Height)
		layer.SetFont(face)
		layer.SetRGBA(shadow.R, shadow.G, shadow.B, shadow.A)
		for _, line := range l.Lines {
			drawGlyphs(layer, face, line, r.TextShadowOffsetX, r.TextShadowOffsetY+ascent, r.LetterSpacing)
		}
		_ = layer.FlushGPU()
		var img image.Image = layer.Image()
		_ = layer.Close()
		if r.TextShadowBlur > 0 {
			// A canvas shadow blur of b approximates a Gaussian with sigma b/2.
			img = imaging.Blur(img, r.TextShadowBlur/2)
		}
		dc.DrawImage(gg.ImageBufFromImage(img), 0, 0)
	}

	fill := MustParseColor(r.Color, ColorWhite)
	dc.SetFont(face)
	dc.SetRGBA(fill.R, fill.G, fill.B, fill.A)
	for _, line := range l.Lines {
		drawGlyphs(dc, face, line, 0, ascent, r.LetterSpacing)
	}

	if r.TextDecoration != DecorationNone {
		dc.SetLineWidth(math.Max(1, r.FontSize/14))
		for _, line := range l.Lines {
			var y float64
			switch r.TextDecoration {
			case DecorationUnderline:
				y = line.Y + l.LineHeight - 4
			case DecorationOverline:
				y = line.Y + 2
			case DecorationLineThrough:
				y = line.Y + l.LineHeight/2
			}
			dc.DrawLine(line.X, y, line.X+line.Width, y)
			if err := dc.Stroke(); err != nil {
				Logger().Debug("plaque: decoration stroke failed", "err", err)
			}
		}
	}

	_ = dc.FlushGPU()
	return dc.Image()
}

// fillLineBox fills the padded box behind one line.
func fillLineBox(dc *gg.Context, line PlacedLine, lineHeight float64, c Color) {
	dc.SetRGBA(c.R, c.G, c.B, c.A)
	dc.DrawRectangle(line.X-4, line.Y-2, line.Width+8, lineHeight+4)
	if err := dc.Fill(); err != nil {
		Logger().Debug("plaque: line box fill failed", "err", err)
	}
}

// drawGlyphs draws a line's glyphs. dy shifts the line box top to the
// baseline.
func drawGlyphs(dc *gg.Context, face text.Face, line PlacedLine, dx, dy, letterSpacing float64) {
	if len(line.Words) > 0 {
		for _, w := range line.Words {
			drawRun(dc, face, w.Text, w.X+dx, line.Y+dy, letterSpacing)
		}
		return
	}
	drawRun(dc, face, line.Text, line.X+dx, line.Y+dy, letterSpacing)
}

// drawRun draws s at baseline y. Non-zero letter spacing places each rune
// individually.
func drawRun(dc *gg.Context, face text.Face, s string, x, y, letterSpacing float64) {
	if letterSpacing == 0 {
		dc.DrawString(s, x, y)
		return
	}
	for _, ch := range s {
		g := string(ch)
		dc.DrawString(g, x, y)
		x += face.Advance(g) + letterSpacing
	}
}
