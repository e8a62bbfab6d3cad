package plaque

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Alignment is the horizontal placement of each text line.
type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// Decoration is a line drawn relative to each text line box.
type Decoration string

const (
	DecorationNone        Decoration = "none"
	DecorationUnderline   Decoration = "underline"
	DecorationOverline    Decoration = "overline"
	DecorationLineThrough Decoration = "line-through"
)

// Transform is a case transform applied before caseControl.
type Transform string

const (
	TransformNone       Transform = "none"
	TransformUppercase  Transform = "uppercase"
	TransformLowercase  Transform = "lowercase"
	TransformCapitalize Transform = "capitalize"
)

// CaseControl is a case transform stacked on top of Transform.
type CaseControl string

const (
	CaseNone      CaseControl = "none"
	CaseUppercase CaseControl = "uppercase"
	CaseLowercase CaseControl = "lowercase"
)

// Overflow selects what happens to lines that do not fit the canvas.
type Overflow string

const (
	OverflowWrap     Overflow = "wrap"
	OverflowEllipsis Overflow = "ellipsis"
	OverflowClip     Overflow = "clip"
)

// VAlign is the vertical placement of the text block within the canvas.
type VAlign string

const (
	VAlignTop    VAlign = "top"
	VAlignCenter VAlign = "center"
	VAlignBottom VAlign = "bottom"
)

// Default text style values.
const (
	DefaultTextColor        = "#ffffff"
	DefaultFontSize         = 32.0
	DefaultFontFamily       = "sans-serif"
	DefaultFontWeight       = 500.0
	DefaultLineHeight       = 1.3
	DefaultShadowColor      = "#000000"
	DefaultPadding          = 16.0
	DefaultMaxWidth         = 420.0
	DefaultMaxHeight        = 220.0
	DefaultParagraphSpacing = 10.0
	transparentColor        = "transparent"
)

// ResolvedTextStyle is a fully populated text style. Every field holds a
// usable value; rasterization reads nothing else. Field order is the
// signature order.
type ResolvedTextStyle struct {
	Content             string      `json:"content"`
	Color               string      `json:"color"`
	FontSize            float64     `json:"fontSize"`
	FontFamily          string      `json:"fontFamily"`
	FontWeight          float64     `json:"fontWeight"`
	IsBold              bool        `json:"isBold"`
	IsItalic            bool        `json:"isItalic"`
	Alignment           Alignment   `json:"alignment"`
	TextDecoration      Decoration  `json:"textDecoration"`
	BackgroundColor     string      `json:"backgroundColor"`
	TextBackgroundColor string      `json:"textBackgroundColor"`
	HighlightColor      string      `json:"highlightColor"`
	EnableHighlight     bool        `json:"enableHighlight"`
	LineHeight          float64     `json:"lineHeight"`
	LetterSpacing       float64     `json:"letterSpacing"`
	TextShadowColor     string      `json:"textShadowColor"`
	TextShadowBlur      float64     `json:"textShadowBlur"`
	TextShadowOffsetX   float64     `json:"textShadowOffsetX"`
	TextShadowOffsetY   float64     `json:"textShadowOffsetY"`
	TextTransform       Transform   `json:"textTransform"`
	CaseControl         CaseControl `json:"caseControl"`
	Padding             float64     `json:"padding"`
	MaxWidth            float64     `json:"maxWidth"`
	MaxHeight           float64     `json:"maxHeight"`
	TextOverflow        Overflow    `json:"textOverflow"`
	ParagraphSpacing    float64     `json:"paragraphSpacing"`
	VerticalAlign       VAlign      `json:"verticalAlign"`
}

// NormalizeTextStyle resolves every absent or invalid field of s to its
// default. It never fails.
func NormalizeTextStyle(s TextStyle) ResolvedTextStyle {
	r := ResolvedTextStyle{
		Content:             s.Content,
		Color:               colorOr(s.Color, DefaultTextColor),
		FontSize:            positiveOr(s.FontSize, DefaultFontSize),
		FontFamily:          strings.TrimSpace(s.FontFamily),
		FontWeight:          DefaultFontWeight,
		IsBold:              s.IsBold,
		IsItalic:            s.IsItalic,
		Alignment:           AlignLeft,
		TextDecoration:      DecorationNone,
		BackgroundColor:     colorOr(s.BackgroundColor, transparentColor),
		TextBackgroundColor: colorOr(s.TextBackgroundColor, transparentColor),
		HighlightColor:      colorOr(s.HighlightColor, transparentColor),
		EnableHighlight:     s.EnableHighlight,
		LineHeight:          positiveOr(s.LineHeight, DefaultLineHeight),
		LetterSpacing:       finiteOr(s.LetterSpacing, 0),
		TextShadowColor:     colorOr(s.TextShadowColor, DefaultShadowColor),
		TextShadowBlur:      nonNegativeOr(s.TextShadowBlur, 0),
		TextShadowOffsetX:   finiteOr(s.TextShadowOffsetX, 0),
		TextShadowOffsetY:   finiteOr(s.TextShadowOffsetY, 0),
		TextTransform:       TransformNone,
		CaseControl:         CaseNone,
		Padding:             nonNegativeOr(s.Padding, DefaultPadding),
		MaxWidth:            math.Max(1, positiveOr(s.MaxWidth, DefaultMaxWidth)),
		MaxHeight:           math.Max(1, positiveOr(s.MaxHeight, DefaultMaxHeight)),
		TextOverflow:        OverflowWrap,
		ParagraphSpacing:    nonNegativeOr(s.ParagraphSpacing, DefaultParagraphSpacing),
		VerticalAlign:       VAlignTop,
	}
	if r.FontFamily == "" {
		r.FontFamily = DefaultFontFamily
	}
	if s.FontWeight != nil {
		if w := float64(*s.FontWeight); isFinite(w) && w >= 1 && w <= 1000 {
			r.FontWeight = w
		}
	}
	switch s.Alignment {
	case AlignCenter, AlignRight, AlignJustify:
		r.Alignment = s.Alignment
	}
	switch s.TextDecoration {
	case DecorationUnderline, DecorationOverline, DecorationLineThrough:
		r.TextDecoration = s.TextDecoration
	}
	switch s.TextTransform {
	case TransformUppercase, TransformLowercase, TransformCapitalize:
		r.TextTransform = s.TextTransform
	}
	switch s.CaseControl {
	case CaseUppercase, CaseLowercase:
		r.CaseControl = s.CaseControl
	}
	switch s.TextOverflow {
	case OverflowEllipsis, OverflowClip:
		r.TextOverflow = s.TextOverflow
	}
	switch s.VerticalAlign {
	case VAlignCenter, VAlignBottom:
		r.VerticalAlign = s.VerticalAlign
	}
	return r
}

// LineHeightPx returns the line box height in pixels, at least 1.
func (r ResolvedTextStyle) LineHeightPx() float64 {
	return math.Max(1, r.FontSize*r.LineHeight)
}

// ContentWidth returns the wrap width inside the padding, at least 1.
func (r ResolvedTextStyle) ContentWidth() float64 {
	return math.Max(1, r.MaxWidth-2*r.Padding)
}

// EffectiveWeight returns 700 for bold styles and FontWeight otherwise.
func (r ResolvedTextStyle) EffectiveWeight() float64 {
	if r.IsBold {
		return 700
	}
	return r.FontWeight
}

// ApplyTextTransform applies transform and then caseControl to s.
func ApplyTextTransform(s string, transform Transform, caseControl CaseControl) string {
	switch transform {
	case TransformUppercase:
		s = strings.ToUpper(s)
	case TransformLowercase:
		s = strings.ToLower(s)
	case TransformCapitalize:
		s = capitalizeWords(s)
	}
	switch caseControl {
	case CaseUppercase:
		s = strings.ToUpper(s)
	case CaseLowercase:
		s = strings.ToLower(s)
	}
	return s
}

// capitalizeWords upper-cases the first letter or digit of every run of word
// characters, leaving the rest untouched.
func capitalizeWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWord := false
	for _, r := range s {
		word := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if word && !inWord {
			r = unicode.ToUpper(r)
		}
		inWord = word
		b.WriteRune(r)
	}
	return b.String()
}

// Measurer reports the advance width of a string in pixels.
type Measurer interface {
	Measure(s string) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(s string) float64

// Measure implements Measurer.
func (f MeasureFunc) Measure(s string) float64 { return f(s) }

// lineWidth is the measured width of s plus letter spacing per rune.
func lineWidth(m Measurer, s string, letterSpacing float64) float64 {
	return m.Measure(s) + letterSpacing*float64(len([]rune(s)))
}

// WrapLines greedily word-wraps text to contentWidth. Words are split on any
// whitespace, so newlines only separate words. A line breaks before a word
// when adding it would exceed contentWidth and the line already holds a
// word; a single word wider than contentWidth gets a line of its own.
func WrapLines(text string, contentWidth, letterSpacing float64, m Measurer) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && lineWidth(m, candidate, letterSpacing) > contentWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// CountParagraphs returns the number of paragraphs in text, where
// paragraphs are separated by blank lines.
func CountParagraphs(text string) int {
	return len(paragraphBreak.Split(text, -1))
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func colorOr(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if _, ok := ParseColor(s); !ok {
		return def
	}
	return strings.ToLower(s)
}

func finiteOr(p *float64, def float64) float64 {
	if p == nil || !isFinite(*p) {
		return def
	}
	return *p
}

func positiveOr(p *float64, def float64) float64 {
	if p == nil || !isFinite(*p) || *p <= 0 {
		return def
	}
	return *p
}

func nonNegativeOr(p *float64, def float64) float64 {
	if p == nil || !isFinite(*p) || *p < 0 {
		return def
	}
	return *p
}
