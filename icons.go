package plaque

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownIcon is returned by AddIcon for names outside the icon set.
var ErrUnknownIcon = errors.New("plaque: unknown icon")

// DefaultIconBaseURL is where the template server publishes icon PNGs.
const DefaultIconBaseURL = "/Icon"

// IconSection is one titled group of icon variants.
type IconSection struct {
	Title string
	Items []string
}

// IconSet is a catalog of importable icons. Each item name maps to
// <BaseURL>/<name>.png.
type IconSet struct {
	BaseURL  string
	Sections []IconSection
}

// DefaultIcons lists the social and contact icons offered for import, in
// colored, black and white variants.
var DefaultIcons = IconSet{
	BaseURL: DefaultIconBaseURL,
	Sections: []IconSection{
		{"Instagram", []string{"instagram-colored", "instagram-black", "instagram-white"}},
		{"Telegram", []string{"telegram-colored", "telegram-black", "telegram-white"}},
		{"Whatsapp", []string{"whatsapp-colored", "whatsapp-black", "whatsapp-white"}},
		{"Linkedin", []string{"linkedin-colored", "linkedin-black", "linkedin-white"}},
		{"Rubika", []string{"rubika-colored", "rubika-black", "rubika-white"}},
		{"Website", []string{"globe-black", "globe-white"}},
		{"Catalog", []string{"catalog-black", "catalog-white"}},
		{"Phone", []string{"phone-colored", "phone-black", "phone-white"}},
		{"Bank Card", []string{"bankcard-colored", "bankcard-black", "bankcard-white"}},
	},
}

// Names returns every icon name in catalog order.
func (s IconSet) Names() []string {
	var names []string
	for _, sec := range s.Sections {
		names = append(names, sec.Items...)
	}
	return names
}

// Has reports whether name is in the catalog.
func (s IconSet) Has(name string) bool {
	for _, sec := range s.Sections {
		for _, item := range sec.Items {
			if item == name {
				return true
			}
		}
	}
	return false
}

// URL returns the picture URL for name. An empty BaseURL means
// DefaultIconBaseURL.
func (s IconSet) URL(name string) string {
	base := s.BaseURL
	if base == "" {
		base = DefaultIconBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + name + ".png"
}

// AddIcon imports a catalog icon as an image overlay named after it.
func (e *Editor) AddIcon(ctx context.Context, name string) (ImageOverlay, error) {
	icons := e.opts.Icons
	if len(icons.Sections) == 0 {
		icons.Sections = DefaultIcons.Sections
	}
	if !icons.Has(name) {
		return ImageOverlay{}, fmt.Errorf("%w: %q", ErrUnknownIcon, name)
	}
	o := NewImageOverlay(name, icons.URL(name))
	if err := e.AddImage(ctx, o); err != nil {
		return ImageOverlay{}, err
	}
	return o, nil
}
