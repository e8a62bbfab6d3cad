package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/phanxgames/plaque"
	"gorm.io/datatypes"
)

// TemplateRecord is the persisted row for a template. Overlays and color
// overrides live together in SceneJSON.
type TemplateRecord struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Name            string         `gorm:"size:200;not null" json:"name"`
	ModelURL        string         `gorm:"type:text;not null" json:"model_url"`
	PreviewURL      string         `gorm:"type:text" json:"preview_url,omitempty"`
	BackgroundColor string         `gorm:"size:32" json:"background_color"`
	SceneJSON       datatypes.JSON `gorm:"type:json;not null" json:"scene_json"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (TemplateRecord) TableName() string {
	return "templates"
}

type sceneDoc struct {
	Images            []plaque.ImageOverlay    `json:"images"`
	Texts             []plaque.TextOverlay     `json:"texts"`
	MaterialOverrides plaque.MaterialOverrides `json:"materialOverrides"`
}

func recordFromTemplate(t plaque.Template) (TemplateRecord, error) {
	doc := sceneDoc{
		Images:            t.Images,
		Texts:             t.Texts,
		MaterialOverrides: t.MaterialOverrides,
	}
	if doc.Images == nil {
		doc.Images = []plaque.ImageOverlay{}
	}
	if doc.Texts == nil {
		doc.Texts = []plaque.TextOverlay{}
	}
	if doc.MaterialOverrides == nil {
		doc.MaterialOverrides = plaque.MaterialOverrides{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return TemplateRecord{}, fmt.Errorf("store: encode scene: %w", err)
	}
	return TemplateRecord{
		ID:              t.ID,
		Name:            t.Name,
		ModelURL:        t.ModelURL,
		PreviewURL:      t.PreviewURL,
		BackgroundColor: t.BackgroundColor,
		SceneJSON:       datatypes.JSON(data),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

func (r TemplateRecord) template() (plaque.Template, error) {
	var doc sceneDoc
	if len(r.SceneJSON) > 0 {
		if err := json.Unmarshal(r.SceneJSON, &doc); err != nil {
			return plaque.Template{}, fmt.Errorf("store: decode scene of %s: %w", r.ID, err)
		}
	}
	t := plaque.Template{
		ID:                r.ID,
		Name:              r.Name,
		ModelURL:          r.ModelURL,
		PreviewURL:        r.PreviewURL,
		BackgroundColor:   r.BackgroundColor,
		Images:            doc.Images,
		Texts:             doc.Texts,
		MaterialOverrides: doc.MaterialOverrides,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if t.Images == nil {
		t.Images = []plaque.ImageOverlay{}
	}
	if t.Texts == nil {
		t.Texts = []plaque.TextOverlay{}
	}
	if t.MaterialOverrides == nil {
		t.MaterialOverrides = plaque.MaterialOverrides{}
	}
	if t.BackgroundColor == "" {
		t.BackgroundColor = plaque.DefaultBackgroundColor
	}
	return t, nil
}
