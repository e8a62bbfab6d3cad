package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phanxgames/plaque"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no template has the requested id.
var ErrNotFound = errors.New("store: template not found")

// ErrInvalid wraps validation failures on incoming templates.
var ErrInvalid = errors.New("store: invalid template")

// Repository is the gorm-backed template store.
type Repository struct {
	db *gorm.DB
}

// NewRepository migrates the templates table and returns a repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&TemplateRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate tables: %w", err)
	}
	return &Repository{db: db}, nil
}

var _ plaque.TemplateStore = (*Repository)(nil)

// Create stores t under a fresh id. Timestamps are set by the database
// layer.
func (r *Repository) Create(ctx context.Context, t plaque.Template) (plaque.Template, error) {
	if err := validate(&t); err != nil {
		return plaque.Template{}, err
	}
	t.ID = uuid.NewString()
	rec, err := recordFromTemplate(t)
	if err != nil {
		return plaque.Template{}, err
	}
	rec.CreatedAt, rec.UpdatedAt = time.Time{}, time.Time{}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return plaque.Template{}, fmt.Errorf("store: create template: %w", err)
	}
	return r.Get(ctx, rec.ID)
}

// List returns all templates, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]plaque.Template, error) {
	var recs []TemplateRecord
	if err := r.db.WithContext(ctx).Order("updated_at desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	out := make([]plaque.Template, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.template()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns the template with the given id.
func (r *Repository) Get(ctx context.Context, id string) (plaque.Template, error) {
	var rec TemplateRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return plaque.Template{}, ErrNotFound
	}
	if err != nil {
		return plaque.Template{}, fmt.Errorf("store: get template %s: %w", id, err)
	}
	return rec.template()
}

// Update replaces every field of the stored template except its id and
// creation time.
func (r *Repository) Update(ctx context.Context, t plaque.Template) (plaque.Template, error) {
	if err := validate(&t); err != nil {
		return plaque.Template{}, err
	}
	rec, err := recordFromTemplate(t)
	if err != nil {
		return plaque.Template{}, err
	}
	res := r.db.WithContext(ctx).Model(&TemplateRecord{}).Where("id = ?", t.ID).Updates(map[string]any{
		"name":             rec.Name,
		"model_url":        rec.ModelURL,
		"preview_url":      rec.PreviewURL,
		"background_color": rec.BackgroundColor,
		"scene_json":       rec.SceneJSON,
	})
	if res.Error != nil {
		return plaque.Template{}, fmt.Errorf("store: update template %s: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return plaque.Template{}, ErrNotFound
	}
	return r.Get(ctx, t.ID)
}

// Delete removes the template with the given id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&TemplateRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete template %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// validate checks required fields and rewrites the background color as
// "#rrggbb", the form the editor saves.
func validate(t *plaque.Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(t.ModelURL) == "" {
		return fmt.Errorf("%w: modelUrl is required", ErrInvalid)
	}
	if t.BackgroundColor != "" {
		c, ok := plaque.ParseColor(t.BackgroundColor)
		if !ok {
			return fmt.Errorf("%w: backgroundColor %q is not a color", ErrInvalid, t.BackgroundColor)
		}
		t.BackgroundColor = c.Hex()
	}
	return nil
}
