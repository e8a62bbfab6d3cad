package plaque

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// ErrNoTemplate is returned by operations that need an active template.
var ErrNoTemplate = errors.New("plaque: no active template")

// DefaultAutosaveInterval is the autosave period used when none is given.
const DefaultAutosaveInterval = 60 * time.Second

const defaultPreviewSize = 320

// TemplateStore persists templates. Implementations return the stored
// record, which is authoritative over what was sent.
type TemplateStore interface {
	Create(ctx context.Context, t Template) (Template, error)
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id string) (Template, error)
	Update(ctx context.Context, t Template) (Template, error)
	Delete(ctx context.Context, id string) error
}

// ModelUploader converts an authoring file into a renderable model and
// returns its URL.
type ModelUploader interface {
	UploadModel(ctx context.Context, filename string, r io.Reader) (string, error)
}

// EditorOptions configures an Editor.
type EditorOptions struct {
	Composer ComposerOptions
	Store    TemplateStore
	Uploader ModelUploader
	// Models loads model URLs. When nil one is built from the composer's
	// HTTP client and uploader.
	Models *ModelLoader
	// Renderer and Downloader enable Export; Renderer alone enables
	// CapturePreview.
	Renderer   Renderer
	Downloader Downloader
	Export     ExportConfig
	// PreviewSize bounds the saved thumbnail's longer edge. Zero means 320.
	PreviewSize int
	// Icons is the catalog AddIcon draws from. Empty sections mean
	// DefaultIcons.
	Icons IconSet
}

// Editor is one editing session: the overlays, color overrides and
// background of the active template, kept in step with the scene through a
// Composer. Methods are safe for concurrent use; the autosave loop runs
// beside UI calls.
type Editor struct {
	mu       sync.Mutex
	composer *Composer
	picker   *ColorPicker
	state    *EditorState
	exporter *Exporter
	models   *ModelLoader
	opts     EditorOptions

	template  *Template
	model     *Model
	images    []ImageOverlay
	texts     []TextOverlay
	overrides MaterialOverrides

	// rev counts edits; savedRev is the rev the store last confirmed.
	rev      uint64
	savedRev uint64
}

// NewEditor creates an editor drawing into scene.
func NewEditor(scene *Scene, opts EditorOptions) *Editor {
	e := &Editor{
		composer:  NewComposer(scene, opts.Composer),
		state:     NewEditorState(),
		models:    opts.Models,
		opts:      opts,
		overrides: MaterialOverrides{},
	}
	if e.models == nil {
		e.models = &ModelLoader{Client: opts.Composer.HTTPClient, Upload: opts.Composer.Upload}
	}
	if e.opts.PreviewSize <= 0 {
		e.opts.PreviewSize = defaultPreviewSize
	}
	e.picker = NewColorPicker(scene, e.state, e.commitColor)
	if opts.Renderer != nil && opts.Downloader != nil {
		e.exporter = NewExporter(opts.Renderer, opts.Downloader, e.state, opts.Export)
	}
	return e
}

// State returns the shared interaction and export state.
func (e *Editor) State() *EditorState { return e.state }

// Picker returns the color picker bound to the scene.
func (e *Editor) Picker() *ColorPicker { return e.picker }

// Composer returns the scene composer. Callers must not use it while
// editor methods run.
func (e *Editor) Composer() *Composer { return e.composer }

// Template returns a copy of the active template as last confirmed by the
// store.
func (e *Editor) Template() (Template, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template == nil {
		return Template{}, false
	}
	return e.template.Clone(), true
}

// Dirty reports whether there are edits the store has not confirmed.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.template != nil && e.rev != e.savedRev
}

// Images returns a copy of the image overlays.
func (e *Editor) Images() []ImageOverlay {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ImageOverlay(nil), e.images...)
}

// Texts returns a copy of the text overlays.
func (e *Editor) Texts() []TextOverlay {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]TextOverlay(nil), e.texts...)
}

// Overrides returns a copy of the material color overrides.
func (e *Editor) Overrides() MaterialOverrides {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overrides.Clone()
}

// --- Model and templates ---

// ImportModel sends an authoring file through the uploader, loads the
// converted model and makes it current. The first import creates a
// template named after the file. On any failure the previous model and
// template stay as they were.
func (e *Editor) ImportModel(ctx context.Context, filename string, r io.Reader) (Template, error) {
	if e.opts.Uploader == nil {
		return Template{}, errors.New("plaque: no model uploader configured")
	}
	url, err := e.opts.Uploader.UploadModel(ctx, filename, r)
	if err != nil {
		return Template{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	model, err := e.models.Load(ctx, url)
	if err != nil {
		return Template{}, fmt.Errorf("load model: %w", err)
	}

	e.mu.Lock()
	active := e.template != nil
	e.mu.Unlock()

	var created Template
	if !active {
		if e.opts.Store == nil {
			model.Dispose()
			return Template{}, errors.New("plaque: no template store configured")
		}
		created, err = e.opts.Store.Create(ctx, Template{
			Name:            templateName(filename),
			ModelURL:        url,
			BackgroundColor: e.state.Background(),
			Images:          []ImageOverlay{},
			Texts:           []TextOverlay{},
		})
		if err != nil {
			model.Dispose()
			return Template{}, fmt.Errorf("create template: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !active {
		e.template = &created
		e.rev, e.savedRev = 0, 0
	} else {
		e.template.ModelURL = url
		e.markDirty()
	}
	e.setModelLocked(model)
	Logger().Info("plaque: model imported", "file", filename, "url", url, "template", e.template.ID)
	return e.template.Clone(), nil
}

// LoadTemplate fetches a template and replaces the session with it. Image
// load failures are logged; the template still opens without those planes.
func (e *Editor) LoadTemplate(ctx context.Context, id string) (Template, error) {
	if e.opts.Store == nil {
		return Template{}, errors.New("plaque: no template store configured")
	}
	t, err := e.opts.Store.Get(ctx, id)
	if err != nil {
		return Template{}, fmt.Errorf("get template %s: %w", id, err)
	}
	var model *Model
	if t.ModelURL != "" {
		if model, err = e.models.Load(ctx, t.ModelURL); err != nil {
			return Template{}, fmt.Errorf("load model: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.template = &t
	e.images = append([]ImageOverlay(nil), t.Images...)
	e.texts = append([]TextOverlay(nil), t.Texts...)
	e.overrides = t.MaterialOverrides.Clone()
	if e.overrides == nil {
		e.overrides = MaterialOverrides{}
	}
	bg := t.BackgroundColor
	if bg == "" || !e.state.SetBackground(bg) {
		e.state.SetBackground(DefaultBackgroundColor)
	}
	e.applyBackgroundLocked()
	e.composer.SetOverrides(e.overrides)
	e.setModelLocked(model)
	if err := e.composer.SyncImages(ctx, e.images); err != nil {
		Logger().Warn("plaque: template images failed to load", "template", t.ID, "err", err)
	}
	e.composer.SyncTexts(e.texts)
	e.rev, e.savedRev = 0, 0
	return t.Clone(), nil
}

// ListTemplates returns the store's templates.
func (e *Editor) ListTemplates(ctx context.Context) ([]Template, error) {
	if e.opts.Store == nil {
		return nil, errors.New("plaque: no template store configured")
	}
	list, err := e.opts.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return list, nil
}

// DeleteTemplate removes a template from the store. Deleting the active
// template closes the session.
func (e *Editor) DeleteTemplate(ctx context.Context, id string) error {
	if e.opts.Store == nil {
		return errors.New("plaque: no template store configured")
	}
	if err := e.opts.Store.Delete(ctx, id); err != nil {
		Logger().Error("plaque: template delete failed", "template", id, "err", err)
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template != nil && e.template.ID == id {
		e.resetLocked()
	}
	return nil
}

// Save pushes the session into the active template. The session counts as
// saved only once the store confirms; a failed save leaves it dirty.
func (e *Editor) Save(ctx context.Context) (Template, error) {
	if e.opts.Store == nil {
		return Template{}, errors.New("plaque: no template store configured")
	}
	e.mu.Lock()
	if e.template == nil {
		e.mu.Unlock()
		return Template{}, ErrNoTemplate
	}
	snap, rev := e.snapshotLocked(), e.rev
	e.mu.Unlock()

	if e.opts.Renderer != nil && !e.rendererBusy() {
		if preview, err := e.CapturePreview(); err != nil {
			Logger().Warn("plaque: preview capture failed", "err", err)
		} else {
			snap.PreviewURL = preview
		}
	}

	saved, err := e.opts.Store.Update(ctx, snap)
	if err != nil {
		Logger().Error("plaque: template save failed", "template", snap.ID, "err", err)
		return Template{}, fmt.Errorf("save template %s: %w", snap.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template != nil && e.template.ID == saved.ID {
		e.template = &saved
		e.savedRev = rev
	}
	return saved.Clone(), nil
}

// RunAutosave saves every interval while a template is active and dirty,
// until ctx is done. Save errors are logged and retried on the next tick.
func (e *Editor) RunAutosave(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !e.Dirty() {
				continue
			}
			if _, err := e.Save(ctx); err != nil && ctx.Err() == nil {
				Logger().Warn("plaque: autosave failed", "err", err)
			}
		}
	}
}

// --- Overlays ---

// AddImage appends an image overlay and loads its picture. A picture that
// fails to load is reported but the overlay is kept.
func (e *Editor) AddImage(ctx context.Context, o ImageOverlay) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template == nil {
		return ErrNoTemplate
	}
	e.images = append(e.images, o)
	e.markDirty()
	return e.composer.SyncImages(ctx, e.images)
}

// UpdateImage replaces the overlay with o.ID. It reports whether one was
// found.
func (e *Editor) UpdateImage(ctx context.Context, o ImageOverlay) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.images {
		if e.images[i].ID == o.ID {
			e.images[i] = o
			e.markDirty()
			return true, e.composer.SyncImages(ctx, e.images)
		}
	}
	return false, nil
}

// RemoveImage deletes the image overlay with the given id.
func (e *Editor) RemoveImage(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.images {
		if e.images[i].ID == id {
			e.images = append(e.images[:i:i], e.images[i+1:]...)
			e.markDirty()
			if err := e.composer.SyncImages(ctx, e.images); err != nil {
				Logger().Warn("plaque: image sync failed", "err", err)
			}
			return true
		}
	}
	return false
}

// AddQR renders a QR code for content and adds it as an image overlay.
func (e *Editor) AddQR(ctx context.Context, content string, opts QROptions) (ImageOverlay, error) {
	o, err := NewQROverlay(content, opts)
	if err != nil {
		return ImageOverlay{}, err
	}
	if err := e.AddImage(ctx, o); err != nil {
		return ImageOverlay{}, err
	}
	return o, nil
}

// AddText appends a text overlay.
func (e *Editor) AddText(o TextOverlay) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template == nil {
		return ErrNoTemplate
	}
	e.texts = append(e.texts, o)
	e.markDirty()
	e.composer.SyncTexts(e.texts)
	return nil
}

// UpdateText replaces the text overlay with o.ID.
func (e *Editor) UpdateText(o TextOverlay) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.texts {
		if e.texts[i].ID == o.ID {
			e.texts[i] = o
			e.markDirty()
			e.composer.SyncTexts(e.texts)
			return true
		}
	}
	return false
}

// RemoveText deletes the text overlay with the given id.
func (e *Editor) RemoveText(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.texts {
		if e.texts[i].ID == id {
			e.texts = append(e.texts[:i:i], e.texts[i+1:]...)
			e.markDirty()
			e.composer.SyncTexts(e.texts)
			return true
		}
	}
	return false
}

// SetBackground changes the scene background. Invalid colors are ignored.
func (e *Editor) SetBackground(hex string) bool {
	if !e.state.SetBackground(hex) {
		return false
	}
	e.mu.Lock()
	e.markDirty()
	e.applyBackgroundLocked()
	e.mu.Unlock()
	return true
}

// CommitColor reports the picker's pending color, recording it as an
// override.
func (e *Editor) CommitColor() bool {
	return e.picker.Commit()
}

func (e *Editor) commitColor(meshKey, hex string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overrides[meshKey] == hex {
		return
	}
	e.overrides[meshKey] = hex
	e.composer.SetOverrides(e.overrides)
	e.markDirty()
}

// --- Output ---

// Export runs the high-resolution capture sequence.
func (e *Editor) Export(ctx context.Context) error {
	if e.exporter == nil {
		return errors.New("plaque: export needs a renderer and a downloader")
	}
	return e.exporter.Export(ctx)
}

// CancelExport requests cancellation of a running export.
func (e *Editor) CancelExport() bool {
	if e.exporter == nil {
		return false
	}
	return e.exporter.Cancel()
}

// CapturePreview renders a frame and returns it as a JPEG thumbnail data
// URL. It fails with ErrRendererBusy while an export holds the renderer.
func (e *Editor) CapturePreview() (string, error) {
	r := e.opts.Renderer
	if r == nil {
		return "", errors.New("plaque: preview needs a renderer")
	}
	if e.rendererBusy() {
		return "", ErrRendererBusy
	}
	if err := r.Render(); err != nil {
		return "", fmt.Errorf("preview render: %w", err)
	}
	img, err := r.Capture()
	if err != nil {
		return "", fmt.Errorf("preview capture: %w", err)
	}
	return thumbnailDataURL(img, e.opts.PreviewSize)
}

func thumbnailDataURL(img image.Image, size int) (string, error) {
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return "", fmt.Errorf("preview encode: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Close releases the session's GPU resources and detaches the picker.
func (e *Editor) Close() {
	e.picker.Detach()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.composer.Dispose()
}

// --- Internal ---

func (e *Editor) markDirty() { e.rev++ }

func (e *Editor) rendererBusy() bool {
	if e.exporter != nil {
		return e.exporter.Busy()
	}
	return e.state.Export().Active()
}

func (e *Editor) applyBackgroundLocked() {
	e.composer.Scene().Background = MustParseColor(e.state.Background(), ColorBlack)
}

func (e *Editor) snapshotLocked() Template {
	t := e.template.Clone()
	t.BackgroundColor = e.state.Background()
	t.Images = append([]ImageOverlay{}, e.images...)
	t.Texts = append([]TextOverlay{}, e.texts...)
	t.MaterialOverrides = e.overrides.Clone()
	if t.MaterialOverrides == nil {
		t.MaterialOverrides = MaterialOverrides{}
	}
	return t
}

// setModelLocked swaps the model. The composer disposes the old node tree;
// the old model's textures are released here.
func (e *Editor) setModelLocked(m *Model) {
	e.picker.Forget()
	var root *Node
	if m != nil {
		root = m.Root
	}
	e.composer.SetModel(root)
	if e.model != nil {
		e.model.Dispose()
	}
	e.model = m
}

func (e *Editor) resetLocked() {
	e.template = nil
	e.images, e.texts = nil, nil
	e.overrides = MaterialOverrides{}
	e.composer.SetOverrides(e.overrides)
	e.composer.SyncTexts(nil)
	if err := e.composer.SyncImages(context.Background(), nil); err != nil {
		Logger().Warn("plaque: image sync failed", "err", err)
	}
	e.setModelLocked(nil)
	e.rev, e.savedRev = 0, 0
}

func templateName(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "Untitled"
	}
	return name
}
