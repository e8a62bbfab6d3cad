package plaque

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory TemplateStore. failUpdate makes Update fail.
type memStore struct {
	mu         sync.Mutex
	items      map[string]Template
	seq        int
	updates    int
	failUpdate error
}

func newMemStore() *memStore { return &memStore{items: map[string]Template{}} }

func (s *memStore) Create(_ context.Context, t Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t.ID = fmt.Sprintf("t%d", s.seq)
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	s.items[t.ID] = t.Clone()
	return t, nil
}

func (s *memStore) List(context.Context) ([]Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Template, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return Template{}, errors.New("not found")
	}
	return t.Clone(), nil
}

func (s *memStore) Update(_ context.Context, t Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return Template{}, s.failUpdate
	}
	if _, ok := s.items[t.ID]; !ok {
		return Template{}, errors.New("not found")
	}
	s.updates++
	t.UpdatedAt = time.Now()
	s.items[t.ID] = t.Clone()
	return t, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return errors.New("not found")
	}
	delete(s.items, id)
	return nil
}

func (s *memStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// pathUploader "converts" any upload to a fixed model path.
type pathUploader struct {
	path string
	err  error
	got  []string
}

func (u *pathUploader) UploadModel(_ context.Context, filename string, r io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	u.got = append(u.got, filename)
	return u.path, nil
}

func newTestEditor(t *testing.T) (*Editor, *memStore, *pathUploader) {
	t.Helper()
	store := newMemStore()
	up := &pathUploader{path: writeTestGLB(t)}
	tex := &fakeUploader{}
	e := NewEditor(NewScene(testViewport()), EditorOptions{
		Composer: ComposerOptions{Upload: tex.upload},
		Store:    store,
		Uploader: up,
	})
	t.Cleanup(e.Close)
	return e, store, up
}

func importTestModel(t *testing.T, e *Editor) Template {
	t.Helper()
	tmpl, err := e.ImportModel(context.Background(), "Shop Sign.blend", strings.NewReader("blend"))
	if err != nil {
		t.Fatal(err)
	}
	return tmpl
}

// --- Import ---

func TestEditorImportCreatesTemplate(t *testing.T) {
	e, store, up := newTestEditor(t)
	tmpl := importTestModel(t, e)

	if tmpl.ID == "" || tmpl.Name != "Shop Sign" || tmpl.ModelURL != up.path {
		t.Errorf("template = %+v", tmpl)
	}
	if tmpl.BackgroundColor != DefaultBackgroundColor {
		t.Errorf("background = %q", tmpl.BackgroundColor)
	}
	if len(store.items) != 1 {
		t.Errorf("store items = %d, want 1", len(store.items))
	}
	if e.Composer().Scene().Model() == nil {
		t.Error("model should be in the scene")
	}
	if e.Dirty() {
		t.Error("fresh template should be clean")
	}

	// A second import replaces the model but keeps the template.
	again, err := e.ImportModel(context.Background(), "other.blend", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != tmpl.ID || len(store.items) != 1 {
		t.Error("second import should not create a template")
	}
	if !e.Dirty() {
		t.Error("model swap should mark the session dirty")
	}
}

func TestEditorImportFailureKeepsState(t *testing.T) {
	e, store, up := newTestEditor(t)
	importTestModel(t, e)
	model := e.Composer().Scene().Model()

	up.err = errors.New("converter down")
	if _, err := e.ImportModel(context.Background(), "b.blend", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload error")
	}
	if e.Composer().Scene().Model() != model {
		t.Error("failed import must keep the previous model")
	}

	up.err = nil
	up.path = "/does/not/exist.glb"
	if _, err := e.ImportModel(context.Background(), "c.blend", strings.NewReader("x")); err == nil {
		t.Fatal("expected load error")
	}
	if e.Composer().Scene().Model() != model || len(store.items) != 1 {
		t.Error("failed load must keep the previous state")
	}
}

func TestTemplateName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"sign.blend", "sign"},
		{"/tmp/dir/Box Sign.blend", "Box Sign"},
		{".blend", "Untitled"},
		{"", "Untitled"},
	}
	for _, tt := range tests {
		if got := templateName(tt.in); got != tt.want {
			t.Errorf("templateName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Editing ---

func TestEditorNeedsTemplate(t *testing.T) {
	e, _, _ := newTestEditor(t)
	if err := e.AddText(textOverlay("a", "hi")); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("AddText err = %v", err)
	}
	if err := e.AddImage(context.Background(), imageOverlay(t, "i", 0)); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("AddImage err = %v", err)
	}
	if _, err := e.Save(context.Background()); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("Save err = %v", err)
	}
}

func TestEditorOverlays(t *testing.T) {
	e, _, _ := newTestEditor(t)
	importTestModel(t, e)
	ctx := context.Background()

	if err := e.AddImage(ctx, imageOverlay(t, "logo", 10)); err != nil {
		t.Fatal(err)
	}
	if err := e.AddText(textOverlay("label", "OPEN")); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Composer().ImagePlane("logo"); !ok {
		t.Error("image plane missing")
	}
	if _, ok := e.Composer().TextPlane("label"); !ok {
		t.Error("text plane missing")
	}
	if !e.Dirty() {
		t.Error("edits should mark dirty")
	}

	moved := e.Images()[0]
	moved.Position = Vec3{0, 1, 0}
	if ok, err := e.UpdateImage(ctx, moved); !ok || err != nil {
		t.Fatalf("UpdateImage = %v, %v", ok, err)
	}
	if p, _ := e.Composer().ImagePlane("logo"); p.Position != (Vec3{0, 1, 0}) {
		t.Errorf("plane position = %+v", p.Position)
	}

	if !e.RemoveText("label") || e.RemoveText("label") {
		t.Error("RemoveText should succeed once")
	}
	if !e.RemoveImage(ctx, "logo") {
		t.Error("RemoveImage failed")
	}
	if len(e.Images()) != 0 || len(e.Texts()) != 0 {
		t.Error("overlays should be empty")
	}
}

func TestEditorAddQR(t *testing.T) {
	e, _, _ := newTestEditor(t)
	importTestModel(t, e)
	o, err := e.AddQR(context.Background(), "https://example.com", QROptions{Size: 96})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Composer().ImagePlane(o.ID); !ok {
		t.Error("QR plane missing")
	}
}

func TestEditorColorCommit(t *testing.T) {
	e, _, _ := newTestEditor(t)
	importTestModel(t, e)
	panel := e.Composer().Scene().Model().FindByName("Panel")
	if panel == nil {
		t.Fatal("Panel missing")
	}

	e.State().SetMode(ModeColor)
	e.Picker().Click(Hit{Node: panel})
	e.Picker().SetColor("#00ff00")
	if e.Dirty() {
		t.Error("live preview should not mark dirty before commit")
	}
	if !e.CommitColor() {
		t.Fatal("commit failed")
	}
	if got := e.Overrides()["Panel"]; got != "#00ff00" {
		t.Errorf("override = %q", got)
	}
	if !e.Dirty() {
		t.Error("commit should mark dirty")
	}
}

// --- Saving ---

func TestEditorSave(t *testing.T) {
	e, store, _ := newTestEditor(t)
	tmpl := importTestModel(t, e)
	if err := e.AddText(textOverlay("label", "OPEN")); err != nil {
		t.Fatal(err)
	}
	e.SetBackground("#101010")

	saved, err := e.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if e.Dirty() {
		t.Error("confirmed save should clear dirty")
	}
	if bg := e.Composer().Scene().Background; !colorNear(bg, MustParseColor("#101010", ColorWhite)) {
		t.Errorf("scene background = %+v", bg)
	}
	stored := store.items[tmpl.ID]
	if len(stored.Texts) != 1 || stored.BackgroundColor != "#101010" {
		t.Errorf("stored = %+v", stored)
	}
	if saved.UpdatedAt.IsZero() {
		t.Error("save should return the store's record")
	}
}

func TestEditorSaveFailureStaysDirty(t *testing.T) {
	e, store, _ := newTestEditor(t)
	importTestModel(t, e)
	if err := e.AddText(textOverlay("label", "OPEN")); err != nil {
		t.Fatal(err)
	}
	store.failUpdate = errors.New("disk full")
	if _, err := e.Save(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if !e.Dirty() {
		t.Error("failed save must not mark the session saved")
	}
}

func TestEditorAutosave(t *testing.T) {
	e, store, _ := newTestEditor(t)
	importTestModel(t, e)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunAutosave(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	if store.updateCount() != 0 {
		t.Error("clean session should not autosave")
	}
	e.SetBackground("#333333")
	deadline := time.Now().Add(2 * time.Second)
	for e.Dirty() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("RunAutosave = %v", err)
	}
	if store.updateCount() != 1 {
		t.Errorf("updates = %d, want 1", store.updateCount())
	}
}

// --- Load / delete ---

func TestEditorLoadTemplate(t *testing.T) {
	e, store, up := newTestEditor(t)
	img := imageOverlay(t, "logo", 0)
	broken := NewImageOverlay("broken", "data:text/plain,nope")
	stored, _ := store.Create(context.Background(), Template{
		Name:              "Saved",
		ModelURL:          up.path,
		BackgroundColor:   "#abcdef",
		Images:            []ImageOverlay{img, broken},
		Texts:             []TextOverlay{textOverlay("label", "HI")},
		MaterialOverrides: MaterialOverrides{"Panel": "#ff0000"},
	})

	got, err := e.LoadTemplate(context.Background(), stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != stored.ID || e.State().Background() != "#abcdef" {
		t.Errorf("loaded = %+v, background %q", got, e.State().Background())
	}
	if _, ok := e.Composer().ImagePlane("logo"); !ok {
		t.Error("image plane missing")
	}
	if _, ok := e.Composer().ImagePlane(broken.ID); ok {
		t.Error("broken image should have no plane")
	}
	if len(e.Images()) != 2 {
		t.Error("broken overlay should stay in the list")
	}
	panel := e.Composer().Scene().Model().FindByName("Panel")
	if !colorNear(panel.Mesh.Material.Color, Color{1, 0, 0, 1}) {
		t.Errorf("override not applied: %+v", panel.Mesh.Material.Color)
	}
	if e.Dirty() {
		t.Error("loaded template should be clean")
	}

	if _, err := e.LoadTemplate(context.Background(), "missing"); err == nil {
		t.Error("unknown id should fail")
	}
}

func TestEditorDeleteActiveTemplate(t *testing.T) {
	e, store, _ := newTestEditor(t)
	tmpl := importTestModel(t, e)
	if err := e.AddText(textOverlay("label", "OPEN")); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteTemplate(context.Background(), tmpl.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Template(); ok {
		t.Error("session should close")
	}
	if e.Composer().Scene().Model() != nil || len(e.Texts()) != 0 {
		t.Error("model and overlays should be cleared")
	}
	if len(store.items) != 0 {
		t.Error("store should be empty")
	}
	if err := e.DeleteTemplate(context.Background(), tmpl.ID); err == nil {
		t.Error("second delete should fail")
	}
}

// --- Preview ---

func TestEditorCapturePreview(t *testing.T) {
	r := &fakeRenderer{ratio: 1, device: 1}
	e := NewEditor(NewScene(testViewport()), EditorOptions{Renderer: r})
	defer e.Close()
	url, err := e.CapturePreview()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("url = %.40s", url)
	}
	if r.renders != 1 {
		t.Errorf("renders = %d, want 1", r.renders)
	}
	if err := e.Export(context.Background()); err == nil {
		t.Error("export without downloader should fail")
	}
}
