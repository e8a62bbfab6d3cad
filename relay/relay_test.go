package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const blendHeader = "BLENDER-v402REND"

// fakeConverter writes data to the output path, or fails with err.
type fakeConverter struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeConverter) Convert(_ context.Context, in, out string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if _, err := os.Stat(in); err != nil {
		return err
	}
	if err := os.WriteFile(out, f.data, 0o644); err != nil {
		return err
	}
	return checkOutput(out)
}

func newTestModule(t *testing.T, conv Converter) (*gin.Engine, *Module) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.UploadDir = t.TempDir()
	m, err := NewModule(cfg, conv, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	r := gin.New()
	m.Register(r)
	return r, m
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) (int, map[string]string) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

// --- Upload route ---

func TestUploadSuccess(t *testing.T) {
	conv := &fakeConverter{data: []byte("glTF")}
	r, m := newTestModule(t, conv)
	code, body := serve(r, uploadRequest(t, "file", "sign.blend", blendHeader))
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}
	if body["message"] != "Conversion successful" {
		t.Errorf("message = %q", body["message"])
	}
	if !strings.HasPrefix(body["url"], "/uploads/input-1700000000000-") || !strings.HasSuffix(body["url"], ".glb") {
		t.Errorf("url = %q", body["url"])
	}

	// The converted model is served back from the upload directory.
	name := strings.TrimPrefix(body["url"], "/uploads/")
	if _, err := os.Stat(filepath.Join(m.dir, name)); err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, body["url"], nil))
	if w.Code != http.StatusOK || w.Body.String() != "glTF" {
		t.Errorf("static fetch = %d %q", w.Code, w.Body)
	}
}

func TestUploadRejects(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		file      string
		content   string
		wantError string
	}{
		{"missing", "other", "sign.blend", blendHeader, "No file uploaded"},
		{"extension", "file", "sign.obj", blendHeader, "Please upload a .blend file"},
		{"content", "file", "sign.blend", "just text", "Uploaded file is not a Blender file."},
	}
	for _, tt := range tests {
		conv := &fakeConverter{data: []byte("glTF")}
		r, _ := newTestModule(t, conv)
		code, body := serve(r, uploadRequest(t, tt.field, tt.file, tt.content))
		if code != http.StatusBadRequest || body["error"] != tt.wantError {
			t.Errorf("%s: %d %v", tt.name, code, body)
		}
		if conv.calls != 0 {
			t.Errorf("%s: converter should not run", tt.name)
		}
	}
}

func TestUploadConversionErrors(t *testing.T) {
	tests := []struct {
		name string
		conv *fakeConverter
		want string
	}{
		{"failed", &fakeConverter{err: errors.New("exit status 1")}, "Model conversion failed."},
		{"empty", &fakeConverter{data: nil}, "Conversion resulted in empty file."},
		{"missing", &fakeConverter{err: ErrNoOutput}, "Output file not found after conversion."},
	}
	for _, tt := range tests {
		r, _ := newTestModule(t, tt.conv)
		code, body := serve(r, uploadRequest(t, "file", "sign.blend", blendHeader))
		if code != http.StatusInternalServerError || body["error"] != tt.want {
			t.Errorf("%s: %d %v", tt.name, code, body)
		}
	}
}

func TestConfigAccepts(t *testing.T) {
	t.Setenv("UPLOAD_EXTENSIONS", "blend, FBX")
	t.Setenv("CONVERT_TIMEOUT", "90s")
	cfg := ConfigFromEnv()
	if !cfg.accepts(".blend") || !cfg.accepts(".FBX") || cfg.accepts(".obj") {
		t.Errorf("extensions = %v", cfg.Extensions)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
}

// --- Converter ---

// fakeBlender writes an executable that ignores the script and copies the
// input to the output, optionally sleeping first.
func fakeBlender(t *testing.T, sleep string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	path := filepath.Join(t.TempDir(), "blender")
	script := "#!/bin/sh\n"
	if sleep != "" {
		script += "exec sleep " + sleep + "\n"
	}
	script += "[ \"$1\" = -b ] && [ \"$2\" = -P ] && [ \"$4\" = -- ] || exit 2\ncp \"$5\" \"$6\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBlenderConverter(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.blend")
	out := filepath.Join(dir, "out.glb")
	os.WriteFile(in, []byte(blendHeader), 0o644)

	b := &BlenderConverter{Path: fakeBlender(t, ""), Timeout: 5 * time.Second}
	if err := b.Convert(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != blendHeader {
		t.Errorf("output = %q", data)
	}
	script, err := b.script()
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(script); !bytes.Equal(got, exportScript) {
		t.Error("bundled script not written")
	}

	empty := filepath.Join(dir, "empty.blend")
	os.WriteFile(empty, nil, 0o644)
	if err := b.Convert(context.Background(), empty, filepath.Join(dir, "empty.glb")); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("empty err = %v", err)
	}
}

func TestBlenderConverterTimeout(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.blend")
	os.WriteFile(in, []byte(blendHeader), 0o644)
	b := &BlenderConverter{Path: fakeBlender(t, "5"), Timeout: 50 * time.Millisecond}
	err := b.Convert(context.Background(), in, filepath.Join(dir, "out.glb"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSniffBlend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content []byte
		ok      bool
	}{
		{"plain", []byte(blendHeader), true},
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0, 0, 0, 0, 0}, true},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0, 0}, true},
		{"png", []byte("\x89PNG\r\n\x1a\n"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.name)
		os.WriteFile(path, tt.content, 0o644)
		if err := sniffBlend(path); (err == nil) != tt.ok {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}
}

// --- Client ---

func TestClientUploadModel(t *testing.T) {
	r, _ := newTestModule(t, &fakeConverter{data: []byte("glTF")})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	url, err := c.UploadModel(context.Background(), "/home/me/sign.blend", strings.NewReader(blendHeader))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, srv.URL+"/uploads/") {
		t.Errorf("url = %q, want absolute under %s", url, srv.URL)
	}
	resp, err := srv.Client().Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("model fetch status = %d", resp.StatusCode)
	}

	if _, err := c.UploadModel(context.Background(), "sign.obj", strings.NewReader("x")); err == nil || !strings.Contains(err.Error(), ".blend") {
		t.Errorf("rejected upload err = %v", err)
	}
}
