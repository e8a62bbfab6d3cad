package plaque

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
)

// DefaultMaxImageSize bounds the longer edge of loaded overlay images.
const DefaultMaxImageSize = 2048

// maxImageBytes caps downloads and decoded data URLs.
const maxImageBytes = 32 << 20

// ErrUnsupportedImage is returned for sources that are not PNG, JPEG or GIF.
var ErrUnsupportedImage = errors.New("plaque: unsupported image type")

// LoadedImage is one decoded and uploaded overlay image.
type LoadedImage struct {
	URL     string
	Texture Texture
	Width   int
	Height  int
	// Err records a failed load so the URL is not fetched again until it
	// is pruned.
	Err error
}

// ImageLoader resolves overlay URLs to textures. It accepts http(s) URLs,
// file:// URLs, plain paths (relative to BaseDir) and data: URLs, and caches
// one texture per URL. Not safe for concurrent use.
type ImageLoader struct {
	// BaseDir resolves relative paths. Empty means the working directory.
	BaseDir string
	// MaxSize bounds the longer edge; larger images are downscaled.
	MaxSize int

	client  *http.Client
	upload  TextureUploader
	entries map[string]*LoadedImage
}

// NewImageLoader creates a loader. A nil client uses http.DefaultClient and
// a nil upload uses EbitenUploader.
func NewImageLoader(client *http.Client, upload TextureUploader) *ImageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if upload == nil {
		upload = EbitenUploader
	}
	return &ImageLoader{
		MaxSize: DefaultMaxImageSize,
		client:  client,
		upload:  upload,
		entries: make(map[string]*LoadedImage),
	}
}

// Load returns the cached image for rawURL, fetching, decoding and
// uploading it on first use. Failures are cached too and returned until the
// URL is pruned.
func (l *ImageLoader) Load(ctx context.Context, rawURL string) (*LoadedImage, error) {
	if e, ok := l.entries[rawURL]; ok {
		return e, e.Err
	}
	e := &LoadedImage{URL: rawURL}
	img, err := l.decode(ctx, rawURL)
	if err != nil {
		e.Err = err
		l.entries[rawURL] = e
		Logger().Warn("plaque: image load failed", "url", truncateURL(rawURL), "err", err)
		return e, err
	}
	if limit := l.MaxSize; limit > 0 {
		b := img.Bounds()
		if b.Dx() > limit || b.Dy() > limit {
			img = imaging.Fit(img, limit, limit, imaging.Lanczos)
		}
	}
	b := img.Bounds()
	e.Texture = l.upload(img)
	e.Width, e.Height = b.Dx(), b.Dy()
	l.entries[rawURL] = e
	return e, nil
}

// Entry returns the cached image for rawURL without loading.
func (l *ImageLoader) Entry(rawURL string) (*LoadedImage, bool) {
	e, ok := l.entries[rawURL]
	return e, ok
}

// Prune deallocates every image whose URL is not in live and returns how
// many were removed.
func (l *ImageLoader) Prune(live map[string]struct{}) int {
	n := 0
	for u, e := range l.entries {
		if _, ok := live[u]; ok {
			continue
		}
		if e.Texture != nil {
			e.Texture.Deallocate()
		}
		delete(l.entries, u)
		n++
	}
	return n
}

// DisposeAll deallocates every cached image.
func (l *ImageLoader) DisposeAll() {
	l.Prune(nil)
}

// Len returns the number of cached URLs, failed ones included.
func (l *ImageLoader) Len() int {
	return len(l.entries)
}

func (l *ImageLoader) decode(ctx context.Context, rawURL string) (image.Image, error) {
	data, err := l.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// fetch returns the raw bytes behind rawURL.
func (l *ImageLoader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return fetchSource(ctx, l.client, l.BaseDir, rawURL, maxImageBytes)
}

// fetchSource reads data:, http(s), file:// and plain path sources, refusing
// anything larger than limit bytes.
func fetchSource(ctx context.Context, client *http.Client, baseDir, rawURL string, limit int64) ([]byte, error) {
	switch {
	case strings.HasPrefix(rawURL, "data:"):
		return decodeDataURL(rawURL)
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return fetchHTTP(ctx, client, rawURL, limit)
	case strings.HasPrefix(rawURL, "file://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		return readFileLimited(u.Path, limit)
	case rawURL == "":
		return nil, errors.New("plaque: empty source url")
	default:
		return readFileLimited(resolvePath(baseDir, rawURL), limit)
	}
}

func resolvePath(baseDir, p string) string {
	if !filepath.IsAbs(p) && baseDir != "" {
		return filepath.Join(baseDir, p)
	}
	return p
}

func fetchHTTP(ctx context.Context, client *http.Client, rawURL string, limit int64) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("source exceeds %d bytes", limit)
	}
	return data, nil
}

func readFileLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, limit)
	}
	return data, nil
}

// decodeDataURL returns the payload of a data: URL. Both base64 and
// percent-encoded payloads are accepted.
func decodeDataURL(raw string) ([]byte, error) {
	rest := strings.TrimPrefix(raw, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("plaque: malformed data url")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return []byte(s), nil
}

// DecodeImage sniffs data and decodes PNG, JPEG or GIF. JPEG EXIF
// orientation is applied.
func DecodeImage(data []byte) (image.Image, error) {
	kind, _ := filetype.Match(data)
	switch kind.MIME.Value {
	case "image/png", "image/jpeg", "image/gif":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, kind.MIME.Value)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// truncateURL keeps data URLs out of logs.
func truncateURL(u string) string {
	if len(u) > 96 {
		return u[:96] + "..."
	}
	return u
}
