package plaque

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

var (
	// ErrExportInProgress is returned when an export starts while another
	// is running.
	ErrExportInProgress = errors.New("plaque: export already in progress")
	// ErrExportCancelled is returned when an export was cancelled during
	// the ramp.
	ErrExportCancelled = errors.New("plaque: export cancelled")
	// ErrCaptureTimeout is returned when the renderer does not deliver a
	// frame within ExportConfig.CaptureTimeout.
	ErrCaptureTimeout = errors.New("plaque: capture timed out")
	// ErrRendererBusy is returned when a timed-out capture still holds the
	// renderer.
	ErrRendererBusy = errors.New("plaque: renderer busy with a stalled capture")
)

// Renderer is the render surface the exporter drives.
type Renderer interface {
	PixelRatio() float64
	SetPixelRatio(ratio float64)
	// DevicePixelRatio is the display's native density.
	DevicePixelRatio() float64
	// Render draws one frame at the current pixel ratio.
	Render() error
	// Capture reads back the last rendered frame.
	Capture() (image.Image, error)
}

// Downloader saves an exported file. It is fire-and-forget from the
// exporter's point of view; errors are logged.
type Downloader interface {
	Download(ctx context.Context, filename string, data []byte) error
}

// ExportConfig tunes the export sequence. Zero fields take the defaults
// listed beside them.
type ExportConfig struct {
	RampCeiling    int           // 80
	RampStep       int           // 5
	StepDelay      time.Duration // 50ms
	Checkpoint     int           // 90
	QualityFactor  float64       // 4, times the device pixel ratio
	MaxPixelRatio  float64       // 4
	FinishHold     time.Duration // 500ms
	CaptureTimeout time.Duration // 30s
	// Ease shapes the ramp; nil is linear.
	Ease ease.TweenFunc
	// Now stamps filenames; nil is time.Now.
	Now func() time.Time
}

func (c ExportConfig) withDefaults() ExportConfig {
	if c.RampCeiling <= 0 {
		c.RampCeiling = 80
	}
	if c.RampStep <= 0 {
		c.RampStep = 5
	}
	if c.StepDelay <= 0 {
		c.StepDelay = 50 * time.Millisecond
	}
	if c.Checkpoint <= 0 {
		c.Checkpoint = 90
	}
	if c.QualityFactor <= 0 {
		c.QualityFactor = 4
	}
	if c.MaxPixelRatio <= 0 {
		c.MaxPixelRatio = 4
	}
	if c.FinishHold <= 0 {
		c.FinishHold = 500 * time.Millisecond
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = 30 * time.Second
	}
	if c.Ease == nil {
		c.Ease = ease.Linear
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Exporter runs the export sequence: a cancelable progress ramp, a capture
// at raised pixel density, a download and a short completion hold. The
// session it reports through EditorState is the only shared state.
type Exporter struct {
	renderer   Renderer
	downloader Downloader
	state      *EditorState
	cfg        ExportConfig

	mu sync.Mutex
	// stalled is closed when an abandoned capture returns. Nil when no
	// capture is outstanding.
	stalled chan struct{}
}

// NewExporter creates an exporter. A nil state gets a private one.
func NewExporter(r Renderer, d Downloader, state *EditorState, cfg ExportConfig) *Exporter {
	if state == nil {
		state = NewEditorState()
	}
	return &Exporter{renderer: r, downloader: d, state: state, cfg: cfg.withDefaults()}
}

// State returns the state the exporter reports to.
func (e *Exporter) State() *EditorState {
	return e.state
}

// Cancel asks a ramping export to stop. The ramp observes it at its next
// step. It reports whether a ramping export was flagged.
func (e *Exporter) Cancel() bool {
	return e.state.cancelExport()
}

// Busy reports whether an export session or an abandoned capture is using
// the renderer.
func (e *Exporter) Busy() bool {
	return e.state.Export().Active() || e.stalledCapture() != nil
}

func (e *Exporter) stalledCapture() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stalled
}

// Export runs one export to completion and blocks until the session is
// idle again. Cancelling ctx during the ramp is a cancel. The original pixel
// ratio is restored on every return; after a capture timeout the abandoned
// capture restores it once it returns. Capture and download failures close
// the session and are returned.
func (e *Exporter) Export(ctx context.Context) error {
	if !e.state.beginExport() {
		return ErrExportInProgress
	}
	defer e.state.endExport()

	if err := e.waitForRenderer(ctx); err != nil {
		Logger().Info("plaque: export not started", "err", err)
		return err
	}

	original := e.renderer.PixelRatio()
	defer func() {
		if e.stalledCapture() == nil {
			e.renderer.SetPixelRatio(original)
		}
	}()

	if err := e.ramp(ctx); err != nil {
		Logger().Info("plaque: export cancelled")
		return err
	}

	e.state.setExport(ExportCapturing, e.cfg.Checkpoint)
	data, err := e.capture(ctx, original)
	if err != nil {
		Logger().Error("plaque: export capture failed", "err", err)
		e.state.setExport(ExportFinishing, 100)
		return fmt.Errorf("export: %w", err)
	}
	name := ExportFilename(e.cfg.Now())
	if e.downloader != nil {
		if err := e.downloader.Download(ctx, name, data); err != nil {
			Logger().Error("plaque: export download failed", "file", name, "err", err)
			e.state.setExport(ExportFinishing, 100)
			return fmt.Errorf("export download: %w", err)
		}
	}
	Logger().Info("plaque: export saved", "file", name, "bytes", len(data))

	e.state.setExport(ExportFinishing, 100)
	sleepCtx(ctx, e.cfg.FinishHold)
	return nil
}

// waitForRenderer blocks while an abandoned capture from an earlier session
// still holds the renderer. The wait is cancelable like the ramp and gives
// up with ErrRendererBusy after CaptureTimeout.
func (e *Exporter) waitForRenderer(ctx context.Context) error {
	deadline := time.Now().Add(e.cfg.CaptureTimeout)
	for {
		ch := e.stalledCapture()
		if ch == nil {
			return nil
		}
		if e.state.exportCancelled() || ctx.Err() != nil {
			return ErrExportCancelled
		}
		if !time.Now().Before(deadline) {
			return ErrRendererBusy
		}
		t := time.NewTimer(e.cfg.StepDelay)
		select {
		case <-ch:
		case <-t.C:
		case <-ctx.Done():
		}
		t.Stop()
	}
}

// ramp advances progress to the ceiling, rendering a frame and yielding
// on every step. It returns ErrExportCancelled when the cancel flag or ctx
// is seen at a step boundary.
func (e *Exporter) ramp(ctx context.Context) error {
	steps := e.cfg.RampCeiling / e.cfg.RampStep
	if steps < 1 {
		steps = 1
	}
	tw := gween.New(0, float32(e.cfg.RampCeiling), float32(steps), e.cfg.Ease)
	for i := 0; i < steps; i++ {
		if e.state.exportCancelled() || ctx.Err() != nil {
			return ErrExportCancelled
		}
		v, _ := tw.Update(1)
		e.state.setExport(ExportRamping, int(math.Round(float64(v))))
		if err := e.renderer.Render(); err != nil {
			Logger().Warn("plaque: export preview render failed", "err", err)
		}
		if !sleepCtx(ctx, e.cfg.StepDelay) {
			return ErrExportCancelled
		}
	}
	if e.state.exportCancelled() {
		return ErrExportCancelled
	}
	return nil
}

// capture raises the pixel ratio, renders and encodes one frame. A capture
// that does not finish within CaptureTimeout, or outlives ctx, is abandoned:
// it skips any renderer call it has not started, restores original itself
// and clears e.stalled when it returns.
func (e *Exporter) capture(ctx context.Context, original float64) ([]byte, error) {
	ratio := math.Min(e.renderer.DevicePixelRatio()*e.cfg.QualityFactor, e.cfg.MaxPixelRatio)
	e.renderer.SetPixelRatio(ratio)

	type result struct {
		data []byte
		err  error
	}
	var (
		mu        sync.Mutex
		finished  bool
		abandoned bool
	)
	isAbandoned := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return abandoned
	}
	release := make(chan struct{})
	done := make(chan result, 1)
	go func() {
		defer func() {
			mu.Lock()
			finished = true
			late := abandoned
			mu.Unlock()
			if !late {
				return
			}
			e.renderer.SetPixelRatio(original)
			e.mu.Lock()
			if e.stalled == release {
				e.stalled = nil
			}
			e.mu.Unlock()
			close(release)
			Logger().Warn("plaque: abandoned export capture returned")
		}()
		if err := e.renderer.Render(); err != nil {
			done <- result{err: fmt.Errorf("render: %w", err)}
			return
		}
		if isAbandoned() {
			return
		}
		img, err := e.renderer.Capture()
		if err != nil {
			done <- result{err: fmt.Errorf("read back: %w", err)}
			return
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			done <- result{err: fmt.Errorf("encode png: %w", err)}
			return
		}
		done <- result{data: buf.Bytes()}
	}()

	// abandon hands the renderer to the goroutine unless it already
	// finished.
	abandon := func(err error) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if !finished {
			abandoned = true
			e.mu.Lock()
			e.stalled = release
			e.mu.Unlock()
		}
		return nil, err
	}

	timer := time.NewTimer(e.cfg.CaptureTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.data, r.err
	case <-timer.C:
		return abandon(ErrCaptureTimeout)
	case <-ctx.Done():
		return abandon(ctx.Err())
	}
}

// ExportFilename returns "render-<ISO 8601 UTC>.png" with ':' and '.'
// replaced by '-', e.g. render-2024-05-01T10-20-30-123Z.png.
func ExportFilename(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "render-" + stamp + ".png"
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
