package plaque

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// RunConfig configures a window opened by Run.
type RunConfig struct {
	Title         string
	Width, Height int
	ShowFPS       bool

	// Picker, when set, drives the mouse cursor shape.
	Picker *ColorPicker
	// Update runs once per tick after input is processed and before the
	// scene advances. A non-nil error ends the loop; ebiten.Termination
	// ends it cleanly.
	Update func(dt float32) error
	// Draw runs after the scene is drawn, for HUDs and debug text.
	Draw func(screen *ebiten.Image)
	// Guard, when set, is held while the loop touches the scene. Ticks and
	// frames are skipped while another goroutine holds it; the window keeps
	// showing the last frame.
	Guard TryLocker
}

// TryLocker is satisfied by *sync.Mutex.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

// Run opens a resizable window and drives scene until the window closes or
// Update returns an error. The camera viewport follows the window size.
func Run(scene *Scene, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if cfg.Guard != nil {
		ebiten.SetScreenClearedEveryFrame(false)
	}
	return ebiten.RunGame(newGame(scene, cfg))
}

type game struct {
	scene  *Scene
	cfg    RunConfig
	fps    *fpsCounter
	w, h   int
	cursor Cursor
}

func newGame(scene *Scene, cfg RunConfig) *game {
	g := &game{scene: scene, cfg: cfg}
	if cfg.ShowFPS {
		g.fps = newFPSCounter()
	}
	return g
}

func (g *game) Update() error {
	dt := float32(1) / float32(ebiten.TPS())
	if g.cfg.Guard != nil {
		if !g.cfg.Guard.TryLock() {
			return nil
		}
		defer g.cfg.Guard.Unlock()
	}
	g.scene.ProcessEbitenInput()
	if g.cfg.Picker != nil {
		if c := g.cfg.Picker.Cursor(); c != g.cursor {
			g.cursor = c
			ebiten.SetCursorShape(ebitenCursor(c))
		}
	}
	if g.cfg.Update != nil {
		if err := g.cfg.Update(dt); err != nil {
			return err
		}
	}
	g.scene.Update(dt)
	if g.fps != nil {
		g.fps.update(float64(dt))
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.cfg.Guard != nil {
		if !g.cfg.Guard.TryLock() {
			return
		}
		defer g.cfg.Guard.Unlock()
	}
	g.scene.Draw(screen)
	if g.cfg.Draw != nil {
		g.cfg.Draw(screen)
	}
	if g.fps != nil {
		g.fps.draw(screen)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.w || outsideHeight != g.h {
		if g.cfg.Guard != nil {
			if !g.cfg.Guard.TryLock() {
				return outsideWidth, outsideHeight
			}
			defer g.cfg.Guard.Unlock()
		}
		g.w, g.h = outsideWidth, outsideHeight
		g.scene.Camera().SetViewport(Rect{Width: float64(outsideWidth), Height: float64(outsideHeight)})
	}
	return outsideWidth, outsideHeight
}

func ebitenCursor(c Cursor) ebiten.CursorShapeType {
	if c == CursorCrosshair {
		return ebiten.CursorShapeCrosshair
	}
	return ebiten.CursorShapeDefault
}

// --- FPS counter ---

// fpsCounter renders FPS and TPS into a small image refreshed every half
// second.
type fpsCounter struct {
	img        *ebiten.Image
	lastUpdate float64
	stale      bool
}

func newFPSCounter() *fpsCounter {
	// 100x32 fits "FPS: 60.0\nTPS: 60.0".
	return &fpsCounter{img: ebiten.NewImage(100, 32), stale: true}
}

func (f *fpsCounter) update(dt float64) {
	f.lastUpdate += dt
	if f.lastUpdate >= 0.5 {
		f.lastUpdate = 0
		f.stale = true
	}
}

func (f *fpsCounter) draw(screen *ebiten.Image) {
	if f.stale {
		f.stale = false
		f.img.Fill(color.RGBA{0, 0, 0, 128})
		ebitenutil.DebugPrint(f.img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
	}
	screen.DrawImage(f.img, nil)
}
