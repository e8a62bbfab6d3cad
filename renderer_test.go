package plaque

import "testing"

// --- nextPowerOfTwo ---

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{0, 1},
		{1, 1},
		{3, 4},
		{5, 8},
		{129, 256},
		{1000, 1024},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.input); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// --- Pool ---

func TestPoolAcquireReturnsPow2(t *testing.T) {
	var pool renderTexturePool
	img := pool.Acquire(100, 50)
	defer pool.Release(img)

	b := img.Bounds()
	if b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("size = %dx%d, want 128x64", b.Dx(), b.Dy())
	}
}

func TestPoolReleaseAndReacquire(t *testing.T) {
	var pool renderTexturePool
	img1 := pool.Acquire(64, 64)
	pool.Release(img1)

	img2 := pool.Acquire(64, 64)
	if img1 != img2 {
		t.Error("expected pool to return the same image after release")
	}
	pool.Release(img2)
	pool.Dispose()
	if len(pool.buckets) != 0 {
		t.Error("dispose should empty the pool")
	}
}

func TestPoolReleaseNilNoPanic(t *testing.T) {
	var pool renderTexturePool
	pool.Release(nil)
}

// --- Offscreen renderer ---

func TestOffscreenRendererPixelRatio(t *testing.T) {
	r := NewOffscreenRenderer(nil, 400, 300, 0)
	if r.DevicePixelRatio() != 1 || r.PixelRatio() != 1 {
		t.Errorf("ratios = %v / %v, want 1 / 1", r.DevicePixelRatio(), r.PixelRatio())
	}
	r.SetPixelRatio(4)
	if w, h := r.PixelSize(); w != 1600 || h != 1200 {
		t.Errorf("PixelSize = %dx%d, want 1600x1200", w, h)
	}
	r.SetPixelRatio(-1)
	if r.PixelRatio() != 4 {
		t.Error("invalid ratio should be ignored")
	}
	r.SetSize(4000, 10)
	if w, _ := r.PixelSize(); w != maxRenderPixels {
		t.Errorf("width = %d, want clamp %d", w, maxRenderPixels)
	}
}

func TestOffscreenRendererErrors(t *testing.T) {
	r := NewOffscreenRenderer(nil, 10, 10, 2)
	if err := r.Render(); err == nil {
		t.Error("render without scene should fail")
	}
	if _, err := r.Capture(); err == nil {
		t.Error("capture before render should fail")
	}
}
