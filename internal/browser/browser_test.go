package browser

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1280 || opts.ViewportHeight != 800 {
		t.Errorf("Expected viewport to be 1280x800, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}
}

func TestAliveBeforeStart(t *testing.T) {
	b := New(nil)
	if b.Alive() {
		t.Error("Expected Alive to be false before Start")
	}
}

func TestNewContextBeforeStart(t *testing.T) {
	b := New(nil)
	if _, err := b.NewContext(); err != ErrNotRunning {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	b := New(nil)
	if err := b.Stop(); err != nil {
		t.Errorf("Expected Stop on a never-started browser to be a no-op, got %v", err)
	}
}
