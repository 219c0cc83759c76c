package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/camera"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func camerasTOML(ids ...string) []byte {
	var b []byte
	for _, id := range ids {
		b = fmt.Appendf(b, "[cameras.%s]\nuri = \"rtsp://10.0.0.1/%s\"\n\n", id, id)
	}
	return b
}

// startCameraWatcher writes an initial cameras file into its own directory
// and starts a watcher on it.
func startCameraWatcher(t *testing.T, debounce time.Duration, opts ...WatcherOption[[]camera.Config]) (string, *Watcher[[]camera.Config]) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cameras.toml")
	if err := os.WriteFile(path, camerasTOML("front"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts = append(opts, WithDebounce[[]camera.Config](debounce))
	w := NewConfigWatcher(path, LoadCameras, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})

	// Wait for watcher to initialize
	time.Sleep(50 * time.Millisecond)
	return path, w
}

func waitCameras(t *testing.T, ch <-chan []camera.Config) []camera.Config {
	t.Helper()
	select {
	case cams := <-ch:
		return cams
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
		return nil
	}
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	received := make(chan []camera.Config, 1)
	path, w := startCameraWatcher(t, 50*time.Millisecond)
	w.OnReload(func(cams []camera.Config) { received <- cams })

	if err := os.WriteFile(path, camerasTOML("front", "yard"), 0o644); err != nil {
		t.Fatal(err)
	}

	cams := waitCameras(t, received)
	if len(cams) != 2 || cams[0].ID != "front" || cams[1].ID != "yard" {
		t.Errorf("got %+v, want front and yard", cams)
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	received := make(chan []camera.Config, 1)
	path, w := startCameraWatcher(t, 50*time.Millisecond)
	w.OnReload(func(cams []camera.Config) { received <- cams })

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, camerasTOML("gate"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	cams := waitCameras(t, received)
	if len(cams) != 1 || cams[0].ID != "gate" {
		t.Errorf("got %+v, want gate", cams)
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	var count atomic.Int32
	path, w := startCameraWatcher(t, 30*time.Millisecond)
	w.OnReload(func([]camera.Config) { count.Add(1) })

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times for an unrelated file", got)
	}
}

func TestConfigWatcher_MultipleHandlers(t *testing.T) {
	var count atomic.Int32
	var mu sync.Mutex
	var seen [][]camera.Config

	path, w := startCameraWatcher(t, 50*time.Millisecond)
	for range 3 {
		w.OnReload(func(cams []camera.Config) {
			count.Add(1)
			mu.Lock()
			seen = append(seen, cams)
			mu.Unlock()
		})
	}

	if err := os.WriteFile(path, camerasTOML("a", "b"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 handlers called, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, cams := range seen {
		if len(cams) != 2 {
			t.Errorf("handler %d got %d cameras", i, len(cams))
		}
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	var count1, count2 atomic.Int32
	path, w := startCameraWatcher(t, 50*time.Millisecond)

	w.OnReload(func([]camera.Config) { count1.Add(1) })
	unsub2 := w.OnReload(func([]camera.Config) { count2.Add(1) })

	// First change - both handlers called
	if err := os.WriteFile(path, camerasTOML("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(250 * time.Millisecond)

	unsub2()

	// Second change - only first handler called
	if err := os.WriteFile(path, camerasTOML("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(250 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	errorReceived := make(chan error, 1)
	configReceived := make(chan []camera.Config, 1)

	path, w := startCameraWatcher(t, 50*time.Millisecond,
		WithErrorHandler[[]camera.Config](func(err error) { errorReceived <- err }))
	w.OnReload(func(cams []camera.Config) { configReceived <- cams })

	if err := os.WriteFile(path, []byte("[cameras.bad]\nuri = \"ftp://nope\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errorReceived:
	case <-configReceived:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	var count atomic.Int32
	var last atomic.Int32

	path, w := startCameraWatcher(t, 200*time.Millisecond)
	w.OnReload(func(cams []camera.Config) {
		count.Add(1)
		last.Store(int32(len(cams)))
	})

	// Rapid changes within debounce window
	ids := []string{"c1", "c2", "c3", "c4", "c5"}
	for i := 1; i <= len(ids); i++ {
		if err := os.WriteFile(path, camerasTOML(ids[:i]...), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final 5 cameras, got %d", got)
	}
}

func TestConfigWatcher_ThreadSafety(t *testing.T) {
	path, w := startCameraWatcher(t, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func([]camera.Config) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	// Trigger some changes while handlers are being added/removed
	for i := range 10 {
		if err := os.WriteFile(path, camerasTOML(fmt.Sprintf("cam%d", i)), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	if err := os.WriteFile(path, camerasTOML("front"), 0o644); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadCameras, newTestLogger(), WithDebounce[[]camera.Config](50*time.Millisecond))
	w.OnReload(func([]camera.Config) { count.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	// Changes after stop should not trigger handler
	if err := os.WriteFile(path, camerasTOML("late"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}
