package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ducklint/internal/config"
	"ducklint/internal/declarations"
	"ducklint/internal/host"
	"ducklint/internal/parsing"
	"ducklint/internal/project"
	"ducklint/internal/slogutil"
	"ducklint/internal/vba"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func defaultConfig() Config {
	return ConfigFrom(config.DefaultConfig().Watch)
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventRename, "rename"},
		{EventType(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.eventType.String())
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.WatchConfig{DebounceMs: 250, Include: []string{"**/*.bas"}})
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, []string{"**/*.bas"}, cfg.Include)
}

func TestNew_RejectsInvalidGlob(t *testing.T) {
	_, err := New(t.TempDir(), Config{Include: []string{"[unclosed"}}, slogutil.NewDiscardLogger(), nil)
	var cfgErr *config.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestMatches(t *testing.T) {
	w, err := New(t.TempDir(), defaultConfig(), slogutil.NewDiscardLogger(), nil)
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"Main.bas", true},
		{"src/Shape.cls", true},
		{"forms/Dialog.frm", true},
		{"vbaproject.toml", true},
		{"notes.txt", false},
		{".ducklint/export/Main.bas", false},
		{"src/~$Main.bas", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Matches(tt.path))
		})
	}
}

func TestBatchDebouncer_EmitsOnceAfterQuietPeriod(t *testing.T) {
	var mu sync.Mutex
	var batches [][]Event
	done := make(chan struct{}, 1)
	b := NewBatchDebouncer(30*time.Millisecond, func(events []Event) {
		mu.Lock()
		batches = append(batches, events)
		mu.Unlock()
		done <- struct{}{}
	})

	for _, p := range []string{"a", "b", "c"} {
		b.Add(Event{Path: p})
	}
	assert.Equal(t, 3, b.EventCount())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not emitted")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Zero(t, b.EventCount())
}

func TestBatchDebouncer_CancelAndFlush(t *testing.T) {
	var emitted []Event
	b := NewBatchDebouncer(time.Hour, func(events []Event) { emitted = append(emitted, events...) })

	b.Add(Event{Path: "a"})
	b.Cancel()
	assert.Zero(t, b.EventCount())

	b.Add(Event{Path: "b"})
	b.Flush()
	require.Len(t, emitted, 1)
	assert.Equal(t, "b", emitted[0].Path)

	b.Flush()
	assert.Len(t, emitted, 1)
}

func TestCoalesce(t *testing.T) {
	events := coalesce([]Event{
		{Path: "a", Type: EventCreate},
		{Path: "b", Type: EventModify},
		{Path: "a", Type: EventModify},
	})
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Path)
	assert.Equal(t, EventModify, events[0].Type)
	assert.Equal(t, "b", events[1].Path)
}

// collect starts a watcher on root and returns a channel of delivered
// batches. The watcher is stopped when the test ends.
func collect(t *testing.T, root string) <-chan []Event {
	t.Helper()
	ch := make(chan []Event, 16)
	cfg := defaultConfig()
	cfg.Debounce = 20 * time.Millisecond
	w, err := New(root, cfg, slogutil.NewDiscardLogger(), func(events []Event) { ch <- events })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, w.Stop()) })
	return ch
}

func waitFor(t *testing.T, ch <-chan []Event, rel string, poke func()) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	poke()
	for {
		select {
		case events := <-ch:
			for _, e := range events {
				if e.RelPath == rel {
					return e
				}
			}
		case <-tick.C:
			poke()
		case <-deadline:
			t.Fatalf("no event for %s", rel)
		}
	}
}

func TestWatcher_ReportsModuleEdits(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Main.bas")
	require.NoError(t, os.WriteFile(path, []byte("Attribute VB_Name = \"Main\"\r\n"), 0644))
	ch := collect(t, root)

	e := waitFor(t, ch, "Main.bas", func() {
		_ = os.WriteFile(path, []byte("Attribute VB_Name = \"Main\"\r\nOption Explicit\r\n"), 0644)
	})
	assert.Equal(t, path, filepath.Clean(e.Path))
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	ch := collect(t, root)

	dir := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(dir, 0755))
	waitFor(t, ch, "src/Shape.cls", func() {
		_ = os.WriteFile(filepath.Join(dir, "Shape.cls"), []byte("Option Explicit\r\n"), 0644)
	})
}

type fakeLocator map[string]declarations.QualifiedModuleName

func (f fakeLocator) ModuleForPath(path string) (declarations.QualifiedModuleName, bool) {
	m, ok := f[path]
	return m, ok
}

type fakeReparser struct {
	marked   []string
	requests int
}

func (f *fakeReparser) MarkModified(m declarations.QualifiedModuleName) {
	f.marked = append(f.marked, m.ComponentName)
}

func (f *fakeReparser) RequestReparse(context.Context) { f.requests++ }

func TestReparseOnChange(t *testing.T) {
	locator := fakeLocator{"/p/Main.bas": {ProjectID: "P", ComponentName: "Main"}}
	state := &fakeReparser{}
	handler := ReparseOnChange(context.Background(), locator, state, slogutil.NewDiscardLogger())

	handler([]Event{{Path: "/p/Main.bas"}, {Path: "/p/New.bas"}})

	assert.Equal(t, []string{"Main"}, state.marked)
	assert.Equal(t, 1, state.requests)
}

func TestReparseOnChange_DirectoryProject(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Main.bas")
	require.NoError(t, os.WriteFile(path, []byte("Attribute VB_Name = \"Main\"\r\nPublic Sub Run()\r\nEnd Sub\r\n"), 0644))

	logger := slogutil.NewDiscardLogger()
	manifest, err := project.LoadManifest(root)
	require.NoError(t, err)
	dir, err := host.NewDirectory(root, manifest, logger)
	require.NoError(t, err)
	state := parsing.NewState(dir, vba.NewParser(logger, 1), logger)
	require.NoError(t, state.Reparse(context.Background()))
	generation := state.Generation()

	module, ok := dir.ModuleForPath(dir.Root() + string(filepath.Separator) + "Main.bas")
	require.True(t, ok)
	require.False(t, state.IsNewOrModified(module))

	require.NoError(t, os.WriteFile(path, []byte("Attribute VB_Name = \"Main\"\r\nPublic Sub Walk()\r\nEnd Sub\r\n"), 0644))
	handler := ReparseOnChange(context.Background(), dir, state, logger)
	handler([]Event{{Path: filepath.Join(dir.Root(), "Main.bas"), RelPath: "Main.bas"}})
	state.Wait()

	assert.Greater(t, state.Generation(), generation)
	assert.False(t, state.IsNewOrModified(module))
	assert.NotEmpty(t, state.Graph().Member(module, "Walk"))
}
