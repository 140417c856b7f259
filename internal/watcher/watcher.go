// Package watcher submits files dropped into an inbox directory laid out as
// <inbox>/<cm>/<userid>/<file>, using fsnotify with debouncing.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// DoneSuffix is appended to files once they were handled successfully.
const DoneSuffix = ".submitted"

// Drop is a file found in the inbox together with the owner encoded in its path.
type Drop struct {
	Path   string
	CM     int64
	UserID int64
}

// Handler processes one dropped file.
type Handler func(ctx context.Context, d Drop) error

// ParseDrop extracts the course module and user from a path below root.
func ParseDrop(root, path string) (Drop, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || !inDir(root, path) {
		return Drop{}, fmt.Errorf("%s is outside the inbox", path)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return Drop{}, fmt.Errorf("%s: expected <cm>/<userid>/<file>", rel)
	}
	cm, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || cm <= 0 {
		return Drop{}, fmt.Errorf("%s: invalid course module %q", rel, parts[0])
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || userID <= 0 {
		return Drop{}, fmt.Errorf("%s: invalid user id %q", rel, parts[1])
	}
	return Drop{Path: path, CM: cm, UserID: userID}, nil
}

// Watcher watches the inbox and invokes the handler for each new file.
type Watcher struct {
	root        string
	extensions  []string
	handle      Handler
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	ctx         context.Context
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	inflight    map[string]bool
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watcher events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce changes how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for root. extensions filter which files are handled
// (empty = all).
func NewWatcher(root string, extensions []string, handle Handler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        filepath.Clean(root),
		extensions:  extensions,
		handle:      handle,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		inflight:    make(map[string]bool),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the inbox directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start creates the inbox if needed and starts watching it. It runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return fsw.Add(path)
	})
	if err != nil {
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher starting", zap.String("inbox", w.root), zap.Strings("extensions", w.extensions))
	go w.run(ctx, fsw)
	return nil
}

// Run starts the watcher, handles files already waiting in the inbox and blocks until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	w.SyncExistingFiles()
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !inDir(w.root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.accepts(path) {
			w.debounceHandle(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

// handleNewDirectory watches a directory created or moved into the inbox and handles
// the files already inside it.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.syncDirectory(dirPath)
}

func (w *Watcher) accepts(path string) bool {
	if strings.HasSuffix(path, DoneSuffix) || strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return matchExtension(path, w.extensions)
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		eNorm := strings.TrimPrefix(strings.ToLower(e), ".")
		extNorm := strings.TrimPrefix(strings.ToLower(ext), ".")
		if eNorm == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceHandle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.process(path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// process hands a file to the handler and marks it done on success.
func (w *Watcher) process(path string) {
	w.mu.Lock()
	if w.inflight[path] {
		w.mu.Unlock()
		return
	}
	w.inflight[path] = true
	ctx := w.ctx
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
	}()

	if _, err := os.Stat(path); err != nil {
		return
	}
	drop, err := ParseDrop(w.root, path)
	if err != nil {
		w.logger.Debug("watcher skipping file", zap.String("path", path), zap.Error(err))
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.handle(ctx, drop); err != nil {
		w.logger.Warn("failed to handle inbox file",
			zap.String("path", path), zap.Int64("cm", drop.CM), zap.Int64("userid", drop.UserID), zap.Error(err))
		return
	}
	if err := os.Rename(path, path+DoneSuffix); err != nil {
		w.logger.Warn("failed to mark inbox file as submitted", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.accepts(path) {
			w.process(path)
		}
		return nil
	})
}

// SyncExistingFiles handles every waiting file in the inbox.
// Call this after Start() to pick up files dropped while the watcher was not running.
func (w *Watcher) SyncExistingFiles() {
	w.logger.Debug("watcher syncing existing files", zap.String("inbox", w.root))
	w.syncDirectory(w.root)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
