package configauthority

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the burst of fsnotify events a single atomic file
// replace (write to tmp + rename) tends to produce.
const debounce = 500 * time.Millisecond

// Holder owns the currently active Snapshot and keeps it fresh from disk.
// Reloads never mutate an existing *Snapshot; Swap replaces the atomic
// pointer wholesale so concurrent readers always see either the old or the
// new snapshot in full, never a partially-applied one. A failed reload
// leaves the previous snapshot in place (last-known-good) and records the
// failure in LastError for observability. Grounded on ManuGH-xg2g's
// internal/config/reload.go ConfigHolder.
type Holder struct {
	loader *Loader
	path   string
	logger *slog.Logger

	epoch    atomic.Uint64
	snapshot atomic.Pointer[Snapshot]

	mu         sync.Mutex // serializes reload attempts
	lastHash   string
	lastError  error
	lastReload time.Time

	listenersMu sync.Mutex
	listeners   []chan *Snapshot

	events *EventLog
}

// NewHolder constructs a Holder that reads from path. It does not load
// anything until LoadInitial is called.
func NewHolder(loader *Loader, path string, logger *slog.Logger, events *EventLog) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{loader: loader, path: path, logger: logger, events: events}
}

// Current returns the currently active Snapshot, or nil if none has loaded
// successfully yet.
func (h *Holder) Current() *Snapshot {
	return h.snapshot.Load()
}

// Epoch returns the number of successful reloads applied so far.
func (h *Holder) Epoch() uint64 {
	return h.epoch.Load()
}

// LastError returns the error from the most recent failed reload attempt, or
// nil if the most recent attempt succeeded (or none has run).
func (h *Holder) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastError
}

// LoadInitial performs the first load. Unlike later reloads, a failure here
// is returned to the caller rather than swallowed, since there is no
// previous snapshot to fall back to.
func (h *Holder) LoadInitial() (*Snapshot, error) {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("configauthority: read %s: %w", h.path, err)
	}
	snap, err := h.loader.Load(string(raw), h.path)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.lastHash = snap.Derived.ConfigHash
	h.lastError = nil
	h.lastReload = time.Now()
	h.mu.Unlock()

	h.snapshot.Store(snap)
	h.epoch.Add(1)
	h.emitEvent("config_applied", "", snap.Derived.ConfigHash, "")
	h.notify(snap)
	return snap, nil
}

// Reload re-reads the config file and swaps the snapshot in if it parses and
// validates. On failure the previous snapshot is kept and the error is
// recorded. The error is also returned to the caller; the background watch
// loop only logs it, while an on-demand reload request reports it.
func (h *Holder) Reload(ctx context.Context) (*Snapshot, error) {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		h.recordFailure(err)
		return nil, err
	}

	oldHash := ""
	if cur := h.Current(); cur != nil {
		oldHash = cur.Derived.ConfigHash
	}

	snap, err := h.loader.Load(string(raw), h.path)
	if err != nil {
		h.recordFailure(err)
		h.emitEvent("config_rejected", oldHash, "", err.Error())
		return nil, err
	}

	h.mu.Lock()
	h.lastHash = snap.Derived.ConfigHash
	h.lastError = nil
	h.lastReload = time.Now()
	h.mu.Unlock()

	h.snapshot.Store(snap)
	h.epoch.Add(1)
	h.emitEvent("config_applied", oldHash, snap.Derived.ConfigHash, "")
	h.notify(snap)
	return snap, nil
}

func (h *Holder) recordFailure(err error) {
	h.mu.Lock()
	h.lastError = err
	h.mu.Unlock()
	h.logger.Error("config reload failed, keeping previous snapshot", "error", err, "path", h.path)
}

// RegisterListener returns a channel that receives every successfully
// applied Snapshot. Sends are non-blocking: a slow or absent receiver never
// stalls the reload path, it just misses intermediate snapshots.
func (h *Holder) RegisterListener() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, ch)
	h.listenersMu.Unlock()
	return ch
}

func (h *Holder) notify(snap *Snapshot) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	for _, ch := range h.listeners {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (h *Holder) emitEvent(eventType, oldHash, newHash, errMsg string) {
	if h.events == nil {
		return
	}
	if err := h.events.Append(Event{
		Type:     eventType,
		OldHash:  oldHash,
		NewHash:  newHash,
		Error:    errMsg,
		Source:   h.path,
	}); err != nil {
		h.logger.Warn("failed to write config event log", "error", err)
	}
}

// Watch starts an fsnotify watcher on the config file's parent directory
// (required because editors and `kubectl cp`/atomic-replace tooling write a
// temp file and rename it over the target, which fsnotify only observes as
// events on the containing directory) and debounces bursts of events into a
// single Reload call. It blocks until ctx is canceled.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configauthority: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("configauthority: watch %s: %w", dir, err)
	}

	var timer *time.Timer
	reload := func() {
		if _, err := h.Reload(ctx); err != nil {
			h.logger.Error("watched reload failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(h.path) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("config watcher error", "error", err)
		}
	}
}
