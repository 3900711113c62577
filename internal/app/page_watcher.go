package app

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	mcpserver "annotator/internal/mcp"
	"annotator/internal/service"
	"annotator/internal/storage"
)

// EventExternalChange is emitted when another process changed stored
// annotations and open pages were reloaded.
const EventExternalChange = "annotations:external-change"

// fingerprinter is the part of the annotation store the watcher reads.
type fingerprinter interface {
	Fingerprint() (string, error)
}

// approvalLister is the part of the approval store the watcher reads.
type approvalLister interface {
	PendingApprovals() ([]storage.Approval, error)
}

// reloader is the part of the annotation service the watcher drives.
type reloader interface {
	ReloadOpen()
}

// pageWatcher detects writes to the database made by another process (for
// example the standalone MCP server) and reloads the open pages. fsnotify
// events on the database directory trigger a check; a slow ticker covers
// filesystems where notifications are unreliable.
type pageWatcher struct {
	ctx      context.Context
	store    fingerprinter
	svc      reloader
	emitter  service.EventEmitter
	interval time.Duration

	// approvals, when set, surfaces requests queued by a standalone MCP
	// server as mcpserver.EventApprovalRequired, once per request.
	approvals approvalLister

	mu        sync.Mutex
	last      string
	announced map[string]bool

	debounced func(f func())
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

func newPageWatcher(ctx context.Context, store fingerprinter, svc reloader, emitter service.EventEmitter, interval time.Duration) *pageWatcher {
	return &pageWatcher{
		ctx:       ctx,
		store:     store,
		svc:       svc,
		emitter:   emitter,
		interval:  interval,
		announced: make(map[string]bool),
		debounced: debounce.New(150 * time.Millisecond),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start records the current fingerprint and begins watching dir. The poll
// loop runs even when fsnotify cannot be set up; that error is returned.
func (w *pageWatcher) Start(dir string) error {
	w.Acknowledge()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(dir); err != nil {
			watcher.Close()
		} else {
			w.watcher = watcher
		}
	}

	go w.loop()
	return err
}

// Stop terminates the watch loop and waits for it to exit.
func (w *pageWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
		<-w.doneCh
	})
}

// Acknowledge adopts the current fingerprint as known, so our own writes
// do not trigger a reload.
func (w *pageWatcher) Acknowledge() {
	fp, err := w.store.Fingerprint()
	if err != nil {
		return
	}
	w.mu.Lock()
	w.last = fp
	w.mu.Unlock()
}

func (w *pageWatcher) loop() {
	defer close(w.doneCh)

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.watcher != nil {
		events = w.watcher.Events
		errs = w.watcher.Errors
	}

	for {
		select {
		case <-tick:
			w.check()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isDatabaseFile(ev.Name) || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			w.debounced(w.check)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("page watcher: %v", err)
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

// check compares the store fingerprint against the last known one and
// reloads open pages when it moved.
func (w *pageWatcher) check() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	w.checkApprovals()

	fp, err := w.store.Fingerprint()
	if err != nil {
		log.Printf("page watcher: %v", err)
		return
	}
	w.mu.Lock()
	changed := w.last != "" && w.last != fp
	w.last = fp
	w.mu.Unlock()
	if !changed {
		return
	}

	w.svc.ReloadOpen()
	w.emitter.Emit(w.ctx, EventExternalChange, map[string]string{"fingerprint": fp})
}

func (w *pageWatcher) checkApprovals() {
	if w.approvals == nil {
		return
	}
	pending, err := w.approvals.PendingApprovals()
	if err != nil {
		log.Printf("page watcher: %v", err)
		return
	}

	var fresh []storage.Approval
	w.mu.Lock()
	live := make(map[string]bool, len(pending))
	for _, p := range pending {
		live[p.ID] = true
		if !w.announced[p.ID] {
			w.announced[p.ID] = true
			fresh = append(fresh, p)
		}
	}
	// answered or withdrawn requests
	for id := range w.announced {
		if !live[id] {
			delete(w.announced, id)
		}
	}
	w.mu.Unlock()

	for _, p := range fresh {
		w.emitter.Emit(w.ctx, mcpserver.EventApprovalRequired, mcpserver.PendingAction{
			ID:          p.ID,
			Tool:        p.Tool,
			Description: p.Description,
			CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
}

// isDatabaseFile matches the SQLite file and its WAL/SHM companions.
func isDatabaseFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".db") || strings.HasSuffix(base, ".db-wal") || strings.HasSuffix(base, ".db-shm")
}
