package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"annotator/internal/domain"
	"annotator/internal/export"
	"annotator/internal/ink"
	"annotator/internal/service"
	"annotator/internal/storage"
)

// App wires storage, the annotation service, the frame clock and the store
// watcher together. A host UI drives it through OpenPage and the returned
// sessions.
type App struct {
	ctx context.Context
	cfg Config

	db        *storage.DB
	store     *storage.AnnotationStore
	snapshots *storage.SnapshotStore
	approvals *storage.ApprovalStore
	settings  *service.ToolSettingsService
	svc       *service.AnnotationService

	emitter service.EventEmitter
	clock   *ink.FrameClock
	watcher *pageWatcher
}

// New creates a new App. Nothing is opened until Startup.
func New(cfg Config, emitter service.EventEmitter) *App {
	if emitter == nil {
		emitter = service.LogEmitter{}
	}
	return &App{cfg: cfg, emitter: emitter}
}

// Startup opens the database and starts the background loops.
func (a *App) Startup(ctx context.Context) error {
	a.ctx = ctx

	db, err := storage.New(a.cfg.dbPath(), a.cfg.exportDir())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.store = storage.NewAnnotationStore(db)
	a.snapshots = storage.NewSnapshotStore(db)
	a.approvals = storage.NewApprovalStore(db)
	a.settings = service.NewToolSettingsService(db)

	mapper := ink.Mapper{Mode: a.cfg.Mode}
	a.svc = service.NewAnnotationService(a.store, a.snapshots, a.settings, &selfWriteFilter{app: a}, service.SessionConfig{
		Mapper:    mapper,
		Render:    ink.Options{Smooth: true},
		SaveDelay: a.cfg.SaveDelay,
	})
	a.svc.Startup(ctx)

	if a.cfg.Maintenance != "" {
		if err := a.svc.StartMaintenance(a.cfg.Maintenance); err != nil {
			log.Printf("app: %v", err)
		}
	}

	if a.cfg.FrameInterval > 0 {
		a.clock = ink.NewFrameClock(a.cfg.FrameInterval, a.renderFrames)
		a.clock.Start()
	}

	a.watcher = newPageWatcher(ctx, a.store, a.svc, a.emitter, a.cfg.WatchInterval)
	a.watcher.approvals = a.approvals
	if err := a.watcher.Start(filepath.Dir(a.cfg.dbPath())); err != nil {
		log.Printf("app: store watcher disabled: %v", err)
	}
	return nil
}

// Shutdown flushes open pages and closes everything Startup opened.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.clock != nil {
		a.clock.Stop()
	}
	if a.svc != nil {
		a.svc.Shutdown(ctx)
	}
	if a.db != nil {
		a.db.Close()
	}
}

// Service exposes the annotation service, e.g. to an MCP server.
func (a *App) Service() *service.AnnotationService { return a.svc }

// OpenPage installs (or returns) the annotation session for a page.
func (a *App) OpenPage(path string) (*service.AnnotationSession, error) {
	return a.svc.OpenSession(path)
}

// ClosePage flushes and drops the session for a page.
func (a *App) ClosePage(path string) error {
	key, err := service.PageKey(path)
	if err != nil {
		return err
	}
	if sess, ok := a.svc.Session(key); ok {
		sess.Close()
	}
	return nil
}

// Pages lists every page with stored annotations.
func (a *App) Pages() ([]service.PageSummary, error) {
	return a.svc.ListPages()
}

// ToolSettings returns the persisted tool settings.
func (a *App) ToolSettings() domain.ToolSettings {
	return a.settings.Load()
}

// SaveToolSettings persists ts and applies it to every open page.
func (a *App) SaveToolSettings(ts domain.ToolSettings) error {
	ts = ink.NormalizeSettings(ts)
	if err := a.settings.Save(ts); err != nil {
		return err
	}
	for _, sess := range a.svc.Sessions() {
		if err := sess.UpdateSettings(ts); err != nil {
			return err
		}
	}
	return nil
}

// PendingApprovals lists destructive MCP calls waiting for an answer.
func (a *App) PendingApprovals() ([]storage.Approval, error) {
	return a.approvals.PendingApprovals()
}

// ResolveApproval answers a pending MCP call; the waiting server picks the
// answer up on its next poll.
func (a *App) ResolveApproval(id string, approved bool) error {
	if err := a.approvals.ResolveApproval(id, approved); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no pending approval %s", id)
		}
		return err
	}
	return nil
}

// RenderPNG exports the strokes of a page to a PNG file.
func (a *App) RenderPNG(path, out string, opts export.Options) (int, error) {
	drawings, err := a.svc.LoadDrawings(path)
	if err != nil {
		return 0, err
	}
	if err := export.SavePNG(a.exportPath(out), drawings, opts); err != nil {
		return 0, err
	}
	return len(drawings), nil
}

// ExportPDF exports the strokes of a page to a PDF file.
func (a *App) ExportPDF(path, out string, opts export.Options) (int, error) {
	drawings, err := a.svc.LoadDrawings(path)
	if err != nil {
		return 0, err
	}
	if err := export.SavePDF(a.exportPath(out), drawings, opts); err != nil {
		return 0, err
	}
	return len(drawings), nil
}

// exportPath resolves a bare file name into the export directory.
func (a *App) exportPath(out string) string {
	if filepath.IsAbs(out) || filepath.Dir(out) != "." {
		return out
	}
	return filepath.Join(a.db.DataDir(), out)
}

func (a *App) renderFrames() {
	for _, sess := range a.svc.Sessions() {
		sess.Frame()
	}
}

// selfWriteFilter forwards service events and tells the watcher about our
// own writes so they are not mistaken for another process.
type selfWriteFilter struct {
	app *App
}

func (f *selfWriteFilter) Emit(ctx context.Context, event string, data any) {
	if event == service.EventPersisted && f.app.watcher != nil {
		f.app.watcher.Acknowledge()
	}
	f.app.emitter.Emit(ctx, event, data)
}
