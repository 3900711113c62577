package service

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/bep/debounce"
	"golang.org/x/image/draw"

	"annotator/internal/domain"
	"annotator/internal/ink"
	"annotator/internal/storage"
)

// ErrStrokeDiscarded is returned by Commit for strokes the commit rules
// reject, such as a pen stroke with a single point.
var ErrStrokeDiscarded = errors.New("annotations: stroke discarded")

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("annotations: session closed")

// AnnotationSession is the annotation layer of one page: its strokes, the
// capture state machine, both raster layers and the debounced saver.
// Every method is serialized by one mutex.
type AnnotationSession struct {
	svc  *AnnotationService
	key  string
	path string

	mu       sync.Mutex
	drawings []domain.Stroke
	capture  *ink.Capture
	comp     *ink.Compositor
	frames   *ink.Frames
	vp       domain.Viewport
	closed   bool

	// dirty is set by every change and cleared once a write is taken.
	dirty     bool
	cleared   bool
	lastLabel string

	saveMu    sync.Mutex
	debounced func(f func())
}

func newSession(svc *AnnotationService, key, path string) *AnnotationSession {
	s := &AnnotationSession{
		svc:       svc,
		key:       key,
		path:      path,
		capture:   ink.NewCapture(svc.cfg.Capture),
		comp:      ink.NewCompositor(svc.cfg.Render),
		debounced: debounce.New(svc.cfg.SaveDelay),
	}
	s.capture.SetSettings(svc.settings.Load())
	s.frames = ink.NewFrames(s.renderFrame)
	return s
}

func (s *AnnotationSession) Key() string  { return s.key }
func (s *AnnotationSession) Path() string { return s.path }

// load reads the stored record. Unreadable records are deleted.
func (s *AnnotationSession) load() {
	rec, err := s.svc.store.GetPage(s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.drawings = []domain.Stroke{}
		return
	}
	if err != nil {
		log.Printf("annotations: load %s failed, starting empty: %v", s.key, err)
		s.drawings = []domain.Stroke{}
		s.warn(err)
		return
	}
	drawings, err := ink.Decode([]byte(rec.Data), s.capture.Settings())
	if err != nil {
		log.Printf("annotations: discarding unreadable record %s: %v", s.key, err)
		if derr := s.svc.store.DeletePage(s.key); derr != nil {
			log.Printf("annotations: delete %s failed: %v", s.key, derr)
		}
	}
	s.drawings = drawings
}

// renderFrame runs under s.mu via Frame.
func (s *AnnotationSession) renderFrame() {
	if err := s.comp.RenderVisible(s.capture.Live()); err != nil {
		log.Printf("annotations: render %s: %v", s.key, err)
	}
}

// renderNowLocked drops any pending frame and shows the committed state
// plus the live stroke immediately.
func (s *AnnotationSession) renderNowLocked() {
	s.frames.Cancel()
	s.renderFrame()
}

func (s *AnnotationSession) rebuildLocked() {
	if err := s.comp.RebuildCommitted(s.drawings); err != nil {
		log.Printf("annotations: rebuild %s: %v", s.key, err)
	}
}

func (s *AnnotationSession) markDirtyLocked(label string) {
	s.dirty = true
	s.cleared = false
	s.lastLabel = label
	s.debounced(s.persistQuiet)
}

// ── Input ──────────────────────────────────────────────────

// HandlePointer feeds one pointer event through the capture state machine
// and applies the resulting effect.
func (s *AnnotationSession) HandlePointer(ev ink.PointerEvent) ink.Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ink.Effect{}
	}

	eff := s.capture.Handle(ev, s.vp)
	switch eff.Kind {
	case ink.EffectRender:
		s.frames.Request()
	case ink.EffectAbort:
		s.renderNowLocked()
	case ink.EffectCommit:
		s.applyLocked(eff.Stroke)
	case ink.EffectUndo:
		s.undoLocked()
	case ink.EffectPan:
		s.panLocked(eff.PanDX, eff.PanDY)
	}
	return eff
}

// SetEnabled toggles annotation mode. Turning it off abandons the live
// stroke and shows only committed strokes.
func (s *AnnotationSession) SetEnabled(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture.SetEnabled(on)
	if !on {
		s.renderNowLocked()
	}
}

func (s *AnnotationSession) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture.Enabled()
}

// SetTool switches the active tool and persists the choice.
func (s *AnnotationSession) SetTool(tool domain.Tool) error {
	if !tool.Valid() {
		return fmt.Errorf("unknown tool %q", tool)
	}
	s.mu.Lock()
	ts := s.capture.Settings()
	ts.Tool = tool
	s.mu.Unlock()
	return s.UpdateSettings(ts)
}

// UpdateSettings replaces the toolbar settings for the next stroke and
// persists them. A storage failure is reported but the settings apply.
func (s *AnnotationSession) UpdateSettings(ts domain.ToolSettings) error {
	s.mu.Lock()
	s.capture.SetSettings(ts)
	ts = s.capture.Settings()
	s.mu.Unlock()

	if s.svc.settings == nil {
		return nil
	}
	if err := s.svc.settings.Save(ts); err != nil {
		log.Printf("annotations: save tool settings: %v", err)
		return err
	}
	return nil
}

func (s *AnnotationSession) Settings() domain.ToolSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture.Settings()
}

// SetViewport records the visible area. The committed layer is rebuilt only
// when the content size changes.
func (s *AnnotationSession) SetViewport(vp domain.Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp = vp
	if _, err := s.comp.Resize(vp, s.drawings); err != nil {
		return err
	}
	s.renderNowLocked()
	return nil
}

func (s *AnnotationSession) Viewport() domain.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp
}

// Frame runs the pending render, if any. Driven by a FrameClock.
func (s *AnnotationSession) Frame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.frames.Run()
}

func (s *AnnotationSession) panLocked(dx, dy float64) {
	cw, ch := s.vp.Content()
	s.vp.ScrollX = clampScroll(s.vp.ScrollX-dx, cw-s.vp.Width)
	s.vp.ScrollY = clampScroll(s.vp.ScrollY-dy, ch-s.vp.Height)
	s.comp.Scroll(s.vp.ScrollX, s.vp.ScrollY)
	s.frames.Request()
}

func clampScroll(v float64, max int) float64 {
	if v < 0 || max <= 0 {
		return 0
	}
	if v > float64(max) {
		return float64(max)
	}
	return v
}

// ── Mutations ──────────────────────────────────────────────

// applyLocked adds a finished stroke, or applies it as an eraser path.
// It returns how many strokes an eraser removed.
func (s *AnnotationSession) applyLocked(st domain.Stroke) int {
	defer s.renderNowLocked()

	if st.Tool == domain.ToolEraser {
		kept, removed := ink.Erase(s.svc.hit, st, s.drawings)
		if removed == 0 {
			return 0
		}
		s.drawings = kept
		s.rebuildLocked()
		s.markDirtyLocked(fmt.Sprintf("erase %d", removed))
		return removed
	}

	if st.Tool == domain.ToolPen && s.svc.cfg.DecimateDistance > 0 {
		st.Points = s.decimate(st.Points)
	}
	s.drawings = append(s.drawings, st)
	s.rebuildLocked()
	s.markDirtyLocked("draw " + string(st.Tool))
	return 0
}

func (s *AnnotationSession) decimate(pts []domain.Point) []domain.Point {
	if w, ok := s.svc.hit.(*ink.Worker); ok {
		return w.Decimate(pts, s.svc.cfg.DecimateDistance)
	}
	return ink.Decimate(pts, s.svc.cfg.DecimateDistance)
}

// Commit adds a stroke built outside the capture machine, such as one
// received over MCP. Points are in storage space. An eraser stroke erases.
func (s *AnnotationSession) Commit(st domain.Stroke) (removed int, err error) {
	st, ok := ink.Finalize(st)
	if !ok {
		return 0, ErrStrokeDiscarded
	}
	settings := s.Settings()
	if st.LineWidth <= 0 {
		st.LineWidth = settings.DefaultWidth(st.Tool)
	}
	if st.Opacity <= 0 || st.Opacity > 1 {
		st.Opacity = settings.DefaultOpacity(st.Tool)
	}
	if st.Tool != domain.ToolEraser && st.Color == "" {
		st.Color = domain.NewStroke(st.Tool, settings).Color
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.applyLocked(st), nil
}

// EraseAt applies a one-point eraser of the given width at a storage-space
// position. A non-positive width uses the current eraser width.
func (s *AnnotationSession) EraseAt(x, y, width float64) (int, error) {
	if width <= 0 {
		width = s.Settings().EraserWidth
	}
	return s.Commit(domain.Stroke{
		Tool:      domain.ToolEraser,
		LineWidth: width,
		Opacity:   1,
		Points:    []domain.Point{{X: x, Y: y}},
	})
}

// UndoLastDrawing removes the most recently committed stroke. It reports
// false when there was nothing to undo.
func (s *AnnotationSession) UndoLastDrawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undoLocked()
}

func (s *AnnotationSession) undoLocked() bool {
	if len(s.drawings) == 0 {
		return false
	}
	s.drawings = s.drawings[:len(s.drawings)-1]
	s.rebuildLocked()
	s.renderNowLocked()
	s.markDirtyLocked("undo")
	return true
}

// Clear removes every stroke and deletes the stored record right away.
// Calling it on an empty page is harmless.
func (s *AnnotationSession) Clear() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.capture.Abort()
	s.drawings = []domain.Stroke{}
	s.rebuildLocked()
	s.renderNowLocked()
	s.dirty = true
	s.cleared = true
	s.lastLabel = "clear"
	s.mu.Unlock()

	s.persistQuiet()
}

// RestoreSnapshot replaces the strokes with a stored backup of this page.
func (s *AnnotationSession) RestoreSnapshot(id string) (int, error) {
	snap, err := s.svc.snapshots.GetSnapshot(id)
	if err != nil {
		return 0, err
	}
	if snap.PageKey != s.key {
		return 0, fmt.Errorf("snapshot %s belongs to %s, not %s", id, snap.PageKey, s.key)
	}
	drawings, err := ink.Decode([]byte(snap.Data), s.Settings())
	if err != nil {
		return 0, fmt.Errorf("restore snapshot %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.capture.Abort()
	s.drawings = drawings
	s.rebuildLocked()
	s.renderNowLocked()
	s.markDirtyLocked("restore " + snap.Label)
	return len(drawings), nil
}

// Reload replaces the in-memory strokes with the stored record. Pending
// local changes win and are kept. A stroke being drawn is left alone and
// commits on top of the reloaded strokes.
func (s *AnnotationSession) Reload() error {
	rec, err := s.svc.store.GetPage(s.key)
	var data []byte
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return err
	default:
		data = []byte(rec.Data)
	}

	s.mu.Lock()
	if s.closed || s.dirty {
		s.mu.Unlock()
		return nil
	}
	drawings := ink.Deserialize(data, s.capture.Settings())
	s.drawings = drawings
	s.rebuildLocked()
	s.renderNowLocked()
	n := len(drawings)
	s.mu.Unlock()

	s.svc.emit(EventReloaded, map[string]any{"pageKey": s.key, "strokes": n})
	return nil
}

// ── Read access ────────────────────────────────────────────

// Drawings returns a copy of the committed strokes in commit order.
func (s *AnnotationSession) Drawings() []domain.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneStrokes(s.drawings)
}

// Live returns a copy of the stroke being drawn, or nil.
func (s *AnnotationSession) Live() *domain.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.capture.Live(); l != nil {
		c := l.Clone()
		return &c
	}
	return nil
}

func (s *AnnotationSession) State() ink.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture.State()
}

// VisibleImage returns a copy of the visible layer, or nil before the
// first SetViewport.
func (s *AnnotationSession) VisibleImage() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.comp.Visible()
	if v == nil {
		return nil
	}
	out := image.NewRGBA(v.Rect)
	draw.Draw(out, out.Rect, v, v.Rect.Min, draw.Src)
	return out
}

// CommittedImage returns the committed layer stitched into one image.
func (s *AnnotationSession) CommittedImage() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comp.Committed()
}

// ── Persistence ────────────────────────────────────────────

// Flush writes pending changes now instead of waiting for the debounce.
func (s *AnnotationSession) Flush() error {
	return s.persist()
}

func (s *AnnotationSession) persistQuiet() {
	_ = s.persist()
}

// persist writes the latest state. Writes are serialized per session and
// always take the newest collection, so intermediate states are skipped.
func (s *AnnotationSession) persist() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if !s.svc.saves.TryLock(s.key) {
		return fmt.Errorf("annotations: save of %s already running", s.key)
	}
	defer s.svc.saves.Unlock(s.key)

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := ink.Serialize(s.drawings)
	cleared := s.cleared
	label := s.lastLabel
	count := len(s.drawings)
	s.dirty = false
	s.mu.Unlock()

	if err == nil {
		if cleared {
			err = s.svc.store.DeletePage(s.key)
		} else {
			err = s.svc.store.PutPage(&domain.PageRecord{PageKey: s.key, Path: s.path, Data: string(data)})
		}
	}
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		log.Printf("annotations: save %s failed, keeping changes in memory: %v", s.key, err)
		s.warn(err)
		return err
	}

	if _, serr := s.svc.snapshots.PushSnapshot(s.key, label, string(data)); serr != nil {
		log.Printf("annotations: snapshot %s: %v", s.key, serr)
	}
	s.svc.emit(EventPersisted, map[string]any{"pageKey": s.key, "strokes": count, "cleared": cleared})
	return nil
}

func (s *AnnotationSession) warn(err error) {
	s.svc.emit(EventStorageWarning, map[string]any{"pageKey": s.key, "error": err.Error()})
}

// Close abandons the live stroke, writes pending changes and releases the
// raster layers. The session is removed from its service.
func (s *AnnotationSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.capture.Abort()
	s.frames.Cancel()
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		log.Printf("annotations: final save %s: %v", s.key, err)
	}

	s.mu.Lock()
	s.closed = true
	s.comp.Close()
	s.mu.Unlock()
	s.svc.forget(s.key)
}
