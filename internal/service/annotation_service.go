package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/robfig/cron/v3"

	"annotator/internal/domain"
	"annotator/internal/ink"
	"annotator/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Annotation Service — page keys, open sessions, maintenance
// ─────────────────────────────────────────────────────────────

// PageKeyPrefix starts every stored page key.
const PageKeyPrefix = "pageAnnotations_"

// ErrEmptyPath is returned when a session is requested without a page.
var ErrEmptyPath = errors.New("annotations: empty page path")

// PageKey derives the storage key for a page path. Characters outside
// [A-Za-z0-9_-] become one underscore per UTF-16 code unit, so a character
// beyond the BMP yields two, the same key a JavaScript regexp replace over
// the path produces.
func PageKey(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	var b strings.Builder
	b.Grow(len(PageKeyPrefix) + len(path))
	b.WriteString(PageKeyPrefix)
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case utf16.RuneLen(r) == 2:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String(), nil
}

// SessionConfig tunes every session the service opens.
type SessionConfig struct {
	Mapper  ink.Mapper
	Capture ink.CaptureConfig
	Render  ink.Options
	// SaveDelay coalesces writes; zero means DefaultSaveDelay.
	SaveDelay time.Duration
	// DecimateDistance thins pen strokes at commit; negative disables it.
	DecimateDistance float64
	// HitTester overrides the eraser strategy picked for this machine.
	HitTester ink.HitTester
}

const (
	DefaultSaveDelay        = 500 * time.Millisecond
	DefaultDecimateDistance = 2
	// orphanSnapshotAge is how long backups of a cleared page are kept.
	orphanSnapshotAge = 24 * time.Hour
)

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SaveDelay <= 0 {
		c.SaveDelay = DefaultSaveDelay
	}
	if c.DecimateDistance == 0 {
		c.DecimateDistance = DefaultDecimateDistance
	}
	c.Capture.Mapper = c.Mapper
	c.Render.Mapper = c.Mapper
	return c
}

// PageSummary describes one stored page for listings.
type PageSummary struct {
	PageKey   string    `json:"pageKey"`
	Path      string    `json:"path"`
	Strokes   int       `json:"strokes"`
	UpdatedAt time.Time `json:"updatedAt"`
	Open      bool      `json:"open"`
}

// AnnotationService owns the open sessions and the stores they write to.
type AnnotationService struct {
	ctx       context.Context
	store     domain.AnnotationStore
	snapshots domain.SnapshotStore
	settings  *ToolSettingsService
	emitter   EventEmitter
	cfg       SessionConfig

	mu       sync.Mutex
	sessions map[string]*AnnotationSession
	saves    saveGuard

	hit        ink.HitTester
	releaseHit func()

	cronSched *cron.Cron
}

// NewAnnotationService creates an AnnotationService ready for use.
func NewAnnotationService(
	store domain.AnnotationStore,
	snapshots domain.SnapshotStore,
	settings *ToolSettingsService,
	emitter EventEmitter,
	cfg SessionConfig,
) *AnnotationService {
	cfg = cfg.withDefaults()
	hit, release := cfg.HitTester, func() {}
	if hit == nil {
		hit, release = ink.SelectHitTester()
	}
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &AnnotationService{
		ctx:        context.Background(),
		store:      store,
		snapshots:  snapshots,
		settings:   settings,
		emitter:    emitter,
		cfg:        cfg,
		sessions:   make(map[string]*AnnotationSession),
		hit:        hit,
		releaseHit: release,
	}
}

// Startup records the context events are emitted with.
func (s *AnnotationService) Startup(ctx context.Context) {
	s.ctx = ctx
}

// OpenSession returns the session for path, loading it from storage the
// first time. An empty path installs nothing.
func (s *AnnotationService) OpenSession(path string) (*AnnotationSession, error) {
	key, err := PageKey(path)
	if err != nil {
		log.Printf("annotations: not installing session: %v", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}
	sess := newSession(s, key, path)
	sess.load()
	s.sessions[key] = sess
	return sess, nil
}

// Session returns an already open session.
func (s *AnnotationService) Session(pageKey string) (*AnnotationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[pageKey]
	return sess, ok
}

// Sessions returns the open sessions ordered by page key.
func (s *AnnotationService) Sessions() []*AnnotationSession {
	s.mu.Lock()
	out := make([]*AnnotationSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (s *AnnotationService) forget(key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// ListPages summarizes every page with stored annotations.
func (s *AnnotationService) ListPages() ([]PageSummary, error) {
	recs, err := s.store.ListPages()
	if err != nil {
		return nil, fmt.Errorf("list annotated pages: %w", err)
	}
	settings := s.settings.Load()
	out := make([]PageSummary, 0, len(recs))
	for _, r := range recs {
		_, open := s.Session(r.PageKey)
		out = append(out, PageSummary{
			PageKey:   r.PageKey,
			Path:      r.Path,
			Strokes:   len(ink.Deserialize([]byte(r.Data), settings)),
			UpdatedAt: r.UpdatedAt,
			Open:      open,
		})
	}
	return out, nil
}

// LoadDrawings reads the stored strokes of path without opening a session.
func (s *AnnotationService) LoadDrawings(path string) ([]domain.Stroke, error) {
	key, err := PageKey(path)
	if err != nil {
		return nil, err
	}
	return s.DrawingsByKey(key)
}

// DrawingsByKey is LoadDrawings for an already derived page key. An open
// session's in-memory strokes win over the stored record.
func (s *AnnotationService) DrawingsByKey(pageKey string) ([]domain.Stroke, error) {
	if sess, ok := s.Session(pageKey); ok {
		return sess.Drawings(), nil
	}
	rec, err := s.store.GetPage(pageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.Stroke{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ink.Deserialize([]byte(rec.Data), s.settings.Load()), nil
}

// Snapshots lists the backup history of a page.
func (s *AnnotationService) Snapshots(path string) ([]domain.Snapshot, error) {
	key, err := PageKey(path)
	if err != nil {
		return nil, err
	}
	return s.snapshots.ListSnapshots(key)
}

// ReloadOpen re-reads every open session from storage. Used when another
// process wrote to the database.
func (s *AnnotationService) ReloadOpen() {
	for _, sess := range s.Sessions() {
		if err := sess.Reload(); err != nil {
			log.Printf("annotations: reload %s failed: %v", sess.key, err)
		}
	}
}

// RunMaintenance prunes backups of pages that no longer have a record.
func (s *AnnotationService) RunMaintenance() (int, error) {
	n, err := s.snapshots.PruneOrphans(time.Now().Add(-orphanSnapshotAge))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("annotations maintenance: pruned %d orphan snapshot(s)", n)
	}
	return n, nil
}

// StartMaintenance schedules RunMaintenance with a cron spec such as
// "@every 1h".
func (s *AnnotationService) StartMaintenance(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.RunMaintenance(); err != nil {
			log.Printf("annotations maintenance: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", spec, err)
	}
	c.Start()
	s.cronSched = c
	return nil
}

// Shutdown flushes and closes every session, then waits for in-flight
// writes or ctx.
func (s *AnnotationService) Shutdown(ctx context.Context) {
	if s.cronSched != nil {
		<-s.cronSched.Stop().Done()
		s.cronSched = nil
	}
	for _, sess := range s.Sessions() {
		sess.Close()
	}
	s.saves.WaitAll(ctx)
	s.releaseHit()
}

func (s *AnnotationService) emit(event string, data any) {
	s.emitter.Emit(s.ctx, event, data)
}
