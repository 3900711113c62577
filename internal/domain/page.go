package domain

import "time"

// PageRecord is the stored annotation snapshot of one page.
// Data holds the JSON array produced by the codec; Path is the page path
// the key was derived from.
type PageRecord struct {
	PageKey   string    `json:"pageKey"`
	Path      string    `json:"path"`
	Data      string    `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is a point-in-time backup of a page's annotations.
type Snapshot struct {
	ID        string    `json:"id"`
	PageKey   string    `json:"pageKey"`
	Label     string    `json:"label"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// Viewport describes what part of the drawable area is on screen.
// Content is the full drawable area; it equals the visible size when the
// area does not scroll.
type Viewport struct {
	ScrollX       float64 `json:"scrollX"`
	ScrollY       float64 `json:"scrollY"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	ContentWidth  int     `json:"contentWidth"`
	ContentHeight int     `json:"contentHeight"`
}

// Content returns the drawable area, never smaller than the visible size.
func (v Viewport) Content() (w, h int) {
	w, h = v.ContentWidth, v.ContentHeight
	if w < v.Width {
		w = v.Width
	}
	if h < v.Height {
		h = v.Height
	}
	return w, h
}

// AnnotationStore persists one record per page key.
type AnnotationStore interface {
	GetPage(pageKey string) (*PageRecord, error)
	PutPage(rec *PageRecord) error
	DeletePage(pageKey string) error
	ListPages() ([]PageRecord, error)
}

// SnapshotStore keeps a bounded backup history per page key.
type SnapshotStore interface {
	PushSnapshot(pageKey, label, data string) (*Snapshot, error)
	ListSnapshots(pageKey string) ([]Snapshot, error)
	GetSnapshot(id string) (*Snapshot, error)
	ClearPage(pageKey string) error
	// PruneOrphans drops snapshots created before cutoff whose page no
	// longer has a record.
	PruneOrphans(cutoff time.Time) (int, error)
}
