package storage_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"annotator/internal/domain"
	"annotator/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "annotator.db"), filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─────────────────────────────────────────────────────────────
// AnnotationStore
// ─────────────────────────────────────────────────────────────

func TestAnnotationStore_PutGetDelete(t *testing.T) {
	store := storage.NewAnnotationStore(openDB(t))

	if _, err := store.GetPage("pageAnnotations_a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec := &domain.PageRecord{PageKey: "pageAnnotations_a", Path: "/a", Data: `[{"tool":"pen"}]`}
	if err := store.PutPage(rec); err != nil {
		t.Fatal(err)
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("PutPage did not stamp UpdatedAt")
	}

	got, err := store.GetPage("pageAnnotations_a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Data != rec.Data || got.Path != "/a" {
		t.Errorf("got %+v", got)
	}

	rec.Data = "[]"
	rec.Path = ""
	if err := store.PutPage(rec); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetPage("pageAnnotations_a")
	if got.Data != "[]" || got.Path != "/a" {
		t.Errorf("upsert: got %+v", got)
	}

	if err := store.DeletePage("pageAnnotations_a"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeletePage("pageAnnotations_a"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.GetPage("pageAnnotations_a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("record survived delete")
	}
}

func TestAnnotationStore_ListAndFingerprint(t *testing.T) {
	store := storage.NewAnnotationStore(openDB(t))

	before, err := store.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b"} {
		if err := store.PutPage(&domain.PageRecord{PageKey: k, Data: "[]"}); err != nil {
			t.Fatal(err)
		}
	}
	pages, err := store.ListPages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d", len(pages))
	}
	after, _ := store.Fingerprint()
	if before == after {
		t.Error("fingerprint did not change after writes")
	}
}

// ─────────────────────────────────────────────────────────────
// SnapshotStore
// ─────────────────────────────────────────────────────────────

func TestSnapshotStore_PrunesToLimit(t *testing.T) {
	store := storage.NewSnapshotStore(openDB(t))

	var last *domain.Snapshot
	for i := 0; i < storage.MaxSnapshotsPerPage+5; i++ {
		sn, err := store.PushSnapshot("p", fmt.Sprintf("edit %d", i), "[]")
		if err != nil {
			t.Fatal(err)
		}
		last = sn
	}
	if _, err := store.PushSnapshot("other", "x", "[]"); err != nil {
		t.Fatal(err)
	}

	snaps, err := store.ListSnapshots("p")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != storage.MaxSnapshotsPerPage {
		t.Fatalf("snapshots = %d, want %d", len(snaps), storage.MaxSnapshotsPerPage)
	}
	if snaps[0].ID != last.ID {
		t.Errorf("newest first: got %s, want %s", snaps[0].Label, last.Label)
	}
	if snaps[len(snaps)-1].Label != "edit 5" {
		t.Errorf("oldest kept = %q, want edit 5", snaps[len(snaps)-1].Label)
	}

	got, err := store.GetSnapshot(last.ID)
	if err != nil || got.Data != "[]" {
		t.Fatalf("GetSnapshot: %v %+v", err, got)
	}
	if _, err := store.GetSnapshot("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotStore_PruneOrphans(t *testing.T) {
	db := openDB(t)
	pages := storage.NewAnnotationStore(db)
	snaps := storage.NewSnapshotStore(db)

	if err := pages.PutPage(&domain.PageRecord{PageKey: "live", Data: "[]"}); err != nil {
		t.Fatal(err)
	}
	snaps.PushSnapshot("live", "a", "[]")
	snaps.PushSnapshot("gone", "b", "[]")

	n, err := snaps.PruneOrphans(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("recent orphans pruned: %d", n)
	}

	n, err = snaps.PruneOrphans(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if list, _ := snaps.ListSnapshots("live"); len(list) != 1 {
		t.Error("snapshot of a live page was pruned")
	}
}

func TestSnapshotStore_ClearPage(t *testing.T) {
	snaps := storage.NewSnapshotStore(openDB(t))
	snaps.PushSnapshot("p", "a", "[]")
	if err := snaps.ClearPage("p"); err != nil {
		t.Fatal(err)
	}
	if list, _ := snaps.ListSnapshots("p"); len(list) != 0 {
		t.Fatal("ClearPage left snapshots")
	}
}

// ─────────────────────────────────────────────────────────────
// app_settings
// ─────────────────────────────────────────────────────────────

func TestSettings_RoundTrip(t *testing.T) {
	db := openDB(t)
	if _, ok, err := db.GetSetting("tool"); err != nil || ok {
		t.Fatalf("unset key: ok=%v err=%v", ok, err)
	}
	if err := db.SetSetting("tool", "pen"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting("tool", "highlighter"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.GetSetting("tool")
	if err != nil || !ok || v != "highlighter" {
		t.Fatalf("got %q ok=%v err=%v", v, ok, err)
	}
}

// ─────────────────────────────────────────────────────────────
// ApprovalStore
// ─────────────────────────────────────────────────────────────

func TestApprovalStore_Lifecycle(t *testing.T) {
	store := storage.NewApprovalStore(openDB(t))

	if err := store.CreateApproval("a1", "clear_annotations", "Clear 3 stroke(s) on /p"); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateApproval("a2", "clear_annotations", "Clear 1 stroke(s) on /q"); err != nil {
		t.Fatal(err)
	}
	pending, err := store.PendingApprovals()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != "a1" || pending[0].Tool != "clear_annotations" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := store.ResolveApproval("a1", true); err != nil {
		t.Fatal(err)
	}
	if err := store.ResolveApproval("a1", false); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second answer: expected ErrNotFound, got %v", err)
	}
	if status, _ := store.ApprovalStatus("a1"); status != storage.ApprovalApproved {
		t.Errorf("status = %q", status)
	}
	if err := store.ResolveApproval("a2", false); err != nil {
		t.Fatal(err)
	}
	if status, _ := store.ApprovalStatus("a2"); status != storage.ApprovalRejected {
		t.Errorf("status = %q", status)
	}
	if pending, _ := store.PendingApprovals(); len(pending) != 0 {
		t.Errorf("pending after answers = %+v", pending)
	}

	if err := store.DeleteApproval("a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ApprovalStatus("a1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("deleted approval: %v", err)
	}
	if err := store.ResolveApproval("missing", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}
