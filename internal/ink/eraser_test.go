package ink_test

import (
	"math/rand"
	"testing"

	"annotator/internal/domain"
	"annotator/internal/ink"
)

func pen(width float64, pts ...domain.Point) domain.Stroke {
	return domain.Stroke{Tool: domain.ToolPen, Color: "#000000", LineWidth: width, Opacity: 1, Points: pts}
}

func eraserAt(width float64, pts ...domain.Point) domain.Stroke {
	return domain.Stroke{Tool: domain.ToolEraser, LineWidth: width, Opacity: 1, Points: pts}
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ─────────────────────────────────────────────────────────────
// Collision rule
// ─────────────────────────────────────────────────────────────

func TestErase_RemovesTouchedStroke(t *testing.T) {
	drawings := []domain.Stroke{pen(5, domain.Point{X: 10, Y: 10}, domain.Point{X: 10, Y: 30}, domain.Point{X: 10, Y: 50})}
	kept, removed := ink.Erase(ink.BruteForce{}, eraserAt(10, domain.Point{X: 10, Y: 30}), drawings)
	if removed != 1 || len(kept) != 0 {
		t.Fatalf("expected stroke removed, kept=%d removed=%d", len(kept), removed)
	}
}

func TestErase_KeepsDistantStroke(t *testing.T) {
	drawings := []domain.Stroke{pen(2, domain.Point{X: 0, Y: 0}, domain.Point{X: 100, Y: 0})}
	kept, removed := ink.Erase(ink.BruteForce{}, eraserAt(4, domain.Point{X: 0, Y: 100}), drawings)
	if removed != 0 || len(kept) != 1 {
		t.Fatalf("expected stroke kept, kept=%d removed=%d", len(kept), removed)
	}
}

func TestErase_ThresholdIsStrict(t *testing.T) {
	// distance 3 == 2/2 + 4/2 is not a hit
	drawings := []domain.Stroke{pen(2, domain.Point{X: 0, Y: 0}, domain.Point{X: 0, Y: 0})}
	_, removed := ink.Erase(ink.BruteForce{}, eraserAt(4, domain.Point{X: 3, Y: 0}), drawings)
	if removed != 0 {
		t.Fatal("a point exactly on the threshold must not be erased")
	}
}

func TestErase_MonotonicAndOrderPreserving(t *testing.T) {
	drawings := []domain.Stroke{
		pen(2, domain.Point{X: 0, Y: 0}, domain.Point{X: 10, Y: 0}),
		pen(2, domain.Point{X: 50, Y: 50}, domain.Point{X: 60, Y: 50}),
		pen(2, domain.Point{X: 100, Y: 0}, domain.Point{X: 110, Y: 0}),
	}
	before := domain.CloneStrokes(drawings)

	kept, removed := ink.Erase(ink.BruteForce{}, eraserAt(4, domain.Point{X: 50, Y: 51}), drawings)
	if removed != 1 || len(kept) != 2 {
		t.Fatalf("kept=%d removed=%d", len(kept), removed)
	}
	if kept[0].Points[0].X != 0 || kept[1].Points[0].X != 100 {
		t.Errorf("survivors reordered: %+v", kept)
	}
	for i := range drawings {
		if drawings[i].Points[0] != before[i].Points[0] {
			t.Error("Erase mutated its input")
		}
	}
}

func TestErase_SkipsStoredEraserEntries(t *testing.T) {
	drawings := []domain.Stroke{eraserAt(10, domain.Point{X: 0, Y: 0})}
	_, removed := ink.Erase(ink.BruteForce{}, eraserAt(10, domain.Point{X: 0, Y: 0}), drawings)
	if removed != 0 {
		t.Fatal("eraser entries are not erasable")
	}
}

func TestErase_EmptyEraser(t *testing.T) {
	drawings := []domain.Stroke{pen(2, domain.Point{X: 0, Y: 0}, domain.Point{X: 1, Y: 0})}
	kept, removed := ink.Erase(ink.BruteForce{}, eraserAt(10), drawings)
	if removed != 0 || len(kept) != 1 {
		t.Fatal("an eraser without points removes nothing")
	}
}

// ─────────────────────────────────────────────────────────────
// Strategy equivalence
// ─────────────────────────────────────────────────────────────

func randomScene(r *rand.Rand, strokes, points int) []domain.Stroke {
	out := make([]domain.Stroke, 0, strokes)
	for i := 0; i < strokes; i++ {
		x, y := r.Float64()*1000, r.Float64()*3000
		s := pen(1 + r.Float64()*30)
		if i%5 == 0 {
			s.Tool = domain.ToolHighlighter
		}
		for j := 0; j < points; j++ {
			x += r.Float64()*20 - 10
			y += r.Float64()*20 - 10
			s.Points = append(s.Points, domain.Point{X: x, Y: y})
		}
		out = append(out, s)
	}
	return out
}

func TestHitTesters_AgreeWithBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	worker := ink.NewWorker(ink.GridIndex{CellSize: 24})
	defer worker.Close()

	strategies := map[string]ink.HitTester{
		"grid-default": ink.GridIndex{},
		"grid-small":   ink.GridIndex{CellSize: 3},
		"grid-large":   ink.GridIndex{CellSize: 500},
		"adaptive":     ink.Adaptive{Threshold: 1},
		"worker":       worker,
	}

	for round := 0; round < 25; round++ {
		drawings := randomScene(r, 60, 20)
		er := eraserAt(2 + r.Float64()*40)
		x, y := r.Float64()*1000, r.Float64()*3000
		for j := 0; j < 8; j++ {
			er.Points = append(er.Points, domain.Point{X: x + float64(j)*4, Y: y})
		}
		want := ink.BruteForce{}.Hits(er, drawings)
		for name, ht := range strategies {
			got := ht.Hits(er, drawings)
			if !sameInts(got, want) {
				t.Fatalf("round %d %s: got %v, want %v", round, name, got, want)
			}
		}
	}
}

func TestWorker_FallsBackInlineAfterClose(t *testing.T) {
	w := ink.NewWorker(nil)
	_ = w.Close()
	_ = w.Close()

	drawings := []domain.Stroke{pen(5, domain.Point{X: 10, Y: 10}, domain.Point{X: 10, Y: 30}, domain.Point{X: 10, Y: 50})}
	hits := w.Hits(eraserAt(10, domain.Point{X: 10, Y: 30}), drawings)
	if !sameInts(hits, []int{0}) {
		t.Fatalf("hits = %v", hits)
	}
}

func TestSelectHitTester(t *testing.T) {
	ht, release := ink.SelectHitTester()
	defer release()
	drawings := []domain.Stroke{pen(5, domain.Point{X: 10, Y: 10}, domain.Point{X: 10, Y: 30}, domain.Point{X: 10, Y: 50})}
	if !sameInts(ht.Hits(eraserAt(10, domain.Point{X: 10, Y: 30}), drawings), []int{0}) {
		t.Fatal("selected strategy disagrees with the collision rule")
	}
}

// ─────────────────────────────────────────────────────────────
// Decimation
// ─────────────────────────────────────────────────────────────

func TestDecimate_KeepsEndpoints(t *testing.T) {
	pts := []domain.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 1, Y: 0}, {X: 3, Y: 0}, {X: 3.5, Y: 0}}
	got := ink.Decimate(pts, 2)
	if got[0] != pts[0] || got[len(got)-1] != pts[len(pts)-1] {
		t.Fatalf("endpoints lost: %+v", got)
	}
	want := []domain.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3.5, Y: 0}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
}

func TestDecimate_ShortInputCopied(t *testing.T) {
	pts := []domain.Point{{X: 0, Y: 0}, {X: 0, Y: 0}}
	got := ink.Decimate(pts, 2)
	if len(got) != 2 {
		t.Fatalf("got %d points", len(got))
	}
	got[0].X = 9
	if pts[0].X != 0 {
		t.Error("Decimate aliased its input")
	}
}

func TestWorker_Decimate(t *testing.T) {
	w := ink.NewWorker(nil)
	defer w.Close()
	pts := []domain.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 1, Y: 0}, {X: 3, Y: 0}, {X: 3.5, Y: 0}}
	if got, want := len(w.Decimate(pts, 2)), len(ink.Decimate(pts, 2)); got != want {
		t.Fatalf("worker decimate = %d points, inline = %d", got, want)
	}
}
