package ink

import (
	"math"
	"sort"

	"annotator/internal/domain"
)

// HitTester decides which committed strokes an eraser stroke touches.
// Implementations must return the same ascending index set for the same
// input; they must not modify their arguments.
type HitTester interface {
	Hits(eraser domain.Stroke, drawings []domain.Stroke) []int
}

// Erase removes every stroke hit by eraser and returns the survivors in
// their original order together with the number removed. Deletion is whole
// stroke: a single touching sample is enough.
func Erase(ht HitTester, eraser domain.Stroke, drawings []domain.Stroke) ([]domain.Stroke, int) {
	if len(eraser.Points) == 0 || len(drawings) == 0 {
		return drawings, 0
	}
	hits := ht.Hits(eraser, drawings)
	if len(hits) == 0 {
		return drawings, 0
	}
	return removeIndices(drawings, hits), len(hits)
}

func removeIndices(drawings []domain.Stroke, sorted []int) []domain.Stroke {
	kept := make([]domain.Stroke, 0, len(drawings)-len(sorted))
	next := 0
	for i, d := range drawings {
		if next < len(sorted) && sorted[next] == i {
			next++
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// touches is the collision rule shared by every strategy.
func touches(e, p domain.Point, threshold float64) bool {
	dx := e.X - p.X
	dy := e.Y - p.Y
	return math.Sqrt(dx*dx+dy*dy) < threshold
}

func strokeHit(eraser domain.Stroke, d domain.Stroke) bool {
	threshold := d.LineWidth/2 + eraser.LineWidth/2
	for _, e := range eraser.Points {
		for _, p := range d.Points {
			if touches(e, p, threshold) {
				return true
			}
		}
	}
	return false
}

// BruteForce compares every eraser sample with every stored sample.
type BruteForce struct{}

func (BruteForce) Hits(eraser domain.Stroke, drawings []domain.Stroke) []int {
	var hits []int
	for i, d := range drawings {
		if d.Tool == domain.ToolEraser {
			continue
		}
		if strokeHit(eraser, d) {
			hits = append(hits, i)
		}
	}
	return hits
}

// GridIndex buckets stored samples by floor(coord/CellSize) and only runs
// the exact test on strokes that have a sample in a cell within reach of an
// eraser sample.
type GridIndex struct {
	CellSize float64
}

type cellKey struct{ x, y int64 }

const defaultCellSize = 32

func (g GridIndex) cell(v float64) int64 {
	cs := g.CellSize
	if cs <= 0 {
		cs = defaultCellSize
	}
	return int64(math.Floor(v / cs))
}

func (g GridIndex) Hits(eraser domain.Stroke, drawings []domain.Stroke) []int {
	buckets := make(map[cellKey][]int)
	maxWidth := 0.0
	for i, d := range drawings {
		if d.Tool == domain.ToolEraser {
			continue
		}
		if d.LineWidth > maxWidth {
			maxWidth = d.LineWidth
		}
		var last cellKey
		for j, p := range d.Points {
			k := cellKey{g.cell(p.X), g.cell(p.Y)}
			if j > 0 && k == last {
				continue
			}
			last = k
			b := buckets[k]
			if len(b) == 0 || b[len(b)-1] != i {
				buckets[k] = append(b, i)
			}
		}
	}
	if len(buckets) == 0 {
		return nil
	}

	reach := maxWidth/2 + eraser.LineWidth/2
	checked := make(map[int]bool)
	hit := make(map[int]bool)
	for _, e := range eraser.Points {
		x0, x1 := g.cell(e.X-reach), g.cell(e.X+reach)
		y0, y1 := g.cell(e.Y-reach), g.cell(e.Y+reach)
		for cx := x0; cx <= x1; cx++ {
			for cy := y0; cy <= y1; cy++ {
				for _, i := range buckets[cellKey{cx, cy}] {
					if checked[i] {
						continue
					}
					checked[i] = true
					if strokeHit(eraser, drawings[i]) {
						hit[i] = true
					}
				}
			}
		}
	}

	hits := make([]int, 0, len(hit))
	for i := range hit {
		hits = append(hits, i)
	}
	sort.Ints(hits)
	return hits
}

// Adaptive uses BruteForce for small collections and GridIndex once the
// number of stored samples makes the index pay off.
type Adaptive struct {
	Threshold int
	Grid      GridIndex
}

const defaultAdaptiveThreshold = 4096

func (a Adaptive) Hits(eraser domain.Stroke, drawings []domain.Stroke) []int {
	limit := a.Threshold
	if limit <= 0 {
		limit = defaultAdaptiveThreshold
	}
	total := 0
	for _, d := range drawings {
		total += len(d.Points)
	}
	if total*len(eraser.Points) < limit {
		return BruteForce{}.Hits(eraser, drawings)
	}
	return a.Grid.Hits(eraser, drawings)
}

// Decimate drops interior samples closer than minDist to the previously
// kept sample. The first and last samples are always kept.
func Decimate(points []domain.Point, minDist float64) []domain.Point {
	if len(points) < 3 || minDist <= 0 {
		return append([]domain.Point(nil), points...)
	}
	out := make([]domain.Point, 0, len(points))
	out = append(out, points[0])
	last := points[0]
	for _, p := range points[1 : len(points)-1] {
		dx := p.X - last.X
		dy := p.Y - last.Y
		if math.Sqrt(dx*dx+dy*dy) >= minDist {
			out = append(out, p)
			last = p
		}
	}
	return append(out, points[len(points)-1])
}
