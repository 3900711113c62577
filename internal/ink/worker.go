package ink

import (
	"runtime"
	"sync"

	"annotator/internal/domain"
)

// Worker runs hit-testing and decimation on a dedicated goroutine. Callers
// hand it a snapshot and get indices or points back; the collection itself
// is only ever mutated by the caller.
type Worker struct {
	inner HitTester
	jobs  chan func()
	done  chan struct{}
	once  sync.Once
}

// NewWorker starts the background goroutine. Close stops it.
func NewWorker(inner HitTester) *Worker {
	if inner == nil {
		inner = BruteForce{}
	}
	w := &Worker{
		inner: inner,
		jobs:  make(chan func()),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case job := <-w.jobs:
			job()
		case <-w.done:
			return
		}
	}
}

// run executes fn on the worker goroutine, or inline once the worker is
// closed.
func (w *Worker) run(fn func()) {
	finished := make(chan struct{})
	select {
	case w.jobs <- func() { fn(); close(finished) }:
		<-finished
	case <-w.done:
		fn()
	}
}

func (w *Worker) Hits(eraser domain.Stroke, drawings []domain.Stroke) []int {
	e := eraser.Clone()
	snapshot := domain.CloneStrokes(drawings)
	var hits []int
	w.run(func() { hits = w.inner.Hits(e, snapshot) })
	return hits
}

// Decimate is the off-goroutine form of the package-level Decimate.
func (w *Worker) Decimate(points []domain.Point, minDist float64) []domain.Point {
	in := append([]domain.Point(nil), points...)
	var out []domain.Point
	w.run(func() { out = Decimate(in, minDist) })
	return out
}

func (w *Worker) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}

// SelectHitTester picks an eraser strategy for this machine. With more than
// one CPU the index runs on a worker goroutine; otherwise it runs inline.
// The returned close func releases the worker, if any.
func SelectHitTester() (HitTester, func()) {
	base := Adaptive{}
	if runtime.NumCPU() > 1 {
		w := NewWorker(base)
		return w, func() { _ = w.Close() }
	}
	return base, func() {}
}
