package ink

import (
	"math"
	"time"

	"annotator/internal/domain"
)

// State is the single interpretation of what the pointers are doing.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateGesture
)

func (s State) String() string {
	switch s {
	case StateDrawing:
		return "drawing"
	case StateGesture:
		return "gesture"
	}
	return "idle"
}

type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerCancel
	PointerLeave
)

// Pointer is one active contact in client coordinates.
type Pointer struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PointerEvent carries the pointers still active after the event. The
// first pointer is the primary one.
type PointerEvent struct {
	Kind     PointerKind
	Pointers []Pointer
	At       time.Time
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	// EffectRender means the live stroke changed and a frame is wanted.
	EffectRender
	// EffectCommit carries a finished stroke. For the eraser the stroke is
	// the eraser path to apply, not something to store.
	EffectCommit
	// EffectAbort means the live stroke was discarded.
	EffectAbort
	EffectUndo
	EffectPan
)

type Effect struct {
	Kind   EffectKind
	Stroke domain.Stroke
	PanDX  float64
	PanDY  float64
}

const (
	DefaultTapMoveThreshold = 20
	DefaultTapMaxDuration   = 300 * time.Millisecond
)

type CaptureConfig struct {
	Mapper           Mapper
	TapMoveThreshold float64
	TapMaxDuration   time.Duration
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.TapMoveThreshold <= 0 {
		c.TapMoveThreshold = DefaultTapMoveThreshold
	}
	if c.TapMaxDuration <= 0 {
		c.TapMaxDuration = DefaultTapMaxDuration
	}
	return c
}

type gesture struct {
	started      time.Time
	starts       map[int]Pointer
	tapCandidate bool
	midX, midY   float64
	hasMid       bool
}

// Capture turns pointer events into stroke, undo and pan effects.
// It is not safe for concurrent use; the owning session serializes calls.
type Capture struct {
	cfg      CaptureConfig
	enabled  bool
	settings domain.ToolSettings
	state    State
	live     *domain.Stroke
	gesture  gesture
}

func NewCapture(cfg CaptureConfig) *Capture {
	return &Capture{
		cfg:      cfg.withDefaults(),
		enabled:  true,
		settings: domain.DefaultToolSettings(),
	}
}

func (c *Capture) State() State { return c.state }

func (c *Capture) Enabled() bool { return c.enabled }

// Live returns the in-progress stroke, or nil.
func (c *Capture) Live() *domain.Stroke { return c.live }

func (c *Capture) Settings() domain.ToolSettings { return c.settings }

// SetSettings applies to the next stroke; a stroke in progress keeps the
// style it started with.
func (c *Capture) SetSettings(s domain.ToolSettings) {
	c.settings = NormalizeSettings(s)
}

func (c *Capture) Mapper() Mapper { return c.cfg.Mapper }

// SetEnabled toggles annotation mode. Turning it off returns to Idle and
// discards any live stroke.
func (c *Capture) SetEnabled(on bool) Effect {
	c.enabled = on
	if on {
		return Effect{}
	}
	return c.reset()
}

// Abort discards whatever is in progress.
func (c *Capture) Abort() Effect {
	return c.reset()
}

func (c *Capture) reset() Effect {
	had := c.live != nil
	c.state = StateIdle
	c.live = nil
	c.gesture = gesture{}
	if had {
		return Effect{Kind: EffectAbort}
	}
	return Effect{}
}

// Handle advances the state machine by one event.
func (c *Capture) Handle(ev PointerEvent, vp domain.Viewport) Effect {
	if !c.enabled {
		return c.reset()
	}
	switch c.state {
	case StateIdle:
		return c.handleIdle(ev, vp)
	case StateDrawing:
		return c.handleDrawing(ev, vp)
	case StateGesture:
		return c.handleGesture(ev)
	}
	return Effect{}
}

func (c *Capture) handleIdle(ev PointerEvent, vp domain.Viewport) Effect {
	if ev.Kind != PointerDown || len(ev.Pointers) == 0 {
		return Effect{}
	}
	if len(ev.Pointers) >= 2 {
		c.beginGesture(ev)
		return Effect{}
	}
	p := ev.Pointers[0]
	seed := c.cfg.Mapper.ToStorageSpace(p.X, p.Y, vp)
	s := domain.NewStroke(c.settings.Tool, c.settings, seed)
	c.live = &s
	c.state = StateDrawing
	return Effect{Kind: EffectRender}
}

func (c *Capture) handleDrawing(ev PointerEvent, vp domain.Viewport) Effect {
	switch ev.Kind {
	case PointerDown:
		if len(ev.Pointers) >= 2 {
			c.live = nil
			c.beginGesture(ev)
			return Effect{Kind: EffectAbort}
		}
		return Effect{}
	case PointerMove:
		if len(ev.Pointers) >= 2 {
			c.live = nil
			c.beginGesture(ev)
			return Effect{Kind: EffectAbort}
		}
		if len(ev.Pointers) == 0 {
			return Effect{}
		}
		p := ev.Pointers[0]
		pt := c.cfg.Mapper.ToStorageSpace(p.X, p.Y, vp)
		if c.live.Tool == domain.ToolHighlighter && len(c.live.Points) >= 2 {
			c.live.Points = append(c.live.Points[:1], pt)
		} else {
			c.live.AppendPoint(pt)
		}
		return Effect{Kind: EffectRender}
	case PointerCancel:
		return c.reset()
	case PointerLeave:
		if len(c.live.Points) <= 1 {
			return c.reset()
		}
		return c.finish()
	case PointerUp:
		return c.finish()
	}
	return Effect{}
}

func (c *Capture) finish() Effect {
	s := *c.live
	c.live = nil
	c.state = StateIdle
	committed, ok := Finalize(s)
	if !ok {
		return Effect{Kind: EffectAbort}
	}
	return Effect{Kind: EffectCommit, Stroke: committed}
}

func (c *Capture) beginGesture(ev PointerEvent) {
	c.state = StateGesture
	c.gesture = gesture{
		started:      ev.At,
		starts:       make(map[int]Pointer, len(ev.Pointers)),
		tapCandidate: len(ev.Pointers) == 2,
	}
	for _, p := range ev.Pointers {
		c.gesture.starts[p.ID] = p
	}
	c.gesture.midX, c.gesture.midY, c.gesture.hasMid = midpoint(ev.Pointers)
}

func (c *Capture) handleGesture(ev PointerEvent) Effect {
	g := &c.gesture
	switch ev.Kind {
	case PointerDown:
		for _, p := range ev.Pointers {
			if _, ok := g.starts[p.ID]; !ok {
				g.starts[p.ID] = p
			}
		}
		if len(ev.Pointers) >= 3 {
			g.tapCandidate = false
		}
		g.midX, g.midY, g.hasMid = midpoint(ev.Pointers)
		return Effect{}
	case PointerMove:
		for _, p := range ev.Pointers {
			start, ok := g.starts[p.ID]
			if !ok {
				continue
			}
			if math.Hypot(p.X-start.X, p.Y-start.Y) > c.cfg.TapMoveThreshold {
				g.tapCandidate = false
			}
		}
		mx, my, ok := midpoint(ev.Pointers)
		if !ok {
			return Effect{}
		}
		eff := Effect{}
		if g.hasMid && !g.tapCandidate {
			eff = Effect{Kind: EffectPan, PanDX: mx - g.midX, PanDY: my - g.midY}
		}
		g.midX, g.midY, g.hasMid = mx, my, true
		return eff
	case PointerUp:
		if len(ev.Pointers) > 0 {
			g.hasMid = false
			return Effect{}
		}
		undo := g.tapCandidate && ev.At.Sub(g.started) < c.cfg.TapMaxDuration
		c.state = StateIdle
		c.gesture = gesture{}
		if undo {
			return Effect{Kind: EffectUndo}
		}
		return Effect{}
	case PointerCancel, PointerLeave:
		c.state = StateIdle
		c.gesture = gesture{}
	}
	return Effect{}
}

func midpoint(ps []Pointer) (x, y float64, ok bool) {
	if len(ps) < 2 {
		return 0, 0, false
	}
	return (ps[0].X + ps[1].X) / 2, (ps[0].Y + ps[1].Y) / 2, true
}

// Finalize applies the commit rules to a captured stroke. A pen stroke
// needs at least two samples, a highlighter becomes exactly the band
// [p0, p1] (or [p0, p0]) and an eraser needs one sample. ok is false when
// the stroke is to be discarded.
func Finalize(s domain.Stroke) (domain.Stroke, bool) {
	out := s.Clone()
	switch s.Tool {
	case domain.ToolPen:
		return out, len(out.Points) >= 2
	case domain.ToolHighlighter:
		if len(out.Points) == 0 {
			return out, false
		}
		second := out.Points[0]
		if len(out.Points) > 1 {
			second = out.Points[1]
		}
		out.Points = []domain.Point{out.Points[0], second}
		return out, true
	case domain.ToolEraser:
		return out, len(out.Points) >= 1
	}
	return out, false
}
