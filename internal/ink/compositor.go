package ink

import (
	"fmt"
	"image"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"annotator/internal/domain"
)

// DefaultSegmentHeight caps the height of one committed-layer buffer.
const DefaultSegmentHeight = 2048

var eraserPreview = gg.RGBA{R: 200.0 / 255, G: 0, B: 0, A: 0.6}

const eraserPreviewWidth = 2

// Options configures a Compositor.
type Options struct {
	Mapper        Mapper
	SegmentHeight int
	// Smooth draws pen strokes through quadratic curves between sample
	// midpoints instead of straight segments.
	Smooth bool
}

type segment struct {
	top int
	ctx *gg.Context
	img *image.RGBA
}

// Compositor keeps the committed layer (every finished stroke rendered once
// at content size) and the visible layer (the on-screen window of the
// committed layer plus the stroke being drawn).
type Compositor struct {
	opts Options

	vp       domain.Viewport
	contentW int
	contentH int
	segments []*segment

	visible *image.RGBA
	live    *gg.Context
}

func NewCompositor(opts Options) *Compositor {
	if opts.SegmentHeight <= 0 {
		opts.SegmentHeight = DefaultSegmentHeight
	}
	return &Compositor{opts: opts}
}

// Resize adopts a new viewport. The committed layer is reallocated and
// replayed from drawings only when the content size changes; the return
// value reports whether that happened.
func (c *Compositor) Resize(vp domain.Viewport, drawings []domain.Stroke) (bool, error) {
	c.vp = vp
	if c.visible == nil || c.visible.Rect.Dx() != vp.Width || c.visible.Rect.Dy() != vp.Height {
		c.allocVisible(vp.Width, vp.Height)
	}

	w, h := vp.Content()
	if c.opts.Mapper.Mode == ModeContainer {
		w, h = vp.Width, vp.Height
	}
	if w == c.contentW && h == c.contentH && c.segments != nil {
		return false, nil
	}
	c.allocCommitted(w, h)
	return true, c.RebuildCommitted(drawings)
}

// Scroll updates the scroll offset without touching either layer.
func (c *Compositor) Scroll(x, y float64) {
	c.vp.ScrollX = x
	c.vp.ScrollY = y
}

func (c *Compositor) Viewport() domain.Viewport {
	return c.vp
}

func (c *Compositor) allocVisible(w, h int) {
	if c.live != nil {
		_ = c.live.Close()
		c.live = nil
	}
	c.visible = image.NewRGBA(image.Rect(0, 0, w, h))
	if w > 0 && h > 0 {
		c.live = gg.NewContext(w, h)
	}
}

func (c *Compositor) allocCommitted(w, h int) {
	for _, s := range c.segments {
		_ = s.ctx.Close()
	}
	c.contentW, c.contentH = w, h
	c.segments = c.segments[:0]
	if w <= 0 || h <= 0 {
		return
	}
	for top := 0; top < h; top += c.opts.SegmentHeight {
		sh := c.opts.SegmentHeight
		if top+sh > h {
			sh = h - top
		}
		c.segments = append(c.segments, &segment{top: top, ctx: gg.NewContext(w, sh)})
	}
}

// RebuildCommitted clears the committed layer and replays drawings in
// order. Eraser strokes are skipped.
func (c *Compositor) RebuildCommitted(drawings []domain.Stroke) error {
	var firstErr error
	for _, seg := range c.segments {
		seg.ctx.Clear()
		bottom := float64(seg.top + seg.ctx.Height())
		for _, s := range drawings {
			if s.Tool == domain.ToolEraser {
				continue
			}
			_, minY, _, maxY, ok := s.Bounds()
			if !ok || maxY < float64(seg.top) || minY > bottom {
				continue
			}
			if err := DrawStroke(seg.ctx, s, 0, float64(-seg.top), c.opts.Smooth); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("rebuild committed layer: %w", err)
			}
		}
		seg.img = seg.ctx.Image().(*image.RGBA)
	}
	return firstErr
}

// RenderVisible clears the visible layer, copies the on-screen window of
// the committed layer into it and overlays live, if any.
func (c *Compositor) RenderVisible(live *domain.Stroke) error {
	if c.visible == nil {
		return nil
	}
	draw.Draw(c.visible, c.visible.Rect, image.Transparent, image.Point{}, draw.Src)

	wx, wy := c.opts.Mapper.Window(c.vp)
	vh := c.visible.Rect.Dy()
	for _, seg := range c.segments {
		if seg.img == nil {
			continue
		}
		segBottom := seg.top + seg.img.Rect.Dy()
		if segBottom <= wy || seg.top >= wy+vh {
			continue
		}
		dstTop := seg.top - wy
		dst := image.Rect(0, dstTop, c.visible.Rect.Dx(), dstTop+seg.img.Rect.Dy()).Intersect(c.visible.Rect)
		src := image.Pt(wx, dst.Min.Y+wy-seg.top)
		draw.Draw(c.visible, dst, seg.img, src, draw.Src)
	}

	if live == nil || len(live.Points) == 0 || c.live == nil {
		return nil
	}
	c.live.Clear()
	if err := drawLive(c.live, *live, float64(-wx), float64(-wy), c.opts.Smooth); err != nil {
		return fmt.Errorf("render live stroke: %w", err)
	}
	draw.Draw(c.visible, c.visible.Rect, c.live.Image(), image.Point{}, draw.Over)
	return nil
}

// Visible returns the visible layer. The image is reused across frames.
func (c *Compositor) Visible() *image.RGBA {
	return c.visible
}

// Committed stitches the committed segments into one content-sized image.
func (c *Compositor) Committed() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, c.contentW, c.contentH))
	for _, seg := range c.segments {
		if seg.img == nil {
			continue
		}
		r := seg.img.Rect.Add(image.Pt(0, seg.top))
		draw.Draw(out, r, seg.img, image.Point{}, draw.Src)
	}
	return out
}

// Segments reports how many buffers back the committed layer.
func (c *Compositor) Segments() int {
	return len(c.segments)
}

func (c *Compositor) Close() {
	for _, s := range c.segments {
		_ = s.ctx.Close()
	}
	c.segments = nil
	if c.live != nil {
		_ = c.live.Close()
		c.live = nil
	}
}

func drawLive(ctx *gg.Context, s domain.Stroke, dx, dy float64, smooth bool) error {
	if s.Tool != domain.ToolEraser {
		return DrawStroke(ctx, s, dx, dy, smooth)
	}
	if len(s.Points) < 2 {
		return nil
	}
	ctx.SetRGBA(eraserPreview.R, eraserPreview.G, eraserPreview.B, eraserPreview.A)
	ctx.SetLineWidth(eraserPreviewWidth)
	ctx.SetLineCap(gg.LineCapRound)
	ctx.SetLineJoin(gg.LineJoinRound)
	tracePath(ctx, s.Points, dx, dy, false)
	return ctx.Stroke()
}

// DrawStroke paints one stroke onto ctx with its own color, width and
// opacity, offset by (dx, dy). A stroke whose samples all coincide is drawn
// as a round dot; a single-sample stroke draws nothing.
func DrawStroke(ctx *gg.Context, s domain.Stroke, dx, dy float64, smooth bool) error {
	if s.Tool == domain.ToolEraser || len(s.Points) < 2 {
		return nil
	}
	col, ok := ParseColor(s.Color)
	if !ok {
		col = gg.RGBA{A: 1}
	}
	opacity := s.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	ctx.SetRGBA(col.R, col.G, col.B, col.A*opacity)

	if zeroLength(s.Points) {
		p := s.Points[0]
		ctx.DrawCircle(p.X+dx, p.Y+dy, s.LineWidth/2)
		return ctx.Fill()
	}

	ctx.SetLineWidth(s.LineWidth)
	ctx.SetLineCap(gg.LineCapRound)
	ctx.SetLineJoin(gg.LineJoinRound)
	tracePath(ctx, s.Points, dx, dy, smooth && s.Tool == domain.ToolPen)
	return ctx.Stroke()
}

func tracePath(ctx *gg.Context, pts []domain.Point, dx, dy float64, smooth bool) {
	ctx.MoveTo(pts[0].X+dx, pts[0].Y+dy)
	if !smooth || len(pts) < 3 {
		for _, p := range pts[1:] {
			ctx.LineTo(p.X+dx, p.Y+dy)
		}
		return
	}
	for i := 1; i < len(pts)-1; i++ {
		mx := (pts[i].X + pts[i+1].X) / 2
		my := (pts[i].Y + pts[i+1].Y) / 2
		ctx.QuadraticTo(pts[i].X+dx, pts[i].Y+dy, mx+dx, my+dy)
	}
	last := pts[len(pts)-1]
	ctx.LineTo(last.X+dx, last.Y+dy)
}

func zeroLength(pts []domain.Point) bool {
	for _, p := range pts[1:] {
		if p != pts[0] {
			return false
		}
	}
	return true
}
