package ink_test

import (
	"testing"

	"annotator/internal/domain"
	"annotator/internal/ink"
)

func TestCompositor_CommittedLayerShowsStroke(t *testing.T) {
	c := ink.NewCompositor(ink.Options{})
	defer c.Close()
	drawings := []domain.Stroke{pen(6, domain.Point{X: 10, Y: 10}, domain.Point{X: 10, Y: 50})}

	rebuilt, err := c.Resize(domain.Viewport{Width: 100, Height: 100}, drawings)
	if err != nil {
		t.Fatal(err)
	}
	if !rebuilt {
		t.Fatal("first Resize must build the committed layer")
	}
	img := c.Committed()
	if img.RGBAAt(10, 30).A == 0 {
		t.Error("expected ink at (10,30)")
	}
	if img.RGBAAt(80, 80).A != 0 {
		t.Error("expected no ink at (80,80)")
	}
}

func TestCompositor_ResizeOnlyRebuildsOnContentChange(t *testing.T) {
	c := ink.NewCompositor(ink.Options{})
	defer c.Close()
	vp := domain.Viewport{Width: 100, Height: 100, ContentHeight: 400}
	if rebuilt, _ := c.Resize(vp, nil); !rebuilt {
		t.Fatal("expected initial build")
	}
	vp.ScrollY = 50
	if rebuilt, _ := c.Resize(vp, nil); rebuilt {
		t.Fatal("scroll alone must not rebuild")
	}
	vp.ContentHeight = 800
	if rebuilt, _ := c.Resize(vp, nil); !rebuilt {
		t.Fatal("content growth must rebuild")
	}
}

func TestCompositor_SegmentsLongPages(t *testing.T) {
	c := ink.NewCompositor(ink.Options{SegmentHeight: 1000})
	defer c.Close()
	drawings := []domain.Stroke{pen(6, domain.Point{X: 20, Y: 2990}, domain.Point{X: 20, Y: 3010})}
	if _, err := c.Resize(domain.Viewport{Width: 100, Height: 100, ContentHeight: 3500}, drawings); err != nil {
		t.Fatal(err)
	}
	if c.Segments() != 4 {
		t.Fatalf("segments = %d, want 4", c.Segments())
	}
	img := c.Committed()
	if img.Rect.Dy() != 3500 {
		t.Fatalf("committed height = %d", img.Rect.Dy())
	}
	if img.RGBAAt(20, 2995).A == 0 || img.RGBAAt(20, 3005).A == 0 {
		t.Error("stroke crossing a segment boundary lost ink")
	}
}

func TestCompositor_VisibleBlitsScrolledWindow(t *testing.T) {
	c := ink.NewCompositor(ink.Options{SegmentHeight: 512})
	defer c.Close()
	drawings := []domain.Stroke{pen(6, domain.Point{X: 40, Y: 1000}, domain.Point{X: 60, Y: 1000})}
	vp := domain.Viewport{ScrollY: 950, Width: 100, Height: 100, ContentHeight: 2000}
	if _, err := c.Resize(vp, drawings); err != nil {
		t.Fatal(err)
	}
	if err := c.RenderVisible(nil); err != nil {
		t.Fatal(err)
	}
	vis := c.Visible()
	if vis.RGBAAt(50, 50).A == 0 {
		t.Error("expected committed ink at visible (50,50)")
	}
	if vis.RGBAAt(50, 5).A != 0 {
		t.Error("unexpected ink near the top of the window")
	}
}

func TestCompositor_LiveOverlay(t *testing.T) {
	c := ink.NewCompositor(ink.Options{Smooth: true})
	defer c.Close()
	vp := domain.Viewport{ScrollY: 200, Width: 100, Height: 100, ContentHeight: 1000}
	if _, err := c.Resize(vp, nil); err != nil {
		t.Fatal(err)
	}
	live := pen(6, domain.Point{X: 10, Y: 250}, domain.Point{X: 50, Y: 250}, domain.Point{X: 90, Y: 250})
	if err := c.RenderVisible(&live); err != nil {
		t.Fatal(err)
	}
	if c.Visible().RGBAAt(50, 50).A == 0 {
		t.Error("live stroke not drawn in view space")
	}

	if err := c.RenderVisible(nil); err != nil {
		t.Fatal(err)
	}
	if c.Visible().RGBAAt(50, 50).A != 0 {
		t.Error("visible layer not cleared between frames")
	}
}

func TestCompositor_EraserNeverCommitted(t *testing.T) {
	c := ink.NewCompositor(ink.Options{})
	defer c.Close()
	drawings := []domain.Stroke{eraserAt(20, domain.Point{X: 50, Y: 50}, domain.Point{X: 60, Y: 50})}
	if _, err := c.Resize(domain.Viewport{Width: 100, Height: 100}, drawings); err != nil {
		t.Fatal(err)
	}
	if c.Committed().RGBAAt(55, 50).A != 0 {
		t.Error("eraser stroke rendered into the committed layer")
	}
}

func TestCompositor_ZeroLengthIsDot(t *testing.T) {
	c := ink.NewCompositor(ink.Options{})
	defer c.Close()
	hl := domain.Stroke{Tool: domain.ToolHighlighter, Color: "#FFFF00", LineWidth: 20, Opacity: 0.4,
		Points: []domain.Point{{X: 50, Y: 50}, {X: 50, Y: 50}}}
	if _, err := c.Resize(domain.Viewport{Width: 100, Height: 100}, []domain.Stroke{hl}); err != nil {
		t.Fatal(err)
	}
	px := c.Committed().RGBAAt(50, 50)
	if px.A == 0 || px.A == 255 {
		t.Errorf("expected a translucent dot, alpha = %d", px.A)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"#000", true},
		{"#FFFF00", true},
		{"#ff000080", true},
		{"rgb(255, 0, 0)", true},
		{"rgba(200,0,0,0.6)", true},
		{"red", true},
		{"#12", false},
		{"#zzzzzz", false},
		{"rgb(1,2)", false},
		{"rgb(1,2,3,4)", false},
		{"rgba(1,2,3)", false},
		{"rgbx(1,2,3,4,5)", false},
		{"rgba(1,2,3,4,5,6)", false},
		{"rgb(1,2,x)", false},
		{"", false},
		{"not-a-color", false},
	}
	for _, tt := range tests {
		if _, ok := ink.ParseColor(tt.in); ok != tt.ok {
			t.Errorf("ParseColor(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}

	c, _ := ink.ParseColor("rgba(255, 0, 0, 0.5)")
	if c.R != 1 || c.G != 0 || c.A != 0.5 {
		t.Errorf("rgba parse = %+v", c)
	}
}

func TestMapper_Modes(t *testing.T) {
	vp := domain.Viewport{ScrollX: 10.5, ScrollY: 300, Width: 100, Height: 100}

	doc := ink.Mapper{}
	p := doc.ToStorageSpace(5, 5, vp)
	if p.X != 15.5 || p.Y != 305 {
		t.Fatalf("document mode = %+v", p)
	}
	if x, y := doc.Window(vp); x != 10 || y != 300 {
		t.Errorf("window = (%d,%d)", x, y)
	}
	if x, y := doc.ToViewSpace(p, vp); x != 5.5 || y != 5 {
		t.Errorf("view = (%v,%v)", x, y)
	}

	box := ink.Mapper{Mode: ink.ModeContainer, OriginX: 20, OriginY: 40}
	p = box.ToStorageSpace(25, 45, vp)
	if p.X != 5 || p.Y != 5 {
		t.Fatalf("container mode = %+v", p)
	}
	if x, y := box.Window(vp); x != 0 || y != 0 {
		t.Error("container mode ignores scroll")
	}
}
