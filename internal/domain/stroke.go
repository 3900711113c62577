package domain

// Tool identifies which instrument produced a stroke.
type Tool string

const (
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolEraser      Tool = "eraser"
)

// Valid reports whether t is one of the known tools.
func (t Tool) Valid() bool {
	switch t {
	case ToolPen, ToolHighlighter, ToolEraser:
		return true
	}
	return false
}

// Point is a sample in storage space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous mark: a tool, its style and the ordered samples.
// Color and Opacity are meaningless for the eraser.
type Stroke struct {
	Tool      Tool    `json:"tool"`
	Points    []Point `json:"points"`
	Color     string  `json:"color,omitempty"`
	LineWidth float64 `json:"lineWidth"`
	Opacity   float64 `json:"opacity"`
}

// NewStroke starts a stroke for tool using the current settings.
// Width, color and opacity are resolved here so that renderers and the
// eraser never need to default anything.
func NewStroke(tool Tool, settings ToolSettings, seed ...Point) Stroke {
	s := settings.Normalize()
	st := Stroke{Tool: tool, Points: make([]Point, 0, 16)}
	switch tool {
	case ToolHighlighter:
		st.Color = s.HighlighterColor
		st.LineWidth = s.HighlighterWidth
		st.Opacity = s.HighlighterOpacity
	case ToolEraser:
		st.LineWidth = s.EraserWidth
		st.Opacity = 1
	default:
		st.Tool = ToolPen
		st.Color = s.PenColor
		st.LineWidth = s.PenWidth
		st.Opacity = 1
	}
	st.Points = append(st.Points, seed...)
	return st
}

// AppendPoint adds a sample to the end of the stroke.
func (s *Stroke) AppendPoint(p Point) {
	s.Points = append(s.Points, p)
}

// Clone returns a deep copy, so the caller can hand it to another goroutine.
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = append([]Point(nil), s.Points...)
	return c
}

// Bounds returns the axis-aligned box of the samples, grown by half the
// line width. ok is false for a stroke without points.
func (s Stroke) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if len(s.Points) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = s.Points[0].X, s.Points[0].Y
	maxX, maxY = minX, minY
	for _, p := range s.Points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	half := s.LineWidth / 2
	return minX - half, minY - half, maxX + half, maxY + half, true
}

// CloneStrokes deep-copies a collection.
func CloneStrokes(in []Stroke) []Stroke {
	out := make([]Stroke, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
