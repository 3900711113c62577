package domain

// Tool width ranges exposed by the toolbar.
const (
	PenMinWidth         = 1
	PenMaxWidth         = 20
	HighlighterMinWidth = 5
	HighlighterMaxWidth = 50

	DefaultPenColor           = "#000000"
	DefaultPenWidth           = 3
	DefaultHighlighterColor   = "#FFFF00"
	DefaultHighlighterWidth   = 20
	DefaultHighlighterOpacity = 0.4
	DefaultEraserWidth        = 15
)

// ToolSettings is the configuration surface the toolbar hands to the engine.
type ToolSettings struct {
	Tool               Tool    `json:"tool"`
	PenColor           string  `json:"penColor"`
	PenWidth           float64 `json:"penWidth"`
	HighlighterColor   string  `json:"highlighterColor"`
	HighlighterWidth   float64 `json:"highlighterWidth"`
	HighlighterOpacity float64 `json:"highlighterOpacity"`
	EraserWidth        float64 `json:"eraserWidth"`
}

// DefaultToolSettings returns the settings a fresh toolbar starts with.
func DefaultToolSettings() ToolSettings {
	return ToolSettings{
		Tool:               ToolPen,
		PenColor:           DefaultPenColor,
		PenWidth:           DefaultPenWidth,
		HighlighterColor:   DefaultHighlighterColor,
		HighlighterWidth:   DefaultHighlighterWidth,
		HighlighterOpacity: DefaultHighlighterOpacity,
		EraserWidth:        DefaultEraserWidth,
	}
}

// Normalize fills zero values with defaults and clamps widths to the
// toolbar ranges.
func (s ToolSettings) Normalize() ToolSettings {
	d := DefaultToolSettings()
	if !s.Tool.Valid() {
		s.Tool = d.Tool
	}
	if s.PenColor == "" {
		s.PenColor = d.PenColor
	}
	if s.HighlighterColor == "" {
		s.HighlighterColor = d.HighlighterColor
	}
	if s.PenWidth <= 0 {
		s.PenWidth = d.PenWidth
	}
	s.PenWidth = clamp(s.PenWidth, PenMinWidth, PenMaxWidth)
	if s.HighlighterWidth <= 0 {
		s.HighlighterWidth = d.HighlighterWidth
	}
	s.HighlighterWidth = clamp(s.HighlighterWidth, HighlighterMinWidth, HighlighterMaxWidth)
	if s.HighlighterOpacity <= 0 || s.HighlighterOpacity > 1 {
		s.HighlighterOpacity = d.HighlighterOpacity
	}
	if s.EraserWidth <= 0 {
		s.EraserWidth = d.EraserWidth
	}
	return s
}

// DefaultWidth is the width a stored stroke of tool t falls back to.
func (s ToolSettings) DefaultWidth(t Tool) float64 {
	switch t {
	case ToolPen:
		return s.PenWidth
	case ToolHighlighter:
		return s.HighlighterWidth
	default:
		return s.EraserWidth
	}
}

// DefaultOpacity is the opacity a stored stroke of tool t falls back to.
func (s ToolSettings) DefaultOpacity(t Tool) float64 {
	if t == ToolHighlighter {
		return s.HighlighterOpacity
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
