package domain_test

import (
	"testing"

	"annotator/internal/domain"
)

func TestNewStroke_AppliesToolDefaults(t *testing.T) {
	settings := domain.DefaultToolSettings()

	tests := []struct {
		tool    domain.Tool
		width   float64
		opacity float64
		color   string
	}{
		{domain.ToolPen, domain.DefaultPenWidth, 1, domain.DefaultPenColor},
		{domain.ToolHighlighter, domain.DefaultHighlighterWidth, domain.DefaultHighlighterOpacity, domain.DefaultHighlighterColor},
		{domain.ToolEraser, domain.DefaultEraserWidth, 1, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			s := domain.NewStroke(tt.tool, settings, domain.Point{X: 1, Y: 2})
			if s.Tool != tt.tool {
				t.Errorf("tool = %q, want %q", s.Tool, tt.tool)
			}
			if s.LineWidth != tt.width {
				t.Errorf("width = %v, want %v", s.LineWidth, tt.width)
			}
			if s.Opacity != tt.opacity {
				t.Errorf("opacity = %v, want %v", s.Opacity, tt.opacity)
			}
			if s.Color != tt.color {
				t.Errorf("color = %q, want %q", s.Color, tt.color)
			}
			if len(s.Points) != 1 {
				t.Fatalf("expected seed point, got %d points", len(s.Points))
			}
		})
	}
}

func TestNewStroke_NoSeed(t *testing.T) {
	s := domain.NewStroke(domain.ToolPen, domain.DefaultToolSettings())
	if len(s.Points) != 0 {
		t.Errorf("expected no points, got %d", len(s.Points))
	}
	s.AppendPoint(domain.Point{X: 3, Y: 4})
	if len(s.Points) != 1 || s.Points[0].X != 3 {
		t.Errorf("AppendPoint did not append: %+v", s.Points)
	}
}

func TestToolSettings_NormalizeClamps(t *testing.T) {
	s := domain.ToolSettings{PenWidth: 100, HighlighterWidth: 1, HighlighterOpacity: 3}.Normalize()
	if s.PenWidth != domain.PenMaxWidth {
		t.Errorf("pen width = %v, want %v", s.PenWidth, domain.PenMaxWidth)
	}
	if s.HighlighterWidth != domain.HighlighterMinWidth {
		t.Errorf("highlighter width = %v, want %v", s.HighlighterWidth, domain.HighlighterMinWidth)
	}
	if s.HighlighterOpacity != domain.DefaultHighlighterOpacity {
		t.Errorf("highlighter opacity = %v", s.HighlighterOpacity)
	}
	if s.Tool != domain.ToolPen || s.PenColor == "" || s.EraserWidth != domain.DefaultEraserWidth {
		t.Errorf("defaults not applied: %+v", s)
	}
}

func TestStroke_CloneIsDeep(t *testing.T) {
	s := domain.NewStroke(domain.ToolPen, domain.DefaultToolSettings(), domain.Point{X: 1, Y: 1})
	c := s.Clone()
	c.Points[0].X = 99
	if s.Points[0].X != 1 {
		t.Error("Clone shares the point slice")
	}
}

func TestStroke_Bounds(t *testing.T) {
	s := domain.Stroke{Tool: domain.ToolPen, LineWidth: 4, Points: []domain.Point{{X: 10, Y: 20}, {X: 30, Y: 5}}}
	minX, minY, maxX, maxY, ok := s.Bounds()
	if !ok {
		t.Fatal("expected bounds")
	}
	if minX != 8 || minY != 3 || maxX != 32 || maxY != 22 {
		t.Errorf("bounds = (%v,%v,%v,%v)", minX, minY, maxX, maxY)
	}
	if _, _, _, _, ok := (domain.Stroke{}).Bounds(); ok {
		t.Error("empty stroke should have no bounds")
	}
}

func TestViewport_ContentNeverSmallerThanVisible(t *testing.T) {
	v := domain.Viewport{Width: 800, Height: 600, ContentWidth: 400, ContentHeight: 3000}
	w, h := v.Content()
	if w != 800 || h != 3000 {
		t.Errorf("content = %dx%d", w, h)
	}
}
