package mcpserver

import (
	"encoding/json"
	"fmt"

	"annotator/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// parsePoints accepts either [{"x":1,"y":2}, ...] or [[1,2], ...].
func parsePoints(data string) ([]domain.Point, error) {
	var pts []domain.Point
	if err := parseJSON(data, &pts); err == nil {
		return pts, nil
	}
	var pairs [][]float64
	if err := parseJSON(data, &pairs); err != nil {
		return nil, fmt.Errorf("points must be a JSON array of {x,y} objects or [x,y] pairs: %w", err)
	}
	pts = make([]domain.Point, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("point %d: want [x,y], got %d values", i, len(p))
		}
		pts = append(pts, domain.Point{X: p[0], Y: p[1]})
	}
	return pts, nil
}

// strokeSummary is the compact per-stroke view returned to agents.
type strokeSummary struct {
	Index     int        `json:"index"`
	Tool      string     `json:"tool"`
	Color     string     `json:"color,omitempty"`
	LineWidth float64    `json:"lineWidth"`
	Opacity   float64    `json:"opacity"`
	Points    int        `json:"points"`
	Bounds    [4]float64 `json:"bounds"`
}

func summarizeStrokes(drawings []domain.Stroke) []strokeSummary {
	out := make([]strokeSummary, 0, len(drawings))
	for i, st := range drawings {
		x0, y0, x1, y1, _ := st.Bounds()
		out = append(out, strokeSummary{
			Index:     i,
			Tool:      string(st.Tool),
			Color:     st.Color,
			LineWidth: st.LineWidth,
			Opacity:   st.Opacity,
			Points:    len(st.Points),
			Bounds:    [4]float64{x0, y0, x1, y1},
		})
	}
	return out
}
