package ink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"

	"annotator/internal/domain"
)

// storedStroke is the on-disk shape. Older records may lack lineWidth,
// opacity or color, so those are pointers and filled in on load.
type storedStroke struct {
	Tool      domain.Tool    `json:"tool"`
	Points    []domain.Point `json:"points"`
	Color     *string        `json:"color,omitempty"`
	LineWidth *float64       `json:"lineWidth,omitempty"`
	Opacity   *float64       `json:"opacity,omitempty"`
}

// Serialize encodes drawings as a JSON array in commit order. Eraser
// strokes are never written.
func Serialize(drawings []domain.Stroke) ([]byte, error) {
	out := make([]domain.Stroke, 0, len(drawings))
	for _, s := range drawings {
		if s.Tool == domain.ToolEraser {
			continue
		}
		out = append(out, s)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("serialize annotations: %w", err)
	}
	return data, nil
}

// Decode parses a stored record. Missing fields take the defaults from
// settings; eraser entries, unknown tools and entries without points are
// dropped. A parse error returns an empty collection and the error.
func Decode(data []byte, settings domain.ToolSettings) ([]domain.Stroke, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []domain.Stroke{}, nil
	}
	var raw []storedStroke
	if err := json.Unmarshal(data, &raw); err != nil {
		return []domain.Stroke{}, fmt.Errorf("decode annotations: %w", err)
	}

	settings = NormalizeSettings(settings)
	out := make([]domain.Stroke, 0, len(raw))
	for _, r := range raw {
		if r.Tool == domain.ToolEraser || !r.Tool.Valid() || len(r.Points) == 0 {
			continue
		}
		out = append(out, normalizeStored(r, settings))
	}
	return out, nil
}

// Deserialize is Decode for callers that only want the collection; parse
// failures are logged and yield no annotations.
func Deserialize(data []byte, settings domain.ToolSettings) []domain.Stroke {
	drawings, err := Decode(data, settings)
	if err != nil {
		log.Printf("annotations: discarding unreadable record: %v", err)
	}
	return drawings
}

func normalizeStored(r storedStroke, settings domain.ToolSettings) domain.Stroke {
	s := domain.NewStroke(r.Tool, settings)
	s.Points = append(s.Points[:0], r.Points...)
	if r.Color != nil {
		if _, ok := ParseColor(*r.Color); ok {
			s.Color = *r.Color
		}
	}
	if r.LineWidth != nil && *r.LineWidth > 0 {
		s.LineWidth = *r.LineWidth
	}
	if r.Opacity != nil && *r.Opacity > 0 && *r.Opacity <= 1 {
		s.Opacity = *r.Opacity
	}
	return s
}
