package ink

import (
	"math"

	"annotator/internal/domain"
)

// Mode selects the storage coordinate space. A session uses one mode for
// its whole life; mixing them breaks replay after a resize.
type Mode int

const (
	// ModeDocument stores client coordinates plus the scroll offset, so
	// strokes stay attached to the content when the page scrolls.
	ModeDocument Mode = iota
	// ModeContainer stores coordinates relative to the container origin
	// with no scroll compensation. Only valid for areas that never scroll.
	ModeContainer
)

func (m Mode) String() string {
	if m == ModeContainer {
		return "container"
	}
	return "document"
}

// Mapper converts client (viewport-relative) coordinates into storage space.
type Mapper struct {
	Mode Mode
	// OriginX/OriginY is the container's top-left corner in client space.
	OriginX, OriginY float64
}

// ToStorageSpace maps a client coordinate to a storage point.
func (m Mapper) ToStorageSpace(clientX, clientY float64, vp domain.Viewport) domain.Point {
	if m.Mode == ModeContainer {
		return domain.Point{X: clientX - m.OriginX, Y: clientY - m.OriginY}
	}
	return domain.Point{X: clientX + vp.ScrollX, Y: clientY + vp.ScrollY}
}

// ToViewSpace maps a storage point back to the visible layer.
func (m Mapper) ToViewSpace(p domain.Point, vp domain.Viewport) (x, y float64) {
	if m.Mode == ModeContainer {
		return p.X, p.Y
	}
	wx, wy := m.Window(vp)
	return p.X - float64(wx), p.Y - float64(wy)
}

// Window returns the top-left pixel of the committed layer that is on screen.
func (m Mapper) Window(vp domain.Viewport) (x, y int) {
	if m.Mode == ModeContainer {
		return 0, 0
	}
	return int(math.Floor(vp.ScrollX)), int(math.Floor(vp.ScrollY))
}
