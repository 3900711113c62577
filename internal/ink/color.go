package ink

import (
	"strconv"
	"strings"

	"annotator/internal/domain"

	"github.com/gogpu/gg"
	"golang.org/x/image/colornames"
)

// ParseColor accepts #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(r,g,b),
// rgba(r,g,b,a) and CSS color names. Anything else reports ok=false.
func ParseColor(s string) (c gg.RGBA, ok bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "":
		return gg.RGBA{}, false
	case strings.HasPrefix(s, "#"):
		h := s[1:]
		switch len(h) {
		case 3, 4, 6, 8:
		default:
			return gg.RGBA{}, false
		}
		if _, err := strconv.ParseUint(h, 16, 32); err != nil {
			return gg.RGBA{}, false
		}
		return gg.Hex(h), true
	case strings.HasPrefix(s, "rgb"):
		return parseFunctional(s)
	}
	if named, found := colornames.Map[s]; found {
		return gg.FromColor(named), true
	}
	return gg.RGBA{}, false
}

// NormalizeSettings is ToolSettings.Normalize plus color checking: a pen or
// highlighter color that does not parse falls back to the default.
func NormalizeSettings(ts domain.ToolSettings) domain.ToolSettings {
	ts = ts.Normalize()
	d := domain.DefaultToolSettings()
	if _, ok := ParseColor(ts.PenColor); !ok {
		ts.PenColor = d.PenColor
	}
	if _, ok := ParseColor(ts.HighlighterColor); !ok {
		ts.HighlighterColor = d.HighlighterColor
	}
	return ts
}

func parseFunctional(s string) (gg.RGBA, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return gg.RGBA{}, false
	}
	name := strings.TrimSpace(s[:open])
	parts := strings.Split(s[open+1:len(s)-1], ",")
	switch {
	case name == "rgb" && len(parts) == 3:
	case name == "rgba" && len(parts) == 4:
	default:
		return gg.RGBA{}, false
	}
	var ch [4]float64
	ch[3] = 1
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return gg.RGBA{}, false
		}
		if i < 3 {
			v /= 255
		}
		ch[i] = clamp01(v)
	}
	return gg.RGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
