// Package export renders a page's committed strokes to PNG and PDF files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gogpu/gg"
	"github.com/jung-kurt/gofpdf"

	"annotator/internal/domain"
	"annotator/internal/ink"
)

// Margin is added around the stroke bounds when no explicit size is given.
const Margin = 16

// MaxDimension caps either side of the canvas, derived or explicit. Strokes
// beyond it are clipped.
const MaxDimension = 16384

// Options controls the output canvas.
type Options struct {
	// Width and Height fix the canvas size; zero derives it from the strokes.
	Width, Height int
	// Background fills the canvas first; empty leaves it transparent (PNG)
	// or white (PDF).
	Background string
	Smooth     bool
}

// Size returns the canvas size for drawings under opts, at most
// MaxDimension on each side.
func Size(drawings []domain.Stroke, opts Options) (w, h int) {
	w, h = min(opts.Width, MaxDimension), min(opts.Height, MaxDimension)
	if w > 0 && h > 0 {
		return w, h
	}
	maxX, maxY := 0.0, 0.0
	for _, s := range drawings {
		if s.Tool == domain.ToolEraser {
			continue
		}
		_, _, x1, y1, ok := s.Bounds()
		if !ok {
			continue
		}
		maxX = math.Max(maxX, x1)
		maxY = math.Max(maxY, y1)
	}
	if w <= 0 {
		w = fitDimension(maxX)
	}
	if h <= 0 {
		h = fitDimension(maxY)
	}
	return w, h
}

func fitDimension(extent float64) int {
	v := math.Ceil(extent) + Margin
	if math.IsNaN(v) || v > MaxDimension {
		return MaxDimension
	}
	return int(v)
}

// WritePNG renders drawings in commit order and encodes the result.
func WritePNG(w io.Writer, drawings []domain.Stroke, opts Options) error {
	cw, ch := Size(drawings, opts)
	dc := gg.NewContext(cw, ch)
	defer dc.Close()

	if opts.Background != "" {
		bg, ok := ink.ParseColor(opts.Background)
		if !ok {
			return fmt.Errorf("export png: bad background %q", opts.Background)
		}
		dc.ClearWithColor(bg)
	}
	for _, s := range drawings {
		if err := ink.DrawStroke(dc, s, 0, 0, opts.Smooth); err != nil {
			return fmt.Errorf("export png: %w", err)
		}
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("export png: %w", err)
	}
	return nil
}

// SavePNG writes a PNG file at path.
func SavePNG(path string, drawings []domain.Stroke, opts Options) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, drawings, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WritePDF writes a single-page PDF whose page matches the canvas, one
// point per pixel.
func WritePDF(w io.Writer, drawings []domain.Stroke, opts Options) error {
	cw, ch := Size(drawings, opts)
	p := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: float64(cw), Ht: float64(ch)},
	})
	p.SetAutoPageBreak(false, 0)
	p.SetMargins(0, 0, 0)
	p.AddPage()

	if opts.Background != "" {
		bg, ok := ink.ParseColor(opts.Background)
		if !ok {
			return fmt.Errorf("export pdf: bad background %q", opts.Background)
		}
		r, g, b := rgb255(bg)
		p.SetFillColor(r, g, b)
		p.Rect(0, 0, float64(cw), float64(ch), "F")
	}

	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	for _, s := range drawings {
		pdfStroke(p, s)
	}
	p.SetAlpha(1, "Normal")

	if err := p.Output(w); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}

// SavePDF writes a PDF file at path.
func SavePDF(path string, drawings []domain.Stroke, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	if err := WritePDF(f, drawings, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func pdfStroke(p *gofpdf.Fpdf, s domain.Stroke) {
	if s.Tool == domain.ToolEraser || len(s.Points) < 2 {
		return
	}
	col, ok := ink.ParseColor(s.Color)
	if !ok {
		col = gg.RGBA{A: 1}
	}
	opacity := s.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	r, g, b := rgb255(col)
	p.SetAlpha(col.A*opacity, "Normal")

	pts := s.Points
	if samePoint(pts) {
		p.SetFillColor(r, g, b)
		p.Circle(pts[0].X, pts[0].Y, s.LineWidth/2, "F")
		return
	}
	p.SetDrawColor(r, g, b)
	p.SetLineWidth(s.LineWidth)
	p.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		p.LineTo(pt.X, pt.Y)
	}
	p.DrawPath("D")
}

func rgb255(c gg.RGBA) (r, g, b int) {
	return int(math.Round(c.R * 255)), int(math.Round(c.G * 255)), int(math.Round(c.B * 255))
}

func samePoint(pts []domain.Point) bool {
	for _, p := range pts[1:] {
		if p != pts[0] {
			return false
		}
	}
	return true
}
