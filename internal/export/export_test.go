package export_test

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"annotator/internal/domain"
	"annotator/internal/export"
)

func sample() []domain.Stroke {
	return []domain.Stroke{
		{Tool: domain.ToolPen, Color: "#000000", LineWidth: 6, Opacity: 1,
			Points: []domain.Point{{X: 10, Y: 10}, {X: 60, Y: 10}}},
		{Tool: domain.ToolHighlighter, Color: "#FFFF00", LineWidth: 20, Opacity: 0.4,
			Points: []domain.Point{{X: 10, Y: 60}, {X: 90, Y: 60}}},
		{Tool: domain.ToolEraser, LineWidth: 400, Opacity: 1,
			Points: []domain.Point{{X: 500, Y: 500}}},
	}
}

func TestSize_FromBoundsIgnoresEraser(t *testing.T) {
	w, h := export.Size(sample(), export.Options{})
	if w != 100+export.Margin || h != 70+export.Margin {
		t.Fatalf("size = %dx%d", w, h)
	}
	w, h = export.Size(sample(), export.Options{Width: 300, Height: 200})
	if w != 300 || h != 200 {
		t.Fatalf("explicit size = %dx%d", w, h)
	}
}

func TestSize_CapsFarAwayStrokes(t *testing.T) {
	far := []domain.Stroke{{Tool: domain.ToolPen, LineWidth: 2, Opacity: 1, Color: "#000",
		Points: []domain.Point{{X: 0, Y: 0}, {X: 1e9, Y: 40}}}}
	w, h := export.Size(far, export.Options{})
	if w != export.MaxDimension || h != 40+1+export.Margin {
		t.Fatalf("size = %dx%d", w, h)
	}
	w, h = export.Size(nil, export.Options{Width: 1 << 30, Height: 1 << 30})
	if w != export.MaxDimension || h != export.MaxDimension {
		t.Fatalf("explicit size = %dx%d", w, h)
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WritePNG(&buf, sample(), export.Options{Width: 120, Height: 100}); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 100 {
		t.Fatalf("bounds = %v", b)
	}
	if _, _, _, a := img.At(30, 10).RGBA(); a == 0 {
		t.Error("expected pen ink at (30,10)")
	}
	if _, _, _, a := img.At(110, 90).RGBA(); a != 0 {
		t.Error("expected transparent corner")
	}
}

func TestWritePNG_BadBackground(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WritePNG(&buf, sample(), export.Options{Background: "nope"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSavePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.pdf")
	if err := export.SavePDF(path, sample(), export.Options{Background: "white"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("not a PDF: %q", data[:8])
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.png")
	if err := export.SavePNG(path, sample(), export.Options{}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
