package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Fonts measures and rasterizes text in the Go Regular typeface. Faces are
// cached per size. A Fonts is safe for concurrent use.
type Fonts struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

// NewFonts parses the embedded Go Regular font.
func NewFonts() (*Fonts, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing Go Regular: %w", err)
	}
	return &Fonts{font: f, faces: make(map[float64]font.Face)}, nil
}

// Face returns the face at size px.
func (f *Fonts) Face(size float64) (font.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %.1fpx face: %w", size, err)
	}
	f.faces[size] = face
	return face, nil
}

// Measure returns the advance width of text at size px.
func (f *Fonts) Measure(text string, size float64) float64 {
	face, err := f.Face(size)
	if err != nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(font.MeasureString(face, text)) / 64
}

// sizedMeasurer tracks the current font size on behalf of a canvas.
type sizedMeasurer struct {
	fonts *Fonts
	size  float64
}

func (m *sizedMeasurer) MeasureText(text string) float64 {
	return m.fonts.Measure(text, m.size)
}
