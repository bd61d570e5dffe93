// Package preview renders the frames sent to fixtures as PNG filmstrips:
// one row of pixels per frame, one column per LED.
package preview

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/output"
)

type (
	Filmstrip struct {
		Cell   int // size of one LED in pixels
		frames []lumo.ColorBuffer
	}

	// Recorder collects a filmstrip per fixture. It can be used as the
	// sender of a scheduler in place of the dispatcher.
	Recorder struct {
		mu     sync.Mutex
		cell   int
		order  []output.Fixture
		strips map[output.Fixture]*Filmstrip
	}
)

const DefaultCell = 4

func NewFilmstrip(cell int) *Filmstrip {
	if cell < 1 {
		cell = DefaultCell
	}
	return &Filmstrip{Cell: cell}
}

// Add appends a frame. The colors are copied.
func (f *Filmstrip) Add(colors lumo.ColorBuffer) {
	f.frames = append(f.frames, append(lumo.ColorBuffer(nil), colors...))
}

func (f *Filmstrip) Len() int { return len(f.frames) }

// Image draws the frames top to bottom. Shorter frames leave the rest of
// their row black.
func (f *Filmstrip) Image() image.Image {
	width := 1
	for _, frame := range f.frames {
		width = max(width, len(frame))
	}
	dc := gg.NewContext(width*f.Cell, max(len(f.frames), 1)*f.Cell)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	for y, frame := range f.frames {
		for x, c := range frame {
			b := c.Bytes()
			dc.SetRGB255(int(b[0]), int(b[1]), int(b[2]))
			dc.DrawRectangle(float64(x*f.Cell), float64(y*f.Cell), float64(f.Cell), float64(f.Cell))
			dc.Fill()
		}
	}
	return dc.Image()
}

func (f *Filmstrip) EncodePNG(w io.Writer) error {
	if err := gg.NewContextForImage(f.Image()).EncodePNG(w); err != nil {
		return fmt.Errorf("cannot encode filmstrip: %w", err)
	}
	return nil
}

func (f *Filmstrip) SavePNG(path string) error {
	if err := gg.SavePNG(path, f.Image()); err != nil {
		return fmt.Errorf("cannot save filmstrip: %w", err)
	}
	return nil
}

func NewRecorder(cell int) *Recorder {
	return &Recorder{cell: cell, strips: map[output.Fixture]*Filmstrip{}}
}

// Send records colors as the next frame of f. It never drops frames.
func (r *Recorder) Send(f output.Fixture, colors lumo.ColorBuffer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strips[f]
	if !ok {
		s = NewFilmstrip(r.cell)
		r.strips[f] = s
		r.order = append(r.order, f)
	}
	s.Add(colors)
	return true
}

// Filmstrip returns the strip recorded for f.
func (r *Recorder) Filmstrip(f output.Fixture) (*Filmstrip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strips[f]
	return s, ok
}

// Fixtures returns the fixtures in the order they first received a frame.
func (r *Recorder) Fixtures() []output.Fixture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]output.Fixture(nil), r.order...)
}
