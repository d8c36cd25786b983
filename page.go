package docrender

import (
	"fmt"
	"strings"
)

// PageSize represents paper dimensions in millimetres, portrait side up.
type PageSize struct {
	Width  float64 // Width in millimetres.
	Height float64 // Height in millimetres.
}

// Standard paper sizes.
var (
	A3      = PageSize{Width: 297, Height: 420}
	A4      = PageSize{Width: 210, Height: 297}
	A5      = PageSize{Width: 148, Height: 210}
	Letter  = PageSize{Width: 215.9, Height: 279.4}
	Legal   = PageSize{Width: 215.9, Height: 355.6}
	Tabloid = PageSize{Width: 279.4, Height: 431.8}
)

var namedSizes = map[string]PageSize{
	"a3":      A3,
	"a4":      A4,
	"a5":      A5,
	"letter":  Letter,
	"legal":   Legal,
	"tabloid": Tabloid,
}

// PageSizeByName returns the standard size with the given case-insensitive
// name, e.g. "A4" or "letter".
func PageSizeByName(name string) (PageSize, bool) {
	s, ok := namedSizes[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// oriented returns width and height in millimetres for the orientation.
func (s PageSize) oriented(o Orientation) (width, height float64) {
	w, h := s.Width, s.Height
	if w > h {
		w, h = h, w
	}
	if o == Landscape {
		return h, w
	}
	return w, h
}

// Orientation represents the page orientation.
type Orientation int

const (
	// Portrait is the default vertical orientation.
	Portrait Orientation = iota
	// Landscape rotates the page to horizontal orientation.
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// ParseOrientation accepts "portrait", "landscape" and the single-letter
// forms "P" and "L".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "p", "portrait":
		return Portrait, nil
	case "l", "landscape":
		return Landscape, nil
	}
	return Portrait, fmt.Errorf("docrender: unknown orientation %q", s)
}

// Margins represents page margins in millimetres. The right margin mirrors
// the left one. A zero field takes the default of the operation.
type Margins struct {
	Left   float64
	Top    float64
	Bottom float64
}

// DefaultMargins supply every margin a request leaves at zero.
var DefaultMargins = UniformMargins(15)

// UniformMargins returns Margins with the same value on every side.
func UniformMargins(mm float64) Margins {
	return Margins{Left: mm, Top: mm, Bottom: mm}
}

// Right returns the right margin.
func (m Margins) Right() float64 {
	return m.Left
}

// withDefaults fills each zero margin from d.
func (m Margins) withDefaults(d Margins) Margins {
	if m.Left == 0 {
		m.Left = d.Left
	}
	if m.Top == 0 {
		m.Top = d.Top
	}
	if m.Bottom == 0 {
		m.Bottom = d.Bottom
	}
	return m
}

func (m Margins) validate() error {
	if m.Left < 0 || m.Top < 0 || m.Bottom < 0 {
		return fmt.Errorf("negative margin %+v", m)
	}
	return nil
}

const mmPerInch = 25.4

func mmToInches(mm float64) float64 {
	return mm / mmPerInch
}

func mmToPoints(mm float64) float64 {
	return mm / mmPerInch * 72
}
