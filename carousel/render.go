package carousel

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
	"github.com/nfnt/resize"
	"github.com/oliamb/cutter"
	"golang.org/x/image/draw"
)

// Renderer turns a composed frame into terminal output.
type Renderer interface {
	// CellSize returns how many frame pixels one terminal cell covers.
	CellSize() (width, height int)
	// Render draws frame into cols x rows cells.
	Render(frame image.Image, cols, rows int) string
}

// frameCache remembers the last rendered frame. Bubble Tea calls View
// after every message, most of which do not move the carousel.
type frameCache struct {
	key frameKey
	out string
}

type frameKey struct {
	gen  int
	x    int
	cols int
	rows int
}

// SetRenderer switches the renderer and rebuilds the page views.
func (m *Model) SetRenderer(r Renderer) {
	if r == nil {
		return
	}
	m.renderer = r
	m.rebuildViews()
}

// rebuildViews discards every page view and fits each item to the
// current page size again. The padding pages share the fitted image of
// the item they duplicate.
func (m *Model) rebuildViews() {
	m.viewGen++
	m.views = nil
	if m.renderer == nil {
		m.renderer = BlockRenderer{}
	}
	cw, ch := m.renderer.CellSize()
	pw, ph := m.surface.width*cw, m.surface.height*ch
	if pw <= 0 || ph <= 0 || len(m.items) == 0 {
		return
	}
	fitted := make([]image.Image, len(m.items))
	for i, it := range m.items {
		fitted[i] = coverFit(it.Image, pw, ph)
	}
	m.views = Pad(fitted, m.looping)
}

// coverFit scales img to cover w x h and crops the centre.
func coverFit(img image.Image, w, h int) image.Image {
	if img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	b := img.Bounds()
	scale := math.Max(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	sw := uint(math.Ceil(float64(b.Dx()) * scale))
	sh := uint(math.Ceil(float64(b.Dy()) * scale))
	scaled := resize.Resize(max(sw, uint(w)), max(sh, uint(h)), img, resize.Lanczos3)

	cropped, err := cutter.Crop(scaled, cutter.Config{
		Width:   w,
		Height:  h,
		Mode:    cutter.Centered,
		Options: cutter.Copy,
	})
	if err != nil {
		return scaled
	}
	return cropped
}

// composeFrame draws the part of the strip that is visible at pixel
// offset x. At most two neighbouring views are ever visible.
func composeFrame(views []image.Image, x, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 || len(views) == 0 {
		return dst
	}
	page := floorDiv(x, w)
	within := x - page*w
	for i := 0; i < 2; i++ {
		p := page + i
		if p < 0 || p >= len(views) || views[p] == nil {
			continue
		}
		left := i*w - within
		x0, x1 := max(left, 0), min(left+w, w)
		if x1 <= x0 {
			continue
		}
		vb := views[p].Bounds()
		sr := image.Rect(vb.Min.X+x0-left, vb.Min.Y, vb.Min.X+x1-left, vb.Min.Y+h)
		draw.Copy(dst, image.Pt(x0, 0), views[p], sr, draw.Src, nil)
	}
	return dst
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// View renders the visible part of the strip.
func (m Model) View() string {
	cols, rows := m.surface.width, m.surface.height
	if cols <= 0 || rows <= 0 {
		return ""
	}
	if len(m.views) == 0 || m.renderer == nil {
		return blank(cols, rows)
	}
	cw, ch := m.renderer.CellSize()
	key := frameKey{
		gen:  m.viewGen,
		x:    int(math.Round(m.surface.offset * float64(cw))),
		cols: cols,
		rows: rows,
	}
	if m.frame != nil && m.frame.key == key {
		return m.frame.out
	}
	frame := composeFrame(m.views, key.x, cols*cw, rows*ch)
	out := m.renderer.Render(frame, cols, rows)
	if m.frame != nil {
		m.frame.key, m.frame.out = key, out
	}
	return out
}

func blank(cols, rows int) string {
	line := strings.Repeat(" ", cols)
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// BlockRenderer draws two pixels per cell with the upper half block,
// using the foreground for the top pixel and the background for the
// bottom one.
type BlockRenderer struct {
	Profile termenv.Profile
}

// shades is used when the terminal has no colour at all.
var shades = []rune(" ░▒▓█")

func (BlockRenderer) CellSize() (int, int) {
	return 1, 2
}

func (r BlockRenderer) Render(frame image.Image, cols, rows int) string {
	b := frame.Bounds()
	var sb strings.Builder
	for row := 0; row < rows; row++ {
		var last string
		for col := 0; col < cols; col++ {
			top := frame.At(b.Min.X+col, b.Min.Y+2*row)
			bottom := frame.At(b.Min.X+col, b.Min.Y+2*row+1)
			if r.Profile == termenv.Ascii {
				sb.WriteRune(shade(top, bottom))
				continue
			}
			seq := r.Profile.Color(hex(top)).Sequence(false) + ";" +
				r.Profile.Color(hex(bottom)).Sequence(true)
			if seq != last {
				sb.WriteString(termenv.CSI + seq + "m")
				last = seq
			}
			sb.WriteRune('▀')
		}
		if r.Profile != termenv.Ascii {
			sb.WriteString(termenv.CSI + termenv.ResetSeq + "m")
		}
		if row < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func hex(c color.Color) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Clamped().Hex()
}

func shade(top, bottom color.Color) rune {
	t, _ := colorful.MakeColor(top)
	u, _ := colorful.MakeColor(bottom)
	_, _, l1 := t.Hsl()
	_, _, l2 := u.Hsl()
	i := int(math.Round((l1 + l2) / 2 * float64(len(shades)-1)))
	return shades[min(max(i, 0), len(shades)-1)]
}
