package carousel

import (
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func fill(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestComposeFrame(t *testing.T) {
	views := []image.Image{fill(10, 2, red), fill(10, 2, green), fill(10, 2, blue)}

	t.Run("page boundary", func(t *testing.T) {
		frame := composeFrame(views, 10, 10, 2)
		assert.Equal(t, green, frame.At(0, 0))
		assert.Equal(t, green, frame.At(9, 1))
	})

	t.Run("between pages", func(t *testing.T) {
		frame := composeFrame(views, 14, 10, 2)
		assert.Equal(t, green, frame.At(0, 0))
		assert.Equal(t, green, frame.At(5, 0))
		assert.Equal(t, blue, frame.At(6, 0))
		assert.Equal(t, blue, frame.At(9, 1))
	})

	t.Run("before the first page", func(t *testing.T) {
		frame := composeFrame(views, -3, 10, 2)
		assert.Equal(t, color.RGBA{}, frame.At(0, 0))
		assert.Equal(t, red, frame.At(3, 0))
	})

	t.Run("views with offset bounds", func(t *testing.T) {
		shifted := fill(20, 6, red).SubImage(image.Rect(5, 2, 15, 4))
		frame := composeFrame([]image.Image{shifted}, 0, 10, 2)
		assert.Equal(t, red, frame.At(0, 0))
		assert.Equal(t, red, frame.At(9, 1))
	})

	t.Run("no views", func(t *testing.T) {
		frame := composeFrame(nil, 0, 4, 2)
		assert.Equal(t, image.Rect(0, 0, 4, 2), frame.Bounds())
	})
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 1, floorDiv(14, 10))
	assert.Equal(t, -1, floorDiv(-3, 10))
	assert.Equal(t, -1, floorDiv(-10, 10))
	assert.Equal(t, 0, floorDiv(0, 10))
}

func TestCoverFit(t *testing.T) {
	t.Run("wide image", func(t *testing.T) {
		img := coverFit(fill(40, 10, red), 8, 8)
		assert.Equal(t, 8, img.Bounds().Dx())
		assert.Equal(t, 8, img.Bounds().Dy())
	})

	t.Run("nil image", func(t *testing.T) {
		img := coverFit(nil, 8, 4)
		assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
	})
}

func TestBlockRenderer(t *testing.T) {
	frame := fill(6, 4, red)
	for y := 2; y < 4; y++ {
		for x := 0; x < 6; x++ {
			frame.Set(x, y, blue)
		}
	}

	t.Run("true colour", func(t *testing.T) {
		out := BlockRenderer{Profile: termenv.TrueColor}.Render(frame, 6, 2)
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 2)
		for _, line := range lines {
			assert.Equal(t, 6, lipgloss.Width(line))
		}
		assert.Contains(t, lines[0], "38;2;255;0;0")
		assert.Contains(t, lines[1], "48;2;0;0;255")
		// one colour change per line
		assert.Equal(t, 2, strings.Count(lines[0], termenv.CSI))
	})

	t.Run("ascii", func(t *testing.T) {
		out := BlockRenderer{Profile: termenv.Ascii}.Render(frame, 6, 2)
		assert.NotContains(t, out, "\x1b")
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, 6, len([]rune(lines[0])))
	})
}

func TestEncodeKitty(t *testing.T) {
	t.Run("small image", func(t *testing.T) {
		encoded, err := encodeKitty(fill(4, 4, red), 7, 10, 5)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, "\033_Ga=d,d=I,i=7\033\\"))
		assert.Contains(t, encoded, "a=T,f=100,t=d,i=7,c=10,r=5,C=1;")
		assert.NotContains(t, encoded, "m=1")
	})

	t.Run("large image is chunked", func(t *testing.T) {
		// noise compresses badly, so the PNG exceeds one chunk
		img := image.NewRGBA(image.Rect(0, 0, 200, 200))
		r := rand.New(rand.NewSource(1))
		for i := range img.Pix {
			img.Pix[i] = uint8(r.Intn(256))
		}
		encoded, err := encodeKitty(img, 42, 10, 5)
		require.NoError(t, err)
		assert.Contains(t, encoded, ",m=1;")
		assert.Contains(t, encoded, "\033_Gm=0;")
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := encodeKitty(nil, 42, 1, 1)
		assert.Error(t, err)
	})
}

func TestKittyRenderer(t *testing.T) {
	k := KittyRenderer{}
	w, h := k.CellSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 16, h)

	out := k.Render(fill(16, 16, green), 2, 1)
	assert.Contains(t, out, "i=42")
	assert.True(t, strings.HasSuffix(out, "  "))
}

func TestSupportsKittyGraphics(t *testing.T) {
	tests := []struct {
		term, program string
		want          bool
	}{
		{"xterm-kitty", "", true},
		{"konsole-256color", "", true},
		{"xterm-256color", "ghostty", true},
		{"xterm-256color", "WezTerm", true},
		{"xterm-256color", "Apple_Terminal", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.term+"/"+tt.program, func(t *testing.T) {
			t.Setenv("TERM", tt.term)
			t.Setenv("TERM_PROGRAM", tt.program)
			assert.Equal(t, tt.want, SupportsKittyGraphics())
		})
	}
}

func TestDetectRenderer(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("TERM_PROGRAM", "")

	assert.IsType(t, KittyRenderer{}, DetectRenderer(RenderKitty, 4, 8))
	assert.IsType(t, BlockRenderer{}, DetectRenderer(RenderBlocks, 4, 8))
	assert.IsType(t, BlockRenderer{}, DetectRenderer(RenderAuto, 4, 8))

	t.Setenv("TERM", "xterm-kitty")
	r := DetectRenderer(RenderAuto, 4, 8)
	require.IsType(t, KittyRenderer{}, r)
	w, h := r.CellSize()
	assert.Equal(t, 4, w)
	assert.Equal(t, 8, h)
}

func TestView(t *testing.T) {
	t.Run("unsized", func(t *testing.T) {
		m := New()
		m.SetItems(testItems(3))
		assert.Empty(t, m.View())
	})

	t.Run("empty list is blank", func(t *testing.T) {
		m := New()
		m.SetSize(4, 2)
		assert.Equal(t, "    \n    ", m.View())
	})

	t.Run("renders viewport size", func(t *testing.T) {
		m := New(WithRenderer(BlockRenderer{Profile: termenv.TrueColor}))
		m.SetItems(testItems(3))
		m.SetSize(12, 3)
		out := m.View()
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 3)
		for _, line := range lines {
			assert.Equal(t, 12, lipgloss.Width(line))
		}
	})

	t.Run("frame is memoised until the offset moves", func(t *testing.T) {
		m := New(WithRenderer(BlockRenderer{Profile: termenv.TrueColor}))
		m.SetItems(testItems(3))
		m.SetSize(12, 3)
		first := m.View()
		key := m.frame.key
		assert.Equal(t, first, m.View())
		assert.Equal(t, key, m.frame.key)

		m.SetPage(1, false)
		_ = m.View()
		assert.NotEqual(t, key, m.frame.key)
	})

	t.Run("zero value model", func(t *testing.T) {
		var m Model
		m.SetItems(testItems(2))
		m.SetSize(4, 2)
		assert.IsType(t, BlockRenderer{}, m.renderer)
		require.Len(t, m.views, 2)
		assert.Len(t, strings.Split(m.View(), "\n"), 2)
	})

	t.Run("renderer switch rebuilds views", func(t *testing.T) {
		m := New()
		m.SetItems(testItems(2))
		m.SetSize(4, 2)
		gen := m.viewGen
		m.SetRenderer(KittyRenderer{CellWidth: 2, CellHeight: 4})
		assert.Greater(t, m.viewGen, gen)
		require.Len(t, m.views, 4)
		assert.Equal(t, 8, m.views[0].Bounds().Dx())
		assert.Equal(t, 8, m.views[0].Bounds().Dy())

		m.SetRenderer(nil)
		assert.IsType(t, KittyRenderer{}, m.renderer)
	})
}
