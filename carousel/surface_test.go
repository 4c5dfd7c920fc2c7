package carousel

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder counts observer notifications
type recorder struct {
	scrolls []float64
	begins  int
	ends    int
}

func (r *recorder) DidScroll(s *Surface) { r.scrolls = append(r.scrolls, s.offset) }
func (r *recorder) WillBeginDragging(*Surface) { r.begins++ }
func (r *recorder) DidEndDragging(*Surface) tea.Cmd {
	r.ends++
	return nil
}

func newSurface() *Surface {
	s := New().surface
	s.width = 10
	s.height = 2
	s.pages = 4
	return &s
}

func TestSurfaceScrollTo(t *testing.T) {
	t.Run("immediate", func(t *testing.T) {
		s := newSurface()
		rec := &recorder{}
		cmd := s.ScrollTo(20, false, rec)
		assert.Nil(t, cmd)
		assert.Equal(t, []float64{20}, rec.scrolls)
	})

	t.Run("zero duration never animates", func(t *testing.T) {
		s := newSurface()
		s.Duration = 0
		assert.Nil(t, s.ScrollTo(20, true, nil))
		assert.Equal(t, 20.0, s.offset)
	})

	t.Run("frames move monotonically to the target", func(t *testing.T) {
		s := newSurface()
		rec := &recorder{}
		require.NotNil(t, s.ScrollTo(30, true, rec))
		for s.Animating() {
			s.advanceFrame(frameMsg{id: s.id, tag: s.animTag}, rec)
		}
		require.NotEmpty(t, rec.scrolls)
		for i := 1; i < len(rec.scrolls); i++ {
			assert.GreaterOrEqual(t, rec.scrolls[i], rec.scrolls[i-1])
		}
		assert.Equal(t, 30.0, rec.scrolls[len(rec.scrolls)-1])
	})

	t.Run("new move cancels the old frames", func(t *testing.T) {
		s := newSurface()
		s.ScrollTo(30, true, nil)
		stale := frameMsg{id: s.id, tag: s.animTag}
		s.SetOffset(10, nil)
		assert.Nil(t, s.advanceFrame(stale, nil))
		assert.Equal(t, 10.0, s.offset)
	})
}

func TestSurfaceShift(t *testing.T) {
	s := newSurface()
	s.ScrollTo(30, true, nil)
	s.BeginDrag(0, nil)
	// drag cancelled the animation
	assert.False(t, s.Animating())

	s.shift(5)
	assert.Equal(t, 5.0, s.offset)
	assert.Equal(t, 5.0, s.dragFrom)
}

func TestSettlePage(t *testing.T) {
	tests := []struct {
		name   string
		from   float64
		offset float64
		want   int
	}{
		{"no movement", 10, 10, 1},
		{"small forward", 10, 11, 1},
		{"flick forward", 10, 13, 2},
		{"flick back", 10, 7, 0},
		{"past midpoint", 10, 16, 2},
		{"clamped at end", 30, 33, 3},
		{"clamped at start", 0, -3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSurface()
			s.dragFrom = tt.from
			s.offset = tt.offset
			assert.Equal(t, tt.want, s.settlePage())
		})
	}
}

func TestDragNotifications(t *testing.T) {
	s := newSurface()
	rec := &recorder{}

	s.DragTo(5, rec)
	assert.Empty(t, rec.scrolls, "motion without press is ignored")

	s.BeginDrag(5, rec)
	s.DragTo(3, rec)
	assert.Equal(t, []float64{2}, rec.scrolls)
	s.EndDrag(3, rec)
	assert.Equal(t, 1, rec.begins)
	assert.Equal(t, 1, rec.ends)
	assert.False(t, s.Dragging())

	assert.Nil(t, s.EndDrag(3, rec))
	assert.Equal(t, 1, rec.ends)
}
