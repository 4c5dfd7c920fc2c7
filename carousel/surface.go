package carousel

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// flickRatio is the fraction of a page a drag has to travel to move to
// the neighbouring page instead of snapping back.
const flickRatio = 0.2

// ScrollObserver receives the notifications of a Surface.
type ScrollObserver interface {
	// DidScroll is called after every change of the offset caused by a
	// drag, an animation frame or an explicit move.
	DidScroll(s *Surface)
	WillBeginDragging(s *Surface)
	DidEndDragging(s *Surface) tea.Cmd
}

// frameMsg drives one step of an animated move.
type frameMsg struct {
	id  int
	tag int
}

type animation struct {
	active   bool
	from, to float64
	step     int
	steps    int
}

// Surface is a horizontally scrolling strip of equally sized pages.
// Offsets are measured in columns from the left edge of the first page.
type Surface struct {
	id     int
	offset float64
	width  int
	height int
	pages  int

	// Duration is the length of an animated move.
	Duration time.Duration
	// FrameInterval is the time between animation frames.
	FrameInterval time.Duration

	anim    animation
	animTag int

	dragging bool
	dragX    int
	dragFrom float64
}

func (s *Surface) maxOffset() float64 {
	if s.pages <= 1 || s.width <= 0 {
		return 0
	}
	return float64((s.pages - 1) * s.width)
}

// Animating reports whether an animated move is in progress.
func (s *Surface) Animating() bool {
	return s.anim.active
}

// Dragging reports whether a drag is in progress.
func (s *Surface) Dragging() bool {
	return s.dragging
}

// SetOffset moves to x immediately, cancelling any animation.
func (s *Surface) SetOffset(x float64, obs ScrollObserver) {
	s.cancelAnimation()
	s.offset = x
	if obs != nil {
		obs.DidScroll(s)
	}
}

// ScrollTo moves to x, animated or not. The returned command drives the
// animation.
func (s *Surface) ScrollTo(x float64, animated bool, obs ScrollObserver) tea.Cmd {
	if !animated || s.width <= 0 || s.Duration <= 0 || x == s.offset {
		s.SetOffset(x, obs)
		return nil
	}
	s.cancelAnimation()

	steps := 1
	if s.FrameInterval > 0 {
		steps = max(int(s.Duration/s.FrameInterval), 1)
	}
	s.anim = animation{active: true, from: s.offset, to: x, steps: steps}
	return s.frameCmd()
}

func (s *Surface) cancelAnimation() {
	s.animTag++
	s.anim = animation{}
}

// shift moves the offset by delta without notifying anyone. An animation
// in flight and the origin of a drag move along with it.
func (s *Surface) shift(delta float64) {
	s.offset += delta
	if s.anim.active {
		s.anim.from += delta
		s.anim.to += delta
	}
	if s.dragging {
		s.dragFrom += delta
	}
}

func (s *Surface) frameCmd() tea.Cmd {
	id, tag := s.id, s.animTag
	return tea.Tick(s.FrameInterval, func(time.Time) tea.Msg {
		return frameMsg{id: id, tag: tag}
	})
}

func (s *Surface) advanceFrame(msg frameMsg, obs ScrollObserver) tea.Cmd {
	if msg.id != s.id || msg.tag != s.animTag || !s.anim.active {
		return nil
	}
	s.anim.step++
	if s.anim.step >= s.anim.steps {
		s.offset = s.anim.to
		s.anim.active = false
	} else {
		t := float64(s.anim.step) / float64(s.anim.steps)
		s.offset = s.anim.from + (s.anim.to-s.anim.from)*easeOutCubic(t)
	}
	if obs != nil {
		obs.DidScroll(s)
	}
	if !s.anim.active {
		return nil
	}
	return s.frameCmd()
}

func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// BeginDrag starts a drag at column x.
func (s *Surface) BeginDrag(x int, obs ScrollObserver) {
	s.cancelAnimation()
	s.dragging = true
	s.dragX = x
	s.dragFrom = s.offset
	if obs != nil {
		obs.WillBeginDragging(s)
	}
}

// DragTo follows the pointer to column x. Content moves with the pointer,
// so dragging to the right scrolls back.
func (s *Surface) DragTo(x int, obs ScrollObserver) {
	if !s.dragging {
		return
	}
	dx := x - s.dragX
	s.dragX = x
	if dx == 0 {
		return
	}
	s.offset = min(max(s.offset-float64(dx), 0), s.maxOffset())
	if obs != nil {
		obs.DidScroll(s)
	}
}

// EndDrag releases the pointer at column x and settles on a page.
func (s *Surface) EndDrag(x int, obs ScrollObserver) tea.Cmd {
	if !s.dragging {
		return nil
	}
	s.DragTo(x, obs)
	s.dragging = false

	var cmd tea.Cmd
	if obs != nil {
		cmd = obs.DidEndDragging(s)
	}
	if s.width <= 0 || s.pages == 0 {
		return cmd
	}
	target := float64(s.settlePage() * s.width)
	return tea.Batch(cmd, s.ScrollTo(target, true, obs))
}

// settlePage picks the page a released drag comes to rest on.
func (s *Surface) settlePage() int {
	w := float64(s.width)
	page := PageForOffset(s.offset, w)
	start := PageForOffset(s.dragFrom, w)
	if page == start {
		moved := s.offset - float64(start)*w
		switch {
		case moved > w*flickRatio:
			page++
		case moved < -w*flickRatio:
			page--
		}
	}
	return min(max(page, 0), s.pages-1)
}
