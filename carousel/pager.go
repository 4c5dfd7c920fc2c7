// Package carousel provides a horizontally paged, looping image carousel
// for Bubble Tea programs.
//
// A carousel with looping enabled and more than one item lays out N+2
// pages: a copy of the last item, the items themselves, and a copy of the
// first item. Whenever the scroll offset lands fully on one of those
// copies it is moved, without animation, to the real item it duplicates.
// Since both pages look the same the jump is invisible and the strip
// appears to wrap around in both directions.
package carousel

import (
	"image"
	"math"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// Item is one page of the carousel.
type Item struct {
	Name  string
	Image image.Image
}

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}

// Pad returns the list that is actually laid out on the scroll surface.
// With looping enabled and more than one item the result is
// [last, items..., first]; otherwise items is returned unchanged.
func Pad[T any](items []T, looping bool) []T {
	if !looping || len(items) <= 1 {
		return items
	}
	padded := make([]T, 0, len(items)+2)
	padded = append(padded, items[len(items)-1])
	padded = append(padded, items...)
	padded = append(padded, items[0])
	return padded
}

// PageForOffset returns the page nearest to offset for pages of the given
// width. Testing the midpoint tolerates sub-cell rest positions.
func PageForOffset(offset, width float64) int {
	if width <= 0 {
		return 0
	}
	return int(math.Floor((offset + width/2) / width))
}

// NextPage is the auto-advance target after current in a strip of count
// pages.
func NextPage(current, count int) int {
	if current+1 >= count {
		return 0
	}
	return current + 1
}

// reanchor applies the loop boundary correction for count real items.
// It reports whether the offset changed.
func reanchor(offset, width float64, count int) (float64, bool) {
	if width <= 0 || count <= 1 {
		return offset, false
	}
	switch {
	case offset >= width*float64(count+1):
		// fully on the trailing copy of the first item
		return width, true
	case offset <= 0:
		// fully on the leading copy of the last item
		return offset + width*float64(count), true
	}
	return offset, false
}

// Model is the carousel widget.
type Model struct {
	id int

	items   []Item
	padded  []Item
	looping bool

	surface Surface

	// page requested while the surface had no width yet
	anchorPage int

	autoScroll bool
	interval   time.Duration
	running    bool
	timerTag   int

	closed bool

	renderer Renderer
	views    []image.Image
	viewGen  int
	frame    *frameCache

	log zerolog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLooping sets whether the carousel wraps around at both ends.
func WithLooping(looping bool) Option {
	return func(m *Model) {
		m.looping = looping
	}
}

// WithAutoScroll enables automatic advancement every interval.
func WithAutoScroll(enabled bool, interval time.Duration) Option {
	return func(m *Model) {
		m.autoScroll = enabled
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithAnimation sets the duration of animated page moves and the time
// between animation frames. A zero duration disables animation.
func WithAnimation(duration, frame time.Duration) Option {
	return func(m *Model) {
		m.surface.Duration = duration
		if frame > 0 {
			m.surface.FrameInterval = frame
		}
	}
}

// WithRenderer sets how page views are drawn.
func WithRenderer(r Renderer) Option {
	return func(m *Model) {
		if r != nil {
			m.renderer = r
		}
	}
}

// WithLogger sets the logger used for debug events.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Model) {
		m.log = log
	}
}

// New creates an empty carousel. Looping is on and auto-scroll is off
// unless options say otherwise.
func New(opts ...Option) Model {
	m := Model{
		id:       nextID(),
		looping:  true,
		interval: 3 * time.Second,
		surface: Surface{
			Duration:      300 * time.Millisecond,
			FrameInterval: 16 * time.Millisecond,
		},
		renderer: BlockRenderer{},
		frame:    &frameCache{},
		log:      zerolog.Nop(),
	}
	m.surface.id = m.id
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ID returns the unique identifier of the carousel.
func (m Model) ID() int {
	return m.id
}

// Items returns the items as supplied by the caller.
func (m Model) Items() []Item {
	return m.items
}

// Len returns the number of real items.
func (m Model) Len() int {
	return len(m.items)
}

// Looping reports whether looping is enabled. See CanLoop.
func (m Model) Looping() bool {
	return m.looping
}

// CanLoop reports whether the carousel is actually looping: looping must be
// enabled and there must be more than one item.
func (m Model) CanLoop() bool {
	return m.looping && len(m.items) > 1
}

func (m Model) loopOffset() int {
	if m.CanLoop() {
		return 1
	}
	return 0
}

// Offset returns the raw scroll offset in columns.
func (m Model) Offset() float64 {
	return m.surface.offset
}

// Width returns the page width in columns.
func (m Model) Width() int {
	return m.surface.width
}

// Height returns the page height in rows.
func (m Model) Height() int {
	return m.surface.height
}

// InternalPage returns the index into the padded list nearest to the
// current offset.
func (m Model) InternalPage() int {
	if m.surface.width <= 0 {
		return m.anchorPage
	}
	return PageForOffset(m.surface.offset, float64(m.surface.width))
}

// Page returns the index of the visible item in the list passed to
// SetItems. The padding pages report the item they duplicate.
func (m Model) Page() int {
	n := len(m.items)
	if n == 0 {
		return 0
	}
	p := m.InternalPage() - m.loopOffset()
	switch {
	case p < 0:
		p = n - 1
	case p >= n:
		p = 0
	}
	return p
}

// Current returns the visible item, if any.
func (m Model) Current() (Item, bool) {
	if len(m.items) == 0 {
		return Item{}, false
	}
	return m.items[m.Page()], true
}

// SetItems replaces the whole item list and reconfigures the carousel.
func (m *Model) SetItems(items []Item) tea.Cmd {
	m.items = append([]Item(nil), items...)
	return m.Reconfigure()
}

// SetLooping turns looping on or off, keeping the visible item.
func (m *Model) SetLooping(looping bool) tea.Cmd {
	if looping == m.looping {
		return nil
	}
	page := m.Page()
	m.looping = looping
	cmd := m.Reconfigure()
	m.setPage(page+m.loopOffset(), false)
	return cmd
}

// Reconfigure rebuilds the padded list and every page view, and moves the
// first real item into view without animation.
func (m *Model) Reconfigure() tea.Cmd {
	m.padded = Pad(m.items, m.looping)
	m.surface.pages = len(m.padded)
	m.surface.dragging = false
	m.rebuildViews()

	m.anchorPage = m.loopOffset()
	m.surface.SetOffset(float64(m.anchorPage*m.surface.width), m)

	m.log.Debug().
		Int("items", len(m.items)).
		Int("pages", len(m.padded)).
		Bool("loop", m.CanLoop()).
		Msg("carousel reconfigured")

	return m.syncAutoScroll()
}

// SetSize lays the carousel out at width columns by height rows and snaps
// to the page nearest to the current offset.
func (m *Model) SetSize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if width == m.surface.width && height == m.surface.height {
		return
	}
	page := m.InternalPage()
	m.surface.dragging = false
	m.surface.width = width
	m.surface.height = height
	m.rebuildViews()
	m.setPage(page, false)
}

// SetPage moves to item page of the list passed to SetItems. Out of range
// pages are clamped. Auto-scroll restarts its interval from now.
func (m *Model) SetPage(page int, animated bool) tea.Cmd {
	m.stopAutoScroll()
	cmd := m.setPage(page+m.loopOffset(), animated)
	return tea.Batch(cmd, m.syncAutoScroll())
}

// Next moves one page forward, animated.
func (m *Model) Next() tea.Cmd {
	return m.step(1)
}

// Prev moves one page back, animated.
func (m *Model) Prev() tea.Cmd {
	return m.step(-1)
}

func (m *Model) step(delta int) tea.Cmd {
	if len(m.padded) == 0 {
		return nil
	}
	base := m.InternalPage()
	if m.surface.anim.active && m.surface.width > 0 {
		base = PageForOffset(m.surface.anim.to, float64(m.surface.width))
	}
	if m.CanLoop() && m.surface.width > 0 {
		// fold a padding target onto its real item so the step is not
		// clamped away at the seam
		n := len(m.items)
		w := float64(m.surface.width)
		switch {
		case base >= n+1:
			m.surface.shift(-w * float64(n))
			base -= n
		case base <= 0:
			m.surface.shift(w * float64(n))
			base += n
		}
	}
	m.stopAutoScroll()
	cmd := m.setPage(base+delta, true)
	return tea.Batch(cmd, m.syncAutoScroll())
}

// setPage clamps page into the padded list and moves the surface there.
func (m *Model) setPage(page int, animated bool) tea.Cmd {
	if len(m.padded) == 0 {
		m.anchorPage = 0
		return nil
	}
	page = min(max(page, 0), len(m.padded)-1)
	m.anchorPage = page
	return m.surface.ScrollTo(float64(page*m.surface.width), animated, m)
}

// DidScroll re-anchors the offset when it has moved fully onto one of the
// padding pages. The correction is applied in place and is not reported
// back as a scroll, so it is never evaluated twice.
func (m *Model) DidScroll(s *Surface) {
	if !m.CanLoop() {
		return
	}
	offset, changed := reanchor(s.offset, float64(s.width), len(m.items))
	if !changed {
		return
	}
	s.shift(offset - s.offset)
	m.anchorPage = PageForOffset(s.offset, float64(s.width))
}

// WillBeginDragging suspends auto-scroll for the duration of the drag.
func (m *Model) WillBeginDragging(*Surface) {
	m.stopAutoScroll()
}

// DidEndDragging re-arms auto-scroll.
func (m *Model) DidEndDragging(*Surface) tea.Cmd {
	return m.syncAutoScroll()
}

// Close stops the timer and any animation. The carousel ignores every
// message it receives afterwards.
func (m *Model) Close() {
	m.stopAutoScroll()
	m.surface.cancelAnimation()
	m.surface.dragging = false
	m.closed = true
}

// Init starts the auto-scroll timer when it is already armed.
func (m Model) Init() tea.Cmd {
	if m.closed || !m.running {
		return nil
	}
	return m.advanceCmd()
}

// Update handles animation frames, auto-scroll ticks and mouse input.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.closed {
		return m, nil
	}

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case frameMsg:
		cmd = m.surface.advanceFrame(msg, &m)

	case advanceMsg:
		cmd = m.advance(msg)

	case tea.MouseMsg:
		cmd = m.handleMouse(msg)
	}

	return m, cmd
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Button {
	case tea.MouseButtonWheelRight, tea.MouseButtonWheelDown:
		return m.Next()
	case tea.MouseButtonWheelLeft, tea.MouseButtonWheelUp:
		return m.Prev()
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && len(m.padded) > 0 {
			m.surface.BeginDrag(msg.X, m)
		}
	case tea.MouseActionMotion:
		m.surface.DragTo(msg.X, m)
	case tea.MouseActionRelease:
		return m.surface.EndDrag(msg.X, m)
	}
	return nil
}
