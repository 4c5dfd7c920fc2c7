package main

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"gocarousel/carousel"
	"gocarousel/source"
)

const (
	minInterval  = 500 * time.Millisecond
	intervalStep = 500 * time.Millisecond

	// chrome is the rows used around the carousel: border, dots and
	// status inside the frame, the blank line and help below it.
	chrome = 6
)

// model is the Bubble Tea model for the TUI application
type model struct {
	carousel carousel.Model
	pager    paginator.Model
	help     help.Model
	keys     keyMap

	images []source.Image
	refs   []string
	loader *source.Loader
	// nil when sources are not watched
	watcher *source.Watcher
	watch   bool
	loading bool

	color      string
	renderMode string
	accents    map[string]string
	pending    map[string]bool

	width     int
	height    int
	lastError error
	log       zerolog.Logger

	// Caption scrolling state
	captionRef   string
	scrollOffset int
	scrollPause  int
	scrollTick   int
}

// UI refresh tick for the caption marquee
type tickMsg time.Time

// Result of (re)loading the sources in the background
type imagesLoadedMsg struct {
	images []source.Image
	err    error
}

// A watched source changed on disk. Changes from a watcher that has
// since been replaced are dropped.
type sourcesChangedMsg struct {
	watcher *source.Watcher
}

func newModel(cfg Config, images []source.Image, loader *source.Loader, watcher *source.Watcher, log zerolog.Logger) model {
	renderer := carousel.DetectRenderer(cfg.Render.Mode, cfg.Render.CellWidthPx, cfg.Render.CellHeightPx)
	log.Debug().Str("mode", cfg.Render.Mode).Str("renderer", rendererName(renderer)).Msg("renderer selected")

	m := model{
		carousel: carousel.New(
			carousel.WithLooping(cfg.Carousel.Loop),
			carousel.WithAutoScroll(cfg.Carousel.AutoScroll, cfg.Interval()),
			carousel.WithAnimation(
				time.Duration(cfg.Carousel.AnimationMs)*time.Millisecond,
				time.Duration(cfg.Carousel.FrameMs)*time.Millisecond,
			),
			carousel.WithRenderer(renderer),
			carousel.WithLogger(log),
		),
		pager:      newPaginator(),
		help:       help.New(),
		keys:       newKeyMap(),
		refs:       cfg.Sources,
		loader:     loader,
		watcher:    watcher,
		watch:      cfg.Watch,
		color:      cfg.UI.Color,
		renderMode: cfg.Render.Mode,
		accents:    make(map[string]string),
		pending:    make(map[string]bool),
		log:        log,
	}
	m.setImages(images)
	return m
}

func newPaginator() paginator.Model {
	p := paginator.New()
	p.Type = paginator.Dots
	p.PerPage = 1
	p.ActiveDot = "•"
	p.InactiveDot = "◦"
	return p
}

func rendererName(r carousel.Renderer) string {
	if _, ok := r.(carousel.KittyRenderer); ok {
		return carousel.RenderKitty
	}
	return carousel.RenderBlocks
}

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.UI.RefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Reload every source in background (doesn't block UI)
func (m model) loadCmd() tea.Cmd {
	loader, refs := m.loader, slices.Clone(m.refs)
	return func() tea.Msg {
		images, err := loader.Load(context.Background(), refs)
		return imagesLoadedMsg{images: images, err: err}
	}
}

// Wait for the next change to a watched source
func watchSourcesCmd(w *source.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-w.Changes(); !ok {
			return nil
		}
		return sourcesChangedMsg{watcher: w}
	}
}

// startWatcher watches the local paths among refs, or returns nil when
// there is nothing to watch.
func startWatcher(refs []string, watch bool, log zerolog.Logger) *source.Watcher {
	local := source.LocalPaths(refs)
	if !watch || len(local) == 0 {
		return nil
	}
	w, err := source.NewWatcher(local, 0, log)
	if err != nil {
		// the carousel still works, it just won't follow changes
		log.Warn().Err(err).Msg("not watching sources")
		return nil
	}
	return w
}

// setImages replaces every carousel item.
func (m *model) setImages(images []source.Image) tea.Cmd {
	m.images = images
	items := make([]carousel.Item, len(images))
	for i, img := range images {
		items[i] = carousel.Item{Name: img.Name, Image: img.Image}
	}
	return m.carousel.SetItems(items)
}

// current returns the visible image, if any.
func (m model) current() (source.Image, bool) {
	if len(m.images) == 0 {
		return source.Image{}, false
	}
	return m.images[m.carousel.Page()], true
}

// layout sizes the carousel to the window, capped at the configured width.
func (m *model) layout() {
	cfg := config.Get()
	width := m.width - 4
	if cfg.UI.MaxWidth > 0 && width > cfg.UI.MaxWidth {
		width = cfg.UI.MaxWidth
	}
	height := m.height - chrome
	if cfg.UI.ShowCaption {
		height--
	}
	if m.help.ShowAll {
		height -= helpRows(m.keys.FullHelp()) - 1
	}
	m.help.Width = width
	m.carousel.SetSize(width, height)
}

func helpRows(groups [][]key.Binding) int {
	rows := 0
	for _, g := range groups {
		rows = max(rows, len(g))
	}
	return rows
}

// captionWidth is the room left for the item name next to the counter.
func (m model) captionWidth() int {
	return max(m.carousel.Width()-len(m.counter())-1, 0)
}

// applyConfig pushes a reloaded config into the carousel.
func (m *model) applyConfig(cfg Config) tea.Cmd {
	var cmds []tea.Cmd

	cmds = append(cmds, m.carousel.SetLooping(cfg.Carousel.Loop))
	if cfg.Interval() != m.carousel.Interval() {
		cmds = append(cmds, m.carousel.SetInterval(cfg.Interval()))
	}
	if cfg.Carousel.AutoScroll != m.carousel.AutoScroll() {
		cmds = append(cmds, m.carousel.SetAutoScroll(cfg.Carousel.AutoScroll))
	}

	if cfg.Render.Mode != m.renderMode {
		m.renderMode = cfg.Render.Mode
		m.carousel.SetRenderer(carousel.DetectRenderer(cfg.Render.Mode, cfg.Render.CellWidthPx, cfg.Render.CellHeightPx))
	}

	if cfg.UI.ColorMode != "auto" {
		m.color = cfg.UI.Color
	}

	sourcesChanged := !slices.Equal(cfg.Sources, m.refs) && len(cfg.Sources) > 0
	if sourcesChanged {
		m.refs = cfg.Sources
		m.loading = true
		cmds = append(cmds, m.loadCmd())
	}
	if sourcesChanged || cfg.Watch != m.watch {
		m.watch = cfg.Watch
		if m.watcher != nil {
			m.watcher.Close()
		}
		m.watcher = startWatcher(m.refs, m.watch, m.log)
		cmds = append(cmds, watchSourcesCmd(m.watcher))
	}

	m.layout()
	return tea.Batch(cmds...)
}

// sync updates everything that follows the visible page: dots, caption
// scroll and accent colour.
func (m *model) sync() tea.Cmd {
	m.pager.SetTotalPages(m.carousel.Len())
	m.pager.Page = m.carousel.Page()

	img, ok := m.current()
	if !ok {
		m.captionRef = ""
		return nil
	}
	if img.Ref != m.captionRef {
		m.captionRef = img.Ref
		m.scrollOffset = 0
		m.scrollPause = 10
		m.scrollTick = 0
	}

	if config.Get().UI.ColorMode != "auto" {
		return nil
	}
	if c, ok := m.accents[img.Ref]; ok {
		if c != "" {
			m.color = c
		}
		return nil
	}
	if m.pending[img.Ref] {
		return nil
	}
	m.pending[img.Ref] = true
	return accentCmd(img.Ref, img.Image)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		watchConfigCmd(),
		watchSourcesCmd(m.watcher),
		m.carousel.Init(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.carousel.Close()
			if m.watcher != nil {
				m.watcher.Close()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Prev):
			cmds = append(cmds, m.carousel.Prev())
		case key.Matches(msg, m.keys.Next):
			cmds = append(cmds, m.carousel.Next())
		case key.Matches(msg, m.keys.Jump):
			// the widget clamps onto the padding pages, so stay on real items
			page := min(int(msg.String()[0]-'1'), max(m.carousel.Len()-1, 0))
			cmds = append(cmds, m.carousel.SetPage(page, true))
		case key.Matches(msg, m.keys.Auto):
			cmds = append(cmds, m.carousel.SetAutoScroll(!m.carousel.AutoScroll()))
		case key.Matches(msg, m.keys.Loop):
			cmds = append(cmds, m.carousel.SetLooping(!m.carousel.Looping()))
		case key.Matches(msg, m.keys.Faster):
			if d := m.carousel.Interval() - intervalStep; d >= minInterval {
				cmds = append(cmds, m.carousel.SetInterval(d))
			}
		case key.Matches(msg, m.keys.Slower):
			cmds = append(cmds, m.carousel.SetInterval(m.carousel.Interval()+intervalStep))
		case key.Matches(msg, m.keys.Reload):
			m.loading = true
			cmds = append(cmds, m.loadCmd())
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tickMsg:
		m.scrollCaption()
		return m, tickCmd()

	case imagesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.lastError = msg.err
			m.log.Error().Err(msg.err).Msg("reload failed")
			break
		}
		m.lastError = nil
		cmds = append(cmds, m.setImages(msg.images))

	case sourcesChangedMsg:
		if msg.watcher != m.watcher {
			break
		}
		m.loading = true
		cmds = append(cmds, m.loadCmd(), watchSourcesCmd(m.watcher))

	case configReloadMsg:
		cmds = append(cmds, m.applyConfig(config.Get()), watchConfigCmd())

	case accentMsg:
		delete(m.pending, msg.ref)
		m.accents[msg.ref] = msg.color

	case tea.MouseMsg:
		// only events over the images reach the carousel
		x, y := m.carouselOrigin()
		msg.X -= x
		msg.Y -= y
		if msg.X < 0 || msg.Y < 0 || msg.X >= m.carousel.Width() || msg.Y >= m.carousel.Height() {
			break
		}
		var cmd tea.Cmd
		m.carousel, cmd = m.carousel.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.carousel, cmd = m.carousel.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

// scrollCaption advances the caption marquee, pausing at the start of
// every loop.
func (m *model) scrollCaption() {
	img, ok := m.current()
	if !ok {
		return
	}
	m.scrollTick++
	if m.scrollPause > 0 {
		m.scrollPause--
		return
	}
	if m.scrollTick%3 != 0 {
		return
	}
	loop := scrollLoopLen(img.Name, m.captionWidth())
	if loop == 0 {
		m.scrollOffset = 0
		return
	}
	m.scrollOffset++
	if m.scrollOffset >= loop {
		m.scrollOffset = 0
		m.scrollPause = 30
	}
}
