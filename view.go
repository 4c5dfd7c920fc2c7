package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// counter is the "page/total" label, empty without items.
func (m model) counter() string {
	if m.carousel.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", m.carousel.Page()+1, m.carousel.Len())
}

func (m model) View() string {
	// Get config snapshot for rendering
	cfg := config.Get()

	color := lipgloss.Color(m.color)
	highlight := lipgloss.NewStyle().Foreground(color)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)

	width := m.carousel.Width()
	var sections []string

	if m.carousel.Len() == 0 {
		// Friendly placeholder for an empty carousel
		placeholder := lipgloss.NewStyle().
			Width(width).
			Height(m.carousel.Height()).
			Align(lipgloss.Center, lipgloss.Center)
		msg := mutedStyle.Render("No images") + "\n" + dimStyle.Render("Add sources and press r to reload")
		if m.loading {
			msg = mutedStyle.Render("Loading…")
		}
		sections = append(sections, placeholder.Render(msg))
	} else {
		sections = append(sections, m.carousel.View())
	}

	if cfg.UI.ShowCaption {
		var caption string
		if img, ok := m.current(); ok {
			name := scrollText(img.Name, m.captionWidth(), m.scrollOffset)
			counter := m.counter()
			gap := max(width-lipgloss.Width(name)-len(counter), 1)
			caption = highlight.Bold(true).Render(name) + strings.Repeat(" ", gap) + dimStyle.Render(counter)
		}
		sections = append(sections, ansi.Truncate(caption, width, ""))
	}

	dots := ""
	if m.pager.TotalPages > 1 {
		dots = m.pager.View()
		if lipgloss.Width(dots) > width {
			// Too many dots, fall back to numbers
			p := m.pager
			p.Type = paginator.Arabic
			dots = p.View()
		}
	}
	sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Center, highlight.Render(dots)))

	var status string
	if m.lastError != nil {
		status = errorStyle.Render("Error: " + m.lastError.Error())
	} else {
		auto := "auto off"
		if m.carousel.AutoScroll() {
			auto = "auto " + formatInterval(m.carousel.Interval())
		}
		loop := "loop off"
		if m.carousel.Looping() {
			loop = "loop on"
		}
		status = dimStyle.Render(auto + " · " + loop)
		if m.loading {
			status += mutedStyle.Render(" · loading")
		}
	}
	sections = append(sections, ansi.Truncate(status, width, "…"))

	contentStr := borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))

	fullUI := lipgloss.JoinVertical(lipgloss.Center, contentStr, "\n"+m.helpView())

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}

// helpView is either the full help or a hint to press ?
func (m model) helpView() string {
	if m.help.ShowAll {
		return m.help.View(m.keys)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("Press ? for help")
}

// carouselOrigin is the screen cell of the carousel's top left corner,
// following the layout of View: the centred frame with its border and
// padding, and the help below it.
func (m model) carouselOrigin() (x, y int) {
	frameW := m.carousel.Width() + 4
	frameH := m.carousel.Height() + 4
	if config.Get().UI.ShowCaption {
		frameH++
	}
	help := m.helpView()
	uiW := max(frameW, lipgloss.Width(help))
	uiH := frameH + 1 + lipgloss.Height(help)

	x = max(m.width-uiW, 0)/2 + (uiW-frameW+1)/2 + 2
	y = max(m.height-uiH, 0)/2 + 1
	return x, y
}
