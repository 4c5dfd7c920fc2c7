package carousel

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// advanceMsg is one tick of the auto-scroll timer. Ticks whose tag no
// longer matches the carousel belong to a cancelled timer and are dropped.
type advanceMsg struct {
	id  int
	tag int
}

// AutoScroll reports whether automatic advancement is enabled.
func (m Model) AutoScroll() bool {
	return m.autoScroll
}

// Interval returns the time between automatic advances.
func (m Model) Interval() time.Duration {
	return m.interval
}

// Running reports whether the auto-scroll timer is armed.
func (m Model) Running() bool {
	return m.running
}

// SetAutoScroll enables or disables automatic advancement.
func (m *Model) SetAutoScroll(enabled bool) tea.Cmd {
	m.autoScroll = enabled
	if !enabled {
		m.stopAutoScroll()
		return nil
	}
	return m.startAutoScroll()
}

// SetInterval changes the time between automatic advances and restarts
// the timer when auto-scroll is enabled. Non-positive intervals are
// ignored.
func (m *Model) SetInterval(d time.Duration) tea.Cmd {
	if d <= 0 {
		return nil
	}
	m.interval = d
	if !m.autoScroll {
		return nil
	}
	return m.startAutoScroll()
}

// startAutoScroll replaces any running timer with a fresh one when the
// carousel has something to scroll through.
func (m *Model) startAutoScroll() tea.Cmd {
	m.stopAutoScroll()
	if m.closed || !m.autoScroll || len(m.items) <= 1 {
		return nil
	}
	m.running = true
	m.log.Debug().Dur("interval", m.interval).Msg("auto-scroll armed")
	return m.advanceCmd()
}

// stopAutoScroll invalidates the current timer. Any tick already in
// flight is discarded when it arrives.
func (m *Model) stopAutoScroll() {
	m.timerTag++
	m.running = false
}

// syncAutoScroll arms the timer when it should be running but is not,
// and disarms it when there is no longer anything to scroll through.
func (m *Model) syncAutoScroll() tea.Cmd {
	switch {
	case m.running && len(m.items) <= 1:
		m.stopAutoScroll()
	case !m.running && m.autoScroll:
		return m.startAutoScroll()
	}
	return nil
}

func (m Model) advanceCmd() tea.Cmd {
	id, tag := m.id, m.timerTag
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return advanceMsg{id: id, tag: tag}
	})
}

func (m *Model) advance(msg advanceMsg) tea.Cmd {
	if msg.id != m.id || msg.tag != m.timerTag || !m.running {
		return nil
	}
	// A full lap includes the trailing copy of the first item; landing
	// there is undone by DidScroll once the animation arrives.
	next := NextPage(m.InternalPage(), len(m.padded))
	m.log.Debug().Int("page", next).Msg("auto-advance")
	return tea.Batch(m.setPage(next, true), m.advanceCmd())
}
