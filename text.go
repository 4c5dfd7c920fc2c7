package main

import (
	"fmt"
	"time"
)

// captionSeparator joins the end of a scrolling caption to its start.
const captionSeparator = "  •  "

// formatInterval renders an auto-scroll interval compactly: "750ms",
// "3s", "2.5s" or "01:30" from one minute on.
func formatInterval(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		if d%time.Second == 0 {
			return fmt.Sprintf("%ds", int(d/time.Second))
		}
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	seconds := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// scrollText returns a max-rune window of text starting at offset, looping
// around through captionSeparator. Text that fits is returned unchanged.
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	full := append(runes, []rune(captionSeparator)...)
	n := len(full)
	offset = ((offset % n) + n) % n

	window := make([]rune, max)
	for i := range window {
		window[i] = full[(offset+i)%n]
	}
	return string(window)
}

// scrollLoopLen is the number of steps after which a scrolling caption is
// back at its start, or 0 when it fits.
func scrollLoopLen(text string, max int) int {
	n := len([]rune(text))
	if n <= max {
		return 0
	}
	return n + len([]rune(captionSeparator))
}
