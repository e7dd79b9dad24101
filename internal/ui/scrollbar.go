package ui

import (
	"strings"
)

const (
	scrollThumbChar = "█"
	scrollTrackChar = "░"
)

// thumbBounds returns the start row and height of the scroll thumb for a
// pane with total content lines, a viewport of the given height, and the
// current top-line offset. Thumb height is proportional to the
// visible/total ratio, never below one row.
func thumbBounds(total, height, offset int) (start, thumb int) {
	if total <= 0 || height <= 0 {
		return 0, 0
	}
	if total <= height {
		return 0, height
	}

	thumb = max(1, height*height/total)

	maxOffset := total - height
	track := height - thumb
	if track <= 0 {
		return 0, thumb
	}

	start = track * offset / maxOffset
	start = max(0, min(start, height-thumb))
	return start, thumb
}

// offsetForRow maps a click on scrollbar row (0-based within the track)
// back to a viewport top-line offset.
func offsetForRow(total, height, row int) int {
	if total <= height || height <= 0 {
		return 0
	}
	maxOffset := total - height
	off := row * maxOffset / max(1, height-1)
	return max(0, min(off, maxOffset))
}

// renderScrollbar renders a one-column scrollbar of the given height.
func (m *Model) renderScrollbar(total, height, offset int) string {
	if height <= 0 {
		return ""
	}
	if total <= height {
		return strings.TrimRight(strings.Repeat(" \n", height), "\n")
	}

	start, thumb := thumbBounds(total, height, offset)
	lines := make([]string, height)
	for row := range height {
		if row >= start && row < start+thumb {
			lines[row] = m.styles.ScrollbarThumb.Render(scrollThumbChar)
		} else {
			lines[row] = m.styles.Scrollbar.Render(scrollTrackChar)
		}
	}
	return strings.Join(lines, "\n")
}
