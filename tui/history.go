// Package tui provides the full-screen Bubble Tea frontend for FableForge.
package tui

import "strings"

// History is a fixed-capacity ring of submitted commands with cursor-based
// navigation. Blank lines and consecutive duplicates are not recorded, so
// arrowing up never cycles through the same command twice in a row.
type History struct {
	buf    []string
	head   int // next write position
	count  int
	offset int // 0 = not navigating, n = n steps back from the newest entry
}

// NewHistory creates a history ring holding at most max commands.
func NewHistory(max int) *History {
	return &History{buf: make([]string, max)}
}

func (h *History) at(i int) string {
	return h.buf[(h.head-h.count+i+len(h.buf))%len(h.buf)]
}

// Push records a command, overwriting the oldest entry once full.
func (h *History) Push(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}
	if h.count > 0 && h.at(h.count-1) == cmd {
		return
	}
	h.buf[h.head] = cmd
	h.head = (h.head + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// Last returns the most recently recorded command, or "" when empty.
func (h *History) Last() string {
	if h.count == 0 {
		return ""
	}
	return h.at(h.count - 1)
}

// Prev steps the cursor toward older entries. Returns ("", false) when the
// ring is empty; at the oldest entry it keeps returning that entry.
func (h *History) Prev() (string, bool) {
	if h.count == 0 {
		return "", false
	}
	if h.offset < h.count {
		h.offset++
	}
	return h.at(h.count - h.offset), true
}

// Next steps the cursor back toward newer entries. Returns ("", false) when
// it moves past the newest entry, handing the line back to fresh input.
func (h *History) Next() (string, bool) {
	if h.offset == 0 {
		return "", false
	}
	h.offset--
	if h.offset == 0 {
		return "", false
	}
	return h.at(h.count - h.offset), true
}

// ResetCursor leaves navigation mode.
func (h *History) ResetCursor() {
	h.offset = 0
}
