package utils

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Tail ends a truncated string.
const Tail = "…"

// Truncate shortens s to at most width terminal cells, ending it with Tail
// when anything was cut. Escape sequences do not count toward the width.
func Truncate(s string, width int) string {
	return ansi.Truncate(s, width, Tail)
}

// OneLine collapses every run of whitespace in s into a single space, so a
// multi-line program fits one table cell.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
