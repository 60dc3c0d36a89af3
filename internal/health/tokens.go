package health

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// Fixed token-cost heuristics. These are the declared contract of the
// estimate, not an attempt at linguistically correct token counting.
const (
	// PerResultTokens is charged per canonical result in a selected panel.
	PerResultTokens = 50

	// PanelHeaderTokens is charged once per selected panel.
	PanelHeaderTokens = 50

	// CharsPerToken divides extracted-text length into tokens.
	CharsPerToken = 4

	// DefaultItemTokens is charged for a selected document with no
	// extracted text.
	DefaultItemTokens = 500
)

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// PanelTokens estimates the payload cost of including one panel.
func PanelTokens(p *Panel) int {
	return p.ResultCount*PerResultTokens + PanelHeaderTokens
}

// DocumentTokens estimates the payload cost of including one document.
// Missing extracted text degrades to DefaultItemTokens rather than erroring.
func DocumentTokens(d *Document) int {
	if d.ExtractedChars <= 0 {
		return DefaultItemTokens
	}
	return d.ExtractedChars / CharsPerToken
}

// FormatTokens renders a token count for display: "850" below 1,000,
// "4.2K" below 10,000, "15K" from 10,000 up.
func FormatTokens(n int) string {
	switch {
	case n < 1000:
		return strconv.Itoa(n)
	case n < 10000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	default:
		return fmt.Sprintf("%dK", int(math.Round(float64(n)/1000)))
	}
}
