package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Pad is one colored cell
type Pad struct {
	Color  [3]uint8
	Symbol rune
	Bold   bool
}

// RenderPad renders a single colored pad
func RenderPad(p Pad) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(p.Color))).Bold(p.Bold)
	return style.Render(string(p.Symbol))
}

// RenderPadRow renders a row of pads with spacing
func RenderPadRow(pads []Pad) string {
	var out strings.Builder
	for i, p := range pads {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderPad(p))
	}
	return out.String()
}

// RenderLegendItem renders a single legend item: "● Name - description"
func RenderLegendItem(p Pad, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(p), name, desc)
}

// RenderMeter draws value within [min, max] as a bar of width cells
func RenderMeter(value, min, max, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if max > min {
		filled = (value - min) * width / (max - min)
	}
	filled = clamp(filled, 0, width)
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
