package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	tagStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	detailStyle = lipgloss.NewStyle().Faint(true)
	flagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// renderTree writes nodes as an indented outline, one item per line:
// tag, class, form and length, then the value for leaf items. Colors
// are dropped automatically when the output is not a terminal.
func renderTree(w io.Writer, nodes []*Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		var line strings.Builder
		line.WriteString(indent)
		line.WriteString(tagStyle.Render(n.Tag))

		var details []string
		if n.Class != "" {
			details = append(details, n.Class)
		}
		if n.Constructed {
			details = append(details, "constructed")
		}
		details = append(details, fmt.Sprintf("len=%s", n.Length))
		line.WriteString(" " + detailStyle.Render(strings.Join(details, " ")))

		if n.Indefinite {
			line.WriteString(" " + flagStyle.Render("indefinite"))
		}
		if n.Large {
			line.WriteString(" " + flagStyle.Render("large"))
		}
		if n.Value != "" {
			line.WriteString(" " + n.Value)
		}

		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return err
		}
		if err := renderTree(w, n.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}
