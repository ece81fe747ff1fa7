package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/stormcheck/pkg/patterns"
)

// textStyles are bound to the destination writer, so colour is dropped
// automatically when the output is not a terminal.
type textStyles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	critical lipgloss.Style
	warning  lipgloss.Style
	info     lipgloss.Style
	ok       lipgloss.Style
	muted    lipgloss.Style
	box      lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")),
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")),
		critical: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000")),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")),
		info: r.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")),
		ok: r.NewStyle().
			Foreground(lipgloss.Color("#00FF00")),
		muted: r.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1),
	}
}

func (s textStyles) severity(sev patterns.Severity) lipgloss.Style {
	switch sev {
	case patterns.SeverityCritical:
		return s.critical
	case patterns.SeverityWarning:
		return s.warning
	default:
		return s.info
	}
}

// RenderText writes a human-readable summary of the report.
func (r *Report) RenderText(w io.Writer) error {
	st := newTextStyles(w)
	var b strings.Builder

	b.WriteString(st.title.Render("Event storm analysis"))
	b.WriteString("\n\n")

	statusStyle := st.ok
	switch r.Status {
	case StatusBlocking:
		statusStyle = st.critical
	case StatusAttention:
		statusStyle = st.warning
	}
	stats := []string{
		fmt.Sprintf("Status:   %s", statusStyle.Render(strings.ToUpper(string(r.Status)))),
		fmt.Sprintf("Files:    %d parsed of %d scanned", r.Stats.FilesParsed, r.Stats.FilesScanned),
		fmt.Sprintf("Graph:    %d block types, %d event edges", r.Stats.Nodes, r.Stats.Edges),
		fmt.Sprintf("Findings: %d critical, %d warning, %d info",
			r.Summary.BySeverity[patterns.SeverityCritical],
			r.Summary.BySeverity[patterns.SeverityWarning],
			r.Summary.BySeverity[patterns.SeverityInfo]),
	}
	b.WriteString(st.box.Render(strings.Join(stats, "\n")))
	b.WriteString("\n")

	if len(r.Findings) > 0 {
		b.WriteString("\n" + st.header.Render("Findings") + "\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "  %s %s %s\n",
				st.severity(f.Severity).Render(fmt.Sprintf("%-8s", f.Severity)),
				f.Pattern, f.Subject)
			fmt.Fprintf(&b, "    %s\n", f.Description)
			fmt.Fprintf(&b, "    %s\n", st.muted.Render("fix: "+f.Recommendation))
		}
	}

	if len(r.CyclesDetected) > 0 {
		b.WriteString("\n" + st.header.Render("Loops") + "\n")
		for _, c := range r.CyclesDetected {
			fmt.Fprintf(&b, "  %s (%d hops)\n", strings.Join(c.Path, " -> "), c.DepthUsed)
		}
	}

	if top := topFactors(r.MultiplicationFactors, 10); len(top) > 0 {
		b.WriteString("\n" + st.header.Render("Highest multiplication factors") + "\n")
		for _, name := range top {
			fmt.Fprintf(&b, "  %8.0f  %s\n", r.MultiplicationFactors[name], name)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n" + st.header.Render("Warnings") + "\n")
		for _, msg := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", st.warning.Render(msg))
		}
	}

	if r.Note != "" {
		b.WriteString("\n" + st.muted.Render(r.Note) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// topFactors returns up to n names with the largest factors, ties by name.
func topFactors(factors map[string]float64, n int) []string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		fi, fj := factors[names[i]], factors[names[j]]
		if fi != fj {
			return fi > fj
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
