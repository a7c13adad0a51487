package cliui

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Report summarises one reduction for the terminal.
type Report struct {
	Title    string
	Source   string
	Mode     string
	Budget   int
	Status   string
	Steps    int
	Result   string
	RunID    string
	Elapsed  time.Duration
	Error    string
	Counters map[string]int
}

// Markdown writes r as a markdown document.
func (r Report) Markdown() string {
	var b strings.Builder

	title := r.Title
	if title == "" {
		title = "Reduction"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if r.Source != "" {
		fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.TrimSpace(r.Source))
	}

	budget := "unbounded"
	if r.Budget > 0 {
		budget = fmt.Sprint(r.Budget)
	}

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| status | **%s** |\n", r.Status)
	fmt.Fprintf(&b, "| mode | %s |\n", r.Mode)
	fmt.Fprintf(&b, "| steps | %d |\n", r.Steps)
	fmt.Fprintf(&b, "| budget | %s |\n", budget)
	if r.Elapsed > 0 {
		fmt.Fprintf(&b, "| time | %s |\n", FormatDuration(r.Elapsed))
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "| run | `%s` |\n", r.RunID)
	}
	b.WriteString("\n")

	if r.Error != "" {
		fmt.Fprintf(&b, "> %s\n\n", r.Error)
	}

	b.WriteString("## Result\n\n")
	fmt.Fprintf(&b, "```\n%s\n```\n", r.Result)

	if len(r.Counters) > 0 {
		names := make([]string, 0, len(r.Counters))
		for name := range r.Counters {
			names = append(names, name)
		}
		slices.Sort(names)

		b.WriteString("\n## Engine\n\n| counter | value |\n|---|---|\n")
		for _, name := range names {
			fmt.Fprintf(&b, "| %s | %d |\n", name, r.Counters[name])
		}
	}

	return b.String()
}
