package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/moby/term"
	"github.com/pkg/errors"
)

type setOutput struct {
	Project      string   `json:"project" toml:"project"`
	Platform     string   `json:"platform" toml:"platform"`
	Dependencies []string `json:"dependencies" toml:"dependencies"`
}

func writeSet(w io.Writer, set descriptor.DependencySet, format string) error {
	out := setOutput{
		Project:      set.Project,
		Platform:     set.Platform.String(),
		Dependencies: set.Dependencies,
	}
	switch format {
	case "", "text":
		for _, dep := range set.Dependencies {
			fmt.Fprintln(w, dep)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "toml":
		return toml.NewEncoder(w).Encode(out)
	}
	return errors.Errorf("unknown format %q, should be one of text, json or toml", format)
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	platformStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	extraStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// writeMatrix prints one row per platform. Platforms where the condition
// holds are marked with the number of dependencies it adds. Styles are only
// applied when w is a terminal.
func writeMatrix(w io.Writer, spec descriptor.Spec, sets []descriptor.DependencySet) {
	render := func(style lipgloss.Style, s string) string { return s }
	if _, isTerminal := term.GetFdInfo(w); isTerminal {
		render = func(style lipgloss.Style, s string) string { return style.Render(s) }
	}
	width := lipgloss.Width("PLATFORM")
	for _, set := range sets {
		if l := lipgloss.Width(set.Platform.String()); l > width {
			width = l
		}
	}
	pad := func(s string) string { return s + strings.Repeat(" ", width-lipgloss.Width(s)+2) }
	fmt.Fprintln(w, render(headerStyle, pad("PLATFORM")+"COUNT  DEPENDENCIES"))
	base := descriptor.Resolve(spec, descriptor.PlatformUnknown).Len()
	for _, set := range sets {
		count := fmt.Sprintf("%-5d", set.Len())
		extra := ""
		if n := set.Len() - base; n > 0 {
			extra = render(extraStyle, fmt.Sprintf(" (+%d)", n))
		}
		fmt.Fprintln(w, render(platformStyle, pad(set.Platform.String()))+count+"  "+strings.Join(set.Dependencies, " ")+extra)
	}
}
