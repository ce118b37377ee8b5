package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/bootkit/bootkit/pkg/engine"
)

// styles are bound to the renderer of one output stream, so color is only
// emitted when that stream is a terminal.
type styles struct {
	header   lipgloss.Style
	category lipgloss.Style
	faint    lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	kinds    map[engine.ActionKind]lipgloss.Style
	outcomes map[engine.Outcome]lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	green := r.NewStyle().Foreground(lipgloss.Color("2"))
	yellow := r.NewStyle().Foreground(lipgloss.Color("3"))
	red := r.NewStyle().Foreground(lipgloss.Color("1"))
	blue := r.NewStyle().Foreground(lipgloss.Color("4"))
	faint := r.NewStyle().Faint(true)

	return styles{
		header:   r.NewStyle().Bold(true),
		category: r.NewStyle().Bold(true).Underline(true),
		faint:    faint,
		warning:  yellow,
		failure:  red.Bold(true),
		kinds: map[engine.ActionKind]lipgloss.Style{
			engine.ActionInstall:   blue,
			engine.ActionSkip:      faint,
			engine.ActionReconcile: yellow,
		},
		outcomes: map[engine.Outcome]lipgloss.Style{
			engine.OutcomeSucceeded:        green,
			engine.OutcomeAlreadySatisfied: faint,
			engine.OutcomeWarned:           yellow,
			engine.OutcomeFailed:           red,
		},
	}
}

func (s styles) kind(k engine.ActionKind) lipgloss.Style {
	if st, ok := s.kinds[k]; ok {
		return st
	}
	return s.faint
}

func (s styles) outcome(o engine.Outcome) lipgloss.Style {
	if st, ok := s.outcomes[o]; ok {
		return st
	}
	return s.faint
}
