package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/smallnest/threadgraph/model"
	"github.com/smallnest/threadgraph/state"
)

// printer renders transcript lines, styled only when out is a terminal.
type printer struct {
	out       io.Writer
	user      lipgloss.Style
	assistant lipgloss.Style
	call      lipgloss.Style
	result    lipgloss.Style
	failure   lipgloss.Style
}

func newPrinter(out *os.File) *printer {
	p := &printer{
		out:       out,
		user:      lipgloss.NewStyle(),
		assistant: lipgloss.NewStyle(),
		call:      lipgloss.NewStyle(),
		result:    lipgloss.NewStyle(),
		failure:   lipgloss.NewStyle(),
	}
	if term.IsTerminal(int(out.Fd())) {
		p.user = p.user.Bold(true).Foreground(lipgloss.Color("12"))
		p.assistant = p.assistant.Bold(true).Foreground(lipgloss.Color("10"))
		p.call = p.call.Foreground(lipgloss.Color("11"))
		p.result = p.result.Faint(true)
		p.failure = p.failure.Foreground(lipgloss.Color("9"))
	}
	return p
}

func (p *printer) message(m state.Message) {
	switch m.Role {
	case state.RoleUser:
		fmt.Fprintf(p.out, "%s %s\n", p.user.Render("you >"), m.Content)
	case state.RoleAssistant:
		if m.Content != "" {
			fmt.Fprintf(p.out, "%s %s\n", p.assistant.Render("assistant >"), m.Content)
		}
		for _, c := range m.ToolCalls {
			fmt.Fprintln(p.out, p.call.Render(fmt.Sprintf("  -> %s(%s) [%s]", c.Name, model.FormatArguments(c.Arguments), c.ID)))
		}
	case state.RoleTool:
		fmt.Fprintln(p.out, p.result.Render(fmt.Sprintf("  <- %s: %s", m.Name, m.Content)))
	default:
		fmt.Fprintf(p.out, "%s\n", m)
	}
}

func (p *printer) error(err error) {
	fmt.Fprintln(p.out, p.failure.Render("error: "+err.Error()))
}
