package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/edge-runtime/runtime"
	"github.com/wippyai/edge-runtime/server"
	"github.com/wippyai/edge-runtime/wire"
)

func newInteractiveCmd(a *app) *cobra.Command {
	var handler string
	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Compose requests and invoke a handler from a terminal UI",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := readHandler(handler)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			load := func() (invoker, func(), error) {
				sup, err := a.supervisor(ctx, a.cfg.Supervisor())
				if err != nil {
					return nil, nil, err
				}
				return sup, func() { _ = sup.Close(ctx) }, nil
			}
			p := tea.NewProgram(newInteractiveModel(handler, script, load), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&handler, "handler", "", "handler script path")
	return cmd
}

type invoker interface {
	Invoke(ctx context.Context, inv runtime.Invocation) ([]byte, error)
}

type modelState int

const (
	stateLoading modelState = iota
	stateEditRequest
	stateInvoking
	stateShowResult
)

const (
	fieldMethod = iota
	fieldURL
	fieldBody
)

type interactiveModel struct {
	err      error
	inv      invoker
	closeFn  func()
	load     func() (invoker, func(), error)
	filename string
	script   string
	result   string
	inputs   []textinput.Model
	focusIdx int
	state    modelState
}

type loadedMsg struct {
	err     error
	inv     invoker
	closeFn func()
}

type invokeResultMsg struct {
	err    error
	result string
}

func newInteractiveModel(filename, script string, load func() (invoker, func(), error)) *interactiveModel {
	m := &interactiveModel{
		filename: filename,
		script:   script,
		load:     load,
		state:    stateLoading,
	}
	m.inputs = make([]textinput.Model, 3)
	for i, spec := range []struct{ prompt, placeholder, value string }{
		{"method: ", "GET", "GET"},
		{"url:    ", "https://example.com/", "http://localhost/"},
		{"body:   ", "optional", ""},
	} {
		ti := textinput.New()
		ti.Prompt = spec.prompt
		ti.Placeholder = spec.placeholder
		ti.SetValue(spec.value)
		ti.Width = 60
		m.inputs[i] = ti
	}
	m.inputs[fieldMethod].Focus()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return func() tea.Msg {
		inv, closeFn, err := m.load()
		return loadedMsg{inv: inv, closeFn: closeFn, err: err}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "esc":
			switch m.state {
			case stateShowResult:
				m.state = stateEditRequest
				m.result, m.err = "", nil
				return m, nil
			case stateEditRequest, stateLoading:
				return m, m.quit()
			}

		case "tab", "shift+tab":
			if m.state == stateEditRequest {
				step := 1
				if msg.String() == "shift+tab" {
					step = len(m.inputs) - 1
				}
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + step) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateEditRequest:
				m.state = stateInvoking
				return m, m.invoke(m.request())
			case stateShowResult:
				m.state = stateEditRequest
				m.result, m.err = "", nil
				return m, nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.inv, m.closeFn = msg.inv, msg.closeFn
		m.state = stateEditRequest
		return m, textinput.Blink

	case invokeResultMsg:
		m.result, m.err = msg.result, msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateEditRequest {
		var cmd tea.Cmd
		m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) quit() tea.Cmd {
	if m.closeFn != nil {
		m.closeFn()
		m.closeFn = nil
	}
	return tea.Quit
}

func (m *interactiveModel) request() wire.Request {
	method := strings.ToUpper(strings.TrimSpace(m.inputs[fieldMethod].Value()))
	if method == "" {
		method = "GET"
	}
	req := wire.Request{
		Method:  method,
		URL:     strings.TrimSpace(m.inputs[fieldURL].Value()),
		Headers: wire.Headers{},
	}
	if body := m.inputs[fieldBody].Value(); body != "" {
		req.Body = wire.Body(body)
	}
	return req
}

func (m *interactiveModel) invoke(req wire.Request) tea.Cmd {
	inv, script := m.inv, m.script
	return func() tea.Msg {
		out, err := inv.Invoke(context.Background(), runtime.Invocation{Script: script, Request: req})
		if err != nil {
			return invokeResultMsg{err: err}
		}
		return invokeResultMsg{result: formatOutput(out)}
	}
}

// formatOutput renders a handler output for display.
func formatOutput(out []byte) string {
	decoded, err := server.DecodeOutput(out)
	if err != nil {
		return string(out)
	}
	switch {
	case decoded.Response != nil:
		resp := decoded.Response
		var b strings.Builder
		fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("status"), resp.Status)
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s %s: %s\n", labelStyle.Render("header"), name, resp.Headers[name])
		}
		b.WriteString("\n")
		b.Write(resp.Body)
		return b.String()
	case decoded.Rejection != nil:
		rej := decoded.Rejection
		name := rej.Name
		if rej.Kind != "" {
			name += " (" + rej.Kind + ")"
		}
		return errorStyle.Render(fmt.Sprintf("rejected: %s: %s", name, rej.Error))
	default:
		return string(out)
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.state == stateLoading {
		return "Loading guest..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Edge Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateEditRequest:
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter invoke • esc quit"))

	case stateInvoking:
		b.WriteString("Invoking " + funcStyle.Render(m.inputs[fieldMethod].Value()+" "+m.inputs[fieldURL].Value()) + "...")

	case stateShowResult:
		b.WriteString(sectionStyle.Render("Response"))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter edit request • esc back • ctrl+c quit"))
	}
	return b.String()
}
