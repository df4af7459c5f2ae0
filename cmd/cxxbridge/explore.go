package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/resolve"
)

type exploreState int

const (
	stateSelectClass exploreState = iota
	stateQuery
)

type exploreModel struct {
	err      error
	opts     *options
	watcher  *fsnotify.Watcher
	filename string
	result   string
	cats     []*catalog.Catalog
	input    textinput.Model
	selected int
	state    exploreState
}

type loadedMsg struct {
	err    error
	cats   []*catalog.Catalog
	reload bool
}

type watchErrMsg struct{ err error }

func newExploreModel(opts *options, filename string, watcher *fsnotify.Watcher) *exploreModel {
	ti := textinput.New()
	ti.Placeholder = "foo(int, int*, const char*)"
	ti.Prompt = "call: "
	ti.Width = 60
	return &exploreModel{
		opts:     opts,
		filename: filename,
		watcher:  watcher,
		input:    ti,
	}
}

func (m *exploreModel) Init() tea.Cmd {
	return tea.Batch(m.load, m.watch)
}

func (m *exploreModel) load() tea.Msg {
	cats, err := catalog.LoadManifestFile(m.filename)
	return loadedMsg{cats: cats, err: err}
}

// watch blocks until the manifest changes and then reloads it.
func (m *exploreModel) watch() tea.Msg {
	if m.watcher == nil {
		return nil
	}
	target := filepath.Clean(m.filename)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			msg := m.load().(loadedMsg)
			msg.reload = true
			return msg
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return watchErrMsg{err: err}
		}
	}
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateSelectClass {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectClass {
				if m.selected > 0 {
					m.selected--
				}
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectClass {
				if m.selected < len(m.cats)-1 {
					m.selected++
				}
				return m, nil
			}

		case "enter":
			if m.state == stateSelectClass && len(m.cats) > 0 {
				m.state = stateQuery
				m.result = ""
				m.input.Focus()
				return m, textinput.Blink
			}

		case "esc":
			if m.state == stateQuery {
				m.state = stateSelectClass
				m.input.Blur()
				m.input.SetValue("")
				m.result = ""
				return m, nil
			}
		}

	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.cats = msg.cats
			if m.selected >= len(m.cats) {
				m.selected = 0
			}
			m.refresh()
		}
		if msg.reload {
			return m, m.watch
		}
		return m, nil

	case watchErrMsg:
		m.err = msg.err
		return m, m.watch
	}

	if m.state == stateQuery {
		var cmd tea.Cmd
		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() != before {
			m.refresh()
		}
		return m, cmd
	}
	return m, nil
}

// refresh resolves the current query against the selected class.
func (m *exploreModel) refresh() {
	if m.state != stateQuery || len(m.cats) == 0 {
		return
	}
	m.result = evaluate(m.opts, m.cats[m.selected], m.input.Value())
}

// evaluate resolves a query of the form "name(type, type...)". A bare name
// lists the overload set.
func evaluate(opts *options, cat *catalog.Catalog, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	name, rest, hasArgs := strings.Cut(query, "(")
	name = strings.TrimSpace(name)
	if !hasArgs {
		sigs := cat.LookupAll(name)
		if len(sigs) == 0 {
			return opts.paint(errorStyle, "no operation "+name)
		}
		lines := make([]string, len(sigs))
		for i, s := range sigs {
			lines[i] = opts.paint(nameStyle, s.String())
		}
		return strings.Join(lines, "\n")
	}

	list, closed := strings.CutSuffix(strings.TrimSpace(rest), ")")
	if !closed {
		return opts.paint(symbolStyle, "...")
	}
	types, err := abi.ParseList(list)
	if err != nil {
		return opts.paint(errorStyle, err.Error())
	}
	match, err := resolve.Resolve(cat, name, types)
	if err != nil {
		return opts.paint(errorStyle, err.Error())
	}
	return describeMatch(opts, match)
}

func (m *exploreModel) View() string {
	if m.err != nil && len(m.cats) == 0 {
		return m.opts.paint(errorStyle, fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if len(m.cats) == 0 {
		return "Loading manifest..."
	}

	var b strings.Builder
	b.WriteString(m.opts.paint(headerStyle, "cxxbridge explore"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectClass:
		b.WriteString("Select a class:\n\n")
		for i, cat := range m.cats {
			line := fmt.Sprintf("%s (%d operations)", cat.Class(), len(cat.Names()))
			if i == m.selected {
				b.WriteString(m.opts.paint(headerStyle, "> "+line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.opts.paint(symbolStyle, "↑/↓ select • enter query • q quit"))

	case stateQuery:
		cat := m.cats[m.selected]
		b.WriteString(m.opts.paint(nameStyle, cat.Class()))
		b.WriteString(": ")
		b.WriteString(m.opts.paint(typeStyle, strings.Join(cat.Names(), " ")))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.result)
		b.WriteString("\n\n")
		b.WriteString(m.opts.paint(symbolStyle, "esc back • ctrl+c quit"))
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.opts.paint(errorStyle, "reload failed: "+m.err.Error()))
	}
	return b.String()
}

func newExploreCmd(opts *options) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "explore <manifest>",
		Short: "Interactively resolve calls against a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var watcher *fsnotify.Watcher
			if !noWatch {
				w, err := fsnotify.NewWatcher()
				if err != nil {
					return err
				}
				defer w.Close()
				// watch the directory so editors that replace the file are seen
				if err := w.Add(filepath.Dir(args[0])); err != nil {
					return err
				}
				watcher = w
			}
			p := tea.NewProgram(newExploreModel(opts, args[0], watcher), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the manifest when it changes")
	return cmd
}
