package stepcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/utils"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

const maxSlice = 1 << 20

var (
	stepTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	stepMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	stepLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	stepValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	stepTermStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	stepDividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	stepOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	stepFailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	stepWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// stateOrder is the order progress counters are shown in.
var stateOrder = []memo.State{memo.Done, memo.InProgress, memo.BudgetExhausted, memo.Divergent, memo.NotYetReduced}

type stepKeyMap struct {
	Step    key.Binding
	More    key.Binding
	Less    key.Binding
	Mode    key.Binding
	Restart key.Binding
	Quit    key.Binding
}

func (k stepKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.More, k.Less, k.Mode, k.Restart, k.Quit}
}

func (k stepKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Step, k.More, k.Less}, {k.Mode, k.Restart, k.Quit}}
}

func defaultKeyMap() stepKeyMap {
	return stepKeyMap{
		Step:    key.NewBinding(key.WithKeys(" ", "n", "enter"), key.WithHelp("space", "step")),
		More:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "double slice")),
		Less:    key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "halve slice")),
		Mode:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "head/deep")),
		Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// sliceDoneMsg carries the outcome of one slice.
type sliceDoneMsg struct {
	out reduce.Outcome
	err error
}

type stepModel struct {
	ctx   context.Context
	sess  *session.Session
	term  session.Term
	label string

	mode    reduce.Mode
	slice   int
	slices  int
	steps   int
	running bool
	last    reduce.Outcome
	ran     bool
	err     error

	width  int
	height int
	keys   stepKeyMap
	help   help.Model
}

func runStepTUI(ctx context.Context, model stepModel) error {
	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

func newStepModel(ctx context.Context, sess *session.Session, t session.Term, label string, slice int) stepModel {
	if ctx == nil {
		ctx = context.Background()
	}
	return stepModel{
		ctx:   ctx,
		sess:  sess,
		term:  t,
		label: label,
		mode:  sess.Engine().Mode(),
		slice: max(slice, 1),
		keys:  defaultKeyMap(),
		help:  help.New(),
	}
}

func (m stepModel) Init() bubbletea.Cmd {
	return nil
}

func (m stepModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case sliceDoneMsg:
		m.running = false
		m.ran = true
		m.slices++
		m.steps += msg.out.Steps
		m.last = msg.out
		m.err = nil
		if !msg.out.Status.Resumable() {
			m.err = msg.err
		}
		return m, nil
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m stepModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, bubbletea.Quit
	case key.Matches(msg, m.keys.Step):
		if m.running || m.finished() {
			return m, nil
		}
		m.running = true
		return m, runSliceCmd(m.ctx, m.sess.Engine(), reduce.Request{
			Root:   m.term.Root,
			Env:    env.Empty,
			Budget: m.slice,
			Mode:   m.mode,
		})
	case key.Matches(msg, m.keys.More):
		m.slice = min(m.slice*2, maxSlice)
	case key.Matches(msg, m.keys.Less):
		m.slice = max(m.slice/2, 1)
	case key.Matches(msg, m.keys.Mode):
		if m.running {
			return m, nil
		}
		// Switching to deep mode resumes from the committed head forms.
		if m.mode == reduce.Head {
			m.mode = reduce.Deep
		} else {
			m.mode = reduce.Head
		}
		m.ran = false
		m.err = nil
	case key.Matches(msg, m.keys.Restart):
		if m.running {
			return m, nil
		}
		m.sess.Engine().Reset()
		m.ran = false
		m.err = nil
		m.slices = 0
		m.steps = 0
	}
	return m, nil
}

// finished reports whether another slice in the current mode is pointless.
func (m stepModel) finished() bool {
	return m.ran && !m.last.Status.Resumable()
}

func runSliceCmd(ctx context.Context, engine *reduce.Engine, req reduce.Request) bubbletea.Cmd {
	return func() bubbletea.Msg {
		out, err := engine.Run(ctx, req)
		return sliceDoneMsg{out: out, err: err}
	}
}

func (m stepModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(stepTitleStyle.Render("lamdag step") + "  " + stepMutedStyle.Render(utils.Truncate(m.label, width-14)) + "\n")
	b.WriteString(stepDividerStyle.Render(strings.Repeat("─", width)) + "\n")

	b.WriteString(field("mode", m.mode.String()) + "   " +
		field("slice", fmt.Sprint(m.slice)) + "   " +
		field("slices", fmt.Sprint(m.slices)) + "   " +
		field("steps", fmt.Sprint(m.steps)) + "\n")
	b.WriteString(stepLabelStyle.Render("status") + " " + m.statusView() + "\n")
	b.WriteString(m.progressView() + "\n")
	b.WriteString(stepDividerStyle.Render(strings.Repeat("─", width)) + "\n")

	b.WriteString(stepTermStyle.Width(width).Render(m.rendered()) + "\n")

	if m.err != nil {
		b.WriteString("\n" + stepFailStyle.Render(utils.Truncate(utils.OneLine(m.err.Error()), width)) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m stepModel) statusView() string {
	switch {
	case m.running:
		return stepWarnStyle.Render("running…")
	case !m.ran:
		return stepMutedStyle.Render("ready")
	case m.last.Status == reduce.Done:
		return stepOKStyle.Render(m.last.Status.String())
	case m.last.Status.Resumable():
		return stepWarnStyle.Render(m.last.Status.String())
	default:
		return stepFailStyle.Render(m.last.Status.String())
	}
}

// progressView counts memo entries by state. It reads the memo table only.
func (m stepModel) progressView() string {
	progress := m.sess.Inspector().Progress()

	parts := make([]string, 0, len(stateOrder))
	for _, s := range stateOrder {
		if n := progress[s]; n > 0 {
			parts = append(parts, field(s.String(), fmt.Sprint(n)))
		}
	}
	if len(parts) == 0 {
		return stepMutedStyle.Render("no memo entries")
	}
	return strings.Join(parts, "   ")
}

// rendered is the result of the last slice when it finished, else the
// best-known form of the root.
func (m stepModel) rendered() string {
	out := reduce.Outcome{Node: m.term.Root, Env: env.Empty}
	if m.ran {
		out = m.last
	}
	return m.sess.Render(m.term, out)
}

func field(label, value string) string {
	return stepLabelStyle.Render(label) + " " + stepValueStyle.Render(value)
}
