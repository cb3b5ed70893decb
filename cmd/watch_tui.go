// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kazwalker/jsonwire/pkg/jsonb"
	"github.com/kazwalker/jsonwire/pkg/notecard"
)

var (
	watchFields   []string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeatedly transact and watch decoded responses scroll by",
	Long: `Issue the same request on a fixed interval and display each decoded
response live, along with rolling counts of successes and failures.

Like "transact", the request body is built from --set key=type:value
pairs; with no --set flags at all, an empty object is sent on every
tick.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringArrayVar(&watchFields, "set", nil, "key=type:value request member to add (repeatable)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "time between transactions")
}

// watchEntry is one completed transaction, successful or not.
type watchEntry struct {
	at      time.Time
	summary string
	isError bool
}

type watchModel struct {
	connInfo  string
	interval  time.Duration
	client    *notecard.Client
	fields    []string
	total     int
	successes int
	failures  int
	log       []watchEntry
	maxLog    int
	quitting  bool

	vp      viewport.Model
	vpReady bool
}

type tickWatchMsg time.Time
type transactionDoneMsg struct {
	entry watchEntry
}

func newWatchModel(connInfo string, interval time.Duration, client *notecard.Client, fields []string) watchModel {
	return watchModel{
		connInfo: connInfo,
		interval: interval,
		client:   client,
		fields:   fields,
		maxLog:   500,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.transactCmd())
}

func watchTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickWatchMsg(t)
	})
}

// transactCmd runs one request/response cycle and reports the result
// as a tea.Msg. The next transaction is only scheduled once this one's
// result comes back (see the transactionDoneMsg case in Update), so the
// single-threaded client is never called from two Cmds at once even
// if a transaction runs longer than the configured interval.
func (m watchModel) transactCmd() tea.Cmd {
	return func() tea.Msg {
		var buildErr error
		r, err := m.client.Request(func(w *jsonb.Writer) {
			for _, field := range m.fields {
				if buildErr == nil {
					buildErr = addEncodeField(w, field)
				}
			}
		})
		if buildErr != nil {
			return transactionDoneMsg{watchEntry{time.Now(), buildErr.Error(), true}}
		}
		if err != nil {
			return transactionDoneMsg{watchEntry{time.Now(), err.Error(), true}}
		}
		return transactionDoneMsg{watchEntry{time.Now(), summarizeResponse(r), false}}
	}
}

// summarizeResponse renders a response's top-level members as a
// single-line key=value list for the watch log.
func summarizeResponse(r *jsonb.Reader) string {
	var parts []string
	r.Enum()
	nesting := 0
	for {
		rec, ok := r.EnumNext()
		if !ok {
			break
		}
		switch rec.Opcode {
		case jsonb.BeginObject:
			nesting++
			continue
		case jsonb.EndObject:
			nesting--
			continue
		}
		if nesting == 1 && rec.HasName {
			parts = append(parts, fmt.Sprintf("%s=%s", rec.Name, summarizeValue(rec)))
		}
	}
	if len(parts) == 0 {
		return "{}"
	}
	return strings.Join(parts, " ")
}

func summarizeValue(rec jsonb.Record) string {
	switch rec.Opcode {
	case jsonb.String:
		return jsonb.GetString(rec, true)
	case jsonb.True, jsonb.False:
		return fmt.Sprintf("%v", jsonb.GetBool(rec, true))
	case jsonb.Float, jsonb.Double:
		return fmt.Sprintf("%g", jsonb.GetDouble(rec, true))
	case jsonb.Null:
		return "null"
	default:
		return fmt.Sprintf("%d", jsonb.GetInt64(rec, true))
	}
}

// headerLines is the number of fixed lines View draws above the
// scrolling log viewport (title, connection line, blank, stat line,
// blank).
const headerLines = 5

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if !m.vpReady {
			m.vp = viewport.New(msg.Width, msg.Height-headerLines)
			m.vpReady = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - headerLines
		}
		m.vp.SetContent(m.renderLog())

	case tickWatchMsg:
		return m, m.transactCmd()

	case transactionDoneMsg:
		m.total++
		if msg.entry.isError {
			m.failures++
		} else {
			m.successes++
		}
		m.log = append(m.log, msg.entry)
		if len(m.log) > m.maxLog {
			m.log = m.log[len(m.log)-m.maxLog:]
		}
		if m.vpReady {
			m.vp.SetContent(m.renderLog())
			m.vp.GotoBottom()
		}
		return m, watchTickCmd(m.interval)
	}

	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// renderLog renders the scrollback the viewport displays: one styled
// line per recorded transaction, oldest first.
func (m watchModel) renderLog() string {
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	var s strings.Builder
	for i, entry := range m.log {
		if i > 0 {
			s.WriteString("\n")
		}
		ts := entry.at.Format("15:04:05.000")
		if entry.isError {
			s.WriteString(fmt.Sprintf("%s %s", ts, errStyle.Render(entry.summary)))
		} else {
			s.WriteString(fmt.Sprintf("%s %s", ts, entry.summary))
		}
	}
	return s.String()
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	var s strings.Builder
	s.WriteString(titleStyle.Render("JSONWIRE - WATCH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | every %s | press 'q' to quit, arrows/pgup/pgdn to scroll", m.connInfo, m.interval)))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("total=%d  %s  %s\n\n",
		m.total,
		okStyle.Render(fmt.Sprintf("ok=%d", m.successes)),
		errStyle.Render(fmt.Sprintf("fail=%d", m.failures)),
	))

	if !m.vpReady {
		return s.String()
	}
	s.WriteString(m.vp.View())
	return s.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, info, closeFn, err := OpenLink()
	if err != nil {
		return err
	}
	defer closeFn()

	client := notecard.NewClient(ctx)
	m := newWatchModel(info, watchInterval, client, watchFields)
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}
