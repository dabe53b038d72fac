// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/dylanclarke890/krystal/lib/clock"
)

const (
	// minBarWidth and maxBarWidth bound the bar as the terminal resizes.
	minBarWidth = 10
	maxBarWidth = 60

	// rateWarmup is how long the display waits before showing
	// throughput.
	rateWarmup = 500 * time.Millisecond

	// maxLogLines is how many recent log lines stay on screen.
	maxLogLines = 5
)

// taskDoneMsg ends the display once the task has returned.
type taskDoneMsg struct {
	err error
}

// ProgressOptions configure a progress display.
type ProgressOptions struct {
	// Title is shown above the bar, truncated to the terminal width.
	Title string

	// Total is the number of source bytes the task will process.
	Total int64

	// Level is the minimum level of records printed above the bar.
	Level slog.Level

	// Theme colors the display. The zero value selects DefaultTheme.
	Theme Theme

	// Profile is the terminal color profile. RunProgress detects it from
	// the output and the environment when zero (termenv.TrueColor).
	Profile termenv.Profile

	// Clock times the throughput. Nil selects the real clock.
	Clock clock.Clock

	// Input is read for key presses. Nil reads standard input.
	Input io.Reader
}

// ProgressModel is the bubbletea model of the display.
type ProgressModel struct {
	title  string
	total  int64
	done   int64
	width  int
	bar    progress.Model
	styles styles
	clock  clock.Clock
	start  time.Time
	cancel context.CancelFunc
	lines  []logLineMsg

	stopping bool
	finished bool
	err      error
}

// NewProgressModel returns a model rendering with the given renderer.
// cancel is called when the user presses ctrl+c.
func NewProgressModel(options ProgressOptions, renderer *lipgloss.Renderer, cancel context.CancelFunc) ProgressModel {
	theme := options.Theme
	if theme == (Theme{}) {
		theme = DefaultTheme
	}
	now := options.Clock
	if now == nil {
		now = clock.Real()
	}
	return ProgressModel{
		title: options.Title,
		total: options.Total,
		bar: progress.New(
			progress.WithGradient(theme.GradientStart, theme.GradientEnd),
			progress.WithColorProfile(renderer.ColorProfile()),
			progress.WithWidth(maxBarWidth),
		),
		styles: theme.styles(renderer),
		clock:  now,
		start:  now.Now(),
		cancel: cancel,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		// Leave room for the percentage and the byte counts.
		m.bar.Width = max(minBarWidth, min(maxBarWidth, msg.Width-40))

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC && !m.stopping {
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case processedMsg:
		m.done = min(int64(msg), m.total)

	case logLineMsg:
		m.lines = append(m.lines, msg)
		if len(m.lines) > maxLogLines {
			m.lines = append([]logLineMsg(nil), m.lines[len(m.lines)-maxLogLines:]...)
		}

	case taskDoneMsg:
		m.finished = true
		m.err = msg.err
		if msg.err == nil {
			m.done = m.total
		}
		return m, tea.Quit
	}
	return m, nil
}

// Percent returns the fraction of the total processed, in [0, 1].
func (m ProgressModel) Percent() float64 {
	if m.total <= 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

func (m ProgressModel) View() string {
	var builder strings.Builder

	for _, line := range m.lines {
		text := line.text
		if m.width > 0 {
			text = ansi.Truncate(text, m.width, "…")
		}
		builder.WriteString(m.lineStyle(line.level).Render(text))
		builder.WriteByte('\n')
	}

	title := m.title
	if m.width > 0 {
		title = ansi.Truncate(title, m.width, "…")
	}
	builder.WriteString(m.styles.title.Render(title))
	builder.WriteByte('\n')

	builder.WriteString(m.bar.ViewAs(m.Percent()))
	builder.WriteString("  ")
	builder.WriteString(m.styles.faint.Render(m.counts()))

	switch {
	case m.finished && m.err != nil:
		builder.WriteString("  ")
		builder.WriteString(m.styles.failure.Render("failed"))
	case m.finished:
		builder.WriteString("  ")
		builder.WriteString(m.styles.success.Render("done"))
	case m.stopping:
		builder.WriteString("  ")
		builder.WriteString(m.styles.warning.Render("stopping…"))
	}
	builder.WriteByte('\n')
	return builder.String()
}

func (m ProgressModel) lineStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return m.styles.failure
	case level >= slog.LevelWarn:
		return m.styles.warning
	default:
		return m.styles.faint
	}
}

// counts renders "done / total" and, once warmed up, the throughput.
func (m ProgressModel) counts() string {
	text := fmt.Sprintf("%s / %s", humanize.IBytes(uint64(m.done)), humanize.IBytes(uint64(m.total)))
	elapsed := clock.Since(m.clock, m.start)
	if elapsed >= rateWarmup && m.done > 0 {
		rate := float64(m.done) / elapsed.Seconds()
		text += fmt.Sprintf("  %s/s", humanize.IBytes(uint64(rate)))
	}
	return text
}

// RunProgress runs task while drawing a progress display on output. The
// task receives a context that is cancelled when the user presses ctrl+c
// and a logger whose records feed the display; the most recent records
// remain on screen above the bar when the display ends. RunProgress returns once
// the task has returned, with the task's error.
func RunProgress(ctx context.Context, output io.Writer, options ProgressOptions, task func(context.Context, *slog.Logger) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if options.Profile == termenv.TrueColor {
		options.Profile = termenv.NewOutput(output).EnvColorProfile()
	}
	renderer := lipgloss.NewRenderer(output, termenv.WithProfile(options.Profile))

	programOptions := []tea.ProgramOption{tea.WithOutput(output), tea.WithoutSignalHandler()}
	if options.Input != nil {
		programOptions = append(programOptions, tea.WithInput(options.Input))
	}

	handler := NewLogHandler(options.Level)
	program := tea.NewProgram(NewProgressModel(options, renderer, cancel), programOptions...)
	handler.SetProgram(program)

	result := make(chan error, 1)
	go func() {
		err := task(ctx, slog.New(handler))
		result <- err
		program.Send(taskDoneMsg{err: err})
	}()

	// A display that cannot start does not fail the task; the task keeps
	// running and its result is still awaited.
	_, _ = program.Run()
	return <-result
}
