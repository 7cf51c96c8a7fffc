package notice

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/crashguard/internal/clip"
)

type copier interface {
	Copy(text string) (clip.Result, error)
}

// TerminalPresenter shows the notice full screen with a countdown. Enter
// acknowledges and c copies the report path. When either end is not a
// terminal it prints the notice once and returns.
type TerminalPresenter struct {
	in     *os.File
	out    *os.File
	copier copier
}

// NewTerminalPresenter creates a presenter reading keys from in and drawing
// on out, usually os.Stdin and os.Stderr.
func NewTerminalPresenter(in, out *os.File) *TerminalPresenter {
	return &TerminalPresenter{in: in, out: out, copier: clip.New(out)}
}

// PresentBlockingNotice implements Presenter.
func (p *TerminalPresenter) PresentBlockingNotice(ctx context.Context, s Summary) error {
	if !isTerminal(p.in) || !isTerminal(p.out) {
		return p.presentPlain(s)
	}

	wait := DefaultTimeout
	if !s.Deadline.IsZero() {
		wait = time.Until(s.Deadline)
	}
	prog := tea.NewProgram(newNoticeModel(s, wait, p.copier),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithAltScreen(),
	)
	final, err := prog.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("running notice: %w", err)
	}
	if m, ok := final.(noticeModel); ok && m.acknowledged {
		return nil
	}
	return context.DeadlineExceeded
}

func (p *TerminalPresenter) presentPlain(s Summary) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Title))
	b.WriteString("\n\n")
	b.WriteString(detailStyle.Render(s.Detail))
	if s.ReportPath != "" {
		b.WriteString("\n\nReport: ")
		b.WriteString(s.ReportPath)
	}
	_, err := fmt.Fprintln(p.out, boxStyle.Render(b.String()))
	return err
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

type noticeModel struct {
	summary Summary
	total   time.Duration
	timer   timer.Model
	bar     progress.Model
	copier  copier
	status  string

	acknowledged bool
}

func newNoticeModel(s Summary, wait time.Duration, c copier) noticeModel {
	if wait <= 0 {
		wait = time.Second
	}
	bar := progress.New(progress.WithSolidFill("#EF5350"), progress.WithoutPercentage())
	bar.Width = 40
	return noticeModel{
		summary: s,
		total:   wait,
		timer:   timer.NewWithInterval(wait, time.Second),
		bar:     bar,
		copier:  c,
	}
}

func (m noticeModel) Init() tea.Cmd {
	return m.timer.Init()
}

func (m noticeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", " ", "q", "esc", "ctrl+c":
			m.acknowledged = true
			return m, tea.Quit
		case "c":
			m.status = m.copyPath()
			return m, nil
		}
	case tea.WindowSizeMsg:
		if w := msg.Width - 12; w > 10 && w < 80 {
			m.bar.Width = w
		}
	case timer.TimeoutMsg:
		if msg.ID == m.timer.ID() {
			return m, tea.Quit
		}
	case timer.TickMsg, timer.StartStopMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m noticeModel) copyPath() string {
	if m.summary.ReportPath == "" {
		return "no report was written"
	}
	if m.copier == nil {
		return "copy unavailable"
	}
	res, err := m.copier.Copy(m.summary.ReportPath)
	if err != nil {
		return "copy failed: " + err.Error()
	}
	if res.Method == clip.MethodFile {
		return "path saved to " + res.FilePath
	}
	return "path copied (" + string(res.Method) + ")"
}

func (m noticeModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.summary.Title))
	b.WriteString("\n\n")
	b.WriteString(detailStyle.Render(m.summary.Detail))
	if m.summary.ReportPath != "" {
		b.WriteString("\n\nReport saved to ")
		b.WriteString(pathStyle.Render(m.summary.ReportPath))
	}
	b.WriteString("\n\n")

	remaining := m.timer.Timeout
	fraction := 0.0
	if m.total > 0 {
		fraction = float64(remaining) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(fraction))
	b.WriteString(" ")
	b.WriteString(m.timer.View())
	b.WriteString("\n\n")
	if m.status != "" {
		b.WriteString(hintStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("The application will exit. enter: close now  c: copy report path"))
	return boxStyle.Render(b.String())
}
