package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	runewidth "github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	sectionWidth = 60
	promptPrefix = "> "
)

// cellWidth returns the visible display width of s, ignoring ANSI codes.
func cellWidth(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

// TerminalUI is the production UI implementation. It writes styled output
// to out and reads answers from in.
type TerminalUI struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool

	success  lipgloss.Style
	warn     lipgloss.Style
	err      lipgloss.Style
	critical lipgloss.Style
	border   lipgloss.Style
	label    lipgloss.Style
}

// NewTerminalUI creates a TerminalUI on os.Stdout and os.Stdin. Colours and
// the spinner are enabled only when stdout is a real terminal.
func NewTerminalUI() *TerminalUI {
	return NewTerminalUIWithIO(os.Stdout, os.Stdin, term.IsTerminal(int(os.Stdout.Fd())))
}

func NewTerminalUIWithIO(out io.Writer, in io.Reader, interactive bool) *TerminalUI {
	r := lipgloss.NewRenderer(out)
	return &TerminalUI{
		out:         out,
		in:          bufio.NewReader(in),
		interactive: interactive,
		success:     r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:        r.NewStyle().Foreground(lipgloss.Color("3")),
		err:         r.NewStyle().Foreground(lipgloss.Color("1")),
		critical:    r.NewStyle().Bold(true),
		border:      r.NewStyle().Foreground(lipgloss.Color("240")),
		label:       r.NewStyle().Faint(true),
	}
}

func (u *TerminalUI) writeLine(line string) {
	fmt.Fprintln(u.out, line)
}

func (u *TerminalUI) Style(t StyledText) string {
	switch t.Severity {
	case SeveritySuccess:
		return u.success.Render(t.Text)
	case SeverityWarn:
		return u.warn.Render(t.Text)
	case SeverityError:
		return u.err.Render(t.Text)
	case SeverityCritical:
		return u.critical.Render(t.Text)
	default:
		return t.Text
	}
}

func (u *TerminalUI) Info(format string, args ...any) {
	u.writeLine(fmt.Sprintf(format, args...))
}

func (u *TerminalUI) Success(format string, args ...any) {
	u.writeLine(u.success.Render(fmt.Sprintf(format, args...)))
}

func (u *TerminalUI) Warn(format string, args ...any) {
	u.writeLine(u.warn.Render(fmt.Sprintf(format, args...)))
}

func (u *TerminalUI) Error(format string, args ...any) {
	u.writeLine(u.err.Render(fmt.Sprintf(format, args...)))
}

func (u *TerminalUI) Critical(format string, args ...any) {
	u.writeLine(u.critical.Render(fmt.Sprintf(format, args...)))
}

// Section prints a separator line centred around the title, surrounded by
// blank lines.
//
//	========== Safe transaction ==========
func (u *TerminalUI) Section(title string) {
	titled := " " + title + " "
	bars := sectionWidth - cellWidth(titled)
	if bars < 6 {
		bars = 6
	}
	left := bars / 2
	line := strings.Repeat("=", left) + titled + strings.Repeat("=", bars-left)
	fmt.Fprintf(u.out, "\n%s\n\n", line)
}

// KeyValue pads labels to the longest one so values line up.
func (u *TerminalUI) KeyValue(rows [][2]string) {
	maxLabel := 0
	for _, r := range rows {
		if w := cellWidth(r[0]); w > maxLabel {
			maxLabel = w
		}
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", maxLabel-cellWidth(r[0]))
		fmt.Fprintf(u.out, "%s%s  %s\n", u.label.Render(r[0]), pad, r[1])
	}
}

// Table renders a bordered table. Widths are measured without ANSI codes so
// styled cells stay aligned.
func (u *TerminalUI) Table(headers []string, rows [][]string) {
	ncols := len(headers)
	for _, r := range rows {
		ncols = max(ncols, len(r))
	}
	if ncols == 0 {
		return
	}
	widths := make([]int, ncols)
	measure := func(cells []string) {
		for i, c := range cells {
			widths[i] = max(widths[i], cellWidth(c))
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	dashes := make([]string, ncols)
	for i, w := range widths {
		dashes[i] = strings.Repeat("─", w+2)
	}
	line := func(l, m, r string) string {
		return u.border.Render(l + strings.Join(dashes, m) + r)
	}
	renderRow := func(cells []string) string {
		parts := make([]string, ncols)
		for i := range parts {
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			parts[i] = " " + val + strings.Repeat(" ", widths[i]-cellWidth(val)) + " "
		}
		bar := u.border.Render("│")
		return bar + strings.Join(parts, bar) + bar
	}

	u.writeLine(line("┌", "┬", "┐"))
	if len(headers) > 0 {
		u.writeLine(renderRow(headers))
		u.writeLine(line("├", "┼", "┤"))
	}
	for _, r := range rows {
		u.writeLine(renderRow(r))
	}
	u.writeLine(line("└", "┴", "┘"))
}

// Spinner animates msg until the returned function is called. On
// non-interactive outputs the message is printed once.
func (u *TerminalUI) Spinner(msg string) func() {
	if !u.interactive {
		u.writeLine(msg)
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(u.out))
	s.Suffix = " " + msg
	s.Start()
	return func() {
		s.Stop()
		// spinner clears its line with \r but leaves the cursor on it
		fmt.Fprintln(u.out)
	}
}

// Confirm prints prompt with the default choice and reads y or n. An empty
// answer accepts the default, anything unreadable declines.
func (u *TerminalUI) Confirm(prompt string, defaultYes bool) bool {
	options := "[Y/n]"
	if !defaultYes {
		options = "[y/N]"
	}
	u.Info("%s %s", prompt, options)
	for {
		fmt.Fprint(u.out, promptPrefix)
		text, err := u.in.ReadString('\n')
		input := strings.ToLower(strings.TrimSpace(text))
		switch {
		case input == "" && err == nil:
			return defaultYes
		case input == "y" || input == "yes":
			return true
		case input == "n" || input == "no":
			return false
		case err != nil:
			return false
		}
		u.Error("please enter y or n")
	}
}
