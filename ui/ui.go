package ui

import (
	"encoding/json"
)

// Severity classifies the visual weight of a piece of inline text, mirroring
// the output methods on UI. The terminal maps each value to a lipgloss
// style; data consumers (JSON, tests) see plain text.
type Severity uint8

const (
	SeverityInfo     Severity = iota // plain
	SeveritySuccess                  // green
	SeverityWarn                     // yellow
	SeverityError                    // red
	SeverityCritical                 // bold
)

// StyledText pairs a plain string with a Severity annotation.
//
//	u.Info("Safe: %s", u.Style(StyledText{addr, SeverityCritical}))
type StyledText struct {
	Text     string
	Severity Severity
}

// MarshalJSON serializes StyledText as a plain JSON string (just Text).
func (s StyledText) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Text)
}

// UI is all terminal interaction of the safetx commands. Production code
// uses TerminalUI, tests use RecordingUI.
type UI interface {
	// Style returns the text of t coloured according to its Severity, or
	// unchanged when colours are disabled.
	Style(t StyledText) string

	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	// Error writes a failure in red. It does not exit.
	Error(format string, args ...any)
	// Critical writes data the user must review before an irreversible
	// action, such as the Safe transaction about to be signed.
	Critical(format string, args ...any)

	// Section writes a separator centred around title.
	Section(title string)

	// KeyValue renders an aligned 2-column block.
	KeyValue(rows [][2]string)

	// Table renders a bordered table with an optional header row.
	Table(headers []string, rows [][]string)

	// Spinner starts an animated spinner and returns the function that
	// stops it.
	//
	//	stop := u.Spinner("Waiting for execution...")
	//	defer stop()
	Spinner(msg string) func()

	// Confirm asks a yes/no question.
	Confirm(prompt string, defaultYes bool) bool
}
