package ui

import (
	"fmt"
	"strings"
	"sync"
)

// Entry records a single UI method call for test assertions.
type Entry struct {
	Method string
	Value  string
}

// RecordingUI implements UI for tests. Output is captured as entries and
// Confirm answers are served from the scripted inputs in order. Running out
// of inputs panics so a wrong script fails loudly.
type RecordingUI struct {
	mu      sync.Mutex
	entries []Entry
	inputs  []string
	nextIdx int
}

func NewRecordingUI(scriptedInputs ...string) *RecordingUI {
	return &RecordingUI{inputs: scriptedInputs}
}

func (r *RecordingUI) record(method, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Method: method, Value: value})
}

func (r *RecordingUI) Style(t StyledText) string {
	return t.Text
}

func (r *RecordingUI) Info(format string, args ...any) {
	r.record("Info", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Success(format string, args ...any) {
	r.record("Success", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Warn(format string, args ...any) {
	r.record("Warn", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Error(format string, args ...any) {
	r.record("Error", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Critical(format string, args ...any) {
	r.record("Critical", fmt.Sprintf(format, args...))
}

func (r *RecordingUI) Section(title string) {
	r.record("Section", title)
}

func (r *RecordingUI) KeyValue(rows [][2]string) {
	for _, row := range rows {
		r.record("KeyValue", row[0]+": "+row[1])
	}
}

func (r *RecordingUI) Table(headers []string, rows [][]string) {
	for _, row := range rows {
		r.record("Table", strings.Join(row, " | "))
	}
}

func (r *RecordingUI) Spinner(msg string) func() {
	r.record("Spinner", msg)
	return func() {}
}

// Confirm returns the next scripted input as a boolean: "y" and "yes" are
// true, "" is defaultYes, anything else is false.
func (r *RecordingUI) Confirm(prompt string, defaultYes bool) bool {
	r.record("Confirm", prompt)
	r.mu.Lock()
	if r.nextIdx >= len(r.inputs) {
		r.mu.Unlock()
		panic(fmt.Sprintf("RecordingUI: no scripted input left for Confirm(%q)", prompt))
	}
	input := strings.ToLower(strings.TrimSpace(r.inputs[r.nextIdx]))
	r.nextIdx++
	r.mu.Unlock()
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// Entries returns all recorded UI calls in order.
func (r *RecordingUI) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry{}, r.entries...)
}

func (r *RecordingUI) ErrorMessages() []string {
	return r.methodValues("Error")
}

func (r *RecordingUI) CriticalMessages() []string {
	return r.methodValues("Critical")
}

// HasMessage reports whether any recorded value contains substr, case
// insensitively.
func (r *RecordingUI) HasMessage(substr string) bool {
	lower := strings.ToLower(substr)
	for _, e := range r.Entries() {
		if strings.Contains(strings.ToLower(e.Value), lower) {
			return true
		}
	}
	return false
}

func (r *RecordingUI) methodValues(method string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Method == method {
			out = append(out, e.Value)
		}
	}
	return out
}
