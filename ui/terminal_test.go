package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTerminal(input string) (*TerminalUI, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewTerminalUIWithIO(out, strings.NewReader(input), false), out
}

func TestKeyValueAlignsValues(t *testing.T) {
	u, out := newTestTerminal("")
	u.KeyValue([][2]string{
		{"Safe", "0xabc"},
		{"Threshold", "2 of 3"},
	})
	require.Equal(t, "Safe       0xabc\nThreshold  2 of 3\n", out.String())
}

func TestTable(t *testing.T) {
	u, out := newTestTerminal("")
	u.Table([]string{"#", "Description"}, [][]string{
		{"1", "Transfer 1 ETH"},
		{"2", "Transfer 10 USDC"},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	require.Equal(t, "│ # │ Description      │", lines[1])
	require.Equal(t, "│ 2 │ Transfer 10 USDC │", lines[4])
}

func TestConfirm(t *testing.T) {
	u, _ := newTestTerminal("maybe\ny\n\nn\n")
	require.True(t, u.Confirm("Sign?", false))
	require.True(t, u.Confirm("Sign?", true))
	require.False(t, u.Confirm("Sign?", true))
	// exhausted input declines
	require.False(t, u.Confirm("Sign?", true))
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	u, out := newTestTerminal("")
	stop := u.Spinner("Waiting")
	stop()
	require.Equal(t, "Waiting\n", out.String())
}

func TestRecordingUI(t *testing.T) {
	r := NewRecordingUI("yes", "")
	r.Error("failed: %s", "boom")
	require.True(t, r.Confirm("Submit?", false))
	require.False(t, r.Confirm("Submit?", false))
	require.Equal(t, []string{"failed: boom"}, r.ErrorMessages())
	require.True(t, r.HasMessage("BOOM"))
	require.Panics(t, func() { r.Confirm("again?", true) })
}
