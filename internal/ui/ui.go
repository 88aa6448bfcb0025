// Package ui is the progress-display contract for long-running commands.
package ui

import (
	"fmt"
	"io"
)

// UI receives run progress for display. A zero total means the total is not
// known yet.
type UI interface {
	UpdateStatus(status string)
	UpdateProgress(processed, total int)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string)          {}
func (s SilentUI) UpdateProgress(processed, total int) {}
func (s SilentUI) Log(msg string)                      {}

// ConsoleUI prints plain progress lines, one per update.
type ConsoleUI struct {
	Out io.Writer
}

func NewConsoleUI(out io.Writer) ConsoleUI {
	return ConsoleUI{Out: out}
}

func (c ConsoleUI) UpdateStatus(status string) {
	fmt.Fprintln(c.Out, status)
}

func (c ConsoleUI) UpdateProgress(processed, total int) {
	if total > 0 {
		fmt.Fprintf(c.Out, "Processed %d/%d transcripts\n", processed, total)
		return
	}
	fmt.Fprintf(c.Out, "Processed %d transcripts\n", processed)
}

func (c ConsoleUI) Log(msg string) {
	fmt.Fprintln(c.Out, msg)
}
