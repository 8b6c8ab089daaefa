package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows progress while the CLI waits on the backend or the
// browser. It is a no-op when quiet output was requested.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a stopped spinner writing to w.
func NewSpinner(w io.Writer, message string, quiet bool) *Spinner {
	if quiet {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	return &Spinner{s: s}
}

func (sp *Spinner) Start() {
	if sp.s != nil {
		sp.s.Start()
	}
}

// Stop halts the spinner and prints final on its own line when non-empty.
func (sp *Spinner) Stop(final string) {
	if sp.s == nil {
		return
	}
	if final != "" {
		sp.s.FinalMSG = final + "\n"
	}
	sp.s.Stop()
}
