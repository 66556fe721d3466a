package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/report"
)

// plainPresenter outputs one line per toggled file to stdout, and periodic
// progress to stderr when not a TTY.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	report  *report.Collector
	verb    string
	verbose bool
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.FileToggled:
		fmt.Fprintf(p.w, "%s  %s\n", ev.Path, p.verb)
	case event.DirToggled:
		fmt.Fprintf(p.w, "%s/  %s\n", ev.Path, p.verb)
	case event.FileAlready:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  already %s\n", ev.Path, p.verb)
		}
	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  FAILED  %s\n", ev.Path, errMsg)
	case event.FileSkipped:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  skipped (%s)\n", ev.Path, ev.Reason)
		}
	case event.SurveyProgress:
		if p.verbose {
			fmt.Fprintf(p.errW, "examined %s files\n", FormatCount(ev.Examined))
		}
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.report.Snapshot()
	fmt.Fprintf(p.errW, "progress: %s %s  %s already  %s skipped  %d failed\n",
		FormatCount(snap.Toggled), p.verb,
		FormatCount(snap.Already),
		FormatCount(snap.Skipped),
		snap.Failed,
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.report.Snapshot(), p.verb)
}
