package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/report"
)

func TestPlainPresenterFileToggled(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	p := &plainPresenter{w: &out, errW: &errOut, report: report.NewCollector(), verb: "sealed"}

	events := make(chan event.Event, 10)
	events <- event.Event{Type: event.FileToggled, Path: "dir/file.txt"}
	events <- event.Event{Type: event.FileToggled, Path: "other.bin"}
	close(events)

	assert.NoError(t, p.Run(events))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "dir/file.txt")
	assert.Contains(t, lines[0], "sealed")
	assert.Contains(t, lines[1], "other.bin")
}

func TestPlainPresenterFileFailed(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	p := &plainPresenter{w: &out, errW: &errOut, report: report.NewCollector(), verb: "sealed"}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.FileFailed, Path: "fail.txt", Error: assert.AnError}
	close(events)

	assert.NoError(t, p.Run(events))

	assert.Contains(t, out.String(), "fail.txt")
	assert.Contains(t, out.String(), "FAILED")
	assert.Contains(t, out.String(), assert.AnError.Error())
}

func TestPlainPresenterSkippedOnlyWhenVerbose(t *testing.T) {
	var quiet bytes.Buffer
	p := &plainPresenter{w: &quiet, errW: &bytes.Buffer{}, report: report.NewCollector(), verb: "sealed"}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.FileSkipped, Path: "skip.txt", Reason: report.ReasonSymlink}
	close(events)
	assert.NoError(t, p.Run(events))
	assert.Empty(t, quiet.String())

	var verbose bytes.Buffer
	p = &plainPresenter{w: &verbose, errW: &bytes.Buffer{}, report: report.NewCollector(), verb: "sealed", verbose: true}

	events = make(chan event.Event, 5)
	events <- event.Event{Type: event.FileSkipped, Path: "skip.txt", Reason: report.ReasonSymlink}
	close(events)
	assert.NoError(t, p.Run(events))
	assert.Contains(t, verbose.String(), "skip.txt")
	assert.Contains(t, verbose.String(), "skipped")
	assert.Contains(t, verbose.String(), "symlink")
}

func TestPlainPresenterAlreadyOnlyWhenVerbose(t *testing.T) {
	var out bytes.Buffer
	p := &plainPresenter{w: &out, errW: &bytes.Buffer{}, report: report.NewCollector(), verb: "unsealed", verbose: true}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.FileAlready, Path: "done.txt"}
	close(events)

	assert.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "already unsealed")
}

func TestPlainPresenterDirToggled(t *testing.T) {
	var out bytes.Buffer
	p := &plainPresenter{w: &out, errW: &bytes.Buffer{}, report: report.NewCollector(), verb: "sealed"}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.DirToggled, Path: "sub"}
	close(events)

	assert.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "sub/")
}

func TestPlainPresenterSummary(t *testing.T) {
	collector := report.NewCollector()
	collector.AddToggled()
	collector.AddToggled()
	collector.AddAlready()

	p := &plainPresenter{report: collector, verb: "sealed"}
	s := p.Summary()
	assert.Contains(t, s, "sealed 2")
	assert.Contains(t, s, "already 1")
	assert.Contains(t, s, "errors 0")
}
