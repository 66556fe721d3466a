package ui

import (
	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/report"
)

// quietPresenter drains events but produces no output. The collector is
// written by the engine directly; presenters only read from it.
type quietPresenter struct {
	report *report.Collector
}

func (p *quietPresenter) Run(events <-chan event.Event) error {
	for range events {
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
