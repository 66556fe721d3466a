package ui

import (
	"io"

	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/report"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Report     *report.Collector
	Theme      Theme
	Verb       string // "sealed" or "unsealed", for display
	Workers    int
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	ForceFeed  bool
	ForceRate  bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{report: cfg.Report}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:       cfg.Writer,
			errW:    cfg.ErrWriter,
			report:  cfg.Report,
			verb:    cfg.Verb,
			verbose: cfg.Verbose,
		}
	}
	theme := cfg.Theme
	if theme == (Theme{}) {
		theme = DefaultTheme()
	}
	return &hudPresenter{
		w:         cfg.ErrWriter, // HUD renders to stderr (the TTY)
		report:    cfg.Report,
		theme:     theme,
		verb:      cfg.Verb,
		verbose:   cfg.Verbose,
		forceFeed: cfg.ForceFeed,
		forceRate: cfg.ForceRate,
	}
}
