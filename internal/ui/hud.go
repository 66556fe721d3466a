package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/report"
)

// Fallback ANSI sequences used by the default theme.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a rich TTY display with a scrolling feed of toggled
// files and a HUD line that redraws in place. Attribute toggles are cheap,
// so the feed switches to an aggregate rate view when files fly past faster
// than anyone can read them.
type hudPresenter struct {
	w         io.Writer
	report    *report.Collector
	theme     Theme
	verb      string
	verbose   bool
	forceFeed bool
	forceRate bool

	// Internal state.
	hudDrawn     bool
	hudLineCount int
	rateMode     bool
	rateSwitched bool // whether we've printed the switch notice
	lastHUDDraw  time.Time
}

const (
	rateThreshHigh = 200.0
	rateThreshLow  = 100.0
	sparklineWidth = 20
	hudMinInterval = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan event.Event) error {
	if p.forceRate {
		p.rateMode = true
	}

	// Fire first tick quickly to seed the ring buffer, then switch to the
	// 1s interval.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw ticker for when no events are flowing.
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.maybeSwitch()
			p.drawHUD()

		case <-secTicker.C:
			p.report.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(1 * time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.FileToggled, event.DirToggled:
		if !p.rateMode {
			p.clearHUD()
			fmt.Fprintf(p.w, "%s✓%s  %s\n", p.theme.Green, p.theme.Reset, p.styledPath(ev.Path))
			p.drawHUD()
		}

	case event.FileAlready:
		if p.verbose && !p.rateMode {
			p.clearHUD()
			fmt.Fprintf(p.w, "%s✓%s  %s  %salready %s%s\n",
				p.theme.Green, p.theme.Reset,
				p.styledPath(ev.Path), p.theme.Dim, p.verb, p.theme.Reset)
			p.drawHUD()
		}

	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.clearHUD()
		fmt.Fprintf(p.w, "%s✗%s  %s  %s\n",
			p.theme.Red, p.theme.Reset, p.styledPath(ev.Path), errMsg)
		p.drawHUD()

	case event.FileSkipped:
		if p.verbose && !p.rateMode {
			p.clearHUD()
			fmt.Fprintf(p.w, "–  %s  %sskipped (%s)%s\n",
				p.styledPath(ev.Path), p.theme.Dim, ev.Reason, p.theme.Reset)
			p.drawHUD()
		}
	}
}

func (p *hudPresenter) maybeSwitch() {
	if p.forceFeed || p.forceRate {
		return
	}

	fps := p.report.RollingRate(2)

	if !p.rateMode && fps > rateThreshHigh {
		p.rateMode = true
		if !p.rateSwitched {
			p.rateSwitched = true
			p.clearHUD()
			fmt.Fprintf(p.w, "↯ rate view (%s files/s · use --feed to see individual files)\n",
				FormatCount(int64(fps)))
		}
	} else if p.rateMode && fps < rateThreshLow {
		p.rateMode = false
	}
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.report.Snapshot()
	fps := p.report.RollingRate(5)
	spark := Sparkline(p.report.RateSamples(sparklineWidth), sparklineWidth)

	p.clearHUD()

	lines := 0
	fmt.Fprintf(p.w, "files/s  %s  %s/s\n", spark, FormatCount(int64(fps)))
	lines++

	fmt.Fprintf(p.w, " %s%s %s%s · %s already · %s skipped · %d failed · %s\n",
		p.theme.Bright, FormatCount(snap.Toggled), p.verb, p.theme.Reset,
		FormatCount(snap.Already),
		FormatCount(snap.Skipped),
		snap.Failed,
		FormatDuration(snap.Elapsed),
	)
	lines++

	p.hudDrawn = true
	p.hudLineCount = lines
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2 // fallback
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.report.Snapshot(), p.verb)
}

// styledPath returns the path with the directory portion dimmed and the
// filename in normal weight, making the actual filename stand out.
func (p *hudPresenter) styledPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s/%s%s", p.theme.Dim, dir, p.theme.Reset, base)
}
