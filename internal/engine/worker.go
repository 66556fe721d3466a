package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bamsammich/ward/internal/attr"
	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/report"
)

// pool performs the per-entry toggles. Cancellation is checked before each
// toggle starts; a toggle already in flight always completes, so no file
// is ever left half-toggled.
type pool struct {
	cfg Config
}

func newPool(cfg Config) *pool {
	return &pool{cfg: cfg}
}

// run consumes tasks until the channel closes. Blocks until all workers
// drain. One failure never aborts the run.
func (p *pool) run(ctx context.Context, tasks <-chan toggleTask) {
	var wg sync.WaitGroup
	for id := 0; id < p.cfg.Workers; id++ {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				select {
				case <-ctx.Done():
					return
				default:
				}
				p.process(task, id)
			}
		}()
	}
	wg.Wait()
}

func (p *pool) process(task toggleTask, workerID int) {
	target := p.cfg.Direction.Immutable()

	current, err := p.cfg.Adapter.Get(task.path)
	if err != nil {
		p.recordError(task, workerID, err)
		return
	}

	if current == target {
		if task.dir {
			p.cfg.Report.AddDirAlready()
		} else {
			p.cfg.Report.AddAlready()
		}
		emit(p.cfg.Events, event.Event{Type: event.FileAlready, Path: task.rel, WorkerID: workerID})
		return
	}

	if p.cfg.DryRun {
		p.recordToggled(task, workerID)
		return
	}

	if err := p.setWithTimeout(task.path, target); err != nil {
		p.recordError(task, workerID, err)
		return
	}
	p.recordToggled(task, workerID)
}

// setWithTimeout bounds a single toggle. On overrun the entry is recorded
// as failed and the syscall is left to finish on its own goroutine; it is
// never interrupted, so the on-disk state stays unambiguous.
func (p *pool) setWithTimeout(path string, immutable bool) error {
	if p.cfg.EntryTimeout <= 0 {
		return p.cfg.Adapter.Set(path, immutable)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.cfg.Adapter.Set(path, immutable)
	}()

	timer := time.NewTimer(p.cfg.EntryTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("toggle %s: %w", path, context.DeadlineExceeded)
	}
}

func (p *pool) recordToggled(task toggleTask, workerID int) {
	if task.dir {
		p.cfg.Report.AddDir()
		emit(p.cfg.Events, event.Event{Type: event.DirToggled, Path: task.rel, WorkerID: workerID})
		return
	}
	p.cfg.Report.AddToggled()
	emit(p.cfg.Events, event.Event{Type: event.FileToggled, Path: task.rel, WorkerID: workerID})
}

func (p *pool) recordError(task toggleTask, workerID int, err error) {
	// A vanished entry is a benign race with concurrent deletion, not a
	// failure of the run.
	if errors.Is(err, attr.ErrNotFound) {
		p.cfg.Report.AddSkip(task.rel, report.ReasonVanished)
		emit(p.cfg.Events, event.Event{Type: event.FileSkipped, Path: task.rel, Reason: report.ReasonVanished, WorkerID: workerID})
		return
	}
	p.cfg.Report.AddFailure(task.rel, err)
	emit(p.cfg.Events, event.Event{Type: event.FileFailed, Path: task.rel, Error: err, WorkerID: workerID})
}
