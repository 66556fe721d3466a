// Package engine walks a directory tree and toggles the immutable
// attribute on eligible entries. Discovery is single-threaded so mount
// and ordering invariants stay easy to reason about; the per-file toggle
// fans out to a bounded worker pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bamsammich/ward/internal/attr"
	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/filter"
	"github.com/bamsammich/ward/internal/mount"
	"github.com/bamsammich/ward/internal/report"
)

// ErrPrecondition marks fatal failures detected before any mutation:
// bad root, failed free-space check. Mapped to exit code 2.
var ErrPrecondition = errors.New("precondition failed")

// Direction selects which way the attribute is toggled.
type Direction int

const (
	// Seal sets the immutable attribute.
	Seal Direction = iota + 1
	// Unseal clears it.
	Unseal
)

func (d Direction) String() string {
	switch d {
	case Seal:
		return "seal"
	case Unseal:
		return "unseal"
	default:
		return "unknown"
	}
}

// Immutable is the target flag state for this direction.
func (d Direction) Immutable() bool { return d == Seal }

// Config describes a toggle run.
type Config struct {
	Root      string
	Direction Direction

	// Adapter performs the per-file attribute calls. Defaults to the
	// real ioctl-backed adapter.
	Adapter attr.Adapter

	// Workers bounds the toggle pool. Discovery stays single-threaded.
	Workers int

	// SealDirs also toggles the attribute on directories.
	SealDirs bool

	// CrossMount permits descending into nested mounts. Only honored
	// for Unseal; sealing never crosses a mount boundary.
	CrossMount bool

	// DryRun reports what would change without calling Set.
	DryRun bool

	// IncludeGit walks into .git directories (skipped by default).
	IncludeGit bool

	// EntryTimeout bounds a single toggle. A toggle that overruns is
	// recorded as that entry's failure; the syscall is left to finish,
	// never interrupted mid-flight.
	EntryTimeout time.Duration

	// MinFree aborts a Seal before any mutation if the target mount has
	// fewer free bytes. Zero disables the check.
	MinFree int64

	Filter *filter.Chain
	Events chan<- event.Event
	Report *report.Collector
}

// Status is the terminal state of a run.
type Status int

const (
	// Completed means the walk finished; per-file errors may still be
	// recorded in the report.
	Completed Status = iota + 1
	// Cancelled means the run stopped cooperatively. Entries already
	// toggled stay toggled; re-running the same direction resumes.
	Cancelled
	// Aborted means a precondition or root resolution failure stopped
	// the run before (or instead of) any mutation.
	Aborted
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the outcome of a run.
type Result struct {
	Report report.Snapshot
	Status Status
	Err    error
}

const defaultEntryTimeout = 30 * time.Second

// Run executes a toggle run, blocking until complete. Per-entry errors
// never abort the run; only precondition and root-resolution failures do.
func Run(ctx context.Context, cfg Config) Result {
	if cfg.Adapter == nil {
		cfg.Adapter = attr.System{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 8)
	}
	if cfg.Report == nil {
		cfg.Report = report.NewCollector()
	}
	if cfg.EntryTimeout == 0 {
		cfg.EntryTimeout = defaultEntryTimeout
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return abort(cfg, fmt.Errorf("root %s: %w", cfg.Root, errors.Join(ErrPrecondition, err)))
	}
	cfg.Root = root

	info, err := os.Lstat(root)
	if err != nil {
		return abort(cfg, fmt.Errorf("root %s: %w", root, errors.Join(ErrPrecondition, err)))
	}
	if !info.IsDir() {
		return abort(cfg, fmt.Errorf("root %s is not a directory: %w", root, ErrPrecondition))
	}
	if err := checkReadable(root); err != nil {
		return abort(cfg, fmt.Errorf("root %s: %w", root, errors.Join(ErrPrecondition, err)))
	}

	boundary, err := mount.Resolve(root)
	if err != nil {
		return abort(cfg, fmt.Errorf("%w: %v", ErrPrecondition, err))
	}

	if err := checkPreconditions(cfg); err != nil {
		return abort(cfg, err)
	}

	slog.Debug("run starting",
		"root", root,
		"direction", cfg.Direction.String(),
		"mount", boundary.String(),
		"workers", cfg.Workers,
		"dry_run", cfg.DryRun,
	)

	emit(cfg.Events, event.Event{Type: event.WalkStarted})

	tasks := make(chan toggleTask, cfg.Workers*4)
	w := newWalker(cfg, boundary, tasks)
	go w.walk(ctx)

	p := newPool(cfg)
	p.run(ctx, tasks)

	emit(cfg.Events, event.Event{Type: event.WalkComplete})

	status := Completed
	if ctx.Err() != nil {
		status = Cancelled
	}
	return Result{
		Report: cfg.Report.Snapshot(),
		Status: status,
	}
}

func abort(cfg Config, err error) Result {
	var snap report.Snapshot
	if cfg.Report != nil {
		snap = cfg.Report.Snapshot()
	}
	return Result{Report: snap, Status: Aborted, Err: err}
}

// checkReadable verifies the root can actually be listed. An existing but
// unreadable root must abort the run up front, not degrade into a silent
// zero-work walk.
func checkReadable(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// checkPreconditions runs once before traversal; any failure aborts
// before any mutation. Unseal has no space requirement.
func checkPreconditions(cfg Config) error {
	if cfg.Direction != Seal || cfg.MinFree <= 0 {
		return nil
	}

	free, err := mount.FreeSpace(cfg.Root)
	if err != nil {
		// The attribute store on this filesystem evidently does not
		// expose space accounting; the check does not apply.
		slog.Debug("free space check skipped", "root", cfg.Root, "error", err)
		return nil
	}
	if free < cfg.MinFree {
		return fmt.Errorf("%w: %d bytes free on %s, need %d",
			ErrPrecondition, free, cfg.Root, cfg.MinFree)
	}
	return nil
}

// emit sends an event without blocking the engine on a slow presenter.
func emit(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
