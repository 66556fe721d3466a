package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/mount"
	"github.com/bamsammich/ward/internal/report"
)

// toggleTask is one eligible entry handed to the worker pool.
type toggleTask struct {
	path string
	rel  string
	dir  bool
}

// walker discovers entries depth-first on a single goroutine. Every
// regular file it sees ends up in the report exactly once: as a task for
// the pool, or as a recorded skip.
type walker struct {
	cfg      Config
	tasks    chan<- toggleTask
	contains func(path string, st *syscall.Stat_t) bool
}

func newWalker(cfg Config, boundary mount.Boundary, tasks chan<- toggleTask) *walker {
	return &walker{
		cfg:   cfg,
		tasks: tasks,
		contains: func(_ string, st *syscall.Stat_t) bool {
			return boundary.Contains(st)
		},
	}
}

func (w *walker) walk(ctx context.Context) {
	defer close(w.tasks)

	stack := []string{w.cfg.Root}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = w.walkDir(ctx, dir, stack)
	}
}

// walkDir processes one directory's children, pushing subdirectories onto
// the stack and returning it. A readdir failure is fatal for this subtree
// only: recorded, never escalated.
func (w *walker) walkDir(ctx context.Context, dir string, stack []string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		rel := w.rel(dir)
		w.cfg.Report.AddSkip(rel, report.ReasonAccess)
		emit(w.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel, Reason: report.ReasonAccess})
		slog.Debug("readdir failed", "dir", dir, "error", err)
		return stack
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return stack
		}

		path := filepath.Join(dir, entry.Name())
		rel := w.rel(path)

		info, err := entry.Info()
		if err != nil {
			w.cfg.Report.AddSkip(rel, report.ReasonAccess)
			emit(w.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel, Reason: report.ReasonAccess})
			continue
		}
		kind := classifyMode(info.Mode())

		if crossed := w.crossedMount(path, info); crossed {
			w.cfg.Report.AddSkip(rel, report.ReasonMountBoundary)
			emit(w.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel, Reason: report.ReasonMountBoundary})
			continue
		}

		switch kind {
		case KindDir:
			if !w.cfg.IncludeGit && entry.Name() == ".git" {
				w.cfg.Report.AddSkip(rel, report.ReasonExcluded)
				continue
			}
			if w.cfg.Filter != nil && !w.cfg.Filter.Match(rel, true, 0) {
				w.cfg.Report.AddSkip(rel, report.ReasonExcluded)
				continue
			}
			if w.cfg.SealDirs {
				if !w.send(ctx, toggleTask{path: path, rel: rel, dir: true}) {
					return stack
				}
			}
			stack = append(stack, path)

		case KindSymlink:
			// Links have no attribute store and are never dereferenced.
			w.cfg.Report.AddLink()
			w.cfg.Report.AddSkip(rel, report.ReasonSymlink)
			emit(w.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel, Reason: report.ReasonSymlink})

		case KindSpecial:
			w.cfg.Report.AddSkip(rel, report.ReasonSpecial)
			emit(w.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel, Reason: report.ReasonSpecial})

		case KindFile:
			if w.cfg.Filter != nil && !w.cfg.Filter.Match(rel, false, info.Size()) {
				w.cfg.Report.AddSkip(rel, report.ReasonExcluded)
				continue
			}
			if !w.send(ctx, toggleTask{path: path, rel: rel}) {
				return stack
			}
		}
	}

	return stack
}

// crossedMount reports whether the entry sits on a different device than
// the run's boundary. Sealing never crosses; unsealing may when the caller
// opted in explicitly.
func (w *walker) crossedMount(path string, info os.FileInfo) bool {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	if w.contains(path, st) {
		return false
	}
	return !(w.cfg.Direction == Unseal && w.cfg.CrossMount)
}

func (w *walker) send(ctx context.Context, t toggleTask) bool {
	select {
	case w.tasks <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *walker) rel(path string) string {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		return path
	}
	return rel
}
