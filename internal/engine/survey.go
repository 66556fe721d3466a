package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bamsammich/ward/internal/attr"
	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/filter"
)

// SurveyConfig describes a read-only classification pass.
type SurveyConfig struct {
	Root       string
	Adapter    attr.Adapter
	Workers    int
	IncludeGit bool
	Filter     *filter.Chain
	Events     chan<- event.Event

	// OnFile, when set, is called for every readable regular file with
	// its path relative to Root and current flag state. Calls are
	// serialized; order is unspecified.
	OnFile func(rel string, immutable bool)
}

// SurveyResult aggregates a read-only pass. Nothing is mutated.
type SurveyResult struct {
	Immutable int64
	Mutable   int64
	Links     int64
	Specials  int64
	Dirs      int64
	Errors    int64
	Examined  int64
}

// Files is the number of regular files whose flag could be read.
func (r SurveyResult) Files() int64 { return r.Immutable + r.Mutable }

// Survey walks the tree and reads each regular file's flag without
// mutating anything. Discovery is single-threaded; flag reads fan out to
// a bounded errgroup.
func Survey(ctx context.Context, cfg SurveyConfig) (SurveyResult, error) {
	if cfg.Adapter == nil {
		cfg.Adapter = attr.System{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 8)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return SurveyResult{}, fmt.Errorf("root %s: %w", cfg.Root, err)
	}
	info, err := os.Lstat(root)
	if err != nil {
		return SurveyResult{}, fmt.Errorf("root %s: %w", root, err)
	}
	if !info.IsDir() {
		return SurveyResult{}, fmt.Errorf("root %s is not a directory", root)
	}
	if err := checkReadable(root); err != nil {
		return SurveyResult{}, fmt.Errorf("root %s: %w", root, err)
	}

	var (
		immutable atomic.Int64
		mutable   atomic.Int64
		errCount  atomic.Int64
		examined  atomic.Int64
		result    SurveyResult
		mu        sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	files := make(chan string, cfg.Workers*4)

	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			for path := range files {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				rel, relErr := filepath.Rel(root, path)
				if relErr != nil {
					rel = path
				}

				set, getErr := cfg.Adapter.Get(path)
				if getErr != nil {
					errCount.Add(1)
					continue
				}
				if set {
					immutable.Add(1)
				} else {
					mutable.Add(1)
				}
				if cfg.OnFile != nil {
					mu.Lock()
					cfg.OnFile(rel, set)
					mu.Unlock()
				}

				n := examined.Add(1)
				if n%1000 == 0 {
					emit(cfg.Events, event.Event{Type: event.SurveyProgress, Examined: n})
				}
			}
			return nil
		})
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errCount.Add(1)
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		switch classifyMode(d.Type()) {
		case KindDir:
			if path == root {
				return nil
			}
			if !cfg.IncludeGit && d.Name() == ".git" {
				return filepath.SkipDir
			}
			if cfg.Filter != nil && !cfg.Filter.Match(rel, true, 0) {
				return filepath.SkipDir
			}
			result.Dirs++
		case KindSymlink:
			result.Links++
		case KindSpecial:
			result.Specials++
		case KindFile:
			if cfg.Filter != nil {
				info, infoErr := d.Info()
				if infoErr != nil {
					errCount.Add(1)
					return nil
				}
				if !cfg.Filter.Match(rel, false, info.Size()) {
					return nil
				}
			}
			select {
			case files <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	close(files)
	if err := g.Wait(); err != nil {
		return SurveyResult{}, err
	}
	if walkErr != nil {
		return SurveyResult{}, walkErr
	}

	result.Immutable = immutable.Load()
	result.Mutable = mutable.Load()
	result.Errors = errCount.Load()
	result.Examined = examined.Load()
	return result, nil
}
