package engine

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ward/internal/attr"
	"github.com/bamsammich/ward/internal/event"
	"github.com/bamsammich/ward/internal/filter"
	"github.com/bamsammich/ward/internal/report"
)

func TestRun_SealScenario(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()

	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		Workers:   2,
	})

	require.NoError(t, result.Err)
	assert.Equal(t, Completed, result.Status)
	assert.Equal(t, int64(3), result.Report.Toggled, "a, b, sub/c")
	assert.Equal(t, int64(0), result.Report.Already)
	assert.Equal(t, int64(1), result.Report.Skipped, "the symlink")
	assert.Equal(t, int64(0), result.Report.Failed)
	assert.Equal(t, int64(1), result.Report.SkipsByReason[report.ReasonSymlink])

	// All three regular files now immutable, link target included once.
	assert.Len(t, fake.immutablePaths(), 3)
	assert.True(t, fake.immutablePaths()[filepath.Join(root, "a.txt")])
	assert.True(t, fake.immutablePaths()[filepath.Join(root, "sub", "c.txt")])
}

func TestRun_SealIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()
	cfg := Config{Root: root, Direction: Seal, Adapter: fake, Workers: 2}

	first := Run(context.Background(), cfg)
	require.Equal(t, int64(3), first.Report.Toggled)
	setsAfterFirst := fake.setCount()

	cfg.Report = nil // fresh collector per run
	second := Run(context.Background(), cfg)

	assert.Equal(t, int64(0), second.Report.Toggled)
	assert.Equal(t, int64(3), second.Report.Already, "all files already in target state")
	assert.Equal(t, int64(3), second.Report.Processed())
	assert.Equal(t, int64(1), second.Report.Skipped)
	assert.Equal(t, setsAfterFirst, fake.setCount(), "no further Set calls")
}

func TestRun_RoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()

	seal := Run(context.Background(), Config{Root: root, Direction: Seal, Adapter: fake})
	require.Equal(t, int64(3), seal.Report.Toggled)
	require.Len(t, fake.immutablePaths(), 3)

	unseal := Run(context.Background(), Config{Root: root, Direction: Unseal, Adapter: fake})
	assert.Equal(t, int64(3), unseal.Report.Toggled)
	assert.Empty(t, fake.immutablePaths(), "every flag restored")
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()
	fake.setErr["b.txt"] = attr.ErrPermission

	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		Workers:   2,
	})

	assert.Equal(t, Completed, result.Status)
	assert.Equal(t, int64(2), result.Report.Toggled, "the other files still toggle")
	assert.Equal(t, int64(1), result.Report.Failed)

	require.Len(t, result.Report.Failures, 1)
	assert.Equal(t, "b.txt", result.Report.Failures[0].Path)
	assert.ErrorIs(t, result.Report.Failures[0].Err, attr.ErrPermission)
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFlatTree(t, root, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeAdapter()
	fake.onSet = func(string) {
		if fake.setCount() >= 1 {
			cancel() // stop after the second toggle begins
		}
	}

	result := Run(ctx, Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		Workers:   1,
	})

	assert.Equal(t, Cancelled, result.Status)
	processed := result.Report.Processed()
	assert.Equal(t, int64(fake.setCount()), processed, "every completed toggle is reported")
	assert.Less(t, processed, int64(8))

	// Re-running the same direction finishes the remainder.
	resume := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		Workers:   1,
	})
	assert.Equal(t, Completed, resume.Status)
	assert.Equal(t, int64(8), resume.Report.Processed())
	assert.Equal(t, processed, resume.Report.Already, "previously toggled files resume as already-sealed")
	assert.Len(t, fake.immutablePaths(), 8)
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()

	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		DryRun:    true,
	})

	assert.Equal(t, int64(3), result.Report.Toggled, "counts what would change")
	assert.Zero(t, fake.setCount(), "no mutation in dry-run")
	assert.Empty(t, fake.immutablePaths())
}

func TestRun_RootMissing(t *testing.T) {
	t.Parallel()

	result := Run(context.Background(), Config{
		Root:      filepath.Join(t.TempDir(), "nope"),
		Direction: Seal,
		Adapter:   newFakeAdapter(),
	})

	assert.Equal(t, Aborted, result.Status)
	assert.ErrorIs(t, result.Err, ErrPrecondition)
	assert.ErrorIs(t, result.Err, os.ErrNotExist)
}

func TestRun_RootNotADirectory(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	result := Run(context.Background(), Config{
		Root:      file,
		Direction: Seal,
		Adapter:   newFakeAdapter(),
	})

	assert.Equal(t, Aborted, result.Status)
	assert.ErrorIs(t, result.Err, ErrPrecondition)
}

func TestRun_UnreadableRootAborts(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}

	root := t.TempDir()
	createTestTree(t, root)
	require.NoError(t, os.Chmod(root, 0o000))
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	fake := newFakeAdapter()
	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
	})

	assert.Equal(t, Aborted, result.Status)
	assert.ErrorIs(t, result.Err, ErrPrecondition)
	assert.ErrorIs(t, result.Err, fs.ErrPermission)
	assert.Zero(t, fake.setCount(), "nothing mutated")
}

func TestRun_MinFreeAbortsBeforeMutation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()

	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		MinFree:   math.MaxInt64,
	})

	assert.Equal(t, Aborted, result.Status)
	assert.ErrorIs(t, result.Err, ErrPrecondition)
	assert.Zero(t, fake.setCount(), "abort happens before any mutation")
}

func TestRun_MinFreeIgnoredForUnseal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()

	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Unseal,
		Adapter:   fake,
		MinFree:   math.MaxInt64,
	})

	assert.Equal(t, Completed, result.Status)
}

func TestRun_SealDirsPolicy(t *testing.T) {
	t.Parallel()

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		createTestTree(t, root)
		fake := newFakeAdapter()

		result := Run(context.Background(), Config{
			Root:      root,
			Direction: Seal,
			Adapter:   fake,
			SealDirs:  true,
		})

		assert.Equal(t, int64(1), result.Report.Dirs, "sub gets the attribute too")
		assert.True(t, fake.immutablePaths()[filepath.Join(root, "sub")])
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		createTestTree(t, root)
		fake := newFakeAdapter()

		result := Run(context.Background(), Config{
			Root:      root,
			Direction: Seal,
			Adapter:   fake,
		})

		assert.Zero(t, result.Report.Dirs)
		assert.False(t, fake.immutablePaths()[filepath.Join(root, "sub")])
	})
}

func TestRun_SealDirsRerunCountsDirsSeparately(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()

	cfg := Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		SealDirs:  true,
	}

	first := Run(context.Background(), cfg)
	require.Equal(t, Completed, first.Status)
	require.Equal(t, int64(1), first.Report.Dirs)

	second := Run(context.Background(), cfg)
	require.Equal(t, Completed, second.Status)

	assert.Zero(t, second.Report.Toggled)
	assert.Zero(t, second.Report.Dirs)
	assert.Equal(t, int64(3), second.Report.Already, "file counter holds files only")
	assert.Equal(t, int64(1), second.Report.DirsAlready)
}

func TestRun_GitExcludedByDefault(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("[core]"), 0o644))

	fake := newFakeAdapter()
	result := Run(context.Background(), Config{Root: root, Direction: Seal, Adapter: fake})

	assert.Equal(t, int64(3), result.Report.Toggled)
	assert.False(t, fake.immutablePaths()[filepath.Join(root, ".git", "config")])
	assert.Equal(t, int64(1), result.Report.SkipsByReason[report.ReasonExcluded])

	fake2 := newFakeAdapter()
	included := Run(context.Background(), Config{
		Root:       root,
		Direction:  Seal,
		Adapter:    fake2,
		IncludeGit: true,
	})
	assert.Equal(t, int64(4), included.Report.Toggled, ".git/config included")
}

func TestRun_FilterExcludes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.log"), []byte("s"), 0o644))

	chain := filter.NewChain()
	require.NoError(t, chain.AddExclude("*.log"))

	fake := newFakeAdapter()
	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   fake,
		Filter:    chain,
	})

	assert.Equal(t, int64(1), result.Report.Toggled)
	assert.Equal(t, int64(1), result.Report.SkipsByReason[report.ReasonExcluded])
	assert.False(t, fake.immutablePaths()[filepath.Join(root, "skip.log")])
}

func TestRun_EntryTimeout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFlatTree(t, root, 1)

	fake := newFakeAdapter()
	fake.setDelay = 200 * time.Millisecond

	result := Run(context.Background(), Config{
		Root:         root,
		Direction:    Seal,
		Adapter:      fake,
		Workers:      1,
		EntryTimeout: 20 * time.Millisecond,
	})

	assert.Equal(t, Completed, result.Status)
	require.Len(t, result.Report.Failures, 1)
	assert.ErrorIs(t, result.Report.Failures[0].Err, context.DeadlineExceeded)
}

func TestRun_VanishedFileIsSkipNotError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)

	fake := newFakeAdapter()
	fake.getErr["b.txt"] = attr.ErrNotFound

	result := Run(context.Background(), Config{Root: root, Direction: Seal, Adapter: fake})

	assert.Equal(t, int64(2), result.Report.Toggled)
	assert.Zero(t, result.Report.Failed)
	assert.Equal(t, int64(1), result.Report.SkipsByReason[report.ReasonVanished])
}

func TestRun_EventSequence(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)

	events := make(chan event.Event, 1024)
	result := Run(context.Background(), Config{
		Root:      root,
		Direction: Seal,
		Adapter:   newFakeAdapter(),
		Events:    events,
	})
	close(events)

	require.NoError(t, result.Err)

	var collected []event.Event
	for ev := range events {
		collected = append(collected, ev)
	}

	typeSet := make(map[event.Type]bool)
	for _, ev := range collected {
		typeSet[ev.Type] = true
	}
	assert.True(t, typeSet[event.WalkStarted])
	assert.True(t, typeSet[event.FileToggled])
	assert.True(t, typeSet[event.FileSkipped])
	assert.True(t, typeSet[event.WalkComplete])

	assert.Equal(t, event.WalkStarted, collected[0].Type)
	assert.Equal(t, event.WalkComplete, collected[len(collected)-1].Type)
}

func TestRun_ReportAccountsEveryFileOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createTestTree(t, root)
	fake := newFakeAdapter()
	fake.setErr["c.txt"] = errors.New("boom")

	result := Run(context.Background(), Config{Root: root, Direction: Seal, Adapter: fake})

	total := result.Report.Processed() + result.Report.Failed
	assert.Equal(t, int64(3), total, "3 regular files: toggled + already + failed")
}

func TestDirection_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "seal", Seal.String())
	assert.Equal(t, "unseal", Unseal.String())
	assert.True(t, Seal.Immutable())
	assert.False(t, Unseal.Immutable())
}
