package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAdapter tracks flag state in memory so engine behavior can be tested
// without CAP_LINUX_IMMUTABLE or an attribute-capable filesystem. The
// walker still runs against a real temp tree; only the per-file primitive
// is faked.
type fakeAdapter struct {
	mu       sync.Mutex
	state    map[string]bool
	getErr   map[string]error
	setErr   map[string]error
	setDelay time.Duration
	onSet    func(path string) // called before the state change applies
	sets     []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		state:  make(map[string]bool),
		getErr: make(map[string]error),
		setErr: make(map[string]error),
	}
}

func (f *fakeAdapter) Get(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[filepath.Base(path)]; err != nil {
		return false, err
	}
	return f.state[path], nil
}

func (f *fakeAdapter) Set(path string, immutable bool) error {
	if f.setDelay > 0 {
		time.Sleep(f.setDelay)
	}

	f.mu.Lock()
	onSet := f.onSet
	f.mu.Unlock()
	if onSet != nil {
		onSet(path)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setErr[filepath.Base(path)]; err != nil {
		return err
	}
	f.state[path] = immutable
	f.sets = append(f.sets, path)
	return nil
}

func (f *fakeAdapter) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

func (f *fakeAdapter) immutablePaths() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for p, set := range f.state {
		if set {
			out[p] = true
		}
	}
	return out
}

// createTestTree populates root with the standard fixture:
//
//	a.txt
//	b.txt
//	sub/c.txt
//	link → a.txt (symlink)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("bravo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "c.txt"), []byte("charlie"), 0o644))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))
}

// createFlatTree writes n regular files name-0.dat .. name-(n-1).dat.
func createFlatTree(t *testing.T, root string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	for i := 0; i < n; i++ {
		name := filepath.Join(root, "file-"+string(rune('a'+i))+".dat")
		require.NoError(t, os.WriteFile(name, []byte("payload"), 0o644))
	}
}
