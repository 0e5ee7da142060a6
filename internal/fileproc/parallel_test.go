package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panbanda/pycc/pkg/analyzer"
	"github.com/panbanda/pycc/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func countTopLevel(ctx context.Context, psr *parser.Parser, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	result, err := psr.Parse(ctx, content, path)
	if err != nil {
		return 0, err
	}
	defer result.Close()
	return result.Root().ChildCount(), nil
}

func TestCollect_Empty(t *testing.T) {
	out, errs, err := Collect(context.Background(), nil, Options{}, countTopLevel)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestCollect_AllFilesKeyedByPath(t *testing.T) {
	tmpDir := t.TempDir()

	var files []string
	for i := 0; i < 25; i++ {
		files = append(files, createTestFile(t, tmpDir, fmt.Sprintf("m%d.py", i), "def f():\n    pass\n"))
	}

	for _, workers := range []int{0, 1, 3, 16, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out, errs, err := Collect(context.Background(), files, Options{Workers: workers}, countTopLevel)
			require.NoError(t, err)
			assert.Nil(t, errs)
			require.Len(t, out, len(files))
			for _, f := range files {
				assert.Equal(t, 1, out[f], f)
			}
		})
	}
}

func TestCollect_WorkerBound(t *testing.T) {
	tmpDir := t.TempDir()
	var files []string
	for i := 0; i < 40; i++ {
		files = append(files, createTestFile(t, tmpDir, fmt.Sprintf("f%d.py", i), "pass\n"))
	}

	var inFlight, peak atomic.Int32
	fn := func(ctx context.Context, psr *parser.Parser, path string) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return filepath.Base(path), nil
	}

	out, _, err := Collect(context.Background(), files, Options{Workers: 2}, fn)
	require.NoError(t, err)
	assert.Len(t, out, 40)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCollect_IsolatesFailures(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		createTestFile(t, tmpDir, "good1.py", "pass\n"),
		filepath.Join(tmpDir, "missing.py"),
		createTestFile(t, tmpDir, "good2.py", "pass\n"),
	}

	out, errs, err := Collect(context.Background(), files, Options{Workers: 2}, countTopLevel)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	require.True(t, errs.HasErrors())
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, files[1], errs.Errors[0].Path)
	assert.True(t, errors.Is(errs.Errors[0], os.ErrNotExist))
	assert.Contains(t, errs.Error(), "missing.py")
}

func TestCollect_FailFast(t *testing.T) {
	tmpDir := t.TempDir()
	var files []string
	for i := 0; i < 10; i++ {
		files = append(files, createTestFile(t, tmpDir, fmt.Sprintf("ok%d.py", i), "pass\n"))
	}
	bad := createTestFile(t, tmpDir, "bad.py", "pass\n")
	files = append(files, bad)

	sentinel := errors.New("simulated failure")
	fn := func(ctx context.Context, psr *parser.Parser, path string) (int, error) {
		if path == bad {
			return 0, sentinel
		}
		return 1, nil
	}

	out, errs, err := Collect(context.Background(), files, Options{Workers: 3, FailFast: true}, fn)
	require.Error(t, err)
	assert.Nil(t, out, "fail-fast must not return partial results")
	assert.Nil(t, errs)
	assert.True(t, errors.Is(err, sentinel))

	var perr ProcessingError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, bad, perr.Path)
}

func TestCollect_CancelledContext(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{createTestFile(t, tmpDir, "a.py", "pass\n")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Collect(ctx, files, Options{}, countTopLevel)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCollect_ReportsProgress(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		createTestFile(t, tmpDir, "a.py", "pass\n"),
		createTestFile(t, tmpDir, "b.py", "pass\n"),
		filepath.Join(tmpDir, "gone.py"),
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	tracker := analyzer.NewTracker(func(done, total int, path string) {
		mu.Lock()
		seen[path] = true
		mu.Unlock()
	})
	tracker.SetTotal(len(files))

	ctx := analyzer.WithTracker(context.Background(), tracker)
	_, errs, err := Collect(ctx, files, Options{}, countTopLevel)
	require.NoError(t, err)
	require.True(t, errs.HasErrors())

	assert.Equal(t, 3, tracker.Done())
	assert.Equal(t, 1, tracker.Failed())
	assert.Len(t, seen, 3)
}

func TestProcessingErrors_Error(t *testing.T) {
	errs := &ProcessingErrors{}
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no errors", errs.Error())

	errs.Add("a.py", errors.New("boom"))
	assert.Equal(t, "a.py: boom", errs.Error())

	errs.Add("b.py", errors.New("bang"))
	assert.Contains(t, errs.Error(), "2 files failed to process")

	var nilErrs *ProcessingErrors
	assert.False(t, nilErrs.HasErrors())
}

func BenchmarkCollect(b *testing.B) {
	tmpDir := b.TempDir()
	files := make([]string, 100)
	for i := range files {
		files[i] = createTestFile(b, tmpDir, fmt.Sprintf("file%d.py", i), "def f(x):\n    if x:\n        return 1\n")
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, _, err := Collect(ctx, files, Options{}, countTopLevel)
		if err != nil || len(out) != len(files) {
			b.Fatalf("Collect() = %d results, err %v", len(out), err)
		}
	}
}
