package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/panbanda/pycc/pkg/analyzer/complexity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleReport = complexity.FileReport{
	{Name: "f", Complexity: 2, StartLine: 1, EndLine: 4},
	{Name: "A.m", Complexity: 3, StartLine: 6, EndLine: 10},
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	// Test enabled cache
	c, err := New(filepath.Join(tmpDir, "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	// Test disabled cache
	c, err = New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	_, err := New(cacheDir, 24, true)
	require.NoError(t, err)

	info, err := os.Stat(cacheDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStoreAndLookup(t *testing.T) {
	c := newTestCache(t)
	content := []byte("def f():\n    pass\n")

	_, ok := c.Lookup("a.py", content)
	assert.False(t, ok, "empty cache must miss")

	require.NoError(t, c.Store("a.py", content, sampleReport))

	got, ok := c.Lookup("a.py", content)
	require.True(t, ok)
	assert.Equal(t, sampleReport, got)

	_, ok = c.Lookup("b.py", content)
	assert.False(t, ok, "other keys must miss")
}

func TestLookup_ContentChanged(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Store("a.py", []byte("v1"), sampleReport))

	_, ok := c.Lookup("a.py", []byte("v2"))
	assert.False(t, ok)
}

func TestLookup_EmptyReport(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Store("empty.py", nil, complexity.FileReport{}))

	got, ok := c.Lookup("empty.py", nil)
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLookup_Corrupt(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, os.WriteFile(c.keyPath("a.py"), []byte("{not json"), 0600))

	_, ok := c.Lookup("a.py", nil)
	assert.False(t, ok)
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t)
	content := []byte("x = 1\n")

	entry := Entry{
		Key:       "old.py",
		Hash:      HashBytes(content),
		Timestamp: time.Now().Add(-48 * time.Hour),
		Report:    sampleReport,
	}
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	path := c.keyPath("old.py")
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, ok := c.Lookup("old.py", content)
	assert.False(t, ok, "expired entry must miss")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expired entry should be removed")
}

func TestTTLZeroNeverExpires(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 0, true)
	require.NoError(t, err)

	entry := Entry{Key: "k", Hash: HashBytes(nil), Timestamp: time.Now().Add(-1000 * time.Hour)}
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.keyPath("k"), data, 0600))

	_, ok := c.Lookup("k", nil)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Store("a.py", nil, sampleReport))
	require.NoError(t, c.Store("b.py", nil, sampleReport))
	require.NoError(t, c.Clear())

	_, err := os.Stat(c.dir)
	assert.True(t, os.IsNotExist(err))

	stats, err := c.GetStats()
	require.NoError(t, err, "stats of a cleared cache")
	assert.Zero(t, stats.Entries)
}

func TestDisabledCache(t *testing.T) {
	c, err := New("", 0, false)
	require.NoError(t, err)

	assert.NoError(t, c.Store("a.py", nil, sampleReport))
	_, ok := c.Lookup("a.py", nil)
	assert.False(t, ok)
	assert.NoError(t, c.Clear())

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestConcurrentStore(t *testing.T) {
	c := newTestCache(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Store("shared.py", []byte("x"), sampleReport))
		}()
	}
	wg.Wait()

	got, ok := c.Lookup("shared.py", []byte("x"))
	require.True(t, ok)
	assert.Equal(t, sampleReport, got)

	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp files must not remain")
	}
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashBytes([]byte("hello")))
	assert.NotEqual(t, a, HashBytes([]byte("hello!")))
}

func TestKeyPath(t *testing.T) {
	c := newTestCache(t)

	p1 := c.keyPath("src/a.py|decorated=false")
	p2 := c.keyPath("src/a.py|decorated=true")
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, c.dir, filepath.Dir(p1), "keys with separators must stay inside the cache dir")
	assert.Equal(t, ".json", filepath.Ext(p1))
}

func TestGetStats(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Store("a.py", nil, sampleReport))
	require.NoError(t, c.Store("b.py", nil, sampleReport))

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Positive(t, stats.TotalSize)
}
