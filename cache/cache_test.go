package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TFMV/hismetrics/cache"
	"github.com/TFMV/hismetrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGetOrLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.c", "int a(void) { return 0; }")
	c := cache.NewExtractionCache(10)

	loads := 0
	load := func() (types.FileAnalysis, error) {
		loads++
		return types.FileAnalysis{Path: path, Functions: []*types.FunctionRecord{{Name: "a"}}}, nil
	}

	first, err := c.GetOrLoad("source", path, load)
	require.NoError(t, err)
	second, err := c.GetOrLoad("source", path, load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Hits())
	assert.Equal(t, 1, c.Len())

	// the frontend is part of the key
	_, err = c.GetOrLoad("dump", path, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, 2, c.Len())
}

func TestGetOrLoad_ModifiedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.c", "int a(void) { return 0; }")
	c := cache.NewExtractionCache(10)

	loads := 0
	load := func() (types.FileAnalysis, error) {
		loads++
		return types.FileAnalysis{Path: path}, nil
	}

	_, err := c.GetOrLoad("source", path, load)
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = c.GetOrLoad("source", path, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, 0, c.Hits())
}

func TestGetOrLoad_ErrorsAreNotCached(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.c", "")
	c := cache.NewExtractionCache(10)

	failing := func() (types.FileAnalysis, error) {
		return types.FileAnalysis{}, errors.New("parse failed")
	}
	_, err := c.GetOrLoad("source", path, failing)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())

	// a path that cannot be stat'ed is loaded but never cached
	missing := filepath.Join(dir, "missing.c")
	calls := 0
	_, err = c.GetOrLoad("source", missing, func() (types.FileAnalysis, error) {
		calls++
		return types.FileAnalysis{Path: missing}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, c.Len())
}

func TestEvictionAndClear(t *testing.T) {
	c := cache.NewExtractionCache(2)
	c.Put("a", types.FileAnalysis{Path: "a"})
	c.Put("b", types.FileAnalysis{Path: "b"})
	c.Put("c", types.FileAnalysis{Path: "c"})

	_, ok := c.Get("a")
	assert.False(t, ok)
	fa, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", fa.Path)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
