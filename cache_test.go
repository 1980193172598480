package relcomp_test

import (
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/relcomp"
)

type shapeKey struct {
	table string
	op    int
}

func (k shapeKey) String() string { return k.table + "/" + strconv.Itoa(k.op) }

// clashKey renders distinct keys with the same name.
type clashKey struct{ id int }

func (clashKey) String() string { return "clash" }

func TestRequestCache(t *testing.T) {
	c := relcomp.NewRequestCache[shapeKey, string]()
	var calls int
	compile := func() (string, error) {
		calls++
		return "INSERT INTO people", nil
	}

	v, err := c.GetOrCompile(shapeKey{"people", 1}, compile)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO people", v)

	v, err = c.GetOrCompile(shapeKey{"people", 1}, compile)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO people", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get(shapeKey{"people", 1})
	assert.True(t, ok)
	assert.Equal(t, v, got)
	_, ok = c.Get(shapeKey{"people", 2})
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Compiles)
	assert.InDelta(t, 0.5, s.HitRate(), 0.001)
	assert.Equal(t, "size=1 hits=1 misses=1 compiles=1 errors=0", s.String())

	c.Clear()
	assert.Zero(t, c.Len())
	_, ok = c.Get(shapeKey{"people", 1})
	assert.False(t, ok)
}

func TestRequestCacheErrorsAreNotCached(t *testing.T) {
	c := relcomp.NewRequestCache[shapeKey, int]()
	boom := errors.New("boom")
	_, err := c.GetOrCompile(shapeKey{"people", 1}, func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompile(shapeKey{"people", 1}, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int64(1), c.Stats().Errors)
}

func TestRequestCacheConcurrent(t *testing.T) {
	c := relcomp.NewRequestCache[shapeKey, *int]()
	var compiles atomic.Int64
	release := make(chan struct{})
	compile := func() (*int, error) {
		compiles.Add(1)
		<-release
		v := 7
		return &v, nil
	}

	const workers = 16
	results := make([]*int, workers)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			v, err := c.GetOrCompile(shapeKey{"people", 3}, compile)
			results[i] = v
			return err
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	// Every caller observes the one surviving result.
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.LessOrEqual(t, compiles.Load(), int64(workers))
	assert.Equal(t, 1, c.Len())
}

func TestRequestCacheNameClash(t *testing.T) {
	c := relcomp.NewRequestCache[clashKey, int]()
	a, err := c.GetOrCompile(clashKey{1}, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	b, err := c.GetOrCompile(clashKey{2}, func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 2, c.Len())
}
