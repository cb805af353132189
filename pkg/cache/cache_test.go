package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/pawndoc/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingScanner struct {
	inner *scanner.Scanner
	calls int
}

func (s *countingScanner) Scan(name, src string) *scanner.Metadata {
	s.calls++
	return s.inner.Scan(name, src)
}

func newCounting() *countingScanner {
	return &countingScanner{inner: scanner.New(scanner.DefaultOptions())}
}

const source = `CreateConVar("sm_a", "1", "A");`

func TestScanCache_HitAndMiss(t *testing.T) {
	inner := newCounting()
	c := NewScanCache(inner, nil)

	first := c.Scan("p", source)
	second := c.Scan("p", source)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.ItemCount)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestScanCache_KeyIncludesNameAndContent(t *testing.T) {
	inner := newCounting()
	c := NewScanCache(inner, nil)

	c.Scan("p", source)
	c.Scan("q", source)
	c.Scan("p", source+"\n")

	assert.Equal(t, 3, inner.calls)
	assert.NotEqual(t, Key("p", source), Key("q", source))
	assert.Equal(t, Key("p", source), Key("p", source))
}

func TestScanCache_ReturnsCopies(t *testing.T) {
	c := NewScanCache(newCounting(), nil)

	md := c.Scan("p", source)
	md.Cvars["mutated"] = scanner.Cvar{}

	again := c.Scan("p", source)
	assert.NotContains(t, again.Cvars, "mutated")
}

func TestScanCache_Expiry(t *testing.T) {
	inner := newCounting()
	c := NewScanCache(inner, &Config{MaxEntries: 4, TTL: 20 * time.Millisecond})

	c.Scan("p", source)
	time.Sleep(100 * time.Millisecond)
	c.Scan("p", source)

	assert.Equal(t, 2, inner.calls)
}

func TestScanCache_Purge(t *testing.T) {
	inner := newCounting()
	c := NewScanCache(inner, nil)

	c.Scan("p", source)
	c.Purge()
	c.Scan("p", source)

	assert.Equal(t, 2, inner.calls)
}

func TestScanCache_ScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.sp")
	require.NoError(t, os.WriteFile(path, []byte(source), 0644))

	inner := newCounting()
	c := NewScanCache(inner, nil)

	for i := 0; i < 3; i++ {
		md, err := c.ScanFile(context.Background(), "p", path)
		require.NoError(t, err)
		assert.Contains(t, md.Cvars, "sm_a")
	}
	assert.Equal(t, 1, inner.calls)

	_, err := c.ScanFile(context.Background(), "p", filepath.Join(t.TempDir(), "missing.sp"))
	assert.Error(t, err)
}
