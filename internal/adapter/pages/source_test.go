package pages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehaunt/internal/domain"
	"telehaunt/internal/infra/clock"
)

const testPages = `pages:
  - number: 300
    title: SPORT
    body: "Results after midnight"
  - number: 100
    title: INDEX
    body: |
      Start here
  - number: 150
    body: "No title"
`

func newLoaded(t *testing.T, latency time.Duration) (*Source, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Time{})
	src := NewSource(clk, latency, nil)
	require.NoError(t, src.Load([]byte(testPages), "test"))
	return src, clk
}

func TestLoadEmbedded(t *testing.T) {
	src := NewSource(clock.NewSystem(), 0, nil)
	require.NoError(t, src.LoadEmbedded())

	assert.Equal(t, "embedded", src.Origin())
	assert.Contains(t, src.Numbers(), 100)
	assert.Contains(t, src.Numbers(), 500)

	p, err := src.Fetch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "TELEHAUNT INDEX", p.Title)
}

func TestLoadSortsNumbers(t *testing.T) {
	src, _ := newLoaded(t, 0)
	assert.Equal(t, []int{100, 150, 300}, src.Numbers())
	assert.Equal(t, 3, src.Len())
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"invalid yaml", "pages: [", "parse pages"},
		{"empty", "pages: []", "no pages"},
		{"number too low", "pages:\n  - number: 99\n", "outside"},
		{"number too high", "pages:\n  - number: 900\n", "outside"},
		{"duplicate", "pages:\n  - number: 101\n  - number: 101\n", "duplicate page 101"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := newLoaded(t, 0)
			err := src.Load([]byte(tt.doc), "bad")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 3, src.Len(), "previous pages stay loaded")
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPages), 0o600))

	src := NewSource(clock.NewSystem(), 0, nil)
	require.NoError(t, src.LoadFile(path))
	assert.Equal(t, path, src.Origin())
	assert.Equal(t, 3, src.Len())
}

func TestLoadFileErrors(t *testing.T) {
	src := NewSource(clock.NewSystem(), 0, nil)

	err := src.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat pages file")

	big := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("#", maxPagesFileSize+1)), 0o600))
	err = src.LoadFile(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestFetchNotFound(t *testing.T) {
	src, _ := newLoaded(t, 0)

	_, err := src.Fetch(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.CodePageNotFound, domain.ErrorCodeOf(err))
}

func TestFetchWaitsForLatency(t *testing.T) {
	src, clk := newLoaded(t, 150*time.Millisecond)

	type result struct {
		page Page
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := src.Fetch(context.Background(), 300)
		done <- result{p, err}
	}()

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	clk.Advance(149 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("fetch returned before its latency")
	default:
	}

	clk.Advance(time.Millisecond)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "SPORT", r.page.Title)
	case <-time.After(time.Second):
		t.Fatal("fetch did not return")
	}
}

func TestFetchObservesCancellation(t *testing.T) {
	src, clk := newLoaded(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := src.Fetch(ctx, 100)
		done <- err
	}()

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
		assert.ErrorIs(t, err, domain.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("fetch ignored cancellation")
	}
	assert.Eventually(t, func() bool { return clk.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestFetchAlreadyCancelled(t *testing.T) {
	src, clk := newLoaded(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, clk.Pending())
}

func TestNextPrev(t *testing.T) {
	src, _ := newLoaded(t, 0)

	assert.Equal(t, 150, src.Next(100))
	assert.Equal(t, 300, src.Next(150))
	assert.Equal(t, 100, src.Next(300), "wraps")
	assert.Equal(t, 300, src.Next(200), "unknown page goes to the next loaded one")

	assert.Equal(t, 100, src.Prev(150))
	assert.Equal(t, 300, src.Prev(100), "wraps")
	assert.Equal(t, 150, src.Prev(200))
	assert.Equal(t, 300, src.Prev(899))

	empty := NewSource(clock.NewSystem(), 0, nil)
	assert.Equal(t, 123, empty.Next(123))
	assert.Equal(t, 123, empty.Prev(123))
}

func TestPageText(t *testing.T) {
	p := Page{Number: 101, Title: "NEWS", Body: "Line one\nLine two\n"}
	assert.Equal(t, "P101 NEWS\n\nLine one\nLine two", p.Text())
	assert.Equal(t, "bare", Page{Number: 102, Body: "bare\n"}.Text())
}
