package qrscansvc

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/garderie/core/attendance"
)

type frames struct {
	mu      sync.Mutex
	codes   []string
	errs    []error
	decodes chan struct{}
	fails   chan struct{}
}

func newFrames() *frames {
	return &frames{decodes: make(chan struct{}, 16), fails: make(chan struct{}, 16)}
}

func (f *frames) decoded(text string) {
	f.mu.Lock()
	f.codes = append(f.codes, text)
	f.mu.Unlock()
	f.decodes <- struct{}{}
}

func (f *frames) failed(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
	f.fails <- struct{}{}
}

func await(t *testing.T, ch chan struct{}, n int) {
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for frame %d", i+1)
		}
	}
}

func TestLineScanner(t *testing.T) {
	f := newFrames()
	s := NewLineScanner(strings.NewReader("  IN-1 \n\nOUT-1\n"))
	require.NoError(t, s.Start(f.decoded, f.failed))
	await(t, f.decodes, 2)
	await(t, f.fails, 2)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"IN-1", "OUT-1"}, f.codes)
	assert.Equal(t, []error{ErrNoCode, ErrClosed}, f.errs)

	assert.Equal(t, ErrClosed, s.Start(f.decoded, f.failed))
	assert.Equal(t, attendance.ErrCaptureClosed, ErrClosed, "sessions end the capture on it")
}

func TestLineScanner_stopDropsFrames(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	f := newFrames()
	s := NewLineScanner(pr)
	require.NoError(t, s.Start(f.decoded, f.failed))
	assert.Error(t, s.Start(f.decoded, f.failed))

	_, _ = io.WriteString(pw, "IN-1\n")
	await(t, f.decodes, 1)
	require.NoError(t, s.Stop())
	assert.Equal(t, ErrNotStarted, s.Stop())

	// the blank line is only read once LATE has been handled, while stopped
	_, _ = io.WriteString(pw, "LATE\n")
	_, _ = io.WriteString(pw, "\n")

	g := newFrames()
	require.NoError(t, s.Start(g.decoded, g.failed))
	_, _ = io.WriteString(pw, "OUT-1\n")
	await(t, g.decodes, 1)

	f.mu.Lock()
	assert.Equal(t, []string{"IN-1"}, f.codes)
	f.mu.Unlock()
	g.mu.Lock()
	assert.Equal(t, []string{"OUT-1"}, g.codes)
	g.mu.Unlock()
}
