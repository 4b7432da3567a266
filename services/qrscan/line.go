package qrscansvc

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core/attendance"
)

var (
	ErrNoCode     = errors.New("no QR code in frame")
	ErrClosed     = attendance.ErrCaptureClosed
	ErrNotStarted = errors.New("capture not started")
)

// LineScanner treats every line of a reader as one camera frame: the trimmed line is the
// decoded text and blank lines are frames without a code. Handheld USB scanners and piped
// input both fit this shape.
//
// The reader is consumed by a single goroutine for the scanner's lifetime; lines read while
// the capture is stopped are dropped.
type LineScanner struct {
	src  io.Reader
	once sync.Once

	mu        sync.Mutex
	active    bool
	closed    bool
	onDecoded func(string)
	onError   func(error)
}

var _ attendance.Scanner = (*LineScanner)(nil)

func NewLineScanner(src io.Reader) *LineScanner {
	return &LineScanner{src: src}
}

func (s *LineScanner) Start(onDecoded func(text string), onDecodeError func(err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.active {
		return errors.New("capture already started")
	}
	s.active = true
	s.onDecoded = onDecoded
	s.onError = onDecodeError
	s.once.Do(func() { go s.read() })
	return nil
}

// Stop returns once no callback is running; none is called afterwards until the next Start.
func (s *LineScanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNotStarted
	}
	s.active = false
	s.onDecoded = nil
	s.onError = nil
	return nil
}

func (s *LineScanner) read() {
	sc := bufio.NewScanner(s.src)
	for sc.Scan() {
		s.frame(strings.TrimSpace(sc.Text()))
	}
	err := sc.Err()
	if err == nil {
		err = ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.active && s.onError != nil {
		s.onError(err)
	}
}

func (s *LineScanner) frame(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	if text == "" {
		if s.onError != nil {
			s.onError(ErrNoCode)
		}
		return
	}
	if s.onDecoded != nil {
		s.onDecoded(text)
	}
}
