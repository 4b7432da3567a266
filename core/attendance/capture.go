package attendance

import "github.com/pkg/errors"

// ErrCaptureClosed is reported through onDecodeError when the capture source has no more frames.
var ErrCaptureClosed = errors.New("capture source closed")

// Scanner is the camera QR capture capability.
// Once started it keeps decoding frames, calling onDecoded for every readable code and
// onDecodeError for frames without one, until Stop returns.
type Scanner interface {
	Start(onDecoded func(text string), onDecodeError func(err error)) error
	Stop() error
}

// startCapture starts the scanner on behalf of session sid.
// A capture left running by a session that has since been reset is stopped first,
// so the scanner is never started twice.
func (s *Session) startCapture(sid string) error {
	s.camMu.Lock()
	defer s.camMu.Unlock()

	if s.camActive {
		s.stopCameraLocked()
	}
	err := s.deps.Scanner.Start(
		func(text string) { s.onDecoded(sid, text) },
		func(err error) { s.onDecodeError(sid, err) },
	)
	if err != nil {
		return err
	}
	s.camActive = true
	s.camSession = sid
	return nil
}

// stopCapture stops the scanner if it is still capturing for session sid.
func (s *Session) stopCapture(sid string) {
	s.camMu.Lock()
	defer s.camMu.Unlock()

	if !s.camActive || s.camSession != sid {
		return
	}
	s.stopCameraLocked()
}

func (s *Session) stopCameraLocked() {
	if err := s.deps.Scanner.Stop(); err != nil {
		s.deps.Logger.Warn("stopping QR capture", err)
	}
	s.camActive = false
	s.camSession = ""
}

// onDecodeError logs frames without a readable code; they are expected while the camera is aimed.
// ErrCaptureClosed ends the capture: the session goes back to Idle with a *CameraError.
// The scanner is stopped by the next StartScan or Reset, never from its own callback.
func (s *Session) onDecodeError(sid string, err error) {
	if !errors.Is(err, ErrCaptureClosed) {
		s.deps.Logger.Debug("no QR code in frame", map[string]interface{}{"session": sid, "error": err.Error()})
		return
	}

	s.mu.Lock()
	if sid != s.id || s.state != Scanning || !s.capturing {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	s.capturing = false
	s.err = &CameraError{Err: err}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.deps.Logger.Warn("QR capture ended", err)
	s.notify(snap)
}
