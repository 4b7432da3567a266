package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/garderie/core/location"
)

// ClientMock is an in-memory Client. Submissions update its roster the way the
// server would; every behaviour can be overridden with the *Func fields.
type ClientMock struct {
	mu       sync.Mutex
	Settings SchoolSettings
	Roster   []ChildStatus
	Codes    map[string]ScanAction // valid codes; anything else is rejected

	ValidateFunc func(ctx context.Context, code string) (CodeValidation, error)
	SubmitFunc   func(ctx context.Context, action ScanAction, req CheckRequest) (BatchResult, error)
	RosterErr    error

	calls    map[string]int
	Requests []CheckRequest
}

var _ Client = (*ClientMock)(nil)

func (c *ClientMock) count(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[op]++
}

// Calls returns how many times op ("validate", "checkIn", "checkOut", "status", "settings") was called.
func (c *ClientMock) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *ClientMock) ValidateCode(ctx context.Context, code string) (CodeValidation, error) {
	c.count("validate")
	if c.ValidateFunc != nil {
		return c.ValidateFunc(ctx, code)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if action, ok := c.Codes[code]; ok {
		return CodeValidation{IsValid: true, Type: action}, nil
	}
	return CodeValidation{Message: "unknown QR code"}, nil
}

func (c *ClientMock) CheckIn(ctx context.Context, req CheckRequest) (BatchResult, error) {
	c.count("checkIn")
	return c.submit(ctx, CheckIn, req)
}

func (c *ClientMock) CheckOut(ctx context.Context, req CheckRequest) (BatchResult, error) {
	c.count("checkOut")
	return c.submit(ctx, CheckOut, req)
}

func (c *ClientMock) submit(ctx context.Context, action ScanAction, req CheckRequest) (BatchResult, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	c.mu.Unlock()
	if c.SubmitFunc != nil {
		return c.SubmitFunc(ctx, action, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res := BatchResult{Success: true, Message: "ok"}
	now := time.Now().UTC()
	for _, id := range req.ChildIDs {
		item := ResultItem{ChildID: id, Message: "child not found"}
		for i := range c.Roster {
			child := &c.Roster[i]
			if child.ChildID != id {
				continue
			}
			if !IsEligible(action, *child) {
				item.Message = "not eligible"
				break
			}
			if action == CheckIn {
				child.IsCheckedIn = true
				child.CheckInTime = null.TimeFrom(now)
				child.AttendanceRecordID = null.StringFrom("rec-" + id)
			} else {
				child.IsCheckedOut = true
				child.CheckOutTime = null.TimeFrom(now)
			}
			item = ResultItem{ChildID: id, Success: true, Message: "ok", AttendanceRecordID: child.AttendanceRecordID}
			break
		}
		res.Results = append(res.Results, item)
	}
	return res, nil
}

func (c *ClientMock) MyChildrenStatus(context.Context) ([]ChildStatus, error) {
	c.count("status")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RosterErr != nil {
		return nil, c.RosterErr
	}
	return append([]ChildStatus(nil), c.Roster...), nil
}

func (c *ClientMock) SchoolSettings(context.Context) (SchoolSettings, error) {
	c.count("settings")
	return c.Settings, nil
}

// ScannerMock records the capture lifecycle and lets tests emit decoded frames.
type ScannerMock struct {
	mu           sync.Mutex
	StartErr     error
	active       bool
	onDecoded    func(string)
	onError      func(error)
	starts       int
	stops        int
	doubleStarts int
}

var _ Scanner = (*ScannerMock)(nil)

func (s *ScannerMock) Start(onDecoded func(string), onDecodeError func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	if s.active {
		s.doubleStarts++
	}
	s.active = true
	s.starts++
	s.onDecoded = onDecoded
	s.onError = onDecodeError
	return nil
}

func (s *ScannerMock) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.stops++
	return nil
}

// Emit delivers text to the last registered callback, even after Stop, like a late frame would.
func (s *ScannerMock) Emit(text string) {
	s.mu.Lock()
	fn := s.onDecoded
	s.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (s *ScannerMock) EmitError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *ScannerMock) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Counts returns the number of Start calls, Stop calls and Start calls made while already active.
func (s *ScannerMock) Counts() (starts, stops, doubleStarts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops, s.doubleStarts
}

// PlatformMock answers every query with Position (stamped at query time) or Err.
type PlatformMock struct {
	mu       sync.Mutex
	Position location.Position
	Err      error
}

var _ location.Platform = (*PlatformMock)(nil)

func (p *PlatformMock) Supported() bool { return true }

func (p *PlatformMock) CurrentPosition(context.Context, location.Options) (location.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return location.Position{}, p.Err
	}
	pos := p.Position
	pos.Timestamp = time.Now()
	return pos, nil
}

func (p *PlatformMock) MoveTo(lat, lon float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Position.Latitude = lat
	p.Position.Longitude = lon
}

// LoggerMock discards everything.
type LoggerMock struct{}

func (LoggerMock) Debug(string, ...interface{}) {}
func (LoggerMock) Info(string, ...interface{})  {}
func (LoggerMock) Warn(string, ...interface{})  {}
func (LoggerMock) Error(string, ...interface{}) {}
func (LoggerMock) Fatal(msg string, _ ...interface{}) {
	panic(errors.New(msg))
}
