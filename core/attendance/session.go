package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/geo"
	"github.com/trezcool/garderie/core/location"
)

// State of a scan session.
type State int

const (
	Idle State = iota
	Scanning
	Validating
	Selecting
	Processing
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Validating:
		return "validating"
	case Selecting:
		return "selecting"
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether only Reset can leave s.
func (s State) IsTerminal() bool { return s == Success || s == Error }

const (
	opLocate   = "locate"
	opValidate = "validate"
	opSubmit   = "submit"
	opRoster   = "roster"

	defaultRequestTimeout = 15 * time.Second
)

var (
	nowFunc = time.Now // mockable

	ErrNotLoaded    = errors.New("school settings are not loaded")
	ErrStaleSession = errors.New("the scan session was reset")
)

type (
	Deps struct {
		Client   Client
		Platform location.Platform
		Scanner  Scanner
		Logger   core.Logger
	}

	SessionConfig struct {
		Location       location.Options
		PositionTTL    time.Duration // 0: positions never expire within a session
		RequestTimeout time.Duration
		Notes          string         // attached to every submission
		OnChange       func(Snapshot) // called after every observable change, never under the session lock
	}

	// Snapshot is a copy of the session as the UI should render it.
	Snapshot struct {
		SessionID  string
		State      State
		SchoolName string
		Position   *location.Position
		Fence      *geo.Result // evaluation of Position against the school geofence
		Code       string
		Action     ScanAction
		Eligible   []ChildStatus
		Selected   []string
		Result     *BatchResult
		Err        error
		Roster     []ChildStatus
	}

	// Session drives geofenced QR check-in/out for one guardian device.
	// Every asynchronous result is tagged with the id of the session that issued it
	// and dropped if that session has been reset in the meantime.
	Session struct {
		deps Deps
		conf SessionConfig

		mu       sync.Mutex
		id       string
		state    State
		settings SchoolSettings
		loaded   bool
		roster   []ChildStatus
		pending  map[string]bool // in-flight call types of the active session

		// session scoped
		pos       *location.Position
		capturing bool
		code      string
		action    ScanAction
		eligible  []ChildStatus
		selected  map[string]bool
		result    *BatchResult
		err       error

		camMu      sync.Mutex
		camActive  bool
		camSession string

		inflight sync.WaitGroup
	}
)

func NewSession(deps Deps, conf SessionConfig) *Session {
	if conf.RequestTimeout <= 0 {
		conf.RequestTimeout = defaultRequestTimeout
	}
	if conf.Location.Timeout <= 0 {
		conf.Location = location.DefaultOptions()
	}
	return &Session{
		deps:     deps,
		conf:     conf,
		id:       uuid.New().String(),
		pending:  make(map[string]bool),
		selected: make(map[string]bool),
	}
}

// Load fetches the school settings and the roster.
func (s *Session) Load(ctx context.Context) error {
	settings, err := s.deps.Client.SchoolSettings(ctx)
	if err != nil {
		return &RequestError{Op: "loading school settings", Err: err}
	}
	if err = settings.Validate(); err != nil {
		return errors.Wrap(err, "validating school settings")
	}
	roster, err := s.deps.Client.MyChildrenStatus(ctx)
	if err != nil {
		return &RequestError{Op: "loading children", Err: err}
	}

	s.mu.Lock()
	s.settings = settings
	s.loaded = true
	s.roster = roster
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.deps.Logger.Info("school settings loaded", map[string]interface{}{
		"school":   settings.SchoolName,
		"geofence": settings.GeofenceEnabled,
		"children": len(roster),
	})
	s.notify(snap)
	return nil
}

// Locate acquires the device position for the active session.
// It is allowed while Idle, and while Selecting to refresh an expired position.
func (s *Session) Locate(ctx context.Context) (location.Position, error) {
	s.mu.Lock()
	if (s.state != Idle && s.state != Selecting) || s.pending[opLocate] {
		s.mu.Unlock()
		return location.Position{}, ErrInvalidState
	}
	sid := s.id
	s.pending[opLocate] = true
	s.mu.Unlock()

	pos, err := location.Acquire(ctx, s.deps.Platform, s.conf.Location)

	s.mu.Lock()
	if sid != s.id {
		s.mu.Unlock()
		s.deps.Logger.Debug("discarding position of a reset session", map[string]interface{}{"session": sid})
		return location.Position{}, ErrStaleSession
	}
	delete(s.pending, opLocate)
	if err != nil {
		s.pos = nil
		if s.state == Idle {
			s.err = err
		}
	} else {
		s.pos = &pos
		if s.state == Idle {
			s.err = nil
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return pos, err
}

// LocationLost drops the held position, eg. when the platform revokes access.
func (s *Session) LocationLost() {
	s.mu.Lock()
	s.pos = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// StartScan moves from Idle to Scanning if the device holds a fresh position inside the
// school geofence, and starts the camera. Refusals leave the session Idle.
func (s *Session) StartScan() error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if err := s.checkPositionLocked(); err != nil {
		s.err = err
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return err
	}
	if res := geo.Evaluate(s.pos.Point(), s.settings.Geofence()); !res.WithinRange {
		err := &GeofenceError{Distance: res.DistanceMeters, Radius: s.settings.RadiusMeters}
		s.err = err
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return err
	}
	sid := s.id
	s.state = Scanning
	s.capturing = true
	s.err = nil
	s.mu.Unlock()

	if err := s.startCapture(sid); err != nil {
		camErr := &CameraError{Err: err}
		s.mu.Lock()
		if sid == s.id && s.state == Scanning {
			s.state = Idle
			s.capturing = false
			s.err = camErr
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.deps.Logger.Warn("starting QR capture", err)
		s.notify(snap)
		return camErr
	}

	s.mu.Lock()
	if sid != s.id {
		// reset while the camera was starting
		s.mu.Unlock()
		s.stopCapture(sid)
		return ErrStaleSession
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.deps.Logger.Debug("QR capture started", map[string]interface{}{"session": sid})
	s.notify(snap)
	return nil
}

// onDecoded handles a decoded frame. Only the first one of a session counts.
func (s *Session) onDecoded(sid, text string) {
	s.mu.Lock()
	if sid != s.id || s.state != Scanning || !s.capturing {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	s.state = Validating
	s.code = text
	s.pending[opValidate] = true
	s.inflight.Add(1)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	go s.validate(sid, text)
}

func (s *Session) validate(sid, code string) {
	defer s.inflight.Done()

	// no validation while the camera is still capturing
	s.stopCapture(sid)
	if !s.isActive(sid) {
		return
	}

	ctx, cancel := s.requestContext()
	val, err := s.deps.Client.ValidateCode(ctx, code)
	cancel()

	s.mu.Lock()
	if sid != s.id {
		s.mu.Unlock()
		s.deps.Logger.Debug("discarding validation of a reset session", map[string]interface{}{"session": sid})
		return
	}
	delete(s.pending, opValidate)

	switch {
	case err != nil:
		s.failLocked(&RequestError{Op: "validating code", Err: err})
	case !val.IsValid || !val.Type.IsValid():
		s.failLocked(&InvalidCodeError{Reason: val.Message})
	default:
		s.action = val.Type
		s.eligible = EligibleFor(val.Type, s.roster)
		switch len(s.eligible) {
		case 0:
			s.failLocked(&NoEligibleChildrenError{Action: val.Type})
		case 1:
			// a single eligible child needs no manual selection
			s.selected = map[string]bool{s.eligible[0].ChildID: true}
			_ = s.submitLocked()
		default:
			s.state = Selecting
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Toggle flips the selection of an eligible child.
func (s *Session) Toggle(childID string) error {
	return s.updateSelection(func() error {
		if !s.isEligibleLocked(childID) {
			return ErrUnknownChild
		}
		if s.selected[childID] {
			delete(s.selected, childID)
		} else {
			s.selected[childID] = true
		}
		return nil
	})
}

func (s *Session) Select(childID string) error {
	return s.updateSelection(func() error {
		if !s.isEligibleLocked(childID) {
			return ErrUnknownChild
		}
		s.selected[childID] = true
		return nil
	})
}

func (s *Session) Deselect(childID string) error {
	return s.updateSelection(func() error {
		delete(s.selected, childID)
		return nil
	})
}

// SelectAll selects every eligible child.
func (s *Session) SelectAll() error {
	return s.updateSelection(func() error {
		for _, child := range s.eligible {
			s.selected[child.ChildID] = true
		}
		return nil
	})
}

func (s *Session) updateSelection(fn func() error) error {
	s.mu.Lock()
	if s.state != Selecting {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// Confirm submits the selected children.
func (s *Session) Confirm() error {
	s.mu.Lock()
	if s.state != Selecting {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if len(s.selected) == 0 {
		s.mu.Unlock()
		return ErrEmptySelection
	}
	err := s.submitLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

// submitLocked moves to Processing and issues the batch call, or fails the session
// when the position is gone.
func (s *Session) submitLocked() error {
	if err := s.checkPositionLocked(); err != nil {
		s.failLocked(err)
		return err
	}
	req := CheckRequest{
		QRCode:    s.code,
		ChildIDs:  s.selectedIDsLocked(),
		Latitude:  s.pos.Latitude,
		Longitude: s.pos.Longitude,
	}
	if s.conf.Notes != "" {
		req.Notes.SetValid(s.conf.Notes)
	}
	if err := req.Validate(); err != nil {
		subErr := &SubmissionError{Err: err}
		s.failLocked(subErr)
		return subErr
	}
	if s.pending[opSubmit] {
		return ErrInvalidState
	}

	sid := s.id
	s.state = Processing
	s.pending[opSubmit] = true
	s.inflight.Add(1)
	go s.submit(sid, s.action, req)
	return nil
}

func (s *Session) submit(sid string, action ScanAction, req CheckRequest) {
	defer s.inflight.Done()

	ctx, cancel := s.requestContext()
	res, err := Submit(ctx, s.deps.Client, action, req)
	cancel()

	s.mu.Lock()
	if sid != s.id {
		s.mu.Unlock()
		s.deps.Logger.Debug("discarding submission of a reset session", map[string]interface{}{"session": sid})
		return
	}
	delete(s.pending, opSubmit)

	refresh := false
	switch {
	case err != nil:
		s.failLocked(&SubmissionError{Message: serverMessage(err), Err: err})
	case !res.Success:
		s.failLocked(&SubmissionError{Message: res.Message})
	default:
		s.state = Success
		s.result = &res
		refresh = true
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if refresh {
		s.deps.Logger.Info("attendance recorded", map[string]interface{}{
			"action":   string(action),
			"children": len(req.ChildIDs),
			"failed":   len(res.Failed()),
		})
		s.refreshRoster(sid)
	}
}

// Reset cancels the active session: capture is stopped before Reset returns, session
// fields are cleared and the roster is fetched again. In-flight requests are left to
// finish and their results discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	oldID := s.id
	s.id = uuid.New().String()
	s.state = Idle
	s.pending = make(map[string]bool)
	s.pos = nil
	s.capturing = false
	s.code = ""
	s.action = ""
	s.eligible = nil
	s.selected = make(map[string]bool)
	s.result = nil
	s.err = nil
	sid := s.id
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.stopCapture(oldID)
	s.notify(snap)
	s.refreshRoster(sid)
}

// refreshRoster fetches the roster in the background for session sid.
func (s *Session) refreshRoster(sid string) {
	s.mu.Lock()
	if sid != s.id || s.pending[opRoster] {
		s.mu.Unlock()
		return
	}
	s.pending[opRoster] = true
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()

		ctx, cancel := s.requestContext()
		roster, err := s.deps.Client.MyChildrenStatus(ctx)
		cancel()

		s.mu.Lock()
		if sid != s.id {
			s.mu.Unlock()
			return
		}
		delete(s.pending, opRoster)
		if err != nil {
			s.mu.Unlock()
			s.deps.Logger.Warn("refreshing children status", errors.Wrap(err, "refreshing roster"))
			return
		}
		s.roster = roster
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
	}()
}

// Wait blocks until every request issued by the session machinery has completed.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedIDsLocked()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) isActive(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sid == s.id
}

func (s *Session) failLocked(err error) {
	s.state = Error
	s.err = err
	s.deps.Logger.Info("scan session failed", map[string]interface{}{"session": s.id, "error": err.Error()})
}

func (s *Session) checkPositionLocked() error {
	if s.pos == nil || s.pos.Expired(s.conf.PositionTTL, nowFunc()) {
		return ErrLocationRequired
	}
	return nil
}

func (s *Session) isEligibleLocked(childID string) bool {
	for _, child := range s.eligible {
		if child.ChildID == childID {
			return true
		}
	}
	return false
}

// selectedIDsLocked returns the selection in eligible (roster) order.
func (s *Session) selectedIDsLocked() []string {
	ids := make([]string, 0, len(s.selected))
	for _, child := range s.eligible {
		if s.selected[child.ChildID] {
			ids = append(ids, child.ChildID)
		}
	}
	return ids
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		State:      s.state,
		SchoolName: s.settings.SchoolName,
		Code:       s.code,
		Action:     s.action,
		Eligible:   append([]ChildStatus(nil), s.eligible...),
		Selected:   s.selectedIDsLocked(),
		Err:        s.err,
		Roster:     append([]ChildStatus(nil), s.roster...),
	}
	if s.pos != nil {
		pos := *s.pos
		snap.Position = &pos
		if s.loaded {
			res := geo.Evaluate(pos.Point(), s.settings.Geofence())
			snap.Fence = &res
		}
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	return snap
}

func (s *Session) notify(snap Snapshot) {
	if s.conf.OnChange != nil {
		s.conf.OnChange(snap)
	}
}

// requestContext bounds a fire-and-forget request. It is not tied to the session:
// a reset does not cancel requests already issued.
func (s *Session) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.conf.RequestTimeout)
}

// serverMessage extracts a message the server sent along with a failure, if any.
func serverMessage(err error) string {
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) {
		return sm.ServerMessage()
	}
	return ""
}
