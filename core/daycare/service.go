// Package daycare is the server side of QR attendance: it issues codes, keeps each child's
// daily record and re-checks every submission against the school geofence.
package daycare

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/geo"
)

const dayLayout = "2006-01-02"

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = errors.New("not found")
	ErrSettingsMissing = errors.New("school settings are not configured")

	// item messages
	msgChildNotFound     = "child not found"
	msgAlreadyCheckedIn  = "already checked in today"
	msgNotCheckedIn      = "not checked in today"
	msgAlreadyCheckedOut = "already checked out today"
	msgCheckedIn         = "checked in"
	msgCheckedOut        = "checked out"
)

type (
	Repository interface {
		GetSettings() (attendance.SchoolSettings, error)
		SaveSettings(settings attendance.SchoolSettings) error

		CreateGuardian(g Guardian) (Guardian, error)
		GetGuardianByID(id string) (Guardian, error)

		CreateChild(c Child) (Child, error)
		QueryChildrenByGuardian(guardianID string) ([]Child, error)

		CreateCode(c Code) (Code, error)
		GetCode(value string) (Code, error)

		// GetRecord returns the record of childID for day, or ErrNotFound.
		GetRecord(childID, day string) (Record, error)
		SaveRecord(r Record) (Record, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
		loc    *time.Location

		submitMu sync.Mutex // a child's record is read then written
	}
)

// NewService returns a Service keeping days in loc (time.Local if nil).
func NewService(repo Repository, logger core.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, logger: logger, loc: loc}
}

func (svc *Service) today() (time.Time, string) {
	now := NowFunc().In(svc.loc)
	return now, now.Format(dayLayout)
}

func (svc *Service) Settings() (attendance.SchoolSettings, error) {
	settings, err := svc.repo.GetSettings()
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return attendance.SchoolSettings{}, ErrSettingsMissing
		}
		return attendance.SchoolSettings{}, errors.Wrap(err, "getting settings")
	}
	return settings, nil
}

func (svc *Service) UpdateSettings(settings attendance.SchoolSettings) (attendance.SchoolSettings, error) {
	settings.SchoolName = core.CleanString(settings.SchoolName)
	if err := settings.Validate(); err != nil {
		return attendance.SchoolSettings{}, err
	}
	if err := svc.repo.SaveSettings(settings); err != nil {
		return attendance.SchoolSettings{}, errors.Wrap(err, "saving settings")
	}
	return settings, nil
}

func (svc *Service) CreateGuardian(g Guardian) (Guardian, error) {
	g.ID = uuid.New().String()
	g.Name = core.CleanString(g.Name)
	g.Username = core.CleanString(g.Username, true /* lower */)
	g.Email = core.CleanString(g.Email, true /* lower */)
	return svc.repo.CreateGuardian(g)
}

func (svc *Service) GetGuardian(id string) (Guardian, error) {
	return svc.repo.GetGuardianByID(id)
}

func (svc *Service) CreateChild(nc NewChild) (Child, error) {
	if err := nc.Validate(); err != nil {
		return Child{}, err
	}
	for _, gid := range nc.GuardianIDs {
		if _, err := svc.repo.GetGuardianByID(gid); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return Child{}, core.NewValidationError(nil, core.FieldError{Field: "guardianIds", Error: "unknown guardian " + gid})
			}
			return Child{}, errors.Wrap(err, "getting guardian")
		}
	}
	return svc.repo.CreateChild(Child{ID: uuid.New().String(), Name: nc.Name, GuardianIDs: nc.GuardianIDs})
}

func (svc *Service) IssueCode(nc NewCode) (Code, error) {
	if err := nc.Validate(); err != nil {
		return Code{}, err
	}
	code := Code{Value: nc.Value, Action: nc.Action}
	if nc.TTL > 0 {
		code.ExpiresAt = null.TimeFrom(NowFunc().UTC().Add(nc.TTL))
	}
	return svc.repo.CreateCode(code)
}

// ValidateCode tells whether value is a live code and which action it triggers.
func (svc *Service) ValidateCode(value string) (attendance.CodeValidation, error) {
	code, err := svc.repo.GetCode(core.CleanString(value))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return attendance.CodeValidation{Message: "unknown QR code"}, nil
		}
		return attendance.CodeValidation{}, errors.Wrap(err, "getting code")
	}
	if code.Expired(NowFunc()) {
		return attendance.CodeValidation{Message: "this QR code has expired"}, nil
	}
	return attendance.CodeValidation{IsValid: true, Type: code.Action}, nil
}

// ChildrenStatus returns today's status of every child of guardianID.
func (svc *Service) ChildrenStatus(guardianID string) ([]attendance.ChildStatus, error) {
	children, err := svc.repo.QueryChildrenByGuardian(guardianID)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	_, day := svc.today()

	statuses := make([]attendance.ChildStatus, 0, len(children))
	for _, child := range children {
		rec, err := svc.repo.GetRecord(child.ID, day)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return nil, errors.Wrap(err, "getting record")
		}
		statuses = append(statuses, rec.Status(child))
	}
	return statuses, nil
}

func (svc *Service) CheckIn(guardianID string, req attendance.CheckRequest) (attendance.BatchResult, error) {
	return svc.submit(guardianID, attendance.CheckIn, req)
}

func (svc *Service) CheckOut(guardianID string, req attendance.CheckRequest) (attendance.BatchResult, error) {
	return svc.submit(guardianID, attendance.CheckOut, req)
}

// submit re-validates the code and the position, then records each child independently.
// A refused batch is returned with Success false and a nil error.
func (svc *Service) submit(guardianID string, action attendance.ScanAction, req attendance.CheckRequest) (attendance.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.BatchResult{}, err
	}

	val, err := svc.ValidateCode(req.QRCode)
	if err != nil {
		return attendance.BatchResult{}, err
	}
	if !val.IsValid {
		return refused(val.Message), nil
	}
	if val.Type != action {
		return refused(fmt.Sprintf("this QR code is for %s", actionLabel(val.Type))), nil
	}

	settings, err := svc.Settings()
	if err != nil {
		return attendance.BatchResult{}, err
	}
	pos := geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}
	if fence := geo.Evaluate(pos, settings.Geofence()); !fence.WithinRange {
		return refused(fmt.Sprintf(
			"You are %.0fm away from %s. You must be within %.0fm to %s.",
			fence.DistanceMeters, settings.SchoolName, settings.RadiusMeters, actionLabel(action),
		)), nil
	}

	children, err := svc.repo.QueryChildrenByGuardian(guardianID)
	if err != nil {
		return attendance.BatchResult{}, errors.Wrap(err, "querying children")
	}
	byID := make(map[string]Child, len(children))
	for _, c := range children {
		byID[c.ID] = c
	}

	svc.submitMu.Lock()
	defer svc.submitMu.Unlock()

	now, day := svc.today()
	res := attendance.BatchResult{Success: true, Results: make([]attendance.ResultItem, 0, len(req.ChildIDs))}
	var done int
	for _, childID := range req.ChildIDs {
		item := attendance.ResultItem{ChildID: childID}
		child, ok := byID[childID]
		if !ok {
			item.Message = msgChildNotFound
			res.Results = append(res.Results, item)
			continue
		}

		rec, err := svc.repo.GetRecord(child.ID, day)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return attendance.BatchResult{}, errors.Wrap(err, "getting record")
		}
		if action == attendance.CheckIn {
			item.Message, rec = svc.checkIn(rec, child, guardianID, req, now, day)
		} else {
			item.Message, rec = svc.checkOut(rec, guardianID, req, now)
		}
		if item.Message == msgCheckedIn || item.Message == msgCheckedOut {
			if rec, err = svc.repo.SaveRecord(rec); err != nil {
				return attendance.BatchResult{}, errors.Wrap(err, "saving record")
			}
			item.Success = true
			done++
		}
		if rec.ID != "" {
			item.AttendanceRecordID = null.StringFrom(rec.ID)
		}
		res.Results = append(res.Results, item)
	}

	res.Message = fmt.Sprintf("%d of %d children %s", done, len(req.ChildIDs), doneLabel(action))
	svc.logger.Info("attendance batch", core.Person{ID: guardianID}, map[string]interface{}{
		"action":   string(action),
		"children": len(req.ChildIDs),
		"recorded": done,
	})
	return res, nil
}

func (svc *Service) checkIn(rec Record, child Child, guardianID string, req attendance.CheckRequest, now time.Time, day string) (string, Record) {
	if rec.ID != "" {
		return msgAlreadyCheckedIn, rec
	}
	return msgCheckedIn, Record{
		ID:          uuid.New().String(),
		ChildID:     child.ID,
		Day:         day,
		CheckInTime: now.UTC(),
		CheckInBy:   guardianID,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Notes:       req.Notes,
	}
}

func (svc *Service) checkOut(rec Record, guardianID string, req attendance.CheckRequest, now time.Time) (string, Record) {
	switch {
	case rec.ID == "":
		return msgNotCheckedIn, rec
	case rec.CheckOutTime.Valid:
		return msgAlreadyCheckedOut, rec
	}
	rec.CheckOutTime = null.TimeFrom(now.UTC())
	rec.CheckOutBy = null.StringFrom(guardianID)
	if req.Notes.Valid {
		rec.Notes = req.Notes
	}
	return msgCheckedOut, rec
}

func refused(msg string) attendance.BatchResult {
	return attendance.BatchResult{Message: msg, Results: []attendance.ResultItem{}}
}

func actionLabel(a attendance.ScanAction) string {
	if a == attendance.CheckOut {
		return "check out"
	}
	return "check in"
}

func doneLabel(a attendance.ScanAction) string {
	if a == attendance.CheckOut {
		return msgCheckedOut
	}
	return msgCheckedIn
}
