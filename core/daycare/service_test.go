package daycare_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
	"github.com/trezcool/garderie/tests"
)

func TestService_ValidateCode(t *testing.T) {
	f := testutil.NewFixture(t)

	tests := []struct {
		code string
		want attendance.CodeValidation
	}{
		{code: "IN-1", want: attendance.CodeValidation{IsValid: true, Type: attendance.CheckIn}},
		{code: " OUT-1 ", want: attendance.CodeValidation{IsValid: true, Type: attendance.CheckOut}},
		{code: "OLD", want: attendance.CodeValidation{Message: "this QR code has expired"}},
		{code: "nope", want: attendance.CodeValidation{Message: "unknown QR code"}},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := f.Svc.ValidateCode(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_IssueCode(t *testing.T) {
	f := testutil.NewFixture(t)

	now := time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC)
	daycare.NowFunc = func() time.Time { return now }
	defer func() { daycare.NowFunc = time.Now }()

	code := testutil.IssueCode(t, f.Svc, "MORNING", attendance.CheckIn, time.Hour)
	assert.Equal(t, now.Add(time.Hour), code.ExpiresAt.Time)
	assert.False(t, code.Expired(now))
	assert.True(t, code.Expired(now.Add(time.Hour)))

	_, err := f.Svc.IssueCode(daycare.NewCode{Value: "BAD", Action: "Lunch"})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = f.Svc.IssueCode(daycare.NewCode{Value: "IN-1", Action: attendance.CheckIn})
	assert.Error(t, err, "duplicate code")
}

func TestService_CreateChild(t *testing.T) {
	f := testutil.NewFixture(t)

	_, err := f.Svc.CreateChild(daycare.NewChild{Name: "Dina", GuardianIDs: []string{"ghost"}})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "guardianIds", vErr.Fields[0].Field)

	_, err = f.Svc.CreateChild(daycare.NewChild{Name: "  ", GuardianIDs: []string{f.Marie.ID}})
	assert.True(t, errors.As(err, &vErr))

	shared := testutil.CreateChild(t, f.Svc, "Dina", f.Marie.ID, f.Paul.ID)
	for _, g := range []daycare.Guardian{f.Marie, f.Paul} {
		statuses, err := f.Svc.ChildrenStatus(g.ID)
		require.NoError(t, err)
		assert.Equal(t, shared.ID, statuses[len(statuses)-1].ChildID)
	}
}

func TestService_CheckInCheckOut(t *testing.T) {
	f := testutil.NewFixture(t)

	statuses, err := f.Svc.ChildrenStatus(f.Marie.ID)
	require.NoError(t, err)
	assert.Equal(t, []attendance.ChildStatus{
		{ChildID: f.Amani.ID, Name: "Amani"},
		{ChildID: f.Bijou.ID, Name: "Bijou"},
	}, statuses)

	// check in Amani only
	res, err := f.Svc.CheckIn(f.Marie.ID, testutil.Request("IN-1", f.Amani.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "1 of 1 children checked in", res.Message)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success)
	recID := res.Results[0].AttendanceRecordID
	assert.True(t, recID.Valid)

	// both: Amani is refused, Bijou goes through
	res, err = f.Svc.CheckIn(f.Marie.ID, testutil.Request("IN-1", f.Amani.ID, f.Bijou.ID, f.Chance.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []attendance.ResultItem{
		{ChildID: f.Amani.ID, Message: "already checked in today", AttendanceRecordID: recID},
		res.Results[1],
		{ChildID: f.Chance.ID, Message: "child not found"},
	}, res.Results)
	assert.True(t, res.Results[1].Success)

	statuses, err = f.Svc.ChildrenStatus(f.Marie.ID)
	require.NoError(t, err)
	for _, st := range statuses {
		assert.True(t, st.IsCheckedIn, st.Name)
		assert.False(t, st.IsCheckedOut, st.Name)
		assert.True(t, st.CheckInTime.Valid, st.Name)
	}

	// check out
	req := testutil.Request("OUT-1", f.Amani.ID)
	req.Notes.SetValid("picked up by grandma")
	res, err = f.Svc.CheckOut(f.Marie.ID, req)
	require.NoError(t, err)
	assert.True(t, res.Results[0].Success)
	assert.Equal(t, recID, res.Results[0].AttendanceRecordID)

	res, err = f.Svc.CheckOut(f.Marie.ID, testutil.Request("OUT-1", f.Amani.ID))
	require.NoError(t, err)
	assert.Equal(t, "already checked out today", res.Results[0].Message)
	assert.Equal(t, "0 of 1 children checked out", res.Message)

	statuses, err = f.Svc.ChildrenStatus(f.Marie.ID)
	require.NoError(t, err)
	assert.True(t, statuses[0].IsCheckedOut)
	assert.False(t, statuses[1].IsCheckedOut)

	// Paul's child was never checked in
	res, err = f.Svc.CheckOut(f.Paul.ID, testutil.Request("OUT-1", f.Chance.ID))
	require.NoError(t, err)
	assert.Equal(t, "not checked in today", res.Results[0].Message)
}

func TestService_submitRefusals(t *testing.T) {
	f := testutil.NewFixture(t)

	outside := testutil.Request("IN-1", f.Amani.ID)
	outside.Latitude = testutil.OutsideLat

	tests := []struct {
		name    string
		action  attendance.ScanAction
		req     attendance.CheckRequest
		wantMsg string
	}{
		{name: "expired code", action: attendance.CheckIn, req: testutil.Request("OLD", f.Amani.ID), wantMsg: "this QR code has expired"},
		{name: "unknown code", action: attendance.CheckIn, req: testutil.Request("X", f.Amani.ID), wantMsg: "unknown QR code"},
		{name: "wrong endpoint", action: attendance.CheckOut, req: testutil.Request("IN-1", f.Amani.ID), wantMsg: "this QR code is for check in"},
		{name: "outside geofence", action: attendance.CheckIn, req: outside, wantMsg: "You are 250m away from Les Petits Lions. You must be within 100m to check in."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res attendance.BatchResult
			var err error
			if tt.action == attendance.CheckIn {
				res, err = f.Svc.CheckIn(f.Marie.ID, tt.req)
			} else {
				res, err = f.Svc.CheckOut(f.Marie.ID, tt.req)
			}
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Empty(t, res.Results)
		})
	}

	statuses, err := f.Svc.ChildrenStatus(f.Marie.ID)
	require.NoError(t, err)
	assert.False(t, statuses[0].IsCheckedIn)
}

func TestService_submitInvalidRequest(t *testing.T) {
	f := testutil.NewFixture(t)

	_, err := f.Svc.CheckIn(f.Marie.ID, testutil.Request("IN-1"))
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "childIds", vErr.Fields[0].Field)
}

func TestService_geofenceDisabled(t *testing.T) {
	f := testutil.NewFixture(t)
	settings := testutil.School
	settings.GeofenceEnabled = false
	_, err := f.Svc.UpdateSettings(settings)
	require.NoError(t, err)

	req := testutil.Request("IN-1", f.Amani.ID)
	req.Latitude, req.Longitude = 48.8566, 2.3522
	res, err := f.Svc.CheckIn(f.Marie.ID, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Results[0].Success)
}

func TestService_newDay(t *testing.T) {
	f := testutil.NewFixture(t)

	day1 := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	daycare.NowFunc = func() time.Time { return day1 }
	defer func() { daycare.NowFunc = time.Now }()

	_, err := f.Svc.CheckIn(f.Marie.ID, testutil.Request("IN-1", f.Amani.ID))
	require.NoError(t, err)

	daycare.NowFunc = func() time.Time { return day1.Add(24 * time.Hour) }
	statuses, err := f.Svc.ChildrenStatus(f.Marie.ID)
	require.NoError(t, err)
	assert.False(t, statuses[0].IsCheckedIn)
}

func TestService_Settings(t *testing.T) {
	f := testutil.NewFixture(t)
	f.DB.Reset()

	_, err := f.Svc.Settings()
	assert.Equal(t, daycare.ErrSettingsMissing, err)

	_, err = f.Svc.UpdateSettings(attendance.SchoolSettings{CenterLatitude: 100})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
