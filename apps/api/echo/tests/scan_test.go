package tests

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/services/attendance"
	"github.com/trezcool/garderie/services/location"
	"github.com/trezcool/garderie/services/qrscan"
	"github.com/trezcool/garderie/tests"
)

type scanRig struct {
	sess     *attendance.Session
	platform *locationsvc.FixedPlatform
	frames   *io.PipeWriter
	f        *testutil.Fixture
}

// newScanRig runs a guardian session against the sandbox server over real HTTP.
func newScanRig(t *testing.T) *scanRig {
	app, f := setup(t)
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	clientConf := &core.Config{API: core.APIConfig{BaseURL: srv.URL, Token: getToken(t, f.Marie), Timeout: 5 * time.Second}}
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	rig := &scanRig{
		platform: locationsvc.NewFixedPlatform(testutil.School.CenterLatitude, testutil.School.CenterLongitude, 10),
		frames:   pw,
		f:        f,
	}
	rig.sess = attendance.NewSession(attendance.Deps{
		Client:   attendancesvc.NewClient(clientConf, attendance.LoggerMock{}),
		Platform: rig.platform,
		Scanner:  qrscansvc.NewLineScanner(pr),
		Logger:   attendance.LoggerMock{},
	}, attendance.SessionConfig{})
	require.NoError(t, rig.sess.Load(context.Background()))
	return rig
}

func (r *scanRig) scan(t *testing.T, code string) {
	_, err := r.sess.Locate(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.sess.StartScan())
	_, err = io.WriteString(r.frames, "\n"+code+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.sess.State() != attendance.Scanning }, time.Second, 5*time.Millisecond)
	r.sess.Wait()
}

func TestScan_endToEnd(t *testing.T) {
	r := newScanRig(t)
	assert.Equal(t, "Les Petits Lions", r.sess.Snapshot().SchoolName)

	// both children are eligible: manual selection
	r.scan(t, "IN-1")
	require.Equal(t, attendance.Selecting, r.sess.State(), "err: %v", r.sess.Snapshot().Err)
	require.NoError(t, r.sess.Select(r.f.Bijou.ID))
	require.NoError(t, r.sess.Confirm())
	r.sess.Wait()

	snap := r.sess.Snapshot()
	require.Equal(t, attendance.Success, snap.State, "err: %v", snap.Err)
	assert.False(t, snap.Roster[0].IsCheckedIn)
	assert.True(t, snap.Roster[1].IsCheckedIn)

	// only Amani is left: auto-selected
	r.sess.Reset()
	r.sess.Wait()
	r.scan(t, "IN-1")
	snap = r.sess.Snapshot()
	require.Equal(t, attendance.Success, snap.State, "err: %v", snap.Err)
	assert.Equal(t, []string{r.f.Amani.ID}, snap.Selected)

	// nobody left to check in
	r.sess.Reset()
	r.sess.Wait()
	r.scan(t, "IN-1")
	snap = r.sess.Snapshot()
	assert.Equal(t, attendance.Error, snap.State)
	assert.Equal(t, "all your children are already checked in", snap.Err.Error())
}

func TestScan_refusals(t *testing.T) {
	r := newScanRig(t)

	// out of range
	r.platform.Latitude = testutil.OutsideLat
	_, err := r.sess.Locate(context.Background())
	require.NoError(t, err)
	var gErr *attendance.GeofenceError
	require.True(t, errors.As(r.sess.StartScan(), &gErr))
	assert.Equal(t, attendance.Idle, r.sess.State())

	// expired code
	r.platform.Latitude = testutil.School.CenterLatitude
	r.scan(t, "OLD")
	snap := r.sess.Snapshot()
	assert.Equal(t, attendance.Error, snap.State)
	assert.Equal(t, "this QR code has expired", snap.Err.Error())
}

func TestScan_serverRefusalVerbatim(t *testing.T) {
	r := newScanRig(t)

	// the school moves while the guardian is choosing
	r.scan(t, "IN-1")
	require.Equal(t, attendance.Selecting, r.sess.State())
	settings := testutil.School
	settings.CenterLatitude += 0.01
	_, err := r.f.Svc.UpdateSettings(settings)
	require.NoError(t, err)

	require.NoError(t, r.sess.SelectAll())
	require.NoError(t, r.sess.Confirm())
	r.sess.Wait()

	snap := r.sess.Snapshot()
	assert.Equal(t, attendance.Error, snap.State)
	var sErr *attendance.SubmissionError
	require.True(t, errors.As(snap.Err, &sErr))
	assert.Contains(t, snap.Err.Error(), "You are 1112m away from Les Petits Lions")
}
