package testutil

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
	"github.com/trezcool/garderie/storage/database/inmem"
)

// School sits in Kinshasa; OutsideLat is 250m north of it.
var (
	School = attendance.SchoolSettings{
		SchoolName:      "Les Petits Lions",
		CenterLatitude:  -4.3217,
		CenterLongitude: 15.3125,
		RadiusMeters:    100,
		GeofenceEnabled: true,
	}
	OutsideLat = School.CenterLatitude + 250/111194.93
)

// Fixture is a seeded daycare: Marie has Amani and Bijou, Paul has Chance.
// IN-1 and OUT-1 are live codes, OLD is an expired check-in code.
type Fixture struct {
	DB    *inmemdb.DB
	Repo  daycare.Repository
	Svc   *daycare.Service
	Marie daycare.Guardian
	Paul  daycare.Guardian

	Amani  daycare.Child
	Bijou  daycare.Child
	Chance daycare.Child
}

func NewFixture(t *testing.T) *Fixture {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return seed(t, db)
}

// NewFileFixture seeds a DB persisted to path.
func NewFileFixture(t *testing.T, path string) *Fixture {
	db, err := inmemdb.OpenFile(path)
	if err != nil {
		t.Fatalf("inmemdb.OpenFile() failed: %v", err)
	}
	return seed(t, db)
}

func seed(t *testing.T, db *inmemdb.DB) *Fixture {
	var err error
	f := &Fixture{DB: db, Repo: inmemdb.NewDaycareRepository(db)}
	f.Svc = daycare.NewService(f.Repo, attendance.LoggerMock{}, time.UTC)

	if _, err = f.Svc.UpdateSettings(School); err != nil {
		t.Fatalf("UpdateSettings() failed: %v", err)
	}
	f.Marie = CreateGuardian(t, f.Svc, "Marie Kabila", "marie")
	f.Paul = CreateGuardian(t, f.Svc, "Paul Mbemba", "paul")
	f.Amani = CreateChild(t, f.Svc, "Amani", f.Marie.ID)
	f.Bijou = CreateChild(t, f.Svc, "Bijou", f.Marie.ID)
	f.Chance = CreateChild(t, f.Svc, "Chance", f.Paul.ID)

	IssueCode(t, f.Svc, "IN-1", attendance.CheckIn)
	IssueCode(t, f.Svc, "OUT-1", attendance.CheckOut)
	if _, err = f.Repo.CreateCode(daycare.Code{
		Value:     "OLD",
		Action:    attendance.CheckIn,
		ExpiresAt: null.TimeFrom(time.Now().Add(-time.Hour)),
	}); err != nil {
		t.Fatalf("CreateCode() failed: %v", err)
	}
	return f
}

func CreateGuardian(t *testing.T, svc *daycare.Service, name, username string) daycare.Guardian {
	g, err := svc.CreateGuardian(daycare.Guardian{Name: name, Username: username, Email: username + "@test.cd", IsActive: true})
	if err != nil {
		t.Fatalf("CreateGuardian() failed: %v", err)
	}
	return g
}

func CreateChild(t *testing.T, svc *daycare.Service, name string, guardianIDs ...string) daycare.Child {
	c, err := svc.CreateChild(daycare.NewChild{Name: name, GuardianIDs: guardianIDs})
	if err != nil {
		t.Fatalf("CreateChild() failed: %v", err)
	}
	return c
}

func IssueCode(t *testing.T, svc *daycare.Service, value string, action attendance.ScanAction, ttl ...time.Duration) daycare.Code {
	nc := daycare.NewCode{Value: value, Action: action}
	if len(ttl) > 0 {
		nc.TTL = ttl[0]
	}
	c, err := svc.IssueCode(nc)
	if err != nil {
		t.Fatalf("IssueCode() failed: %v", err)
	}
	return c
}

// Request is a check request for childIDs made from the school center.
func Request(code string, childIDs ...string) attendance.CheckRequest {
	return attendance.CheckRequest{
		QRCode:    code,
		ChildIDs:  childIDs,
		Latitude:  School.CenterLatitude,
		Longitude: School.CenterLongitude,
	}
}
