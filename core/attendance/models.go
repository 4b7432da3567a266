package attendance

import (
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/geo"
)

// ScanAction is decided by the server when it validates a scanned code.
type ScanAction string

const (
	CheckIn  ScanAction = "CheckIn"
	CheckOut ScanAction = "CheckOut"
)

func (a ScanAction) IsValid() bool {
	return a == CheckIn || a == CheckOut
}

// ChildStatus is one child of the authenticated guardian, as last seen by the server.
type ChildStatus struct {
	ChildID            string      `json:"childId"`
	Name               string      `json:"name"`
	IsCheckedIn        bool        `json:"isCheckedIn"`
	IsCheckedOut       bool        `json:"isCheckedOut"`
	CheckInTime        null.Time   `json:"checkInTime"`
	CheckOutTime       null.Time   `json:"checkOutTime"`
	AttendanceRecordID null.String `json:"attendanceRecordId"`
}

// ResultItem is the server's verdict for one child of a submitted batch.
type ResultItem struct {
	ChildID            string      `json:"childId"`
	Success            bool        `json:"success"`
	Message            string      `json:"message"`
	AttendanceRecordID null.String `json:"attendanceRecordId"`
}

// BatchResult is the answer to a check-in/out submission.
// Success reflects the round-trip only; items may still fail one by one.
type BatchResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results []ResultItem `json:"results"`
}

func (r BatchResult) Failed() []ResultItem {
	var failed []ResultItem
	for _, item := range r.Results {
		if !item.Success {
			failed = append(failed, item)
		}
	}
	return failed
}

type CodeValidation struct {
	IsValid bool       `json:"isValid"`
	Type    ScanAction `json:"type"`
	Message string     `json:"message,omitempty"`
}

// CheckRequest is the body of a check-in or check-out submission.
type CheckRequest struct {
	QRCode    string      `json:"qrCode" validate:"required"` // opaque here: the server owns code validation
	ChildIDs  []string    `json:"childIds" validate:"required,min=1,dive,required"`
	Latitude  float64     `json:"latitude" validate:"latitude"`
	Longitude float64     `json:"longitude" validate:"longitude"`
	Notes     null.String `json:"notes"`
}

func (r *CheckRequest) Validate() error {
	r.QRCode = core.CleanString(r.QRCode)
	return core.CheckStruct(r)
}

type SchoolSettings struct {
	SchoolName      string  `json:"schoolName"`
	CenterLatitude  float64 `json:"centerLatitude" validate:"latitude"`
	CenterLongitude float64 `json:"centerLongitude" validate:"longitude"`
	RadiusMeters    float64 `json:"radiusMeters" validate:"gte=0"`
	GeofenceEnabled bool    `json:"geofenceEnabled"`
}

func (s SchoolSettings) Validate() error { return core.CheckStruct(s) }

func (s SchoolSettings) Geofence() geo.Geofence {
	return geo.Geofence{
		Center:       geo.Point{Latitude: s.CenterLatitude, Longitude: s.CenterLongitude},
		RadiusMeters: s.RadiusMeters,
		Enabled:      s.GeofenceEnabled,
	}
}
