package daycare

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
)

type (
	Guardian struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		IsActive bool   `json:"isActive"`
	}

	Child struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		GuardianIDs []string `json:"guardianIds"`
	}

	// Code is a printed QR code. Its action is decided when it is issued, not when it is scanned.
	Code struct {
		Value     string                `json:"value"`
		Action    attendance.ScanAction `json:"action"`
		ExpiresAt null.Time             `json:"expiresAt"` // null: never expires
	}

	// Record is the attendance of one child for one day.
	Record struct {
		ID           string      `json:"id"`
		ChildID      string      `json:"childId"`
		Day          string      `json:"day"` // YYYY-MM-DD, school time zone
		CheckInTime  time.Time   `json:"checkInTime"`
		CheckInBy    string      `json:"checkInBy"`
		CheckOutTime null.Time   `json:"checkOutTime"`
		CheckOutBy   null.String `json:"checkOutBy"`
		Latitude     float64     `json:"latitude"`
		Longitude    float64     `json:"longitude"`
		Notes        null.String `json:"notes"`
	}

	NewChild struct {
		Name        string   `json:"name" validate:"required"`
		GuardianIDs []string `json:"guardianIds" validate:"required,min=1,dive,required"`
	}

	NewCode struct {
		Value  string                `json:"value" validate:"required,qrcode"`
		Action attendance.ScanAction `json:"action" validate:"required,oneof=CheckIn CheckOut"`
		TTL    time.Duration         `json:"ttl" validate:"gte=0"` // 0: never expires
	}
)

func (c Code) Expired(now time.Time) bool {
	return c.ExpiresAt.Valid && !now.Before(c.ExpiresAt.Time)
}

func (c Child) HasGuardian(guardianID string) bool {
	for _, id := range c.GuardianIDs {
		if id == guardianID {
			return true
		}
	}
	return false
}

// Status renders r (possibly the zero Record) as the guardian-facing status of child.
func (r Record) Status(child Child) attendance.ChildStatus {
	st := attendance.ChildStatus{ChildID: child.ID, Name: child.Name}
	if r.ID == "" {
		return st
	}
	st.IsCheckedIn = true
	st.CheckInTime = null.TimeFrom(r.CheckInTime)
	st.IsCheckedOut = r.CheckOutTime.Valid
	st.CheckOutTime = r.CheckOutTime
	st.AttendanceRecordID = null.StringFrom(r.ID)
	return st
}

func (nc *NewChild) Validate() error {
	nc.Name = core.CleanString(nc.Name)
	return core.CheckStruct(nc)
}

func (nc *NewCode) Validate() error {
	nc.Value = core.CleanString(nc.Value)
	return core.CheckStruct(nc)
}
