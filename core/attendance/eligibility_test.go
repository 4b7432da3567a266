package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligibleFor(t *testing.T) {
	absent := ChildStatus{ChildID: "1", Name: "Amani"}
	present := ChildStatus{ChildID: "2", Name: "Bijou", IsCheckedIn: true}
	gone := ChildStatus{ChildID: "3", Name: "Chance", IsCheckedIn: true, IsCheckedOut: true}
	absent2 := ChildStatus{ChildID: "4", Name: "Dieudonné"}
	present2 := ChildStatus{ChildID: "5", Name: "Espoir", IsCheckedIn: true}
	roster := []ChildStatus{absent, present, gone, absent2, present2}

	tests := []struct {
		name   string
		action ScanAction
		roster []ChildStatus
		want   []ChildStatus
	}{
		{name: "check-in keeps children not checked in, in order", action: CheckIn, roster: roster, want: []ChildStatus{absent, absent2}},
		{name: "check-out keeps children present", action: CheckOut, roster: roster, want: []ChildStatus{present, present2}},
		{name: "empty roster", action: CheckIn, roster: nil, want: []ChildStatus{}},
		{name: "nobody to check out", action: CheckOut, roster: []ChildStatus{absent, gone}, want: []ChildStatus{}},
		{name: "everybody checked in", action: CheckIn, roster: []ChildStatus{present, gone}, want: []ChildStatus{}},
		{name: "unknown action", action: ScanAction("Lunch"), roster: roster, want: []ChildStatus{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EligibleFor(tt.action, tt.roster))
		})
	}
}

func TestBatchResult_Failed(t *testing.T) {
	res := BatchResult{Success: true, Results: []ResultItem{
		{ChildID: "1", Success: true},
		{ChildID: "2", Message: "already checked in"},
	}}
	assert.Equal(t, []ResultItem{{ChildID: "2", Message: "already checked in"}}, res.Failed())
	assert.Empty(t, BatchResult{Success: true}.Failed())
}

func TestCheckRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CheckRequest
		wantErr bool
	}{
		{name: "valid", req: CheckRequest{QRCode: " IN-1 ", ChildIDs: []string{"1"}, Latitude: -4.3, Longitude: 15.3}},
		{name: "no code", req: CheckRequest{ChildIDs: []string{"1"}}, wantErr: true},
		{name: "code with spaces", req: CheckRequest{QRCode: "IN 1", ChildIDs: []string{"1"}}, wantErr: true},
		{name: "no children", req: CheckRequest{QRCode: "IN-1"}, wantErr: true},
		{name: "blank child id", req: CheckRequest{QRCode: "IN-1", ChildIDs: []string{""}}, wantErr: true},
		{name: "bad latitude", req: CheckRequest{QRCode: "IN-1", ChildIDs: []string{"1"}, Latitude: 91}, wantErr: true},
		{name: "bad longitude", req: CheckRequest{QRCode: "IN-1", ChildIDs: []string{"1"}, Longitude: -181}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
