package attendance

import "context"

// Client is the attendance backend as seen by a guardian's device.
type Client interface {
	ValidateCode(ctx context.Context, code string) (CodeValidation, error)
	CheckIn(ctx context.Context, req CheckRequest) (BatchResult, error)
	CheckOut(ctx context.Context, req CheckRequest) (BatchResult, error)
	MyChildrenStatus(ctx context.Context) ([]ChildStatus, error)
	SchoolSettings(ctx context.Context) (SchoolSettings, error)
}

// Submit sends req to the endpoint matching action.
func Submit(ctx context.Context, c Client, action ScanAction, req CheckRequest) (BatchResult, error) {
	if action == CheckOut {
		return c.CheckOut(ctx, req)
	}
	return c.CheckIn(ctx, req)
}
