package locationsvc

import (
	"context"
	"time"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/location"
)

// FixedPlatform reports a configured position, eg. for terminals without a GPS.
type FixedPlatform struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Accuracy  float64 `json:"accuracy" validate:"gte=0"`

	// Disabled mimics a device where the guardian refused location access.
	Disabled bool `json:"-"`
}

var _ location.Platform = (*FixedPlatform)(nil)

func NewFixedPlatform(lat, lon, accuracy float64) *FixedPlatform {
	return &FixedPlatform{Latitude: lat, Longitude: lon, Accuracy: accuracy}
}

func (p *FixedPlatform) Supported() bool { return true }

func (p *FixedPlatform) CurrentPosition(ctx context.Context, _ location.Options) (location.Position, error) {
	if err := ctx.Err(); err != nil {
		return location.Position{}, err
	}
	if p.Disabled {
		return location.Position{}, &location.PlatformError{
			Code:    location.CodePermissionDenied,
			Message: "location access disabled",
		}
	}
	if err := core.CheckStruct(p); err != nil {
		return location.Position{}, &location.PlatformError{
			Code:    location.CodePositionUnavailable,
			Message: err.Error(),
		}
	}
	return location.Position{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
		Timestamp: time.Now(),
	}, nil
}
