// Package location turns a platform's single-shot position query into a
// timeout-bounded call with a small, normalized error taxonomy.
package location

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core/geo"
)

const DefaultTimeout = 10 * time.Second

var nowFunc = time.Now // mockable

type (
	Position struct {
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
		Accuracy  float64   `json:"accuracy"` // meters
		Timestamp time.Time `json:"timestamp"`
	}

	Options struct {
		Timeout      time.Duration
		HighAccuracy bool
		MaximumAge   time.Duration // 0: cached positions are never accepted
	}

	// Platform is the device location capability.
	// CurrentPosition performs exactly one query; failures should be reported as *PlatformError.
	Platform interface {
		Supported() bool
		CurrentPosition(ctx context.Context, opts Options) (Position, error)
	}
)

func (p Position) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Expired reports whether p is older than ttl at now. A zero ttl never expires.
func (p Position) Expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(p.Timestamp) > ttl
}

func DefaultOptions() Options {
	return Options{Timeout: DefaultTimeout, HighAccuracy: true}
}

// Acquire queries p once and waits at most opts.Timeout for the answer,
// even if the platform does not honour ctx.
func Acquire(ctx context.Context, p Platform, opts Options) (Position, error) {
	if p == nil || !p.Supported() {
		return Position{}, newError(Unsupported, nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	type result struct {
		pos Position
		err error
	}
	started := nowFunc()
	resCh := make(chan result, 1) // buffered: a late platform answer must not block its goroutine
	go func() {
		pos, err := p.CurrentPosition(ctx, opts)
		resCh <- result{pos: pos, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return Position{}, normalize(res.err)
		}
		pos := res.pos
		if pos.Timestamp.IsZero() {
			pos.Timestamp = nowFunc()
		}
		if isCached(pos, started, opts.MaximumAge) {
			return Position{}, newError(PositionUnavailable, errors.New("only a cached position is available"))
		}
		return pos, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Position{}, newError(Timeout, ctx.Err())
		}
		return Position{}, errors.Wrap(ctx.Err(), "acquiring position")
	}
}

func isCached(pos Position, started time.Time, maxAge time.Duration) bool {
	if maxAge > 0 {
		return nowFunc().Sub(pos.Timestamp) > maxAge
	}
	return pos.Timestamp.Before(started)
}
