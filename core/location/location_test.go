package location

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type platformMock struct {
	unsupported bool
	calls       int32
	query       func(ctx context.Context, opts Options) (Position, error)
}

func (p *platformMock) Supported() bool { return !p.unsupported }

func (p *platformMock) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	atomic.AddInt32(&p.calls, 1)
	return p.query(ctx, opts)
}

func fixed(pos Position) func(context.Context, Options) (Position, error) {
	return func(context.Context, Options) (Position, error) { return pos, nil }
}

func failing(err error) func(context.Context, Options) (Position, error) {
	return func(context.Context, Options) (Position, error) { return Position{}, err }
}

func TestAcquire(t *testing.T) {
	now := time.Now()
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	fresh := Position{Latitude: -4.3217, Longitude: 15.3125, Accuracy: 12, Timestamp: now}
	opts := DefaultOptions()

	tests := []struct {
		name     string
		platform *platformMock
		opts     Options
		want     Position
		wantErr  error
		calls    int32
	}{
		{name: "unsupported", platform: &platformMock{unsupported: true}, opts: opts, wantErr: ErrUnsupported, calls: 0},
		{name: "fresh position", platform: &platformMock{query: fixed(fresh)}, opts: opts, want: fresh, calls: 1},
		{
			name:     "position without timestamp is stamped",
			platform: &platformMock{query: fixed(Position{Latitude: 1, Longitude: 2})},
			opts:     opts,
			want:     Position{Latitude: 1, Longitude: 2, Timestamp: now},
			calls:    1,
		},
		{
			name:     "cached position rejected",
			platform: &platformMock{query: fixed(Position{Latitude: 1, Timestamp: now.Add(-time.Second)})},
			opts:     opts,
			wantErr:  ErrPositionUnavailable,
			calls:    1,
		},
		{
			name:     "cached position within maximum age",
			platform: &platformMock{query: fixed(Position{Latitude: 1, Timestamp: now.Add(-time.Second)})},
			opts:     Options{Timeout: time.Second, MaximumAge: time.Minute},
			want:     Position{Latitude: 1, Timestamp: now.Add(-time.Second)},
			calls:    1,
		},
		{name: "permission denied", platform: &platformMock{query: failing(&PlatformError{Code: CodePermissionDenied, Message: "denied"})}, opts: opts, wantErr: ErrPermissionDenied, calls: 1},
		{name: "position unavailable", platform: &platformMock{query: failing(&PlatformError{Code: CodePositionUnavailable})}, opts: opts, wantErr: ErrPositionUnavailable, calls: 1},
		{name: "platform timeout", platform: &platformMock{query: failing(&PlatformError{Code: CodeTimeout})}, opts: opts, wantErr: ErrTimeout, calls: 1},
		{name: "unknown platform code", platform: &platformMock{query: failing(&PlatformError{Code: 42})}, opts: opts, wantErr: ErrPositionUnavailable, calls: 1},
		{name: "uncoded failure", platform: &platformMock{query: failing(errors.New("gps off"))}, opts: opts, wantErr: ErrPositionUnavailable, calls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := Acquire(context.Background(), tt.platform, tt.opts)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "Acquire() error = %v, wantErr %v", err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, pos)
			}
			assert.Equal(t, tt.calls, atomic.LoadInt32(&tt.platform.calls), "platform queried %d times", tt.platform.calls)
		})
	}
}

func TestAcquire_platformIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := &platformMock{query: func(context.Context, Options) (Position, error) {
		<-release
		return Position{}, nil
	}}

	start := time.Now()
	_, err := Acquire(context.Background(), p, Options{Timeout: 20 * time.Millisecond})
	assert.True(t, errors.Is(err, ErrTimeout), "Acquire() error = %v, want timeout", err)
	assert.Less(t, int64(time.Since(start)), int64(time.Second))
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestAcquire_canceled(t *testing.T) {
	p := &platformMock{query: func(ctx context.Context, _ Options) (Position, error) {
		<-ctx.Done()
		return Position{}, ctx.Err()
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, p, DefaultOptions())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestPosition_Expired(t *testing.T) {
	now := time.Now()
	pos := Position{Timestamp: now.Add(-2 * time.Minute)}
	assert.True(t, pos.Expired(time.Minute, now))
	assert.False(t, pos.Expired(5*time.Minute, now))
	assert.False(t, pos.Expired(0, now))
}
