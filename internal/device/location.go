package device

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tradewire/fieldsync/internal/sync"
	"go.uber.org/zap"
)

// ErrNoLocation indicates no usable coordinate could be obtained; the
// submission must not be queued.
var ErrNoLocation = errors.New("device: unable to capture location")

const defaultLiveFixTimeout = 10 * time.Second

// FixProvider abstracts the platform location services.
type FixProvider interface {
	// CurrentFix attempts a live GPS fix; it should honor ctx cancellation.
	CurrentFix(ctx context.Context) (*sync.GeoPoint, error)
	// LastKnownFix returns the most recent cached fix, or nil when none exists.
	LastKnownFix(ctx context.Context) (*sync.GeoPoint, error)
}

// Locator captures a location fix for a submission.
type Locator interface {
	Capture(ctx context.Context) (*sync.GeoPoint, error)
}

// CaptureStrategy is the capture policy: a live fix with a bounded wait,
// falling back to the last known position, failing hard when neither yields
// a coordinate.
type CaptureStrategy struct {
	Provider    FixProvider
	LiveTimeout time.Duration
	Logger      *zap.Logger
}

// Capture obtains a geo fix per the strategy.
func (s *CaptureStrategy) Capture(ctx context.Context) (*sync.GeoPoint, error) {
	if s.Provider == nil {
		return nil, ErrNoLocation
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := s.LiveTimeout
	if timeout <= 0 {
		timeout = defaultLiveFixTimeout
	}

	liveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fix, err := s.Provider.CurrentFix(liveCtx)
	if err != nil || fix == nil {
		if err != nil {
			logger.Warn("live fix failed, falling back to last known position", zap.Error(err))
		}
		fix, err = s.Provider.LastKnownFix(ctx)
		if err != nil {
			return nil, ErrNoLocation
		}
	}
	if fix == nil || !validCoordinate(fix.Latitude, fix.Longitude) {
		return nil, ErrNoLocation
	}
	if fix.RecordedAt == "" {
		fix.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return fix, nil
}

func validCoordinate(latitude, longitude float64) bool {
	if math.IsNaN(latitude) || math.IsNaN(longitude) {
		return false
	}
	if math.IsInf(latitude, 0) || math.IsInf(longitude, 0) {
		return false
	}
	return latitude >= -90 && latitude <= 90 && longitude >= -180 && longitude <= 180
}
