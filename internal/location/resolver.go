// Package location resolves the angler's coordinates from explicit
// configuration or a geocoded ZIP code.
package location

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/pkg/geocode"
)

// Resolver prefers explicit coordinates, then a geocoded ZIP. A definitive
// ZIP answer (matched or not found) is cached; a failed lookup is retried on
// the next call.
type Resolver struct {
	coords *model.Coordinates
	zip    string
	geo    geocode.Client

	mu       sync.Mutex
	resolved bool
	zipLoc   *model.Coordinates
}

// NewResolver creates a Resolver. coords may be nil; zip may be empty; geo
// may be nil when no ZIP lookup is possible.
func NewResolver(coords *model.Coordinates, zip string, geo geocode.Client) *Resolver {
	return &Resolver{coords: coords, zip: zip, geo: geo}
}

// Locate returns the best known coordinates, or nil when none are
// available. The error is informational; callers fall back to nil.
func (r *Resolver) Locate(ctx context.Context) (*model.Coordinates, error) {
	if r.coords != nil {
		c := *r.coords
		return &c, nil
	}
	if r.zip == "" || r.geo == nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resolved {
		loc, err := r.lookup(ctx)
		if err != nil {
			return nil, err
		}
		r.zipLoc, r.resolved = loc, true
	}
	if r.zipLoc == nil {
		return nil, nil
	}
	c := *r.zipLoc
	return &c, nil
}

func (r *Resolver) lookup(ctx context.Context) (*model.Coordinates, error) {
	res, err := r.geo.LookupZip(ctx, r.zip)
	if err != nil {
		return nil, eris.Wrapf(err, "location: geocode zip %s", r.zip)
	}
	if !res.Matched {
		zap.L().Info("location: zip not found", zap.String("zip", r.zip))
		return nil, nil
	}
	zap.L().Debug("location: zip resolved",
		zap.String("zip", r.zip),
		zap.Float64("lat", res.Latitude),
		zap.Float64("lon", res.Longitude),
	)
	return &model.Coordinates{Lat: res.Latitude, Lon: res.Longitude}, nil
}
