// Package proximity finds the users located within a radius of a reference
// point and reports their distance and bearing from it.
package proximity

import (
	"fmt"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
)

// FindNearby returns every candidate whose rounded great-circle distance from
// reference is at most radiusMeters. Candidates sharing the exact reference
// coordinate are treated as the querying user and skipped. The output keeps
// the candidate order. Distances and bearings are rounded to two decimals.
//
// All inputs are validated before any work is done; an invalid radius or
// coordinate yields ErrInvalidArgument and no results.
func FindNearby(reference geo.Coordinate, candidates []model.LocationRecord, radiusMeters float64) ([]model.NearbyUser, error) {
	if !geo.IsFinite(radiusMeters) || radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be a positive finite number, got %v", geo.ErrInvalidArgument, radiusMeters)
	}
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	for i := range candidates {
		if err := candidates[i].Coordinate().Validate(); err != nil {
			return nil, fmt.Errorf("candidate %q: %w", candidates[i].UserID, err)
		}
	}

	out := make([]model.NearbyUser, 0, len(candidates))
	for _, c := range candidates {
		pos := c.Coordinate()
		if pos.Equal(reference) {
			continue
		}

		distance := geo.Round2(geo.Distance(reference, pos))
		if distance > radiusMeters {
			continue
		}

		out = append(out, model.NearbyUser{
			LocationRecord: c,
			DistanceMeters: distance,
			BearingDegrees: geo.RoundedBearing(geo.Bearing(reference, pos)),
		})
	}
	return out, nil
}

// Stats summarizes a FindNearby call for metrics and logging.
type Stats struct {
	Scanned  int
	Excluded int
	Matched  int
}

// Summarize reports how many candidates were scanned, dropped and kept.
func Summarize(candidates []model.LocationRecord, results []model.NearbyUser) Stats {
	return Stats{
		Scanned:  len(candidates),
		Excluded: len(candidates) - len(results),
		Matched:  len(results),
	}
}
