package simulator

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
)

// distanceTolerance absorbs the two-decimal rounding of reported distances.
const distanceTolerance = 0.011

// Verify checks a nearby answer against the users that were reported.
// order is the service's full listing and fixes the expected result order.
// Only the generated users are checked for completeness; other users on the
// service are ignored.
func Verify(center geo.Coordinate, radius float64, users []model.LocationUpdate, order []model.LocationRecord, results []model.NearbyUser) error {
	var problems []error

	position := make(map[string]int, len(order))
	for i, rec := range order {
		position[rec.UserID] = i
	}

	returned := make(map[string]bool, len(results))
	last := -1
	for _, r := range results {
		returned[r.UserID] = true
		pos := r.Coordinate()

		if r.DistanceMeters > radius {
			problems = append(problems, fmt.Errorf("%s at %.2f m is beyond the %.2f m radius", r.UserID, r.DistanceMeters, radius))
		}
		if r.BearingDegrees < 0 || r.BearingDegrees >= 360 {
			problems = append(problems, fmt.Errorf("%s has bearing %.2f outside [0, 360)", r.UserID, r.BearingDegrees))
		}
		if pos.Equal(center) {
			problems = append(problems, fmt.Errorf("%s sits on the reference point and should be excluded", r.UserID))
		}
		if want := geo.Distance(center, pos); math.Abs(want-r.DistanceMeters) > distanceTolerance {
			problems = append(problems, fmt.Errorf("%s reported at %.2f m, expected %.2f m", r.UserID, r.DistanceMeters, want))
		}

		idx, ok := position[r.UserID]
		switch {
		case !ok:
			problems = append(problems, fmt.Errorf("%s is missing from the full listing", r.UserID))
		case idx <= last:
			problems = append(problems, fmt.Errorf("%s is out of first-seen order", r.UserID))
		default:
			last = idx
		}
	}

	for _, u := range users {
		pos := geo.Coordinate{Latitude: u.Latitude, Longitude: u.Longitude}
		if pos.Equal(center) || geo.Round2(geo.Distance(center, pos)) > radius {
			continue
		}
		if !returned[u.UserID] {
			problems = append(problems, fmt.Errorf("%s is within range but was not returned", u.UserID))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
}

// countMatched returns how many generated users appear in results.
func countMatched(users []model.LocationUpdate, results []model.NearbyUser) int {
	ids := make(map[string]bool, len(users))
	for _, u := range users {
		ids[u.UserID] = true
	}
	n := 0
	for _, r := range results {
		if ids[r.UserID] {
			n++
		}
	}
	return n
}
