package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
)

// generateUsers scatters n users uniformly over the disc of radius spread
// around center. Each user gets a fresh UUID.
func generateUsers(rng *rand.Rand, n int, center geo.Coordinate, spread float64) []model.LocationUpdate {
	users := make([]model.LocationUpdate, n)
	for i := range users {
		// sqrt keeps the density uniform over the disc
		pos := geo.Offset(center, rng.Float64()*360, spread*math.Sqrt(rng.Float64()))
		users[i] = model.LocationUpdate{
			UserID:    uuid.NewString(),
			Username:  fmt.Sprintf("sim-%04d", i),
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
		}
	}
	return users
}

// jitter moves every user up to maxMeters in a random direction.
func jitter(rng *rand.Rand, users []model.LocationUpdate, maxMeters float64) []model.LocationUpdate {
	out := make([]model.LocationUpdate, len(users))
	for i, u := range users {
		pos := geo.Offset(geo.Coordinate{Latitude: u.Latitude, Longitude: u.Longitude}, rng.Float64()*360, rng.Float64()*maxMeters)
		u.Latitude, u.Longitude = pos.Latitude, pos.Longitude
		out[i] = u
	}
	return out
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
