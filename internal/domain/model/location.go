// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/radar"
)

// LocationUpdate is a single position report from a client.
type LocationUpdate struct {
	UserID    string  `json:"userId"`
	Username  string  `json:"username"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationRecord is the last reported position of a user.
// Field names mirror the JSON documents served under /location.
type LocationRecord struct {
	UserID      string    `json:"userId" msgpack:"userId"`
	Username    string    `json:"username" msgpack:"username"`
	Avatar      string    `json:"avatar" msgpack:"avatar"`
	Latitude    float64   `json:"latitude" msgpack:"latitude"`
	Longitude   float64   `json:"longitude" msgpack:"longitude"`
	// Tag is preserved across location updates.
	Tag         string    `json:"tag" msgpack:"tag"`
	LastUpdated time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Coordinate returns the record position.
func (r LocationRecord) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// NearbyUser is a record decorated with its distance and bearing from a
// reference point. It is derived per query and never stored.
type NearbyUser struct {
	LocationRecord
	DistanceMeters float64 `json:"distance"`
	BearingDegrees float64 `json:"angle"`
}

// RadarView is the result of a radar query: the users in range and where to
// draw them on a display of DisplayRadius pixels.
type RadarView struct {
	Center        geo.Coordinate      `json:"center"`
	RadiusMeters  float64             `json:"radius"`
	DisplayRadius float64             `json:"displayRadius"`
	Users         []NearbyUser        `json:"users"`
	Points        []radar.PlacedPoint `json:"points"`
}
