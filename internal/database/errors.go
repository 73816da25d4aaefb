package database

import "errors"

// ErrNotFound is returned when a requested itinerary does not exist
var ErrNotFound = errors.New("itinerary not found")

// ErrInvalidID is returned for an empty itinerary id
var ErrInvalidID = errors.New("itinerary id is required")
