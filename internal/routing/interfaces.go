package routing

import (
	"context"

	"itinerary-planner/internal/models"
)

const (
	// MinRoutePoints is the fewest waypoints a route can be requested for
	MinRoutePoints = 2
	// MinOptimizePoints is the fewest waypoints worth reordering
	MinOptimizePoints = 3
)

// RouteFetcher routes an ordered list of waypoints without reordering them
type RouteFetcher interface {
	FetchRoute(ctx context.Context, ordered []models.Waypoint) (*models.RouteData, error)
}

// TripOptimizer reorders waypoints into a short open path starting at the first one
type TripOptimizer interface {
	FetchOptimizedRoute(ctx context.Context, waypoints []models.Waypoint) (*OptimizedRoute, error)
}

// Service is the full routing backend
type Service interface {
	RouteFetcher
	TripOptimizer
}

// OptimizedRoute is the solver's visiting order mapped back onto the
// caller's waypoints, plus the route for that order.
type OptimizedRoute struct {
	Order []models.Waypoint
	Route *models.RouteData
}
