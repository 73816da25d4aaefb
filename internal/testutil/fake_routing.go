package testutil

import (
	"context"
	"sync"

	"itinerary-planner/internal/geocoding"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/routing"
)

// LegSeconds is the duration StraightRoute gives every leg
const LegSeconds = 600

// StraightRoute builds a route through the waypoints in their given order
// with one fixed-length leg per consecutive pair.
func StraightRoute(ordered []models.Waypoint) *models.RouteData {
	route := &models.RouteData{}
	for i, wp := range ordered {
		route.Geometry = append(route.Geometry, wp.GetCoords())
		if i == 0 {
			continue
		}
		leg := models.Leg{DistanceMeters: 1000, DurationSeconds: LegSeconds}
		route.Legs = append(route.Legs, leg)
		route.DistanceMeters += leg.DistanceMeters
		route.DurationSeconds += leg.DurationSeconds
	}
	return route
}

// PendingCall is a routing call held open until the test answers it
type PendingCall struct {
	Op        string // "route" or "trip"
	Waypoints []models.Waypoint
	reply     chan pendingReply
}

type pendingReply struct {
	route *models.RouteData
	trip  *routing.OptimizedRoute
	err   error
}

// Respond answers a route call
func (p *PendingCall) Respond(route *models.RouteData, err error) {
	p.reply <- pendingReply{route: route, err: err}
}

// RespondTrip answers a trip call
func (p *PendingCall) RespondTrip(trip *routing.OptimizedRoute, err error) {
	p.reply <- pendingReply{trip: trip, err: err}
}

// FakeRouter is a routing.Service for tests. By default it answers at once
// with StraightRoute and an unchanged order. Gated calls are parked on
// Pending until the test responds to them.
type FakeRouter struct {
	RouteFunc func(ordered []models.Waypoint) (*models.RouteData, error)
	TripFunc  func(waypoints []models.Waypoint) (*routing.OptimizedRoute, error)

	GateRoute bool
	GateTrip  bool
	Pending   chan *PendingCall

	mu         sync.Mutex
	routeCalls [][]models.Waypoint
	tripCalls  [][]models.Waypoint
}

func NewFakeRouter() *FakeRouter {
	return &FakeRouter{Pending: make(chan *PendingCall, 16)}
}

// NewGatedRouter returns a router whose calls all wait on Pending
func NewGatedRouter() *FakeRouter {
	r := NewFakeRouter()
	r.GateRoute = true
	r.GateTrip = true
	return r
}

func (f *FakeRouter) FetchRoute(ctx context.Context, ordered []models.Waypoint) (*models.RouteData, error) {
	f.mu.Lock()
	f.routeCalls = append(f.routeCalls, append([]models.Waypoint(nil), ordered...))
	f.mu.Unlock()

	if f.GateRoute {
		reply, err := f.park(ctx, "route", ordered)
		if err != nil {
			return nil, err
		}
		return reply.route, reply.err
	}
	if f.RouteFunc != nil {
		return f.RouteFunc(ordered)
	}
	return StraightRoute(ordered), nil
}

func (f *FakeRouter) FetchOptimizedRoute(ctx context.Context, waypoints []models.Waypoint) (*routing.OptimizedRoute, error) {
	f.mu.Lock()
	f.tripCalls = append(f.tripCalls, append([]models.Waypoint(nil), waypoints...))
	f.mu.Unlock()

	if f.GateTrip {
		reply, err := f.park(ctx, "trip", waypoints)
		if err != nil {
			return nil, err
		}
		return reply.trip, reply.err
	}
	if f.TripFunc != nil {
		return f.TripFunc(waypoints)
	}
	order := append([]models.Waypoint(nil), waypoints...)
	return &routing.OptimizedRoute{Order: order, Route: StraightRoute(order)}, nil
}

func (f *FakeRouter) park(ctx context.Context, op string, wps []models.Waypoint) (pendingReply, error) {
	call := &PendingCall{
		Op:        op,
		Waypoints: append([]models.Waypoint(nil), wps...),
		reply:     make(chan pendingReply, 1),
	}
	f.Pending <- call
	select {
	case r := <-call.reply:
		return r, nil
	case <-ctx.Done():
		return pendingReply{}, models.NetworkFailure("fake", ctx.Err())
	}
}

// RouteCalls returns the waypoint lists FetchRoute was called with
func (f *FakeRouter) RouteCalls() [][]models.Waypoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]models.Waypoint(nil), f.routeCalls...)
}

// TripCalls returns the waypoint lists FetchOptimizedRoute was called with
func (f *FakeRouter) TripCalls() [][]models.Waypoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]models.Waypoint(nil), f.tripCalls...)
}

// FakeGeocoder resolves queries from a fixed table
type FakeGeocoder struct {
	Results map[string]*geocoding.GeocodingResult
	Err     error

	mu      sync.Mutex
	Queries []string
}

func NewFakeGeocoder() *FakeGeocoder {
	return &FakeGeocoder{Results: make(map[string]*geocoding.GeocodingResult)}
}

func (g *FakeGeocoder) Search(ctx context.Context, query string) (*geocoding.GeocodingResult, error) {
	g.mu.Lock()
	g.Queries = append(g.Queries, query)
	g.mu.Unlock()

	if g.Err != nil {
		return nil, g.Err
	}
	if r, ok := g.Results[query]; ok {
		return r, nil
	}
	return nil, models.NewServiceError("fake-geocoder", models.KindNotFound, "no results for %q", query)
}
