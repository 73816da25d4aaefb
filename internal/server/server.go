package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"itinerary-planner/internal/config"
	"itinerary-planner/internal/database"
	"itinerary-planner/internal/distance"
	"itinerary-planner/internal/geocoding"
	"itinerary-planner/internal/handlers"
	"itinerary-planner/internal/places"
	"itinerary-planner/internal/planner"
	"itinerary-planner/internal/postgres"
	"itinerary-planner/internal/redisstore"
	"itinerary-planner/internal/routing"
	"itinerary-planner/internal/sqlite"
	"itinerary-planner/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config) (*Server, error) {
	log.Printf("Initializing data store: backend=%s", cfg.StoreBackend)
	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	geocoder := geocoding.NewNominatimGeocoder(cfg.NominatimBaseURL, cfg.UserAgent, cfg.RequestTimeout, db.GeocodeCache())
	router := routing.NewOSRMClient(cfg.OSRMBaseURL, cfg.OSRMProfile, cfg.RequestTimeout)
	distanceCalc := distance.NewOSRMCalculator(cfg.OSRMBaseURL, cfg.OSRMProfile, cfg.RequestTimeout, db.DistanceCache())

	handler := &handlers.Handler{
		DB: db,
		Sessions: planner.NewSessionStore(planner.Config{
			Router:         router,
			Geocoder:       geocoder,
			Repo:           db.Itineraries(),
			RequestTimeout: cfg.RequestTimeout,
			NoticeTTL:      cfg.NoticeTTL,
			DefaultStart:   cfg.DefaultStartTime,
		}),
		Recommender: places.NewRecommender(distanceCalc),
	}

	return &Server{
		httpServer: newHTTPServer(cfg.ServerAddr, handler, web.Static),
		handler:    handler,
		db:         db,
		addr:       cfg.ServerAddr,
	}, nil
}

func newHTTPServer(addr string, handler *handlers.Handler, static fs.FS) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      buildHandler(handler, static),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// buildHandler wraps the routes in the middleware chain
func buildHandler(handler *handlers.Handler, static fs.FS) http.Handler {
	return requestIDMiddleware(loggingMiddleware(corsMiddleware(setupRoutes(handler, static))))
}

// openStore opens the configured persistence backend
func openStore(ctx context.Context, cfg *config.Config) (database.DataStore, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return sqlite.New(cfg.DBPath)
	case config.BackendPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		return redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
	case config.BackendJSON:
		return database.NewJSONStore(cfg.DataFile)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// setupRoutes configures all HTTP routes
func setupRoutes(h *handlers.Handler, staticFS fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	staticSubFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-filesystem: %v", err)
	}
	mux.Handle("GET /", http.FileServer(http.FS(staticSubFS)))

	mux.HandleFunc("GET /api/v1/health", h.HandleHealthCheck)
	mux.HandleFunc("GET /api/v1/places", h.HandleListPlaces)

	mux.HandleFunc("POST /api/v1/itineraries", h.HandleCreateItinerary)
	mux.HandleFunc("GET /api/v1/itineraries", h.HandleListItineraries)
	mux.HandleFunc("GET /api/v1/itineraries/{id}", h.HandleGetItinerary)
	mux.HandleFunc("DELETE /api/v1/itineraries/{id}", h.HandleDeleteItinerary)
	mux.HandleFunc("PUT /api/v1/itineraries/{id}/start-time", h.HandleSetStartTime)
	mux.HandleFunc("GET /api/v1/itineraries/{id}/route.geojson", h.HandleExportGeoJSON)

	mux.HandleFunc("POST /api/v1/itineraries/{id}/waypoints", h.HandleAddWaypoint)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/waypoints/search", h.HandleSearchWaypoint)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/places/{placeID}", h.HandleAddPlace)
	mux.HandleFunc("PATCH /api/v1/itineraries/{id}/waypoints/{wid}", h.HandleUpdateWaypoint)
	mux.HandleFunc("DELETE /api/v1/itineraries/{id}/waypoints/{wid}", h.HandleRemoveWaypoint)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/waypoints/{wid}/move", h.HandleMoveWaypoint)

	mux.HandleFunc("POST /api/v1/itineraries/{id}/reorder", h.HandleReorder)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/drag/start", h.HandleDragStart)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/drag/over", h.HandleDragOver)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/drag/end", h.HandleDragEnd)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/drag/cancel", h.HandleDragCancel)
	mux.HandleFunc("POST /api/v1/itineraries/{id}/optimize", h.HandleOptimize)

	return mux
}
