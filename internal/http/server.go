package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-hail/internal/accounts"
	"github.com/example/ride-hail/internal/auth"
	"github.com/example/ride-hail/internal/config"
	"github.com/example/ride-hail/internal/geo"
	"github.com/example/ride-hail/internal/ingest"
	"github.com/example/ride-hail/internal/lifecycle"
	"github.com/example/ride-hail/internal/maps"
	"github.com/example/ride-hail/internal/registry"
	"github.com/example/ride-hail/internal/storage"
)

// Deps is everything the API surface needs, constructed in main and passed
// by reference so tests can swap any piece for a fake.
type Deps struct {
	Coordinator *lifecycle.Coordinator
	Accounts    *accounts.Service
	Tokens      *auth.Manager
	Maps        maps.Client
	Geo         geo.Geo
	Kafka       *ingest.KafkaProducer // optional
	Registry    *registry.Registry
	Store       storage.AccountStore
}

type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	deps   Deps
	mux    *mux.Router
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, deps Deps) *Server {
	s := &Server{cfg: cfg, logger: logger, deps: deps, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	// accounts
	s.mux.HandleFunc("/users/register", s.handleRegister(roleRider)).Methods("POST")
	s.mux.HandleFunc("/users/login", s.handleLogin(roleRider)).Methods("POST")
	s.mux.Handle("/users/profile", s.requireAuth(roleRider, s.handleProfile)).Methods("GET")
	s.mux.Handle("/users/profile", s.requireAuth(roleRider, s.handleUpdateProfile)).Methods("PUT")
	s.mux.HandleFunc("/captains/register", s.handleRegister(roleCaptain)).Methods("POST")
	s.mux.HandleFunc("/captains/login", s.handleLogin(roleCaptain)).Methods("POST")
	s.mux.Handle("/captains/profile", s.requireAuth(roleCaptain, s.handleProfile)).Methods("GET")
	s.mux.Handle("/captains/profile", s.requireAuth(roleCaptain, s.handleUpdateProfile)).Methods("PUT")

	// maps
	s.mux.Handle("/maps/get-suggestions", s.requireAuth(roleAny, s.handleGetSuggestions)).Methods("GET")

	// rides
	s.mux.Handle("/rides/get-fare", s.requireAuth(roleRider, s.handleGetFare)).Methods("GET")
	s.mux.Handle("/rides/create", s.requireAuth(roleRider, s.handleCreateRide)).Methods("POST")
	s.mux.Handle("/rides/confirm", s.requireAuth(roleCaptain, s.handleConfirmRide)).Methods("POST")
	s.mux.Handle("/rides/start-ride", s.requireAuth(roleCaptain, s.handleStartRide)).Methods("POST")
	s.mux.Handle("/rides/end-ride", s.requireAuth(roleCaptain, s.handleEndRide)).Methods("POST")
	s.mux.Handle("/rides/cancel", s.requireAuth(roleAny, s.handleCancelRide)).Methods("POST")
	s.mux.Handle("/rides/{id}", s.requireAuth(roleAny, s.handleGetRide)).Methods("GET")

	// internal location ingest (service-to-service, no bearer token)
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")

	// realtime
	s.mux.HandleFunc("/ws", s.handleWS)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
