package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/ride-hail/internal/accounts"
	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/observability"
)

type roleReq int

const (
	roleAny roleReq = iota
	roleRider
	roleCaptain
)

const claimsKey contextKey = "claims"

type authedClaims struct {
	AccountID string
	Role      models.Role
}

// requireAuth verifies the bearer token and, when want is not roleAny,
// checks the role claim before invoking the handler.
func (s *Server) requireAuth(want roleReq, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, apperr.Authf("missing bearer token"))
			return
		}
		claims, err := s.deps.Tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.writeError(w, err)
			return
		}
		switch want {
		case roleRider:
			if claims.Role != models.RoleRider {
				s.writeError(w, apperr.Authf("rider token required"))
				return
			}
		case roleCaptain:
			if claims.Role != models.RoleCaptain {
				s.writeError(w, apperr.Authf("captain token required"))
				return
			}
		}
		ctx := context.WithValue(r.Context(), claimsKey, authedClaims{AccountID: claims.Subject, Role: claims.Role})
		h(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) authedClaims {
	c, _ := ctx.Value(claimsKey).(authedClaims)
	return c
}

func roleFor(req roleReq) models.Role {
	if req == roleCaptain {
		return models.RoleCaptain
	}
	return models.RoleRider
}

func (s *Server) handleRegister(role roleReq) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accounts.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperr.Validationf("malformed body"))
			return
		}
		acct, token, err := s.deps.Accounts.Register(r.Context(), roleFor(role), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]any{"account": acct, "token": token})
	}
}

func (s *Server) handleLogin(role roleReq) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperr.Validationf("malformed body"))
			return
		}
		acct, token, err := s.deps.Accounts.Login(r.Context(), roleFor(role), req.Email, req.Password)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"account": acct, "token": token})
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	acct, err := s.deps.Accounts.Profile(r.Context(), claimsFrom(r.Context()).AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd accounts.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.writeError(w, apperr.Validationf("malformed body"))
		return
	}
	acct, err := s.deps.Accounts.UpdateProfile(r.Context(), claimsFrom(r.Context()).AccountID, upd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if len(input) < 3 {
		s.writeError(w, apperr.Validationf("input must be at least 3 characters"))
		return
	}
	out, err := s.deps.Maps.Suggestions(r.Context(), input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFare(w http.ResponseWriter, r *http.Request) {
	pickup := strings.TrimSpace(r.URL.Query().Get("pickup"))
	destination := strings.TrimSpace(r.URL.Query().Get("destination"))
	if pickup == "" || destination == "" {
		s.writeError(w, apperr.Validationf("pickup and destination are required"))
		return
	}
	q, err := s.deps.Coordinator.Quote(r.Context(), pickup, destination)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q.Fares)
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pickup      string             `json:"pickup"`
		Destination string             `json:"destination"`
		VehicleType models.VehicleType `json:"vehicleType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Validationf("malformed body"))
		return
	}
	ride, err := s.deps.Coordinator.Create(r.Context(), claimsFrom(r.Context()).AccountID, req.Pickup, req.Destination, req.VehicleType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleConfirmRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RideID string `json:"rideId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RideID == "" {
		s.writeError(w, apperr.Validationf("rideId is required"))
		return
	}
	ride, err := s.deps.Coordinator.Confirm(r.Context(), req.RideID, claimsFrom(r.Context()).AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RideID string `json:"rideId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RideID == "" {
		s.writeError(w, apperr.Validationf("rideId is required"))
		return
	}
	ride, err := s.deps.Coordinator.Start(r.Context(), req.RideID, claimsFrom(r.Context()).AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleEndRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RideID string `json:"rideId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RideID == "" {
		s.writeError(w, apperr.Validationf("rideId is required"))
		return
	}
	ride, err := s.deps.Coordinator.Finish(r.Context(), req.RideID, claimsFrom(r.Context()).AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RideID string `json:"rideId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RideID == "" {
		s.writeError(w, apperr.Validationf("rideId is required"))
		return
	}
	ride, err := s.deps.Coordinator.Cancel(r.Context(), req.RideID, claimsFrom(r.Context()).AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ride, err := s.deps.Coordinator.Get(r.Context(), id, claimsFrom(r.Context()).AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ride)
}

// handleDriverLocation is the service-to-service ingest path, the same
// shape the Kafka consumer feeds from.
func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		s.writeError(w, apperr.Validationf("malformed body"))
		return
	}
	d.Online = true
	if s.deps.Kafka != nil {
		_ = s.deps.Kafka.PublishLocation(d)
	}
	s.deps.Geo.Upsert(d)
	observability.LocationReports.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindTransition:
		status = http.StatusUnprocessableEntity
	case apperr.KindUpstream:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error", "error", err)
		s.writeJSON(w, status, map[string]string{"message": "internal error"})
		return
	}
	s.writeJSON(w, status, map[string]string{"message": err.Error()})
}
