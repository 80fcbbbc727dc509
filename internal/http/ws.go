package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/observability"
	"github.com/example/ride-hail/internal/registry"
)

var upgrader = websocket.Upgrader{
	// browsers connect from a separately hosted frontend
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inbound is the client-to-server frame: an event name plus payload.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	UserID   string      `json:"userId"`
	UserType models.Role `json:"userType"`
}

type locationPayload struct {
	UserID   string `json:"userId"`
	Location struct {
		Ltd float64 `json:"ltd"` // field name kept from the client contract
		Lng float64 `json:"lng"`
	} `json:"location"`
}

// connState is per-connection bookkeeping for the read loop.
type connState struct {
	identity   string
	role       models.Role
	vehicle    models.VehicleType
	rating     float64
	lastReport time.Time
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	ch := registry.NewWSChannel(conn)
	go s.readLoop(conn, ch)
}

func (s *Server) readLoop(conn *websocket.Conn, ch registry.Channel) {
	defer s.disconnect(ch)
	state := &connState{}
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.dispatchWS(ch, state, msg)
	}
}

// dispatchWS routes one inbound frame. Split from the read loop so the
// event handling is testable with a fake channel.
func (s *Server) dispatchWS(ch registry.Channel, state *connState, msg inbound) {
	switch msg.Event {
	case "join":
		s.handleJoin(ch, state, msg.Data)
	case "update-location-captain":
		s.handleCaptainLocation(ch, state, msg.Data)
	default:
		s.logger.Debug("unknown ws event", "event", msg.Event)
	}
}

func (s *Server) handleJoin(ch registry.Channel, state *connState, data json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		s.logger.Warn("malformed join", "error", err)
		return
	}
	if p.UserType != models.RoleRider && p.UserType != models.RoleCaptain {
		s.logger.Warn("join with unknown role", "role", p.UserType)
		return
	}
	state.identity = p.UserID
	state.role = p.UserType
	if p.UserType == models.RoleCaptain {
		// vehicle class and rating ride along with every location report
		if acct, err := s.deps.Store.AccountByID(context.Background(), p.UserID); err == nil && acct.Vehicle != nil {
			state.vehicle = acct.Vehicle.Type
			state.rating = acct.Rating
		}
	}
	s.deps.Registry.Register(p.UserID, p.UserType, ch)
	s.logger.Info("participant joined", "identity", p.UserID, "role", p.UserType)
}

// handleCaptainLocation ingests a periodic location report. Reports from
// channels that never joined, or arriving faster than the configured
// minimum interval, are dropped without error.
func (s *Server) handleCaptainLocation(ch registry.Channel, state *connState, data json.RawMessage) {
	if state.identity == "" || state.role != models.RoleCaptain {
		return
	}
	if id, ok := s.deps.Registry.Identity(ch); !ok || id != state.identity {
		// superseded or unregistered channel
		return
	}
	now := time.Now()
	if !state.lastReport.IsZero() && now.Sub(state.lastReport) < s.cfg.LocationMinInterval {
		return
	}
	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("malformed location report", "error", err)
		return
	}
	state.lastReport = now

	d := models.Driver{
		ID:      state.identity,
		Loc:     models.Coord{Lat: p.Location.Ltd, Lon: p.Location.Lng},
		Rating:  state.rating,
		Vehicle: state.vehicle,
		Online:  true,
	}
	if s.deps.Kafka != nil {
		// fire-and-forget; the next report supersedes a lost one
		go func() { _ = s.deps.Kafka.PublishLocation(d) }()
	}
	s.deps.Geo.Upsert(d)
	observability.LocationReports.Inc()
}

func (s *Server) disconnect(ch registry.Channel) {
	if id, ok := s.deps.Registry.Identity(ch); ok {
		if role, ok := s.deps.Registry.Role(id); ok && role == models.RoleCaptain {
			s.deps.Geo.SetOnline(id, false)
		}
	}
	s.deps.Registry.UnregisterChannel(ch)
	_ = ch.Close()
}
