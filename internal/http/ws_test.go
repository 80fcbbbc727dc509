package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/example/ride-hail/internal/models"
)

type fakeWSChannel struct {
	events []string
	closed bool
}

func (f *fakeWSChannel) Send(event string, payload any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeWSChannel) Close() error {
	f.closed = true
	return nil
}

func frame(t *testing.T, event string, data any) inbound {
	t.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return inbound{Event: event, Data: b}
}

func joinCaptain(t *testing.T, s *Server, ch *fakeWSChannel, state *connState, id string) {
	t.Helper()
	s.dispatchWS(ch, state, frame(t, "join", map[string]any{"userId": id, "userType": "captain"}))
}

func locationFrame(t *testing.T, lat, lng float64) inbound {
	t.Helper()
	return frame(t, "update-location-captain", map[string]any{
		"userId":   "cap-1",
		"location": map[string]float64{"ltd": lat, "lng": lng},
	})
}

func TestJoinRegistersParticipant(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{}
	joinCaptain(t, s, ch, state, "cap-1")

	got, ok := s.deps.Registry.Lookup("cap-1")
	if !ok {
		t.Fatalf("captain not registered after join")
	}
	if got.(*fakeWSChannel) != ch {
		t.Fatalf("wrong channel registered")
	}
}

func TestLocationReportUpdatesGeo(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{vehicle: models.VehicleMoto}
	joinCaptain(t, s, ch, state, "cap-1")

	s.dispatchWS(ch, state, locationFrame(t, 7.81, -72.44))

	drivers := s.deps.Geo.Nearby(7.81, -72.44, 10)
	if len(drivers) != 1 || drivers[0].ID != "cap-1" {
		t.Fatalf("location not indexed: %v", drivers)
	}
}

func TestLocationReportRateLimited(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{}
	joinCaptain(t, s, ch, state, "cap-1")

	s.dispatchWS(ch, state, locationFrame(t, 1, 1))
	first := state.lastReport

	// a second report inside the minimum interval is dropped
	s.dispatchWS(ch, state, locationFrame(t, 2, 2))
	if !state.lastReport.Equal(first) {
		t.Fatalf("report inside the minimum interval was accepted")
	}
	drivers := s.deps.Geo.Nearby(1, 1, 10)
	if len(drivers) != 1 || drivers[0].Loc.Lat != 1 {
		t.Fatalf("dropped report still mutated the index: %v", drivers)
	}
}

func TestLocationFromUnjoinedChannelDropped(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{}
	// no join first
	s.dispatchWS(ch, state, locationFrame(t, 1, 1))
	if len(s.deps.Geo.Nearby(1, 1, 10)) != 0 {
		t.Fatalf("report from unjoined channel reached the index")
	}
}

func TestLocationAfterDisconnectDropped(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{}
	joinCaptain(t, s, ch, state, "cap-1")
	s.disconnect(ch)

	s.dispatchWS(ch, state, locationFrame(t, 1, 1))
	if len(s.deps.Geo.Nearby(1, 1, 10)) != 0 {
		t.Fatalf("report after disconnect reached the index")
	}
	if !ch.closed {
		t.Fatalf("disconnect should close the channel")
	}
}

func TestLocationFromSupersededChannelDropped(t *testing.T) {
	s := newTestServer(t)
	oldCh := &fakeWSChannel{}
	oldState := &connState{}
	joinCaptain(t, s, oldCh, oldState, "cap-1")

	// same captain reconnects on a new channel
	newCh := &fakeWSChannel{}
	newState := &connState{}
	joinCaptain(t, s, newCh, newState, "cap-1")

	s.dispatchWS(oldCh, oldState, locationFrame(t, 9, 9))
	if len(s.deps.Geo.Nearby(9, 9, 10)) != 0 {
		t.Fatalf("superseded channel's report reached the index")
	}
	if !oldCh.closed {
		t.Fatalf("superseded channel should have been closed on re-join")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{}
	s.dispatchWS(ch, state, frame(t, "mystery-event", map[string]any{"x": 1}))
	// nothing to assert beyond not panicking and no registration
	if _, ok := s.deps.Registry.Identity(ch); ok {
		t.Fatalf("unknown event must not register the channel")
	}
}

func TestRiderCannotReportLocation(t *testing.T) {
	s := newTestServer(t)
	ch := &fakeWSChannel{}
	state := &connState{}
	s.dispatchWS(ch, state, frame(t, "join", map[string]any{"userId": "rider-1", "userType": "user"}))
	s.dispatchWS(ch, state, locationFrame(t, 3, 3))
	if len(s.deps.Geo.Nearby(3, 3, 10)) != 0 {
		t.Fatalf("rider location report reached the index")
	}
}
