package geo

import (
	"testing"

	"github.com/example/ride-hail/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// one degree of longitude at the equator is ~111.3 km
	d := Haversine(0, 0, 0, 1)
	if d < 110000 || d > 112500 {
		t.Fatalf("expected ~111.3km, got %f", d)
	}
}

func TestNearbyOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.Driver{ID: "far", Loc: models.Coord{Lat: 1, Lon: 1}, Online: true})
	idx.Upsert(models.Driver{ID: "near", Loc: models.Coord{Lat: 0.01, Lon: 0.01}, Online: true})
	idx.Upsert(models.Driver{ID: "mid", Loc: models.Coord{Lat: 0.5, Lon: 0.5}, Online: true})

	out := idx.Nearby(0, 0, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2, got %d", len(out))
	}
	if out[0].ID != "near" || out[1].ID != "mid" {
		t.Fatalf("wrong order: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestNearbySkipsOffline(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.Driver{ID: "on", Online: true})
	idx.Upsert(models.Driver{ID: "off", Online: false})

	out := idx.Nearby(0, 0, 10)
	if len(out) != 1 || out[0].ID != "on" {
		t.Fatalf("offline driver leaked into results: %v", out)
	}
}

func TestSetOnline(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.Driver{ID: "d1", Online: true})
	idx.SetOnline("d1", false)
	if out := idx.Nearby(0, 0, 10); len(out) != 0 {
		t.Fatalf("driver should be offline, got %v", out)
	}
	// unknown id is a no-op
	idx.SetOnline("ghost", true)
}
