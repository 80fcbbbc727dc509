// Package matcher ranks nearby captains for a ride offer.
package matcher

import (
	"sort"

	"github.com/example/ride-hail/internal/eta"
	"github.com/example/ride-hail/internal/models"
)

type Geo interface {
	Nearby(lat, lon float64, limit int) []models.Driver
}

type Service struct {
	Geo             Geo
	DefaultSpeedMps float64
	TopN            int
	ETAClient       eta.Client // optional OSRM client
	ETACache        *eta.Cache // optional ETA cache
}

// Rank returns up to TopN online captains of the requested vehicle class
// near pickup, best first. Scoring favours low ETA, then high rating.
// Captains in exclude (already on a ride) are skipped.
func (s *Service) Rank(pickup models.Coord, vehicle models.VehicleType, exclude map[string]bool) []models.Driver {
	topN := s.TopN
	if topN <= 0 {
		topN = 10
	}
	// over-fetch so class filtering still leaves candidates
	cands := s.Geo.Nearby(pickup.Lat, pickup.Lon, topN*3)
	type scored struct {
		d    models.Driver
		cost float64
	}
	scoredList := make([]scored, 0, len(cands))
	for _, d := range cands {
		if !d.Online || d.Vehicle != vehicle || exclude[d.ID] {
			continue
		}
		etaSec := s.estimate(d.Loc, pickup)
		cost := etaSec + 30.0*(5.0-d.Rating) // cost = w1*eta + w2*(5 - rating)
		scoredList = append(scoredList, scored{d, cost})
	}
	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].cost < scoredList[j].cost })

	if len(scoredList) > topN {
		scoredList = scoredList[:topN]
	}
	out := make([]models.Driver, 0, len(scoredList))
	for _, sc := range scoredList {
		out = append(out, sc.d)
	}
	return out
}

func (s *Service) estimate(from, to models.Coord) float64 {
	if s.ETACache != nil {
		if v, ok := s.ETACache.Get(from, to); ok {
			return v
		}
	}
	if s.ETAClient != nil {
		if v, err := s.ETAClient.EstimateSeconds(from, to); err == nil {
			if s.ETACache != nil {
				s.ETACache.Set(from, to, v)
			}
			return v
		}
	}
	return eta.EstimateSeconds(from, to, s.DefaultSpeedMps)
}
