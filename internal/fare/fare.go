// Package fare prices a pickup/destination pair per vehicle class.
package fare

import (
	"context"
	"math"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/eta"
	"github.com/example/ride-hail/internal/geo"
	"github.com/example/ride-hail/internal/maps"
	"github.com/example/ride-hail/internal/models"
)

// Estimator is what the lifecycle coordinator depends on: one call per
// quote, pure with respect to ride state.
type Estimator interface {
	Estimate(ctx context.Context, pickup, destination string) (*models.Quote, error)
}

// Rate is the pricing table entry for one vehicle class. Amounts are COP.
type Rate struct {
	Base      float64
	PerKm     float64
	PerMinute float64
}

// DefaultRates covers the three vehicle classes the product offers.
func DefaultRates() map[models.VehicleType]Rate {
	return map[models.VehicleType]Rate{
		models.VehicleCar:  {Base: 4000, PerKm: 1800, PerMinute: 250},
		models.VehicleAuto: {Base: 3000, PerKm: 1300, PerMinute: 200},
		models.VehicleMoto: {Base: 2000, PerKm: 900, PerMinute: 150},
	}
}

// Service computes quotes by geocoding both addresses, estimating route
// duration (OSRM when configured, haversine fallback otherwise) and applying
// the pricing table.
type Service struct {
	Geocoder        maps.Client
	Router          eta.Client // optional
	Rates           map[models.VehicleType]Rate
	DefaultSpeedMps float64
}

func (s *Service) Estimate(ctx context.Context, pickup, destination string) (*models.Quote, error) {
	if pickup == "" || destination == "" {
		return nil, apperr.Validationf("pickup and destination are required")
	}
	from, err := s.Geocoder.Geocode(ctx, pickup)
	if err != nil {
		return nil, err
	}
	to, err := s.Geocoder.Geocode(ctx, destination)
	if err != nil {
		return nil, err
	}

	distanceM := geo.Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
	durationSec := eta.EstimateSeconds(from, to, s.DefaultSpeedMps)
	if s.Router != nil {
		if v, err := s.Router.EstimateSeconds(from, to); err == nil {
			durationSec = v
		}
	}

	rates := s.Rates
	if rates == nil {
		rates = DefaultRates()
	}
	fares := make(map[models.VehicleType]int64, len(rates))
	for vt, r := range rates {
		fares[vt] = price(r, distanceM, durationSec)
	}
	return &models.Quote{
		Pickup:      pickup,
		Destination: destination,
		PickupLoc:   from,
		DestLoc:     to,
		Fares:       fares,
	}, nil
}

// price rounds up to the next 100 COP so quotes look like street prices.
func price(r Rate, distanceM, durationSec float64) int64 {
	raw := r.Base + r.PerKm*distanceM/1000 + r.PerMinute*durationSec/60
	return int64(math.Ceil(raw/100) * 100)
}
