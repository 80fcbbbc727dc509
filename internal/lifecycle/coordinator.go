// Package lifecycle drives a ride from quote to completion. All state
// changes for one ride are serialized behind a per-ride mutex, which is what
// upholds the at-most-one-assigned-captain invariant under concurrent
// confirmations.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/fare"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/observability"
	"github.com/example/ride-hail/internal/payments"
	"github.com/example/ride-hail/internal/storage"
)

// Socket event names, matching what clients already listen for.
const (
	EvNewRide       = "new-ride"
	EvRideConfirmed = "ride-confirmed"
	EvRideStarted   = "ride-started"
	EvRideEnded     = "ride-ended"
	EvRideCancelled = "ride-cancelled"
)

// Notifier delivers lifecycle events; offline recipients are dropped.
type Notifier interface {
	Notify(identity, event string, payload any)
	Broadcast(ids []string, event string, payload any)
}

// Ranker supplies the eligible captains for an offer, best first.
type Ranker interface {
	Rank(pickup models.Coord, vehicle models.VehicleType, exclude map[string]bool) []models.Driver
}

type Coordinator struct {
	Store    storage.RideStore
	Fares    fare.Estimator
	Quotes   *fare.QuoteCache
	Rank     Ranker
	Notify   Notifier
	Payments payments.Gateway     // optional
	Riders   storage.AccountStore // optional, needed for payment holds
	Logger   *slog.Logger

	locks sync.Map // ride id -> *sync.Mutex

	busyMu sync.Mutex
	busy   map[string]string // captain id -> ride id they are serving
}

func NewCoordinator(store storage.RideStore, fares fare.Estimator, quotes *fare.QuoteCache, rank Ranker, notify Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		Store:  store,
		Fares:  fares,
		Quotes: quotes,
		Rank:   rank,
		Notify: notify,
		Logger: logger,
		busy:   make(map[string]string),
	}
}

// lock serializes transitions for one ride identity. Transitions for
// different rides proceed in parallel.
func (c *Coordinator) lock(rideID string) func() {
	v, _ := c.locks.LoadOrStore(rideID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Quote prices the route and caches the result so Create can snapshot it.
func (c *Coordinator) Quote(ctx context.Context, pickup, destination string) (*models.Quote, error) {
	start := time.Now()
	q, err := c.Fares.Estimate(ctx, pickup, destination)
	if err != nil {
		return nil, err
	}
	q.CreatedAt = time.Now()
	c.Quotes.Put(q)
	observability.QuoteLatency.Observe(time.Since(start).Seconds())
	return q, nil
}

// Create turns a live quote into a REQUESTED ride and fans the offer out to
// eligible captains. The quoted fare for the chosen class is snapshotted
// into the ride and never recomputed.
func (c *Coordinator) Create(ctx context.Context, riderID, pickup, destination string, vehicleType models.VehicleType) (*models.Ride, error) {
	if !vehicleType.Valid() {
		return nil, apperr.Validationf("unknown vehicle type %q", vehicleType)
	}
	q, ok := c.Quotes.Get(pickup, destination)
	if !ok {
		return nil, apperr.Validationf("no current fare quote for this route, request a fare first")
	}
	amount, ok := q.Fares[vehicleType]
	if !ok {
		return nil, apperr.Validationf("quote has no fare for %q", vehicleType)
	}

	now := time.Now()
	ride := &models.Ride{
		ID:             uuid.NewString(),
		RiderID:        riderID,
		Pickup:         pickup,
		Destination:    destination,
		PickupLoc:      q.PickupLoc,
		DestinationLoc: q.DestLoc,
		VehicleType:    vehicleType,
		Fare:           amount,
		Status:         models.StatusRequested,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.Store.SaveRide(ctx, ride); err != nil {
		return nil, err
	}
	observability.RidesCreated.Inc()

	c.holdPayment(ctx, ride)
	c.fanOutOffer(ride)
	return ride, nil
}

func (c *Coordinator) fanOutOffer(ride *models.Ride) {
	cands := c.Rank.Rank(ride.PickupLoc, ride.VehicleType, c.busySnapshot())
	if len(cands) == 0 {
		c.Logger.Warn("no captains available for offer", "ride_id", ride.ID, "vehicle", ride.VehicleType)
		return
	}
	ids := make([]string, 0, len(cands))
	for _, d := range cands {
		ids = append(ids, d.ID)
	}
	c.Notify.Broadcast(ids, EvNewRide, ride)
	observability.OffersSent.Add(float64(len(ids)))
	c.Logger.Info("offer fanned out", "ride_id", ride.ID, "captains", len(ids))
}

// Confirm assigns the first captain to claim the ride. Later confirmations
// hit the conflict path and trigger no notification.
func (c *Coordinator) Confirm(ctx context.Context, rideID, captainID string) (*models.Ride, error) {
	unlock := c.lock(rideID)
	defer unlock()

	ride, err := c.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	// terminal rides report the dead state, not a lost race
	if ride.Status.Terminal() {
		return nil, apperr.Transitionf("event %q not allowed in state %q", EventConfirm, ride.Status)
	}
	if ride.CaptainID != "" {
		return nil, apperr.Conflictf("ride %s already assigned", rideID)
	}
	next, err := Next(ride.Status, EventConfirm)
	if err != nil {
		return nil, err
	}

	ride.CaptainID = captainID
	ride.Status = next
	if err := c.Store.UpdateRide(ctx, ride); err != nil {
		return nil, err
	}
	c.setBusy(captainID, rideID)

	c.Notify.Notify(ride.RiderID, EvRideConfirmed, ride)
	c.Logger.Info("ride confirmed", "ride_id", rideID, "captain_id", captainID)
	return ride, nil
}

// Start moves an assigned ride into progress. Only the assigned captain
// may start it.
func (c *Coordinator) Start(ctx context.Context, rideID, captainID string) (*models.Ride, error) {
	unlock := c.lock(rideID)
	defer unlock()

	ride, err := c.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.CaptainID != captainID {
		return nil, apperr.Conflictf("ride %s is not assigned to this captain", rideID)
	}
	next, err := Next(ride.Status, EventStart)
	if err != nil {
		return nil, err
	}

	ride.Status = next
	if err := c.Store.UpdateRide(ctx, ride); err != nil {
		return nil, err
	}
	c.Notify.Notify(ride.RiderID, EvRideStarted, ride)
	c.Logger.Info("ride started", "ride_id", rideID)
	return ride, nil
}

// Finish completes the ride, captures the payment hold and releases the
// captain for new offers.
func (c *Coordinator) Finish(ctx context.Context, rideID, captainID string) (*models.Ride, error) {
	unlock := c.lock(rideID)
	defer unlock()

	ride, err := c.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.CaptainID != captainID {
		return nil, apperr.Conflictf("ride %s is not assigned to this captain", rideID)
	}
	next, err := Next(ride.Status, EventFinish)
	if err != nil {
		return nil, err
	}

	ride.Status = next
	if err := c.Store.UpdateRide(ctx, ride); err != nil {
		return nil, err
	}
	c.clearBusy(captainID)
	observability.RidesCompleted.Inc()

	if c.Payments != nil && ride.PaymentIntentID != "" {
		if err := c.Payments.Capture(ctx, ride.PaymentIntentID); err != nil {
			c.Logger.Error("payment capture failed", "ride_id", rideID, "error", err)
		}
	}
	c.Notify.Notify(ride.RiderID, EvRideEnded, ride)
	c.Logger.Info("ride completed", "ride_id", rideID, "fare", ride.Fare)
	return ride, nil
}

// Cancel ends a ride before completion and tells the other party. Riders
// and the assigned captain may cancel; nobody else.
func (c *Coordinator) Cancel(ctx context.Context, rideID, by string) (*models.Ride, error) {
	unlock := c.lock(rideID)
	defer unlock()

	ride, err := c.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if by != ride.RiderID && by != ride.CaptainID {
		return nil, apperr.Conflictf("only ride participants can cancel")
	}
	next, err := Next(ride.Status, EventCancel)
	if err != nil {
		return nil, err
	}

	ride.Status = next
	if err := c.Store.UpdateRide(ctx, ride); err != nil {
		return nil, err
	}
	if ride.CaptainID != "" {
		c.clearBusy(ride.CaptainID)
	}
	observability.RidesCancelled.Inc()

	if c.Payments != nil && ride.PaymentIntentID != "" {
		if err := c.Payments.Cancel(ctx, ride.PaymentIntentID); err != nil {
			c.Logger.Error("payment release failed", "ride_id", rideID, "error", err)
		}
	}
	// notify whichever party did not initiate
	if by == ride.RiderID {
		if ride.CaptainID != "" {
			c.Notify.Notify(ride.CaptainID, EvRideCancelled, ride)
		}
	} else {
		c.Notify.Notify(ride.RiderID, EvRideCancelled, ride)
	}
	c.Logger.Info("ride cancelled", "ride_id", rideID, "by", by)
	return ride, nil
}

// Get loads a ride for a participant.
func (c *Coordinator) Get(ctx context.Context, rideID, requesterID string) (*models.Ride, error) {
	ride, err := c.Store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if requesterID != ride.RiderID && requesterID != ride.CaptainID {
		return nil, apperr.NotFoundf("ride %s not found", rideID)
	}
	return ride, nil
}

// holdPayment places a manual-capture hold for the quoted fare against the
// rider's saved payment customer. Riders without one ride cash-only, no
// hold. Failures are logged, never fatal to ride creation.
func (c *Coordinator) holdPayment(ctx context.Context, ride *models.Ride) {
	if c.Payments == nil || c.Riders == nil {
		return
	}
	rider, err := c.Riders.AccountByID(ctx, ride.RiderID)
	if err != nil {
		c.Logger.Warn("rider lookup for payment hold failed", "ride_id", ride.ID, "error", err)
		return
	}
	if rider.StripeCustomerID == "" {
		return
	}
	id, err := c.Payments.Hold(ctx, ride.Fare, "cop", rider.StripeCustomerID)
	if err != nil {
		c.Logger.Warn("payment hold failed", "ride_id", ride.ID, "error", err)
		return
	}
	ride.PaymentIntentID = id
	if err := c.Store.UpdateRide(ctx, ride); err != nil {
		c.Logger.Error("saving payment intent failed", "ride_id", ride.ID, "error", err)
	}
}

func (c *Coordinator) setBusy(captainID, rideID string) {
	c.busyMu.Lock()
	c.busy[captainID] = rideID
	c.busyMu.Unlock()
}

func (c *Coordinator) clearBusy(captainID string) {
	c.busyMu.Lock()
	delete(c.busy, captainID)
	c.busyMu.Unlock()
}

func (c *Coordinator) busySnapshot() map[string]bool {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	out := make(map[string]bool, len(c.busy))
	for id := range c.busy {
		out[id] = true
	}
	return out
}
