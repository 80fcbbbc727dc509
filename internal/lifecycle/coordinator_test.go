package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/fare"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/storage"
)

type fakeEstimator struct {
	fares map[models.VehicleType]int64
	err   error
}

func (f *fakeEstimator) Estimate(ctx context.Context, pickup, destination string) (*models.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Quote{
		Pickup:      pickup,
		Destination: destination,
		PickupLoc:   models.Coord{Lat: 7.81, Lon: -72.44},
		DestLoc:     models.Coord{Lat: 7.85, Lon: -72.47},
		Fares:       f.fares,
	}, nil
}

type fakeRanker struct{ drivers []models.Driver }

func (f *fakeRanker) Rank(pickup models.Coord, vehicle models.VehicleType, exclude map[string]bool) []models.Driver {
	out := make([]models.Driver, 0, len(f.drivers))
	for _, d := range f.drivers {
		if !exclude[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

type sent struct {
	identity string
	event    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeNotifier) Notify(identity, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{identity, event})
}

func (f *fakeNotifier) Broadcast(ids []string, event string, payload any) {
	for _, id := range ids {
		f.Notify(id, event, payload)
	}
}

func (f *fakeNotifier) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.event == event {
			n++
		}
	}
	return n
}

func newTestCoordinator(t *testing.T, notifier *fakeNotifier) *Coordinator {
	t.Helper()
	est := &fakeEstimator{fares: map[models.VehicleType]int64{
		models.VehicleMoto: 8000,
		models.VehicleCar:  15000,
	}}
	ranker := &fakeRanker{drivers: []models.Driver{
		{ID: "cap-x", Online: true, Vehicle: models.VehicleMoto},
		{ID: "cap-y", Online: true, Vehicle: models.VehicleMoto},
	}}
	return NewCoordinator(storage.NewMemoryStore(), est, fare.NewQuoteCache(time.Minute), ranker, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func createRequestedRide(t *testing.T, c *Coordinator) *models.Ride {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Quote(ctx, "A", "B"); err != nil {
		t.Fatalf("quote: %v", err)
	}
	ride, err := c.Create(ctx, "rider-1", "A", "B", models.VehicleMoto)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return ride
}

func TestCreateSnapshotsQuotedFare(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(t, n)
	ride := createRequestedRide(t, c)

	if ride.Status != models.StatusRequested {
		t.Fatalf("expected REQUESTED, got %s", ride.Status)
	}
	if ride.Fare != 8000 {
		t.Fatalf("expected fare 8000 from quote, got %d", ride.Fare)
	}
	if got := n.count(EvNewRide); got != 2 {
		t.Fatalf("expected offer fanned out to 2 captains, got %d", got)
	}

	// fare must survive the rest of the lifecycle untouched
	ctx := context.Background()
	if _, err := c.Confirm(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := c.Start(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := c.Finish(ctx, ride.ID, "cap-x")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Fare != 8000 {
		t.Fatalf("fare changed during lifecycle: %d", done.Fare)
	}
}

func TestCreateWithoutQuoteFails(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	_, err := c.Create(context.Background(), "rider-1", "A", "B", models.VehicleMoto)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConcurrentConfirmOnlyOneWins(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(t, n)
	ride := createRequestedRide(t, c)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = c.Confirm(context.Background(), ride.ID, "cap-"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful confirm, got %d", wins)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if got := n.count(EvRideConfirmed); got != 1 {
		t.Fatalf("rider must be notified exactly once, got %d", got)
	}
}

func TestStartRequiresAssignedCaptain(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	ride := createRequestedRide(t, c)
	ctx := context.Background()

	// cannot start before a captain is assigned
	if _, err := c.Start(ctx, ride.ID, "cap-x"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for unassigned captain, got %v", err)
	}

	if _, err := c.Confirm(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := c.Start(ctx, ride.ID, "cap-y"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for wrong captain, got %v", err)
	}
	if _, err := c.Start(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("assigned captain should start the ride: %v", err)
	}
}

func TestFinishRequiresInProgress(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	ride := createRequestedRide(t, c)
	ctx := context.Background()

	if _, err := c.Confirm(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// DRIVER_ASSIGNED does not accept finish
	if _, err := c.Finish(ctx, ride.ID, "cap-x"); apperr.KindOf(err) != apperr.KindTransition {
		t.Fatalf("expected transition error, got %v", err)
	}
	got, err := c.Store.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusDriverAssigned {
		t.Fatalf("rejected transition must not mutate state, got %s", got.Status)
	}
}

func TestConfirmOnCompletedRideRejected(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	ride := createRequestedRide(t, c)
	ctx := context.Background()

	for _, step := range []func() error{
		func() error { _, err := c.Confirm(ctx, ride.ID, "cap-x"); return err },
		func() error { _, err := c.Start(ctx, ride.ID, "cap-x"); return err },
		func() error { _, err := c.Finish(ctx, ride.ID, "cap-x"); return err },
	} {
		if err := step(); err != nil {
			t.Fatalf("lifecycle step: %v", err)
		}
	}

	_, err := c.Confirm(ctx, ride.ID, "cap-y")
	if apperr.KindOf(err) != apperr.KindTransition {
		t.Fatalf("expected transition error on completed ride, got %v", err)
	}
	got, _ := c.Store.GetRide(ctx, ride.ID)
	if got.Status != models.StatusCompleted || got.CaptainID != "cap-x" {
		t.Fatalf("completed ride mutated: %+v", got)
	}
}

func TestCancelNotifiesOtherParty(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(t, n)
	ride := createRequestedRide(t, c)
	ctx := context.Background()

	if _, err := c.Confirm(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := c.Cancel(ctx, ride.ID, ride.RiderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	found := false
	for _, m := range n.msgs {
		if m.event == EvRideCancelled && m.identity == "cap-x" {
			found = true
		}
		if m.event == EvRideCancelled && m.identity == ride.RiderID {
			t.Fatalf("initiator must not be notified of own cancel")
		}
	}
	if !found {
		t.Fatalf("assigned captain was not notified of cancel")
	}
}

func TestCancelByStrangerRejected(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	ride := createRequestedRide(t, c)
	_, err := c.Cancel(context.Background(), ride.ID, "someone-else")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCancelInProgressRejected(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	ride := createRequestedRide(t, c)
	ctx := context.Background()
	if _, err := c.Confirm(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := c.Start(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Cancel(ctx, ride.ID, ride.RiderID); apperr.KindOf(err) != apperr.KindTransition {
		t.Fatalf("expected transition error cancelling in-progress ride, got %v", err)
	}
}

func TestBusyCaptainExcludedFromNextOffer(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(t, n)
	ctx := context.Background()

	first := createRequestedRide(t, c)
	if _, err := c.Confirm(ctx, first.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// second ride while cap-x is busy: offer goes only to cap-y
	before := n.count(EvNewRide)
	if _, err := c.Quote(ctx, "C", "D"); err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := c.Create(ctx, "rider-2", "C", "D", models.VehicleMoto); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := n.count(EvNewRide) - before; got != 1 {
		t.Fatalf("expected 1 offer while cap-x busy, got %d", got)
	}
}

type fakeGateway struct {
	mu        sync.Mutex
	holds     []string
	captured  []string
	cancelled []string
}

func (f *fakeGateway) Hold(ctx context.Context, amount int64, currency, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds = append(f.holds, customerID)
	return "pi_1", nil
}

func (f *fakeGateway) Capture(ctx context.Context, paymentIntentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, paymentIntentID)
	return nil
}

func (f *fakeGateway) Cancel(ctx context.Context, paymentIntentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, paymentIntentID)
	return nil
}

func TestHoldUsesRiderPaymentCustomer(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	store := storage.NewMemoryStore()
	gw := &fakeGateway{}
	c.Store = store
	c.Riders = store
	c.Payments = gw

	ctx := context.Background()
	err := store.CreateAccount(ctx, &models.Account{
		ID: "rider-1", Role: models.RoleRider, Email: "r@example.com",
		StripeCustomerID: "cus_123",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	ride := createRequestedRide(t, c)
	if len(gw.holds) != 1 || gw.holds[0] != "cus_123" {
		t.Fatalf("hold should carry the rider's customer id, got %v", gw.holds)
	}
	if ride.PaymentIntentID != "pi_1" {
		t.Fatalf("payment intent not recorded on the ride, got %q", ride.PaymentIntentID)
	}

	if _, err := c.Confirm(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := c.Start(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Finish(ctx, ride.ID, "cap-x"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(gw.captured) != 1 || gw.captured[0] != "pi_1" {
		t.Fatalf("completed ride should capture its hold, got %v", gw.captured)
	}
}

func TestHoldSkippedWithoutPaymentCustomer(t *testing.T) {
	c := newTestCoordinator(t, &fakeNotifier{})
	store := storage.NewMemoryStore()
	gw := &fakeGateway{}
	c.Store = store
	c.Riders = store
	c.Payments = gw

	ctx := context.Background()
	err := store.CreateAccount(ctx, &models.Account{
		ID: "rider-1", Role: models.RoleRider, Email: "r@example.com",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	ride := createRequestedRide(t, c)
	if len(gw.holds) != 0 {
		t.Fatalf("rider without a payment customer must not get a hold, got %v", gw.holds)
	}
	if ride.PaymentIntentID != "" {
		t.Fatalf("unexpected payment intent %q", ride.PaymentIntentID)
	}
}
