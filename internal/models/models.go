package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Role distinguishes the two participant kinds on the realtime channel.
// The wire values match what clients send in the join event.
type Role string

const (
	RoleRider   Role = "user"
	RoleCaptain Role = "captain"
)

type VehicleType string

const (
	VehicleCar  VehicleType = "car"
	VehicleAuto VehicleType = "auto"
	VehicleMoto VehicleType = "moto"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCar, VehicleAuto, VehicleMoto:
		return true
	}
	return false
}

type RideStatus string

const (
	StatusQuoted         RideStatus = "QUOTED"
	StatusRequested      RideStatus = "REQUESTED"
	StatusDriverAssigned RideStatus = "DRIVER_ASSIGNED"
	StatusInProgress     RideStatus = "IN_PROGRESS"
	StatusCompleted      RideStatus = "COMPLETED"
	StatusCancelled      RideStatus = "CANCELLED"
)

// Terminal reports whether a ride in this status accepts further events.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Driver struct {
	ID      string      `json:"id"`
	Loc     Coord       `json:"loc"`
	Rating  float64     `json:"rating"` // 0..5
	Vehicle VehicleType `json:"vehicle"`
	Online  bool        `json:"online"`
	Updated time.Time   `json:"updated"`
}

// Ride is the lifecycle record for a single trip. Fare is snapshotted from
// the quote at creation time and never recomputed.
type Ride struct {
	ID              string      `json:"id"`
	RiderID         string      `json:"rider_id"`
	CaptainID       string      `json:"captain_id,omitempty"`
	Pickup          string      `json:"pickup"`
	Destination     string      `json:"destination"`
	PickupLoc       Coord       `json:"pickup_loc"`
	DestinationLoc  Coord       `json:"destination_loc"`
	VehicleType     VehicleType `json:"vehicle_type"`
	Fare            int64       `json:"fare"` // COP, whole pesos
	Status          RideStatus  `json:"status"`
	PaymentIntentID string      `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Quote holds priced options for a pickup/destination pair. Valid only for
// the create request that follows it; expiry is enforced by the quote cache.
type Quote struct {
	Pickup      string                `json:"pickup"`
	Destination string                `json:"destination"`
	PickupLoc   Coord                 `json:"-"`
	DestLoc     Coord                 `json:"-"`
	Fares       map[VehicleType]int64 `json:"fares"`
	CreatedAt   time.Time             `json:"created_at"`
}

type Vehicle struct {
	Plate    string      `json:"plate"`
	Color    string      `json:"color"`
	Capacity int         `json:"capacity"`
	Type     VehicleType `json:"vehicleType"`
}

// Account is a rider or captain identity. PasswordHash is a bcrypt digest.
type Account struct {
	ID               string    `json:"id"`
	Role             Role      `json:"role"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	PasswordHash     string    `json:"-"`
	Vehicle          *Vehicle  `json:"vehicle,omitempty"` // captains only
	Rating           float64   `json:"rating,omitempty"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
