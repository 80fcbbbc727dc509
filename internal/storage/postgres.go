package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) SaveRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rides(id, rider_id, captain_id, pickup, destination, pickup_lat, pickup_lon, dest_lat, dest_lon, vehicle_type, fare, status, payment_intent_id, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		r.ID, r.RiderID, nullStr(r.CaptainID), r.Pickup, r.Destination,
		r.PickupLoc.Lat, r.PickupLoc.Lon, r.DestinationLoc.Lat, r.DestinationLoc.Lon,
		string(r.VehicleType), r.Fare, string(r.Status), nullStr(r.PaymentIntentID), r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, rider_id, COALESCE(captain_id,''), pickup, destination, pickup_lat, pickup_lon, dest_lat, dest_lon, vehicle_type, fare, status, COALESCE(payment_intent_id,''), created_at, updated_at
		 FROM rides WHERE id=$1`, id)
	var r models.Ride
	var vt, st string
	err := row.Scan(&r.ID, &r.RiderID, &r.CaptainID, &r.Pickup, &r.Destination,
		&r.PickupLoc.Lat, &r.PickupLoc.Lon, &r.DestinationLoc.Lat, &r.DestinationLoc.Lon,
		&vt, &r.Fare, &st, &r.PaymentIntentID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("ride %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	r.VehicleType = models.VehicleType(vt)
	r.Status = models.RideStatus(st)
	return &r, nil
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	r.UpdatedAt = time.Now()
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET captain_id=$1, status=$2, payment_intent_id=$3, updated_at=$4 WHERE id=$5`,
		nullStr(r.CaptainID), string(r.Status), nullStr(r.PaymentIntentID), r.UpdatedAt, r.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("ride %s not found", r.ID)
	}
	return nil
}

func (p *PostgresStore) CreateAccount(ctx context.Context, a *models.Account) error {
	var plate, color, vtype sql.NullString
	var capacity sql.NullInt64
	if a.Vehicle != nil {
		plate = sql.NullString{String: a.Vehicle.Plate, Valid: true}
		color = sql.NullString{String: a.Vehicle.Color, Valid: true}
		vtype = sql.NullString{String: string(a.Vehicle.Type), Valid: true}
		capacity = sql.NullInt64{Int64: int64(a.Vehicle.Capacity), Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO accounts(id, role, email, first_name, last_name, password_hash, vehicle_plate, vehicle_color, vehicle_capacity, vehicle_type, rating, stripe_customer_id, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, string(a.Role), a.Email, a.FirstName, a.LastName, a.PasswordHash,
		plate, color, capacity, vtype, a.Rating, nullStr(a.StripeCustomerID), a.CreatedAt, a.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperr.Conflictf("account %s already exists", a.Email)
	}
	return err
}

func (p *PostgresStore) AccountByEmail(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	return p.scanAccount(p.db.QueryRowContext(ctx, accountSelect+` WHERE email=$1 AND role=$2`, email, string(role)))
}

func (p *PostgresStore) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	return p.scanAccount(p.db.QueryRowContext(ctx, accountSelect+` WHERE id=$1`, id))
}

const accountSelect = `SELECT id, role, email, first_name, last_name, password_hash, vehicle_plate, vehicle_color, vehicle_capacity, vehicle_type, rating, COALESCE(stripe_customer_id,''), created_at, updated_at FROM accounts`

func (p *PostgresStore) scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var role string
	var plate, color, vtype sql.NullString
	var capacity sql.NullInt64
	err := row.Scan(&a.ID, &role, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash,
		&plate, &color, &capacity, &vtype, &a.Rating, &a.StripeCustomerID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("account not found")
	}
	if err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	if vtype.Valid {
		a.Vehicle = &models.Vehicle{
			Plate:    plate.String,
			Color:    color.String,
			Capacity: int(capacity.Int64),
			Type:     models.VehicleType(vtype.String),
		}
	}
	return &a, nil
}

func (p *PostgresStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	a.UpdatedAt = time.Now()
	var plate, color, vtype sql.NullString
	var capacity sql.NullInt64
	if a.Vehicle != nil {
		plate = sql.NullString{String: a.Vehicle.Plate, Valid: true}
		color = sql.NullString{String: a.Vehicle.Color, Valid: true}
		vtype = sql.NullString{String: string(a.Vehicle.Type), Valid: true}
		capacity = sql.NullInt64{Int64: int64(a.Vehicle.Capacity), Valid: true}
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET first_name=$1, last_name=$2, vehicle_plate=$3, vehicle_color=$4, vehicle_capacity=$5, vehicle_type=$6, rating=$7, updated_at=$8 WHERE id=$9`,
		a.FirstName, a.LastName, plate, color, capacity, vtype, a.Rating, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFoundf("account %s not found", a.ID)
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
