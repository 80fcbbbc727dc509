// Package accounts covers rider and captain registration, login and
// profile maintenance.
package accounts

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/storage"
)

type Service struct {
	Store  storage.AccountStore
	Tokens TokenIssuer
}

type TokenIssuer interface {
	Issue(accountID string, role models.Role) (string, error)
}

type RegisterRequest struct {
	Email     string          `json:"email"`
	Password  string          `json:"password"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Vehicle   *models.Vehicle `json:"vehicle,omitempty"`
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, role models.Role, req RegisterRequest) (*models.Account, string, error) {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, "", apperr.Validationf("invalid email")
	}
	if len(req.Password) < 6 {
		return nil, "", apperr.Validationf("password must be at least 6 characters")
	}
	if req.FirstName == "" {
		return nil, "", apperr.Validationf("first name is required")
	}
	if role == models.RoleCaptain {
		if req.Vehicle == nil || req.Vehicle.Plate == "" || !req.Vehicle.Type.Valid() {
			return nil, "", apperr.Validationf("captain registration requires a vehicle with plate and type")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	now := time.Now()
	a := &models.Account{
		ID:           uuid.NewString(),
		Role:         role,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		Vehicle:      req.Vehicle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role == models.RoleCaptain {
		a.Rating = 5.0 // new captains start with a clean rating
	}
	if err := s.Store.CreateAccount(ctx, a); err != nil {
		return nil, "", err
	}
	token, err := s.Tokens.Issue(a.ID, a.Role)
	if err != nil {
		return nil, "", err
	}
	return a, token, nil
}

// Login checks credentials and returns the account with a fresh token.
// A wrong password and an unknown email both come back as auth errors so
// the response does not leak which accounts exist.
func (s *Service) Login(ctx context.Context, role models.Role, email, password string) (*models.Account, string, error) {
	a, err := s.Store.AccountByEmail(ctx, email, role)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, "", apperr.Authf("invalid email or password")
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, "", apperr.Authf("invalid email or password")
	}
	token, err := s.Tokens.Issue(a.ID, a.Role)
	if err != nil {
		return nil, "", err
	}
	return a, token, nil
}

func (s *Service) Profile(ctx context.Context, id string) (*models.Account, error) {
	return s.Store.AccountByID(ctx, id)
}

type ProfileUpdate struct {
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	PaymentCustomerID string          `json:"paymentCustomerId"`
	Vehicle           *models.Vehicle `json:"vehicle,omitempty"`
}

func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.Account, error) {
	a, err := s.Store.AccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != "" {
		a.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		a.LastName = upd.LastName
	}
	if upd.PaymentCustomerID != "" {
		a.StripeCustomerID = upd.PaymentCustomerID
	}
	if upd.Vehicle != nil {
		if a.Role != models.RoleCaptain {
			return nil, apperr.Validationf("only captains have a vehicle")
		}
		if !upd.Vehicle.Type.Valid() {
			return nil, apperr.Validationf("unknown vehicle type %q", upd.Vehicle.Type)
		}
		a.Vehicle = upd.Vehicle
	}
	if err := s.Store.UpdateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
