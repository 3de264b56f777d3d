package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeshare/bloodlink-api/internal/models"
)

const userColumns = `id, name, email, phone, password_hash, blood_group, location_label, location_lat, location_lng, active, last_donation_date, health_status, created_at, updated_at`

// UserRepository manages persistence for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID fetches a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE LOWER(email) = LOWER($1)", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmailOrPhone checks whether another account already uses the email
// or phone number.
func (r *UserRepository) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) OR phone = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email, phone); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check user email/phone: %w", err)
	}
	return true, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, email, phone, password_hash, blood_group, location_label, location_lat, location_lng, active, last_donation_date, health_status, created_at, updated_at)
		VALUES (:id, :name, :email, :phone, :password_hash, :blood_group, :location_label, :location_lat, :location_lng, :active, :last_donation_date, :health_status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update modifies an existing user's profile fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, email = :email, phone = :phone, blood_group = :blood_group, location_label = :location_label, location_lat = :location_lat, location_lng = :location_lng, active = :active, last_donation_date = :last_donation_date, health_status = :health_status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdateLocation sets only the structured location columns.
func (r *UserRepository) UpdateLocation(ctx context.Context, id string, loc models.Location) error {
	const query = `UPDATE users SET location_label = $2, location_lat = $3, location_lng = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, loc.Label, loc.Lat, loc.Lng, time.Now().UTC()); err != nil {
		return fmt.Errorf("update user location: %w", err)
	}
	return nil
}
