package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
)

const donationColumns = `id, donor_id, request_id, status, created_at, updated_at, resolved_at`

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (donor_id, request_id) WHERE status = 'pending'.
const uniqueViolation = "23505"

// DonationRepository manages persistence for donation offers.
type DonationRepository struct {
	db *sqlx.DB
}

// NewDonationRepository constructs a DonationRepository.
func NewDonationRepository(db *sqlx.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// FindByID fetches a donation by ID.
func (r *DonationRepository) FindByID(ctx context.Context, id string) (*models.Donation, error) {
	query := fmt.Sprintf("SELECT %s FROM donations WHERE id = $1", donationColumns)
	var donation models.Donation
	if err := r.db.GetContext(ctx, &donation, query, id); err != nil {
		return nil, err
	}
	return &donation, nil
}

// HasPendingOffer reports whether the donor already has a pending offer on
// the request. A pre-check only; the unique index is the authority under
// concurrent creates.
func (r *DonationRepository) HasPendingOffer(ctx context.Context, donorID, requestID string) (bool, error) {
	const query = `SELECT 1 FROM donations WHERE donor_id = $1 AND request_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, donorID, requestID, models.DonationPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending offer: %w", err)
	}
	return true, nil
}

// Create inserts a new pending donation offer. A unique-index violation is
// surfaced as ErrDuplicateOffer so that exactly one of two racing creates
// survives.
func (r *DonationRepository) Create(ctx context.Context, donation *models.Donation) error {
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = now
	}
	donation.UpdatedAt = now
	donation.Status = models.DonationPending

	const query = `INSERT INTO donations (id, donor_id, request_id, status, created_at, updated_at)
		VALUES (:id, :donor_id, :request_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, donation); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return appErrors.ErrDuplicateOffer
		}
		return fmt.Errorf("create donation: %w", err)
	}
	return nil
}

// CompleteAndFulfill transitions a pending donation to completed and its
// parent request to fulfilled in one transaction. Either both rows move or
// neither does. The booleans report which conditional update matched so the
// caller can distinguish an already-resolved donation from an already-closed
// request.
func (r *DonationRepository) CompleteAndFulfill(ctx context.Context, donationID, requestID string, now time.Time) (donationOK, requestOK bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("begin completion tx: %w", err)
	}
	defer func() {
		if err != nil || !donationOK || !requestOK {
			_ = tx.Rollback()
		}
	}()

	const donationQuery = `UPDATE donations SET status = $2, resolved_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := tx.ExecContext(ctx, donationQuery, donationID, models.DonationCompleted, now, models.DonationPending)
	if err != nil {
		return false, false, fmt.Errorf("complete donation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("complete donation rows: %w", err)
	}
	donationOK = affected == 1
	if !donationOK {
		return false, false, nil
	}

	requestOK, err = fulfill(ctx, tx, requestID, now)
	if err != nil {
		return true, false, err
	}
	if !requestOK {
		return true, false, nil
	}

	if err = tx.Commit(); err != nil {
		return false, false, fmt.Errorf("commit completion tx: %w", err)
	}
	return true, true, nil
}

// Resolve transitions a pending donation to a terminal status (cancelled).
// Returns false when the donation was not pending.
func (r *DonationRepository) Resolve(ctx context.Context, id string, status models.DonationStatus, now time.Time) (bool, error) {
	const query = `UPDATE donations SET status = $2, resolved_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, now, models.DonationPending)
	if err != nil {
		return false, fmt.Errorf("resolve donation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve donation rows: %w", err)
	}
	return affected == 1, nil
}

// ListByDonor returns the donor's offers newest first, joined with a summary
// of each target request. Requests deleted by their owner appear as null
// summaries; offer history is retained.
func (r *DonationRepository) ListByDonor(ctx context.Context, donorID string, limit int) ([]models.DonationWithRequest, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT d.id, d.donor_id, d.request_id, d.status, d.created_at, d.updated_at, d.resolved_at,
		br.blood_group AS request_blood_group, br.units_needed AS request_units, br.status AS request_status, br.hospital AS request_hospital
		FROM donations d
		LEFT JOIN blood_requests br ON br.id = d.request_id
		WHERE d.donor_id = $1
		ORDER BY d.created_at DESC LIMIT %d`, limit)
	var donations []models.DonationWithRequest
	if err := r.db.SelectContext(ctx, &donations, query, donorID); err != nil {
		return nil, fmt.Errorf("list donations by donor: %w", err)
	}
	return donations, nil
}

// ListByRequest returns all offers on a request, newest first.
func (r *DonationRepository) ListByRequest(ctx context.Context, requestID string) ([]models.Donation, error) {
	query := fmt.Sprintf("SELECT %s FROM donations WHERE request_id = $1 ORDER BY created_at DESC", donationColumns)
	var donations []models.Donation
	if err := r.db.SelectContext(ctx, &donations, query, requestID); err != nil {
		return nil, fmt.Errorf("list donations by request: %w", err)
	}
	return donations, nil
}
