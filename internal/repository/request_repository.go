package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeshare/bloodlink-api/internal/models"
)

const requestColumns = `id, requester_id, blood_group, units_needed, hospital, location_label, location_lat, location_lng, urgency, reason, status, created_at, updated_at, fulfilled_at`

// RequestRepository manages persistence for blood requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// List returns requests matching filters along with total count, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.BloodRequest, int, error) {
	base := "FROM blood_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.BloodGroup != nil {
		conditions = append(conditions, fmt.Sprintf("blood_group = $%d", len(args)+1))
		args = append(args, *filter.BloodGroup)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.LocationLabel != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(location_label) = LOWER($%d)", len(args)+1))
		args = append(args, filter.LocationLabel)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", requestColumns, base, size, offset)
	var requests []models.BloodRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	return requests, total, nil
}

// FindEligible returns pending requests matching a donor's blood group,
// excluding the donor's own requests, newest first. When LocationLabel is set
// the predicate includes exact (case-insensitive) label equality; radius-based
// matching leaves it empty and filters on coordinates in the service layer.
func (r *RequestRepository) FindEligible(ctx context.Context, filter models.EligibilityFilter) ([]models.BloodRequest, int, error) {
	base := "FROM blood_requests WHERE status = $1 AND blood_group = $2 AND requester_id <> $3"
	args := []interface{}{models.RequestPending, filter.BloodGroup, filter.ExcludeUserID}

	if filter.LocationLabel != "" {
		base += fmt.Sprintf(" AND LOWER(location_label) = LOWER($%d)", len(args)+1)
		args = append(args, filter.LocationLabel)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", requestColumns, base, size, offset)
	var requests []models.BloodRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("find eligible requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count eligible requests: %w", err)
	}

	return requests, total, nil
}

// FindByID fetches a request by ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.BloodRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM blood_requests WHERE id = $1", requestColumns)
	var request models.BloodRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, request *models.BloodRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	request.Status = models.RequestPending

	const query = `INSERT INTO blood_requests (id, requester_id, blood_group, units_needed, hospital, location_label, location_lat, location_lng, urgency, reason, status, created_at, updated_at)
		VALUES (:id, :requester_id, :blood_group, :units_needed, :hospital, :location_label, :location_lat, :location_lng, :urgency, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// fulfill transitions a pending request to fulfilled, stamping fulfilled_at.
// Returns false when the request was not pending (zero rows updated), which
// is how concurrent completions lose the race. Only reachable through
// donation completion, always inside its transaction.
func fulfill(ctx context.Context, e sqlx.ExecerContext, id string, now time.Time) (bool, error) {
	const query = `UPDATE blood_requests SET status = $2, fulfilled_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := e.ExecContext(ctx, query, id, models.RequestFulfilled, now, models.RequestPending)
	if err != nil {
		return false, fmt.Errorf("fulfill request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fulfill request rows: %w", err)
	}
	return affected == 1, nil
}

// Cancel transitions a pending request to cancelled. fulfilled_at stays null.
func (r *RequestRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `UPDATE blood_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.RequestCancelled, now, models.RequestPending)
	if err != nil {
		return false, fmt.Errorf("cancel request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel request rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a request permanently. Donation rows keep their request_id
// reference; history is retained rather than cascaded.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM blood_requests WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}
