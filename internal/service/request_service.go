package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
)

// EventPublisher is the realtime transport collaborator: fire-and-forget
// broadcast of lifecycle transitions to connected sessions.
type EventPublisher interface {
	Publish(event models.Event)
}

type matchInvalidator interface {
	InvalidateMatches(ctx context.Context)
}

type requestRepository interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.BloodRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.BloodRequest, error)
	Create(ctx context.Context, request *models.BloodRequest) error
	Cancel(ctx context.Context, id string, now time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type requestDonationRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.Donation, error)
}

type requestUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateRequestRequest is the payload for opening a blood request.
type CreateRequestRequest struct {
	BloodGroup  models.BloodGroup   `json:"blood_group" validate:"required"`
	UnitsNeeded int                 `json:"units_needed" validate:"required,min=1"`
	Hospital    string              `json:"hospital" validate:"required,max=200"`
	Location    models.Location     `json:"location"`
	Urgency     models.UrgencyLevel `json:"urgency" validate:"required"`
	Reason      *string             `json:"reason" validate:"omitempty,max=1000"`
}

// RequestDonationView is the requester's view of one offer on their request.
// Donor contact details are exposed only once the offer completed.
type RequestDonationView struct {
	models.Donation
	DonorName    string              `json:"donor_name"`
	DonorContact *models.ContactCard `json:"donor_contact,omitempty"`
}

// RequestService governs the blood-request lifecycle: pending on create,
// fulfilled only through donation completion, cancelled or deleted only by
// the requester.
type RequestService struct {
	repo      requestRepository
	donations requestDonationRepository
	users     requestUserRepository
	matcher   matchInvalidator
	publisher EventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(repo requestRepository, donations requestDonationRepository, users requestUserRepository, matcher matchInvalidator, publisher EventPublisher, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		repo:      repo,
		donations: donations,
		users:     users,
		matcher:   matcher,
		publisher: publisher,
		validator: validate,
		logger:    logger,
	}
}

// Create opens a new pending request and announces it to connected sessions.
func (s *RequestService) Create(ctx context.Context, requesterID string, req CreateRequestRequest, originSession string) (*models.BloodRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !models.ValidBloodGroup(req.BloodGroup) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown blood group")
	}
	if !models.ValidUrgency(req.Urgency) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown urgency level")
	}
	req.Location.Label = strings.TrimSpace(req.Location.Label)
	if !req.Location.Complete() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "location requires a label or coordinates")
	}

	request := &models.BloodRequest{
		RequesterID:   requesterID,
		BloodGroup:    req.BloodGroup,
		UnitsNeeded:   req.UnitsNeeded,
		Hospital:      strings.TrimSpace(req.Hospital),
		LocationLabel: req.Location.Label,
		LocationLat:   req.Location.Lat,
		LocationLng:   req.Location.Lng,
		Urgency:       req.Urgency,
		Reason:        normalizeOptional(req.Reason),
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	if s.matcher != nil {
		s.matcher.InvalidateMatches(ctx)
	}
	if s.publisher != nil {
		s.publisher.Publish(models.Event{
			Type:            models.EventNewRequest,
			Payload:         request,
			OriginSessionID: originSession,
		})
	}

	return request, nil
}

// Get returns a request by id.
func (s *RequestService) Get(ctx context.Context, id string) (*models.BloodRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// List returns requests plus pagination data.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.BloodRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Cancel transitions a pending request to cancelled. Requester only.
func (s *RequestService) Cancel(ctx context.Context, id, actorID string) (*models.BloodRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may cancel this request")
	}

	ok, err := s.repo.Cancel(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer pending")
	}
	if s.matcher != nil {
		s.matcher.InvalidateMatches(ctx)
	}
	return s.Get(ctx, id)
}

// Delete removes a request permanently, in any status. Requester only.
// Historical donation offers keep their reference to the deleted request.
func (s *RequestService) Delete(ctx context.Context, id, actorID string) error {
	request, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if request.RequesterID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester may delete this request")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	if s.matcher != nil {
		s.matcher.InvalidateMatches(ctx)
	}
	return nil
}

// ListDonations returns the offers on a request for its owner. Donor contact
// details appear only on completed offers.
func (s *RequestService) ListDonations(ctx context.Context, requestID, actorID string) ([]RequestDonationView, error) {
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may view offers on this request")
	}

	donations, err := s.donations.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offers")
	}

	views := make([]RequestDonationView, 0, len(donations))
	for _, donation := range donations {
		view := RequestDonationView{Donation: donation}
		donor, err := s.users.FindByID(ctx, donation.DonorID)
		if err != nil {
			s.logger.Warn("failed to load donor for offer view", zap.String("donation_id", donation.ID), zap.Error(err))
			views = append(views, view)
			continue
		}
		view.DonorName = donor.Name
		if donation.Status == models.DonationCompleted {
			contact := donor.Contact()
			view.DonorContact = &contact
		}
		views = append(views, view)
	}
	return views, nil
}
