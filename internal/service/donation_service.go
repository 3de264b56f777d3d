package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
	"github.com/lifeshare/bloodlink-api/pkg/export"
)

type donationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Donation, error)
	HasPendingOffer(ctx context.Context, donorID, requestID string) (bool, error)
	Create(ctx context.Context, donation *models.Donation) error
	CompleteAndFulfill(ctx context.Context, donationID, requestID string, now time.Time) (bool, bool, error)
	Resolve(ctx context.Context, id string, status models.DonationStatus, now time.Time) (bool, error)
	ListByDonor(ctx context.Context, donorID string, limit int) ([]models.DonationWithRequest, error)
}

type donationRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.BloodRequest, error)
}

type donationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type notificationRecorder interface {
	Create(ctx context.Context, n *models.Notification) error
}

// ContactNotifier queues best-effort out-of-band delivery of the contact
// exchange. Failures never propagate to the completion flow.
type ContactNotifier interface {
	QueueContactExchange(result models.CompletionResult)
}

// DonationService governs the donation-offer state machine: offers start
// pending, the request owner completes or rejects them, the donor may
// withdraw, and completed/cancelled are terminal.
type DonationService struct {
	repo          donationRepository
	requests      donationRequestRepository
	users         donationUserRepository
	notifications notificationRecorder
	notifier      ContactNotifier
	matcher       matchInvalidator
	publisher     EventPublisher
	logger        *zap.Logger
	exportMaxRows int
}

// NewDonationService constructs a DonationService.
func NewDonationService(repo donationRepository, requests donationRequestRepository, users donationUserRepository, notifications notificationRecorder, notifier ContactNotifier, matcher matchInvalidator, publisher EventPublisher, logger *zap.Logger, exportMaxRows int) *DonationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exportMaxRows <= 0 {
		exportMaxRows = 1000
	}
	return &DonationService{
		repo:          repo,
		requests:      requests,
		users:         users,
		notifications: notifications,
		notifier:      notifier,
		matcher:       matcher,
		publisher:     publisher,
		logger:        logger,
		exportMaxRows: exportMaxRows,
	}
}

// Offer records a donor's pending offer on a request. At most one pending
// offer per (donor, request) pair may exist; the repository's unique index
// settles concurrent creates.
func (s *DonationService) Offer(ctx context.Context, donorID, requestID, originSession string) (*models.Donation, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blood request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer open for offers")
	}
	if request.RequesterID == donorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot offer on your own request")
	}

	exists, err := s.repo.HasPendingOffer(ctx, donorID, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing offers")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateOffer, "")
	}

	donation := &models.Donation{DonorID: donorID, RequestID: requestID}
	if err := s.repo.Create(ctx, donation); err != nil {
		if appErrors.Is(err, appErrors.ErrDuplicateOffer) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offer")
	}

	s.record(ctx, request.RequesterID, models.EventNewDonationOffer,
		fmt.Sprintf("A donor offered %s blood for your request at %s.", request.BloodGroup, request.Hospital))
	s.publish(models.Event{
		Type: models.EventNewDonationOffer,
		Payload: models.DonationStatusPayload{
			DonationID:  donation.ID,
			RequestID:   request.ID,
			DonorID:     donorID,
			RequesterID: request.RequesterID,
			Status:      donation.Status,
		},
		OriginSessionID: originSession,
	})

	return donation, nil
}

// Complete is the requester accepting an offer. The donation completion and
// the request fulfillment move in one transaction; on success both parties
// receive each other's contact details. Completing an already-resolved offer
// fails with an invalid-transition error and never re-sends messages.
func (s *DonationService) Complete(ctx context.Context, donationID, actorID, originSession string) (*models.CompletionResult, error) {
	donation, err := s.get(ctx, donationID)
	if err != nil {
		return nil, err
	}

	request, err := s.requests.FindByID(ctx, donation.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "the target request no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if request.RequesterID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may accept this offer")
	}
	if donation.Status != models.DonationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "offer is already resolved")
	}

	now := time.Now().UTC()
	donationOK, requestOK, err := s.repo.CompleteAndFulfill(ctx, donation.ID, request.ID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete offer")
	}
	if !donationOK {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "offer is already resolved")
	}
	if !requestOK {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer pending")
	}

	donation.Status = models.DonationCompleted
	donation.ResolvedAt = &now
	donation.UpdatedAt = now
	request.Status = models.RequestFulfilled
	request.FulfilledAt = &now
	request.UpdatedAt = now

	// The request left the pending pool; cached eligibility results must not
	// keep serving it.
	if s.matcher != nil {
		s.matcher.InvalidateMatches(ctx)
	}

	result := &models.CompletionResult{Donation: donation, Request: request}

	donor, err := s.users.FindByID(ctx, donation.DonorID)
	if err != nil {
		s.logger.Warn("failed to load donor for contact exchange", zap.String("donation_id", donation.ID), zap.Error(err))
	} else {
		result.Donor = donor.Contact()
	}
	requester, err := s.users.FindByID(ctx, request.RequesterID)
	if err != nil {
		s.logger.Warn("failed to load requester for contact exchange", zap.String("donation_id", donation.ID), zap.Error(err))
	} else {
		result.Requester = requester.Contact()
	}

	if s.notifier != nil && donor != nil && requester != nil {
		s.notifier.QueueContactExchange(*result)
	}

	donorMessage := "Your offer was accepted."
	if requester != nil {
		donorMessage = fmt.Sprintf("Your offer was accepted. Requester contact: %s (%s).", requester.Name, requester.Phone)
	}
	requesterMessage := "You accepted an offer."
	if donor != nil {
		requesterMessage = fmt.Sprintf("You accepted an offer. Donor contact: %s (%s).", donor.Name, donor.Phone)
	}
	s.record(ctx, donation.DonorID, models.EventDonationStatusChanged, donorMessage)
	s.record(ctx, request.RequesterID, models.EventDonationStatusChanged, requesterMessage)

	s.publish(models.Event{
		Type: models.EventDonationStatusChanged,
		Payload: models.DonationStatusPayload{
			DonationID:  donation.ID,
			RequestID:   request.ID,
			DonorID:     donation.DonorID,
			RequesterID: request.RequesterID,
			Status:      models.DonationCompleted,
		},
		OriginSessionID: originSession,
	})

	return result, nil
}

// Reject is the requester declining a pending offer. The parent request stays
// open for other donors.
func (s *DonationService) Reject(ctx context.Context, donationID, actorID, originSession string) (*models.Donation, error) {
	donation, err := s.get(ctx, donationID)
	if err != nil {
		return nil, err
	}

	request, err := s.requests.FindByID(ctx, donation.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "the target request no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.RequesterID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may reject this offer")
	}

	resolved, err := s.cancel(ctx, donation)
	if err != nil {
		return nil, err
	}

	s.record(ctx, donation.DonorID, models.EventDonationStatusChanged,
		fmt.Sprintf("Your offer for the request at %s was declined.", request.Hospital))
	s.publishStatusChange(resolved, request.RequesterID, originSession)

	return resolved, nil
}

// Withdraw is the donor pulling back their own pending offer.
func (s *DonationService) Withdraw(ctx context.Context, donationID, actorID, originSession string) (*models.Donation, error) {
	donation, err := s.get(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if donation.DonorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the donor may withdraw this offer")
	}

	resolved, err := s.cancel(ctx, donation)
	if err != nil {
		return nil, err
	}

	if request, err := s.requests.FindByID(ctx, donation.RequestID); err == nil {
		s.record(ctx, request.RequesterID, models.EventDonationStatusChanged, "A donor withdrew their offer on your request.")
		s.publishStatusChange(resolved, request.RequesterID, originSession)
	}

	return resolved, nil
}

// ListMine returns the donor's offer history, newest first.
func (s *DonationService) ListMine(ctx context.Context, donorID string) ([]models.DonationWithRequest, error) {
	donations, err := s.repo.ListByDonor(ctx, donorID, s.exportMaxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list donations")
	}
	if donations == nil {
		donations = []models.DonationWithRequest{}
	}
	return donations, nil
}

// ExportMine renders the donor's history as CSV or PDF.
func (s *DonationService) ExportMine(ctx context.Context, donorID, format string) ([]byte, string, error) {
	donations, err := s.ListMine(ctx, donorID)
	if err != nil {
		return nil, "", err
	}

	data := export.Dataset{
		Headers: []string{"Date", "Blood Group", "Units", "Hospital", "Offer Status"},
	}
	for _, d := range donations {
		row := map[string]string{
			"Date":         d.CreatedAt.Format("2006-01-02"),
			"Offer Status": string(d.Status),
		}
		if d.RequestBloodGroup != nil {
			row["Blood Group"] = string(*d.RequestBloodGroup)
		}
		if d.RequestUnits != nil {
			row["Units"] = fmt.Sprintf("%d", *d.RequestUnits)
		}
		if d.RequestHospital != nil {
			row["Hospital"] = *d.RequestHospital
		}
		data.Rows = append(data.Rows, row)
	}

	switch format {
	case "pdf":
		payload, err := export.PDF(data, "Donation History")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := export.CSV(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *DonationService) get(ctx context.Context, id string) (*models.Donation, error) {
	donation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "donation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donation")
	}
	return donation, nil
}

func (s *DonationService) cancel(ctx context.Context, donation *models.Donation) (*models.Donation, error) {
	if donation.Status != models.DonationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "offer is already resolved")
	}

	now := time.Now().UTC()
	ok, err := s.repo.Resolve(ctx, donation.ID, models.DonationCancelled, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel offer")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "offer is already resolved")
	}

	donation.Status = models.DonationCancelled
	donation.ResolvedAt = &now
	donation.UpdatedAt = now
	return donation, nil
}

func (s *DonationService) publishStatusChange(donation *models.Donation, requesterID, originSession string) {
	s.publish(models.Event{
		Type: models.EventDonationStatusChanged,
		Payload: models.DonationStatusPayload{
			DonationID:  donation.ID,
			RequestID:   donation.RequestID,
			DonorID:     donation.DonorID,
			RequesterID: requesterID,
			Status:      donation.Status,
		},
		OriginSessionID: originSession,
	})
}

func (s *DonationService) publish(event models.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// record persists a notification; a storage failure is logged, never fatal.
func (s *DonationService) record(ctx context.Context, userID, eventType, content string) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Create(ctx, &models.Notification{
		UserID:  userID,
		Type:    eventType,
		Content: content,
	}); err != nil {
		s.logger.Warn("failed to persist notification", zap.String("user_id", userID), zap.Error(err))
	}
}
