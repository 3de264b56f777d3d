package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
)

type mockDonationRepo struct {
	donation      *models.Donation
	hasPending    bool
	created       *models.Donation
	createErr     error
	completeCalls int
	donationOK    bool
	requestOK     bool
	resolveOK     bool
	resolved      models.DonationStatus
	history       []models.DonationWithRequest
}

func (m *mockDonationRepo) FindByID(ctx context.Context, id string) (*models.Donation, error) {
	if m.donation == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.donation
	return &copied, nil
}

func (m *mockDonationRepo) HasPendingOffer(ctx context.Context, donorID, requestID string) (bool, error) {
	return m.hasPending, nil
}

func (m *mockDonationRepo) Create(ctx context.Context, donation *models.Donation) error {
	if m.createErr != nil {
		return m.createErr
	}
	donation.ID = "d1"
	donation.Status = models.DonationPending
	m.created = donation
	return nil
}

func (m *mockDonationRepo) CompleteAndFulfill(ctx context.Context, donationID, requestID string, now time.Time) (bool, bool, error) {
	m.completeCalls++
	return m.donationOK, m.requestOK, nil
}

func (m *mockDonationRepo) Resolve(ctx context.Context, id string, status models.DonationStatus, now time.Time) (bool, error) {
	if m.resolveOK {
		m.resolved = status
	}
	return m.resolveOK, nil
}

func (m *mockDonationRepo) ListByDonor(ctx context.Context, donorID string, limit int) ([]models.DonationWithRequest, error) {
	return m.history, nil
}

type mockRequestLookup struct {
	request *models.BloodRequest
}

func (m *mockRequestLookup) FindByID(ctx context.Context, id string) (*models.BloodRequest, error) {
	if m.request == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.request
	return &copied, nil
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type mockNotificationRecorder struct {
	created []*models.Notification
}

func (m *mockNotificationRecorder) Create(ctx context.Context, n *models.Notification) error {
	m.created = append(m.created, n)
	return nil
}

type mockContactNotifier struct {
	queued []models.CompletionResult
}

func (m *mockContactNotifier) QueueContactExchange(result models.CompletionResult) {
	m.queued = append(m.queued, result)
}

type mockPublisher struct {
	events []models.Event
}

func (m *mockPublisher) Publish(event models.Event) {
	m.events = append(m.events, event)
}

type donationFixture struct {
	repo        *mockDonationRepo
	requests    *mockRequestLookup
	users       *mockUserLookup
	records     *mockNotificationRecorder
	notifier    *mockContactNotifier
	invalidator *mockInvalidator
	events      *mockPublisher
	svc         *DonationService
}

func newDonationFixture() *donationFixture {
	f := &donationFixture{
		repo: &mockDonationRepo{},
		requests: &mockRequestLookup{request: &models.BloodRequest{
			ID: "r1", RequesterID: "requester", BloodGroup: models.BloodAPositive,
			Hospital: "City Hospital", Status: models.RequestPending,
		}},
		users: &mockUserLookup{users: map[string]*models.User{
			"donor":     {ID: "donor", Name: "Dev", Email: "dev@example.com", Phone: "+911"},
			"requester": {ID: "requester", Name: "Rhea", Email: "rhea@example.com", Phone: "+912"},
		}},
		records:     &mockNotificationRecorder{},
		notifier:    &mockContactNotifier{},
		invalidator: &mockInvalidator{},
		events:      &mockPublisher{},
	}
	f.svc = NewDonationService(f.repo, f.requests, f.users, f.records, f.notifier, f.invalidator, f.events, zap.NewNop(), 0)
	return f
}

func TestOfferSuccess(t *testing.T) {
	f := newDonationFixture()

	donation, err := f.svc.Offer(context.Background(), "donor", "r1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.DonationPending, donation.Status)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventNewDonationOffer, f.events.events[0].Type)
	assert.Equal(t, "sess-1", f.events.events[0].OriginSessionID)

	require.Len(t, f.records.created, 1)
	assert.Equal(t, "requester", f.records.created[0].UserID)
}

func TestOfferOnClosedRequest(t *testing.T) {
	f := newDonationFixture()
	f.requests.request.Status = models.RequestFulfilled

	_, err := f.svc.Offer(context.Background(), "donor", "r1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Nil(t, f.repo.created)
}

func TestOfferOnOwnRequest(t *testing.T) {
	f := newDonationFixture()

	_, err := f.svc.Offer(context.Background(), "requester", "r1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestOfferDuplicatePending(t *testing.T) {
	f := newDonationFixture()
	f.repo.hasPending = true

	_, err := f.svc.Offer(context.Background(), "donor", "r1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateOffer.Code, appErrors.FromError(err).Code)
}

func TestOfferDuplicateRace(t *testing.T) {
	// The pre-check passes but the unique index rejects the insert.
	f := newDonationFixture()
	f.repo.createErr = appErrors.Clone(appErrors.ErrDuplicateOffer, "")

	_, err := f.svc.Offer(context.Background(), "donor", "r1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateOffer.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.events.events)
}

func TestOfferUnknownRequest(t *testing.T) {
	f := newDonationFixture()
	f.requests.request = nil

	_, err := f.svc.Offer(context.Background(), "donor", "r1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCompleteSuccess(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.donationOK = true
	f.repo.requestOK = true

	result, err := f.svc.Complete(context.Background(), "d1", "requester", "sess-2")
	require.NoError(t, err)
	assert.Equal(t, models.DonationCompleted, result.Donation.Status)
	assert.Equal(t, models.RequestFulfilled, result.Request.Status)
	require.NotNil(t, result.Request.FulfilledAt)
	assert.Equal(t, "Dev", result.Donor.Name)
	assert.Equal(t, "Rhea", result.Requester.Name)

	require.Len(t, f.notifier.queued, 1)
	assert.Len(t, f.records.created, 2)
	assert.Equal(t, 1, f.invalidator.calls)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventDonationStatusChanged, f.events.events[0].Type)
	assert.Equal(t, "sess-2", f.events.events[0].OriginSessionID)
}

func TestCompleteEvictsCachedMatches(t *testing.T) {
	// Fulfillment removes the request from the pending pool, so eligibility
	// results cached before completion must stop being served.
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.donationOK = true
	f.repo.requestOK = true

	_, err := f.svc.Complete(context.Background(), "d1", "requester", "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.invalidator.calls)
}

func TestCompleteContactLookupFailure(t *testing.T) {
	// Contact details are exchanged only when both lookups succeed; the
	// persisted notifications must not embed zero-value contacts.
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.donationOK = true
	f.repo.requestOK = true
	delete(f.users.users, "requester")

	result, err := f.svc.Complete(context.Background(), "d1", "requester", "")
	require.NoError(t, err)
	assert.Equal(t, models.DonationCompleted, result.Donation.Status)
	assert.Empty(t, f.notifier.queued)

	require.Len(t, f.records.created, 2)
	assert.Equal(t, "Your offer was accepted.", f.records.created[0].Content)
	assert.Contains(t, f.records.created[1].Content, "Dev (+911)")
}

func TestCompleteByNonRequester(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}

	_, err := f.svc.Complete(context.Background(), "d1", "donor", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.repo.completeCalls)
}

func TestCompleteAlreadyResolved(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationCompleted}

	_, err := f.svc.Complete(context.Background(), "d1", "requester", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.repo.completeCalls)
	assert.Empty(t, f.notifier.queued)
	assert.Empty(t, f.events.events)
}

func TestCompleteLostRace(t *testing.T) {
	// Status read as pending but another transaction resolved it first.
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.donationOK = false

	_, err := f.svc.Complete(context.Background(), "d1", "requester", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.notifier.queued)
	assert.Zero(t, f.invalidator.calls)
}

func TestCompleteOnClosedRequest(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.donationOK = true
	f.repo.requestOK = false

	_, err := f.svc.Complete(context.Background(), "d1", "requester", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRejectByRequester(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.resolveOK = true

	donation, err := f.svc.Reject(context.Background(), "d1", "requester", "")
	require.NoError(t, err)
	assert.Equal(t, models.DonationCancelled, donation.Status)
	assert.Equal(t, models.DonationCancelled, f.repo.resolved)
	assert.Zero(t, f.repo.completeCalls)

	require.Len(t, f.records.created, 1)
	assert.Equal(t, "donor", f.records.created[0].UserID)
}

func TestRejectByDonorForbidden(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}

	_, err := f.svc.Reject(context.Background(), "d1", "donor", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestWithdrawByDonor(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}
	f.repo.resolveOK = true

	donation, err := f.svc.Withdraw(context.Background(), "d1", "donor", "")
	require.NoError(t, err)
	assert.Equal(t, models.DonationCancelled, donation.Status)

	require.Len(t, f.records.created, 1)
	assert.Equal(t, "requester", f.records.created[0].UserID)
}

func TestWithdrawByStrangerForbidden(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationPending}

	_, err := f.svc.Withdraw(context.Background(), "d1", "someone-else", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestWithdrawAlreadyResolved(t *testing.T) {
	f := newDonationFixture()
	f.repo.donation = &models.Donation{ID: "d1", DonorID: "donor", RequestID: "r1", Status: models.DonationCancelled}

	_, err := f.svc.Withdraw(context.Background(), "d1", "donor", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestExportMineCSV(t *testing.T) {
	f := newDonationFixture()
	group := models.BloodAPositive
	units := 2
	hospital := "City Hospital"
	f.repo.history = []models.DonationWithRequest{{
		Donation:          models.Donation{ID: "d1", Status: models.DonationCompleted, CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		RequestBloodGroup: &group,
		RequestUnits:      &units,
		RequestHospital:   &hospital,
	}}

	payload, contentType, err := f.svc.ExportMine(context.Background(), "donor", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "City Hospital")
	assert.Contains(t, string(payload), "2026-03-01")
}

func TestExportMineUnknownFormat(t *testing.T) {
	f := newDonationFixture()

	_, _, err := f.svc.ExportMine(context.Background(), "donor", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
