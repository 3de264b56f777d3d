package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
)

type mockMatcherUserRepo struct {
	user *models.User
}

func (m *mockMatcherUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.user, nil
}

type mockMatcherRequestRepo struct {
	requests   []models.BloodRequest
	total      int
	lastFilter models.EligibilityFilter
	calls      int
}

func (m *mockMatcherRequestRepo) FindEligible(ctx context.Context, filter models.EligibilityFilter) ([]models.BloodRequest, int, error) {
	m.lastFilter = filter
	m.calls++
	return m.requests, m.total, nil
}

type mockMatchCache struct {
	entries map[string][]byte
	version int64
	sets    int
}

func (m *mockMatchCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.entries == nil {
		return appErrors.ErrCacheMiss
	}
	if _, ok := m.entries[key]; !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*cachedMatches) = cachedMatches{Requests: []models.BloodRequest{{ID: "cached"}}, Total: 1}
	return nil
}

func (m *mockMatchCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = []byte("set")
	m.sets++
	return nil
}

func (m *mockMatchCache) GetInt64(ctx context.Context, key string) (int64, error) {
	return m.version, nil
}

func (m *mockMatchCache) Incr(ctx context.Context, key string) (int64, error) {
	m.version++
	return m.version, nil
}

func completeDonor() *models.User {
	return &models.User{ID: "donor", BloodGroup: models.BloodOPositive, LocationLabel: "Bangalore"}
}

func TestMatcherIncompleteProfile(t *testing.T) {
	users := &mockMatcherUserRepo{user: &models.User{ID: "donor", BloodGroup: models.BloodOPositive}}
	requests := &mockMatcherRequestRepo{}
	svc := NewMatcherService(users, requests, nil, zap.NewNop(), MatcherConfig{})

	_, _, err := svc.FindEligibleRequests(context.Background(), "donor", 1, 20)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIncompleteProfile.Code, appErrors.FromError(err).Code)
	assert.Zero(t, requests.calls)
}

func TestMatcherExactLabelFilter(t *testing.T) {
	users := &mockMatcherUserRepo{user: completeDonor()}
	requests := &mockMatcherRequestRepo{
		requests: []models.BloodRequest{{ID: "r1", BloodGroup: models.BloodOPositive}},
		total:    1,
	}
	svc := NewMatcherService(users, requests, nil, zap.NewNop(), MatcherConfig{})

	matches, pagination, err := svc.FindEligibleRequests(context.Background(), "donor", 1, 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, models.BloodOPositive, requests.lastFilter.BloodGroup)
	assert.Equal(t, "Bangalore", requests.lastFilter.LocationLabel)
	assert.Equal(t, "donor", requests.lastFilter.ExcludeUserID)
}

func TestMatcherEmptyResultIsNonNil(t *testing.T) {
	users := &mockMatcherUserRepo{user: completeDonor()}
	requests := &mockMatcherRequestRepo{}
	svc := NewMatcherService(users, requests, nil, zap.NewNop(), MatcherConfig{})

	matches, pagination, err := svc.FindEligibleRequests(context.Background(), "donor", 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
	assert.Zero(t, pagination.TotalCount)
}

func TestMatcherRadiusFiltering(t *testing.T) {
	donor := completeDonor()
	donor.LocationLat = 12.9716
	donor.LocationLng = 77.5946
	users := &mockMatcherUserRepo{user: donor}

	requests := &mockMatcherRequestRepo{requests: []models.BloodRequest{
		// ~3km away, inside radius
		{ID: "near", LocationLat: 12.9916, LocationLng: 77.6046},
		// Mysore, ~140km away, outside radius
		{ID: "far", LocationLat: 12.2958, LocationLng: 76.6394},
		// no coordinates, label matches donor's
		{ID: "label", LocationLabel: "bangalore"},
		// no coordinates, label differs
		{ID: "other", LocationLabel: "Chennai"},
	}}
	svc := NewMatcherService(users, requests, nil, zap.NewNop(), MatcherConfig{RadiusKm: 25})

	matches, pagination, err := svc.FindEligibleRequests(context.Background(), "donor", 1, 20)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "label", matches[1].ID)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestMatcherRadiusPagination(t *testing.T) {
	donor := completeDonor()
	donor.LocationLat = 12.9716
	donor.LocationLng = 77.5946
	users := &mockMatcherUserRepo{user: donor}

	var candidates []models.BloodRequest
	for i := 0; i < 5; i++ {
		candidates = append(candidates, models.BloodRequest{
			ID:          string(rune('a' + i)),
			LocationLat: 12.9716,
			LocationLng: 77.5946,
		})
	}
	requests := &mockMatcherRequestRepo{requests: candidates}
	svc := NewMatcherService(users, requests, nil, zap.NewNop(), MatcherConfig{RadiusKm: 25})

	matches, pagination, err := svc.FindEligibleRequests(context.Background(), "donor", 2, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c", matches[0].ID)
	assert.Equal(t, 5, pagination.TotalCount)

	matches, _, err = svc.FindEligibleRequests(context.Background(), "donor", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatcherCacheHitSkipsRepository(t *testing.T) {
	users := &mockMatcherUserRepo{user: completeDonor()}
	requests := &mockMatcherRequestRepo{}
	cache := &mockMatchCache{entries: map[string][]byte{
		"match:v0:donor:p1:s20": []byte("cached"),
	}}
	svc := NewMatcherService(users, requests, cache, zap.NewNop(), MatcherConfig{CacheTTL: time.Minute})

	matches, _, err := svc.FindEligibleRequests(context.Background(), "donor", 1, 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "cached", matches[0].ID)
	assert.Zero(t, requests.calls)
}

func TestMatcherInvalidateChangesCacheKey(t *testing.T) {
	users := &mockMatcherUserRepo{user: completeDonor()}
	requests := &mockMatcherRequestRepo{
		requests: []models.BloodRequest{{ID: "fresh"}},
		total:    1,
	}
	cache := &mockMatchCache{entries: map[string][]byte{
		"match:v0:donor:p1:s20": []byte("cached"),
	}}
	svc := NewMatcherService(users, requests, cache, zap.NewNop(), MatcherConfig{CacheTTL: time.Minute})

	svc.InvalidateMatches(context.Background())

	matches, _, err := svc.FindEligibleRequests(context.Background(), "donor", 1, 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fresh", matches[0].ID)
	assert.Equal(t, 1, requests.calls)
}

func TestMatcherPageSizeClamped(t *testing.T) {
	users := &mockMatcherUserRepo{user: completeDonor()}
	requests := &mockMatcherRequestRepo{}
	svc := NewMatcherService(users, requests, nil, zap.NewNop(), MatcherConfig{MaxPageSize: 50})

	_, _, err := svc.FindEligibleRequests(context.Background(), "donor", 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, requests.lastFilter.Page)
	assert.Equal(t, 50, requests.lastFilter.PageSize)
}
