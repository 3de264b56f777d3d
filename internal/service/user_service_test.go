package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
)

type mockUserRepo struct {
	user        *models.User
	updated     *models.User
	location    *models.Location
	locationFor string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.user
	return &copied, nil
}

func (m *mockUserRepo) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	return false, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.updated = user
	m.user = user
	return nil
}

func (m *mockUserRepo) UpdateLocation(ctx context.Context, id string, loc models.Location) error {
	m.location = &loc
	m.locationFor = id
	m.user.LocationLabel = loc.Label
	m.user.LocationLat = loc.Lat
	m.user.LocationLng = loc.Lng
	return nil
}

func strPtr(v string) *string { return &v }

func TestUserServicePartialUpdate(t *testing.T) {
	repo := &mockUserRepo{user: &models.User{ID: "u1", Name: "Asha", Phone: "+911", BloodGroup: models.BloodOPositive}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Update(context.Background(), "u1", UpdateProfileRequest{Name: strPtr("  Asha K  ")})
	require.NoError(t, err)
	assert.Equal(t, "Asha K", user.Name)
	assert.Equal(t, "+911", user.Phone)
	assert.Equal(t, models.BloodOPositive, user.BloodGroup)
}

func TestUserServiceUpdateUnknownBloodGroup(t *testing.T) {
	repo := &mockUserRepo{user: &models.User{ID: "u1"}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	group := models.BloodGroup("Z+")
	_, err := svc.Update(context.Background(), "u1", UpdateProfileRequest{BloodGroup: &group})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.updated)
}

func TestUserServiceUpdateLocation(t *testing.T) {
	repo := &mockUserRepo{user: &models.User{ID: "u1"}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.UpdateLocation(context.Background(), "u1", models.Location{Label: " Mysore ", Lat: 12.29, Lng: 76.63})
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.locationFor)
	assert.Equal(t, "Mysore", repo.location.Label)
	assert.Equal(t, "Mysore", user.LocationLabel)
}

func TestUserServiceUpdateLocationEmpty(t *testing.T) {
	repo := &mockUserRepo{user: &models.User{ID: "u1"}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.UpdateLocation(context.Background(), "u1", models.Location{Label: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.location)
}

func TestUserServiceGetNotFound(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
