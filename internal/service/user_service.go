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

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLocation(ctx context.Context, id string, loc models.Location) error
}

// UpdateProfileRequest is a partial profile update; nil fields are untouched.
type UpdateProfileRequest struct {
	Name             *string            `json:"name" validate:"omitempty,max=120"`
	Phone            *string            `json:"phone" validate:"omitempty,max=20"`
	BloodGroup       *models.BloodGroup `json:"blood_group"`
	Location         *models.Location   `json:"location"`
	HealthStatus     *string            `json:"health_status" validate:"omitempty,max=500"`
	LastDonationDate *time.Time         `json:"last_donation_date"`
}

// UserService handles profile reads and updates.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns a user's profile.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Update applies a partial profile update.
func (s *UserService) Update(ctx context.Context, id string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if req.BloodGroup != nil && !models.ValidBloodGroup(*req.BloodGroup) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown blood group")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.BloodGroup != nil {
		user.BloodGroup = *req.BloodGroup
	}
	if req.Location != nil {
		user.LocationLabel = strings.TrimSpace(req.Location.Label)
		user.LocationLat = req.Location.Lat
		user.LocationLng = req.Location.Lng
	}
	if req.HealthStatus != nil {
		user.HealthStatus = normalizeOptional(req.HealthStatus)
	}
	if req.LastDonationDate != nil {
		user.LastDonationDate = req.LastDonationDate
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// UpdateLocation sets only the user's location, the path the matcher depends
// on for donors moving between cities.
func (s *UserService) UpdateLocation(ctx context.Context, id string, loc models.Location) (*models.User, error) {
	loc.Label = strings.TrimSpace(loc.Label)
	if !loc.Complete() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "location requires a label or coordinates")
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLocation(ctx, id, loc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update location")
	}
	return s.Get(ctx, id)
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
