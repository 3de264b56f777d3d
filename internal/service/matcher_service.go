package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
	"github.com/lifeshare/bloodlink-api/pkg/geo"
)

const matchVersionKey = "match:version"

// radiusScanCap bounds how many candidate rows a radius scan pulls before
// in-memory distance filtering.
const radiusScanCap = 500

type matcherUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type matcherRequestRepository interface {
	FindEligible(ctx context.Context, filter models.EligibilityFilter) ([]models.BloodRequest, int, error)
}

type matchCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetInt64(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// MatcherConfig tunes eligibility matching.
type MatcherConfig struct {
	RadiusKm    float64
	CacheTTL    time.Duration
	MaxPageSize int
}

// MatcherService computes the set of open requests a donor may act on. Pure
// read: matching never mutates state.
type MatcherService struct {
	users    matcherUserRepository
	requests matcherRequestRepository
	cache    matchCache
	logger   *zap.Logger
	config   MatcherConfig
}

// NewMatcherService constructs a MatcherService.
func NewMatcherService(users matcherUserRepository, requests matcherRequestRepository, cache matchCache, logger *zap.Logger, config MatcherConfig) *MatcherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 50
	}
	return &MatcherService{users: users, requests: requests, cache: cache, logger: logger, config: config}
}

type cachedMatches struct {
	Requests []models.BloodRequest `json:"requests"`
	Total    int                   `json:"total"`
}

// FindEligibleRequests returns pending requests matching the donor's blood
// group and location, newest first, excluding the donor's own requests. The
// donor needs a blood group and location on file.
func (s *MatcherService) FindEligibleRequests(ctx context.Context, donorID string, page, pageSize int) ([]models.BloodRequest, *models.Pagination, error) {
	donor, err := s.users.FindByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "donor not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load donor")
	}

	if donor.BloodGroup == "" || !donor.Location().Complete() {
		return nil, nil, appErrors.Clone(appErrors.ErrIncompleteProfile, "")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}

	key := s.cacheKey(ctx, donorID, page, pageSize)
	if key != "" {
		var cached cachedMatches
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: cached.Total}, nil
		}
	}

	var (
		matches []models.BloodRequest
		total   int
	)
	if s.radiusMode(donor) {
		matches, total, err = s.matchByRadius(ctx, donor, page, pageSize)
	} else {
		matches, total, err = s.requests.FindEligible(ctx, models.EligibilityFilter{
			BloodGroup:    donor.BloodGroup,
			LocationLabel: donor.LocationLabel,
			ExcludeUserID: donor.ID,
			Page:          page,
			PageSize:      pageSize,
		})
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match requests")
	}
	if matches == nil {
		matches = []models.BloodRequest{}
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, cachedMatches{Requests: matches, Total: total}, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache match results", zap.Error(err))
		}
	}

	return matches, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// InvalidateMatches bumps the match version so cached eligibility pages stop
// being served. Called when a new request opens.
func (s *MatcherService) InvalidateMatches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, matchVersionKey); err != nil {
		s.logger.Warn("failed to bump match version", zap.Error(err))
	}
}

func (s *MatcherService) radiusMode(donor *models.User) bool {
	return s.config.RadiusKm > 0 && (donor.LocationLat != 0 || donor.LocationLng != 0)
}

// matchByRadius pulls candidates for the blood group and filters them by
// haversine distance in memory, paginating the filtered slice. Candidates
// without coordinates fall back to label equality.
func (s *MatcherService) matchByRadius(ctx context.Context, donor *models.User, page, pageSize int) ([]models.BloodRequest, int, error) {
	candidates, _, err := s.requests.FindEligible(ctx, models.EligibilityFilter{
		BloodGroup:    donor.BloodGroup,
		ExcludeUserID: donor.ID,
		Page:          1,
		PageSize:      radiusScanCap,
	})
	if err != nil {
		return nil, 0, err
	}

	filtered := make([]models.BloodRequest, 0, len(candidates))
	for _, req := range candidates {
		if req.LocationLat == 0 && req.LocationLng == 0 {
			if req.LocationLabel != "" && strings.EqualFold(req.LocationLabel, donor.LocationLabel) {
				filtered = append(filtered, req)
			}
			continue
		}
		if geo.WithinRadius(donor.LocationLat, donor.LocationLng, req.LocationLat, req.LocationLng, s.config.RadiusKm) {
			filtered = append(filtered, req)
		}
	}

	total := len(filtered)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.BloodRequest{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func (s *MatcherService) cacheKey(ctx context.Context, donorID string, page, pageSize int) string {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return ""
	}
	version, err := s.cache.GetInt64(ctx, matchVersionKey)
	if err != nil {
		s.logger.Warn("failed to read match version", zap.Error(err))
		return ""
	}
	return fmt.Sprintf("match:v%d:%s:p%d:s%d", version, donorID, page, pageSize)
}
