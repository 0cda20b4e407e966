package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type dashboardUserCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardCourseCounter interface {
	CountAll(ctx context.Context) (int, error)
}

type dashboardTermReader interface {
	FindContaining(ctx context.Context, at time.Time) (*models.Term, error)
}

type dashboardEnrollmentCounter interface {
	CountByTerm(ctx context.Context, termID string) (int, error)
}

type dashboardViolationCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type dashboardFitnessCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// DashboardService aggregates academy-wide counts into a cached snapshot.
type DashboardService struct {
	users       dashboardUserCounter
	courses     dashboardCourseCounter
	terms       dashboardTermReader
	enrollments dashboardEnrollmentCounter
	violations  dashboardViolationCounter
	fitness     dashboardFitnessCounter
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService creates a new dashboard service instance.
func NewDashboardService(users dashboardUserCounter, courses dashboardCourseCounter, terms dashboardTermReader, enrollments dashboardEnrollmentCounter, violations dashboardViolationCounter, fitness dashboardFitnessCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		users:       users,
		courses:     courses,
		terms:       terms,
		enrollments: enrollments,
		violations:  violations,
		fitness:     fitness,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the admin overview, served from cache when possible.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the cached snapshot so the next read rebuilds it.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSummary, error) {
	now := s.now()
	summary := &models.DashboardSummary{GeneratedAt: now}

	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	summary.TotalStudents = students

	managers, err := s.users.CountByRole(ctx, models.RoleManager)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count managers")
	}
	summary.TotalManagers = managers

	courses, err := s.courses.CountAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	summary.TotalCourses = courses

	term, err := s.terms.FindContaining(ctx, now)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	if term != nil {
		summary.ActiveTerm = term
		active, err := s.enrollments.CountByTerm(ctx, term.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		summary.ActiveEnrollments = active
	}

	violations, err := s.violations.CountSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count violations")
	}
	summary.RecentViolations = violations

	weekStart, _ := weekBounds(now)
	fitness, err := s.fitness.CountSince(ctx, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count fitness records")
	}
	summary.FitnessRecordsWeek = fitness

	return summary, nil
}
