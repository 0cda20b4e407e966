package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

// termNamePattern matches the "2024A" naming convention.
var termNamePattern = regexp.MustCompile(`^\d{4}[A-Z]$`)

const (
	// rosterGap is the minimum lead time between term start and the
	// enrollment deadline.
	rosterGap = 14 * 24 * time.Hour
	// gradeEntryGap is the minimum settling time between term end and the
	// opening of grade entry.
	gradeEntryGap = 14 * 24 * time.Hour
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	ListOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	SoftDelete(ctx context.Context, id string) error
	CountCourses(ctx context.Context, id string) (int, error)
}

// CreateTermRequest describes payload for creating academic terms.
type CreateTermRequest struct {
	Name           string    `json:"name" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
	RosterDeadline time.Time `json:"roster_deadline" validate:"required"`
	GradeEntryDate time.Time `json:"grade_entry_date" validate:"required"`
}

// UpdateTermRequest updates mutable fields on a term.
type UpdateTermRequest struct {
	Name           string    `json:"name" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
	RosterDeadline time.Time `json:"roster_deadline" validate:"required"`
	GradeEntryDate time.Time `json:"grade_entry_date" validate:"required"`
}

// TermService enforces the temporal invariants of the term lifecycle.
type TermService struct {
	repo      termRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, validator: validate, logger: logger}
}

// validateWindows checks every date rule independently and returns the full
// list of violations rather than stopping at the first.
func validateWindows(start, end, rosterDeadline, gradeEntryDate time.Time) []string {
	var violations []string
	if !end.After(start) {
		violations = append(violations, "end_date must be after start_date")
	}
	if rosterDeadline.Before(start.Add(rosterGap)) {
		violations = append(violations, "roster_deadline must be at least 14 days after start_date")
	}
	if !rosterDeadline.Before(end) {
		violations = append(violations, "roster_deadline must be before end_date")
	}
	if gradeEntryDate.Before(end.Add(gradeEntryGap)) {
		violations = append(violations, "grade_entry_date must be at least 14 days after end_date")
	}
	return violations
}

func (s *TermService) checkOverlap(ctx context.Context, start, end time.Time, excludeID string) error {
	overlapping, err := s.repo.ListOverlapping(ctx, start, end, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term overlap")
	}
	if len(overlapping) > 0 {
		ids := make([]string, len(overlapping))
		for i, term := range overlapping {
			ids[i] = term.ID
		}
		return appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "term dates overlap an existing term", map[string]interface{}{"overlapping_term_ids": ids})
	}
	return nil
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return terms, pagination, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// Create adds a new term after running the full window validation sequence:
// date rules first, then name format, then overlap. Nothing is persisted
// unless every check passes.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if violations := validateWindows(req.StartDate, req.EndDate, req.RosterDeadline, req.GradeEntryDate); len(violations) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrValidation, "term dates violate window rules", map[string]interface{}{"dates": violations})
	}
	if !termNamePattern.MatchString(req.Name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("term name %q must match the year-letter format, e.g. 2024A", req.Name))
	}
	if err := s.checkOverlap(ctx, req.StartDate, req.EndDate, ""); err != nil {
		return nil, err
	}

	term := &models.Term{
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		RosterDeadline: req.RosterDeadline,
		GradeEntryDate: req.GradeEntryDate,
	}

	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update modifies a term, re-running the full validation sequence. The name
// format is only re-checked when the name actually changed.
func (s *TermService) Update(ctx context.Context, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}

	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	if violations := validateWindows(req.StartDate, req.EndDate, req.RosterDeadline, req.GradeEntryDate); len(violations) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrValidation, "term dates violate window rules", map[string]interface{}{"dates": violations})
	}
	if req.Name != term.Name && !termNamePattern.MatchString(req.Name) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("term name %q must match the year-letter format, e.g. 2024A", req.Name))
	}
	if err := s.checkOverlap(ctx, req.StartDate, req.EndDate, id); err != nil {
		return nil, err
	}

	term.Name = req.Name
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	term.RosterDeadline = req.RosterDeadline
	term.GradeEntryDate = req.GradeEntryDate

	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// Delete soft-deletes a term once no course references it.
func (s *TermService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	count, err := s.repo.CountCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "term has courses associated")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}
