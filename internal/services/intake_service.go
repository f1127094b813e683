package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
)

// AssessmentSource serves assessments ready to be taken.
type AssessmentSource interface {
	TakeAssessment(ctx context.Context, id string) (*models.Assessment, error)
}

// IntakeService loads an assessment and hands it to a runner.
type IntakeService interface {
	// Load returns the intake view shown before the attempt starts.
	Load(ctx context.Context, id string) (*IntakeView, error)
	Assessment(ctx context.Context, id string) (*models.Assessment, error)
	// Begin builds a not-started runner for the assessment.
	Begin(ctx context.Context, id string, opts ...runner.Option) (*runner.Runner, error)
	// Invalidate drops one cached assessment, InvalidateAll every one.
	Invalidate(ctx context.Context, id string) error
	InvalidateAll(ctx context.Context) error
}

// IntakeView is what a candidate sees before starting.
type IntakeView struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Duration      int            `json:"duration"`  // minutes
	TimeLimit     int            `json:"timeLimit"` // seconds
	QuestionCount int            `json:"questionCount"`
	PassingScore  int            `json:"passingScore"`
	Questions     []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID      string              `json:"id"`
	Type    models.QuestionType `json:"type"`
	Prompt  string              `json:"prompt"`
	Options []string            `json:"options,omitempty"`
}

func NewIntakeView(a *models.Assessment) *IntakeView {
	view := &IntakeView{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		Duration:      a.Duration,
		TimeLimit:     a.TimeLimitSeconds(),
		QuestionCount: a.QuestionCount(),
		PassingScore:  a.PassingScore,
		Questions:     make([]QuestionView, 0, len(a.Questions)),
	}
	for _, q := range a.Questions {
		view.Questions = append(view.Questions, QuestionView{
			ID:      q.ID,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Options: q.Options,
		})
	}
	return view
}

type intakeService struct {
	source    AssessmentSource
	submitter runner.Submitter
	cache     cache.CacheService
	cacheTTL  time.Duration
	validator *validator.Validator
	logger    utils.Logger
	opLogger  *ServiceLogger
}

func NewIntakeService(
	source AssessmentSource,
	submitter runner.Submitter,
	cacheService cache.CacheService,
	cacheTTL time.Duration,
	validator *validator.Validator,
	logger utils.Logger,
) IntakeService {
	if cacheService == nil {
		cacheService = cache.NewNoopCache()
	}
	return &intakeService{
		source:    source,
		submitter: submitter,
		cache:     cacheService,
		cacheTTL:  cacheTTL,
		validator: validator,
		logger:    logger,
		opLogger:  NewServiceLogger(utils.ToSlogLogger(logger), "intake"),
	}
}

func assessmentCacheKey(id string) string {
	return "assessment:take:" + id
}

func (s *intakeService) Load(ctx context.Context, id string) (*IntakeView, error) {
	a, err := s.Assessment(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewIntakeView(a), nil
}

// Assessment reads through the cache. A backend failure is returned as is,
// with no retry.
func (s *intakeService) Assessment(ctx context.Context, id string) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "load_assessment", id, "assessment", time.Since(start), err)
	}()

	if id == "" {
		return nil, ValidationErrors{{Field: "id", Message: "is required", Rule: "required"}}
	}

	var cached models.Assessment
	switch cacheErr := s.cache.Get(ctx, assessmentCacheKey(id), &cached); {
	case cacheErr == nil:
		return &cached, nil
	case !errors.Is(cacheErr, cache.ErrCacheMiss):
		s.logger.Warn("Assessment cache read failed", "assessment_id", id, "error", cacheErr)
	}

	a, err = s.source.TakeAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAssessmentNotFound, id)
		}
		return nil, fmt.Errorf("failed to load assessment %s: %w", id, err)
	}

	if err = s.validator.ValidateAssessment(a); err != nil {
		var ve ValidationErrors
		if errors.As(err, &ve) {
			s.opLogger.LogValidationError(ctx, "load_assessment", ve)
		}
		return nil, fmt.Errorf("assessment %s cannot be taken: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, assessmentCacheKey(id), a, s.cacheTTL); cacheErr != nil {
		s.logger.Warn("Assessment cache write failed", "assessment_id", id, "error", cacheErr)
	}
	return a, nil
}

func (s *intakeService) Begin(ctx context.Context, id string, opts ...runner.Option) (*runner.Runner, error) {
	a, err := s.Assessment(ctx, id)
	if err != nil {
		return nil, err
	}
	return runner.New(a, s.submitter, opts...)
}

func (s *intakeService) Invalidate(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, assessmentCacheKey(id))
}

func (s *intakeService) InvalidateAll(ctx context.Context) error {
	return s.cache.DeletePattern(ctx, assessmentCacheKey("*"))
}
