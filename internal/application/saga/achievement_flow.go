// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-progress/internal/application/query"
	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
	"github.com/dojo-hub/dojo-progress/pkg/retry"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Unlock process for one student:
// Evaluate Progress → Grant Unlocks → Award XP → Publish Events
//
// The resolver decides progress; the saga only persists what reached 100%.
// An unlock row that already exists is treated as done, so reruns are safe.
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces identifiers for unlock rows.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

// NewID implements IDGenerator.
func (f IDGeneratorFunc) NewID() string { return f() }

// ProgressResolver computes per-achievement progress for a student.
type ProgressResolver interface {
	Handle(ctx context.Context, q query.GetStudentAchievementsQuery) (*query.GetStudentAchievementsResult, error)
}

// AchievementCheckInput contains data needed to check for new achievements.
type AchievementCheckInput struct {
	// StudentID - the student to check achievements for.
	StudentID string

	// TriggerEvent - what triggered this check (e.g. "attendance", "sweep").
	TriggerEvent string
}

// Validate checks if the input is valid.
func (i AchievementCheckInput) Validate() error {
	if i.StudentID == "" {
		return errors.New("achievement_flow: student ID is required")
	}
	return nil
}

// UnlockedAchievement is one achievement granted during a run.
type UnlockedAchievement struct {
	AchievementID string
	Name          string
	XPReward      int
	UnlockedAt    time.Time
}

// AchievementFlowResult contains the result of achievement processing.
type AchievementFlowResult struct {
	// StudentID - the student who received achievements.
	StudentID string

	// OrganizationID - the student's organization.
	OrganizationID string

	// NewAchievements - newly unlocked achievements in resolver order.
	NewAchievements []UnlockedAchievement

	// AlreadyUnlocked - achievements another writer unlocked first.
	AlreadyUnlocked int

	// TotalXPAwarded - XP added to the student's total.
	TotalXPAwarded int

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.NewAchievements) > 0
}

// AchievementFlowStep represents a step in the achievement flow.
type AchievementFlowStep string

const (
	StepEvaluateProgress    AchievementFlowStep = "evaluate_progress"
	StepGrantAchievements   AchievementFlowStep = "grant_achievements"
	StepAwardXP             AchievementFlowStep = "award_xp"
	StepPublishAchievEvents AchievementFlowStep = "publish_events"
	StepAchievementComplete AchievementFlowStep = "complete"
)

// AchievementFlowState tracks the current state of the achievement flow saga.
type AchievementFlowState struct {
	CurrentStep    AchievementFlowStep
	Input          AchievementCheckInput
	OrganizationID string
	Candidates     []query.StudentAchievementDTO
	Granted        []UnlockedAchievement
	Duplicates     int
	TotalXP        int
	StartedAt      time.Time
	FailedStep     AchievementFlowStep
	Error          error
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowSaga persists unlocks for achievements whose progress
// reached 100% and announces them on the event bus.
type AchievementFlowSaga struct {
	resolver    ProgressResolver
	unlocks     achievement.UnlockRepository
	students    student.Repository
	eventBus    shared.EventPublisher
	idGenerator IDGenerator
	clock       timeutil.Clock
	retrier     *retry.Retrier
	log         *logger.Logger

	enableXPAward         bool
	maxAchievementsPerRun int
}

// AchievementFlowConfig contains configuration for the achievement flow saga.
type AchievementFlowConfig struct {
	// EnableXPAward adds XPReward to the student's total on unlock.
	EnableXPAward bool
	// MaxAchievementsPerRun caps unlocks per run; 0 means no cap.
	MaxAchievementsPerRun int
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{
		EnableXPAward:         true,
		MaxAchievementsPerRun: 0,
	}
}

// NewAchievementFlowSaga creates a new achievement flow saga with all dependencies.
func NewAchievementFlowSaga(
	resolver ProgressResolver,
	unlocks achievement.UnlockRepository,
	students student.Repository,
	eventBus shared.EventPublisher,
	idGenerator IDGenerator,
	clock timeutil.Clock,
	log *logger.Logger,
	config AchievementFlowConfig,
) *AchievementFlowSaga {
	if idGenerator == nil {
		idGenerator = IDGeneratorFunc(uuid.NewString)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AchievementFlowSaga{
		resolver:              resolver,
		unlocks:               unlocks,
		students:              students,
		eventBus:              eventBus,
		idGenerator:           idGenerator,
		clock:                 clock,
		retrier:               retry.DatabaseRetrier().With(retry.WithRetryIf(shared.IsRetryable)),
		log:                   log.With(logger.Component("achievement_flow")),
		enableXPAward:         config.EnableXPAward,
		maxAchievementsPerRun: config.MaxAchievementsPerRun,
	}
}

// Execute runs the complete achievement checking and granting process.
func (s *AchievementFlowSaga) Execute(ctx context.Context, input AchievementCheckInput) (*AchievementFlowResult, error) {
	state := &AchievementFlowState{
		CurrentStep: StepEvaluateProgress,
		Input:       input,
		StartedAt:   s.clock.Now(),
	}

	if err := input.Validate(); err != nil {
		state.FailedStep = StepEvaluateProgress
		state.Error = err
		return nil, s.wrapError(state, err)
	}

	// Step 1: Evaluate progress
	if err := s.stepEvaluateProgress(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Grant achievements
	state.CurrentStep = StepGrantAchievements
	if err := s.stepGrantAchievements(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	if len(state.Granted) > 0 {
		// Step 3: Award XP. Non-critical: the unlock is already stored.
		state.CurrentStep = StepAwardXP
		if err := s.stepAwardXP(ctx, state); err != nil {
			s.log.Warn("xp award failed",
				logger.StudentID(input.StudentID), logger.Err(err))
		}

		// Step 4: Publish domain events. Non-critical.
		state.CurrentStep = StepPublishAchievEvents
		s.stepPublishEvents(state)
	}

	state.CurrentStep = StepAchievementComplete
	now := s.clock.Now()

	if len(state.Granted) > 0 {
		s.log.Info("achievements unlocked",
			logger.StudentID(input.StudentID),
			logger.Count("unlocked", len(state.Granted)),
			logger.XPAmount(state.TotalXP),
			logger.String("trigger", input.TriggerEvent),
			logger.Latency(now.Sub(state.StartedAt)),
		)
	}

	return &AchievementFlowResult{
		StudentID:       input.StudentID,
		OrganizationID:  state.OrganizationID,
		NewAchievements: state.Granted,
		AlreadyUnlocked: state.Duplicates,
		TotalXPAwarded:  state.TotalXP,
		ProcessedAt:     now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepEvaluateProgress asks the resolver for every achievement including
// hidden ones and keeps the locked ones at full progress.
func (s *AchievementFlowSaga) stepEvaluateProgress(ctx context.Context, state *AchievementFlowState) error {
	res, err := s.resolver.Handle(ctx, query.GetStudentAchievementsQuery{
		StudentID:       state.Input.StudentID,
		IncludeProgress: true,
	})
	if err != nil {
		state.FailedStep = StepEvaluateProgress
		state.Error = fmt.Errorf("failed to evaluate progress: %w", err)
		return state.Error
	}

	state.OrganizationID = res.OrganizationID
	for _, item := range res.Achievements {
		if item.IsUnlocked || item.Progress < achievement.MaxProgress {
			continue
		}
		state.Candidates = append(state.Candidates, item)
	}

	if s.maxAchievementsPerRun > 0 && len(state.Candidates) > s.maxAchievementsPerRun {
		state.Candidates = state.Candidates[:s.maxAchievementsPerRun]
	}
	return nil
}

// stepGrantAchievements persists one unlock row per candidate.
func (s *AchievementFlowSaga) stepGrantAchievements(ctx context.Context, state *AchievementFlowState) error {
	for _, c := range state.Candidates {
		at := s.clock.Now()
		row, err := achievement.NewStudentAchievement(s.idGenerator.NewID(), state.Input.StudentID, c.AchievementID, at)
		if err != nil {
			state.FailedStep = StepGrantAchievements
			state.Error = err
			return err
		}

		err = s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.unlocks.Unlock(ctx, row)
		})
		switch {
		case err == nil:
			state.Granted = append(state.Granted, UnlockedAchievement{
				AchievementID: c.AchievementID,
				Name:          c.Name,
				XPReward:      c.XPReward,
				UnlockedAt:    at,
			})
		case shared.IsAlreadyExists(err):
			state.Duplicates++
			s.log.Debug("achievement already unlocked",
				logger.StudentID(state.Input.StudentID), logger.AchievementID(c.AchievementID))
		default:
			state.FailedStep = StepGrantAchievements
			state.Error = fmt.Errorf("failed to save unlock %s: %w", c.AchievementID, err)
			return state.Error
		}
	}
	return nil
}

// stepAwardXP adds the summed XPReward of granted achievements.
func (s *AchievementFlowSaga) stepAwardXP(ctx context.Context, state *AchievementFlowState) error {
	if !s.enableXPAward || s.students == nil {
		return nil
	}

	total := 0
	for _, g := range state.Granted {
		total += g.XPReward
	}
	if total <= 0 {
		return nil
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.students.AddXP(ctx, state.Input.StudentID, total)
	})
	if err != nil {
		return err
	}
	state.TotalXP = total
	return nil
}

// stepPublishEvents announces each unlock and the XP award.
func (s *AchievementFlowSaga) stepPublishEvents(state *AchievementFlowState) {
	if s.eventBus == nil {
		return
	}

	for _, g := range state.Granted {
		event := shared.NewAchievementUnlockedEvent(
			state.Input.StudentID, state.OrganizationID, g.AchievementID, g.Name, g.XPReward, g.UnlockedAt,
		)
		if err := s.eventBus.Publish(event); err != nil {
			s.log.Warn("failed to publish unlock event",
				logger.StudentID(state.Input.StudentID), logger.AchievementID(g.AchievementID), logger.Err(err))
		}
	}

	if state.TotalXP > 0 {
		event := shared.NewXPAwardedEvent(state.Input.StudentID, state.TotalXP, "achievement_unlock", s.clock.Now())
		if err := s.eventBus.Publish(event); err != nil {
			s.log.Warn("failed to publish xp event",
				logger.StudentID(state.Input.StudentID), logger.Err(err))
		}
	}
}

func (s *AchievementFlowSaga) wrapError(state *AchievementFlowState, err error) error {
	step := state.FailedStep
	if step == "" {
		step = state.CurrentStep
	}
	return &AchievementFlowError{
		Step:      step,
		StudentID: state.Input.StudentID,
		Cause:     err,
		Message:   fmt.Sprintf("achievement_flow failed at %s: %v", step, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowError represents an error during the achievement flow.
type AchievementFlowError struct {
	Step      AchievementFlowStep
	StudentID string
	Cause     error
	Message   string
}

// Error implements the error interface.
func (e *AchievementFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AchievementFlowError) Unwrap() error {
	return e.Cause
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA BUILDER (Fluent API)
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowSagaBuilder provides a fluent API for building AchievementFlowSaga.
type AchievementFlowSagaBuilder struct {
	resolver    ProgressResolver
	unlocks     achievement.UnlockRepository
	students    student.Repository
	eventBus    shared.EventPublisher
	idGenerator IDGenerator
	clock       timeutil.Clock
	log         *logger.Logger
	config      AchievementFlowConfig
}

// NewAchievementFlowSagaBuilder creates a new builder.
func NewAchievementFlowSagaBuilder() *AchievementFlowSagaBuilder {
	return &AchievementFlowSagaBuilder{
		config: DefaultAchievementFlowConfig(),
	}
}

// WithResolver sets the progress resolver.
func (b *AchievementFlowSagaBuilder) WithResolver(r ProgressResolver) *AchievementFlowSagaBuilder {
	b.resolver = r
	return b
}

// WithUnlockRepo sets the unlock repository.
func (b *AchievementFlowSagaBuilder) WithUnlockRepo(repo achievement.UnlockRepository) *AchievementFlowSagaBuilder {
	b.unlocks = repo
	return b
}

// WithStudentRepo sets the student repository used for XP awards.
func (b *AchievementFlowSagaBuilder) WithStudentRepo(repo student.Repository) *AchievementFlowSagaBuilder {
	b.students = repo
	return b
}

// WithEventBus sets the event bus.
func (b *AchievementFlowSagaBuilder) WithEventBus(bus shared.EventPublisher) *AchievementFlowSagaBuilder {
	b.eventBus = bus
	return b
}

// WithClock sets the clock.
func (b *AchievementFlowSagaBuilder) WithClock(clock timeutil.Clock) *AchievementFlowSagaBuilder {
	b.clock = clock
	return b
}

// WithLogger sets the logger.
func (b *AchievementFlowSagaBuilder) WithLogger(log *logger.Logger) *AchievementFlowSagaBuilder {
	b.log = log
	return b
}

// WithConfig sets the configuration.
func (b *AchievementFlowSagaBuilder) WithConfig(config AchievementFlowConfig) *AchievementFlowSagaBuilder {
	b.config = config
	return b
}

// Build creates the AchievementFlowSaga instance.
func (b *AchievementFlowSagaBuilder) Build() (*AchievementFlowSaga, error) {
	if b.resolver == nil {
		return nil, errors.New("progress resolver is required")
	}
	if b.unlocks == nil {
		return nil, errors.New("unlock repository is required")
	}
	if b.clock == nil {
		return nil, errors.New("clock is required")
	}

	return NewAchievementFlowSaga(
		b.resolver,
		b.unlocks,
		b.students,
		b.eventBus,
		b.idGenerator,
		b.clock,
		b.log,
		b.config,
	), nil
}
