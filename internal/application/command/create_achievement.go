// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
	"github.com/dojo-hub/dojo-progress/pkg/validate"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ACHIEVEMENT COMMAND
// Stores a new achievement definition for an organization. The criteria is
// checked against the known catalogue of types, conditions and timeframes
// so the evaluators never see an unknown rule.
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random (v4) UUIDs.
type UUIDGenerator struct{}

// NewID implements IDGenerator.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// CreateAchievementCommand contains the data of a new achievement.
type CreateAchievementCommand struct {
	// OrganizationID is the owning organization.
	OrganizationID string `json:"organizationId" validate:"required"`

	// Name is the display name.
	Name string `json:"name" validate:"required,max=120"`

	// Description is free text shown to students.
	Description string `json:"description" validate:"max=1000"`

	// Category groups achievements in listings.
	Category achievement.Category `json:"category" validate:"required,oneof=attendance technique progression social challenge special"`

	// Criteria is the unlock rule.
	Criteria achievement.Criteria `json:"criteria"`

	// XPReward is granted on unlock.
	XPReward int `json:"xpReward" validate:"gte=0"`

	// Rarity defaults to common.
	Rarity achievement.Rarity `json:"rarity" validate:"omitempty,oneof=common uncommon rare epic legendary"`

	// IsHidden hides the achievement until it is unlocked.
	IsHidden bool `json:"isHidden"`

	// MartialArtID optionally scopes the achievement to one martial art.
	MartialArtID *string `json:"martialArtId,omitempty"`
}

// Validate validates the command.
func (c CreateAchievementCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Criteria.Validate()
}

// CreateAchievementResult contains the stored achievement.
type CreateAchievementResult struct {
	Achievement *achievement.Achievement
	Events      []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateAchievementHandler handles CreateAchievementCommand.
type CreateAchievementHandler struct {
	repo      achievement.Repository
	publisher shared.EventPublisher
	ids       IDGenerator
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewCreateAchievementHandler creates a new handler. publisher may be nil.
func NewCreateAchievementHandler(
	repo achievement.Repository,
	publisher shared.EventPublisher,
	ids IDGenerator,
	clock timeutil.Clock,
	log *logger.Logger,
) *CreateAchievementHandler {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreateAchievementHandler{
		repo:      repo,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		log:       log.With(logger.Component("create_achievement")),
	}
}

// Handle executes the command.
func (h *CreateAchievementHandler) Handle(ctx context.Context, cmd CreateAchievementCommand) (*CreateAchievementResult, error) {
	if err := cmd.Validate(); err != nil {
		if shared.IsValidation(err) {
			return nil, err
		}
		return nil, shared.WrapError("command", "CreateAchievement", shared.ErrValidation, err.Error(), err)
	}

	now := h.clock.Now()
	a, err := achievement.NewAchievement(achievement.NewAchievementParams{
		ID:             h.ids.NewID(),
		OrganizationID: cmd.OrganizationID,
		Name:           cmd.Name,
		Description:    cmd.Description,
		Category:       cmd.Category,
		Criteria:       cmd.Criteria,
		XPReward:       cmd.XPReward,
		Rarity:         cmd.Rarity,
		IsHidden:       cmd.IsHidden,
		MartialArtID:   cmd.MartialArtID,
		CreatedAt:      now.UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create_achievement: save: %w", err)
	}

	event := shared.NewAchievementCreatedEvent(a.ID, a.OrganizationID, a.Name, string(a.Category), now)
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			// the definition is already stored
			h.log.Warn("failed to publish achievement created event",
				logger.AchievementID(a.ID), logger.Err(err))
		}
	}

	h.log.Info("achievement created",
		logger.AchievementID(a.ID),
		logger.OrganizationID(a.OrganizationID),
		logger.CriteriaType(string(a.Criteria.Type)),
	)

	return &CreateAchievementResult{
		Achievement: a,
		Events:      []shared.Event{event},
	}, nil
}
