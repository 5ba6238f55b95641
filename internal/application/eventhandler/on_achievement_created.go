package eventhandler

import (
	"context"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT CREATED HANDLER
// Новое достижение может быть уже выполнено частью учеников. Вместо
// ожидания планового обхода запускается обход одной организации.
// ═══════════════════════════════════════════════════════════════════════════

// OrganizationSweeper выдаёт выполненные достижения ученикам организации.
type OrganizationSweeper interface {
	SweepOrganization(ctx context.Context, organizationID string) error
}

// SweeperFunc адаптирует функцию к OrganizationSweeper.
type SweeperFunc func(ctx context.Context, organizationID string) error

// SweepOrganization реализует OrganizationSweeper.
func (f SweeperFunc) SweepOrganization(ctx context.Context, organizationID string) error {
	return f(ctx, organizationID)
}

// OnAchievementCreatedHandler запускает обход организации нового достижения.
type OnAchievementCreatedHandler struct {
	sweeper OrganizationSweeper
	log     *logger.Logger
}

// NewOnAchievementCreatedHandler создаёт обработчик. Время обхода
// ограничивает сам sweeper.
func NewOnAchievementCreatedHandler(sweeper OrganizationSweeper, log *logger.Logger) *OnAchievementCreatedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnAchievementCreatedHandler{
		sweeper: sweeper,
		log:     log.With(logger.String("handler", "on_achievement_created")),
	}
}

// Register подписывает обработчик на шину.
func (h *OnAchievementCreatedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventAchievementCreated, h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *OnAchievementCreatedHandler) Handle(event shared.Event) error {
	orgID := organizationOf(event)
	if orgID == "" {
		h.log.Warn("create event without organization", logger.AchievementID(event.AggregateID()))
		return ErrMissingOrganization
	}

	if err := h.sweeper.SweepOrganization(context.Background(), orgID); err != nil {
		return err
	}

	h.log.Debug("organization swept for new achievement",
		logger.OrganizationID(orgID),
		logger.AchievementID(event.AggregateID()),
	)
	return nil
}
