// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"errors"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT UNLOCKED HANDLER
// Сбрасывает закешированные рейтинги организации после разблокировки:
// изменились число недавних достижений и, возможно, TotalXP ученика.
//
// Событие может прийти как типизированное (локальная шина) или как
// удалённое с данными только в Payload (Redis), поэтому организация
// берётся из Payload при необходимости.
// ═══════════════════════════════════════════════════════════════════════════

// ErrMissingOrganization возвращается для события без организации.
var ErrMissingOrganization = errors.New("eventhandler: event has no organization_id")

// OnAchievementUnlockedHandler инвалидирует кеш рейтинга.
type OnAchievementUnlockedHandler struct {
	cache   leaderboard.Cache
	timeout time.Duration
	log     *logger.Logger
}

// NewOnAchievementUnlockedHandler создаёт обработчик. timeout <= 0
// заменяется на 2 секунды.
func NewOnAchievementUnlockedHandler(cache leaderboard.Cache, timeout time.Duration, log *logger.Logger) *OnAchievementUnlockedHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OnAchievementUnlockedHandler{
		cache:   cache,
		timeout: timeout,
		log:     log.With(logger.String("handler", "on_achievement_unlocked")),
	}
}

// Register подписывает обработчик на шину.
func (h *OnAchievementUnlockedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventAchievementUnlocked, h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *OnAchievementUnlockedHandler) Handle(event shared.Event) error {
	orgID := organizationOf(event)
	if orgID == "" {
		h.log.Warn("unlock event without organization", logger.String("aggregate_id", event.AggregateID()))
		return ErrMissingOrganization
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateOrganization(ctx, orgID); err != nil {
		return err
	}

	h.log.Debug("leaderboard cache invalidated",
		logger.OrganizationID(orgID),
		logger.StudentID(event.AggregateID()),
	)
	return nil
}

func organizationOf(event shared.Event) string {
	switch e := event.(type) {
	case shared.AchievementUnlockedEvent:
		return e.OrganizationID
	case shared.AchievementCreatedEvent:
		return e.OrganizationID
	}
	if v, ok := event.Payload()["organization_id"].(string); ok {
		return v
	}
	return ""
}
