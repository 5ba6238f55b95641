package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
	"github.com/dojo-hub/dojo-progress/pkg/validate"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENT LEADERBOARD QUERY
// Рейтинг активных учеников организации по общему XP с недавними
// достижениями за окно. Без побочных эффектов, кроме кеша чтения.
// ══════════════════════════════════════════════════════════════════════════════

// Ограничения размера рейтинга.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// GetAchievementLeaderboardQuery содержит параметры запроса.
type GetAchievementLeaderboardQuery struct {
	OrganizationID string                `json:"organizationId" validate:"required"`
	Timeframe      leaderboard.Timeframe `json:"timeframe" validate:"omitempty,oneof=week month quarter year all"`
	Limit          int                   `json:"limit" validate:"gte=0,lte=100"`
	Category       string                `json:"category,omitempty"`
	MartialArtID   string                `json:"martialArtId,omitempty"`
}

// Validate проверяет параметры и подставляет значения по умолчанию.
// Ошибки лимита и окна сопоставимы с shared.ErrInvalidLimit и
// shared.ErrInvalidTimeframe.
func (q *GetAchievementLeaderboardQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				switch f.Field {
				case "limit":
					return fmt.Errorf("%w: %w", shared.ErrInvalidLimit, err)
				case "timeframe":
					return fmt.Errorf("%w: %w", shared.ErrInvalidTimeframe, err)
				}
			}
		}
		return err
	}
	if q.Timeframe == "" {
		q.Timeframe = leaderboard.TimeframeAll
	}
	if q.Limit == 0 {
		q.Limit = DefaultLeaderboardLimit
	}
	return nil
}

// CacheKey возвращает ключ кеша для нормализованного запроса.
func (q GetAchievementLeaderboardQuery) CacheKey() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", q.OrganizationID, q.Timeframe, q.Limit, q.Category, q.MartialArtID)
}

// GetAchievementLeaderboardResult содержит результат запроса.
type GetAchievementLeaderboardResult struct {
	OrganizationID string                `json:"organizationId"`
	Timeframe      leaderboard.Timeframe `json:"timeframe"`
	Since          *time.Time            `json:"since,omitempty"`
	Entries        []leaderboard.Entry   `json:"entries"`
	FromCache      bool                  `json:"fromCache"`
	GeneratedAt    time.Time             `json:"generatedAt"`
}

// GetAchievementLeaderboardHandler обрабатывает запрос.
type GetAchievementLeaderboardHandler struct {
	repo     leaderboard.Repository
	cache    leaderboard.Cache
	cacheTTL time.Duration
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewGetAchievementLeaderboardHandler создаёт обработчик. cache может быть nil.
func NewGetAchievementLeaderboardHandler(
	repo leaderboard.Repository,
	cache leaderboard.Cache,
	cacheTTL time.Duration,
	clock timeutil.Clock,
	log *logger.Logger,
) *GetAchievementLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetAchievementLeaderboardHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
		log:      log.With(logger.Component("achievement_leaderboard")),
	}
}

// Handle выполняет запрос.
func (h *GetAchievementLeaderboardHandler) Handle(ctx context.Context, query GetAchievementLeaderboardQuery) (*GetAchievementLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetAchievementLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	now := h.clock.Now()
	since := query.Timeframe.Since(now)
	result := &GetAchievementLeaderboardResult{
		OrganizationID: query.OrganizationID,
		Timeframe:      query.Timeframe,
		Since:          since,
		GeneratedAt:    now,
	}

	key := query.CacheKey()
	if entries, ok := h.fromCache(ctx, key); ok {
		result.Entries = entries
		result.FromCache = true
		return result, nil
	}

	candidates, err := h.repo.ListCandidates(ctx, leaderboard.CandidateFilter{
		OrganizationID: query.OrganizationID,
		Category:       query.Category,
		Since:          since,
		MartialArtID:   query.MartialArtID,
		Limit:          query.Limit,
	})
	if err != nil {
		return nil, shared.WrapError("query", "GetAchievementLeaderboard", shared.ErrExternalService, "failed to load leaderboard candidates", err)
	}

	result.Entries = leaderboard.RankCandidates(candidates, query.Limit, since, query.MartialArtID)

	if h.cache != nil && h.cacheTTL > 0 {
		if err := h.cache.Set(ctx, key, result.Entries, h.cacheTTL); err != nil {
			// кеш не критичен
			h.log.Warn("failed to cache leaderboard", logger.OrganizationID(query.OrganizationID), logger.Err(err))
		}
	}

	return result, nil
}

func (h *GetAchievementLeaderboardHandler) fromCache(ctx context.Context, key string) ([]leaderboard.Entry, bool) {
	if h.cache == nil || h.cacheTTL <= 0 {
		return nil, false
	}
	entries, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.log.Warn("leaderboard cache read failed", logger.String("key", key), logger.Err(err))
		return nil, false
	}
	return entries, ok
}
