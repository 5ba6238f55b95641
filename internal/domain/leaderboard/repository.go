package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// CandidateFilter задаёт выборку кандидатов.
type CandidateFilter struct {
	OrganizationID string
	// Category - только ученики этой категории ("" - все).
	Category string
	// Since - нижняя граница для RecentUnlocks (nil - все разблокировки).
	Since *time.Time
	// MartialArtID - только записи на курсы этого вида ("" - все).
	MartialArtID string
	// Limit - сколько учеников вернуть после упорядочивания по XP.
	Limit int
}

// Repository отбирает активных учеников организации для рейтинга.
type Repository interface {
	// ListCandidates возвращает активных учеников, упорядоченных по TotalXP
	// по убыванию, не более filter.Limit.
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error)
}

// Cache хранит готовые строки рейтинга.
type Cache interface {
	// Get возвращает строки по ключу; ok == false при промахе.
	Get(ctx context.Context, key string) (entries []Entry, ok bool, err error)

	// Set сохраняет строки с TTL.
	Set(ctx context.Context, key string, entries []Entry, ttl time.Duration) error

	// InvalidateOrganization удаляет все закешированные рейтинги организации.
	InvalidateOrganization(ctx context.Context, organizationID string) error
}
