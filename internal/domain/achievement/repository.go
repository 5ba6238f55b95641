package achievement

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ListFilter сужает выборку достижений организации.
type ListFilter struct {
	// Category - только достижения этой категории (nil - все).
	Category *Category
	// ExcludeHidden - исключить скрытые достижения.
	ExcludeHidden bool
}

// Repository хранит определения достижений.
type Repository interface {
	// Create сохраняет новое достижение.
	// Возвращает ошибку с ErrAlreadyExists при повторном ID.
	Create(ctx context.Context, a *Achievement) error

	// GetByID возвращает достижение.
	// Возвращает ErrAchievementNotFound, если его нет.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// ListByOrganization возвращает достижения организации в стабильном
	// порядке (по дате создания, затем по ID).
	ListByOrganization(ctx context.Context, organizationID string, filter ListFilter) ([]*Achievement, error)
}

// UnlockRepository хранит факты разблокировки.
type UnlockRepository interface {
	// ListByStudent возвращает все разблокировки ученика.
	ListByStudent(ctx context.Context, studentID string) ([]StudentAchievement, error)

	// Unlock сохраняет разблокировку.
	// Возвращает ErrAchievementAlreadyUnlocked, если пара уже существует.
	Unlock(ctx context.Context, sa StudentAchievement) error
}
