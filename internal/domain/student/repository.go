package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции чтения учеников для вычисления прогресса.
type Repository interface {
	// GetByID возвращает ученика со всеми посещениями, записями на курсы,
	// прогрессом по техникам, челленджами и аттестациями.
	// Возвращает ErrStudentNotFound, если ученик не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// ListActiveIDs возвращает ID активных учеников организации.
	ListActiveIDs(ctx context.Context, organizationID string) ([]string, error)

	// ListOrganizationIDs возвращает ID организаций, у которых есть ученики.
	ListOrganizationIDs(ctx context.Context) ([]string, error)

	// AddXP атомарно увеличивает общий XP ученика.
	// Возвращает ErrStudentNotFound, если ученик не найден.
	AddXP(ctx context.Context, id string, amount int) error
}
