package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

// UnlockRepository implements achievement.UnlockRepository for PostgreSQL.
type UnlockRepository struct {
	conn *Connection
}

// NewUnlockRepository creates a new UnlockRepository.
func NewUnlockRepository(conn *Connection) *UnlockRepository {
	return &UnlockRepository{conn: conn}
}

var _ achievement.UnlockRepository = (*UnlockRepository)(nil)

// ListByStudent returns unlocks ordered by unlock time.
func (r *UnlockRepository) ListByStudent(ctx context.Context, studentID string) ([]achievement.StudentAchievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, achievement_id, unlocked_at
		FROM student_achievements
		WHERE student_id = $1
		ORDER BY unlocked_at, achievement_id
	`, studentID)
	if err != nil {
		return nil, storageError("ListUnlocks", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (achievement.StudentAchievement, error) {
		var sa achievement.StudentAchievement
		err := row.Scan(&sa.ID, &sa.StudentID, &sa.AchievementID, &sa.UnlockedAt)
		return sa, err
	})
	if err != nil {
		return nil, storageError("ListUnlocks", err)
	}
	return list, nil
}

// Unlock inserts the unlock. The (student_id, achievement_id) constraint
// turns a concurrent duplicate into ErrAchievementAlreadyUnlocked.
func (r *UnlockRepository) Unlock(ctx context.Context, sa achievement.StudentAchievement) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO student_achievements (id, student_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3, $4)
	`, sa.ID, sa.StudentID, sa.AchievementID, sa.UnlockedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAchievementAlreadyUnlocked
		}
		return storageError("Unlock", err)
	}
	return nil
}
