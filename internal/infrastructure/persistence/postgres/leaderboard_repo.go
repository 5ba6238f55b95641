package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

var _ leaderboard.Repository = (*LeaderboardRepository)(nil)

// ListCandidates selects active students ordered by total XP and then
// batches the unlock and enrollment lookups for the selected ids.
func (r *LeaderboardRepository) ListCandidates(ctx context.Context, filter leaderboard.CandidateFilter) ([]leaderboard.Candidate, error) {
	candidates, err := r.selectStudents(ctx, filter)
	if err != nil {
		return nil, storageError("ListCandidates", err)
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		ids[i] = c.StudentID
		index[c.StudentID] = i
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		SELECT sa.student_id, sa.achievement_id, a.xp_reward, sa.unlocked_at
		FROM student_achievements sa
		JOIN achievements a ON a.id = sa.achievement_id
		WHERE sa.student_id = ANY($1) AND ($2::timestamptz IS NULL OR sa.unlocked_at >= $2)
		ORDER BY sa.unlocked_at
	`, ids, sinceArg(filter.Since)).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var studentID string
			var u leaderboard.UnlockSummary
			if err := rows.Scan(&studentID, &u.AchievementID, &u.XPReward, &u.UnlockedAt); err != nil {
				return err
			}
			c := &candidates[index[studentID]]
			c.RecentUnlocks = append(c.RecentUnlocks, u)
		}
		return rows.Err()
	})

	batch.Queue(`
		SELECT e.student_id, c.martial_art_id, e.current_xp
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = ANY($1) AND ($2 = '' OR c.martial_art_id = $2)
		ORDER BY e.id
	`, ids, filter.MartialArtID).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var studentID string
			var e leaderboard.EnrollmentXP
			if err := rows.Scan(&studentID, &e.MartialArtID, &e.CurrentXP); err != nil {
				return err
			}
			c := &candidates[index[studentID]]
			c.Enrollments = append(c.Enrollments, e)
		}
		return rows.Err()
	})

	if err := r.conn.Pool().SendBatch(ctx, batch).Close(); err != nil {
		return nil, storageError("ListCandidates", err)
	}
	return candidates, nil
}

func (r *LeaderboardRepository) selectStudents(ctx context.Context, filter leaderboard.CandidateFilter) ([]leaderboard.Candidate, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, name, avatar, category, total_xp, global_level
		FROM students
		WHERE organization_id = $1 AND is_active`)
	args := []interface{}{filter.OrganizationID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		fmt.Fprintf(&sb, " AND category = $%d", len(args))
	}
	sb.WriteString(" ORDER BY total_xp DESC, id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (leaderboard.Candidate, error) {
		var c leaderboard.Candidate
		err := row.Scan(&c.StudentID, &c.Name, &c.Avatar, &c.Category, &c.TotalXP, &c.GlobalLevel)
		return c, err
	})
}

// sinceArg passes an unset window as SQL NULL.
func sinceArg(since *time.Time) interface{} {
	if since == nil {
		return nil
	}
	return *since
}
