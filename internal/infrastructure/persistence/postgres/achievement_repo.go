package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
// Criteria are stored as JSONB in the camelCase shape of achievement.Criteria.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

var _ achievement.Repository = (*AchievementRepository)(nil)

const achievementColumns = `
	id, organization_id, name, description, category, criteria,
	xp_reward, rarity, is_hidden, martial_art_id, created_at`

// Create inserts a new achievement definition.
func (r *AchievementRepository) Create(ctx context.Context, a *achievement.Achievement) error {
	criteria, err := json.Marshal(a.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		a.ID,
		a.OrganizationID,
		a.Name,
		a.Description,
		string(a.Category),
		criteria,
		a.XPReward,
		string(a.Rarity),
		a.IsHidden,
		a.MartialArtID,
		a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("achievement", "Create", shared.ErrAlreadyExists, "achievement "+a.ID+" already exists")
		}
		return storageError("CreateAchievement", err)
	}
	return nil
}

// GetByID returns a single achievement definition.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, id)
	if err != nil {
		return nil, storageError("GetAchievement", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAchievement)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, storageError("GetAchievement", err)
	}
	return a, nil
}

// ListByOrganization returns definitions ordered by creation time, then id.
func (r *AchievementRepository) ListByOrganization(ctx context.Context, organizationID string, filter achievement.ListFilter) ([]*achievement.Achievement, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + achievementColumns + ` FROM achievements WHERE organization_id = $1`)
	args := []interface{}{organizationID}

	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		fmt.Fprintf(&sb, " AND category = $%d", len(args))
	}
	if filter.ExcludeHidden {
		sb.WriteString(" AND NOT is_hidden")
	}
	sb.WriteString(" ORDER BY created_at, id")

	rows, err := r.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, storageError("ListAchievements", err)
	}
	list, err := pgx.CollectRows(rows, scanAchievement)
	if err != nil {
		return nil, storageError("ListAchievements", err)
	}
	return list, nil
}

func scanAchievement(row pgx.CollectableRow) (*achievement.Achievement, error) {
	var (
		a                achievement.Achievement
		category, rarity string
		criteria         []byte
	)
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.Name, &a.Description, &category, &criteria,
		&a.XPReward, &rarity, &a.IsHidden, &a.MartialArtID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Category = achievement.Category(category)
	a.Rarity = achievement.Rarity(rarity)

	// Unreadable criteria keep the definition listed with an empty rule;
	// evaluation then reports it as an unknown type and progress 0.
	if err := json.Unmarshal(criteria, &a.Criteria); err != nil {
		a.Criteria = achievement.Criteria{}
	}
	return &a, nil
}
