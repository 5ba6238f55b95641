// Package achievement содержит модель достижений и движок вычисления прогресса.
//
// Достижение (Achievement) описывает награду и правило разблокировки
// (Criteria). Вычислители (Evaluator) сводят историю ученика к числу,
// которое переводится в процент через Percentage. Факт разблокировки
// хранится в StudentAchievement и является окончательным.
package achievement

import (
	"strings"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Category - категория достижения для группировки и фильтрации.
type Category string

const (
	CategoryAttendance  Category = "attendance"
	CategoryTechnique   Category = "technique"
	CategoryProgression Category = "progression"
	CategorySocial      Category = "social"
	CategoryChallenge   Category = "challenge"
	CategorySpecial     Category = "special"
)

// IsValid проверяет корректность категории.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAttendance, CategoryTechnique, CategoryProgression,
		CategorySocial, CategoryChallenge, CategorySpecial:
		return true
	}
	return false
}

// Rarity - редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет корректность редкости.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - именованная награда организации с правилом разблокировки.
// После создания не изменяется.
type Achievement struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	Category       Category
	Criteria       Criteria
	XPReward       int
	Rarity         Rarity
	IsHidden       bool
	MartialArtID   *string
	CreatedAt      time.Time
}

// NewAchievementParams - параметры создания достижения.
type NewAchievementParams struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	Category       Category
	Criteria       Criteria
	XPReward       int
	Rarity         Rarity
	IsHidden       bool
	MartialArtID   *string
	CreatedAt      time.Time
}

// NewAchievement создаёт достижение с проверкой инвариантов.
// Пустая редкость заменяется на common.
func NewAchievement(p NewAchievementParams) (*Achievement, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, shared.NewDomainError("achievement", "Create", shared.ErrInvalidID, "achievement id is required")
	}
	if strings.TrimSpace(p.OrganizationID) == "" {
		return nil, shared.NewDomainError("achievement", "Create", shared.ErrInvalidID, "organization id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, shared.NewDomainError("achievement", "Create", shared.ErrEmptyValue, "name is required")
	}
	if !p.Category.IsValid() {
		return nil, shared.NewDomainError("achievement", "Create", shared.ErrValidation, "invalid category")
	}
	if p.Rarity == "" {
		p.Rarity = RarityCommon
	}
	if !p.Rarity.IsValid() {
		return nil, shared.NewDomainError("achievement", "Create", shared.ErrValidation, "invalid rarity")
	}
	if p.XPReward < 0 {
		return nil, shared.NewDomainError("achievement", "Create", shared.ErrNegativeValue, "xp reward cannot be negative")
	}
	if err := p.Criteria.Validate(); err != nil {
		return nil, err
	}

	return &Achievement{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Name:           strings.TrimSpace(p.Name),
		Description:    p.Description,
		Category:       p.Category,
		Criteria:       p.Criteria,
		XPReward:       p.XPReward,
		Rarity:         p.Rarity,
		IsHidden:       p.IsHidden,
		MartialArtID:   p.MartialArtID,
		CreatedAt:      p.CreatedAt,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// StudentAchievement - факт разблокировки. Создаётся ровно один раз на пару
// (ученик, достижение) и никогда не удаляется.
type StudentAchievement struct {
	ID            string
	StudentID     string
	AchievementID string
	UnlockedAt    time.Time
}

// NewStudentAchievement создаёт запись о разблокировке.
func NewStudentAchievement(id, studentID, achievementID string, at time.Time) (StudentAchievement, error) {
	if id == "" || studentID == "" || achievementID == "" {
		return StudentAchievement{}, shared.NewDomainError("achievement", "Unlock", shared.ErrInvalidID, "unlock requires id, student and achievement")
	}
	if at.IsZero() {
		return StudentAchievement{}, shared.NewDomainError("achievement", "Unlock", shared.ErrEmptyValue, "unlock time is required")
	}
	return StudentAchievement{
		ID:            id,
		StudentID:     studentID,
		AchievementID: achievementID,
		UnlockedAt:    at,
	}, nil
}
