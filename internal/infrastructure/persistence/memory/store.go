// Package memory provides in-process implementations of the domain
// repositories. They back the tests and the worker's dry-run mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

// Store holds students, achievements and unlocks behind one mutex. The
// repository views returned by its accessors share that state.
type Store struct {
	mu           sync.RWMutex
	students     map[string]*student.Student
	achievements map[string]*achievement.Achievement
	unlocks      map[string]map[string]achievement.StudentAchievement // student -> achievement -> row
}

// StudentRepository is the student.Repository view of a Store.
type StudentRepository struct{ s *Store }

// AchievementRepository is the achievement.Repository view of a Store.
type AchievementRepository struct{ s *Store }

// UnlockRepository is the achievement.UnlockRepository view of a Store.
type UnlockRepository struct{ s *Store }

// LeaderboardRepository is the leaderboard.Repository view of a Store.
type LeaderboardRepository struct{ s *Store }

// Compile-time interface checks.
var (
	_ student.Repository           = (*StudentRepository)(nil)
	_ achievement.Repository       = (*AchievementRepository)(nil)
	_ achievement.UnlockRepository = (*UnlockRepository)(nil)
	_ leaderboard.Repository       = (*LeaderboardRepository)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		students:     make(map[string]*student.Student),
		achievements: make(map[string]*achievement.Achievement),
		unlocks:      make(map[string]map[string]achievement.StudentAchievement),
	}
}

// Students returns the student repository view.
func (s *Store) Students() *StudentRepository { return &StudentRepository{s: s} }

// Achievements returns the achievement repository view.
func (s *Store) Achievements() *AchievementRepository { return &AchievementRepository{s: s} }

// Unlocks returns the unlock repository view.
func (s *Store) Unlocks() *UnlockRepository { return &UnlockRepository{s: s} }

// Leaderboard returns the leaderboard repository view.
func (s *Store) Leaderboard() *LeaderboardRepository { return &LeaderboardRepository{s: s} }

// PutStudent inserts or replaces a deep copy of the student.
func (s *Store) PutStudent(st *student.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st.Clone()
}

// ══════════════════════════════════════════════════════════════════════════════
// student.Repository
// ══════════════════════════════════════════════════════════════════════════════

// GetByID returns a deep copy of the student.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return st.Clone(), nil
}

// ListActiveIDs returns IDs of active students of the organization, sorted.
func (r *StudentRepository) ListActiveIDs(ctx context.Context, organizationID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, st := range s.students {
		if st.IsActive && st.OrganizationID == organizationID {
			ids = append(ids, st.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListOrganizationIDs returns every organization that has students, sorted.
func (r *StudentRepository) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, st := range s.students {
		seen[st.OrganizationID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AddXP increments the student's total XP.
func (r *StudentRepository) AddXP(ctx context.Context, id string, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	st.TotalXP += amount
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// achievement.Repository
// ══════════════════════════════════════════════════════════════════════════════

// Create stores a new achievement.
func (r *AchievementRepository) Create(ctx context.Context, a *achievement.Achievement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.achievements[a.ID]; ok {
		return shared.NewDomainError("achievement", "Create", shared.ErrAlreadyExists, "achievement id already used")
	}
	cp := *a
	s.achievements[a.ID] = &cp
	return nil
}

// GetByID returns a copy of the achievement.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.achievements[id]
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}
	cp := *a
	return &cp, nil
}

// ListByOrganization returns the organization's achievements ordered by
// creation time then ID.
func (r *AchievementRepository) ListByOrganization(ctx context.Context, organizationID string, filter achievement.ListFilter) ([]*achievement.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*achievement.Achievement
	for _, a := range s.achievements {
		if a.OrganizationID != organizationID {
			continue
		}
		if filter.Category != nil && a.Category != *filter.Category {
			continue
		}
		if filter.ExcludeHidden && a.IsHidden {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// achievement.UnlockRepository
// ══════════════════════════════════════════════════════════════════════════════

// ListByStudent returns the student's unlocks ordered by unlock time.
func (r *UnlockRepository) ListByStudent(ctx context.Context, studentID string) ([]achievement.StudentAchievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]achievement.StudentAchievement, 0, len(s.unlocks[studentID]))
	for _, row := range s.unlocks[studentID] {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].UnlockedAt.Before(rows[j].UnlockedAt)
	})
	return rows, nil
}

// Unlock stores the pair once; a repeated pair yields ErrAchievementAlreadyUnlocked.
func (r *UnlockRepository) Unlock(ctx context.Context, sa achievement.StudentAchievement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	byAchievement, ok := s.unlocks[sa.StudentID]
	if !ok {
		byAchievement = make(map[string]achievement.StudentAchievement)
		s.unlocks[sa.StudentID] = byAchievement
	}
	if _, exists := byAchievement[sa.AchievementID]; exists {
		return shared.ErrAchievementAlreadyUnlocked
	}
	byAchievement[sa.AchievementID] = sa
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// leaderboard.Repository
// ══════════════════════════════════════════════════════════════════════════════

// ListCandidates returns active students of the organization ordered by
// TotalXP desc (ties by ID), at most filter.Limit.
func (r *LeaderboardRepository) ListCandidates(ctx context.Context, filter leaderboard.CandidateFilter) ([]leaderboard.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []leaderboard.Candidate
	for _, st := range s.students {
		if !st.IsActive || st.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Category != "" && st.Category != filter.Category {
			continue
		}

		c := leaderboard.Candidate{
			StudentID:   st.ID,
			Name:        st.Name,
			Avatar:      st.Avatar,
			Category:    st.Category,
			TotalXP:     st.TotalXP,
			GlobalLevel: st.GlobalLevel,
		}
		for _, u := range s.unlocks[st.ID] {
			if filter.Since != nil && u.UnlockedAt.Before(*filter.Since) {
				continue
			}
			xp := 0
			if a, ok := s.achievements[u.AchievementID]; ok {
				xp = a.XPReward
			}
			c.RecentUnlocks = append(c.RecentUnlocks, leaderboard.UnlockSummary{
				AchievementID: u.AchievementID,
				XPReward:      xp,
				UnlockedAt:    u.UnlockedAt,
			})
		}
		for _, e := range st.Enrollments {
			if filter.MartialArtID != "" && e.Course.MartialArtID != filter.MartialArtID {
				continue
			}
			c.Enrollments = append(c.Enrollments, leaderboard.EnrollmentXP{
				MartialArtID: e.Course.MartialArtID,
				CurrentXP:    e.CurrentXP,
			})
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalXP != out[j].TotalXP {
			return out[i].TotalXP > out[j].TotalXP
		}
		return out[i].StudentID < out[j].StudentID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
