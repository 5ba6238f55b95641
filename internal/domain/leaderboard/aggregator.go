package leaderboard

import (
	"sort"
	"time"
)

// RankCandidates упорядочивает кандидатов по TotalXP (по убыванию, при равенстве по
// StudentID), берёт первые limit и формирует строки с рангом от 1.
//
// Недавние разблокировки учитываются только с since включительно (nil - все),
// XP курсов - только по martialArtID, если он задан. Вход не изменяется.
func RankCandidates(candidates []Candidate, limit int, since *time.Time, martialArtID string) []Entry {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].TotalXP != ordered[j].TotalXP {
			return ordered[i].TotalXP > ordered[j].TotalXP
		}
		return ordered[i].StudentID < ordered[j].StudentID
	})

	if limit >= 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	entries := make([]Entry, 0, len(ordered))
	for i, c := range ordered {
		count, recentXP := 0, 0
		for _, u := range c.RecentUnlocks {
			if since != nil && u.UnlockedAt.Before(*since) {
				continue
			}
			count++
			recentXP += u.XPReward
		}

		courseXP := 0
		for _, e := range c.Enrollments {
			if martialArtID != "" && e.MartialArtID != martialArtID {
				continue
			}
			courseXP += e.CurrentXP
		}

		entries = append(entries, Entry{
			Rank:              Rank(i + 1),
			StudentID:         c.StudentID,
			Name:              c.Name,
			Avatar:            c.Avatar,
			Category:          c.Category,
			TotalXP:           c.TotalXP,
			GlobalLevel:       c.GlobalLevel,
			AchievementsCount: count,
			RecentXP:          recentXP,
			CourseXP:          courseXP,
		})
	}
	return entries
}
