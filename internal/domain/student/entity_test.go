package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

func TestStudent_CloneIsDeep(t *testing.T) {
	score := 90.0
	done := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	orig := &Student{
		ID:          "stu-1",
		Attendances: []Attendance{{ID: "att-1", Status: AttendancePresent}},
		Enrollments: []Enrollment{{
			ID:                "enr-1",
			TechniqueProgress: []TechniqueProgress{{Status: TechniqueLearning}},
			ChallengeProgress: []ChallengeProgress{{ChallengeID: "ch-1", CompletedAt: &done}},
			Evaluations:       []Evaluation{{ID: "ev-1", OverallScore: &score}},
		}},
	}

	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Attendances[0].Status = AttendanceLate
	cp.Attendances = append(cp.Attendances, Attendance{ID: "att-2"})
	cp.Enrollments[0].TechniqueProgress[0].Status = TechniqueMastered
	*cp.Enrollments[0].ChallengeProgress[0].CompletedAt = done.AddDate(1, 0, 0)
	*cp.Enrollments[0].Evaluations[0].OverallScore = 10

	assert.Len(t, orig.Attendances, 1)
	assert.Equal(t, AttendancePresent, orig.Attendances[0].Status)
	assert.Equal(t, TechniqueLearning, orig.Enrollments[0].TechniqueProgress[0].Status)
	assert.Equal(t, done, *orig.Enrollments[0].ChallengeProgress[0].CompletedAt)
	assert.Equal(t, 90.0, *orig.Enrollments[0].Evaluations[0].OverallScore)

	var none *Student
	assert.Nil(t, none.Clone())
}

func TestParseTechniqueStatus(t *testing.T) {
	s, err := ParseTechniqueStatus("MASTERED")
	require.NoError(t, err)
	assert.Equal(t, TechniqueMastered, s)

	s, err = ParseTechniqueStatus(" practicing ")
	require.NoError(t, err)
	assert.Equal(t, TechniquePracticing, s)

	_, err = ParseTechniqueStatus("FORGOTTEN")
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	_, err = ParseTechniqueStatus("")
	assert.Error(t, err)
}

func TestParseAttendanceStatus(t *testing.T) {
	assert.Equal(t, AttendanceLate, ParseAttendanceStatus("late"))
	assert.Equal(t, AttendanceExcused, ParseAttendanceStatus("EXCUSED"))
	assert.Equal(t, AttendancePresent, ParseAttendanceStatus(""))
	assert.Equal(t, AttendancePresent, ParseAttendanceStatus("ONLINE"))
	assert.False(t, AttendanceStatus("ONLINE").IsValid())
}
