package student

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TechniqueStatus - стадия освоения техники.
type TechniqueStatus string

const (
	TechniqueLearning   TechniqueStatus = "LEARNING"
	TechniquePracticing TechniqueStatus = "PRACTICING"
	TechniqueMastered   TechniqueStatus = "MASTERED"
)

// IsValid проверяет корректность статуса.
func (s TechniqueStatus) IsValid() bool {
	switch s {
	case TechniqueLearning, TechniquePracticing, TechniqueMastered:
		return true
	}
	return false
}

// ParseTechniqueStatus разбирает статус из хранилища. Неизвестный статус -
// ошибка: от него зависит подсчёт освоенных техник.
func ParseTechniqueStatus(raw string) (TechniqueStatus, error) {
	s := TechniqueStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.WrapError("student", "ParseTechniqueStatus", shared.ErrInvalidFormat,
			"unknown technique status", fmt.Errorf("%q", raw))
	}
	return s, nil
}

// EnrollmentStatus - статус записи на курс.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentPaused    EnrollmentStatus = "PAUSED"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceStatus - статус отметки о посещении.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// IsValid проверяет корректность статуса.
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// ParseAttendanceStatus разбирает статус из хранилища. Посещение
// засчитывается при любом статусе, поэтому пустой или неизвестный
// статус приводится к AttendancePresent.
func ParseAttendanceStatus(raw string) AttendanceStatus {
	s := AttendanceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return AttendancePresent
	}
	return s
}

// Attendance - отметка о посещении занятия.
// Для подсчёта достижений учитывается любая запись, независимо от статуса.
type Attendance struct {
	ID          string
	ClassID     string
	CheckInTime time.Time
	Status      AttendanceStatus
}

// Course - курс внутри вида единоборств.
type Course struct {
	ID           string
	Name         string
	MartialArtID string
}

// Technique - элемент учебной программы.
type Technique struct {
	ID   string
	Name string
	// Category - категория техники (например, "strikes", "grappling").
	Category string
}

// TechniqueProgress - прогресс ученика по одной технике.
type TechniqueProgress struct {
	Technique Technique
	Status    TechniqueStatus
	// Accuracy - точность последнего выполнения в процентах (0-100).
	Accuracy  float64
	Attempts  int
	UpdatedAt time.Time
}

// IsMastered возвращает true для освоенной техники.
func (p TechniqueProgress) IsMastered() bool {
	return p.Status == TechniqueMastered
}

// ChallengeProgress - участие ученика в челлендже.
type ChallengeProgress struct {
	ChallengeID string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Evaluation - аттестация ученика в рамках курса.
type Evaluation struct {
	ID           string
	Passed       bool
	OverallScore *float64
	EvaluatedAt  time.Time
}

// Enrollment - запись ученика на курс со всем прогрессом внутри курса.
type Enrollment struct {
	ID                string
	CourseID          string
	Status            EnrollmentStatus
	CurrentXP         int
	CurrentLevel      int
	Course            Course
	TechniqueProgress []TechniqueProgress
	ChallengeProgress []ChallengeProgress
	Evaluations       []Evaluation
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Student - агрегат, по которому вычисляется прогресс достижений.
// Загружается целиком: посещения, записи на курсы и вложенный прогресс.
type Student struct {
	ID             string
	OrganizationID string
	Name           string
	Avatar         string
	Category       string
	TotalXP        int
	GlobalLevel    int
	CurrentStreak  int
	IsActive       bool
	Attendances    []Attendance
	Enrollments    []Enrollment
}

// Clone возвращает глубокую копию: срезы и указатели не разделяются
// с исходным агрегатом. Безопасен для nil-получателя.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Attendances = slices.Clone(s.Attendances)
	if s.Enrollments != nil {
		cp.Enrollments = make([]Enrollment, len(s.Enrollments))
		for i, e := range s.Enrollments {
			e.TechniqueProgress = slices.Clone(e.TechniqueProgress)
			e.ChallengeProgress = slices.Clone(e.ChallengeProgress)
			for j, c := range e.ChallengeProgress {
				e.ChallengeProgress[j].CompletedAt = clonePtr(c.CompletedAt)
			}
			e.Evaluations = slices.Clone(e.Evaluations)
			for j, ev := range e.Evaluations {
				e.Evaluations[j].OverallScore = clonePtr(ev.OverallScore)
			}
			cp.Enrollments[i] = e
		}
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// AllTechniqueProgress возвращает прогресс по техникам со всех курсов.
// Безопасен для nil-получателя.
func (s *Student) AllTechniqueProgress() []TechniqueProgress {
	if s == nil {
		return nil
	}
	var out []TechniqueProgress
	for _, e := range s.Enrollments {
		out = append(out, e.TechniqueProgress...)
	}
	return out
}

// AllChallengeProgress возвращает участие в челленджах со всех курсов.
func (s *Student) AllChallengeProgress() []ChallengeProgress {
	if s == nil {
		return nil
	}
	var out []ChallengeProgress
	for _, e := range s.Enrollments {
		out = append(out, e.ChallengeProgress...)
	}
	return out
}

// AllEvaluations возвращает аттестации со всех курсов.
func (s *Student) AllEvaluations() []Evaluation {
	if s == nil {
		return nil
	}
	var out []Evaluation
	for _, e := range s.Enrollments {
		out = append(out, e.Evaluations...)
	}
	return out
}

// AttendanceRecords возвращает посещения, безопасно для nil.
func (s *Student) AttendanceRecords() []Attendance {
	if s == nil {
		return nil
	}
	return s.Attendances
}

// EnrollmentList возвращает записи на курсы, безопасно для nil.
func (s *Student) EnrollmentList() []Enrollment {
	if s == nil {
		return nil
	}
	return s.Enrollments
}
