package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

var _ student.Repository = (*StudentRepository)(nil)

// GetByID loads the student with attendances and every enrollment including
// technique, challenge and evaluation history.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	s := &student.Student{}
	err := r.conn.QueryRow(ctx, `
		SELECT id, organization_id, name, avatar, category,
		       total_xp, global_level, current_streak, is_active
		FROM students
		WHERE id = $1
	`, id).Scan(
		&s.ID, &s.OrganizationID, &s.Name, &s.Avatar, &s.Category,
		&s.TotalXP, &s.GlobalLevel, &s.CurrentStreak, &s.IsActive,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, storageError("GetStudent", err)
	}

	if s.Attendances, err = r.loadAttendances(ctx, id); err != nil {
		return nil, storageError("GetStudent", err)
	}
	if s.Enrollments, err = r.loadEnrollments(ctx, id); err != nil {
		return nil, storageError("GetStudent", err)
	}
	return s, nil
}

func (r *StudentRepository) loadAttendances(ctx context.Context, studentID string) ([]student.Attendance, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, class_id, check_in_time, status
		FROM attendances
		WHERE student_id = $1
		ORDER BY check_in_time
	`, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (student.Attendance, error) {
		var a student.Attendance
		var status string
		err := row.Scan(&a.ID, &a.ClassID, &a.CheckInTime, &status)
		a.Status = student.ParseAttendanceStatus(status)
		return a, err
	})
}

// loadEnrollments fetches enrollments and their nested history with one
// round trip per table, keyed by enrollment id.
func (r *StudentRepository) loadEnrollments(ctx context.Context, studentID string) ([]student.Enrollment, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT e.id, e.course_id, e.status, e.current_xp, e.current_level,
		       c.name, c.martial_art_id
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = $1
		ORDER BY e.id
	`, studentID)
	if err != nil {
		return nil, err
	}
	enrollments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (student.Enrollment, error) {
		var e student.Enrollment
		var status string
		err := row.Scan(&e.ID, &e.CourseID, &status, &e.CurrentXP, &e.CurrentLevel,
			&e.Course.Name, &e.Course.MartialArtID)
		e.Status = student.EnrollmentStatus(status)
		e.Course.ID = e.CourseID
		return e, err
	})
	if err != nil || len(enrollments) == 0 {
		return enrollments, err
	}

	ids := make([]string, len(enrollments))
	index := make(map[string]int, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
		index[e.ID] = i
	}

	if err := r.loadTechniqueProgress(ctx, ids, func(id string, p student.TechniqueProgress) {
		enrollments[index[id]].TechniqueProgress = append(enrollments[index[id]].TechniqueProgress, p)
	}); err != nil {
		return nil, err
	}
	if err := r.loadChallengeProgress(ctx, ids, func(id string, p student.ChallengeProgress) {
		enrollments[index[id]].ChallengeProgress = append(enrollments[index[id]].ChallengeProgress, p)
	}); err != nil {
		return nil, err
	}
	if err := r.loadEvaluations(ctx, ids, func(id string, ev student.Evaluation) {
		enrollments[index[id]].Evaluations = append(enrollments[index[id]].Evaluations, ev)
	}); err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (r *StudentRepository) loadTechniqueProgress(ctx context.Context, enrollmentIDs []string, add func(string, student.TechniqueProgress)) error {
	rows, err := r.conn.Query(ctx, `
		SELECT tp.enrollment_id, t.id, t.name, t.category,
		       tp.status, tp.accuracy, tp.attempts, tp.updated_at
		FROM technique_progress tp
		JOIN techniques t ON t.id = tp.technique_id
		WHERE tp.enrollment_id = ANY($1)
		ORDER BY tp.updated_at, t.id
	`, enrollmentIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var enrollmentID, status string
		var p student.TechniqueProgress
		if err := rows.Scan(&enrollmentID, &p.Technique.ID, &p.Technique.Name, &p.Technique.Category,
			&status, &p.Accuracy, &p.Attempts, &p.UpdatedAt); err != nil {
			return err
		}
		if p.Status, err = student.ParseTechniqueStatus(status); err != nil {
			return fmt.Errorf("technique %s: %w", p.Technique.ID, err)
		}
		add(enrollmentID, p)
	}
	return rows.Err()
}

func (r *StudentRepository) loadChallengeProgress(ctx context.Context, enrollmentIDs []string, add func(string, student.ChallengeProgress)) error {
	rows, err := r.conn.Query(ctx, `
		SELECT enrollment_id, challenge_id, completed, completed_at, created_at
		FROM challenge_progress
		WHERE enrollment_id = ANY($1)
		ORDER BY created_at, challenge_id
	`, enrollmentIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var enrollmentID string
		var p student.ChallengeProgress
		var completedAt *time.Time
		if err := rows.Scan(&enrollmentID, &p.ChallengeID, &p.Completed, &completedAt, &p.CreatedAt); err != nil {
			return err
		}
		p.CompletedAt = completedAt
		add(enrollmentID, p)
	}
	return rows.Err()
}

func (r *StudentRepository) loadEvaluations(ctx context.Context, enrollmentIDs []string, add func(string, student.Evaluation)) error {
	rows, err := r.conn.Query(ctx, `
		SELECT enrollment_id, id, passed, overall_score, evaluated_at
		FROM evaluations
		WHERE enrollment_id = ANY($1)
		ORDER BY evaluated_at, id
	`, enrollmentIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var enrollmentID string
		var ev student.Evaluation
		if err := rows.Scan(&enrollmentID, &ev.ID, &ev.Passed, &ev.OverallScore, &ev.EvaluatedAt); err != nil {
			return err
		}
		add(enrollmentID, ev)
	}
	return rows.Err()
}

// ListActiveIDs returns active student ids of the organization.
func (r *StudentRepository) ListActiveIDs(ctx context.Context, organizationID string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id FROM students
		WHERE organization_id = $1 AND is_active
		ORDER BY id
	`, organizationID)
	if err != nil {
		return nil, storageError("ListActiveStudents", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageError("ListActiveStudents", err)
	}
	return ids, nil
}

// ListOrganizationIDs returns organizations that have at least one student.
func (r *StudentRepository) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT DISTINCT organization_id FROM students ORDER BY organization_id`)
	if err != nil {
		return nil, storageError("ListOrganizations", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageError("ListOrganizations", err)
	}
	return ids, nil
}

// AddXP increments total_xp in a single statement.
func (r *StudentRepository) AddXP(ctx context.Context, id string, amount int) error {
	tag, err := r.conn.Exec(ctx, `UPDATE students SET total_xp = total_xp + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return storageError("AddXP", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}
