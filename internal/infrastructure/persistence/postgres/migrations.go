package postgres

// Migrations returns all embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_training", UpSQL: migration001Up},
		{Version: 2, Name: "create_achievements", UpSQL: migration002Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDENTS AND TRAINING HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name VARCHAR(200) NOT NULL,
    avatar TEXT NOT NULL DEFAULT '',
    category VARCHAR(50) NOT NULL DEFAULT '',
    total_xp INTEGER NOT NULL DEFAULT 0,
    global_level INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_org_active_xp
    ON students(organization_id, total_xp DESC) WHERE is_active;

CREATE TABLE IF NOT EXISTS attendances (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    class_id TEXT NOT NULL DEFAULT '',
    check_in_time TIMESTAMP WITH TIME ZONE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PRESENT'
);

CREATE INDEX IF NOT EXISTS idx_attendances_student ON attendances(student_id, check_in_time);

CREATE TABLE IF NOT EXISTS martial_arts (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name VARCHAR(100) NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    martial_art_id TEXT NOT NULL REFERENCES martial_arts(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    current_xp INTEGER NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,

    CONSTRAINT valid_enrollment_status CHECK (status IN ('ACTIVE', 'COMPLETED', 'PAUSED', 'CANCELLED'))
);

CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id);

CREATE TABLE IF NOT EXISTS techniques (
    id TEXT PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    category VARCHAR(50) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS technique_progress (
    enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    technique_id TEXT NOT NULL REFERENCES techniques(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'LEARNING',
    accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (enrollment_id, technique_id),
    CONSTRAINT valid_technique_status CHECK (status IN ('LEARNING', 'PRACTICING', 'MASTERED'))
);

CREATE TABLE IF NOT EXISTS challenge_progress (
    enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    challenge_id TEXT NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (enrollment_id, challenge_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
    passed BOOLEAN NOT NULL DEFAULT FALSE,
    overall_score DOUBLE PRECISION,
    evaluated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACHIEVEMENTS AND UNLOCKS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name VARCHAR(120) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(20) NOT NULL,
    criteria JSONB NOT NULL,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    rarity VARCHAR(20) NOT NULL DEFAULT 'common',
    is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    martial_art_id TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp_reward CHECK (xp_reward >= 0)
);

CREATE INDEX IF NOT EXISTS idx_achievements_org ON achievements(organization_id, created_at, id);

-- one unlock per (student, achievement); concurrent grants collide here
CREATE TABLE IF NOT EXISTS student_achievements (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    achievement_id TEXT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (student_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_student_achievements_unlocked
    ON student_achievements(student_id, unlocked_at);
`
