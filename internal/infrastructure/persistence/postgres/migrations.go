// Package postgres implements the PostgreSQL persistence layer for the
// lesson progression engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE MEMBERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create members table
-- Version: 001

CREATE TABLE IF NOT EXISTS members (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email VARCHAR(255) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',

    -- Schedule preferences. Kept as real columns (not JSONB) because the
    -- hourly ticks filter candidates on unlock_hour and reminder_hour
    -- through indexes.
    active_days TEXT[] NOT NULL DEFAULT ARRAY['mon','tue','wed','thu','fri','sat','sun'],
    unlock_hour INTEGER NOT NULL DEFAULT 9,
    reminder_hour INTEGER NOT NULL DEFAULT 14,
    reminder_count INTEGER NOT NULL DEFAULT 1,
    reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,

    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_member_status CHECK (status IN ('active', 'paused', 'left')),
    CONSTRAINT valid_unlock_hour CHECK (unlock_hour >= 0 AND unlock_hour <= 23),
    CONSTRAINT valid_reminder_hour CHECK (reminder_hour >= 0 AND reminder_hour <= 23),
    CONSTRAINT valid_reminder_count CHECK (reminder_count >= 0 AND reminder_count <= 2),
    CONSTRAINT reminder_flag_consistent CHECK (reminders_enabled = (reminder_count > 0)),
    CONSTRAINT active_days_not_empty CHECK (array_length(active_days, 1) > 0)
);

CREATE INDEX IF NOT EXISTS idx_members_email ON members(email);
CREATE INDEX IF NOT EXISTS idx_members_status ON members(status);

-- Tick candidate lookups: both scans start from active members at a
-- specific hour.
CREATE INDEX IF NOT EXISTS idx_members_unlock_hour ON members(unlock_hour) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_members_reminder_hour ON members(reminder_hour) WHERE status = 'active' AND reminders_enabled;

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_members_updated_at ON members;
CREATE TRIGGER update_members_updated_at
    BEFORE UPDATE ON members
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_members_updated_at ON members;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS members;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE JOURNEYS & LESSON INSTANCES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create journeys and lesson instances
-- Version: 002

CREATE TABLE IF NOT EXISTS journeys (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    member_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    growth_focus VARCHAR(20) NOT NULL,
    intentional_advantage TEXT NOT NULL DEFAULT '',
    current_category VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    completed_categories TEXT[] NOT NULL DEFAULT '{}',
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_journey_status CHECK (status IN ('active', 'paused', 'completed')),
    CONSTRAINT valid_growth_focus CHECK (growth_focus IN ('clarity', 'consistency', 'connection', 'courage', 'curiosity'))
);

CREATE INDEX IF NOT EXISTS idx_journeys_member ON journeys(member_id);

-- At most one active journey per member, enforced by the database so a
-- concurrent second start loses with a unique violation.
CREATE UNIQUE INDEX IF NOT EXISTS idx_journeys_one_active_per_member
    ON journeys(member_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS lesson_instances (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    member_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
    journey_id UUID NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
    lesson_id VARCHAR(100) NOT NULL,
    title VARCHAR(255) NOT NULL,
    category VARCHAR(20) NOT NULL,
    week_number INTEGER NOT NULL,
    day_number INTEGER NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'locked',
    points_earned INTEGER NOT NULL DEFAULT 0,
    spacing_days INTEGER NOT NULL DEFAULT 1,
    commit_within_days INTEGER,
    commit_note TEXT NOT NULL DEFAULT '',
    unlocked_at TIMESTAMP WITH TIME ZONE,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(journey_id, category, week_number, day_number),
    CONSTRAINT valid_lesson_status CHECK (status IN ('locked', 'available', 'completed')),
    CONSTRAINT valid_points CHECK (points_earned >= 0 AND points_earned <= 25),
    CONSTRAINT valid_spacing CHECK (spacing_days >= 0),
    CONSTRAINT valid_sequence CHECK (week_number >= 1 AND day_number >= 1),
    CONSTRAINT valid_commit_days CHECK (commit_within_days IS NULL OR commit_within_days > 0)
);

-- Next locked lesson of a category, in (week, day) order.
CREATE INDEX IF NOT EXISTS idx_lessons_next_locked
    ON lesson_instances(member_id, journey_id, category, week_number, day_number)
    WHERE status = 'locked';

-- Available lesson counts for reminder auto-stop and the
-- one-open-lesson invariant check.
CREATE INDEX IF NOT EXISTS idx_lessons_available
    ON lesson_instances(member_id) WHERE status = 'available';

CREATE INDEX IF NOT EXISTS idx_lessons_completed
    ON lesson_instances(member_id, journey_id, category, completed_at DESC)
    WHERE status = 'completed';

CREATE INDEX IF NOT EXISTS idx_lessons_journey ON lesson_instances(journey_id, week_number, day_number);

DROP TRIGGER IF EXISTS update_journeys_updated_at ON journeys;
CREATE TRIGGER update_journeys_updated_at
    BEFORE UPDATE ON journeys
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();

DROP TRIGGER IF EXISTS update_lessons_updated_at ON lesson_instances;
CREATE TRIGGER update_lessons_updated_at
    BEFORE UPDATE ON lesson_instances
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration002Down = `
DROP TRIGGER IF EXISTS update_lessons_updated_at ON lesson_instances;
DROP TRIGGER IF EXISTS update_journeys_updated_at ON journeys;
DROP TABLE IF EXISTS lesson_instances;
DROP TABLE IF EXISTS journeys;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create member progress
-- Version: 003
-- One row per member, written only by the lesson completion handler.

CREATE TABLE IF NOT EXISTS member_progress (
    member_id UUID PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
    total_points INTEGER NOT NULL DEFAULT 0,
    total_lessons INTEGER NOT NULL DEFAULT 0,
    total_weeks INTEGER NOT NULL DEFAULT 0,
    total_categories INTEGER NOT NULL DEFAULT 0,
    current_journey_id UUID,
    current_category VARCHAR(20) NOT NULL DEFAULT '',
    current_week INTEGER NOT NULL DEFAULT 1,
    current_streak_days INTEGER NOT NULL DEFAULT 0,
    longest_streak_days INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_totals CHECK (total_points >= 0 AND total_lessons >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak_days >= 0 AND longest_streak_days >= current_streak_days)
);

-- Support nudges scan for members who have gone quiet.
CREATE INDEX IF NOT EXISTS idx_progress_last_activity ON member_progress(last_activity_date);
`

const migration003Down = `
DROP TABLE IF EXISTS member_progress;
`
