// Package postgres implements the PostgreSQL persistence layer for the
// lesson progression engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/pkg/calendar"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MemberRepository implements member.Repository for PostgreSQL.
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

const memberColumns = `id, email, display_name, status, timezone,
	   active_days, unlock_hour, reminder_hour, reminder_count, reminders_enabled,
	   joined_at, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new member.
func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	query := `
		INSERT INTO members (
			id, email, display_name, status, timezone,
			active_days, unlock_hour, reminder_hour, reminder_count, reminders_enabled,
			joined_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		m.ID,
		m.Email,
		m.DisplayName,
		string(m.Status),
		m.Timezone,
		daySetToTags(m.Preferences.ActiveDays),
		m.Preferences.UnlockHour,
		m.Preferences.ReminderHour,
		int(m.Preferences.ReminderCount),
		m.Preferences.RemindersEnabled,
		m.JoinedAt,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return member.ErrMemberAlreadyExists
		}
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// GetByID returns a member by internal ID.
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanMember(row)
}

// GetByEmail returns a member by email.
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`

	row := r.conn.QueryRow(ctx, query, email)
	return r.scanMember(row)
}

// Update updates a member.
func (r *MemberRepository) Update(ctx context.Context, m *member.Member) error {
	query := `
		UPDATE members SET
			email = $1,
			display_name = $2,
			status = $3,
			timezone = $4,
			active_days = $5,
			unlock_hour = $6,
			reminder_hour = $7,
			reminder_count = $8,
			reminders_enabled = $9,
			updated_at = $10
		WHERE id = $11
	`

	result, err := r.conn.Exec(ctx, query,
		m.Email,
		m.DisplayName,
		string(m.Status),
		m.Timezone,
		daySetToTags(m.Preferences.ActiveDays),
		m.Preferences.UnlockHour,
		m.Preferences.ReminderHour,
		int(m.Preferences.ReminderCount),
		m.Preferences.RemindersEnabled,
		time.Now().UTC(),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return member.ErrMemberNotFound
	}

	return nil
}

// UpdatePreferences saves only the schedule preferences of a member.
func (r *MemberRepository) UpdatePreferences(ctx context.Context, memberID string, prefs member.Preferences) error {
	query := `
		UPDATE members SET
			active_days = $1,
			unlock_hour = $2,
			reminder_hour = $3,
			reminder_count = $4,
			reminders_enabled = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := r.conn.Exec(ctx, query,
		daySetToTags(prefs.ActiveDays),
		prefs.UnlockHour,
		prefs.ReminderHour,
		int(prefs.ReminderCount),
		prefs.RemindersEnabled,
		time.Now().UTC(),
		memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member preferences: %w", err)
	}

	if result.RowsAffected() == 0 {
		return member.ErrMemberNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tick Candidate Queries
// ─────────────────────────────────────────────────────────────────────────────

// FindUnlockCandidates returns active members whose unlock hour matches
// and who still have at least one locked lesson. The active-day and
// spacing checks run in the tick handler; the database only narrows the
// candidate set through indexes.
func (r *MemberRepository) FindUnlockCandidates(ctx context.Context, hour int) ([]*member.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.status = 'active'
		  AND m.unlock_hour = $1
		  AND EXISTS (
			SELECT 1 FROM lesson_instances li
			WHERE li.member_id = m.id AND li.status = 'locked'
		  )
		ORDER BY m.id
	`

	rows, err := r.conn.Query(ctx, query, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to find unlock candidates: %w", err)
	}
	defer rows.Close()

	return r.scanMembers(rows)
}

// FindReminderCandidates returns active members with reminders enabled,
// at least one available lesson, and a slot matching the hour: either
// the primary reminder hour or the follow-up slot two hours later when
// two reminders a day are configured.
func (r *MemberRepository) FindReminderCandidates(ctx context.Context, hour int) ([]*member.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.status = 'active'
		  AND m.reminders_enabled
		  AND (
			m.reminder_hour = $1
			OR (m.reminder_count = 2 AND (m.reminder_hour + 2) % 24 = $1)
		  )
		  AND EXISTS (
			SELECT 1 FROM lesson_instances li
			WHERE li.member_id = m.id AND li.status = 'available'
		  )
		ORDER BY m.id
	`

	rows, err := r.conn.Query(ctx, query, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder candidates: %w", err)
	}
	defer rows.Close()

	return r.scanMembers(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Counts & Existence
// ─────────────────────────────────────────────────────────────────────────────

// Count returns the total number of members.
func (r *MemberRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM members").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// Exists checks if a member exists by ID.
func (r *MemberRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member existence: %w", err)
	}
	return exists, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanMember scans a single member from a row.
func (r *MemberRepository) scanMember(row pgx.Row) (*member.Member, error) {
	var m member.Member
	var status string
	var activeDays []string
	var reminderCount int

	err := row.Scan(
		&m.ID,
		&m.Email,
		&m.DisplayName,
		&status,
		&m.Timezone,
		&activeDays,
		&m.Preferences.UnlockHour,
		&m.Preferences.ReminderHour,
		&reminderCount,
		&m.Preferences.RemindersEnabled,
		&m.JoinedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, member.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}

	m.Status = member.Status(status)
	m.Preferences.ReminderCount = member.ReminderCount(reminderCount)
	m.Preferences.ActiveDays = tagsToDaySet(activeDays)

	return &m, nil
}

// scanMembers scans multiple members from rows.
func (r *MemberRepository) scanMembers(rows pgx.Rows) ([]*member.Member, error) {
	var members []*member.Member

	for rows.Next() {
		var m member.Member
		var status string
		var activeDays []string
		var reminderCount int

		err := rows.Scan(
			&m.ID,
			&m.Email,
			&m.DisplayName,
			&status,
			&m.Timezone,
			&activeDays,
			&m.Preferences.UnlockHour,
			&m.Preferences.ReminderHour,
			&reminderCount,
			&m.Preferences.RemindersEnabled,
			&m.JoinedAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}

		m.Status = member.Status(status)
		m.Preferences.ReminderCount = member.ReminderCount(reminderCount)
		m.Preferences.ActiveDays = tagsToDaySet(activeDays)

		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return members, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVE DAYS CONVERSION
// ══════════════════════════════════════════════════════════════════════════════

// daySetToTags converts a DaySet to a sorted tag slice for TEXT[] storage.
func daySetToTags(days calendar.DaySet) []string {
	tags := days.Tags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}

// tagsToDaySet converts stored tags back to a DaySet. Unknown tags are
// dropped rather than failing the scan.
func tagsToDaySet(tags []string) calendar.DaySet {
	set := make(calendar.DaySet, len(tags))
	for _, t := range tags {
		d := calendar.Weekday(t)
		if d.IsValid() {
			set[d] = true
		}
	}
	return set
}
