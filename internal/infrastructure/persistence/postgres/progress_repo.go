// Package postgres implements the PostgreSQL persistence layer for the
// lesson progression engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/member"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements member.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `member_id, total_points, total_lessons, total_weeks, total_categories,
	   current_journey_id, current_category, current_week,
	   current_streak_days, longest_streak_days, last_activity_date, updated_at`

// Save saves or updates a progress record (upsert). The completion
// handler is the only writer, so last-write-wins semantics are enough.
func (r *ProgressRepository) Save(ctx context.Context, p *member.Progress) error {
	query := `
		INSERT INTO member_progress (
			member_id, total_points, total_lessons, total_weeks, total_categories,
			current_journey_id, current_category, current_week,
			current_streak_days, longest_streak_days, last_activity_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT(member_id) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			total_lessons = EXCLUDED.total_lessons,
			total_weeks = EXCLUDED.total_weeks,
			total_categories = EXCLUDED.total_categories,
			current_journey_id = EXCLUDED.current_journey_id,
			current_category = EXCLUDED.current_category,
			current_week = EXCLUDED.current_week,
			current_streak_days = EXCLUDED.current_streak_days,
			longest_streak_days = GREATEST(member_progress.longest_streak_days, EXCLUDED.longest_streak_days),
			last_activity_date = EXCLUDED.last_activity_date,
			updated_at = EXCLUDED.updated_at
	`

	var journeyID *string
	if p.CurrentJourneyID != "" {
		journeyID = &p.CurrentJourneyID
	}

	var lastActivity *time.Time
	if !p.LastActivityDate.IsZero() {
		lastActivity = &p.LastActivityDate
	}

	_, err := r.conn.Exec(ctx, query,
		p.MemberID,
		p.TotalPoints,
		p.TotalLessons,
		p.TotalWeeks,
		p.TotalCategories,
		journeyID,
		p.CurrentCategory,
		p.CurrentWeek,
		p.CurrentStreakDays,
		p.LongestStreakDays,
		lastActivity,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

// GetByMemberID returns the progress record of a member.
func (r *ProgressRepository) GetByMemberID(ctx context.Context, memberID string) (*member.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM member_progress WHERE member_id = $1`

	row := r.conn.QueryRow(ctx, query, memberID)
	return r.scanProgress(row)
}

// FindInactiveSince returns progress records with no activity since the
// given date, oldest first. Members who never completed anything are
// not included; they have nothing to come back to yet.
func (r *ProgressRepository) FindInactiveSince(ctx context.Context, before time.Time) ([]*member.Progress, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM member_progress
		WHERE last_activity_date IS NOT NULL AND last_activity_date < $1
		ORDER BY last_activity_date ASC
	`

	rows, err := r.conn.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to find inactive progress records: %w", err)
	}
	defer rows.Close()

	var records []*member.Progress
	for rows.Next() {
		p, err := scanProgressInto(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, p)
	}

	return records, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanProgress scans a single progress record from a row.
func (r *ProgressRepository) scanProgress(row pgx.Row) (*member.Progress, error) {
	p, err := scanProgressInto(row.Scan)
	if IsNoRows(err) {
		return nil, member.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}
	return p, nil
}

// scanProgressInto scans progress columns through the given scan function.
func scanProgressInto(scan func(...interface{}) error) (*member.Progress, error) {
	var p member.Progress
	var journeyID *string
	var lastActivity *time.Time

	err := scan(
		&p.MemberID,
		&p.TotalPoints,
		&p.TotalLessons,
		&p.TotalWeeks,
		&p.TotalCategories,
		&journeyID,
		&p.CurrentCategory,
		&p.CurrentWeek,
		&p.CurrentStreakDays,
		&p.LongestStreakDays,
		&lastActivity,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if journeyID != nil {
		p.CurrentJourneyID = *journeyID
	}
	if lastActivity != nil {
		p.LastActivityDate = *lastActivity
	}

	return &p, nil
}
