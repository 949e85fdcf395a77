// Package postgres implements the PostgreSQL persistence layer for the
// lesson progression engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOURNEY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// JourneyRepository implements journey.Repository for PostgreSQL.
type JourneyRepository struct {
	conn *Connection
}

// NewJourneyRepository creates a new JourneyRepository.
func NewJourneyRepository(conn *Connection) *JourneyRepository {
	return &JourneyRepository{conn: conn}
}

const journeyColumns = `id, member_id, growth_focus, intentional_advantage,
	   current_category, status, completed_categories,
	   started_at, completed_at, created_at, updated_at`

// Create creates a journey. The partial unique index on active journeys
// turns a concurrent second start into a unique violation, which maps
// to ErrJourneyAlreadyActive.
func (r *JourneyRepository) Create(ctx context.Context, j *journey.Journey) error {
	query := `
		INSERT INTO journeys (
			id, member_id, growth_focus, intentional_advantage,
			current_category, status, completed_categories,
			started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		j.ID,
		j.MemberID,
		string(j.GrowthFocus),
		j.IntentionalAdvantage,
		string(j.CurrentCategory),
		string(j.Status),
		categoriesToTags(j.CompletedCategories),
		j.StartedAt,
		nullableTime(j.CompletedAt),
		j.CreatedAt,
		j.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return journey.ErrJourneyAlreadyActive
		}
		return fmt.Errorf("failed to create journey: %w", err)
	}

	return nil
}

// GetByID returns a journey by ID.
func (r *JourneyRepository) GetByID(ctx context.Context, id string) (*journey.Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanJourney(row)
}

// GetActiveByMemberID returns the active journey of a member.
func (r *JourneyRepository) GetActiveByMemberID(ctx context.Context, memberID string) (*journey.Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE member_id = $1 AND status = 'active'`

	row := r.conn.QueryRow(ctx, query, memberID)
	return r.scanJourney(row)
}

// Update updates a journey.
func (r *JourneyRepository) Update(ctx context.Context, j *journey.Journey) error {
	query := `
		UPDATE journeys SET
			current_category = $1,
			status = $2,
			completed_categories = $3,
			completed_at = $4,
			updated_at = $5
		WHERE id = $6
	`

	result, err := r.conn.Exec(ctx, query,
		string(j.CurrentCategory),
		string(j.Status),
		categoriesToTags(j.CompletedCategories),
		nullableTime(j.CompletedAt),
		time.Now().UTC(),
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update journey: %w", err)
	}

	if result.RowsAffected() == 0 {
		return journey.ErrJourneyNotFound
	}

	return nil
}

// scanJourney scans a single journey from a row.
func (r *JourneyRepository) scanJourney(row pgx.Row) (*journey.Journey, error) {
	var j journey.Journey
	var growthFocus, currentCategory, status string
	var completedCategories []string
	var completedAt *time.Time

	err := row.Scan(
		&j.ID,
		&j.MemberID,
		&growthFocus,
		&j.IntentionalAdvantage,
		&currentCategory,
		&status,
		&completedCategories,
		&j.StartedAt,
		&completedAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, journey.ErrJourneyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan journey: %w", err)
	}

	j.GrowthFocus = journey.Category(growthFocus)
	j.CurrentCategory = journey.Category(currentCategory)
	j.Status = journey.JourneyStatus(status)
	j.CompletedCategories = tagsToCategories(completedCategories)
	if completedAt != nil {
		j.CompletedAt = *completedAt
	}

	return &j, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements journey.LessonRepository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

const lessonColumns = `id, member_id, journey_id, lesson_id, title, category,
	   week_number, day_number, status, points_earned, spacing_days,
	   commit_within_days, commit_note, unlocked_at, started_at, completed_at,
	   created_at, updated_at`

const lessonInsert = `
	INSERT INTO lesson_instances (
		id, member_id, journey_id, lesson_id, title, category,
		week_number, day_number, status, points_earned, spacing_days,
		commit_within_days, commit_note, unlocked_at, started_at, completed_at,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// CreateBatch saves a batch of lesson instances in one transaction.
func (r *LessonRepository) CreateBatch(ctx context.Context, lessons []*journey.LessonInstance) error {
	if len(lessons) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, li := range lessons {
			_, err := tx.Exec(ctx, lessonInsert, lessonArgs(li)...)
			if err != nil {
				return fmt.Errorf("failed to insert lesson %s: %w", li.ID, err)
			}
		}
		return nil
	})
}

// MarkAvailable performs the conditional unlock:
// status goes to 'available' only if it still is 'locked', so a lesson
// unlocked on one tick cannot be unlocked again on a replay.
func (r *LessonRepository) MarkAvailable(ctx context.Context, lessonID string, at time.Time) (bool, error) {
	query := `
		UPDATE lesson_instances
		SET status = 'available', unlocked_at = $2, updated_at = $3
		WHERE id = $1 AND status = 'locked'
	`

	result, err := r.conn.Exec(ctx, query, lessonID, at.UTC(), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark lesson available: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Update saves a modified lesson instance.
func (r *LessonRepository) Update(ctx context.Context, li *journey.LessonInstance) error {
	query := `
		UPDATE lesson_instances SET
			status = $1,
			points_earned = $2,
			commit_within_days = $3,
			commit_note = $4,
			unlocked_at = $5,
			started_at = $6,
			completed_at = $7,
			updated_at = $8
		WHERE id = $9
	`

	result, err := r.conn.Exec(ctx, query,
		string(li.Status),
		li.PointsEarned,
		li.CommitWithinDays,
		li.CommitNote,
		nullableTime(li.UnlockedAt),
		nullableTime(li.StartedAt),
		nullableTime(li.CompletedAt),
		time.Now().UTC(),
		li.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}

	if result.RowsAffected() == 0 {
		return journey.ErrLessonNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a lesson instance by ID.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*journey.LessonInstance, error) {
	query := `SELECT ` + lessonColumns + ` FROM lesson_instances WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanLesson(row)
}

// GetByMemberAndID returns a lesson instance owned by the member.
// A lesson belonging to someone else is reported as not found.
func (r *LessonRepository) GetByMemberAndID(ctx context.Context, memberID, lessonID string) (*journey.LessonInstance, error) {
	query := `SELECT ` + lessonColumns + ` FROM lesson_instances WHERE id = $1 AND member_id = $2`

	row := r.conn.QueryRow(ctx, query, lessonID, memberID)
	return r.scanLesson(row)
}

// NextLocked returns the next locked lesson of a category in
// (week, day) order.
func (r *LessonRepository) NextLocked(ctx context.Context, memberID, journeyID string, category journey.Category) (*journey.LessonInstance, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lesson_instances
		WHERE member_id = $1 AND journey_id = $2 AND category = $3 AND status = 'locked'
		ORDER BY week_number, day_number
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, memberID, journeyID, string(category))
	return r.scanLesson(row)
}

// LastCompleted returns the completed lesson that is furthest along the
// category sequence. Sequence order, not completion time: a backdated
// completion must not change which lesson spacing is paced against.
func (r *LessonRepository) LastCompleted(ctx context.Context, memberID, journeyID string, category journey.Category) (*journey.LessonInstance, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lesson_instances
		WHERE member_id = $1 AND journey_id = $2 AND category = $3 AND status = 'completed'
		ORDER BY week_number DESC, day_number DESC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, memberID, journeyID, string(category))
	return r.scanLesson(row)
}

// CountAvailable returns the number of available lessons of a member.
func (r *LessonRepository) CountAvailable(ctx context.Context, memberID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM lesson_instances WHERE member_id = $1 AND status = 'available'",
		memberID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count available lessons: %w", err)
	}
	return count, nil
}

// CountAvailableInCategory returns the number of available lessons of a
// category within a journey.
func (r *LessonRepository) CountAvailableInCategory(ctx context.Context, memberID, journeyID string, category journey.Category) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM lesson_instances
		WHERE member_id = $1 AND journey_id = $2 AND category = $3 AND status = 'available'
	`, memberID, journeyID, string(category)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count available lessons in category: %w", err)
	}
	return count, nil
}

// CountRemaining returns the number of unfinished lessons of a category.
func (r *LessonRepository) CountRemaining(ctx context.Context, memberID, journeyID string, category journey.Category) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM lesson_instances
		WHERE member_id = $1 AND journey_id = $2 AND category = $3 AND status != 'completed'
	`, memberID, journeyID, string(category)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count remaining lessons: %w", err)
	}
	return count, nil
}

// ListByJourney returns the lessons of a journey in walk order.
func (r *LessonRepository) ListByJourney(ctx context.Context, journeyID string) ([]*journey.LessonInstance, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lesson_instances
		WHERE journey_id = $1
		ORDER BY created_at, week_number, day_number
	`

	rows, err := r.conn.Query(ctx, query, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons by journey: %w", err)
	}
	defer rows.Close()

	var lessons []*journey.LessonInstance
	for rows.Next() {
		li, err := r.scanLessonFromRows(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, li)
	}

	return lessons, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// lessonArgs builds the insert argument list for a lesson instance.
func lessonArgs(li *journey.LessonInstance) []interface{} {
	return []interface{}{
		li.ID,
		li.MemberID,
		li.JourneyID,
		li.LessonID,
		li.Title,
		string(li.Category),
		li.WeekNumber,
		li.DayNumber,
		string(li.Status),
		li.PointsEarned,
		li.SpacingDays,
		li.CommitWithinDays,
		li.CommitNote,
		nullableTime(li.UnlockedAt),
		nullableTime(li.StartedAt),
		nullableTime(li.CompletedAt),
		li.CreatedAt,
		li.UpdatedAt,
	}
}

// scanLesson scans a single lesson instance from a row.
func (r *LessonRepository) scanLesson(row pgx.Row) (*journey.LessonInstance, error) {
	li, err := scanLessonInto(row.Scan)
	if IsNoRows(err) {
		return nil, journey.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}
	return li, nil
}

// scanLessonFromRows scans a lesson instance from rows.
func (r *LessonRepository) scanLessonFromRows(rows pgx.Rows) (*journey.LessonInstance, error) {
	li, err := scanLessonInto(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}
	return li, nil
}

// scanLessonInto scans lesson columns through the given scan function.
func scanLessonInto(scan func(...interface{}) error) (*journey.LessonInstance, error) {
	var li journey.LessonInstance
	var category, status string
	var unlockedAt, startedAt, completedAt *time.Time

	err := scan(
		&li.ID,
		&li.MemberID,
		&li.JourneyID,
		&li.LessonID,
		&li.Title,
		&category,
		&li.WeekNumber,
		&li.DayNumber,
		&status,
		&li.PointsEarned,
		&li.SpacingDays,
		&li.CommitWithinDays,
		&li.CommitNote,
		&unlockedAt,
		&startedAt,
		&completedAt,
		&li.CreatedAt,
		&li.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	li.Category = journey.Category(category)
	li.Status = journey.LessonStatus(status)
	if unlockedAt != nil {
		li.UnlockedAt = *unlockedAt
	}
	if startedAt != nil {
		li.StartedAt = *startedAt
	}
	if completedAt != nil {
		li.CompletedAt = *completedAt
	}

	return &li, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSION HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// categoriesToTags converts categories to a tag slice for TEXT[] storage.
func categoriesToTags(cats []journey.Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, string(c))
	}
	return out
}

// tagsToCategories converts stored tags back to categories.
func tagsToCategories(tags []string) []journey.Category {
	if len(tags) == 0 {
		return nil
	}
	out := make([]journey.Category, 0, len(tags))
	for _, t := range tags {
		out = append(out, journey.Category(t))
	}
	return out
}
