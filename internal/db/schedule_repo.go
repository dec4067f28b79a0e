package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"superiorweather/internal/types"
)

// ScheduleSchema creates the scheduled_notifications table. It is idempotent
// and applied on daemon startup when the postgres store is selected.
const ScheduleSchema = `
CREATE TABLE IF NOT EXISTS scheduled_notifications (
	id          TEXT PRIMARY KEY,
	channel     TEXT        NOT NULL,
	title       TEXT        NOT NULL,
	body        TEXT        NOT NULL,
	fire_at     TIMESTAMPTZ NOT NULL,
	repeat      TEXT        NOT NULL DEFAULT 'none',
	kind        TEXT        NOT NULL,
	play_sound  BOOLEAN     NOT NULL DEFAULT FALSE,
	vibrate     BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_scheduled_notifications_fire_at
	ON scheduled_notifications (fire_at);
`

const scheduleColumns = `id, channel, title, body, fire_at, repeat, kind, play_sound, vibrate, created_at`

// ScheduleRepository stores pending notifications in PostgreSQL. It
// satisfies delivery.Store.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a new ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// EnsureSchema applies ScheduleSchema.
func (r *ScheduleRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, ScheduleSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schedule schema", err)
	}
	return nil
}

// Ping checks that the database answers queries.
func (r *ScheduleRepository) Ping(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "SELECT 1"); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "database ping failed", err)
	}
	return nil
}

// DeleteAll removes every pending notification and reports how many were
// removed. Deleting from an empty table is not an error.
func (r *ScheduleRepository) DeleteAll(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM scheduled_notifications`)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to clear scheduled notifications", err)
	}
	return int(tag.RowsAffected()), nil
}

// Insert stores n. The caller assigns the ID; a zero CreatedAt lets the
// database default apply.
func (r *ScheduleRepository) Insert(ctx context.Context, n *types.ScheduledNotification) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO scheduled_notifications
		 (id, channel, title, body, fire_at, repeat, kind, play_sound, vibrate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		n.ID,
		n.Channel,
		n.Title,
		n.Body,
		n.FireAt.UTC(),
		repeatOrDefault(n.Repeat),
		string(n.Kind),
		n.PlaySound,
		n.Vibrate,
		nilIfZeroTime(n.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeInternalDB, "scheduled notification id already exists", err).
				WithDetails(map[string]any{"id": n.ID})
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert scheduled notification", err)
	}
	return nil
}

// ListDue returns up to limit notifications whose fire time is at or before
// now, oldest first.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+`
		 FROM scheduled_notifications
		 WHERE fire_at <= $1
		 ORDER BY fire_at, id
		 LIMIT $2`,
		now.UTC(),
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due notifications", err)
	}
	return collectSchedule(rows)
}

// ListPending returns every stored notification ordered by fire time.
func (r *ScheduleRepository) ListPending(ctx context.Context) ([]types.ScheduledNotification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+`
		 FROM scheduled_notifications
		 ORDER BY fire_at, id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list scheduled notifications", err)
	}
	return collectSchedule(rows)
}

// Reschedule moves a notification to fireAt.
func (r *ScheduleRepository) Reschedule(ctx context.Context, id string, fireAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_notifications SET fire_at = $1 WHERE id = $2`,
		fireAt.UTC(),
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "scheduled notification not found", nil)
	}
	return nil
}

// Delete removes one notification. A missing row is not an error because a
// concurrent cancel may already have removed it.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM scheduled_notifications WHERE id = $1`, id); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete scheduled notification", err)
	}
	return nil
}

func collectSchedule(rows pgx.Rows) ([]types.ScheduledNotification, error) {
	defer rows.Close()

	results := []types.ScheduledNotification{}
	for rows.Next() {
		var (
			n      types.ScheduledNotification
			repeat string
			kind   string
		)
		if err := rows.Scan(
			&n.ID,
			&n.Channel,
			&n.Title,
			&n.Body,
			&n.FireAt,
			&repeat,
			&kind,
			&n.PlaySound,
			&n.Vibrate,
			&n.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan scheduled notification", err)
		}
		n.Repeat = types.Repeat(repeat)
		n.Kind = types.NotificationKind(kind)
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating scheduled notifications", err)
	}
	return results, nil
}

func repeatOrDefault(r types.Repeat) string {
	if r == "" {
		return string(types.RepeatNone)
	}
	return string(r)
}

// nilIfZeroTime returns nil if the time is zero, otherwise returns a pointer
// to the time. Used to let the DB default (NOW()) apply when no time is set.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
