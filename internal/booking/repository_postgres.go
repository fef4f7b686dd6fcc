package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agenda-backend/internal/models"
	"agenda-backend/internal/schedule"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// q returns the transaction opened by WithDateLock when ctx carries one.
func (r *PostgresRepository) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

const meetingColumns = `id, service_id, date, time, duration_minutes, status, client_name, client_email,
	client_phone, channel, notes, created_at, updated_at`

func scanMeeting(row pgx.Row) (models.Meeting, error) {
	var m models.Meeting
	var status string
	err := row.Scan(&m.ID, &m.ServiceID, &m.Date, &m.Time, &m.DurationMinutes, &status, &m.ClientName,
		&m.ClientEmail, &m.ClientPhone, &m.Channel, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	m.Status = models.MeetingStatus(status)
	return m, err
}

func collectMeetings(rows pgx.Rows) ([]models.Meeting, error) {
	defer rows.Close()
	items := make([]models.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) ListAvailabilityRules(ctx context.Context) ([]models.AvailabilityRule, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT id, day_of_week, start_time, end_time, active, created_at
		FROM availability_rules ORDER BY day_of_week, start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.AvailabilityRule, 0)
	for rows.Next() {
		var rule models.AvailabilityRule
		if err := rows.Scan(&rule.ID, &rule.DayOfWeek, &rule.StartTime, &rule.EndTime, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) ListBlockedDates(ctx context.Context, from, to string) ([]models.BlockedDate, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT id, date, reason, created_at FROM blocked_dates
		WHERE ($1 = '' OR date >= $1) AND ($2 = '' OR date <= $2)
		ORDER BY date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.BlockedDate, 0)
	for rows.Next() {
		var b models.BlockedDate
		if err := rows.Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) ListMeetings(ctx context.Context, date string, statuses []models.MeetingStatus) ([]models.Meeting, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := r.q(ctx).Query(ctx, `SELECT `+meetingColumns+` FROM meetings
		WHERE date = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY time, id`, date, names)
	if err != nil {
		return nil, err
	}
	return collectMeetings(rows)
}

func (r *PostgresRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := r.q(ctx).QueryRow(ctx, `SELECT buffer_time_minutes, min_advance_hours, max_advance_days,
		slot_duration_minutes, admin_email, timezone FROM settings WHERE id = $1`, models.SettingsSingleID).
		Scan(&s.BufferTimeMinutes, &s.MinAdvanceHours, &s.MaxAdvanceDays, &s.SlotDurationMinutes, &s.AdminEmail, &s.Timezone)
	if err != nil {
		return models.Settings{}, noRows(err)
	}
	return s, nil
}

func (r *PostgresRepository) GetService(ctx context.Context, id string) (models.Service, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT id, name, slug, description, category, duration_minutes, price,
		active, color, created_at FROM services WHERE id = $1`, id)
	s, err := scanService(row)
	if err != nil {
		return models.Service{}, noRows(err)
	}
	return s, nil
}

func scanService(row pgx.Row) (models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.Category, &s.DurationMinutes, &s.Price,
		&s.Active, &s.Color, &s.CreatedAt)
	return s, err
}

func (r *PostgresRepository) GetMeeting(ctx context.Context, id string) (models.Meeting, error) {
	m, err := scanMeeting(r.q(ctx).QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if err != nil {
		return models.Meeting{}, noRows(err)
	}
	return m, nil
}

func (r *PostgresRepository) InsertMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error) {
	start, err := schedule.ToMinutes(m.Time)
	if err != nil {
		return models.Meeting{}, err
	}
	_, err = r.q(ctx).Exec(ctx, `INSERT INTO meetings (id, service_id, date, time, start_minute, duration_minutes,
		status, client_name, client_email, client_phone, channel, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.ServiceID, m.Date, m.Time, start, m.DurationMinutes, string(m.Status), m.ClientName,
		m.ClientEmail, m.ClientPhone, m.Channel, m.Notes, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgExclusionViolation:
			return models.Meeting{}, ErrSlotNoLongerAvailable
		case pgUniqueViolation:
			return models.Meeting{}, ErrDuplicate
		}
		return models.Meeting{}, err
	}
	return m, nil
}

func (r *PostgresRepository) UpdateMeetingStatus(ctx context.Context, id string, from, to models.MeetingStatus, at time.Time) (models.Meeting, error) {
	row := r.q(ctx).QueryRow(ctx, `UPDATE meetings SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 RETURNING `+meetingColumns, id, string(from), string(to), at)
	m, err := scanMeeting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetMeeting(ctx, id); getErr != nil {
			return models.Meeting{}, getErr
		}
		return models.Meeting{}, ErrStatusChanged
	}
	if err != nil {
		return models.Meeting{}, err
	}
	return m, nil
}

// WithDateLock serializes writers of one date with a transaction-scoped advisory lock.
// The exclusion constraint on meetings still rejects overlaps written outside the lock.
func (r *PostgresRepository) WithDateLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "meetings:"+date); err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT id, name, slug, description, category, duration_minutes, price,
		active, color, created_at FROM services WHERE (NOT $1 OR active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) CreateService(ctx context.Context, s models.Service) error {
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO services (id, name, slug, description, category, duration_minutes,
		price, active, color, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Name, s.Slug, s.Description, s.Category, s.DurationMinutes, s.Price, s.Active, s.Color, s.CreatedAt)
	return uniqueViolation(err)
}

func (r *PostgresRepository) UpdateService(ctx context.Context, s models.Service) (models.Service, error) {
	row := r.q(ctx).QueryRow(ctx, `UPDATE services SET name = $2, slug = $3, description = $4, category = $5,
		duration_minutes = $6, price = $7, active = $8, color = $9 WHERE id = $1
		RETURNING id, name, slug, description, category, duration_minutes, price, active, color, created_at`,
		s.ID, s.Name, s.Slug, s.Description, s.Category, s.DurationMinutes, s.Price, s.Active, s.Color)
	updated, err := scanService(row)
	if err != nil {
		return models.Service{}, noRows(uniqueViolation(err))
	}
	return updated, nil
}

func (r *PostgresRepository) DeleteService(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "services", id)
}

func (r *PostgresRepository) CreateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) error {
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO availability_rules (id, day_of_week, start_time, end_time, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rule.ID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.Active, rule.CreatedAt)
	return uniqueViolation(err)
}

func (r *PostgresRepository) UpdateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	var updated models.AvailabilityRule
	err := r.q(ctx).QueryRow(ctx, `UPDATE availability_rules SET day_of_week = $2, start_time = $3, end_time = $4,
		active = $5 WHERE id = $1 RETURNING id, day_of_week, start_time, end_time, active, created_at`,
		rule.ID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.Active).
		Scan(&updated.ID, &updated.DayOfWeek, &updated.StartTime, &updated.EndTime, &updated.Active, &updated.CreatedAt)
	if err != nil {
		return models.AvailabilityRule{}, noRows(err)
	}
	return updated, nil
}

func (r *PostgresRepository) DeleteAvailabilityRule(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "availability_rules", id)
}

func (r *PostgresRepository) GetBlockedDate(ctx context.Context, id string) (models.BlockedDate, error) {
	var b models.BlockedDate
	err := r.q(ctx).QueryRow(ctx, `SELECT id, date, reason, created_at FROM blocked_dates WHERE id = $1`, id).
		Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt)
	if err != nil {
		return models.BlockedDate{}, noRows(err)
	}
	return b, nil
}

func (r *PostgresRepository) CreateBlockedDates(ctx context.Context, dates []models.BlockedDate) (int, error) {
	inserted := 0
	for _, d := range dates {
		tag, err := r.q(ctx).Exec(ctx, `INSERT INTO blocked_dates (id, date, reason, created_at)
			VALUES ($1, $2, $3, $4) ON CONFLICT (date) DO NOTHING`, d.ID, d.Date, d.Reason, d.CreatedAt)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *PostgresRepository) DeleteBlockedDate(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "blocked_dates", id)
}

func (r *PostgresRepository) SaveSettings(ctx context.Context, s models.Settings) error {
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO settings (id, buffer_time_minutes, min_advance_hours, max_advance_days,
		slot_duration_minutes, admin_email, timezone) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET buffer_time_minutes = EXCLUDED.buffer_time_minutes,
			min_advance_hours = EXCLUDED.min_advance_hours, max_advance_days = EXCLUDED.max_advance_days,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes, admin_email = EXCLUDED.admin_email,
			timezone = EXCLUDED.timezone`,
		models.SettingsSingleID, s.BufferTimeMinutes, s.MinAdvanceHours, s.MaxAdvanceDays,
		s.SlotDurationMinutes, s.AdminEmail, s.Timezone)
	return err
}

func (r *PostgresRepository) ListMeetingsAdmin(ctx context.Context, filter MeetingFilter, limit, offset int64) ([]models.Meeting, int64, error) {
	where := `WHERE ($1 = '' OR date = $1) AND ($2 = '' OR status = $2)`
	var total int64
	if err := r.q(ctx).QueryRow(ctx, `SELECT count(*) FROM meetings `+where, filter.Date, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.q(ctx).Query(ctx, `SELECT `+meetingColumns+` FROM meetings `+where+`
		ORDER BY date, time, id LIMIT $3 OFFSET $4`, filter.Date, string(filter.Status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectMeetings(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) DeleteMeeting(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "meetings", id)
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.q(ctx).QueryRow(ctx, `SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, noRows(err)
	}
	return u, nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u models.User) error {
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	return uniqueViolation(err)
}

// deleteByID is only called with the fixed table names above.
func (r *PostgresRepository) deleteByID(ctx context.Context, table, id string) error {
	tag, err := r.q(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func uniqueViolation(err error) error {
	if err != nil && pgCode(err) == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func noRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
