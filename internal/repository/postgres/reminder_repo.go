package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskcore/internal/logger"
	"taskcore/internal/models/reminder"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReminderRepo реализует service.ReminderRepository
type ReminderRepo struct {
	pool *pgxpool.Pool
}

func (s *Storage) Reminders() *ReminderRepo {
	return &ReminderRepo{pool: s.pool}
}

const reminderColumns = `uuid, task_id, owner_id, kind, offset_minutes, at, fired, fired_at, created_at`

func scanReminder(row pgx.Row) (*reminder.Reminder, error) {
	r := &reminder.Reminder{}
	err := row.Scan(&r.UUID, &r.TaskID, &r.OwnerID, &r.Kind, &r.OffsetMinutes,
		&r.At, &r.Fired, &r.FiredAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReminderRepo) Create(ctx context.Context, r *reminder.Reminder) error {
	start := time.Now()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO reminders (uuid, task_id, owner_id, kind, offset_minutes, at, fired, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,false,$7)
		 RETURNING created_at`,
		r.UUID, r.TaskID, r.OwnerID, r.Kind, r.OffsetMinutes, r.At, time.Now(),
	).Scan(&r.CreatedAt)

	if err != nil {
		logger.Error("Repository: Не удалось добавить напоминание", err)
		return fmt.Errorf("добавление напоминания: %w", err)
	}

	slowQueryWarn("reminders.create", start, 50*time.Millisecond)
	return nil
}

func (s *ReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	r, err := scanReminder(s.pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE uuid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("получение напоминания: %w", err)
	}
	return r, nil
}

func (s *ReminderRepo) GetByTask(ctx context.Context, taskID uuid.UUID) ([]*reminder.Reminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("получение напоминаний: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// GetUnfired - выборка воркера по частичному индексу fired = false
func (s *ReminderRepo) GetUnfired(ctx context.Context, limit int) ([]*reminder.Reminder, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE NOT fired LIMIT $1`, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить напоминания", err)
		return nil, fmt.Errorf("получение напоминаний: %w", err)
	}
	defer rows.Close()

	res, err := collectReminders(rows)
	slowQueryWarn("reminders.get_unfired", start, 50*time.Millisecond+10*time.Millisecond*time.Duration(limit))
	return res, err
}

// MarkFired - атомарный переход Pending -> Fired одним условным UPDATE;
// второй тик того же интервала получит ноль строк и ErrAlreadyFired
func (s *ReminderRepo) MarkFired(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reminders SET fired = true, fired_at = $1 WHERE uuid = $2 AND NOT fired`,
		at, id)
	if err != nil {
		logger.Error("Repository: Не удалось пометить напоминание", err)
		return fmt.Errorf("пометка напоминания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// ноль строк: либо напоминания нет, либо оно уже сработало -
		// различаем перечитыванием, как при версионном конфликте задач
		var fired bool
		err := s.pool.QueryRow(ctx,
			`SELECT fired FROM reminders WHERE uuid = $1`, id).Scan(&fired)
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("перечитывание напоминания: %w", err)
		}
		return repository.ErrAlreadyFired
	}
	return nil
}

func (s *ReminderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("удаление напоминания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *ReminderRepo) DeleteByTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("удаление напоминаний: %w", err)
	}
	return nil
}

func collectReminders(rows pgx.Rows) ([]*reminder.Reminder, error) {
	res := []*reminder.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования напоминания", zap.Error(err))
			continue
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return res, nil
}
