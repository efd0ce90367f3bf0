package postgres

import (
	"context"
	"errors"
	"fmt"

	"taskcore/internal/logger"
	"taskcore/internal/models/achievement"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AchievementRepo - агрегат на пользователя; Update защищён тем же
// условием по version, что и задачи
type AchievementRepo struct {
	pool *pgxpool.Pool
}

func (s *Storage) Achievements() *AchievementRepo {
	return &AchievementRepo{pool: s.pool}
}

func (s *AchievementRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*achievement.State, error) {
	// вставка по умолчанию + чтение в одном запросе: гонка двух первых
	// обращений пользователя решается ON CONFLICT DO NOTHING
	_, err := s.pool.Exec(ctx,
		`INSERT INTO achievement_states (user_id, tier, unlocked, version)
		 VALUES ($1, $2, '{}', 1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, achievement.TierFree,
	)
	if err != nil {
		logger.Error("Repository: Не удалось создать состояние ачивок", err)
		return nil, fmt.Errorf("создание состояния: %w", err)
	}

	st := &achievement.State{}
	var lastDate *string
	err = s.pool.QueryRow(ctx,
		`SELECT user_id, tier, lifetime_completed, current_streak, longest_streak,
				last_completion_date, focus_sessions, notes_converted, unlocked, version, updated_at
		 FROM achievement_states WHERE user_id = $1`, userID,
	).Scan(&st.UserID, &st.Tier, &st.LifetimeCompleted, &st.CurrentStreak, &st.LongestStreak,
		&lastDate, &st.FocusSessions, &st.NotesConverted, &st.Unlocked, &st.Version, &st.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("получение состояния: %w", err)
	}

	if lastDate != nil {
		st.LastCompletionDate = *lastDate
	}
	if st.Unlocked == nil {
		st.Unlocked = []string{}
	}
	return st, nil
}

func (s *AchievementRepo) Update(ctx context.Context, st *achievement.State) error {
	var lastDate *string
	if st.LastCompletionDate != "" {
		d := st.LastCompletionDate
		lastDate = &d
	}

	err := s.pool.QueryRow(ctx,
		`UPDATE achievement_states
		 SET lifetime_completed = $1,
			 current_streak = $2,
			 longest_streak = $3,
			 last_completion_date = $4,
			 focus_sessions = $5,
			 notes_converted = $6,
			 unlocked = $7,
			 version = version + 1,
			 updated_at = NOW()
		 WHERE user_id = $8 AND version = $9
		 RETURNING version, updated_at`,
		st.LifetimeCompleted, st.CurrentStreak, st.LongestStreak, lastDate,
		st.FocusSessions, st.NotesConverted, st.Unlocked,
		st.UserID, st.Version,
	).Scan(&st.Version, &st.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Repository: Конфликт версий при обновлении ачивок",
				zap.String("user_id", st.UserID.String()),
				zap.Int("expected_version", st.Version))
			return repository.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить состояние ачивок", err)
		return fmt.Errorf("обновление состояния: %w", err)
	}
	return nil
}
