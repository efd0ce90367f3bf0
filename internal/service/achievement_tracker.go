package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/logger"
	"taskcore/internal/models/achievement"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// сколько раз перечитываем агрегат при гонке CAS; пользователь пишет сам
// в себя, так что больше пары попыток на практике не бывает
const achievementRetries = 3

// AchievementTracker ведёт счётчики геймификации как детерминированную
// функцию событий завершения
type AchievementTracker struct {
	repo  AchievementRepository
	clock clock.Clock
}

func NewAchievementTracker(repo AchievementRepository, clk clock.Clock) *AchievementTracker {
	return &AchievementTracker{
		repo:  repo,
		clock: clk,
	}
}

// OnTaskCompleted пересчитывает стрик по локальной календарной дате
// пользователя. Грейс - следующий календарный день: D -> D+1 продолжает
// серию, та же дата - повтор без изменения, разрыв в 2+ дня сбрасывает к 1.
func (t *AchievementTracker) OnTaskCompleted(ctx context.Context, userID uuid.UUID, completedAt time.Time) ([]achievement.Unlock, *achievement.State, error) {
	loc := t.clock.UserTimezone(userID)
	localDate := completedAt.In(loc).Format(dateLayout)

	return t.mutate(ctx, userID, func(st *achievement.State) []achievement.Category {
		switch dayGap(st.LastCompletionDate, localDate) {
		case 0:
			// вторая задача за тот же день, серия не меняется
		case 1:
			st.CurrentStreak++
		default:
			st.CurrentStreak = 1
		}

		if st.CurrentStreak > st.LongestStreak {
			st.LongestStreak = st.CurrentStreak
		}
		st.LastCompletionDate = localDate
		st.LifetimeCompleted++

		return []achievement.Category{achievement.CategoryTasks, achievement.CategoryStreak}
	})
}

func (t *AchievementTracker) OnFocusSessionCompleted(ctx context.Context, userID uuid.UUID) ([]achievement.Unlock, *achievement.State, error) {
	return t.mutate(ctx, userID, func(st *achievement.State) []achievement.Category {
		st.FocusSessions++
		return []achievement.Category{achievement.CategoryFocus}
	})
}

func (t *AchievementTracker) OnNoteConverted(ctx context.Context, userID uuid.UUID) ([]achievement.Unlock, *achievement.State, error) {
	return t.mutate(ctx, userID, func(st *achievement.State) []achievement.Category {
		st.NotesConverted++
		return []achievement.Category{achievement.CategoryNotes}
	})
}

func (t *AchievementTracker) GetState(ctx context.Context, userID uuid.UUID) (*achievement.State, error) {
	st, err := t.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение состояния ачивок: %w", err)
	}
	return st, nil
}

// EffectiveLimits всегда считаются на чтении от тарифа и разблокировок
func (t *AchievementTracker) EffectiveLimits(ctx context.Context, userID uuid.UUID) (achievement.Limits, error) {
	st, err := t.GetState(ctx, userID)
	if err != nil {
		return achievement.Limits{}, err
	}
	return achievement.EffectiveLimits(st), nil
}

// mutate - атомарная единица: инкремент счётчиков и проверка порогов
// уходят в хранилище одной условной записью
func (t *AchievementTracker) mutate(ctx context.Context, userID uuid.UUID, apply func(*achievement.State) []achievement.Category) ([]achievement.Unlock, *achievement.State, error) {
	var lastErr error

	for attempt := 0; attempt < achievementRetries; attempt++ {
		st, err := t.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("получение состояния ачивок: %w", err)
		}

		categories := apply(st)
		unlocks := evaluateUnlocks(st, categories)

		if err := t.repo.Update(ctx, st); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, nil, fmt.Errorf("запись состояния ачивок: %w", err)
		}

		for _, u := range unlocks {
			logger.Info("Service: Разблокирована ачивка",
				zap.String("user_id", userID.String()),
				zap.String("achievement_id", u.AchievementID),
			)
		}
		return unlocks, st, nil
	}

	return nil, nil, fmt.Errorf("запись состояния ачивок: %w", lastErr)
}

// evaluateUnlocks добавляет в набор все определения затронутых категорий,
// чей порог достигнут. Повторного срабатывания нет: уже разблокированная
// ачивка отфильтровывается по набору.
func evaluateUnlocks(st *achievement.State, categories []achievement.Category) []achievement.Unlock {
	unlocks := []achievement.Unlock{}
	for _, c := range categories {
		for _, def := range achievement.DefinitionsByCategory(c) {
			if st.Counter(c) >= def.Threshold && !st.HasUnlocked(def.ID) {
				st.Unlocked = append(st.Unlocked, def.ID)
				unlocks = append(unlocks, achievement.Unlock{AchievementID: def.ID, Perk: def.Perk})
			}
		}
	}
	return unlocks
}

// dayGap - разница в календарных днях между сохранённой датой и новой;
// пустая сохранённая дата трактуется как бесконечный разрыв
func dayGap(last, current string) int {
	if last == "" {
		return 1 << 20
	}
	lastDay, err := time.Parse(dateLayout, last)
	if err != nil {
		return 1 << 20
	}
	currentDay, err := time.Parse(dateLayout, current)
	if err != nil {
		return 1 << 20
	}
	return int(currentDay.Sub(lastDay).Hours() / 24)
}
