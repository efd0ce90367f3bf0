package service_test

import (
	"context"
	"testing"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/models/achievement"
	"taskcore/internal/repository"
	"taskcore/internal/repository/inmemory"
	"taskcore/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAchievementRepository - мок репозитория для проверки CAS-повторов
type MockAchievementRepository struct {
	mock.Mock
}

func (m *MockAchievementRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*achievement.State, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*achievement.State), args.Error(1)
}

func (m *MockAchievementRepository) Update(ctx context.Context, s *achievement.State) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

var _ service.AchievementRepository = (*MockAchievementRepository)(nil)

func newTracker(t *testing.T, now time.Time) (*service.AchievementTracker, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(now)
	return service.NewAchievementTracker(inmemory.NewAchievementStorage(), clk), clk
}

// TestAchievementTracker_Streak проверяет переходы серии по календарным дням
func TestAchievementTracker_Streak(t *testing.T) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		completions   []time.Time
		wantStreak    int
		wantLongest   int
		wantLifetime  int
	}{
		{
			name:         "first completion starts streak at 1",
			completions:  []time.Time{base},
			wantStreak:   1,
			wantLongest:  1,
			wantLifetime: 1,
		},
		{
			name:         "same day twice does not grow streak",
			completions:  []time.Time{base, base.Add(3 * time.Hour)},
			wantStreak:   1,
			wantLongest:  1,
			wantLifetime: 2,
		},
		{
			name:         "next day increments",
			completions:  []time.Time{base, base.AddDate(0, 0, 1)},
			wantStreak:   2,
			wantLongest:  2,
			wantLifetime: 2,
		},
		{
			name:         "two day gap resets to 1",
			completions:  []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 4)},
			wantStreak:   1,
			wantLongest:  2,
			wantLifetime: 3,
		},
		{
			name: "longest survives reset and regrowth",
			completions: []time.Time{
				base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2),
				base.AddDate(0, 0, 10), base.AddDate(0, 0, 11),
			},
			wantStreak:   2,
			wantLongest:  3,
			wantLifetime: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := newTracker(t, base)
			userID := uuid.New()

			var state *achievement.State
			var err error
			for _, at := range tt.completions {
				_, state, err = tracker.OnTaskCompleted(context.Background(), userID, at)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantStreak, state.CurrentStreak)
			assert.Equal(t, tt.wantLongest, state.LongestStreak)
			assert.Equal(t, tt.wantLifetime, state.LifetimeCompleted)
		})
	}
}

// TestAchievementTracker_Timezone: завершение в 23:30 и 00:30 по местному
// времени - это соседние календарные дни пользователя, не UTC
func TestAchievementTracker_Timezone(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	tracker := service.NewAchievementTracker(inmemory.NewAchievementStorage(), clk)
	userID := uuid.New()

	// UTC+3: 20:30 UTC = 23:30 местного, 21:30 UTC следующего витка = 00:30
	loc := time.FixedZone("UTC+3", 3*60*60)
	clk.SetUserTimezone(userID, loc)

	first := time.Date(2025, 3, 10, 20, 30, 0, 0, time.UTC)  // 10-е, 23:30 местного
	second := time.Date(2025, 3, 10, 21, 30, 0, 0, time.UTC) // 11-е, 00:30 местного

	_, state, err := tracker.OnTaskCompleted(context.Background(), userID, first)
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentStreak)

	_, state, err = tracker.OnTaskCompleted(context.Background(), userID, second)
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentStreak, "час разницы в UTC пересёк местную полночь")
}

// TestAchievementTracker_Unlocks: пороги открываются ровно один раз
func TestAchievementTracker_Unlocks(t *testing.T) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(t, base)
	userID := uuid.New()

	unlocks, state, err := tracker.OnTaskCompleted(context.Background(), userID, base)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "first_blood", unlocks[0].AchievementID)
	assert.True(t, state.HasUnlocked("first_blood"))

	// повторное завершение тот же порог не открывает
	unlocks, _, err = tracker.OnTaskCompleted(context.Background(), userID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, unlocks)
}

func TestAchievementTracker_UnlockRaisesLimits(t *testing.T) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(t, base)
	userID := uuid.New()

	limits, err := tracker.EffectiveLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, achievement.BaseLimits(achievement.TierFree).MaxTasks, limits.MaxTasks)

	// 10 завершений открывают task_10 (+10 к лимиту задач)
	for i := 0; i < 10; i++ {
		_, _, err := tracker.OnTaskCompleted(context.Background(), userID, base.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	limits, err = tracker.EffectiveLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, achievement.BaseLimits(achievement.TierFree).MaxTasks+10, limits.MaxTasks)
}

// TestAchievementTracker_RetriesOnConflict: при гонке CAS трекер перечитывает
// агрегат и применяет событие заново
func TestAchievementTracker_RetriesOnConflict(t *testing.T) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(base)
	mockRepo := new(MockAchievementRepository)
	userID := uuid.New()

	// каждая попытка перечитывает агрегат заново
	mockRepo.On("GetOrCreate", mock.Anything, userID).
		Return(achievement.NewState(userID), nil).Once()
	mockRepo.On("GetOrCreate", mock.Anything, userID).
		Return(achievement.NewState(userID), nil).Once()
	mockRepo.On("Update", mock.Anything, mock.Anything).
		Return(repository.ErrVersionConflict).Once()
	mockRepo.On("Update", mock.Anything, mock.Anything).
		Return(nil).Once()

	tracker := service.NewAchievementTracker(mockRepo, clk)
	_, state, err := tracker.OnTaskCompleted(context.Background(), userID, base)

	require.NoError(t, err)
	assert.Equal(t, 1, state.LifetimeCompleted)
	mockRepo.AssertNumberOfCalls(t, "Update", 2)
}

func TestAchievementTracker_FocusAndNotes(t *testing.T) {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTracker(t, base)
	userID := uuid.New()

	var unlocks []achievement.Unlock
	var err error
	for i := 0; i < 25; i++ {
		unlocks, _, err = tracker.OnFocusSessionCompleted(context.Background(), userID)
		require.NoError(t, err)
	}
	require.Len(t, unlocks, 1)
	assert.Equal(t, "focus_25", unlocks[0].AchievementID)

	for i := 0; i < 10; i++ {
		unlocks, _, err = tracker.OnNoteConverted(context.Background(), userID)
		require.NoError(t, err)
	}
	require.Len(t, unlocks, 1)
	assert.Equal(t, "notes_10", unlocks[0].AchievementID)
}
