package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskcore/internal/models/achievement"
	"taskcore/internal/models/reminder"
	"taskcore/internal/models/task"
	"taskcore/internal/models/template"
	"taskcore/internal/models/tombstone"
	"taskcore/internal/repository"
	"taskcore/internal/repository/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite - интеграционные тесты реального хранилища
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
}

func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb", host, port.Port())

	s.storage, err = postgres.New(s.ctx, s.connString)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.storage.Migrate(s.ctx, "../../migrations"))
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "TRUNCATE tasks, subtasks, reminders, tombstones, templates, achievement_states")
	require.NoError(s.T(), err)
}

func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционные тесты в коротком режиме")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func (s *PostgresTestSuite) newTask(ownerID uuid.UUID, title string) *task.Task {
	return &task.Task{
		UUID:     uuid.New(),
		OwnerID:  ownerID,
		Title:    title,
		Priority: task.PriorityMedium,
		Version:  1,
	}
}

// TestMigrations_DownAndReapply: откат сносит схему, повторный прогон
// миграций возвращает её в рабочее состояние
func (s *PostgresTestSuite) TestMigrations_DownAndReapply() {
	require.NoError(s.T(), s.storage.Down(s.ctx, "../../migrations"))

	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	var count int
	require.NoError(s.T(), conn.QueryRow(s.ctx,
		`SELECT count(*) FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_name = 'tasks'`).Scan(&count))
	assert.Equal(s.T(), 0, count)

	require.NoError(s.T(), s.storage.Migrate(s.ctx, "../../migrations"))

	created := s.newTask(uuid.New(), "после отката")
	require.NoError(s.T(), s.storage.Tasks().Create(context.Background(), created))
}

func (s *PostgresTestSuite) TestTasks_CreateAndGet() {
	ctx := context.Background()
	repo := s.storage.Tasks()

	toCreate := s.newTask(uuid.New(), "Тестовая задача")
	toCreate.Description = "описание"

	require.NoError(s.T(), repo.Create(ctx, toCreate))
	assert.False(s.T(), toCreate.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, toCreate.UUID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Тестовая задача", got.Title)
	assert.Equal(s.T(), 1, got.Version)
	assert.False(s.T(), got.Hidden)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

func (s *PostgresTestSuite) TestTasks_UpdateMovesVersion() {
	ctx := context.Background()
	repo := s.storage.Tasks()

	toCreate := s.newTask(uuid.New(), "оригинал")
	require.NoError(s.T(), repo.Create(ctx, toCreate))

	toCreate.Title = "обновлено"
	require.NoError(s.T(), repo.Update(ctx, toCreate))
	assert.Equal(s.T(), 2, toCreate.Version)

	got, err := repo.GetByID(ctx, toCreate.UUID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "обновлено", got.Title)
	assert.Equal(s.T(), 2, got.Version)
	assert.NotNil(s.T(), got.UpdatedAt)
}

// TestTasks_VersionConflict: условный UPDATE не трогает строку при
// несовпадении версии
func (s *PostgresTestSuite) TestTasks_VersionConflict() {
	ctx := context.Background()
	repo := s.storage.Tasks()

	toCreate := s.newTask(uuid.New(), "x")
	require.NoError(s.T(), repo.Create(ctx, toCreate))

	first, err := repo.GetByID(ctx, toCreate.UUID)
	require.NoError(s.T(), err)
	second, err := repo.GetByID(ctx, toCreate.UUID)
	require.NoError(s.T(), err)

	first.Title = "победитель"
	require.NoError(s.T(), repo.Update(ctx, first))

	second.Title = "проигравший"
	err = repo.Update(ctx, second)
	assert.ErrorIs(s.T(), err, repository.ErrVersionConflict)

	got, err := repo.GetByID(ctx, toCreate.UUID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "победитель", got.Title)
}

func (s *PostgresTestSuite) TestTasks_GetByOwnerFiltersHidden() {
	ctx := context.Background()
	repo := s.storage.Tasks()
	ownerID := uuid.New()

	visible := s.newTask(ownerID, "видимая")
	require.NoError(s.T(), repo.Create(ctx, visible))

	hidden := s.newTask(ownerID, "скрытая")
	hidden.Hidden = true
	require.NoError(s.T(), repo.Create(ctx, hidden))

	tasks, err := repo.GetByOwner(ctx, ownerID, false, 1, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), tasks, 1)
	assert.Equal(s.T(), visible.UUID, tasks[0].UUID)

	all, err := repo.GetByOwner(ctx, ownerID, true, 1, 10)
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 2)

	count, err := repo.CountByOwner(ctx, ownerID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)
}

func (s *PostgresTestSuite) TestSubtasks_CRUD() {
	ctx := context.Background()
	repo := s.storage.Tasks()

	parent := s.newTask(uuid.New(), "родитель")
	require.NoError(s.T(), repo.Create(ctx, parent))

	st := &task.Subtask{UUID: uuid.New(), TaskID: parent.UUID, Title: "шаг 1"}
	require.NoError(s.T(), repo.CreateSubtask(ctx, st))

	st.Completed = true
	now := time.Now().UTC()
	st.CompletedAt = &now
	require.NoError(s.T(), repo.UpdateSubtask(ctx, st))

	subtasks, err := repo.GetSubtasks(ctx, parent.UUID)
	require.NoError(s.T(), err)
	require.Len(s.T(), subtasks, 1)
	assert.True(s.T(), subtasks[0].Completed)

	require.NoError(s.T(), repo.DeleteSubtasksByTask(ctx, parent.UUID))
	subtasks, err = repo.GetSubtasks(ctx, parent.UUID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), subtasks)
}

// TestReminders_MarkFiredOnce: UPDATE ... WHERE NOT fired - одноразовый
func (s *PostgresTestSuite) TestReminders_MarkFiredOnce() {
	ctx := context.Background()
	repo := s.storage.Reminders()

	r := &reminder.Reminder{
		UUID:    uuid.New(),
		TaskID:  uuid.New(),
		OwnerID: uuid.New(),
		Kind:    reminder.KindAbsolute,
	}
	require.NoError(s.T(), repo.Create(ctx, r))

	unfired, err := repo.GetUnfired(ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), unfired, 1)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(s.T(), repo.MarkFired(ctx, r.UUID, at))

	err = repo.MarkFired(ctx, r.UUID, at.Add(time.Minute))
	assert.ErrorIs(s.T(), err, repository.ErrAlreadyFired)

	// несуществующее напоминание - NOT_FOUND, а не "уже сработало"
	err = repo.MarkFired(ctx, uuid.New(), at)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)

	unfired, err = repo.GetUnfired(ctx, 10)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), unfired)
}

/// TestTombstones_SnapshotRoundTrip: снимок задачи переживает jsonb
func (s *PostgresTestSuite) TestTombstones_SnapshotRoundTrip() {
	ctx := context.Background()
	repo := s.storage.Tombstones()
	now := time.Now().UTC().Truncate(time.Microsecond)

	snapshot := *s.newTask(uuid.New(), "снимок")
	snapshot.Description = "целиком в jsonb"

	ts := &tombstone.Tombstone{
		UUID:             uuid.New(),
		TaskID:           snapshot.UUID,
		OwnerID:          snapshot.OwnerID,
		Snapshot:         snapshot,
		RecoverableUntil: now.Add(time.Hour),
		CreatedAt:        now,
	}
	require.NoError(s.T(), repo.Create(ctx, ts))

	got, err := repo.GetByID(ctx, ts.UUID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "снимок", got.Snapshot.Title)
	assert.Equal(s.T(), "целиком в jsonb", got.Snapshot.Description)

	expired, err := repo.GetExpired(ctx, now.Add(2*time.Hour), 10)
	require.NoError(s.T(), err)
	assert.Len(s.T(), expired, 1)

	require.NoError(s.T(), repo.Delete(ctx, ts.UUID))
	_, err = repo.GetByID(ctx, ts.UUID)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

func (s *PostgresTestSuite) TestTemplates_CRUD() {
	ctx := context.Background()
	repo := s.storage.Templates()
	ownerID := uuid.New()

	tpl := &template.Template{
		UUID:     uuid.New(),
		OwnerID:  ownerID,
		Title:    "еженедельный отчёт",
		Priority: task.PriorityMedium,
		Rule:     "FREQ=WEEKLY;BYDAY=MO",
		Active:   true,
	}
	require.NoError(s.T(), repo.Create(ctx, tpl))

	tpl.Active = false
	require.NoError(s.T(), repo.Update(ctx, tpl))

	got, err := repo.GetByID(ctx, tpl.UUID)
	require.NoError(s.T(), err)
	assert.False(s.T(), got.Active)
	assert.Equal(s.T(), "FREQ=WEEKLY;BYDAY=MO", got.Rule)

	list, err := repo.GetByOwner(ctx, ownerID)
	require.NoError(s.T(), err)
	assert.Len(s.T(), list, 1)
}

// TestAchievements_GetOrCreateAndCAS: агрегат создаётся лениво, пишется
// условно
func (s *PostgresTestSuite) TestAchievements_GetOrCreateAndCAS() {
	ctx := context.Background()
	repo := s.storage.Achievements()
	userID := uuid.New()

	st, err := repo.GetOrCreate(ctx, userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, st.Version)
	assert.Equal(s.T(), achievement.TierFree, st.Tier)

	// повторный вызов возвращает ту же строку
	again, err := repo.GetOrCreate(ctx, userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), st.Version, again.Version)

	st.LifetimeCompleted = 1
	st.Unlocked = []string{"first_blood"}
	require.NoError(s.T(), repo.Update(ctx, st))
	assert.Equal(s.T(), 2, st.Version)

	again.LifetimeCompleted = 99
	err = repo.Update(ctx, again)
	assert.ErrorIs(s.T(), err, repository.ErrVersionConflict)

	fresh, err := repo.GetOrCreate(ctx, userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, fresh.LifetimeCompleted)
	assert.Equal(s.T(), []string{"first_blood"}, fresh.Unlocked)
}
