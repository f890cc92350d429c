package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db *sqlx.DB

	users   repository.UserRepository
	habits  repository.HabitRepository
	goals   repository.GoalRepository
	entries repository.JournalEntryRepository
	health  repository.HealthMetricRepository
	friends repository.FriendRepository

	reconciler     *Reconciler
	habitService   *HabitService
	goalService    *GoalService
	journalService *JournalService
	healthService  *HealthService
	friendService  *FriendService
}

// newTestDB opens a migrated SQLite database in a temp dir with the same
// locking settings as the default server DSN
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"
	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database := newTestDB(t)
	f := &fixture{
		db:      database,
		users:   repository.NewUserRepository(database),
		habits:  repository.NewHabitRepository(database),
		goals:   repository.NewGoalRepository(database),
		entries: repository.NewJournalEntryRepository(database),
		health:  repository.NewHealthMetricRepository(database),
		friends: repository.NewFriendRepository(database),
	}

	emailService := NewEmailService("", "noreply@example.com", "http://localhost:5173", "MagicJournal", true)

	f.reconciler = NewReconciler(database, f.goals, f.entries)
	f.habitService = NewHabitService(f.habits)
	f.goalService = NewGoalService(database, f.goals, f.habits)
	f.journalService = NewJournalService(database, f.entries, f.goals, f.reconciler)
	f.healthService = NewHealthService(database, f.health, f.reconciler)
	f.friendService = NewFriendService(database, f.friends, f.users, f.goals, emailService)

	require.NoError(t, f.habitService.SeedCatalog(context.Background()))
	return f
}

func (f *fixture) createUser(t *testing.T, email, name string) *model.User {
	t.Helper()

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Level:     1,
		Theme:     model.ThemeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) habit(t *testing.T, name string) *model.Habit {
	t.Helper()

	habit, err := f.habits.ByName(context.Background(), name)
	require.NoError(t, err)
	return habit
}

func (f *fixture) createGoal(t *testing.T, userID, habitName string, target *float64) *model.Goal {
	t.Helper()

	goal, err := f.goalService.Create(context.Background(), userID, model.GoalCreate{
		HabitID:     f.habit(t, habitName).ID,
		GoalText:    "Daily " + habitName,
		TargetValue: target,
	})
	require.NoError(t, err)
	return goal
}

func (f *fixture) goalXP(t *testing.T, userID, goalID string) int {
	t.Helper()

	goal, err := f.goals.ByID(context.Background(), userID, goalID)
	require.NoError(t, err)
	return goal.XP
}

func (f *fixture) countEntries(t *testing.T, goalID string) int {
	t.Helper()

	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM journal_entries WHERE goal_id = $1`, goalID))
	return n
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
