package manager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/metrics"
	"todo-api/internal/models"
	"todo-api/internal/storage"
)

func newTestManager(t *testing.T, store storage.Storage) (*TaskManager, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	return NewTaskManager(store, reg), reg
}

func stores(t *testing.T) map[string]func(t *testing.T) storage.Storage {
	return map[string]func(t *testing.T) storage.Storage{
		"memory": func(t *testing.T) storage.Storage { return storage.NewMemoryStorage() },
		"sqlite": func(t *testing.T) storage.Storage {
			s, err := storage.NewSQLStorage(context.Background(), storage.Options{
				Driver: storage.DriverSQLite,
				DSN:    filepath.Join(t.TempDir(), "todo.db"),
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

// dbOpCount возвращает число наблюдений database_operation_duration_seconds
// для пары operation/status.
func dbOpCount(t *testing.T, reg *metrics.Registry, operation, status string) uint64 {
	t.Helper()
	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "database_operation_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == operation && labels["status"] == status {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func TestTaskManager(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("create then get returns the same task", func(t *testing.T) {
				tm, reg := newTestManager(t, open(t))

				created, err := tm.CreateTask(ctx, "Купить молоко")
				require.NoError(t, err)
				assert.NotEmpty(t, created.ID)
				assert.False(t, created.Completed)
				assert.Equal(t, time.UTC, created.CreatedAt.Location())

				got, err := tm.GetTask(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, created, got)

				assert.Equal(t, 1.0, testutil.ToFloat64(reg.TasksCreated.WithLabelValues("pending")))
				assert.Equal(t, 1.0, testutil.ToFloat64(reg.TasksTotal))
				assert.Equal(t, uint64(1), dbOpCount(t, reg, OpCreate, metrics.StatusSuccess))
				assert.Equal(t, uint64(1), dbOpCount(t, reg, OpGet, metrics.StatusSuccess))
			})

			t.Run("empty title gets the placeholder", func(t *testing.T) {
				tm, _ := newTestManager(t, open(t))

				created, err := tm.CreateTask(ctx, "")
				require.NoError(t, err)
				assert.Equal(t, models.DefaultTitle, created.Title)
			})

			t.Run("ids are unique", func(t *testing.T) {
				tm, _ := newTestManager(t, open(t))
				seen := map[string]bool{}
				for i := 0; i < 50; i++ {
					task, err := tm.CreateTask(ctx, "x")
					require.NoError(t, err)
					require.False(t, seen[task.ID])
					seen[task.ID] = true
				}
			})

			t.Run("delete then get is not found", func(t *testing.T) {
				tm, reg := newTestManager(t, open(t))
				task, err := tm.CreateTask(ctx, "x")
				require.NoError(t, err)

				require.NoError(t, tm.DeleteTask(ctx, task.ID))
				_, err = tm.GetTask(ctx, task.ID)
				assert.ErrorIs(t, err, ErrNotFound)

				assert.Equal(t, 1.0, testutil.ToFloat64(reg.TasksDeleted))
				assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksTotal))
				assert.Equal(t, uint64(1), dbOpCount(t, reg, OpGet, metrics.StatusNotFound))
			})

			t.Run("empty patch leaves task unchanged", func(t *testing.T) {
				tm, _ := newTestManager(t, open(t))
				task, err := tm.CreateTask(ctx, "Buy milk")
				require.NoError(t, err)

				updated, err := tm.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{})
				require.NoError(t, err)
				assert.Equal(t, task, updated)
			})

			t.Run("partial update keeps the title", func(t *testing.T) {
				tm, reg := newTestManager(t, open(t))
				task, err := tm.CreateTask(ctx, "Buy milk")
				require.NoError(t, err)

				_, err = tm.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Completed: boolPtr(true)})
				require.NoError(t, err)

				got, err := tm.GetTask(ctx, task.ID)
				require.NoError(t, err)
				assert.True(t, got.Completed)
				assert.Equal(t, "Buy milk", got.Title)
				assert.Equal(t, 1.0, testutil.ToFloat64(reg.TasksUpdated))
				assert.Equal(t, 1.0, testutil.ToFloat64(reg.TasksCompletedRatio))

				got, err = tm.UpdateTask(ctx, task.ID, models.UpdateTaskRequest{Title: strPtr("Buy bread")})
				require.NoError(t, err)
				assert.True(t, got.Completed)
				assert.Equal(t, "Buy bread", got.Title)
			})

			t.Run("toggle is its own inverse", func(t *testing.T) {
				tm, reg := newTestManager(t, open(t))
				task, err := tm.CreateTask(ctx, "x")
				require.NoError(t, err)

				on, err := tm.ToggleTask(ctx, task.ID)
				require.NoError(t, err)
				assert.True(t, on.Completed)

				off, err := tm.ToggleTask(ctx, task.ID)
				require.NoError(t, err)
				assert.Equal(t, task, off)

				assert.Equal(t, 2.0, testutil.ToFloat64(reg.TasksUpdated))
				assert.Equal(t, uint64(2), dbOpCount(t, reg, OpUpdate, metrics.StatusSuccess))
			})

			t.Run("completed ratio follows mutations", func(t *testing.T) {
				tm, reg := newTestManager(t, open(t))

				stats, err := tm.RefreshStats(ctx)
				require.NoError(t, err)
				assert.Equal(t, Stats{}, stats)
				assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksCompletedRatio))

				var ids []string
				for i := 0; i < 4; i++ {
					task, err := tm.CreateTask(ctx, "x")
					require.NoError(t, err)
					ids = append(ids, task.ID)
				}
				_, err = tm.ToggleTask(ctx, ids[0])
				require.NoError(t, err)
				assert.Equal(t, 0.25, testutil.ToFloat64(reg.TasksCompletedRatio))

				_, err = tm.UpdateTask(ctx, ids[1], models.UpdateTaskRequest{Completed: boolPtr(true)})
				require.NoError(t, err)
				assert.Equal(t, 0.5, testutil.ToFloat64(reg.TasksCompletedRatio))

				require.NoError(t, tm.DeleteTask(ctx, ids[2]))
				assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(reg.TasksCompletedRatio), 1e-9)
				assert.Equal(t, 3.0, testutil.ToFloat64(reg.TasksTotal))

				for _, id := range []string{ids[0], ids[1], ids[3]} {
					require.NoError(t, tm.DeleteTask(ctx, id))
				}
				assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksCompletedRatio))
				assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksTotal))
			})

			t.Run("nonexistent id is not found and nothing changes", func(t *testing.T) {
				tm, reg := newTestManager(t, open(t))
				existing, err := tm.CreateTask(ctx, "keep")
				require.NoError(t, err)

				_, err = tm.GetTask(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = tm.UpdateTask(ctx, "missing", models.UpdateTaskRequest{Completed: boolPtr(true)})
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = tm.ToggleTask(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
				err = tm.DeleteTask(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)

				tasks, err := tm.ListTasks(ctx)
				require.NoError(t, err)
				assert.Equal(t, []models.Task{existing}, tasks)

				assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksUpdated))
				assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksDeleted))
				assert.Equal(t, 0, testutil.CollectAndCount(reg.ApplicationErrors))
				assert.Equal(t, 0, testutil.CollectAndCount(reg.DatabaseErrors))
				assert.Equal(t, uint64(2), dbOpCount(t, reg, OpUpdate, metrics.StatusNotFound))
				assert.Equal(t, uint64(1), dbOpCount(t, reg, OpDelete, metrics.StatusNotFound))
			})
		})
	}
}

func TestStartupRefreshReflectsPersistedTasks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	for i, done := range []bool{true, false, false, true} {
		require.NoError(t, store.CreateTask(ctx, models.Task{
			ID:        string(rune('a' + i)),
			Title:     "x",
			Completed: done,
			CreatedAt: time.Now().UTC(),
		}))
	}

	tm, reg := newTestManager(t, store)
	stats, err := tm.RefreshStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Completed: 2, CompletedRatio: 0.5}, stats)
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.TasksTotal))
	assert.Equal(t, 0.5, testutil.ToFloat64(reg.TasksCompletedRatio))
}

func TestInjectedClockAndIDs(t *testing.T) {
	tm, _ := newTestManager(t, storage.NewMemoryStorage())
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.FixedZone("MSK", 3*3600))
	tm.now = func() time.Time { return fixed }
	tm.newID = func() string { return "fixed-id" }

	task, err := tm.CreateTask(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", task.ID)
	assert.Equal(t, time.Date(2026, 10, 16, 6, 30, 0, 123000000, time.UTC), task.CreatedAt)
}

// failingStore отказывает в операциях, для которых задана ошибка.
type failingStore struct {
	storage.Storage
	listErr   error
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func (f *failingStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Storage.ListTasks(ctx)
}

func (f *failingStore) CreateTask(ctx context.Context, task models.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Storage.CreateTask(ctx, task)
}

func (f *failingStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	if f.getErr != nil {
		return models.Task{}, f.getErr
	}
	return f.Storage.GetTask(ctx, id)
}

func (f *failingStore) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	if f.updateErr != nil {
		return models.Task{}, f.updateErr
	}
	return f.Storage.UpdateTask(ctx, id, req)
}

func (f *failingStore) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	if f.updateErr != nil {
		return models.Task{}, f.updateErr
	}
	return f.Storage.ToggleTask(ctx, id)
}

func (f *failingStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.Storage.DeleteTask(ctx, id)
}

func busyErr(op string) error {
	return &storage.Error{Op: op, Kind: storage.KindBusy, Err: errors.New("database is locked")}
}

func TestStoreFailuresAreInternal(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		tm, reg := newTestManager(t, &failingStore{Storage: storage.NewMemoryStorage(), listErr: busyErr("list")})

		tasks, err := tm.ListTasks(ctx)
		assert.Nil(t, tasks)
		assert.ErrorIs(t, err, ErrInternal)
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatabaseErrors.WithLabelValues("list", "busy")))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplicationErrors.WithLabelValues("busy", EndpointTasks)))
		assert.Equal(t, uint64(1), dbOpCount(t, reg, OpList, metrics.StatusError))
	})

	t.Run("create does not count a creation", func(t *testing.T) {
		tm, reg := newTestManager(t, &failingStore{Storage: storage.NewMemoryStorage(), createErr: busyErr("create")})

		_, err := tm.CreateTask(ctx, "x")
		assert.ErrorIs(t, err, ErrInternal)
		assert.Equal(t, 0, testutil.CollectAndCount(reg.TasksCreated))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatabaseErrors.WithLabelValues("create", "busy")))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplicationErrors.WithLabelValues("busy", EndpointTasks)))
		assert.Equal(t, uint64(1), dbOpCount(t, reg, OpCreate, metrics.StatusError))
	})

	t.Run("get", func(t *testing.T) {
		tm, reg := newTestManager(t, &failingStore{Storage: storage.NewMemoryStorage(), getErr: errors.New("boom")})

		_, err := tm.GetTask(ctx, "id")
		assert.ErrorIs(t, err, ErrInternal)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatabaseErrors.WithLabelValues("get", "query")))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplicationErrors.WithLabelValues("query", EndpointTask)))
	})

	t.Run("toggle uses its own endpoint", func(t *testing.T) {
		mem := storage.NewMemoryStorage()
		tm, reg := newTestManager(t, &failingStore{Storage: mem, updateErr: busyErr("toggle")})

		_, err := tm.ToggleTask(ctx, "id")
		assert.ErrorIs(t, err, ErrInternal)
		assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksUpdated))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatabaseErrors.WithLabelValues("update", "busy")))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplicationErrors.WithLabelValues("busy", EndpointToggle)))
	})

	t.Run("delete", func(t *testing.T) {
		tm, reg := newTestManager(t, &failingStore{Storage: storage.NewMemoryStorage(), deleteErr: busyErr("delete")})

		err := tm.DeleteTask(ctx, "id")
		assert.ErrorIs(t, err, ErrInternal)
		assert.Equal(t, 0.0, testutil.ToFloat64(reg.TasksDeleted))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplicationErrors.WithLabelValues("busy", EndpointTask)))
	})

	t.Run("stats failure does not fail the mutation", func(t *testing.T) {
		tm, reg := newTestManager(t, &failingStore{Storage: storage.NewMemoryStorage(), listErr: busyErr("list")})

		task, err := tm.CreateTask(ctx, "x")
		require.NoError(t, err)
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.TasksCreated.WithLabelValues("pending")))
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.DatabaseErrors.WithLabelValues(OpStats, "busy")))
		assert.Equal(t, 0, testutil.CollectAndCount(reg.ApplicationErrors))
	})
}

func TestTaskErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := internal(OpList, cause)

	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "list: внутренняя ошибка: boom", err.Error())

	nf := notFound(OpDelete, nil)
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(nf))
	assert.Equal(t, "delete: задача не найдена", nf.Error())

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
	assert.Equal(t, Stats{Total: 3, Completed: 1, CompletedRatio: 1.0 / 3.0},
		ComputeStats([]models.Task{{Completed: true}, {}, {}}))
	assert.Equal(t, Stats{Total: 2, Completed: 2, CompletedRatio: 1},
		ComputeStats([]models.Task{{Completed: true}, {Completed: true}}))
}
