package manager

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"todo-api/internal/logger"
	"todo-api/internal/metrics"
	"todo-api/internal/models"
	"todo-api/internal/storage"
)

// Эндпоинты для метки application_errors_total
const (
	EndpointTasks  = "/tasks"
	EndpointTask   = "/tasks/{id}"
	EndpointToggle = "/tasks/{id}/toggle"
)

// Операции для меток database_*
const (
	OpList   = "list"
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpStats  = "stats"
)

const statusPending = "pending"

// TaskManager оборачивает хранилище замерами времени, счётчиками и
// пересчётом статистики. Собственного изменяемого состояния нет,
// атомарность обеспечивает хранилище.
type TaskManager struct {
	store   storage.Storage
	metrics *metrics.Registry

	now   func() time.Time
	newID func() string
}

func NewTaskManager(store storage.Storage, reg *metrics.Registry) *TaskManager {
	return &TaskManager{
		store:   store,
		metrics: reg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (tm *TaskManager) ListTasks(ctx context.Context) ([]models.Task, error) {
	startTime := time.Now()

	tasks, err := tm.store.ListTasks(ctx)
	if err != nil {
		tm.metrics.ObserveDBOperation(OpList, metrics.StatusError, time.Since(startTime))
		return nil, tm.fail(ctx, OpList, EndpointTasks, err)
	}

	tm.metrics.ObserveDBOperation(OpList, metrics.StatusSuccess, time.Since(startTime))
	return tasks, nil
}

// CreateTask сохраняет новую задачу; пустой заголовок заменяется на DefaultTitle.
func (tm *TaskManager) CreateTask(ctx context.Context, title string) (models.Task, error) {
	startTime := time.Now()

	task := models.Task{
		ID:        tm.newID(),
		Title:     models.TitleOrDefault(title),
		Completed: false,
		CreatedAt: tm.now().UTC().Truncate(time.Millisecond),
	}

	if err := tm.store.CreateTask(ctx, task); err != nil {
		tm.metrics.ObserveDBOperation(OpCreate, metrics.StatusError, time.Since(startTime))
		return models.Task{}, tm.fail(ctx, OpCreate, EndpointTasks, err)
	}
	tm.metrics.ObserveDBOperation(OpCreate, metrics.StatusSuccess, time.Since(startTime))

	tm.metrics.TasksCreated.WithLabelValues(statusPending).Inc()
	tm.refreshAfterMutation(ctx)

	logger.Debug(ctx, "Задача создана", "id", task.ID)
	return task, nil
}

func (tm *TaskManager) GetTask(ctx context.Context, id string) (models.Task, error) {
	startTime := time.Now()

	task, err := tm.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			tm.metrics.ObserveDBOperation(OpGet, metrics.StatusNotFound, time.Since(startTime))
			return models.Task{}, notFound(OpGet, err)
		}
		tm.metrics.ObserveDBOperation(OpGet, metrics.StatusError, time.Since(startTime))
		return models.Task{}, tm.fail(ctx, OpGet, EndpointTask, err)
	}

	tm.metrics.ObserveDBOperation(OpGet, metrics.StatusSuccess, time.Since(startTime))
	return task, nil
}

// UpdateTask меняет только переданные поля. Задача, удалённая до записи,
// даёт ErrNotFound и не восстанавливается.
func (tm *TaskManager) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	return tm.mutate(ctx, EndpointTask, func() (models.Task, error) {
		return tm.store.UpdateTask(ctx, id, req)
	})
}

// ToggleTask инвертирует completed. Для метрик это то же обновление.
func (tm *TaskManager) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	return tm.mutate(ctx, EndpointToggle, func() (models.Task, error) {
		return tm.store.ToggleTask(ctx, id)
	})
}

func (tm *TaskManager) mutate(ctx context.Context, endpoint string, write func() (models.Task, error)) (models.Task, error) {
	startTime := time.Now()

	task, err := write()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			tm.metrics.ObserveDBOperation(OpUpdate, metrics.StatusNotFound, time.Since(startTime))
			return models.Task{}, notFound(OpUpdate, err)
		}
		tm.metrics.ObserveDBOperation(OpUpdate, metrics.StatusError, time.Since(startTime))
		return models.Task{}, tm.fail(ctx, OpUpdate, endpoint, err)
	}
	tm.metrics.ObserveDBOperation(OpUpdate, metrics.StatusSuccess, time.Since(startTime))

	tm.metrics.TasksUpdated.Inc()
	tm.refreshAfterMutation(ctx)
	return task, nil
}

func (tm *TaskManager) DeleteTask(ctx context.Context, id string) error {
	startTime := time.Now()

	removed, err := tm.store.DeleteTask(ctx, id)
	if err != nil {
		tm.metrics.ObserveDBOperation(OpDelete, metrics.StatusError, time.Since(startTime))
		return tm.fail(ctx, OpDelete, EndpointTask, err)
	}
	if !removed {
		tm.metrics.ObserveDBOperation(OpDelete, metrics.StatusNotFound, time.Since(startTime))
		return notFound(OpDelete, nil)
	}
	tm.metrics.ObserveDBOperation(OpDelete, metrics.StatusSuccess, time.Since(startTime))

	tm.metrics.TasksDeleted.Inc()
	tm.refreshAfterMutation(ctx)

	logger.Debug(ctx, "Задача удалена", "id", id)
	return nil
}

// RefreshStats перечитывает все задачи и перезаписывает tasks_total и
// tasks_completed_ratio.
func (tm *TaskManager) RefreshStats(ctx context.Context) (Stats, error) {
	startTime := time.Now()

	tasks, err := tm.store.ListTasks(ctx)
	if err != nil {
		tm.metrics.ObserveDBOperation(OpStats, metrics.StatusError, time.Since(startTime))
		kind := string(storage.KindOf(err))
		tm.metrics.DatabaseError(OpStats, kind)
		return Stats{}, internal(OpStats, err)
	}
	tm.metrics.ObserveDBOperation(OpStats, metrics.StatusSuccess, time.Since(startTime))

	stats := ComputeStats(tasks)
	tm.metrics.SetTaskStats(stats.Total, stats.CompletedRatio)
	return stats, nil
}

// Ping проверяет доступность хранилища для /ready.
func (tm *TaskManager) Ping(ctx context.Context) error {
	return tm.store.Ping(ctx)
}

// Изменение уже записано, поэтому сбой пересчёта только логируется.
func (tm *TaskManager) refreshAfterMutation(ctx context.Context) {
	if _, err := tm.RefreshStats(ctx); err != nil {
		logger.Error(ctx, err, "Не удалось пересчитать статистику")
	}
}

// fail учитывает ошибку хранилища в обоих счётчиках и возвращает ErrInternal.
func (tm *TaskManager) fail(ctx context.Context, op, endpoint string, err error) error {
	kind := string(storage.KindOf(err))
	tm.metrics.DatabaseError(op, kind)
	tm.metrics.ApplicationError(kind, endpoint)
	logger.Error(ctx, err, "Ошибка хранилища", "operation", op, "error_type", kind)
	return internal(op, err)
}
