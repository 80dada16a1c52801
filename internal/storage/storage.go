package storage

import (
	"context"
	"sync"

	"todo-api/internal/models"
)

// Storage интерфейс для абстракции хранилища
type Storage interface {
	CreateTask(ctx context.Context, task models.Task) error
	ListTasks(ctx context.Context) ([]models.Task, error)
	// GetTask возвращает ErrNotFound, если задачи нет
	GetTask(ctx context.Context, id string) (models.Task, error)
	// UpdateTask атомарно накладывает переданные поля; ErrNotFound, если задачи нет
	UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error)
	// ToggleTask атомарно инвертирует completed; ErrNotFound, если задачи нет
	ToggleTask(ctx context.Context, id string) (models.Task, error)
	// DeleteTask возвращает true, если строка была удалена
	DeleteTask(ctx context.Context, id string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// In-memory хранилище для тестов и локального запуска
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
	order []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[string]models.Task),
	}
}

func (m *MemoryStorage) CreateTask(ctx context.Context, task models.Task) error {
	if err := ctx.Err(); err != nil {
		return wrap("create", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[task.ID]; exists {
		return &Error{Op: "create", Kind: KindConstraint, Err: errDuplicateID(task.ID)}
	}
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	return nil
}

func (m *MemoryStorage) ListTasks(ctx context.Context) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("list", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]models.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, m.tasks[id])
	}
	return tasks, nil
}

func (m *MemoryStorage) GetTask(ctx context.Context, id string) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, wrap("get", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return task, nil
}

func (m *MemoryStorage) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, wrap("update", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	task = req.Apply(task)
	m.tasks[id] = task
	return task, nil
}

func (m *MemoryStorage) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, wrap("toggle", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	task.Completed = !task.Completed
	m.tasks[id] = task
	return task, nil
}

func (m *MemoryStorage) DeleteTask(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("delete", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return false, nil
	}
	delete(m.tasks, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStorage) Close() error {
	return nil
}
