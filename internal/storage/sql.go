package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"todo-api/internal/logger"
	"todo-api/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, без cgo
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3, cgo
	DriverPostgres = "postgres" // github.com/jackc/pgx/v5/stdlib
	DriverMemory   = "memory"

	DefaultSQLitePath = "./data/todo.db"
)

// createdAt хранится текстом фиксированной ширины, чтобы сортировка строк
// совпадала с хронологической.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var sqlDriverNames = map[string]string{
	DriverSQLite:   "sqlite",
	DriverSQLite3:  "sqlite3",
	DriverPostgres: "pgx",
}

type Options struct {
	Driver string
	DSN    string
}

// Open создаёт хранилище по имени драйвера.
func Open(ctx context.Context, opts Options) (Storage, error) {
	if opts.Driver == DriverMemory {
		return NewMemoryStorage(), nil
	}
	return NewSQLStorage(ctx, opts)
}

type SQLStorage struct {
	db       *sql.DB
	postgres bool
}

func NewSQLStorage(ctx context.Context, opts Options) (*SQLStorage, error) {
	driverName, ok := sqlDriverNames[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("неизвестный драйвер хранилища: %q", opts.Driver)
	}

	dsn := opts.DSN
	isSQLite := opts.Driver == DriverSQLite || opts.Driver == DriverSQLite3
	if isSQLite {
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}
	if isSQLite {
		// SQLite допускает одного писателя; pragma действуют на соединение
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &SQLStorage{db: db, postgres: opts.Driver == DriverPostgres}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if isSQLite {
		if err := s.configurePragmas(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info(ctx, "SQL хранилище инициализировано", "driver", opts.Driver)
	return s, nil
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ошибка создания директории БД: %w", err)
	}
	return nil
}

func (s *SQLStorage) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, q := range pragmas {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ошибка установки %q: %w", q, err)
		}
	}
	return nil
}

func (s *SQLStorage) createTables(ctx context.Context) error {
	createTasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`

	if _, err := s.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("ошибка создания таблицы tasks: %w", err)
	}
	return nil
}

// rebind переводит плейсхолдеры ? в $n для Postgres.
func (s *SQLStorage) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Закрытие соединения
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

const taskColumns = "id, title, completed, created_at"

func (s *SQLStorage) CreateTask(ctx context.Context, task models.Task) error {
	query := s.rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Completed, task.CreatedAt.UTC().Format(timeLayout),
	)
	return wrap("create", err)
}

func (s *SQLStorage) ListTasks(ctx context.Context) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap("list", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, wrap("list", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list", err)
	}
	return tasks, nil
}

func (s *SQLStorage) GetTask(ctx context.Context, id string) (models.Task, error) {
	query := s.rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, wrap("get", err)
	}
	return task, nil
}

// UpdateTask выполняет слияние одним выражением: строка, удалённая
// конкурентно, не совпадёт с WHERE и не будет воскрешена.
func (s *SQLStorage) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	query := s.rebind(`
	UPDATE tasks
	SET title = COALESCE(?, title), completed = COALESCE(?, completed)
	WHERE id = ?
	RETURNING ` + taskColumns)

	var title sql.NullString
	if req.Title != nil {
		title = sql.NullString{String: *req.Title, Valid: true}
	}
	var completed sql.NullBool
	if req.Completed != nil {
		completed = sql.NullBool{Bool: *req.Completed, Valid: true}
	}

	task, err := scanTask(s.db.QueryRowContext(ctx, query, title, completed, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, wrap("update", err)
	}
	return task, nil
}

func (s *SQLStorage) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	query := s.rebind(`UPDATE tasks SET completed = NOT completed WHERE id = ? RETURNING ` + taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, wrap("toggle", err)
	}
	return task, nil
}

func (s *SQLStorage) DeleteTask(ctx context.Context, id string) (bool, error) {
	query := s.rebind("DELETE FROM tasks WHERE id = ?")

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, wrap("delete", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, wrap("delete", err)
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Вспомогательная функция для сканирования задачи
func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	var createdAt string

	if err := row.Scan(&task.ID, &task.Title, &task.Completed, &createdAt); err != nil {
		return models.Task{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return models.Task{}, &Error{Op: "scan", Kind: KindScan, Err: err}
	}
	task.CreatedAt = ts.UTC()
	return task, nil
}
