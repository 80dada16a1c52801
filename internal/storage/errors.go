package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound возвращается, когда задачи с таким id нет.
var ErrNotFound = errors.New("задача не найдена")

// ErrorKind - перечисление причин отказа хранилища. Значения идут в метки метрик,
// поэтому набор закрытый.
type ErrorKind string

const (
	KindBusy       ErrorKind = "busy"
	KindConstraint ErrorKind = "constraint"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindClosed     ErrorKind = "closed"
	KindConnection ErrorKind = "connection"
	KindScan       ErrorKind = "scan"
	KindQuery      ErrorKind = "query"
)

// Error оборачивает ошибку драйвера вместе с операцией и её классом.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ошибка хранилища (%s, %s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap классифицирует ошибку драйвера. ErrNotFound и nil проходят как есть.
func wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

// KindOf возвращает класс ошибки хранилища; для неизвестных ошибок - KindQuery.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return classify(err)
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, sql.ErrConnDone):
		return KindClosed
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindConnection
	}

	// Драйверы SQLite отдают коды только в тексте ошибки
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"),
		strings.Contains(msg, "(5)"),
		strings.Contains(msg, "(6)"):
		return KindBusy
	case strings.Contains(msg, "constraint"):
		return KindConstraint
	case strings.Contains(msg, "database is closed"):
		return KindClosed
	case strings.Contains(msg, "unable to open database"),
		strings.Contains(msg, "connection refused"):
		return KindConnection
	case strings.Contains(msg, "converting"),
		strings.Contains(msg, "scan"):
		return KindScan
	}
	return KindQuery
}

func classifySQLState(code string) ErrorKind {
	switch {
	case strings.HasPrefix(code, "23"):
		return KindConstraint
	case code == "40001", code == "40P01", code == "55P03":
		return KindBusy
	case code == "57014":
		return KindCanceled
	case strings.HasPrefix(code, "08"):
		return KindConnection
	}
	return KindQuery
}

func errDuplicateID(id string) error {
	return fmt.Errorf("задача с ID %s уже существует", id)
}
