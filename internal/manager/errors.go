package manager

import (
	"errors"
	"fmt"
)

// ErrorKind - тип ошибки сервиса, по нему HTTP-слой выбирает код ответа.
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindInternal ErrorKind = "internal"
)

var (
	ErrNotFound = &TaskError{Kind: KindNotFound}
	ErrInternal = &TaskError{Kind: KindInternal}
)

type TaskError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TaskError) Error() string {
	msg := "внутренняя ошибка"
	if e.Kind == KindNotFound {
		msg = "задача не найдена"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is сравнивает только Kind, поэтому errors.Is(err, ErrNotFound) работает
// для любой операции.
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	return ok && t.Kind == e.Kind
}

// KindOf возвращает KindInternal для любой ошибки, которая не TaskError.
func KindOf(err error) ErrorKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

func notFound(op string, err error) error {
	return &TaskError{Kind: KindNotFound, Op: op, Err: err}
}

func internal(op string, err error) error {
	return &TaskError{Kind: KindInternal, Op: op, Err: err}
}
