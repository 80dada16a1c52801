package models

import "time"

// DefaultTitle подставляется, когда заголовок не передан или пустой.
const DefaultTitle = "Untitled"

type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Структура для HTTP-запроса на создание
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// UpdateTaskRequest - частичное обновление: nil означает "поле не передано"
type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// IsEmpty сообщает, что ни одно поле не передано.
func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Completed == nil
}

// Apply накладывает переданные поля на задачу. ID и CreatedAt не меняются.
func (r UpdateTaskRequest) Apply(t Task) Task {
	if r.Title != nil {
		t.Title = *r.Title
	}
	if r.Completed != nil {
		t.Completed = *r.Completed
	}
	return t
}

// TitleOrDefault возвращает заголовок или заглушку для пустого значения.
func TitleOrDefault(title string) string {
	if title == "" {
		return DefaultTitle
	}
	return title
}
