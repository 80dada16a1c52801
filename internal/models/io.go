package models

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{"id", "title", "completed", "createdAt"}

// SaveJSON записывает задачи в файл в виде JSON-массива.
func SaveJSON(path string, tasks []Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteJSON(f, tasks); err != nil {
		return err
	}
	return f.Close()
}

func WriteJSON(w io.Writer, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return fmt.Errorf("ошибка кодирования JSON: %w", err)
	}
	return nil
}

// LoadJSON читает задачи из JSON-файла. Отсутствующий файл - не ошибка.
func LoadJSON(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	return ReadJSON(f)
}

func ReadJSON(r io.Reader) ([]Task, error) {
	var tasks []Task
	if err := json.NewDecoder(r).Decode(&tasks); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка разбора JSON: %w", err)
	}
	return tasks, nil
}

// SaveCSV записывает задачи в CSV с заголовком id,title,completed,createdAt.
func SaveCSV(path string, tasks []Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCSV(f, tasks); err != nil {
		return err
	}
	return f.Close()
}

func WriteCSV(w io.Writer, tasks []Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		record := []string{
			t.ID,
			t.Title,
			strconv.FormatBool(t.Completed),
			t.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCSV читает задачи из CSV-файла. Отсутствующий файл - не ошибка.
func LoadCSV(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

func ReadCSV(r io.Reader) ([]Task, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	tasks := make([]Task, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("строка %d: ожидалось %d полей, получено %d", i+2, len(csvHeader), len(rec))
		}
		completed, err := strconv.ParseBool(rec[2])
		if err != nil {
			return nil, fmt.Errorf("строка %d: некорректное поле completed: %w", i+2, err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, rec[3])
		if err != nil {
			return nil, fmt.Errorf("строка %d: некорректное поле createdAt: %w", i+2, err)
		}
		tasks = append(tasks, Task{
			ID:        rec[0],
			Title:     rec[1],
			Completed: completed,
			CreatedAt: createdAt,
		})
	}
	return tasks, nil
}
