package manager

import "todo-api/internal/models"

type Stats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletedRatio float64 `json:"completedRatio"`
}

// ComputeStats считает долю выполненных; для пустого списка она равна 0.
func ComputeStats(tasks []models.Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	if s.Total > 0 {
		s.CompletedRatio = float64(s.Completed) / float64(s.Total)
	}
	return s
}
