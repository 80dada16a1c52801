package server

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"todo-api/internal/manager"
	"todo-api/internal/metrics"
)

//go:embed static/index.html
var indexHTML []byte

type Options struct {
	// RateLimit - запросов в секунду к /tasks, 0 отключает лимитер
	RateLimit float64
	RateBurst int
}

func NewRouter(tm *manager.TaskManager, reg *metrics.Registry, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(activeConnections(reg))
	r.Use(httpMetrics(reg))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// до Route, чтобы подроутеры унаследовали обработчик
	r.NotFound(routeNotFoundHandler(reg))

	tasks := taskRoutes(tm, opts)
	r.Route("/tasks", tasks)
	r.Route("/api/tasks", tasks)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(tm))
	r.Method(http.MethodGet, "/metrics", reg.Handler())
	r.Get("/", indexHandler)

	return r
}

// taskRoutes монтируется дважды, лимитер у обоих префиксов общий.
func taskRoutes(tm *manager.TaskManager, opts Options) func(chi.Router) {
	var limit func(http.Handler) http.Handler
	if opts.RateLimit > 0 {
		limit = rateLimit(opts.RateLimit, opts.RateBurst)
	}

	return func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}

		r.Get("/", listTasksHandler(tm))
		r.Post("/", createTaskHandler(tm))
		r.Get("/{id}", getTaskHandler(tm))
		r.Put("/{id}", updateTaskHandler(tm))
		r.Delete("/{id}", deleteTaskHandler(tm))
		r.Post("/{id}/toggle", toggleTaskHandler(tm))
	}
}
