package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"todo-api/internal/config"
	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/metrics"
	"todo-api/internal/models"
	"todo-api/internal/storage"
)

const (
	filterAll       = "all"
	filterCompleted = "completed"
	filterPending   = "pending"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env живёт от Before до After одного запуска.
type env struct {
	store storage.Storage
	tm    *manager.TaskManager
	cfg   *config.Config
}

func newApp() *cli.App {
	e := &env{}

	return &cli.App{
		Name:  "todo",
		Usage: "управление задачами из командной строки",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML-файл конфигурации",
			},
		},
		Before: func(c *cli.Context) error {
			return e.open(c.Context, c.String("config"))
		},
		After: func(c *cli.Context) error {
			if e.store != nil {
				return e.store.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "создать хранилище",
				Action: e.initAction,
			},
			{
				Name:      "add",
				Usage:     "добавить задачу",
				ArgsUsage: "TITLE",
				Action:    e.addAction,
			},
			{
				Name:  "list",
				Usage: "показать задачи",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "filter",
						Value: filterAll,
						Usage: "all|completed|pending",
					},
				},
				Action: e.listAction,
			},
			{
				Name:      "get",
				Usage:     "показать задачу",
				ArgsUsage: "ID",
				Action:    e.getAction,
			},
			{
				Name:      "update",
				Usage:     "изменить задачу",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "новый заголовок"},
					&cli.BoolFlag{Name: "completed", Usage: "отметка о выполнении"},
				},
				Action: e.updateAction,
			},
			{
				Name:      "toggle",
				Usage:     "переключить отметку о выполнении",
				ArgsUsage: "ID",
				Action:    e.toggleAction,
			},
			{
				Name:      "delete",
				Usage:     "удалить задачу",
				ArgsUsage: "ID",
				Action:    e.deleteAction,
			},
			{
				Name:  "export",
				Usage: "выгрузить задачи в файл",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json|csv"},
					&cli.StringFlag{Name: "out", Required: true, Usage: "путь к файлу"},
				},
				Action: e.exportAction,
			},
			{
				Name:      "load",
				Usage:     "загрузить задачи из .json или .csv",
				ArgsUsage: "FILE",
				Action:    e.loadAction,
			},
		},
	}
}

func (e *env) open(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	// CLI печатает результат в stdout, служебные сообщения только от warn
	if level > logger.LevelWarn {
		level = logger.LevelWarn
	}
	logger.SetLevel(level)

	store, err := storage.Open(ctx, storage.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.store = store
	e.tm = manager.NewTaskManager(store, metrics.NewRegistry())
	return nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func printTask(c *cli.Context, task models.Task) {
	status := "Pending"
	if task.Completed {
		status = "Completed"
	}
	fmt.Fprintf(c.App.Writer, "%s: %s [%s] %s\n", task.ID, task.Title, status, task.CreatedAt.Format("2006-01-02 15:04"))
}

func (e *env) initAction(c *cli.Context) error {
	location := e.cfg.Database.DSN
	if e.cfg.Database.Driver == storage.DriverSQLite || e.cfg.Database.Driver == storage.DriverSQLite3 {
		if abs, err := filepath.Abs(location); err == nil {
			location = abs
		}
	}
	fmt.Fprintf(c.App.Writer, "Storage ready: %s (%s)\n", location, e.cfg.Database.Driver)
	return nil
}

func (e *env) addAction(c *cli.Context) error {
	title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	task, err := e.tm.CreateTask(c.Context, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Added task with ID %s\n", task.ID)
	return nil
}

func (e *env) listAction(c *cli.Context) error {
	filter := c.String("filter")
	if filter != filterAll && filter != filterCompleted && filter != filterPending {
		return fmt.Errorf("unknown filter %q", filter)
	}

	tasks, err := e.tm.ListTasks(c.Context)
	if err != nil {
		return err
	}

	shown := 0
	for _, task := range tasks {
		if filter == filterCompleted && !task.Completed || filter == filterPending && task.Completed {
			continue
		}
		printTask(c, task)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(c.App.Writer, "No tasks found")
	}
	return nil
}

func (e *env) getAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	task, err := e.tm.GetTask(c.Context, id)
	if err != nil {
		return describe(err, id)
	}
	printTask(c, task)
	return nil
}

func (e *env) updateAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}

	var req models.UpdateTaskRequest
	if c.IsSet("title") {
		title := c.String("title")
		req.Title = &title
	}
	if c.IsSet("completed") {
		completed := c.Bool("completed")
		req.Completed = &completed
	}

	task, err := e.tm.UpdateTask(c.Context, id, req)
	if err != nil {
		return describe(err, id)
	}
	printTask(c, task)
	return nil
}

func (e *env) toggleAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	task, err := e.tm.ToggleTask(c.Context, id)
	if err != nil {
		return describe(err, id)
	}
	printTask(c, task)
	return nil
}

func (e *env) deleteAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	if err := e.tm.DeleteTask(c.Context, id); err != nil {
		return describe(err, id)
	}
	fmt.Fprintf(c.App.Writer, "Task %s deleted\n", id)
	return nil
}

func (e *env) exportAction(c *cli.Context) error {
	format := c.String("format")
	out := c.String("out")

	tasks, err := e.tm.ListTasks(c.Context)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		err = models.SaveJSON(out, tasks)
	case "csv":
		err = models.SaveCSV(out, tasks)
	default:
		return fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Tasks exported to %s in %s format\n", out, format)
	return nil
}

// loadAction добавляет задачи из файла как новые: id и время создания
// назначаются заново.
func (e *env) loadAction(c *cli.Context) error {
	file, err := requireArg(c, "FILE")
	if err != nil {
		return err
	}

	var tasks []models.Task
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		tasks, err = models.LoadJSON(file)
	case ".csv":
		tasks, err = models.LoadCSV(file)
	default:
		return errors.New("unsupported file format, use .json or .csv")
	}
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	for _, t := range tasks {
		created, err := e.tm.CreateTask(c.Context, t.Title)
		if err != nil {
			return err
		}
		if t.Completed {
			done := true
			if _, err := e.tm.UpdateTask(c.Context, created.ID, models.UpdateTaskRequest{Completed: &done}); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(c.App.Writer, "Loaded %d tasks from %s\n", len(tasks), file)
	return nil
}

func describe(err error, id string) error {
	if errors.Is(err, manager.ErrNotFound) {
		return fmt.Errorf("task %s not found", id)
	}
	return err
}
