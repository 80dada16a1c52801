package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"todo-api/internal/logger"
	"todo-api/internal/manager"
)

// sender - часть tgbotapi.BotAPI, нужная для ответов.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         sender
	taskManager *manager.TaskManager
}

func NewBot(api sender, tm *manager.TaskManager) *Bot {
	return &Bot{
		api:         api,
		taskManager: tm,
	}
}

// Start читает обновления, пока не отменён ctx.
func (b *Bot) Start(ctx context.Context, api *tgbotapi.BotAPI) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		return fmt.Errorf("ошибка получения updates: %w", err)
	}
	defer api.StopReceivingUpdates()

	logger.Info(ctx, "Бот запущен и слушает сообщения")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user := ""
	if msg.From != nil {
		user = msg.From.UserName
	}
	logger.Info(ctx, "Получено сообщение", "user", user, "text", msg.Text)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg.Chat.ID, msg.Command(), msg.CommandArguments())
		return
	}
	b.handleText(ctx, msg.Chat.ID, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) {
	args = strings.TrimSpace(args)

	switch command {
	case "start":
		b.sendMessage(chatID, welcomeText)
	case "add":
		if args == "" {
			b.sendMessage(chatID, "Укажите задачу после команды: /add Купить молоко")
			return
		}
		b.addTask(ctx, chatID, args)
	case "list":
		b.listTasks(ctx, chatID)
	case "done":
		b.toggleTask(ctx, chatID, args)
	case "delete":
		b.deleteTask(ctx, chatID, args)
	case "help":
		b.sendMessage(chatID, helpText)
	default:
		b.sendMessage(chatID, "Неизвестная команда. Используйте /help для списка команд.")
	}
}

// Обычный текст добавляется как задача
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.addTask(ctx, chatID, text)
	}
}

func (b *Bot) addTask(ctx context.Context, chatID int64, title string) {
	task, err := b.taskManager.CreateTask(ctx, title)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ *Задача добавлена!*\n\nID: `%s`\nЗадача: %s", task.ID, task.Title))
}

func (b *Bot) listTasks(ctx context.Context, chatID int64) {
	tasks, err := b.taskManager.ListTasks(ctx)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(tasks) == 0 {
		b.sendMessage(chatID, "📭 Список задач пуст")
		return
	}

	var response strings.Builder
	response.WriteString("📋 *Ваши задачи:*\n\n")
	for i, task := range tasks {
		status := "🟢"
		if task.Completed {
			status = "✅"
		}
		fmt.Fprintf(&response, "%s %d. %s\n`%s`\n\n", status, i+1, task.Title, task.ID)
	}

	stats := manager.ComputeStats(tasks)
	fmt.Fprintf(&response, "Выполнено: %d из %d", stats.Completed, stats.Total)

	b.sendMessage(chatID, response.String())
}

func (b *Bot) toggleTask(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		b.sendMessage(chatID, "Укажите номер или ID задачи: /done 1")
		return
	}

	id, err := b.resolveID(ctx, arg)
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	task, err := b.taskManager.ToggleTask(ctx, id)
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	if task.Completed {
		b.sendMessage(chatID, fmt.Sprintf("✅ Задача «%s» отмечена выполненной!", task.Title))
	} else {
		b.sendMessage(chatID, fmt.Sprintf("↩️ Задача «%s» снова в работе", task.Title))
	}
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		b.sendMessage(chatID, "Укажите номер или ID задачи: /delete 1")
		return
	}

	id, err := b.resolveID(ctx, arg)
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	if err := b.taskManager.DeleteTask(ctx, id); err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, "🗑️ Задача удалена!")
}

// resolveID принимает номер из /list (с единицы) или сам ID задачи.
func (b *Bot) resolveID(ctx context.Context, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}

	tasks, err := b.taskManager.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(tasks) {
		return "", manager.ErrNotFound
	}
	return tasks[n-1].ID, nil
}

func (b *Bot) sendError(chatID int64, err error) {
	if errors.Is(err, manager.ErrNotFound) {
		b.sendMessage(chatID, "❌ Задача не найдена")
		return
	}
	logger.Error(context.Background(), err, "Ошибка обработки команды", "chat_id", chatID)
	b.sendMessage(chatID, "❌ Внутренняя ошибка, попробуйте позже")
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := b.api.Send(msg); err != nil {
		logger.Error(context.Background(), err, "Ошибка отправки сообщения", "chat_id", chatID)
	}
}

const welcomeText = `🎯 *Добро пожаловать в TodoBot!*

*Доступные команды:*
/add [задача] - Добавить задачу
/list - Показать все задачи
/done [номер] - Переключить отметку о выполнении
/delete [номер] - Удалить задачу
/help - Помощь

Любой текст без команды тоже станет задачей.`

const helpText = `🤖 *Помощь по командам*

*/start* - Начать работу с ботом
*/add [задача]* - Добавить новую задачу
*/list* - Показать все задачи
*/done [номер или ID]* - Переключить отметку о выполнении
*/delete [номер или ID]* - Удалить задачу
*/help* - Показать эту справку

Номер задачи берётся из /list.`
