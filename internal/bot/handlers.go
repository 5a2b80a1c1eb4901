package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/reviewbot/internal/database"
	"github.com/example/reviewbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgWelcome = "🎉 *Добро пожаловать в бот-напоминалку для изучения слов, %s!*\n\n" +
		"🎯 *Доступные команды:*\n" +
		"/add - добавить новое слово с переводом в словарь\n" +
		"/stats - посмотреть статистику обучения\n" +
		"/settings - изменить настройки отправки напоминаний\n" +
		"/info - информация о настройках\n" +
		"/cancel - отменить текущее повторение\n\n" +
		"🚀 *Начните с добавления первого слова в словарь с помощью команды /add!*"
	msgWordAdded = "✅ *Слово успешно добавлено!*\n\n" +
		"📖 *Слово:* %s\n" +
		"🌐 *Перевод:* %s\n" +
		"Добавить еще слово: /add\n" +
		"Посмотреть статистику: /stats"
	msgSettings = "⚙️ *Настройки*\n\n" +
		"🔔 Напоминаний в день: %d\n\n" +
		"Чтобы изменить, напишите:\n" +
		"`/settings 1` или `/settings 3`"
	msgSettingsSaved = "✅ Теперь напоминаний в день: %d"
	msgInfo          = "⚙️ *Информация о настройках*\n\n" +
		"Уведомлений в день: %d\n" +
		"Временная зона: %s\n" +
		"Язык: %s\n" +
		"Посмотреть статистику: /stats"
	msgStats = "*Ваша статистика изучения слов*\n\n" +
		"Всего слов в словаре: *%d*\n" +
		"Ждут повторения: *%d*\n" +
		"Выучено слов: *%d*\n" +
		"Повторений: *%d* (%.0f%% верно)\n\n" +
		"За последнюю неделю: *+%d* слов\n" +
		"За последний месяц: *+%d* слов\n\n" +
		"Всего зафиксировано действий: *%d*"
	msgNotRegistered  = "Похоже, вы ещё не зарегистрированы.\nНажмите /start, чтобы начать пользоваться ботом."
	msgCancelled      = "Повторение отменено. Слово вернётся позже."
	msgNothingToStop  = "Сейчас нет активного повторения."
	msgNoReview       = "Сейчас нет слова для повторения. Добавьте новое: /add слово:перевод"
	msgUnknownCommand = "Неизвестная команда. Список команд: /start"
	msgDatabaseError  = "Ошибка подключения к базе данных"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "add":
		return b.handleAdd(ctx, message)
	case "settings":
		return b.handleSettings(ctx, message)
	case "info":
		return b.handleInfo(ctx, message)
	case "stats":
		return b.handleStats(ctx, message)
	case "cancel":
		return b.handleCancel(ctx, message)
	default:
		return b.Send(ctx, message.From.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if err := b.repo.AddUser(ctx, message.From.ID, message.From.UserName); err != nil {
		return err
	}
	b.log.Info().Int64("user_id", message.From.ID).Str("username", message.From.UserName).Msg("user started bot")
	return b.Send(ctx, message.From.ID, fmt.Sprintf(msgWelcome, message.From.FirstName))
}

func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	word, translation, err := ParseAdd(message.CommandArguments())
	if err != nil {
		return b.replyParseError(ctx, userID, err)
	}
	if _, err := b.repo.GetUser(ctx, userID); err != nil {
		return b.replyLookupError(ctx, userID, err)
	}

	w := models.NewWord(userID, word, translation, b.now())
	if err := b.repo.AddWord(ctx, &w); err != nil {
		return err
	}
	if err := b.repo.LogActivity(ctx, userID, "add_word:"+word); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to log activity")
	}
	return b.Send(ctx, userID, fmt.Sprintf(msgWordAdded, word, translation))
}

func (b *Bot) handleSettings(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	n, err := ParseSettings(message.CommandArguments())
	if err != nil {
		return b.replyParseError(ctx, userID, err)
	}

	if n == 0 {
		user, err := b.repo.GetUser(ctx, userID)
		if err != nil {
			return b.replyLookupError(ctx, userID, err)
		}
		return b.Send(ctx, userID, fmt.Sprintf(msgSettings, user.RemindersPerDay))
	}

	if err := b.repo.UpdateReminders(ctx, userID, n); err != nil {
		return b.replyLookupError(ctx, userID, err)
	}
	return b.Send(ctx, userID, fmt.Sprintf(msgSettingsSaved, n))
}

func (b *Bot) handleInfo(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.repo.GetUser(ctx, message.From.ID)
	if err != nil {
		return b.replyLookupError(ctx, message.From.ID, err)
	}
	return b.Send(ctx, user.ID, fmt.Sprintf(msgInfo, user.RemindersPerDay, user.Timezone, user.Language))
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	stats, err := b.repo.GetUserStats(ctx, message.From.ID, b.now())
	if err != nil {
		return b.replyLookupError(ctx, message.From.ID, err)
	}
	return b.Send(ctx, message.From.ID, fmt.Sprintf(msgStats,
		stats.TotalWords, stats.DueWords, stats.LearnedWords, stats.Reviews, stats.SuccessRate,
		stats.LearnedWeek, stats.LearnedMonth, stats.ActivityEvents))
}

func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) error {
	if b.conv != nil && b.conv.Cancel(message.From.ID) {
		return b.Send(ctx, message.From.ID, msgCancelled)
	}
	return b.Send(ctx, message.From.ID, msgNothingToStop)
}

func (b *Bot) replyParseError(ctx context.Context, userID int64, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return b.Send(ctx, userID, pe.Msg)
	}
	return err
}

func (b *Bot) replyLookupError(ctx context.Context, userID int64, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return b.Send(ctx, userID, msgNotRegistered)
	}
	return err
}
