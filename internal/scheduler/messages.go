package scheduler

import (
	"fmt"
	"time"

	"github.com/example/reviewbot/pkg/models"
)

const reminderFormat = "Слово: *%s*\n\nНапишите перевод слова, а затем проверьте себя"

var motivations = []string{
	"✨ *Небольшая мотивация*\n\nС каждым выученным словом вы все ближе к цели!",
	"✨ *Небольшая мотивация*\n\nДесять минут в день лучше, чем час раз в неделю.",
	"✨ *Небольшая мотивация*\n\nОшибки тоже помогают запоминать. Продолжайте!",
}

// ReminderText renders the reminder for word
func ReminderText(word models.Word) string {
	return fmt.Sprintf(reminderFormat, word.Text)
}

// MotivationText picks the motivation message for day
func MotivationText(day time.Time) string {
	return motivations[day.YearDay()%len(motivations)]
}
