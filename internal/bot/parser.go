package bot

import (
	"strconv"
	"strings"

	"github.com/example/reviewbot/pkg/models"
)

// ParseError carries a message that can be shown to the user as is
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

// ParseAdd parses the arguments of "/add word:translation"
func ParseAdd(args string) (word, translation string, err error) {
	payload := strings.TrimSpace(args)
	if payload == "" {
		return "", "", &ParseError{Msg: "📝 Введите слово в формате:\n`/add слово:перевод`"}
	}
	word, translation, ok := strings.Cut(payload, ":")
	if !ok {
		return "", "", &ParseError{Msg: "❌ Неверный формат.\nИспользуйте:\n`/add слово:перевод`"}
	}
	word = strings.ToLower(strings.TrimSpace(word))
	translation = strings.ToLower(strings.TrimSpace(translation))
	if word == "" || translation == "" {
		return "", "", &ParseError{Msg: "❌ Слово и перевод не могут быть пустыми"}
	}
	return word, translation, nil
}

// ParseSettings parses the arguments of "/settings N". It returns 0 when no value was given.
func ParseSettings(args string) (int, error) {
	parts := strings.Fields(args)
	switch len(parts) {
	case 0:
		return 0, nil
	case 1:
	default:
		return 0, &ParseError{Msg: "Неверный формат. Используйте: /settings 3"}
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &ParseError{Msg: "Нужно указать число"}
	}
	if n < models.MinRemindersPerDay || n > models.MaxRemindersPerDay {
		return 0, &ParseError{Msg: "Число должно быть от 1 до 23"}
	}
	return n, nil
}
