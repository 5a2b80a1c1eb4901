package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/reviewbot/internal/database"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu            sync.Mutex
	sent          []tgbotapi.MessageConfig
	rejectMarkup  bool
	updates       chan tgbotapi.Update
	stoppedPolled bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := c.(tgbotapi.MessageConfig)
	if f.rejectMarkup && msg.ParseMode != "" {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities: can't find end of the entity")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stoppedPolled = true
	f.mu.Unlock()
}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeConversations struct {
	active map[int64]bool
	texts  []string
}

func (c *fakeConversations) Handle(_ context.Context, userID int64, text string) (bool, error) {
	if !c.active[userID] {
		return false, nil
	}
	c.texts = append(c.texts, text)
	return true, nil
}

func (c *fakeConversations) Cancel(userID int64) bool {
	ok := c.active[userID]
	delete(c.active, userID)
	return ok
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *database.Store, *fakeConversations) {
	t.Helper()
	store, err := database.Open(database.Config{Type: database.TypeSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	conv := &fakeConversations{active: make(map[int64]bool)}
	b := New(api, store, Config{RatePerSec: 1000}, zerolog.Nop())
	b.SetConversations(conv)
	return b, api, store, conv
}

func command(userID int64, text string, length int) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: userID, UserName: "alice", FirstName: "Alice"},
		Chat:     &tgbotapi.Chat{ID: userID, Type: "private"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func text(userID int64, s string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: s,
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
	}
}

func TestStartAndAdd(t *testing.T) {
	b, api, store, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, command(7, "/add house:дом", 4))
	assert.Equal(t, msgNotRegistered, api.last().Text)

	b.HandleMessage(ctx, command(7, "/start", 6))
	assert.Contains(t, api.last().Text, "Alice")
	assert.Equal(t, tgbotapi.ModeMarkdown, api.last().ParseMode)
	assert.Equal(t, int64(7), api.last().ChatID)

	b.HandleMessage(ctx, command(7, "/add House : Дом", 4))
	assert.Contains(t, api.last().Text, "Слово успешно добавлено")

	words, err := store.GetUserWords(ctx, 7)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "house", words[0].Text)
	assert.Equal(t, "дом", words[0].Translation)

	b.HandleMessage(ctx, command(7, "/add house", 4))
	assert.Contains(t, api.last().Text, "Неверный формат")
}

func TestSettingsAndInfo(t *testing.T) {
	b, api, store, _ := newTestBot(t)
	ctx := context.Background()
	b.HandleMessage(ctx, command(7, "/start", 6))

	b.HandleMessage(ctx, command(7, "/settings", 9))
	assert.Contains(t, api.last().Text, "Напоминаний в день: 1")

	b.HandleMessage(ctx, command(7, "/settings 5", 9))
	assert.Equal(t, "✅ Теперь напоминаний в день: 5", api.last().Text)
	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, u.RemindersPerDay)

	b.HandleMessage(ctx, command(7, "/settings 24", 9))
	assert.Equal(t, "Число должно быть от 1 до 23", api.last().Text)

	b.HandleMessage(ctx, command(7, "/info", 5))
	assert.Contains(t, api.last().Text, "Уведомлений в день: 5")

	b.HandleMessage(ctx, command(7, "/stats", 6))
	assert.Contains(t, api.last().Text, "Всего слов в словаре: *0*")
	assert.Contains(t, api.last().Text, "За последнюю неделю: *+0* слов")
	assert.Contains(t, api.last().Text, "За последний месяц: *+0* слов")
}

func TestTextRoutesToConversation(t *testing.T) {
	b, api, _, conv := newTestBot(t)
	ctx := context.Background()

	b.HandleMessage(ctx, text(7, "дом"))
	assert.Equal(t, msgNoReview, api.last().Text)

	conv.active[7] = true
	sent := len(api.sent)
	b.HandleMessage(ctx, text(7, "дом"))
	assert.Equal(t, []string{"дом"}, conv.texts)
	assert.Len(t, api.sent, sent, "the conversation replies on its own")

	b.HandleMessage(ctx, command(7, "/cancel", 7))
	assert.Equal(t, msgCancelled, api.last().Text)
	b.HandleMessage(ctx, command(7, "/cancel", 7))
	assert.Equal(t, msgNothingToStop, api.last().Text)
}

func TestIgnoresGroupChats(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	msg := text(7, "hi")
	msg.Chat.Type = "group"
	b.HandleMessage(context.Background(), msg)
	assert.Empty(t, api.sent)
}

func TestSendFallsBackToPlainText(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	api.rejectMarkup = true

	require.NoError(t, b.Send(context.Background(), 7, "snake_case *word"))
	assert.Equal(t, "", api.last().ParseMode)
	assert.Equal(t, "snake_case *word", api.last().Text)
}

func TestStartStopsOnCancel(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	api.updates <- tgbotapi.Update{Message: command(7, "/start", 6)}
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, api.stoppedPolled)
}
