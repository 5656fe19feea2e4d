package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/internal/logger"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type failing struct{ err error }

func (f failing) Notify(context.Context, Event) error { return f.err }

func TestEventMessage(t *testing.T) {
	t.Parallel()

	assert.Contains(t, Event{Kind: LevelUp, DeckName: "Biology", NewLevel: 3}.Message(), "Biology is now at level 3")
	assert.Contains(t, Event{Kind: LevelDown, OldLevel: 3, NewLevel: 2}.Message(), "all decks dropped from level 3 to 2")
	assert.Contains(t, Event{Kind: StreakRecord, DeckName: "X", Streak: 12}.Message(), "12 days")
	assert.Equal(t, "period_reset", PeriodReset.String())
}

func TestTelegramNotify(t *testing.T) {
	t.Parallel()

	api := &fakeSender{}
	tg := newTelegram(api, 42, logger.Nop())
	require.NoError(t, tg.Notify(context.Background(), Event{Kind: LevelUp, NewLevel: 2}))
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Contains(t, api.sent[0].Text, "level 2")

	api.err = errors.New("network down")
	assert.Error(t, tg.Notify(context.Background(), Event{Kind: LevelUp}))
}

func TestMulti(t *testing.T) {
	t.Parallel()

	api := &fakeSender{}
	boom := errors.New("boom")
	m := Multi{NewLog(logger.Nop()), failing{err: boom}, newTelegram(api, 1, logger.Nop())}

	err := m.Notify(context.Background(), Event{Kind: StreakRecord, Streak: 5})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, api.sent, 1)
}
