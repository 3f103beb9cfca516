package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/tucnak/telebot.v2"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unreachable bool
	}{
		{"blocked", tb.ErrBlockedByUser, true},
		{"never started", tb.ErrNotStartedByUser, true},
		{"chat not found", tb.ErrChatNotFound, true},
		{"forbidden api error", tb.NewAPIError(403, "Forbidden: bot was kicked"), true},
		{"unknown forbidden", errors.New("telegram: Forbidden: user is gone (403)"), true},
		{"flood", errors.New("telegram: Too Many Requests: retry after 5 (429)"), false},
		{"network", errors.New("dial tcp: i/o timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)
			require.Error(t, err)
			require.Equal(t, tt.unreachable, errors.Is(err, core.ErrRecipientUnreachable))
		})
	}

	require.NoError(t, Classify(nil))
}

func TestKeyboard(t *testing.T) {
	require.Nil(t, Keyboard(nil))

	removed := Keyboard([][]string{})
	require.True(t, removed.ReplyKeyboardRemove)

	markup := Keyboard([][]string{{"📈 Pump", "📉 Dump"}, {"⬅️ Back"}})
	require.True(t, markup.ResizeReplyKeyboard)
	require.Len(t, markup.ReplyKeyboard, 2)
	require.Len(t, markup.ReplyKeyboard[0], 2)
	require.Equal(t, "📉 Dump", markup.ReplyKeyboard[0][1].Text)
	require.Equal(t, "⬅️ Back", markup.ReplyKeyboard[1][0].Text)
}

func newTestTelegram(t *testing.T, sendMessage http.HandlerFunc) *Telegram {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"screener_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/setMyCommands"):
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			sendMessage(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	bot, err := NewTelegram("token", nil, zerolog.Nop(),
		WithAPIURL(server.URL),
		WithSendTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	return bot
}

func TestTelegram_SendTimesOut(t *testing.T) {
	bot := newTestTelegram(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	started := time.Now()
	err := bot.Send(context.Background(), 42, "🟢 PUMP!")
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrRecipientUnreachable)
	require.Less(t, time.Since(started), time.Second)
}

func TestTelegram_SendBlocked(t *testing.T) {
	bot := newTestTelegram(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	})

	err := bot.Send(context.Background(), 42, "🔴 DUMP!")
	require.ErrorIs(t, err, core.ErrRecipientUnreachable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, bot.Send(ctx, 42, "🔴 DUMP!"), context.Canceled)
}
