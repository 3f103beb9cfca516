// Package notification delivers alerts and serves the settings menu over Telegram
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/raykavin/screener/pkg/menu"
	tb "gopkg.in/tucnak/telebot.v2"
)

const (
	// DefaultHandlerTimeout bounds the storage work done for one inbound message
	DefaultHandlerTimeout = 10 * time.Second
	// DefaultSendTimeout bounds every outbound alert request
	DefaultSendTimeout = 10 * time.Second
)

// unreachable are the API errors after which an identity can no longer be messaged
var unreachable = []error{
	tb.ErrBlockedByUser,
	tb.ErrNotStartedByUser,
	tb.ErrUserIsDeactivated,
	tb.ErrChatNotFound,
}

// Telegram implements core.Sender and routes inbound messages to the menu
type Telegram struct {
	client      *tb.Bot
	outbound    *tb.Bot
	machine     *menu.Machine
	log         logger.Logger
	timeout     time.Duration
	sendTimeout time.Duration
	ctx         context.Context
}

// Option is a function that configures a Telegram instance
type Option func(settings *tb.Settings, telegram *Telegram)

// WithHTTPClient sets the client used for the Bot API, eg: behind a proxy
func WithHTTPClient(client *http.Client) Option {
	return func(settings *tb.Settings, _ *Telegram) {
		settings.Client = client
	}
}

// WithAPIURL points the bot to another Bot API server
func WithAPIURL(url string) Option {
	return func(settings *tb.Settings, _ *Telegram) {
		settings.URL = url
	}
}

// WithHandlerTimeout bounds each inbound message handling
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(_ *tb.Settings, telegram *Telegram) {
		if timeout > 0 {
			telegram.timeout = timeout
		}
	}
}

// WithSendTimeout bounds each outbound alert, the long poll keeps its own client
func WithSendTimeout(timeout time.Duration) Option {
	return func(_ *tb.Settings, telegram *Telegram) {
		if timeout > 0 {
			telegram.sendTimeout = timeout
		}
	}
}

// NewTelegram creates the bot and registers the command handlers
func NewTelegram(token string, machine *menu.Machine, log logger.Logger, options ...Option) (*Telegram, error) {
	bot := &Telegram{
		machine: machine,
		log:     log.WithField("component", "telegram"),
		timeout:     DefaultHandlerTimeout,
		sendTimeout: DefaultSendTimeout,
		ctx:         context.Background(),
	}

	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	settings := tb.Settings{
		Token:  token,
		Poller: privateOnly(poller, bot.log),
	}

	for _, option := range options {
		option(&settings, bot)
	}

	client, err := tb.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.client = client

	// alerts go through a second bot sharing the transport with a short timeout
	bot.outbound, err = tb.NewBot(tb.Settings{
		Token:   token,
		URL:     settings.URL,
		Client:  boundedClient(settings.Client, bot.sendTimeout),
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram sender: %w", err)
	}

	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	client.Handle("/start", bot.StartHandle)
	client.Handle("/activate", bot.ActivateHandle)
	client.Handle("/help", bot.HelpHandle)
	client.Handle(tb.OnText, bot.TextHandle)

	return bot, nil
}

// privateOnly drops updates without a sender and group chat traffic
func privateOnly(poller tb.Poller, log logger.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}

		if !u.Message.Private() {
			log.WithField("chat", u.Message.Chat.ID).Debug("ignoring non private message")
			return false
		}

		return true
	})
}

// boundedClient reuses the transport of client with a request timeout
func boundedClient(client *http.Client, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport
	if client != nil && client.Transport != nil {
		transport = client.Transport
	}

	return &http.Client{Transport: transport, Timeout: timeout}
}

func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "start", Description: "Start the bot and get activation instructions"},
		{Text: "activate", Description: "Activate your access key"},
		{Text: "help", Description: "Show the available commands"},
	})
}

// Start polls for updates until ctx is cancelled
func (t *Telegram) Start(ctx context.Context) {
	t.ctx = ctx

	go func() {
		<-ctx.Done()
		t.client.Stop()
	}()

	t.log.Info("telegram bot started")
	t.client.Start()
}

// Send implements core.Sender. Alerts are Markdown without link previews.
func (t *Telegram) Send(ctx context.Context, to core.Identity, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := t.outbound.Send(&tb.User{ID: int64(to)}, text, tb.ModeMarkdown, tb.NoPreview)
	return Classify(err)
}

// Classify maps Bot API failures to core.ErrRecipientUnreachable when the
// identity cannot receive messages anymore, other errors are returned as is
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, target := range unreachable {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %v", core.ErrRecipientUnreachable, err)
		}
	}

	var apiErr *tb.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %v", core.ErrRecipientUnreachable, err)
	}

	// unknown descriptions come back as "telegram: <description> (<code>)"
	if strings.HasSuffix(err.Error(), fmt.Sprintf("(%d)", http.StatusForbidden)) {
		return fmt.Errorf("%w: %v", core.ErrRecipientUnreachable, err)
	}

	return err
}

// StartHandle shows the main menu or asks for an access key
func (t *Telegram) StartHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	reply, err := t.machine.Start(ctx, core.Identity(m.Sender.ID))
	t.respond(m, reply, err)
}

// ActivateHandle binds the key given as payload, eg: /activate ABCD
func (t *Telegram) ActivateHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	reply, err := t.machine.Activate(ctx, core.Identity(m.Sender.ID), m.Sender.Username, m.Payload)
	t.respond(m, reply, err)
}

// HelpHandle lists the commands
func (t *Telegram) HelpHandle(m *tb.Message) {
	t.respond(m, t.machine.Help(), nil)
}

// TextHandle feeds menu buttons and prompt values to the state machine
func (t *Telegram) TextHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	reply, ok, err := t.machine.Handle(ctx, core.Identity(m.Sender.ID), m.Sender.Username, m.Text)
	if err == nil && !ok {
		return
	}
	t.respond(m, reply, err)
}

func (t *Telegram) respond(m *tb.Message, reply menu.Reply, err error) {
	log := t.log.WithField("identity", m.Sender.ID)

	if err != nil {
		log.WithError(err).Error("failed to handle message")
		reply = menu.Reply{Text: "⚠️ Something went wrong, please try again later."}
	}

	options := []interface{}{}
	if markup := Keyboard(reply.Keyboard); markup != nil {
		options = append(options, markup)
	}

	if _, err := t.client.Send(m.Sender, reply.Text, options...); err != nil {
		log.WithError(Classify(err)).Warn("failed to send reply")
	}
}

// Keyboard builds the reply keyboard of a menu screen. A nil layout keeps
// the current keyboard, an empty one removes it.
func Keyboard(layout [][]string) *tb.ReplyMarkup {
	if layout == nil {
		return nil
	}

	if len(layout) == 0 {
		return &tb.ReplyMarkup{ReplyKeyboardRemove: true}
	}

	markup := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	rows := make([]tb.Row, 0, len(layout))
	for _, labels := range layout {
		buttons := make([]tb.Btn, 0, len(labels))
		for _, label := range labels {
			buttons = append(buttons, markup.Text(label))
		}
		rows = append(rows, markup.Row(buttons...))
	}
	markup.Reply(rows...)

	return markup
}
