package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/screener/pkg/access"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
	"github.com/samber/lo"
)

// Fixed texts
const (
	TextAskKey       = "Hello! 👋 To use this bot you need to activate your access key.\nPlease send your key or /activate <your-key>."
	TextWelcomeBack  = "Welcome back! 🎉 Your subscription is active. Use the menu to configure alerts."
	TextActivated    = "Your key has been activated successfully! ✅"
	TextInvalidKey   = "Invalid key or this key has already been used by another user. ❌"
	TextExpiredKey   = "This key has expired. ⌛"
	TextActivateHelp = "Usage: /activate <key> 🗝️"
	TextLoggedOut    = "You have been logged out. 👋 Send /start to activate again."
	TextSaved        = "✅ Saved"
	TextHelp         = "Here are the available commands 📋:\n" +
		"/start - Start the bot and get activation instructions.\n" +
		"/activate <key> - Activate your access key.\n" +
		"/help - Show this help message."
)

// Reply is the answer to an inbound message. A nil Keyboard removes nothing
// and keeps the previous keyboard.
type Reply struct {
	Text     string
	Keyboard [][]string
}

// Machine drives the menu of every identity, one message at a time
type Machine struct {
	tree     Tree
	sessions core.SessionStore
	settings core.SettingsStore
	access   *access.Service
	log      logger.Logger
	now      func() time.Time
}

// NewMachine creates the state machine over tree
func NewMachine(tree Tree, store core.Store, accessService *access.Service, log logger.Logger) *Machine {
	return &Machine{
		tree:     tree,
		sessions: store,
		settings: store,
		access:   accessService,
		log:      log,
		now:      time.Now,
	}
}

// Help returns the command list
func (m *Machine) Help() Reply {
	return Reply{Text: TextHelp}
}

// Start shows the main menu to entitled identities and asks for a key otherwise
func (m *Machine) Start(ctx context.Context, id core.Identity) (Reply, error) {
	entitled, err := m.access.Entitled(ctx, id)
	if err != nil {
		return Reply{}, err
	}

	if !entitled {
		return m.awaitKey(ctx, id)
	}

	session := m.newSession(id, StateMain)
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		return Reply{}, err
	}

	reply, err := m.render(ctx, session, "")
	if err != nil {
		return Reply{}, err
	}
	reply.Text = TextWelcomeBack + "\n\n" + reply.Text
	return reply, nil
}

// Activate submits key for id, on success the menu starts at the main screen
func (m *Machine) Activate(ctx context.Context, id core.Identity, username, key string) (Reply, error) {
	if strings.TrimSpace(key) == "" {
		return Reply{Text: TextActivateHelp}, nil
	}

	_, err := m.access.Activate(ctx, id, username, key)
	switch {
	case errors.Is(err, core.ErrKeyNotFound), errors.Is(err, core.ErrActivationConflict), errors.Is(err, core.ErrInvalidInput):
		return Reply{Text: TextInvalidKey}, nil
	case errors.Is(err, access.ErrExpired):
		return Reply{Text: TextExpiredKey}, nil
	case err != nil:
		return Reply{}, err
	}

	session := m.newSession(id, StateMain)
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		return Reply{}, err
	}

	return m.render(ctx, session, TextActivated)
}

// Handle processes a free text message. The boolean is false when the text
// means nothing in the current state and no answer must be sent.
func (m *Machine) Handle(ctx context.Context, id core.Identity, username, text string) (Reply, bool, error) {
	text = strings.TrimSpace(text)

	session, err := m.sessions.Session(ctx, id)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return Reply{}, false, err
	}

	entitled, err := m.access.Entitled(ctx, id)
	if err != nil {
		return Reply{}, false, err
	}

	if !entitled {
		if session != nil && session.Current() == StateAwaitingKey {
			reply, err := m.Activate(ctx, id, username, text)
			return reply, err == nil, err
		}
		reply, err := m.awaitKey(ctx, id)
		return reply, err == nil, err
	}

	if session == nil || m.tree[session.Current()] == nil {
		session = m.newSession(id, StateMain)
	}

	node := m.tree[session.Current()]

	if text == LabelBack {
		session.Pop()
		return m.transition(ctx, session, "")
	}

	if node.Prompt() {
		return m.submit(ctx, session, node, text)
	}

	option, ok := node.Option(text)
	if !ok {
		return Reply{}, false, nil
	}

	switch {
	case option.Logout:
		if err := m.access.Logout(ctx, id); err != nil {
			return Reply{}, false, err
		}
		return Reply{Text: TextLoggedOut, Keyboard: [][]string{}}, true, nil

	case option.Toggle != nil:
		_, err := m.settings.UpdateSettings(ctx, id, func(settings *core.Settings) error {
			option.Toggle(settings)
			return nil
		})
		if err != nil {
			return Reply{}, false, err
		}
		return m.transition(ctx, session, "")

	default:
		session.Push(option.Target)
		return m.transition(ctx, session, "")
	}
}

// submit validates a prompt value. A valid value is saved and the parent
// menu restored; an invalid one re-sends the prompt with the reason.
func (m *Machine) submit(ctx context.Context, session *core.Session, node *Node, text string) (Reply, bool, error) {
	direction := m.direction(session)

	_, err := m.settings.UpdateSettings(ctx, session.Identity, func(settings *core.Settings) error {
		return node.Input(settings, direction, text)
	})
	if errors.Is(err, core.ErrInvalidInput) {
		reply, renderErr := m.render(ctx, session, "⚠️ "+hint(err))
		return reply, renderErr == nil, renderErr
	}
	if err != nil {
		return Reply{}, false, err
	}

	session.Pop()
	return m.transition(ctx, session, TextSaved)
}

// hint strips the sentinel prefix of a validation error
func hint(err error) string {
	return strings.TrimPrefix(err.Error(), core.ErrInvalidInput.Error()+": ")
}

func (m *Machine) transition(ctx context.Context, session *core.Session, notice string) (Reply, bool, error) {
	session.UpdatedAt = m.now()
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		return Reply{}, false, err
	}

	reply, err := m.render(ctx, session, notice)
	return reply, err == nil, err
}

func (m *Machine) awaitKey(ctx context.Context, id core.Identity) (Reply, error) {
	if err := m.sessions.SaveSession(ctx, m.newSession(id, StateAwaitingKey)); err != nil {
		return Reply{}, err
	}
	return Reply{Text: TextAskKey, Keyboard: [][]string{}}, nil
}

func (m *Machine) newSession(id core.Identity, root core.MenuState) *core.Session {
	session := &core.Session{Identity: id, UpdatedAt: m.now()}
	session.Reset(root)
	return session
}

// direction is the category a prompt edits, taken from the menu below it
func (m *Machine) direction(session *core.Session) core.Direction {
	for i := len(session.Stack) - 1; i >= 0; i-- {
		switch session.Stack[i] {
		case StateDump:
			return core.DirectionDump
		case StatePump:
			return core.DirectionPump
		}
	}
	return core.DirectionPump
}

// render describes the current node with its keyboard
func (m *Machine) render(ctx context.Context, session *core.Session, notice string) (Reply, error) {
	node, ok := m.tree[session.Current()]
	if !ok {
		return Reply{}, fmt.Errorf("unknown menu state %q", session.Current())
	}

	settings, entitlement, err := m.access.Profile(ctx, session.Identity)
	if err != nil {
		return Reply{}, err
	}

	text := node.Describe(View{Settings: settings, Entitlement: entitlement, Direction: m.direction(session)})
	if notice != "" {
		text = notice + "\n\n" + text
	}

	return Reply{Text: text, Keyboard: m.keyboard(session, node)}, nil
}

// keyboard lays out two buttons per row, Back last when not at the root
func (m *Machine) keyboard(session *core.Session, node *Node) [][]string {
	labels := node.Choices
	if !node.Prompt() {
		labels = lo.Map(node.Options, func(option Option, _ int) string {
			return option.Label
		})
	}

	rows := lo.Chunk(labels, 2)
	if len(session.Stack) > 1 {
		rows = append(rows, []string{LabelBack})
	}
	return rows
}
