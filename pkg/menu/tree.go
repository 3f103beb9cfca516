// Package menu is the conversational state machine that edits the alert settings
package menu

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/screener/pkg/core"
)

// Menu states
const (
	StateAwaitingKey core.MenuState = "awaiting_key"
	StateMain        core.MenuState = "main"
	StatePump        core.MenuState = "pump"
	StateDump        core.MenuState = "dump"
	StateSettings    core.MenuState = "settings"
	StateTypeAlerts  core.MenuState = "type_alerts"
	StateProfile     core.MenuState = "profile"
	StateTimeframe   core.MenuState = "prompt_timeframe"
	StateThreshold   core.MenuState = "prompt_threshold"
	StateQuota       core.MenuState = "prompt_quota"
)

// Labels of the reply keyboard buttons
const (
	LabelBack       = "⬅️ Back"
	LabelPump       = "📈 Pump"
	LabelDump       = "📉 Dump"
	LabelSettings   = "⚙️ Exchanges"
	LabelTypeAlerts = "🔔 Alert types"
	LabelProfile    = "👤 Profile"
	LabelTimeframe  = "⏱ Timeframe"
	LabelThreshold  = "🎯 Threshold"
	LabelQuota      = "📦 Daily limit"
	LabelBinance    = "🔁 Binance"
	LabelBybit      = "🔁 Bybit"
	LabelPumpAlerts = "🔁 Pump alerts"
	LabelDumpAlerts = "🔁 Dump alerts"
	LabelAllSignals = "🔁 All signals"
	LabelLogout     = "🚪 Logout"
)

// View is what a node renders from
type View struct {
	Settings    *core.Settings
	Entitlement *core.Entitlement
	Direction   core.Direction
}

// Option is one button of a menu: it either enters Target or applies Toggle
type Option struct {
	Label  string
	Target core.MenuState
	Toggle func(settings *core.Settings)
	Logout bool
}

// Node is a menu screen. A node with Input is a value prompt.
type Node struct {
	State    core.MenuState
	Describe func(view View) string
	Options  []Option
	Choices  []string
	Input    func(settings *core.Settings, direction core.Direction, text string) error
}

// Prompt reports whether the node waits for a value
func (n *Node) Prompt() bool {
	return n.Input != nil
}

// Option returns the option labelled label
func (n *Node) Option(label string) (Option, bool) {
	for _, option := range n.Options {
		if option.Label == label {
			return option, true
		}
	}
	return Option{}, false
}

// Tree indexes the nodes by state
type Tree map[core.MenuState]*Node

// DefaultTree is the screener menu
func DefaultTree() Tree {
	nodes := []*Node{
		{
			State: StateMain,
			Describe: func(View) string {
				return "📋 Main menu"
			},
			Options: []Option{
				{Label: LabelPump, Target: StatePump},
				{Label: LabelDump, Target: StateDump},
				{Label: LabelSettings, Target: StateSettings},
				{Label: LabelTypeAlerts, Target: StateTypeAlerts},
				{Label: LabelProfile, Target: StateProfile},
			},
		},
		categoryNode(StatePump),
		categoryNode(StateDump),
		{
			State: StateSettings,
			Describe: func(view View) string {
				return fmt.Sprintf("⚙️ Exchanges\nBinance: %s\nBybit: %s",
					onOff(view.Settings.Exchanges.Binance), onOff(view.Settings.Exchanges.Bybit))
			},
			Options: []Option{
				{Label: LabelBinance, Toggle: func(s *core.Settings) { s.Exchanges.Binance = !s.Exchanges.Binance }},
				{Label: LabelBybit, Toggle: func(s *core.Settings) { s.Exchanges.Bybit = !s.Exchanges.Bybit }},
			},
		},
		{
			State: StateTypeAlerts,
			Describe: func(view View) string {
				return fmt.Sprintf("🔔 Alert types\nPump: %s\nDump: %s\nAll signals: %s",
					onOff(view.Settings.Pump.Enabled), onOff(view.Settings.Dump.Enabled), onOff(view.Settings.SignalsEnabled))
			},
			Options: []Option{
				{Label: LabelPumpAlerts, Toggle: func(s *core.Settings) { s.Pump.Enabled = !s.Pump.Enabled }},
				{Label: LabelDumpAlerts, Toggle: func(s *core.Settings) { s.Dump.Enabled = !s.Dump.Enabled }},
				{Label: LabelAllSignals, Toggle: func(s *core.Settings) { s.SignalsEnabled = !s.SignalsEnabled }},
			},
		},
		{
			State:    StateProfile,
			Describe: describeProfile,
			Options: []Option{
				{Label: LabelLogout, Logout: true},
			},
		},
		{
			State: StateTimeframe,
			Describe: func(view View) string {
				return fmt.Sprintf("⏱ Choose the %s timeframe", view.Direction)
			},
			Choices: core.Timeframes,
			Input: func(s *core.Settings, direction core.Direction, text string) error {
				timeframe, err := ParseTimeframe(text)
				if err != nil {
					return err
				}
				s.Category(direction).Timeframe = timeframe
				return nil
			},
		},
		{
			State: StateThreshold,
			Describe: func(view View) string {
				return fmt.Sprintf("🎯 Send the %s threshold in percent, eg: 1.5", view.Direction)
			},
			Input: func(s *core.Settings, direction core.Direction, text string) error {
				threshold, err := ParseThreshold(text)
				if err != nil {
					return err
				}
				s.Category(direction).ThresholdPct = threshold
				return nil
			},
		},
		{
			State: StateQuota,
			Describe: func(view View) string {
				return fmt.Sprintf("📦 Send the maximum %s alerts per day (1-%d)", view.Direction, core.MaxDailyQuota)
			},
			Input: func(s *core.Settings, direction core.Direction, text string) error {
				quota, err := ParseQuota(text)
				if err != nil {
					return err
				}
				s.Category(direction).DailyQuota = quota
				return nil
			},
		},
	}

	tree := make(Tree, len(nodes))
	for _, node := range nodes {
		tree[node.State] = node
	}
	return tree
}

// categoryNode is the menu of a direction, pump and dump share the layout
func categoryNode(state core.MenuState) *Node {
	direction := core.DirectionPump
	title := "📈 Pump"
	if state == StateDump {
		direction = core.DirectionDump
		title = "📉 Dump"
	}

	return &Node{
		State: state,
		Describe: func(view View) string {
			category := view.Settings.Category(direction)
			return fmt.Sprintf("%s\nTimeframe: %s\nThreshold: %.2f%%\nDaily limit: %d (sent today: %d)",
				title, category.Timeframe, category.ThresholdPct, category.DailyQuota, category.SentToday)
		},
		Options: []Option{
			{Label: LabelTimeframe, Target: StateTimeframe},
			{Label: LabelThreshold, Target: StateThreshold},
			{Label: LabelQuota, Target: StateQuota},
		},
	}
}

func describeProfile(view View) string {
	var sb strings.Builder

	sb.WriteString("👤 Profile\n")
	if view.Settings.Username != "" {
		fmt.Fprintf(&sb, "User: @%s\n", view.Settings.Username)
	}

	switch {
	case view.Settings.IsAdmin:
		sb.WriteString("Subscription: admin\n")
	case view.Entitlement != nil && view.Entitlement.ExpiresAt != nil:
		fmt.Fprintf(&sb, "Subscription until: %s\n", view.Entitlement.ExpiresAt.Format(time.DateOnly))
	}

	fmt.Fprintf(&sb, "Signals: %s", onOff(view.Settings.SignalsEnabled))
	return sb.String()
}

func onOff(enabled bool) string {
	if enabled {
		return "✅"
	}
	return "❌"
}

// ParseTimeframe accepts one of the supported timeframes
func ParseTimeframe(text string) (string, error) {
	timeframe := strings.TrimSpace(text)
	if !core.ValidTimeframe(timeframe) {
		return "", fmt.Errorf("%w: timeframe must be one of %s", core.ErrInvalidInput, strings.Join(core.Timeframes, ", "))
	}
	return timeframe, nil
}

// ParseThreshold accepts a positive percentage up to 100, comma or dot decimal
func ParseThreshold(text string) (float64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%")), ",", ".")

	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(threshold) || threshold <= 0 || threshold > core.MaxThresholdPct {
		return 0, fmt.Errorf("%w: threshold must be a number between 0 and %.0f", core.ErrInvalidInput, core.MaxThresholdPct)
	}
	return threshold, nil
}

// ParseQuota accepts an integer between 1 and 100
func ParseQuota(text string) (int, error) {
	quota, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || quota < 1 || quota > core.MaxDailyQuota {
		return 0, fmt.Errorf("%w: daily limit must be a whole number between 1 and %d", core.ErrInvalidInput, core.MaxDailyQuota)
	}
	return quota, nil
}
