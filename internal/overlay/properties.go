package overlay

import (
	"github.com/danhigham/tipcharm/internal/alert"
)

// PropertyKind tells a host which widget edits a property.
type PropertyKind string

const (
	KindInfo     PropertyKind = "info"
	KindText     PropertyKind = "text"
	KindPassword PropertyKind = "password"
	KindFloat    PropertyKind = "float"
	KindInt      PropertyKind = "int"
	KindBool     PropertyKind = "bool"
	KindColor    PropertyKind = "color"
	KindPath     PropertyKind = "path"
	KindList     PropertyKind = "list"
	KindButton   PropertyKind = "button"
)

// Property describes one setting or action with its current value.
type Property struct {
	Name    string       `json:"name"`
	Label   string       `json:"label"`
	Kind    PropertyKind `json:"kind"`
	Value   any          `json:"value,omitempty"`
	Options []string     `json:"options,omitempty"`
	Min     float64      `json:"min,omitempty"`
	Max     float64      `json:"max,omitempty"`
}

// Fonts offered for the alert text.
var Fonts = []string{"Arial", "Segoe UI", "Roboto"}

// Properties lists the settings a host can show, in display order.
// Credentials are never echoed back.
func (s *Source) Properties() []Property {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	a := cfg.Alert
	tiers := a.Tiers()

	props := []Property{
		{Name: "tg_auth_status", Label: "Telegram authentication status", Kind: KindInfo, Value: s.store.Status()},
		{Name: "tg_phone", Label: "Telegram phone", Kind: KindText, Value: cfg.Telegram.Phone},
		{Name: "tg_set_phone", Label: "Set Phone", Kind: KindButton},
		{Name: "tg_code", Label: "Telegram login code", Kind: KindText},
		{Name: "tg_submit_code", Label: "Submit Code", Kind: KindButton},
		{Name: "tg_pass", Label: "Telegram 2FA password (if enabled)", Kind: KindPassword},
		{Name: "tg_submit_pass", Label: "Submit Password", Kind: KindButton},
		{Name: "tier_help", Label: "Highest tier whose threshold is met will be played.", Kind: KindInfo},
	}
	for i, t := range tiers {
		n := string(rune('1' + i))
		props = append(props,
			Property{Name: "tier" + n + "_threshold", Label: "Tier " + n + " threshold", Kind: KindFloat, Value: t.Threshold, Max: 1e9},
			Property{Name: "tier" + n + "_media", Label: "Tier " + n + " media", Kind: KindPath, Value: t.Media},
		)
	}
	props = append(props,
		Property{Name: "text_color", Label: "Tip text color", Kind: KindColor, Value: a.Text.Color},
		Property{Name: "text_size", Label: "Tip text size", Kind: KindInt, Value: a.Text.Size, Min: 16, Max: 96},
		Property{Name: "font_face", Label: "Tip font", Kind: KindList, Value: a.Text.Font, Options: Fonts},
		Property{Name: "text_outline", Label: "Text outline", Kind: KindBool, Value: a.Text.Outline},
		Property{Name: "outline_size", Label: "Outline size", Kind: KindInt, Value: a.Text.OutlineSize, Max: 10},
		Property{Name: "text_position", Label: "Text position", Kind: KindList, Value: a.Text.Position.String(),
			Options: []string{alert.PositionTop.String(), alert.PositionCenter.String(), alert.PositionBottom.String()}},
		Property{Name: "text_margin", Label: "Text margin (px)", Kind: KindInt, Value: a.Text.Margin, Max: 400},
		Property{Name: "text_fade_in", Label: "Text fade-in (sec)", Kind: KindFloat, Value: a.FadeIn, Max: 5},
		Property{Name: "text_fade_out", Label: "Text fade-out (sec)", Kind: KindFloat, Value: a.FadeOut, Max: 5},
		Property{Name: "text_template", Label: "Text template", Kind: KindText, Value: a.Template},
		Property{Name: "duration", Label: "Alert Duration (seconds)", Kind: KindFloat, Value: a.Duration, Min: 1, Max: 10},
		Property{Name: "test_alert", Label: "Test Alert", Kind: KindButton},
		Property{Name: "tg_api_id", Label: "API ID", Kind: KindPassword},
		Property{Name: "tg_api_hash", Label: "API HASH", Kind: KindPassword},
		Property{Name: "tg_save_creds", Label: "Save credentials", Kind: KindButton},
		Property{Name: "tg_restart", Label: "Restart Telegram", Kind: KindButton},
	)
	return props
}

// Snapshot is the runtime state served on /status.
type Snapshot struct {
	AuthState  string  `json:"auth_state"`
	Status     string  `json:"status"`
	AllowedBot string  `json:"allowed_bot"`
	BotUserID  int64   `json:"bot_user_id"`
	Queue      int     `json:"queue"`
	Playing    bool    `json:"playing"`
	Tier       int     `json:"tier,omitempty"`
	Remaining  float64 `json:"remaining,omitempty"`
	Played     int     `json:"played"`
}

func (s *Source) Snapshot() Snapshot {
	sender := s.client.AllowedSender()
	slot, playing := s.Playing()
	return Snapshot{
		AuthState:  s.client.AuthState().String(),
		Status:     s.store.Status(),
		AllowedBot: sender.Username,
		BotUserID:  sender.UserID,
		Queue:      s.store.Len(),
		Playing:    playing,
		Tier:       slot.Tier,
		Remaining:  slot.Remaining,
		Played:     len(s.store.History()),
	}
}
