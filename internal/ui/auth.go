package ui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

type authStage int

const (
	authPhone authStage = iota
	authCode
	authPassword
	authAPIID
	authAPIHash
)

func (s authStage) title() string {
	switch s {
	case authCode:
		return " Enter Verification Code "
	case authPassword:
		return " Enter 2FA Password "
	case authAPIID:
		return " Telegram API ID "
	case authAPIHash:
		return " Telegram API HASH "
	default:
		return " Enter Phone Number "
	}
}

func (s authStage) hint() string {
	switch s {
	case authAPIID, authAPIHash:
		return "Create an app at my.telegram.org → API development tools."
	case authPassword:
		return "Only needed when two-step verification is enabled."
	default:
		return ""
	}
}

// AuthModel is the modal that collects login and credential input.
type AuthModel struct {
	input   textinput.Model
	stage   authStage
	apiID   string
	visible bool
	width   int
	height  int
}

func NewAuthModel() AuthModel {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.SetWidth(36)
	return AuthModel{input: ti}
}

func (m AuthModel) IsVisible() bool {
	return m.visible
}

// Show opens the modal for stage with an empty field.
func (m AuthModel) Show(stage authStage) (AuthModel, tea.Cmd) {
	m.stage = stage
	m.visible = true
	if stage != authAPIHash {
		m.apiID = ""
	}

	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal
	switch stage {
	case authPhone:
		m.input.Placeholder = "+15551234567"
	case authCode:
		m.input.Placeholder = "12345"
	case authPassword:
		m.input.Placeholder = "password"
		m.input.EchoMode = textinput.EchoPassword
	case authAPIID:
		m.input.Placeholder = "api_id"
		m.input.EchoMode = textinput.EchoPassword
	case authAPIHash:
		m.input.Placeholder = "api_hash"
		m.input.EchoMode = textinput.EchoPassword
	}
	return m, m.input.Focus()
}

func (m AuthModel) Hide() AuthModel {
	m.visible = false
	m.input.Blur()
	return m
}

func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m.Hide(), nil
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}
			if m.stage == authAPIID {
				m, cmd := m.Show(authAPIHash)
				m.apiID = value
				return m, cmd
			}
			submit := authSubmitMsg{stage: m.stage, value: value, apiID: m.apiID}
			m = m.Hide()
			return m, func() tea.Msg { return submit }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m AuthModel) SetSize(w, h int) AuthModel {
	m.width = w
	m.height = h
	return m
}

func (m AuthModel) View() string {
	if !m.visible {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(highlightColor)
	body := titleStyle.Render(m.stage.title()) + "\n\n" + m.input.View()
	if hint := m.stage.hint(); hint != "" {
		body += "\n\n" + timeStyle.Render(hint)
	}
	body += "\n\n" + timeStyle.Render("enter submit • esc cancel")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForegroundBlend(rainbowBlend...).
		Padding(1, 2).
		Width(50).
		Render(body)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
