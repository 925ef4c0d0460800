package ui

import (
	"time"

	"github.com/danhigham/tipcharm/internal/domain"
)

// StoreUpdatedMsg signals that the store state has changed.
type StoreUpdatedMsg struct{}

// tickMsg drives alert playback.
type tickMsg struct {
	at time.Time
}

// SplashDoneMsg signals that the splash screen timeout has elapsed.
type SplashDoneMsg struct{}

// authSubmitMsg is emitted when the user submits the auth modal.
type authSubmitMsg struct {
	stage authStage
	value string
	// apiID is set with the authAPIHash stage.
	apiID string
}

// actionDoneMsg reports the result of an operator action run off the
// event loop.
type actionDoneMsg struct {
	action string
	err    error
}

// authPrompt returns the modal stage that answers st, if any.
func authPrompt(st domain.AuthState) (authStage, bool) {
	switch st {
	case domain.AuthStateWaitingPhoneNumber:
		return authPhone, true
	case domain.AuthStateWaitingCode:
		return authCode, true
	case domain.AuthStateWaitingPassword:
		return authPassword, true
	}
	return 0, false
}
