package telegram

import "github.com/danhigham/tipcharm/internal/domain"

// StatusText is the operator guidance for an auth state: what happened and
// what to do next.
func StatusText(state domain.AuthState) string {
	switch state {
	case domain.AuthStateUninitialized:
		return "No auth state yet\nNext: Wait for the client to start."
	case domain.AuthStateWaitingParameters:
		return "Initializing Telegram…\nNext: Wait a moment."
	case domain.AuthStateWaitingPhoneNumber:
		return "Waiting for phone number\nNext: Enter your phone number and submit it."
	case domain.AuthStateWaitingCode:
		return "Waiting for login code\nNext: Enter the code Telegram sent you and submit it."
	case domain.AuthStateWaitingPassword:
		return "Waiting for 2FA password\nNext: Enter your password and submit it."
	case domain.AuthStateReady:
		return "READY (logged in)\nNext: Tips appear when the bot sends events."
	case domain.AuthStateClosing:
		return "Telegram closing…"
	case domain.AuthStateClosed:
		return "Telegram closed\nNext: Restart the client."
	default:
		return "Unsupported login step\nNext: Finish login in another Telegram app, then restart."
	}
}

// StatusLine prefixes StatusText with the state name.
func StatusLine(state domain.AuthState) string {
	return "Telegram state: " + state.String() + "\n" + StatusText(state)
}

// Status lines published by operator actions outside the auth state machine.
const (
	StatusStarting       = "Starting Telegram…"
	StatusNoCredentials  = "Telegram NOT started\nReason: Missing/invalid API credentials.\nNext: Enter API ID/HASH and save credentials."
	StatusCredentialsBad = "Credentials NOT saved\nReason: "
)
