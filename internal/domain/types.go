// Package domain holds the types shared by the tip pipeline.
package domain

import "github.com/shopspring/decimal"

// TipEvent is one tip notification extracted from a bot message.
type TipEvent struct {
	Sender        string
	AmountDisplay string          // e.g. "0.200"
	Amount        decimal.Decimal // numeric value of AmountDisplay
	Symbol        string
	Message       string
	TimestampMS   int64
	DedupeKey     string
}

// AllowedSender is the single account whose messages are trusted.
// UserID <= 0 means unresolved and every message is dropped.
type AllowedSender struct {
	Username string
	UserID   int64
}

// Resolved reports whether the sender id is known.
func (s AllowedSender) Resolved() bool {
	return s.UserID > 0
}

type AuthState int

const (
	AuthStateUninitialized AuthState = iota
	AuthStateWaitingParameters
	AuthStateWaitingPhoneNumber
	AuthStateWaitingCode
	AuthStateWaitingPassword
	AuthStateReady
	AuthStateClosing
	AuthStateClosed
	AuthStateError
)

var authStateNames = map[AuthState]string{
	AuthStateUninitialized:      "",
	AuthStateWaitingParameters:  "authorizationStateWaitTdlibParameters",
	AuthStateWaitingPhoneNumber: "authorizationStateWaitPhoneNumber",
	AuthStateWaitingCode:        "authorizationStateWaitCode",
	AuthStateWaitingPassword:    "authorizationStateWaitPassword",
	AuthStateReady:              "authorizationStateReady",
	AuthStateClosing:            "authorizationStateClosing",
	AuthStateClosed:             "authorizationStateClosed",
}

// ParseAuthState maps a remote authorization state name onto AuthState.
// Logging out is treated as closing; login paths this client cannot
// complete (email, QR confirmation, registration) map to AuthStateError.
func ParseAuthState(name string) AuthState {
	switch name {
	case "":
		return AuthStateUninitialized
	case "authorizationStateLoggingOut":
		return AuthStateClosing
	}
	for st, n := range authStateNames {
		if n == name {
			return st
		}
	}
	return AuthStateError
}

// WireName returns the remote protocol name of the state.
func (s AuthState) WireName() string {
	return authStateNames[s]
}

func (s AuthState) String() string {
	switch s {
	case AuthStateUninitialized:
		return "uninitialized"
	case AuthStateWaitingParameters:
		return "waiting_parameters"
	case AuthStateWaitingPhoneNumber:
		return "waiting_phone_number"
	case AuthStateWaitingCode:
		return "waiting_code"
	case AuthStateWaitingPassword:
		return "waiting_password"
	case AuthStateReady:
		return "ready"
	case AuthStateClosing:
		return "closing"
	case AuthStateClosed:
		return "closed"
	default:
		return "error"
	}
}
