package tdjson

import (
	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
)

// Update and object type names.
const (
	TypeError                    = "error"
	TypeOk                       = "ok"
	TypeOptionValueString        = "optionValueString"
	TypeUpdateAuthorizationState = "updateAuthorizationState"
	TypeChat                     = "chat"
	TypeUpdateNewChat            = "updateNewChat"
	TypeUpdateNewMessage         = "updateNewMessage"

	TypeChatTypePrivate    = "chatTypePrivate"
	TypeChatTypeBasicGroup = "chatTypeBasicGroup"
	TypeChatTypeSupergroup = "chatTypeSupergroup"

	TypeMessageSenderUser = "messageSenderUser"
	TypeMessageSenderChat = "messageSenderChat"

	TypeMessageText        = "messageText"
	TypeMessagePhoto       = "messagePhoto"
	TypeMessageDocument    = "messageDocument"
	TypeMessageUnsupported = "messageUnsupported"
	TypeFormattedText      = "formattedText"
)

// Kind is the closed set of update classes the client reacts to.
type Kind int

const (
	KindUnknown Kind = iota
	KindError
	KindOk
	KindOption
	KindAuthorizationState
	KindChat
	KindNewChat
	KindNewMessage
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindOk:
		return "ok"
	case KindOption:
		return "option"
	case KindAuthorizationState:
		return "authorization_state"
	case KindChat:
		return "chat"
	case KindNewChat:
		return "new_chat"
	case KindNewMessage:
		return "new_message"
	default:
		return "unknown"
	}
}

type Error struct {
	Type    string `json:"@type"`
	Extra   string `json:"@extra,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewError(code int, message, extra string) Error {
	return Error{Type: TypeError, Code: code, Message: message, Extra: extra}
}

type Ok struct {
	Type  string `json:"@type"`
	Extra string `json:"@extra,omitempty"`
}

func NewOk(extra string) Ok {
	return Ok{Type: TypeOk, Extra: extra}
}

type OptionValueString struct {
	Type  string `json:"@type"`
	Value string `json:"value"`
}

func NewOptionValueString(v string) OptionValueString {
	return OptionValueString{Type: TypeOptionValueString, Value: v}
}

type AuthorizationState struct {
	Type string `json:"@type"`
}

type UpdateAuthorizationState struct {
	Type               string             `json:"@type"`
	AuthorizationState AuthorizationState `json:"authorization_state"`
}

func NewUpdateAuthorizationState(state string) UpdateAuthorizationState {
	return UpdateAuthorizationState{
		Type:               TypeUpdateAuthorizationState,
		AuthorizationState: AuthorizationState{Type: state},
	}
}

type ChatType struct {
	Type         string `json:"@type"`
	UserID       int64  `json:"user_id,omitempty"`
	BasicGroupID int64  `json:"basic_group_id,omitempty"`
	SupergroupID int64  `json:"supergroup_id,omitempty"`
}

type Chat struct {
	Type     string   `json:"@type"`
	Extra    string   `json:"@extra,omitempty"`
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	ChatType ChatType `json:"type"`
}

// PrivateUserID returns the peer user id of a private chat.
func (c Chat) PrivateUserID() (int64, bool) {
	if c.ChatType.Type != TypeChatTypePrivate || c.ChatType.UserID <= 0 {
		return 0, false
	}
	return c.ChatType.UserID, true
}

type UpdateNewChat struct {
	Type string `json:"@type"`
	Chat Chat   `json:"chat"`
}

type MessageSender struct {
	Type   string `json:"@type"`
	UserID int64  `json:"user_id,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type FormattedText struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type MessageContent struct {
	Type string         `json:"@type"`
	Text *FormattedText `json:"text,omitempty"`
}

type Message struct {
	Type     string         `json:"@type"`
	ID       int64          `json:"id"`
	ChatID   int64          `json:"chat_id"`
	SenderID MessageSender  `json:"sender_id"`
	Date     int64          `json:"date"`
	Content  MessageContent `json:"content"`
}

// SenderUserID returns the sending user when the sender is a user.
func (m Message) SenderUserID() (int64, bool) {
	if m.SenderID.Type != TypeMessageSenderUser {
		return 0, false
	}
	return m.SenderID.UserID, true
}

// PlainText returns the text of a messageText content.
func (m Message) PlainText() (string, bool) {
	if m.Content.Type != TypeMessageText || m.Content.Text == nil {
		return "", false
	}
	return m.Content.Text.Text, true
}

type UpdateNewMessage struct {
	Type    string  `json:"@type"`
	Message Message `json:"message"`
}

// Update is a received object classified by Kind. Exactly the field
// matching Kind is set.
type Update struct {
	Kind  Kind
	Type  string
	Extra string

	Error              *Error
	Option             *OptionValueString
	AuthorizationState string
	Chat               *Chat
	Message            *Message
}

// ParseUpdate decodes the "@type" discriminator once and then the matching
// payload.
func ParseUpdate(data []byte) (Update, error) {
	h, err := peekHeader(data)
	if err != nil {
		return Update{}, err
	}
	u := Update{Type: h.Type, Extra: extraString(h.Extra)}

	switch h.Type {
	case TypeError:
		var e struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &e); err != nil {
			return Update{}, errors.Wrap(err, "decode error")
		}
		u.Kind = KindError
		u.Error = &Error{Type: TypeError, Extra: u.Extra, Code: e.Code, Message: e.Message}
	case TypeOk:
		u.Kind = KindOk
	case TypeOptionValueString:
		var o OptionValueString
		if err := json.Unmarshal(data, &o); err != nil {
			return Update{}, errors.Wrap(err, "decode option")
		}
		u.Kind = KindOption
		u.Option = &o
	case TypeUpdateAuthorizationState:
		var a UpdateAuthorizationState
		if err := json.Unmarshal(data, &a); err != nil {
			return Update{}, errors.Wrap(err, "decode authorization state")
		}
		if a.AuthorizationState.Type == "" {
			return Update{}, errors.New("authorization state without @type")
		}
		u.Kind = KindAuthorizationState
		u.AuthorizationState = a.AuthorizationState.Type
	case TypeChat:
		chat, err := decodeChat(data)
		if err != nil {
			return Update{}, err
		}
		u.Kind = KindChat
		u.Chat = &chat
	case TypeUpdateNewChat:
		var wrapper struct {
			Chat json.RawMessage `json:"chat"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return Update{}, errors.Wrap(err, "decode updateNewChat")
		}
		if len(wrapper.Chat) == 0 {
			return Update{}, errors.New("updateNewChat without chat")
		}
		chat, err := decodeChat(wrapper.Chat)
		if err != nil {
			return Update{}, err
		}
		if chat.Extra == "" {
			chat.Extra = u.Extra
		}
		u.Kind = KindNewChat
		u.Chat = &chat
	case TypeUpdateNewMessage:
		var m UpdateNewMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Update{}, errors.Wrap(err, "decode updateNewMessage")
		}
		u.Kind = KindNewMessage
		u.Message = &m.Message
	default:
		u.Kind = KindUnknown
	}
	return u, nil
}

func decodeChat(data []byte) (Chat, error) {
	var c struct {
		ID       int64           `json:"id"`
		Title    string          `json:"title"`
		ChatType ChatType        `json:"type"`
		Extra    json.RawMessage `json:"@extra"`
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Chat{}, errors.Wrap(err, "decode chat")
	}
	return Chat{
		Type:     TypeChat,
		Extra:    extraString(c.Extra),
		ID:       c.ID,
		Title:    c.Title,
		ChatType: c.ChatType,
	}, nil
}
