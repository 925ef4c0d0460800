package tdjson

import (
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
)

// Command type names.
const (
	TypeGetOption                   = "getOption"
	TypeSetLogVerbosityLevel        = "setLogVerbosityLevel"
	TypeSetTdlibParameters          = "setTdlibParameters"
	TypeSetAuthenticationPhone      = "setAuthenticationPhoneNumber"
	TypeCheckAuthenticationCode     = "checkAuthenticationCode"
	TypeCheckAuthenticationPassword = "checkAuthenticationPassword"
	TypeSearchPublicChat            = "searchPublicChat"
	TypeClose                       = "close"
)

type GetOption struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

func NewGetOption(name string) GetOption {
	return GetOption{Type: TypeGetOption, Name: name}
}

type SetLogVerbosityLevel struct {
	Type              string `json:"@type"`
	NewVerbosityLevel int    `json:"new_verbosity_level"`
}

func NewSetLogVerbosityLevel(level int) SetLogVerbosityLevel {
	return SetLogVerbosityLevel{Type: TypeSetLogVerbosityLevel, NewVerbosityLevel: level}
}

// SetTdlibParameters uses the inlined parameter layout (no nested
// "parameters" object).
type SetTdlibParameters struct {
	Type                   string `json:"@type"`
	UseTestDC              bool   `json:"use_test_dc"`
	DatabaseDirectory      string `json:"database_directory"`
	FilesDirectory         string `json:"files_directory"`
	DatabaseEncryptionKey  string `json:"database_encryption_key"`
	UseFileDatabase        bool   `json:"use_file_database"`
	UseChatInfoDatabase    bool   `json:"use_chat_info_database"`
	UseMessageDatabase     bool   `json:"use_message_database"`
	UseSecretChats         bool   `json:"use_secret_chats"`
	APIID                  int    `json:"api_id"`
	APIHash                string `json:"api_hash"`
	SystemLanguageCode     string `json:"system_language_code"`
	DeviceModel            string `json:"device_model"`
	SystemVersion          string `json:"system_version"`
	ApplicationVersion     string `json:"application_version"`
	EnableStorageOptimizer bool   `json:"enable_storage_optimizer"`
}

// Device describes this client to the remote side.
type Device struct {
	Model              string
	SystemVersion      string
	ApplicationVersion string
}

// NewSetTdlibParameters builds session initialization with the fixed
// feature set: no secret chats, file/chat/message databases enabled and an
// unencrypted local database.
func NewSetTdlibParameters(sessionDir string, apiID int, apiHash string, dev Device) SetTdlibParameters {
	return SetTdlibParameters{
		Type:                   TypeSetTdlibParameters,
		DatabaseDirectory:      sessionDir,
		FilesDirectory:         filepath.Join(sessionDir, "files"),
		UseFileDatabase:        true,
		UseChatInfoDatabase:    true,
		UseMessageDatabase:     true,
		APIID:                  apiID,
		APIHash:                apiHash,
		SystemLanguageCode:     "en",
		DeviceModel:            dev.Model,
		SystemVersion:          dev.SystemVersion,
		ApplicationVersion:     dev.ApplicationVersion,
		EnableStorageOptimizer: true,
	}
}

type SetAuthenticationPhoneNumber struct {
	Type        string `json:"@type"`
	PhoneNumber string `json:"phone_number"`
}

func NewSetAuthenticationPhoneNumber(phone string) SetAuthenticationPhoneNumber {
	return SetAuthenticationPhoneNumber{Type: TypeSetAuthenticationPhone, PhoneNumber: phone}
}

type CheckAuthenticationCode struct {
	Type string `json:"@type"`
	Code string `json:"code"`
}

func NewCheckAuthenticationCode(code string) CheckAuthenticationCode {
	return CheckAuthenticationCode{Type: TypeCheckAuthenticationCode, Code: code}
}

type CheckAuthenticationPassword struct {
	Type     string `json:"@type"`
	Password string `json:"password"`
}

func NewCheckAuthenticationPassword(password string) CheckAuthenticationPassword {
	return CheckAuthenticationPassword{Type: TypeCheckAuthenticationPassword, Password: password}
}

type SearchPublicChat struct {
	Type     string `json:"@type"`
	Username string `json:"username"`
	Extra    string `json:"@extra,omitempty"`
}

func NewSearchPublicChat(username, extra string) SearchPublicChat {
	return SearchPublicChat{Type: TypeSearchPublicChat, Username: username, Extra: extra}
}

type Close struct {
	Type string `json:"@type"`
}

func NewClose() Close {
	return Close{Type: TypeClose}
}

// ParseCommand decodes a request into one of the command types above.
// Unknown types are returned as an *UnknownCommand.
func ParseCommand(data []byte) (any, error) {
	h, err := peekHeader(data)
	if err != nil {
		return nil, err
	}

	var cmd any
	switch h.Type {
	case TypeGetOption:
		cmd = &GetOption{}
	case TypeSetLogVerbosityLevel:
		cmd = &SetLogVerbosityLevel{}
	case TypeSetTdlibParameters:
		cmd = &SetTdlibParameters{}
	case TypeSetAuthenticationPhone:
		cmd = &SetAuthenticationPhoneNumber{}
	case TypeCheckAuthenticationCode:
		cmd = &CheckAuthenticationCode{}
	case TypeCheckAuthenticationPassword:
		cmd = &CheckAuthenticationPassword{}
	case TypeSearchPublicChat:
		c := &SearchPublicChat{}
		if err := json.Unmarshal(data, c); err != nil {
			// "@extra" may be any JSON value; only strings are kept.
			var loose struct {
				Username string `json:"username"`
			}
			if err := json.Unmarshal(data, &loose); err != nil {
				return nil, errors.Wrap(err, "decode searchPublicChat")
			}
			c.Type, c.Username = h.Type, loose.Username
		}
		c.Extra = extraString(h.Extra)
		return c, nil
	case TypeClose:
		cmd = &Close{}
	default:
		return &UnknownCommand{Type: h.Type, Extra: extraString(h.Extra)}, nil
	}

	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, errors.Wrapf(err, "decode %s", h.Type)
	}
	return cmd, nil
}

// UnknownCommand is a request type the transport does not implement.
type UnknownCommand struct {
	Type  string
	Extra string
}
