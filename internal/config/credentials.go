package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
)

// ErrInvalidCredentials matches every credential validation failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialError carries the operator-facing reason.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string { return e.Reason }

func (e *CredentialError) Is(target error) bool { return target == ErrInvalidCredentials }

// Credentials are the Telegram application id and hash.
type Credentials struct {
	ID     string
	Secret string
	Valid  bool
	// Error explains why the credentials are not valid.
	Error string
}

// IDInt returns ID as a number; ok is false for invalid credentials.
func (c Credentials) IDInt() (int, bool) {
	if !c.Valid {
		return 0, false
	}
	id, err := strconv.Atoi(c.ID)
	return id, err == nil
}

// CredentialStore persists credentials as {"api_id": "...", "api_hash": "..."}.
type CredentialStore struct {
	Path string
}

type credentialFile struct {
	APIID   string `json:"api_id"`
	APIHash string `json:"api_hash"`
}

// ValidateCredentials checks that id is digits only and secret is a hex
// string of at least 16 characters.
func ValidateCredentials(id, secret string) error {
	if !isDigits(id) {
		return &CredentialError{Reason: "Telegram api_id must be digits only.\n" +
			"Get it from: my.telegram.org → API development tools → App api_id."}
	}
	if !isHex(secret) {
		return &CredentialError{Reason: "Telegram api_hash must be a hex string.\n" +
			"Get it from: my.telegram.org → API development tools → App api_hash."}
	}
	return nil
}

// Load never fails; problems are reported through Valid and Error.
func (s CredentialStore) Load() Credentials {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		name := filepath.Base(s.Path)
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{Error: name + " not found. Please enter Telegram API ID/HASH and save."}
		}
		return Credentials{Error: name + " unreadable: " + err.Error()}
	}

	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Credentials{Error: filepath.Base(s.Path) + " parse error: " + err.Error()}
	}

	out := Credentials{ID: f.APIID, Secret: f.APIHash}
	if err := ValidateCredentials(f.APIID, f.APIHash); err != nil {
		out.Error = filepath.Base(s.Path) + " invalid: " + err.Error()
		return out
	}
	out.Valid = true
	return out
}

// Save validates and writes the credentials, creating the directory.
func (s CredentialStore) Save(id, secret string) error {
	id, secret = strings.TrimSpace(id), strings.TrimSpace(secret)
	if err := ValidateCredentials(id, secret); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return errors.Wrap(err, "create credentials dir")
	}

	data, err := json.MarshalIndent(credentialFile{APIID: id, APIHash: secret}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return errors.Wrap(err, "write credentials")
	}
	return nil
}

// Resolve loads the stored credentials, falling back to the ones in the
// config file when the store has none that are valid.
func (s CredentialStore) Resolve(tc TelegramConfig) Credentials {
	creds := s.Load()
	if creds.Valid || tc.APIID == 0 {
		return creds
	}
	id := strconv.Itoa(tc.APIID)
	if err := ValidateCredentials(id, tc.APIHash); err != nil {
		return Credentials{ID: id, Secret: tc.APIHash, Error: "config invalid: " + err.Error()}
	}
	return Credentials{ID: id, Secret: tc.APIHash, Valid: true}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	if len(s) < 16 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
