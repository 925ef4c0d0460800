// Package tdjson implements the TDLib-style JSON interface used between the
// protocol client and its transport: every object carries an "@type"
// discriminator and requests may carry an opaque "@extra" that is echoed
// back on the reply.
package tdjson

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
)

// Transport is the JSON send/receive surface of a remote session.
//
// Send and Execute may be called from any goroutine. Receive is called from
// a single worker goroutine and returns false when nothing arrived within
// timeout.
type Transport interface {
	Send(request string)
	Receive(timeout time.Duration) (string, bool)
	// Execute runs a request synchronously and returns its reply.
	Execute(request string) string
	Close() error
}

// Encode marshals an object into its single-line wire form.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encode")
	}
	return string(b), nil
}

// MustEncode is Encode for values built from the types in this package,
// which always marshal.
func MustEncode(v any) string {
	s, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return s
}

type header struct {
	Type  string          `json:"@type"`
	Extra json.RawMessage `json:"@extra"`
}

func peekHeader(data []byte) (header, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return header{}, errors.Wrap(err, "decode header")
	}
	if h.Type == "" {
		return header{}, errors.New("missing @type")
	}
	return h, nil
}

// extraString returns the "@extra" value when it is a JSON string.
func extraString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
