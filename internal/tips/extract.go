// Package tips turns bot chat messages into tip events.
package tips

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/danhigham/tipcharm/internal/domain"
)

const (
	DefaultMarker    = "#EVENT"
	DefaultEventType = "TWICH_TIP"
	DefaultSymbol    = "TWICH"

	// MaxMessageRunes bounds the free-text part of an alert.
	MaxMessageRunes = 140
)

// Parser extracts tip events embedded in free-form text as
// "<marker> ... {json}".
type Parser struct {
	Marker    string
	EventType string
	Symbol    string
}

// DefaultParser returns a Parser with the stock marker, type and symbol.
func DefaultParser() Parser {
	return Parser{
		Marker:    DefaultMarker,
		EventType: DefaultEventType,
		Symbol:    DefaultSymbol,
	}
}

// Extract parses text with the default parser.
func Extract(text string) (domain.TipEvent, bool) {
	return DefaultParser().Parse(text)
}

type payload struct {
	Type         json.RawMessage `json:"type"`
	FromUsername json.RawMessage `json:"from_username"`
	Message      json.RawMessage `json:"message"`
	TS           json.RawMessage `json:"ts"`
	AmountTwits  json.RawMessage `json:"amount_twits"`
}

// Parse returns the tip event embedded in text, if any. Extraction is best
// effort: anything malformed yields false rather than an error.
func (p Parser) Parse(text string) (domain.TipEvent, bool) {
	raw, ok := locatePayload(text, p.marker())
	if !ok {
		return domain.TipEvent{}, false
	}

	var pl payload
	if err := json.Unmarshal([]byte(raw), &pl); err != nil {
		return domain.TipEvent{}, false
	}

	if evType, ok := rawString(pl.Type); !ok || evType != p.eventType() {
		return domain.TipEvent{}, false
	}

	sender, _ := rawString(pl.FromUsername)
	message, _ := rawString(pl.Message)
	ts, _ := rawInt64(pl.TS)
	amountRaw, ok := rawNumeric(pl.AmountTwits)
	if !ok {
		amountRaw = "0"
	}

	display, amount := ParseAmount(amountRaw)

	return domain.TipEvent{
		Sender:        sender,
		AmountDisplay: display,
		Amount:        amount,
		Symbol:        p.symbol(),
		Message:       truncateRunes(message, MaxMessageRunes),
		TimestampMS:   ts,
		DedupeKey:     DedupeKey(ts, sender, amountRaw),
	}, true
}

// DedupeKey builds "<ts>|<sender>|<raw amount>".
func DedupeKey(ts int64, sender, rawAmount string) string {
	return strconv.FormatInt(ts, 10) + "|" + sender + "|" + rawAmount
}

// TestEvent is the event enqueued by the operator "test alert" action.
func TestEvent() domain.TipEvent {
	display, amount := ParseAmount("12500000000")
	return domain.TipEvent{
		Sender:        "tester",
		AmountDisplay: display,
		Amount:        amount,
		Symbol:        DefaultSymbol,
		Message:       "Test tip message",
		DedupeKey:     "test",
	}
}

// locatePayload returns the first brace-balanced object after marker.
// Braces inside JSON strings are counted too.
func locatePayload(text, marker string) (string, bool) {
	at := strings.Index(text, marker)
	if at < 0 {
		return "", false
	}
	open := strings.IndexByte(text[at+len(marker):], '{')
	if open < 0 {
		return "", false
	}
	open += at + len(marker)

	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[open : i+1], true
			}
		}
	}
	return "", false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// rawNumeric accepts a JSON string or number and returns its text.
func rawNumeric(raw json.RawMessage) (string, bool) {
	if s, ok := rawString(raw); ok {
		return s, true
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

func rawInt64(raw json.RawMessage) (int64, bool) {
	s, ok := rawNumeric(raw)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (p Parser) marker() string {
	if p.Marker == "" {
		return DefaultMarker
	}
	return p.Marker
}

func (p Parser) eventType() string {
	if p.EventType == "" {
		return DefaultEventType
	}
	return p.EventType
}

func (p Parser) symbol() string {
	if p.Symbol == "" {
		return DefaultSymbol
	}
	return p.Symbol
}
