package telegram

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/tdjson"
)

// fakeTransport records sent requests and replays queued updates.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	closed  int
	execs   int
	updates chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{updates: make(chan string, 64)}
}

func (f *fakeTransport) Send(request string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, request)
}

func (f *fakeTransport) Receive(timeout time.Duration) (string, bool) {
	select {
	case s := <-f.updates:
		return s, true
	case <-time.After(timeout):
		return "", false
	}
}

func (f *fakeTransport) Execute(string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs++
	return tdjson.MustEncode(tdjson.NewOptionValueString("test"))
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) push(v any) {
	f.updates <- tdjson.MustEncode(v)
}

func (f *fakeTransport) pushRaw(s string) {
	f.updates <- s
}

func (f *fakeTransport) sentOfType(typ string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if strings.Contains(s, `"@type":"`+typ+`"`) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type received struct {
	chatID int64
	text   string
}

type harness struct {
	t         *testing.T
	client    *Client
	transport *fakeTransport
	opened    int

	mu       sync.Mutex
	messages []received
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, transport: newFakeTransport()}
	h.client = NewClient(func() (tdjson.Transport, error) {
		h.opened++
		return h.transport, nil
	}, Options{
		AllowedBot:     "@TipBot",
		ReceiveTimeout: 10 * time.Millisecond,
		Device:         tdjson.Device{Model: "test", SystemVersion: "test", ApplicationVersion: "1.0"},
	})
	t.Cleanup(h.client.Stop)
	return h
}

func (h *harness) start(id, secret string) {
	h.t.Helper()
	require.NoError(h.t, h.client.Start(id, secret, h.t.TempDir(), func(chatID int64, text string) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.messages = append(h.messages, received{chatID, text})
	}))
}

func (h *harness) received() []received {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]received(nil), h.messages...)
}

func (h *harness) state(s domain.AuthState) {
	h.transport.push(tdjson.NewUpdateAuthorizationState(s.WireName()))
}

func (h *harness) waitState(s domain.AuthState) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.client.AuthState() == s
	}, time.Second, time.Millisecond)
}

// resolve drives the client to Ready and answers its sender lookup.
func (h *harness) resolve(userID int64) {
	h.t.Helper()
	h.state(domain.AuthStateReady)

	var search string
	require.Eventually(h.t, func() bool {
		s := h.transport.sentOfType(tdjson.TypeSearchPublicChat)
		if len(s) == 0 {
			return false
		}
		search = s[len(s)-1]
		return true
	}, time.Second, time.Millisecond)

	cmd, err := tdjson.ParseCommand([]byte(search))
	require.NoError(h.t, err)
	req := cmd.(*tdjson.SearchPublicChat)
	require.Equal(h.t, "TipBot", req.Username)
	require.NotEmpty(h.t, req.Extra)

	h.transport.push(tdjson.Chat{
		Type:     tdjson.TypeChat,
		Extra:    req.Extra,
		ID:       userID,
		Title:    "TipBot",
		ChatType: tdjson.ChatType{Type: tdjson.TypeChatTypePrivate, UserID: userID},
	})
	require.Eventually(h.t, func() bool {
		return h.client.AllowedSender().UserID == userID
	}, time.Second, time.Millisecond)
}

func textMessage(chatID, from int64, text string) tdjson.UpdateNewMessage {
	return tdjson.UpdateNewMessage{
		Type: tdjson.TypeUpdateNewMessage,
		Message: tdjson.Message{
			Type:     "message",
			ChatID:   chatID,
			SenderID: tdjson.MessageSender{Type: tdjson.TypeMessageSenderUser, UserID: from},
			Content: tdjson.MessageContent{
				Type: tdjson.TypeMessageText,
				Text: &tdjson.FormattedText{Type: tdjson.TypeFormattedText, Text: text},
			},
		},
	}
}

func TestClient_StartTwiceIsNoop(t *testing.T) {
	h := newHarness(t)
	h.start("12345", "0123456789abcdef")
	h.start("12345", "0123456789abcdef")

	assert.Equal(t, 1, h.opened)
	assert.True(t, h.client.Running())
	assert.Equal(t, 1, h.transport.execs)

	require.Eventually(t, func() bool {
		return len(h.transport.sentOfType(tdjson.TypeSetLogVerbosityLevel)) == 1
	}, time.Second, time.Millisecond)
}

func TestClient_StopIdempotent(t *testing.T) {
	h := newHarness(t)
	h.client.Stop()
	assert.Equal(t, 0, h.opened)

	h.start("12345", "0123456789abcdef")
	h.client.Stop()
	h.client.Stop()

	assert.False(t, h.client.Running())
	assert.Equal(t, 1, h.transport.closeCount())
}

func TestClient_SendsParameters(t *testing.T) {
	h := newHarness(t)
	h.start("12345", "0123456789abcdef")
	h.state(domain.AuthStateWaitingParameters)

	require.Eventually(t, func() bool {
		return len(h.transport.sentOfType(tdjson.TypeSetTdlibParameters)) == 1
	}, time.Second, time.Millisecond)

	cmd, err := tdjson.ParseCommand([]byte(h.transport.sentOfType(tdjson.TypeSetTdlibParameters)[0]))
	require.NoError(t, err)
	params := cmd.(*tdjson.SetTdlibParameters)
	assert.Equal(t, 12345, params.APIID)
	assert.Equal(t, "0123456789abcdef", params.APIHash)
	assert.False(t, params.UseSecretChats)
	assert.True(t, params.UseMessageDatabase)
}

func TestClient_InvalidCredentialsSkipParameters(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"non numeric id", "abc", "0123456789abcdef"},
		{"zero id", "0", "0123456789abcdef"},
		{"empty secret", "12345", " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.start(tt.id, tt.secret)
			h.state(domain.AuthStateWaitingParameters)
			h.waitState(domain.AuthStateWaitingParameters)

			// A later update proves the earlier one was fully handled.
			h.state(domain.AuthStateClosed)
			h.waitState(domain.AuthStateClosed)
			assert.Empty(t, h.transport.sentOfType(tdjson.TypeSetTdlibParameters))
		})
	}
}

func TestClient_StoredInputs(t *testing.T) {
	h := newHarness(t)
	h.client.SetPhone(" +15550000 ")
	h.client.SubmitCode("11111")
	h.client.SubmitPassword("secret")
	h.start("12345", "0123456789abcdef")

	for i := 0; i < 2; i++ {
		h.state(domain.AuthStateWaitingPhoneNumber)
		h.state(domain.AuthStateWaitingCode)
		h.state(domain.AuthStateWaitingPassword)
	}
	h.state(domain.AuthStateClosed)
	h.waitState(domain.AuthStateClosed)

	phones := h.transport.sentOfType(tdjson.TypeSetAuthenticationPhone)
	require.Len(t, phones, 2)
	assert.Contains(t, phones[0], `"phone_number":"+15550000"`)

	assert.Len(t, h.transport.sentOfType(tdjson.TypeCheckAuthenticationCode), 1)
	assert.Len(t, h.transport.sentOfType(tdjson.TypeCheckAuthenticationPassword), 1)
}

func TestClient_SendNow(t *testing.T) {
	h := newHarness(t)

	// Not running: nothing to send to.
	h.client.SendCodeNow("1")
	assert.Equal(t, 0, h.opened)

	h.start("12345", "0123456789abcdef")
	h.client.SendPhoneNow("  +1 ")
	h.client.SendCodeNow(" 22222\n")
	h.client.SendPasswordNow("\tpw ")

	assert.Contains(t, h.transport.sentOfType(tdjson.TypeSetAuthenticationPhone)[0], `"phone_number":"+1"`)
	assert.Contains(t, h.transport.sentOfType(tdjson.TypeCheckAuthenticationCode)[0], `"code":"22222"`)
	assert.Contains(t, h.transport.sentOfType(tdjson.TypeCheckAuthenticationPassword)[0], `"password":"pw"`)
}

func TestClient_DropsBeforeResolution(t *testing.T) {
	h := newHarness(t)
	h.start("12345", "0123456789abcdef")

	h.transport.push(textMessage(42, 42, "early"))
	h.state(domain.AuthStateReady)
	h.transport.push(textMessage(42, 42, "still early"))

	// Wrong marker is ignored.
	h.transport.push(tdjson.Chat{
		Type:     tdjson.TypeChat,
		Extra:    "other",
		ID:       42,
		ChatType: tdjson.ChatType{Type: tdjson.TypeChatTypePrivate, UserID: 42},
	})
	h.state(domain.AuthStateClosed)
	h.waitState(domain.AuthStateClosed)

	assert.Empty(t, h.received())
	assert.False(t, h.client.AllowedSender().Resolved())
}

func TestClient_FiltersBySender(t *testing.T) {
	h := newHarness(t)
	h.start("12345", "0123456789abcdef")
	h.resolve(42)

	h.transport.push(textMessage(7, 7, "stranger"))
	photo := textMessage(42, 42, "")
	photo.Message.Content = tdjson.MessageContent{Type: tdjson.TypeMessagePhoto}
	h.transport.push(photo)
	h.transport.pushRaw(`{"@type":"updateNewMessage",`)
	h.transport.push(textMessage(42, 42, "hello"))

	require.Eventually(t, func() bool {
		return len(h.received()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, received{42, "hello"}, h.received()[0])
}

func TestClient_ResolvesOnce(t *testing.T) {
	h := newHarness(t)
	h.start("12345", "0123456789abcdef")
	h.resolve(42)

	h.state(domain.AuthStateReady)
	h.state(domain.AuthStateClosed)
	h.waitState(domain.AuthStateClosed)
	assert.Len(t, h.transport.sentOfType(tdjson.TypeSearchPublicChat), 1)
}

func TestClient_SetAllowedBotUsernameResets(t *testing.T) {
	h := newHarness(t)
	h.start("12345", "0123456789abcdef")
	h.resolve(42)

	h.client.SetAllowedBotUsername("  @OtherBot ")
	assert.Equal(t, domain.AllowedSender{Username: "OtherBot"}, h.client.AllowedSender())

	h.transport.push(textMessage(42, 42, "after reset"))
	h.state(domain.AuthStateClosed)
	h.waitState(domain.AuthStateClosed)
	assert.Empty(t, h.received())
}

func TestClient_ListenerSeesEveryState(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var seen []domain.AuthState
	h.client.SetOnAuthState(func(s domain.AuthState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	h.client.SetPhone("+1")
	h.start("12345", "0123456789abcdef")
	h.state(domain.AuthStateWaitingPhoneNumber)
	h.state(domain.AuthStateWaitingCode)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []domain.AuthState{domain.AuthStateWaitingPhoneNumber, domain.AuthStateWaitingCode}, seen)
	mu.Unlock()
	assert.Len(t, h.transport.sentOfType(tdjson.TypeSetAuthenticationPhone), 1)
}

func TestClient_StopFromListener(t *testing.T) {
	h := newHarness(t)

	stopped := make(chan struct{})
	h.client.SetOnAuthState(func(s domain.AuthState) {
		if s == domain.AuthStateClosed {
			h.client.Stop()
			close(stopped)
		}
	})
	h.start("12345", "0123456789abcdef")
	h.state(domain.AuthStateClosed)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop from listener did not return")
	}
	assert.False(t, h.client.Running())
}

func TestClient_PublishDropsOldest(t *testing.T) {
	c := NewClient(nil, Options{})
	ch := make(chan domain.AuthState, 2)

	c.publish(ch, domain.AuthStateWaitingParameters)
	c.publish(ch, domain.AuthStateWaitingPhoneNumber)
	c.publish(ch, domain.AuthStateWaitingCode)

	assert.Equal(t, domain.AuthStateWaitingPhoneNumber, <-ch)
	assert.Equal(t, domain.AuthStateWaitingCode, <-ch)
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t,
		"Telegram state: ready\nREADY (logged in)\nNext: Tips appear when the bot sends events.",
		StatusLine(domain.AuthStateReady),
	)
	assert.Contains(t, StatusText(domain.AuthStateError), "Unsupported")
}
