package overlay

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/tipcharm/internal/alert"
	"github.com/danhigham/tipcharm/internal/config"
	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/tdjson"
	"github.com/danhigham/tipcharm/internal/telegram"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	updates chan string
}

func (f *fakeTransport) Send(request string) {
	f.mu.Lock()
	f.sent = append(f.sent, request)
	f.mu.Unlock()
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
	return tdjson.MustEncode(tdjson.NewOptionValueString("test"))
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) state(s domain.AuthState) {
	f.updates <- tdjson.MustEncode(tdjson.NewUpdateAuthorizationState(s.WireName()))
}

func (f *fakeTransport) sentOfType(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if strings.Contains(s, `"@type":"`+typ+`"`) {
			n++
		}
	}
	return n
}

type harness struct {
	t         *testing.T
	source    *Source
	transport *fakeTransport
	opened    int
	cfg       *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Telegram.ReceiveTimeout = 20 * time.Millisecond

	h := &harness{t: t, cfg: &cfg, transport: &fakeTransport{updates: make(chan string, 16)}}
	h.source = New(Options{
		Config: &cfg,
		Transport: func() (tdjson.Transport, error) {
			h.opened++
			return h.transport, nil
		},
	})
	t.Cleanup(h.source.Destroy)
	return h
}

func (h *harness) saveCredentials() {
	store := config.CredentialStore{Path: h.cfg.CredentialsPath}
	require.NoError(h.t, store.Save("12345", "0123456789abcdef"))
}

func (h *harness) waitState(s domain.AuthState) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.source.AuthState() == s
	}, 2*time.Second, 5*time.Millisecond)
}

func tipText(ts int64, sender string) string {
	return `#EVENT {"type":"TWICH_TIP","from_username":"` + sender +
		`","message":"gg","ts":` + strconv.FormatInt(ts, 10) + `,"amount_twits":"10500000000"}`
}

func TestSource_OnMessageQueuesAndDedupes(t *testing.T) {
	h := newHarness(t)
	store := h.source.Store()

	h.source.onMessage(1, tipText(1700000000000, "alice"))
	h.source.onMessage(1, tipText(1700000000000, "alice"))
	assert.Equal(t, 1, store.Len())

	h.source.onMessage(1, tipText(1700000000001, "alice"))
	assert.Equal(t, 2, store.Len())

	// Events without a timestamp are never deduplicated.
	h.source.onMessage(1, tipText(0, "bob"))
	h.source.onMessage(1, tipText(0, "bob"))
	assert.Equal(t, 4, store.Len())

	h.source.onMessage(1, "just chatting")
	assert.Equal(t, 4, store.Len())

	ev, ok := store.Pop()
	require.True(t, ok)
	assert.Equal(t, "alice", ev.Sender)
	assert.Equal(t, "10.500", ev.AmountDisplay)
	assert.Equal(t, "gg", ev.Message)
}

func TestSource_TickPlaysAndRecordsHistory(t *testing.T) {
	h := newHarness(t)
	h.source.TestAlert()

	h.source.Tick(0.05)
	slot, playing := h.source.Playing()
	require.True(t, playing)
	assert.Equal(t, "tester", slot.Event.Sender)
	// 12.5 meets tier2 but no media is configured.
	assert.Equal(t, 0, slot.Tier)

	history := h.source.Store().History()
	require.Len(t, history, 1)
	assert.Equal(t, "tester", history[0].Event.Sender)

	h.source.Tick(h.cfg.Alert.Duration)
	_, playing = h.source.Playing()
	assert.False(t, playing)
}

func TestSource_SizeDefaults(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, alert.DefaultWidth, h.source.Width())
	assert.Equal(t, alert.DefaultHeight, h.source.Height())
}

func TestSource_StartClientWithoutCredentials(t *testing.T) {
	h := newHarness(t)

	err := h.source.StartClient()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidCredentials))
	assert.Equal(t, telegram.StatusNoCredentials, h.source.Store().Status())
	assert.Equal(t, 0, h.opened)
}

func TestSource_SaveCredentialsInvalid(t *testing.T) {
	h := newHarness(t)

	err := h.source.SaveCredentials("abc", "0123456789abcdef")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(h.source.Store().Status(), telegram.StatusCredentialsBad))
	assert.Equal(t, 0, h.opened)
}

func TestSource_SaveCredentialsStartsClient(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.source.SaveCredentials("12345", "0123456789abcdef"))
	assert.Equal(t, 1, h.opened)

	h.transport.state(domain.AuthStateWaitingParameters)
	require.Eventually(t, func() bool {
		return h.transport.sentOfType(tdjson.TypeSetTdlibParameters) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Starting again while running does not reopen the transport.
	require.NoError(t, h.source.StartClient())
	assert.Equal(t, 1, h.opened)
}

func TestSource_SubmitSendsOrStores(t *testing.T) {
	h := newHarness(t)
	h.saveCredentials()
	require.NoError(t, h.source.StartClient())

	h.transport.state(domain.AuthStateWaitingCode)
	h.waitState(domain.AuthStateWaitingCode)

	h.source.SubmitCode(" 12345 ")
	assert.Equal(t, 1, h.transport.sentOfType(tdjson.TypeCheckAuthenticationCode))
	assert.Contains(t, h.source.Store().Status(), "Waiting for login code")

	// Not waiting for a password yet: stored and sent on the prompt.
	h.source.SubmitPassword("hunter2")
	assert.Equal(t, 0, h.transport.sentOfType(tdjson.TypeCheckAuthenticationPassword))

	h.transport.state(domain.AuthStateWaitingPassword)
	require.Eventually(t, func() bool {
		return h.transport.sentOfType(tdjson.TypeCheckAuthenticationPassword) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSource_AuthStateUpdatesStatus(t *testing.T) {
	h := newHarness(t)
	h.saveCredentials()

	var got []domain.AuthState
	var mu sync.Mutex
	h.source.onAuth = func(s domain.AuthState) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}
	require.NoError(t, h.source.StartClient())

	h.transport.state(domain.AuthStateWaitingPhoneNumber)
	require.Eventually(t, func() bool {
		return h.source.Store().GetAuthState() == domain.AuthStateWaitingPhoneNumber
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, telegram.StatusLine(domain.AuthStateWaitingPhoneNumber), h.source.Store().Status())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSource_UpdateAppliesAlertConfig(t *testing.T) {
	h := newHarness(t)

	cfg := *h.cfg
	cfg.Alert.Tier2.Media = filepath.Join(t.TempDir(), "big.webm")
	h.source.Update(&cfg)

	h.source.TestAlert()
	h.source.Tick(0.05)
	slot, playing := h.source.Playing()
	require.True(t, playing)
	assert.Equal(t, 2, slot.Tier)
	assert.Equal(t, cfg.Alert.Tier2.Media, slot.Media)
}

func TestSource_Properties(t *testing.T) {
	h := newHarness(t)
	props := h.source.Properties()

	byName := map[string]Property{}
	for _, p := range props {
		byName[p.Name] = p
	}
	assert.Equal(t, 10.0, byName["tier2_threshold"].Value)
	assert.Equal(t, "top", byName["text_position"].Value)
	assert.Equal(t, KindButton, byName["test_alert"].Kind)
	assert.Nil(t, byName["tg_api_hash"].Value)
}
