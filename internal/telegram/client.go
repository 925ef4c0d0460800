package telegram

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/metrics"
	"github.com/danhigham/tipcharm/internal/tdjson"
)

const (
	// DefaultReceiveTimeout bounds a single Receive so the worker notices
	// Stop promptly.
	DefaultReceiveTimeout = time.Second

	notifyBuffer = 32
)

// MessageHandler receives accepted plain-text messages from the allowed
// sender. It runs on the worker goroutine and must not call Stop.
type MessageHandler func(chatID int64, text string)

// TransportFactory opens a fresh session transport for each Start.
type TransportFactory func() (tdjson.Transport, error)

// Options configures a Client.
type Options struct {
	AllowedBot     string
	Device         tdjson.Device
	ReceiveTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Client owns one logical session against a tdjson.Transport: it runs the
// authorization state machine, resolves the allowed bot and forwards only
// that bot's plain-text messages.
type Client struct {
	newTransport TransportFactory
	device       tdjson.Device
	timeout      time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics

	lifecycle sync.Mutex
	running   bool
	transport tdjson.Transport
	stop      chan struct{}
	done      chan struct{}
	notify    chan domain.AuthState

	// Values stored for auto-send.
	input    sync.Mutex
	phone    string
	code     string
	password string

	// Auth state and allowed sender change together.
	session sync.RWMutex
	state   domain.AuthState
	sender  domain.AllowedSender
	marker  string

	listenerMu sync.Mutex
	listener   func(domain.AuthState)

	dropLog rate.Sometimes
}

// NewClient creates a stopped Client.
func NewClient(newTransport TransportFactory, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.ReceiveTimeout
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	c := &Client{
		newTransport: newTransport,
		device:       opts.Device,
		timeout:      timeout,
		logger:       logger,
		metrics:      opts.Metrics,
		dropLog:      rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
	c.sender.Username = normalizeUsername(opts.AllowedBot)
	return c
}

// worker holds everything one run of the worker goroutine needs.
type worker struct {
	transport  tdjson.Transport
	stop       <-chan struct{}
	notify     chan domain.AuthState
	credID     string
	credSecret string
	sessionDir string
	onMessage  MessageHandler
}

// Start opens the transport and spawns the worker. Calling Start while
// running is a no-op.
func (c *Client) Start(credentialID, credentialSecret, sessionDir string, onMessage MessageHandler) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.running {
		return nil
	}

	transport, err := c.newTransport()
	if err != nil {
		return errors.Wrap(err, "open transport")
	}

	version := transport.Execute(tdjson.MustEncode(tdjson.NewGetOption("version")))
	c.logger.Info("Transport version", zap.String("reply", version))

	w := worker{
		transport:  transport,
		notify:     make(chan domain.AuthState, notifyBuffer),
		credID:     credentialID,
		credSecret: credentialSecret,
		sessionDir: sessionDir,
		onMessage:  onMessage,
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	w.stop = stop

	c.transport = transport
	c.stop = stop
	c.done = done
	c.notify = w.notify
	c.running = true

	go c.deliver(w.notify)
	go func() {
		defer close(done)
		c.run(w)
	}()

	return nil
}

// Stop signals the worker, waits for it to exit and closes the transport.
// It is safe to call repeatedly and before Start, but not from a
// MessageHandler.
func (c *Client) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.running {
		return
	}
	c.running = false

	close(c.stop)
	<-c.done
	close(c.notify)

	if err := c.transport.Close(); err != nil {
		c.logger.Warn("Close transport", zap.Error(err))
	}
	c.transport = nil
}

// Running reports whether the worker is active.
func (c *Client) Running() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.running
}

// SetOnAuthState replaces the auth state listener. The listener is called
// from a notifier goroutine, in order, never from the worker.
func (c *Client) SetOnAuthState(fn func(domain.AuthState)) {
	c.listenerMu.Lock()
	c.listener = fn
	c.listenerMu.Unlock()
}

// AuthState returns the last observed authorization state.
func (c *Client) AuthState() domain.AuthState {
	c.session.RLock()
	defer c.session.RUnlock()
	return c.state
}

// AllowedSender returns the configured bot and its resolved user id.
func (c *Client) AllowedSender() domain.AllowedSender {
	c.session.RLock()
	defer c.session.RUnlock()
	return c.sender
}

// SetAllowedBotUsername changes the allowed bot and forces re-resolution.
func (c *Client) SetAllowedBotUsername(name string) {
	c.session.Lock()
	defer c.session.Unlock()
	c.sender = domain.AllowedSender{Username: normalizeUsername(name)}
	c.marker = ""
}

// SetPhone stores a phone number sent on every WaitingPhoneNumber state.
func (c *Client) SetPhone(phone string) {
	c.input.Lock()
	c.phone = phone
	c.input.Unlock()
}

// SubmitCode stores a code sent once on the next WaitingCode state.
func (c *Client) SubmitCode(code string) {
	c.input.Lock()
	c.code = code
	c.input.Unlock()
}

// SubmitPassword stores a password sent once on the next WaitingPassword
// state.
func (c *Client) SubmitPassword(password string) {
	c.input.Lock()
	c.password = password
	c.input.Unlock()
}

// SendPhoneNow sends the phone number regardless of the current state.
func (c *Client) SendPhoneNow(phone string) {
	c.sendNow(tdjson.NewSetAuthenticationPhoneNumber(strings.TrimSpace(phone)))
}

// SendCodeNow sends the login code regardless of the current state.
func (c *Client) SendCodeNow(code string) {
	c.sendNow(tdjson.NewCheckAuthenticationCode(strings.TrimSpace(code)))
}

// SendPasswordNow sends the 2FA password regardless of the current state.
func (c *Client) SendPasswordNow(password string) {
	c.sendNow(tdjson.NewCheckAuthenticationPassword(strings.TrimSpace(password)))
}

func (c *Client) sendNow(cmd any) {
	c.lifecycle.Lock()
	t := c.transport
	c.lifecycle.Unlock()

	if t == nil {
		c.logger.Warn("Send without running client", zap.String("command", commandType(cmd)))
		return
	}
	c.logger.Debug("Send", zap.String("command", commandType(cmd)))
	t.Send(tdjson.MustEncode(cmd))
}

func (c *Client) run(w worker) {
	w.transport.Send(tdjson.MustEncode(tdjson.NewSetLogVerbosityLevel(1)))

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		raw, ok := w.transport.Receive(c.timeout)
		if !ok {
			continue
		}

		u, err := tdjson.ParseUpdate([]byte(raw))
		if err != nil {
			c.logger.Debug("Skip update", zap.Error(err))
			continue
		}
		c.metrics.UpdateReceived(u.Kind.String())
		c.handle(w, u)
	}
}

func (c *Client) handle(w worker, u tdjson.Update) {
	switch u.Kind {
	case tdjson.KindAuthorizationState:
		c.onAuthState(w, domain.ParseAuthState(u.AuthorizationState))
	case tdjson.KindError:
		c.logger.Warn("Remote error",
			zap.Int("code", u.Error.Code),
			zap.String("message", u.Error.Message),
			zap.String("extra", u.Error.Extra),
		)
	case tdjson.KindChat, tdjson.KindNewChat:
		c.onChat(*u.Chat)
	case tdjson.KindNewMessage:
		c.onMessage(w, *u.Message)
	case tdjson.KindOption:
		c.logger.Debug("Option", zap.String("value", u.Option.Value))
	case tdjson.KindOk, tdjson.KindUnknown:
	}
}

func (c *Client) onAuthState(w worker, state domain.AuthState) {
	c.session.Lock()
	c.state = state
	c.session.Unlock()

	c.logger.Info("Auth state", zap.Stringer("state", state))
	c.metrics.AuthState(state)
	c.publish(w.notify, state)

	switch state {
	case domain.AuthStateWaitingParameters:
		c.sendParameters(w)
	case domain.AuthStateWaitingPhoneNumber:
		c.input.Lock()
		phone := strings.TrimSpace(c.phone)
		c.input.Unlock()
		if phone != "" {
			w.transport.Send(tdjson.MustEncode(tdjson.NewSetAuthenticationPhoneNumber(phone)))
		}
	case domain.AuthStateWaitingCode:
		c.input.Lock()
		code := strings.TrimSpace(c.code)
		c.code = ""
		c.input.Unlock()
		if code != "" {
			w.transport.Send(tdjson.MustEncode(tdjson.NewCheckAuthenticationCode(code)))
		}
	case domain.AuthStateWaitingPassword:
		c.input.Lock()
		password := strings.TrimSpace(c.password)
		c.password = ""
		c.input.Unlock()
		if password != "" {
			w.transport.Send(tdjson.MustEncode(tdjson.NewCheckAuthenticationPassword(password)))
		}
	case domain.AuthStateReady:
		c.resolveSender(w)
	}
}

func (c *Client) sendParameters(w worker) {
	id, err := strconv.Atoi(strings.TrimSpace(w.credID))
	if err != nil || id <= 0 {
		c.logger.Error("Invalid api id, not sending parameters", zap.String("api_id", w.credID))
		return
	}
	secret := strings.TrimSpace(w.credSecret)
	if secret == "" {
		c.logger.Error("Empty api hash, not sending parameters")
		return
	}
	w.transport.Send(tdjson.MustEncode(tdjson.NewSetTdlibParameters(w.sessionDir, id, secret, c.device)))
}

func (c *Client) resolveSender(w worker) {
	c.session.Lock()
	if c.sender.Resolved() || c.sender.Username == "" {
		c.session.Unlock()
		return
	}
	c.marker = uuid.NewString()
	cmd := tdjson.NewSearchPublicChat(c.sender.Username, c.marker)
	c.session.Unlock()

	c.logger.Info("Resolve allowed bot", zap.String("username", cmd.Username), zap.String("marker", cmd.Extra))
	w.transport.Send(tdjson.MustEncode(cmd))
}

func (c *Client) onChat(chat tdjson.Chat) {
	c.session.Lock()
	defer c.session.Unlock()

	if c.marker == "" || chat.Extra != c.marker {
		return
	}
	id, ok := chat.PrivateUserID()
	if !ok {
		c.logger.Warn("Allowed bot is not a private chat", zap.Int64("chat_id", chat.ID))
		return
	}
	c.sender.UserID = id
	c.marker = ""
	c.logger.Info("Allowed bot resolved", zap.String("username", c.sender.Username), zap.Int64("user_id", id))
}

func (c *Client) onMessage(w worker, msg tdjson.Message) {
	allowed := c.AllowedSender()
	if !allowed.Resolved() {
		c.dropped("unresolved")
		return
	}
	if from, ok := msg.SenderUserID(); !ok || from != allowed.UserID {
		c.dropped("sender")
		return
	}
	text, ok := msg.PlainText()
	if !ok {
		c.dropped("content")
		return
	}

	c.metrics.MessageAccepted()
	if w.onMessage != nil {
		w.onMessage(msg.ChatID, text)
	}
}

func (c *Client) dropped(reason string) {
	c.metrics.MessageDropped(reason)
	c.dropLog.Do(func() {
		c.logger.Debug("Drop message", zap.String("reason", reason))
	})
}

// publish enqueues a state for the notifier, discarding the oldest pending
// state when the buffer is full. Only the worker sends on ch.
func (c *Client) publish(ch chan domain.AuthState, state domain.AuthState) {
	for {
		select {
		case ch <- state:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (c *Client) deliver(ch <-chan domain.AuthState) {
	for state := range ch {
		c.listenerMu.Lock()
		fn := c.listener
		c.listenerMu.Unlock()
		if fn != nil {
			fn(state)
		}
	}
}

func normalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimPrefix(name, "@")
}

func commandType(cmd any) string {
	switch v := cmd.(type) {
	case tdjson.SetAuthenticationPhoneNumber:
		return v.Type
	case tdjson.CheckAuthenticationCode:
		return v.Type
	case tdjson.CheckAuthenticationPassword:
		return v.Type
	default:
		return "unknown"
	}
}
