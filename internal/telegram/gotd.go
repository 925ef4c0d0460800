package telegram

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/tdjson"
)

const gotdUpdateBuffer = 256

// GotdTransport implements tdjson.Transport on top of a gotd/td MTProto
// client. It speaks the subset of the JSON interface the Client uses.
type GotdTransport struct {
	logger *zap.Logger
	auth   *channelAuth

	updates chan string
	quit    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	api     *tg.Client
	runCtx  context.Context
}

// NewGotdTransport creates a transport that announces it is waiting for
// session parameters.
func NewGotdTransport(logger *zap.Logger) *GotdTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &GotdTransport{
		logger:  logger,
		updates: make(chan string, gotdUpdateBuffer),
		quit:    make(chan struct{}),
	}
	t.auth = newChannelAuth(t.announce)
	t.announce(domain.AuthStateWaitingParameters)
	return t
}

// GotdFactory adapts NewGotdTransport to a TransportFactory.
func GotdFactory(logger *zap.Logger) TransportFactory {
	return func() (tdjson.Transport, error) {
		return NewGotdTransport(logger), nil
	}
}

// Send handles one request asynchronously; replies arrive via Receive.
// Send runs on the reader of Receive, so its own replies never block.
func (t *GotdTransport) Send(request string) {
	cmd, err := tdjson.ParseCommand([]byte(request))
	if err != nil {
		t.logger.Warn("Bad request", zap.Error(err))
		t.reply(tdjson.NewError(400, err.Error(), ""))
		return
	}

	switch c := cmd.(type) {
	case *tdjson.SetLogVerbosityLevel:
		t.reply(tdjson.NewOk(""))
	case *tdjson.GetOption:
		t.reply(t.option(c.Name))
	case *tdjson.SetTdlibParameters:
		if err := t.start(*c); err != nil {
			t.logger.Error("Start client", zap.Error(err))
			t.reply(tdjson.NewError(400, err.Error(), ""))
		}
	case *tdjson.SetAuthenticationPhoneNumber:
		offer(t.auth.phone, c.PhoneNumber)
	case *tdjson.CheckAuthenticationCode:
		offer(t.auth.code, c.Code)
	case *tdjson.CheckAuthenticationPassword:
		offer(t.auth.password, c.Password)
	case *tdjson.SearchPublicChat:
		t.searchPublicChat(c.Username, c.Extra)
	case *tdjson.Close:
		go t.shutdown()
	case *tdjson.UnknownCommand:
		t.reply(tdjson.NewError(400, "method not supported: "+c.Type, c.Extra))
	}
}

// Receive waits up to timeout for the next update.
func (t *GotdTransport) Receive(timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-t.updates:
		return s, true
	case <-timer.C:
		return "", false
	case <-t.quit:
		return "", false
	}
}

// Execute answers synchronous requests. Only getOption is supported.
func (t *GotdTransport) Execute(request string) string {
	cmd, err := tdjson.ParseCommand([]byte(request))
	if err != nil {
		return tdjson.MustEncode(tdjson.NewError(400, err.Error(), ""))
	}
	if c, ok := cmd.(*tdjson.GetOption); ok {
		return tdjson.MustEncode(t.option(c.Name))
	}
	return tdjson.MustEncode(tdjson.NewError(400, "method not supported synchronously", ""))
}

// Close abandons the session and waits for the MTProto client to exit.
func (t *GotdTransport) Close() error {
	t.once.Do(func() { close(t.quit) })

	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (t *GotdTransport) option(name string) any {
	if name != "version" {
		return tdjson.NewError(400, "unknown option: "+name, "")
	}
	return tdjson.NewOptionValueString(gotdVersion())
}

func (t *GotdTransport) start(p tdjson.SetTdlibParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return errors.New("parameters already set")
	}
	if err := os.MkdirAll(p.DatabaseDirectory, 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		msg, ok := update.Message.(*tg.Message)
		if !ok {
			return nil
		}
		t.emit(convertMessage(msg))
		return nil
	})

	gaps := updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  t.logger.Named("gaps"),
	})

	client := telegram.NewClient(p.APIID, p.APIHash, telegram.Options{
		Logger:         t.logger,
		UpdateHandler:  gaps,
		SessionStorage: &session.FileStorage{Path: filepath.Join(p.DatabaseDirectory, "session.json")},
		Device: telegram.DeviceConfig{
			DeviceModel:    p.DeviceModel,
			SystemVersion:  p.SystemVersion,
			AppVersion:     p.ApplicationVersion,
			SystemLangCode: p.SystemLanguageCode,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.started = true
	t.cancel = cancel
	t.done = done
	t.runCtx = ctx

	go func() {
		defer close(done)

		err := client.Run(ctx, func(ctx context.Context) error {
			flow := auth.NewFlow(t.auth, auth.SendCodeOptions{})
			if err := client.Auth().IfNecessary(ctx, flow); err != nil {
				return errors.Wrap(err, "auth")
			}

			self, err := client.Self(ctx)
			if err != nil {
				return errors.Wrap(err, "get self")
			}

			api := client.API()
			t.mu.Lock()
			t.api = api
			t.mu.Unlock()

			t.announce(domain.AuthStateReady)
			return gaps.Run(ctx, api, self.ID, updates.AuthOptions{})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error("Client stopped", zap.Error(err))
			t.emit(tdjson.NewError(500, err.Error(), ""))
		}

		t.mu.Lock()
		t.api = nil
		t.mu.Unlock()
		t.announce(domain.AuthStateClosed)
	}()

	return nil
}

func (t *GotdTransport) shutdown() {
	t.announce(domain.AuthStateClosing)

	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()

	if cancel == nil {
		t.announce(domain.AuthStateClosed)
		return
	}
	// The run goroutine announces Closed on exit.
	cancel()
}

func (t *GotdTransport) searchPublicChat(username, extra string) {
	t.mu.Lock()
	api, ctx := t.api, t.runCtx
	t.mu.Unlock()

	if api == nil {
		t.reply(tdjson.NewError(400, "client not ready", extra))
		return
	}

	go func() {
		p, err := peer.DefaultResolver(api).ResolveDomain(ctx, username)
		if err != nil {
			t.logger.Warn("Resolve username", zap.String("username", username), zap.Error(err))
			t.emit(tdjson.NewError(400, err.Error(), extra))
			return
		}

		chat := tdjson.Chat{Type: tdjson.TypeChat, Extra: extra, Title: username}
		switch v := p.(type) {
		case *tg.InputPeerUser:
			chat.ID = v.UserID
			chat.ChatType = tdjson.ChatType{Type: tdjson.TypeChatTypePrivate, UserID: v.UserID}
		case *tg.InputPeerChat:
			chat.ID = v.ChatID
			chat.ChatType = tdjson.ChatType{Type: tdjson.TypeChatTypeBasicGroup, BasicGroupID: v.ChatID}
		case *tg.InputPeerChannel:
			chat.ID = v.ChannelID
			chat.ChatType = tdjson.ChatType{Type: tdjson.TypeChatTypeSupergroup, SupergroupID: v.ChannelID}
		default:
			t.emit(tdjson.NewError(400, "unsupported peer type", extra))
			return
		}
		t.emit(chat)
	}()
}

func (t *GotdTransport) announce(state domain.AuthState) {
	t.emit(tdjson.NewUpdateAuthorizationState(state.WireName()))
}

// reply queues an answer produced on the caller of Send. It drops the
// answer when the queue is full.
func (t *GotdTransport) reply(v any) {
	s, err := tdjson.Encode(v)
	if err != nil {
		t.logger.Error("Encode reply", zap.Error(err))
		return
	}
	select {
	case t.updates <- s:
	default:
		t.logger.Warn("Update queue full, dropping reply", zap.String("reply", s))
	}
}

// emit queues an update for Receive. It gives up once the transport is
// closed.
func (t *GotdTransport) emit(v any) {
	s, err := tdjson.Encode(v)
	if err != nil {
		t.logger.Error("Encode update", zap.Error(err))
		return
	}
	select {
	case t.updates <- s:
	case <-t.quit:
	}
}

// convertMessage converts a tg.Message to an updateNewMessage.
func convertMessage(msg *tg.Message) tdjson.UpdateNewMessage {
	var sender tdjson.MessageSender
	switch p := msg.FromID.(type) {
	case *tg.PeerUser:
		sender = tdjson.MessageSender{Type: tdjson.TypeMessageSenderUser, UserID: p.UserID}
	case *tg.PeerChat:
		sender = tdjson.MessageSender{Type: tdjson.TypeMessageSenderChat, ChatID: p.ChatID}
	case *tg.PeerChannel:
		sender = tdjson.MessageSender{Type: tdjson.TypeMessageSenderChat, ChatID: p.ChannelID}
	}

	var chatID int64
	switch p := msg.PeerID.(type) {
	case *tg.PeerUser:
		chatID = p.UserID
	case *tg.PeerChat:
		chatID = p.ChatID
	case *tg.PeerChannel:
		chatID = p.ChannelID
	}

	// In DMs FromID is often nil. Incoming private messages come from the
	// peer itself.
	if sender.Type == "" && !msg.Out {
		if p, ok := msg.PeerID.(*tg.PeerUser); ok {
			sender = tdjson.MessageSender{Type: tdjson.TypeMessageSenderUser, UserID: p.UserID}
		}
	}

	content := tdjson.MessageContent{
		Type: tdjson.TypeMessageText,
		Text: &tdjson.FormattedText{Type: tdjson.TypeFormattedText, Text: msg.Message},
	}
	switch msg.Media.(type) {
	case nil, *tg.MessageMediaEmpty, *tg.MessageMediaWebPage:
	case *tg.MessageMediaPhoto:
		content = tdjson.MessageContent{Type: tdjson.TypeMessagePhoto}
	case *tg.MessageMediaDocument:
		content = tdjson.MessageContent{Type: tdjson.TypeMessageDocument}
	default:
		content = tdjson.MessageContent{Type: tdjson.TypeMessageUnsupported}
	}

	return tdjson.UpdateNewMessage{
		Type: tdjson.TypeUpdateNewMessage,
		Message: tdjson.Message{
			Type:     "message",
			ID:       int64(msg.ID),
			ChatID:   chatID,
			SenderID: sender,
			Date:     int64(msg.Date),
			Content:  content,
		},
	}
}

func gotdVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "gotd (unknown)"
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/gotd/td" {
			return "gotd " + dep.Version
		}
	}
	return "gotd (unknown)"
}
