// Package overlay is the alert source a host drives: it owns the Telegram
// client, turns accepted messages into queued tip events and plays them
// through the alert scheduler on each host tick.
package overlay

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/danhigham/tipcharm/internal/alert"
	"github.com/danhigham/tipcharm/internal/config"
	"github.com/danhigham/tipcharm/internal/dedupe"
	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/metrics"
	"github.com/danhigham/tipcharm/internal/state"
	"github.com/danhigham/tipcharm/internal/tdjson"
	"github.com/danhigham/tipcharm/internal/telegram"
	"github.com/danhigham/tipcharm/internal/tips"
)

// Version is reported to Telegram as the application version.
var Version = "dev"

const dedupeTimeout = 2 * time.Second

type Options struct {
	Config    *config.Config
	Transport telegram.TransportFactory
	Store     *state.Store
	Media     alert.Media
	Text      alert.Text
	Dedupe    dedupe.Store
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// OnAuthState is called after the store is updated, from the client's
	// notifier goroutine.
	OnAuthState func(domain.AuthState)
}

// Source is safe for concurrent use. Tick, Update and the size queries
// share one lock; operator actions may block while the client restarts.
type Source struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *state.Store
	dedupe  dedupe.Store
	client  *telegram.Client
	onAuth  func(domain.AuthState)

	mu     sync.Mutex
	cfg    config.Config
	parser tips.Parser
	sched  *alert.Scheduler
}

// New creates the source. The client is not started; call StartClient.
func New(opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		def := config.Default(config.Dir())
		cfg = &def
	}
	store := opts.Store
	if store == nil {
		store = state.New(nil)
	}
	media := opts.Media
	if media == nil {
		media = &alert.LogMedia{Logger: logger.Named("media")}
	}
	text := opts.Text
	if text == nil {
		text = &alert.LogText{Logger: logger.Named("text")}
	}
	seen := opts.Dedupe
	if seen == nil {
		seen = dedupe.NewMemory(dedupe.DefaultCapacity, dedupe.DefaultTTL)
	}
	factory := opts.Transport
	if factory == nil {
		factory = telegram.GotdFactory(logger.Named("gotd"))
	}

	s := &Source{
		logger:  logger,
		metrics: opts.Metrics,
		store:   store,
		dedupe:  seen,
		onAuth:  opts.OnAuthState,
		cfg:     *cfg,
		parser:  cfg.Event.Parser(),
	}

	s.client = telegram.NewClient(factory, telegram.Options{
		AllowedBot: cfg.Telegram.AllowedBot,
		Device: tdjson.Device{
			Model:              cfg.Telegram.DeviceModel,
			SystemVersion:      runtime.GOOS,
			ApplicationVersion: Version,
		},
		ReceiveTimeout: cfg.Telegram.ReceiveTimeout,
		Logger:         logger.Named("telegram"),
		Metrics:        opts.Metrics,
	})
	s.client.SetOnAuthState(s.onAuthState)

	s.sched = alert.NewScheduler(cfg.Alert, store, media, text,
		alert.WithLogger(logger.Named("alert")),
		alert.OnPlay(s.played),
	)
	return s
}

// StartClient loads credentials and starts the client. Missing or invalid
// credentials publish a status line and return an error matching
// config.ErrInvalidCredentials; the client stays stopped.
func (s *Source) StartClient() error {
	if s.client.Running() {
		return nil
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	creds := s.credentials(cfg).Resolve(cfg.Telegram)
	if !creds.Valid {
		s.logger.Error("Telegram credentials missing or invalid, not starting", zap.String("reason", creds.Error))
		s.store.SetStatus(telegram.StatusNoCredentials)
		return &config.CredentialError{Reason: creds.Error}
	}

	s.logger.Info("Starting Telegram",
		zap.String("session_dir", cfg.Telegram.SessionDir),
		zap.String("api_id", creds.ID),
	)
	s.store.SetStatus(telegram.StatusStarting)

	s.client.SetAllowedBotUsername(cfg.Telegram.AllowedBot)
	if phone := strings.TrimSpace(cfg.Telegram.Phone); phone != "" {
		s.client.SetPhone(phone)
	}
	if err := s.client.Start(creds.ID, creds.Secret, cfg.Telegram.SessionDir, s.onMessage); err != nil {
		s.store.SetStatus("Telegram NOT started\nReason: " + err.Error())
		return errors.Wrap(err, "start client")
	}
	return nil
}

// Restart stops the client and starts it again with fresh credentials.
func (s *Source) Restart() error {
	s.logger.Info("Restarting Telegram")
	s.client.Stop()
	return s.StartClient()
}

// SaveCredentials validates and stores the API credentials, then restarts
// the client with them.
func (s *Source) SaveCredentials(id, secret string) error {
	s.mu.Lock()
	store := s.credentials(s.cfg)
	s.mu.Unlock()

	if err := store.Save(id, secret); err != nil {
		s.logger.Error("Save credentials", zap.Error(err))
		s.store.SetStatus(telegram.StatusCredentialsBad + err.Error())
		return err
	}
	s.logger.Info("Saved Telegram API credentials", zap.String("path", store.Path))
	return s.Restart()
}

// SubmitPhone sends the phone number if the client is waiting for it and
// keeps it for later phone prompts.
func (s *Source) SubmitPhone(phone string) {
	phone = strings.TrimSpace(phone)
	s.client.SetPhone(phone)
	if s.client.AuthState() == domain.AuthStateWaitingPhoneNumber {
		s.client.SendPhoneNow(phone)
	}
	s.publishStatus()
}

// SubmitCode sends the login code now if the client is waiting for it,
// otherwise it is sent on the next code prompt.
func (s *Source) SubmitCode(code string) {
	if s.client.AuthState() == domain.AuthStateWaitingCode {
		s.client.SendCodeNow(code)
	} else {
		s.client.SubmitCode(code)
	}
	s.publishStatus()
}

// SubmitPassword is SubmitCode for the 2FA password.
func (s *Source) SubmitPassword(password string) {
	if s.client.AuthState() == domain.AuthStateWaitingPassword {
		s.client.SendPasswordNow(password)
	} else {
		s.client.SubmitPassword(password)
	}
	s.publishStatus()
}

// TestAlert queues a sample tip. It bypasses dedupe.
func (s *Source) TestAlert() {
	n := s.store.Push(tips.TestEvent())
	s.metrics.SetQueueDepth(n)
}

// Tick advances playback by delta seconds.
func (s *Source) Tick(delta float64) {
	s.mu.Lock()
	s.sched.Tick(delta)
	s.mu.Unlock()

	s.metrics.SetQueueDepth(s.store.Len())
}

// Update applies a reloaded config. A changed allowed bot restarts a
// running client so the new bot is resolved.
func (s *Source) Update(cfg *config.Config) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = *cfg
	s.parser = cfg.Event.Parser()
	s.sched.Update(cfg.Alert)
	s.mu.Unlock()

	if phone := strings.TrimSpace(cfg.Telegram.Phone); phone != "" && phone != prev.Telegram.Phone {
		s.client.SetPhone(phone)
	}
	if cfg.Telegram.AllowedBot != prev.Telegram.AllowedBot && s.client.Running() {
		s.logger.Info("Allowed bot changed", zap.String("username", cfg.Telegram.AllowedBot))
		if err := s.Restart(); err != nil {
			s.logger.Warn("Restart after config change", zap.Error(err))
		}
	}
}

// Width and Height report the canvas size.
func (s *Source) Width() int {
	w, _ := s.size()
	return w
}

func (s *Source) Height() int {
	_, h := s.size()
	return h
}

func (s *Source) size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Size()
}

// Playing returns the alert in flight, if any.
func (s *Source) Playing() (alert.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Slot(), s.sched.State() == alert.Playing
}

// Opacity is the text opacity of the alert in flight.
func (s *Source) Opacity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Opacity()
}

// Config returns a copy of the active configuration.
func (s *Source) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Source) Store() *state.Store { return s.store }

func (s *Source) AuthState() domain.AuthState { return s.client.AuthState() }

func (s *Source) AllowedSender() domain.AllowedSender { return s.client.AllowedSender() }

// Destroy stops the client and closes the dedupe store.
func (s *Source) Destroy() {
	s.client.Stop()
	if err := s.dedupe.Close(); err != nil {
		s.logger.Warn("Close dedupe store", zap.Error(err))
	}
}

// PruneDedupe drops expired dedupe keys.
func (s *Source) PruneDedupe(ctx context.Context) error {
	return s.dedupe.Prune(ctx)
}

func (s *Source) credentials(cfg config.Config) config.CredentialStore {
	return config.CredentialStore{Path: cfg.CredentialsPath}
}

func (s *Source) publishStatus() {
	s.store.SetStatus(telegram.StatusLine(s.client.AuthState()))
}

func (s *Source) onAuthState(st domain.AuthState) {
	s.store.SetAuthState(st)
	s.store.SetStatus(telegram.StatusLine(st))
	if s.onAuth != nil {
		s.onAuth(st)
	}
}

// onMessage runs on the client worker.
func (s *Source) onMessage(chatID int64, text string) {
	s.mu.Lock()
	parser := s.parser
	s.mu.Unlock()

	ev, ok := parser.Parse(text)
	if !ok {
		s.logger.Debug("No tip event in message", zap.Int64("chat_id", chatID))
		return
	}
	s.metrics.EventExtracted()

	if ev.TimestampMS > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), dedupeTimeout)
		dup, err := s.dedupe.Seen(ctx, ev.DedupeKey)
		cancel()
		if err != nil {
			// Fail open: the tip is queued.
			s.logger.Warn("Dedupe lookup failed", zap.String("key", ev.DedupeKey), zap.Error(err))
		}
		if dup {
			s.metrics.Duplicate()
			s.logger.Info("Duplicate tip ignored", zap.String("key", ev.DedupeKey))
			return
		}
	}

	n := s.store.Push(ev)
	s.metrics.SetQueueDepth(n)
	s.logger.Info("Tip queued",
		zap.String("sender", ev.Sender),
		zap.String("amount", ev.AmountDisplay),
		zap.Int("depth", n),
	)
}

func (s *Source) played(ev domain.TipEvent, tier int) {
	s.store.RecordPlayed(ev, tier, time.Now())
	s.metrics.AlertPlayed(tier)
}
