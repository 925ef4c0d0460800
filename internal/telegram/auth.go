package telegram

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tipcharm/internal/domain"
)

// channelAuth implements gotd's auth.UserAuthenticator. Each prompt is
// announced as an authorization state and answered by the matching
// tdjson command, delivered over a channel.
type channelAuth struct {
	phone    chan string
	code     chan string
	password chan string

	announce func(domain.AuthState)
}

func newChannelAuth(announce func(domain.AuthState)) *channelAuth {
	return &channelAuth{
		phone:    make(chan string, 1),
		code:     make(chan string, 1),
		password: make(chan string, 1),
		announce: announce,
	}
}

func (a *channelAuth) Phone(ctx context.Context) (string, error) {
	return a.wait(ctx, domain.AuthStateWaitingPhoneNumber, a.phone)
}

func (a *channelAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.wait(ctx, domain.AuthStateWaitingCode, a.code)
}

func (a *channelAuth) Password(ctx context.Context) (string, error) {
	return a.wait(ctx, domain.AuthStateWaitingPassword, a.password)
}

func (a *channelAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *channelAuth) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up not supported")
}

func (a *channelAuth) wait(ctx context.Context, state domain.AuthState, ch <-chan string) (string, error) {
	a.announce(state)
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// offer hands v to a waiting prompt, replacing any value not yet taken.
func offer(ch chan string, v string) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
