package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pandodao/walletx/core"
	"github.com/pkg/browser"
)

const DefaultProvider = "https://identity.ic0.app"

var ErrEmptyPrincipal = errors.New("identity provider returned empty principal")

// ProviderError is the failure reported by the identity provider callback.
type ProviderError struct {
	Msg string
}

func (e *ProviderError) Error() string {
	return "identity provider: " + e.Msg
}

// Opener hands the login url to the user, usually by opening a browser.
type Opener func(rawURL string) error

func OpenBrowser(rawURL string) error {
	return browser.OpenURL(rawURL)
}

type Config struct {
	Provider     string `valid:"url,required"`
	CallbackAddr string `valid:"required"`
}

func New(logger *slog.Logger, open Opener, cfg Config) core.IdentitySession {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if open == nil {
		open = OpenBrowser
	}

	return &session{
		logger: logger.With("service", "identity"),
		open:   open,
		cfg:    cfg,
	}
}

type session struct {
	logger *slog.Logger
	open   Opener
	cfg    Config
	mux    sync.Mutex
}

type outcome struct {
	principal core.Principal
	err       error
}

// Login runs one delegated handshake: it serves a loopback callback, sends the
// user to the provider and waits for the first callback carrying the expected state.
func (s *session) Login(ctx context.Context) (core.Principal, error) {
	if !s.mux.TryLock() {
		return "", core.ErrBusy
	}
	defer s.mux.Unlock()

	ln, err := net.Listen("tcp", s.cfg.CallbackAddr)
	if err != nil {
		return "", fmt.Errorf("listen callback: %w", err)
	}

	state := uuid.NewString()
	done := make(chan outcome, 1)

	svr := &http.Server{
		Handler:           s.callbackHandler(state, done),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := svr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback.Serve", "err", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svr.Shutdown(shutdownCtx)
	}()

	loginURL, err := s.loginURL(fmt.Sprintf("http://%s/callback", ln.Addr().String()), state)
	if err != nil {
		return "", err
	}

	logger := s.logger.With("state", state)
	logger.Debug("login started", "url", loginURL)

	if err := s.open(loginURL); err != nil {
		logger.Error("open", "err", err)
		return "", fmt.Errorf("open login url: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("login abandoned", "err", ctx.Err())
		return "", ctx.Err()
	case out := <-done:
		if out.err != nil {
			logger.Info("login failed", "err", out.err)
			return "", out.err
		}

		logger.Info("login succeeded", "principal", out.principal)
		return out.principal, nil
	}
}

func (s *session) loginURL(redirect, state string) (string, error) {
	u, err := url.Parse(s.cfg.Provider)
	if err != nil {
		return "", fmt.Errorf("parse provider: %w", err)
	}

	q := u.Query()
	q.Set("redirect_uri", redirect)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *session) callbackHandler(state string, done chan<- outcome) http.Handler {
	var once sync.Once
	send := func(out outcome) {
		once.Do(func() { done <- out })
	}

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			s.logger.Warn("callback with unexpected state ignored")
			http.Error(w, "unexpected state", http.StatusBadRequest)
			return
		}

		switch msg, principal := q.Get("error"), q.Get("principal"); {
		case msg != "":
			send(outcome{err: &ProviderError{Msg: msg}})
			http.Error(w, "login failed: "+msg, http.StatusUnauthorized)
		case principal == "":
			send(outcome{err: ErrEmptyPrincipal})
			http.Error(w, ErrEmptyPrincipal.Error(), http.StatusBadRequest)
		default:
			send(outcome{principal: core.Principal(principal)})
			_, _ = w.Write([]byte("login succeeded, you can close this window"))
		}
	})

	return r
}
