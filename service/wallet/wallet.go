package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"github.com/pandodao/walletx/core"
	"github.com/pandodao/walletx/handler/rpc/walletx"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/twitchtv/twirp"
	"go.uber.org/ratelimit"
)

type Config struct {
	Endpoint string `valid:"url,required"`
	Prefix   string `valid:"required"`
	// RateLimit caps outgoing calls per second, unlimited if <= 0.
	RateLimit int
	// IdempotencyKeys attaches a fresh Idempotency-Key header to every
	// deposit and transfer.
	IdempotencyKeys bool
}

func New(client *http.Client, logger *slog.Logger, cfg Config) core.WalletClient {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(cfg.RateLimit)
	}

	logger = logger.With("service", "wallet")

	return &service{
		client:  client,
		logger:  logger,
		cfg:     cfg,
		limiter: limiter,
		breaker: newCircuitBreaker(logger),
	}
}

type service struct {
	client  *http.Client
	logger  *slog.Logger
	cfg     Config
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

func (s *service) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var resp walletx.GetBalanceResponse
	if err := s.do(ctx, walletx.MethodGetBalance, &walletx.GetBalanceRequest{}, &resp, false); err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", resp.Balance, err)
	}

	if balance.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid balance %s: negative", balance)
	}

	return balance, nil
}

func (s *service) GetDepositAddress(ctx context.Context, principal core.Principal) (string, error) {
	if principal == "" {
		return "", errors.New("principal required")
	}

	var resp walletx.GetDepositAddressResponse
	req := &walletx.GetDepositAddressRequest{Principal: string(principal)}
	if err := s.do(ctx, walletx.MethodGetDepositAddress, req, &resp, false); err != nil {
		return "", err
	}

	if resp.Address == "" {
		return "", errors.New("remote returned empty deposit address")
	}

	return resp.Address, nil
}

func (s *service) Deposit(ctx context.Context, req *core.DepositRequest) error {
	return s.do(ctx, walletx.MethodDeposit, &walletx.DepositRequest{
		Account:   req.Account,
		AmountKes: req.AmountKES.String(),
	}, &walletx.DepositResponse{}, true)
}

func (s *service) Transfer(ctx context.Context, req *core.TransferRequest) error {
	return s.do(ctx, walletx.MethodTransfer, &walletx.TransferRequest{
		From:   req.From,
		To:     req.To,
		Amount: req.Amount.String(),
	}, &walletx.TransferResponse{}, true)
}

func (s *service) do(ctx context.Context, method string, in, out any, mutating bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	if p, ok := core.PrincipalFrom(ctx); ok {
		header.Set(walletx.PrincipalHeader, string(p))
	}

	if mutating && s.cfg.IdempotencyKeys {
		header.Set(walletx.IdempotencyHeader, uuid.NewString())
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		s.limiter.Take()
		return nil, s.call(ctx, method, body, header, out)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &core.RemoteError{Method: method, Code: string(twirp.Unavailable), Msg: err.Error()}
	}

	return err
}

func (s *service) call(ctx context.Context, method string, body []byte, header http.Header, out any) error {
	url := strings.TrimSuffix(s.cfg.Endpoint, "/") + walletx.MethodPath(s.cfg.Prefix, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header = header.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("http.Do", "method", method, "err", err)
		return fmt.Errorf("%s: %w", method, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(method, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	return nil
}

// decodeError reads a twirp error body, falling back to the http status when
// the body is not a twirp error.
func decodeError(method string, resp *http.Response) error {
	var body struct {
		Code string            `json:"code"`
		Msg  string            `json:"msg"`
		Meta map[string]string `json:"meta"`
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &body); err != nil || !twirp.IsValidErrorCode(twirp.ErrorCode(body.Code)) {
		code := twirp.Internal
		switch resp.StatusCode {
		case http.StatusNotFound:
			code = twirp.BadRoute
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			code = twirp.Unavailable
		}

		return &core.RemoteError{Method: method, Code: string(code), Msg: fmt.Sprintf("http status %d", resp.StatusCode)}
	}

	return &core.RemoteError{Method: method, Code: body.Code, Msg: body.Msg}
}
