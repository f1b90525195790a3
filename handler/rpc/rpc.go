package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pandodao/generic"
	"github.com/pandodao/walletx/core"
	"github.com/pandodao/walletx/handler/rpc/walletx"
	"github.com/pandodao/walletx/store"
	"github.com/shopspring/decimal"
	"github.com/twitchtv/twirp"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	Prefix string `valid:"required"`
}

func New(
	ledger core.LedgerStore,
	logger *slog.Logger,
	cfg Config,
) *Server {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &Server{
		ledger:  ledger,
		logger:  logger.With("server", "rpc"),
		sf:      &singleflight.Group{},
		handled: generic.Must(lru.New[string, struct{}](1024)),
		prefix:  cfg.Prefix,
	}
}

type Server struct {
	ledger  core.LedgerStore
	logger  *slog.Logger
	sf      *singleflight.Group
	handled *lru.Cache[string, struct{}]
	prefix  string
}

func (s *Server) Handler() (string, http.Handler) {
	r := chi.NewRouter()
	r.Post("/"+walletx.ServiceName+"/{method}", s.serve)
	return s.prefix, r
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	ctx := core.WithPrincipal(r.Context(), core.Principal(r.Header.Get(walletx.PrincipalHeader)))
	key := r.Header.Get(walletx.IdempotencyHeader)

	var (
		resp any
		err  error
	)

	switch method := chi.URLParam(r, "method"); method {
	case walletx.MethodGetBalance:
		var req walletx.GetBalanceRequest
		if err = decode(r, &req); err == nil {
			resp, err = s.GetBalance(ctx, &req)
		}
	case walletx.MethodGetDepositAddress:
		var req walletx.GetDepositAddressRequest
		if err = decode(r, &req); err == nil {
			resp, err = s.GetDepositAddress(ctx, &req)
		}
	case walletx.MethodDeposit:
		var req walletx.DepositRequest
		if err = decode(r, &req); err == nil {
			resp, err = s.idempotent(key, func() (any, error) { return s.Deposit(ctx, &req) })
		}
	case walletx.MethodTransfer:
		var req walletx.TransferRequest
		if err = decode(r, &req); err == nil {
			resp, err = s.idempotent(key, func() (any, error) { return s.Transfer(ctx, &req) })
		}
	default:
		err = twirp.NewError(twirp.BadRoute, "no handler for method "+method)
	}

	if err != nil {
		_ = twirp.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return twirp.Malformed.Error("the json request could not be decoded")
	}

	return nil
}

// idempotent runs fn at most once per successful key. Failed attempts may be
// retried with the same key.
func (s *Server) idempotent(key string, fn func() (any, error)) (any, error) {
	if key == "" {
		return fn()
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if s.handled.Contains(key) {
			s.logger.Debug("duplicated request skipped", "key", key)
			return struct{}{}, nil
		}

		resp, err := fn()
		if err == nil {
			s.handled.Add(key, struct{}{})
		}

		return resp, err
	})

	return v, err
}

func (s *Server) GetBalance(ctx context.Context, _ *walletx.GetBalanceRequest) (*walletx.GetBalanceResponse, error) {
	var (
		balance decimal.Decimal
		err     error
	)

	if principal, ok := core.PrincipalFrom(ctx); ok {
		balance, err = s.ledger.Balance(ctx, string(principal))
		if store.IsErrNotFound(err) {
			balance, err = decimal.Zero, nil
		}
	} else {
		balance, err = s.ledger.Supply(ctx)
	}

	if err != nil {
		s.logger.Error("ledger.Balance", "err", err)
		return nil, err
	}

	return &walletx.GetBalanceResponse{Balance: balance.String()}, nil
}

func (s *Server) GetDepositAddress(_ context.Context, req *walletx.GetDepositAddressRequest) (*walletx.GetDepositAddressResponse, error) {
	if req.Principal == "" {
		return nil, twirp.InvalidArgument.Error("principal required")
	}

	return &walletx.GetDepositAddressResponse{Address: DepositAddress(req.Principal)}, nil
}

// DepositAddress derives the stable deposit address of principal.
func DepositAddress(principal string) string {
	return "addr-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(principal)).String()
}

func (s *Server) Deposit(ctx context.Context, req *walletx.DepositRequest) (*walletx.DepositResponse, error) {
	amount := generic.Try(decimal.NewFromString(req.AmountKes))

	if req.Account == "" {
		return nil, twirp.InvalidArgument.Error("account required")
	}

	if !validAmount(amount) {
		return nil, twirp.InvalidArgument.Error("invalid amount")
	}

	logger := s.logger.With("account", req.Account)
	if err := s.ledger.Credit(ctx, req.Account, amount); err != nil {
		logger.Error("ledger.Credit", "err", err)
		return nil, err
	}

	logger.Info("deposit handled", "amount", amount)
	return &walletx.DepositResponse{}, nil
}

func (s *Server) Transfer(ctx context.Context, req *walletx.TransferRequest) (*walletx.TransferResponse, error) {
	amount := generic.Try(decimal.NewFromString(req.Amount))

	if req.From == "" || req.To == "" {
		return nil, twirp.InvalidArgument.Error("from and to required")
	}

	if !validAmount(amount) {
		return nil, twirp.InvalidArgument.Error("invalid amount")
	}

	logger := s.logger.With("from", req.From, "to", req.To)
	if err := s.ledger.Move(ctx, req.From, req.To, amount); err != nil {
		switch {
		case store.IsErrNotFound(err):
			return nil, twirp.NotFoundError("account not found")
		case store.IsErrInsufficientBalance(err):
			return nil, twirp.Aborted.Error("insufficient balance")
		}

		logger.Error("ledger.Move", "err", err)
		return nil, err
	}

	logger.Info("transfer handled", "amount", amount)
	return &walletx.TransferResponse{}, nil
}

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && !amount.Truncate(8).LessThan(amount)
}
