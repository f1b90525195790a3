package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pandodao/generic"
	"github.com/pandodao/walletx/core"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var errInvalidAmount = errors.New("amount must be positive")

type Config struct {
	// Timeout bounds every remote and identity call, 0 means no bound.
	Timeout time.Duration
	// SessionTTL expires an authenticated session, 0 means never.
	SessionTTL time.Duration
	// SerializeMutations runs deposits and transfers one at a time.
	SerializeMutations bool
	Refresh            RefreshPolicy
}

func New(
	wallet core.WalletClient,
	identity core.IdentitySession,
	logger *slog.Logger,
	cfg Config,
) *Coordinator {
	if cfg.Refresh == nil {
		cfg.Refresh = DefaultRefreshPolicy()
	}

	return &Coordinator{
		wallet:    wallet,
		identity:  identity,
		logger:    logger.With("service", "coordinator"),
		cfg:       cfg,
		addresses: generic.Must(lru.New[core.Principal, string](64)),
		now:       time.Now,
	}
}

// Coordinator owns the session and wallet state and sequences the calls
// against the identity provider and the remote wallet. Every intent returns
// the snapshot after its calls settled; failures land in Snapshot.LastError.
type Coordinator struct {
	wallet   core.WalletClient
	identity core.IdentitySession
	logger   *slog.Logger
	cfg      Config

	addresses *lru.Cache[core.Principal, string]
	sf        singleflight.Group
	ops       sync.Mutex
	now       func() time.Time

	mux       sync.Mutex
	state     core.SessionState
	principal core.Principal
	authAt    time.Time
	balance   decimal.Decimal
	address   string
	lastErr   *core.Error
}

func (c *Coordinator) Snapshot() core.Snapshot {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.snapshot()
}

func (c *Coordinator) snapshot() core.Snapshot {
	return core.Snapshot{
		State:          c.state,
		Authenticated:  c.state == core.SessionStateAuthenticated,
		Principal:      c.principal,
		Balance:        c.balance,
		DepositAddress: c.address,
		LastError:      c.lastErr,
	}
}

// Initialize fetches the balance, with or without a session.
func (c *Coordinator) Initialize(ctx context.Context) core.Snapshot {
	c.begin()
	c.refresh(ctx, OpInitialize)
	return c.Snapshot()
}

// Sync re-fetches the balance in the background. Unlike the intents it
// leaves LastError alone and reports the failure to the caller instead.
func (c *Coordinator) Sync(ctx context.Context) (core.Snapshot, error) {
	if _, err := c.authorize(); errors.Is(err, core.ErrSessionExpired) {
		return c.Snapshot(), err
	}

	callCtx, cancel := c.callContext(core.WithPrincipal(ctx, c.currentPrincipal()))
	defer cancel()

	balance, err := c.wallet.GetBalance(callCtx)
	if err != nil {
		return c.Snapshot(), err
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	c.balance = balance
	return c.snapshot(), nil
}

func (c *Coordinator) Login(ctx context.Context) core.Snapshot {
	c.mux.Lock()
	if c.state == core.SessionStateAuthenticating {
		c.lastErr = c.newError(OpLogin, core.ErrorKindBusy, core.ErrBusy)
		defer c.mux.Unlock()
		return c.snapshot()
	}

	c.lastErr = nil
	c.state = core.SessionStateAuthenticating
	c.mux.Unlock()

	callCtx, cancel := c.callContext(ctx)
	principal, err := c.identity.Login(callCtx)
	cancel()

	if err == nil && principal == "" {
		err = errors.New("empty principal")
	}

	if err != nil {
		kind := core.ErrorKindAuth
		if errors.Is(err, core.ErrBusy) {
			kind = core.ErrorKindBusy
		}

		c.mux.Lock()
		c.state = core.SessionStateUnauthenticated
		c.principal = ""
		c.address = ""
		c.lastErr = c.newError(OpLogin, kind, err)
		defer c.mux.Unlock()
		return c.snapshot()
	}

	c.mux.Lock()
	c.state = core.SessionStateAuthenticated
	c.principal = principal
	c.address = ""
	c.authAt = c.now()
	// the settled login owns lastErr, including a busy rejection of a second login
	c.lastErr = nil
	c.mux.Unlock()

	c.logger.Info("session established", "principal", principal)

	// the address is derived only once the principal is set
	c.refresh(ctx, OpLogin)
	return c.Snapshot()
}

// Logout drops the session. Balance is kept until the next refresh.
func (c *Coordinator) Logout() core.Snapshot {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.state == core.SessionStateAuthenticating {
		c.lastErr = c.newError(OpLogout, core.ErrorKindBusy, core.ErrBusy)
		return c.snapshot()
	}

	c.lastErr = nil
	c.endSession()
	return c.snapshot()
}

func (c *Coordinator) endSession() {
	c.state = core.SessionStateUnauthenticated
	c.principal = ""
	c.address = ""
	c.authAt = time.Time{}
}

func (c *Coordinator) DeriveAddress(ctx context.Context, principal core.Principal) core.Snapshot {
	c.begin()

	if principal == "" {
		c.setError(OpDerive, core.ErrorKindValidation, errors.New("principal required"))
		return c.Snapshot()
	}

	c.deriveAddress(ctx, OpDerive, principal)
	return c.Snapshot()
}

func (c *Coordinator) SubmitDeposit(ctx context.Context, account string, amountKES decimal.Decimal) core.Snapshot {
	req := &core.DepositRequest{Account: account, AmountKES: amountKES}

	return c.mutate(ctx, OpDeposit, func() error {
		return validate(req, req.AmountKES)
	}, func(ctx context.Context) error {
		return c.wallet.Deposit(ctx, req)
	})
}

func (c *Coordinator) SubmitTransfer(ctx context.Context, from, to string, amount decimal.Decimal) core.Snapshot {
	req := &core.TransferRequest{From: from, To: to, Amount: amount}

	return c.mutate(ctx, OpTransfer, func() error {
		return validate(req, req.Amount)
	}, func(ctx context.Context) error {
		return c.wallet.Transfer(ctx, req)
	})
}

func validate(req any, amount decimal.Decimal) error {
	if _, err := govalidator.ValidateStruct(req); err != nil {
		return err
	}

	if !amount.IsPositive() {
		return errInvalidAmount
	}

	return nil
}

func (c *Coordinator) mutate(
	ctx context.Context,
	op Operation,
	check func() error,
	call func(ctx context.Context) error,
) core.Snapshot {
	c.begin()

	principal, err := c.authorize()
	if err != nil {
		c.setError(op, core.ErrorKindValidation, err)
		return c.Snapshot()
	}

	if err := check(); err != nil {
		c.setError(op, core.ErrorKindValidation, err)
		return c.Snapshot()
	}

	if c.cfg.SerializeMutations {
		c.ops.Lock()
		defer c.ops.Unlock()
	}

	ctx = core.WithPrincipal(ctx, principal)

	callCtx, cancel := c.callContext(ctx)
	err = call(callCtx)
	cancel()

	if err != nil {
		c.setError(op, core.ErrorKindOperation, err)
		return c.Snapshot()
	}

	c.logger.Info("operation accepted", "op", op, "principal", principal)

	c.refresh(ctx, op)
	return c.Snapshot()
}

// authorize returns the current principal, expiring the session first when
// its ttl passed.
func (c *Coordinator) authorize() (core.Principal, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.state != core.SessionStateAuthenticated {
		return "", core.ErrNotAuthenticated
	}

	if ttl := c.cfg.SessionTTL; ttl > 0 && c.now().Sub(c.authAt) > ttl {
		c.logger.Info("session expired", "principal", c.principal)
		c.endSession()
		return "", core.ErrSessionExpired
	}

	return c.principal, nil
}

func (c *Coordinator) refresh(ctx context.Context, op Operation) {
	for _, r := range c.cfg.Refresh.For(op) {
		switch r {
		case RefreshBalance:
			c.fetchBalance(ctx, op)
		case RefreshAddress:
			if principal := c.currentPrincipal(); principal != "" {
				c.deriveAddress(ctx, op, principal)
			}
		}
	}
}

func (c *Coordinator) currentPrincipal() core.Principal {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.state != core.SessionStateAuthenticated {
		return ""
	}

	return c.principal
}

func (c *Coordinator) fetchBalance(ctx context.Context, op Operation) {
	callCtx, cancel := c.callContext(core.WithPrincipal(ctx, c.currentPrincipal()))
	defer cancel()

	balance, err := c.wallet.GetBalance(callCtx)
	if err != nil {
		c.setError(op, core.ErrorKindFetch, err)
		return
	}

	c.mux.Lock()
	c.balance = balance
	c.mux.Unlock()
}

func (c *Coordinator) deriveAddress(ctx context.Context, op Operation, principal core.Principal) {
	v, err, _ := c.sf.Do(string(principal), func() (interface{}, error) {
		if addr, ok := c.addresses.Get(principal); ok {
			return addr, nil
		}

		callCtx, cancel := c.callContext(core.WithPrincipal(ctx, principal))
		defer cancel()

		addr, err := c.wallet.GetDepositAddress(callCtx, principal)
		if err != nil {
			return "", err
		}

		c.addresses.Add(principal, addr)
		return addr, nil
	})

	if err != nil {
		c.setError(op, core.ErrorKindFetch, err)
		return
	}

	c.mux.Lock()
	if c.principal == principal {
		c.address = v.(string)
	}
	c.mux.Unlock()
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}

	return context.WithCancel(ctx)
}

// begin clears the error left by a previous operation.
func (c *Coordinator) begin() {
	c.mux.Lock()
	c.lastErr = nil
	c.mux.Unlock()
}

func (c *Coordinator) setError(op Operation, kind core.ErrorKind, err error) {
	e := c.newError(op, kind, err)

	c.mux.Lock()
	c.lastErr = e
	c.mux.Unlock()
}

func (c *Coordinator) newError(op Operation, kind core.ErrorKind, err error) *core.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = core.ErrorKindTimeout
	}

	c.logger.Error(string(op), "kind", kind, "err", err)
	return &core.Error{Kind: kind, Op: string(op), Err: err}
}
