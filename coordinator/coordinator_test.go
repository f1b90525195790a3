package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pandodao/walletx/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWallet records calls and delegates to the optional fn fields.
type fakeWallet struct {
	mux   sync.Mutex
	calls map[string]int

	balance    decimal.Decimal
	getBalance func(ctx context.Context) (decimal.Decimal, error)
	getAddress func(ctx context.Context, p core.Principal) (string, error)
	deposit    func(ctx context.Context, req *core.DepositRequest) error
	transfer   func(ctx context.Context, req *core.TransferRequest) error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{calls: map[string]int{}}
}

func (w *fakeWallet) record(name string) {
	w.mux.Lock()
	w.calls[name]++
	w.mux.Unlock()
}

func (w *fakeWallet) count(name string) int {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.calls[name]
}

func (w *fakeWallet) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	w.record("GetBalance")
	if w.getBalance != nil {
		return w.getBalance(ctx)
	}

	w.mux.Lock()
	defer w.mux.Unlock()
	return w.balance, nil
}

func (w *fakeWallet) GetDepositAddress(ctx context.Context, p core.Principal) (string, error) {
	w.record("GetDepositAddress")
	if w.getAddress != nil {
		return w.getAddress(ctx, p)
	}

	return "addr-" + string(p), nil
}

func (w *fakeWallet) Deposit(ctx context.Context, req *core.DepositRequest) error {
	w.record("Deposit")
	if w.deposit != nil {
		return w.deposit(ctx, req)
	}

	w.mux.Lock()
	w.balance = w.balance.Add(req.AmountKES)
	w.mux.Unlock()
	return nil
}

func (w *fakeWallet) Transfer(ctx context.Context, req *core.TransferRequest) error {
	w.record("Transfer")
	if w.transfer != nil {
		return w.transfer(ctx, req)
	}

	return nil
}

type fakeIdentity struct {
	mux   sync.Mutex
	calls int
	login func(ctx context.Context) (core.Principal, error)
}

func (i *fakeIdentity) Login(ctx context.Context) (core.Principal, error) {
	i.mux.Lock()
	i.calls++
	i.mux.Unlock()
	return i.login(ctx)
}

func (i *fakeIdentity) count() int {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.calls
}

func loginAs(p core.Principal) *fakeIdentity {
	return &fakeIdentity{login: func(context.Context) (core.Principal, error) { return p, nil }}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newCoordinator(w *fakeWallet, id *fakeIdentity, cfg Config) *Coordinator {
	return New(w, id, discard, cfg)
}

func requireErrorKind(t *testing.T, snap core.Snapshot, kind core.ErrorKind) {
	t.Helper()
	require.NotNil(t, snap.LastError, "expected %s", kind)
	assert.Equal(t, kind, snap.LastError.Kind, snap.LastError.Error())
}

func TestCoordinator_Scenario(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()

	started := make(chan struct{})
	release := make(chan struct{})
	id := &fakeIdentity{login: func(context.Context) (core.Principal, error) {
		close(started)
		<-release
		return "P1", nil
	}}

	c := newCoordinator(w, id, Config{})

	snap := c.Initialize(ctx)
	assert.True(t, snap.Balance.IsZero())
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.LastError)
	assert.Equal(t, 1, w.count("GetBalance"))

	done := make(chan core.Snapshot)
	go func() { done <- c.Login(ctx) }()
	<-started

	busy := c.Login(ctx)
	requireErrorKind(t, busy, core.ErrorKindBusy)
	assert.Equal(t, core.SessionStateAuthenticating, busy.State)
	assert.Equal(t, 1, id.count(), "no second handshake")

	close(release)
	snap = <-done
	assert.True(t, snap.Authenticated)
	assert.Equal(t, core.Principal("P1"), snap.Principal)
	assert.Equal(t, "addr-P1", snap.DepositAddress)
	assert.Nil(t, snap.LastError)
	assert.Equal(t, 1, w.count("GetDepositAddress"))

	before := w.count("GetBalance")
	snap = c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(500))
	assert.Nil(t, snap.LastError)
	assert.Equal(t, before+1, w.count("GetBalance"))
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(500)), "got %s", snap.Balance)

	w.transfer = func(context.Context, *core.TransferRequest) error {
		return &core.RemoteError{Method: "Transfer", Code: "aborted", Msg: "insufficient balance"}
	}

	before = w.count("GetBalance")
	snap = c.SubmitTransfer(ctx, "acct1", "acct2", decimal.NewFromInt(100))
	requireErrorKind(t, snap, core.ErrorKindOperation)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(500)), "balance unchanged")
	assert.Equal(t, before, w.count("GetBalance"), "no refresh after failure")

	var remote *core.RemoteError
	assert.ErrorAs(t, snap.LastError, &remote)
}

func TestCoordinator_MutationsRequireSession(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})

	snap := c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindValidation)
	assert.ErrorIs(t, snap.LastError, core.ErrNotAuthenticated)

	snap = c.SubmitTransfer(ctx, "a", "b", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindValidation)

	assert.Zero(t, w.count("Deposit"))
	assert.Zero(t, w.count("Transfer"))
}

func TestCoordinator_InvalidInput(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(c *Coordinator) core.Snapshot
	}{
		{"deposit empty account", func(c *Coordinator) core.Snapshot {
			return c.SubmitDeposit(ctx, "", decimal.NewFromInt(1))
		}},
		{"deposit zero amount", func(c *Coordinator) core.Snapshot {
			return c.SubmitDeposit(ctx, "acct1", decimal.Zero)
		}},
		{"deposit negative amount", func(c *Coordinator) core.Snapshot {
			return c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(-5))
		}},
		{"transfer empty from", func(c *Coordinator) core.Snapshot {
			return c.SubmitTransfer(ctx, "", "b", decimal.NewFromInt(1))
		}},
		{"transfer empty to", func(c *Coordinator) core.Snapshot {
			return c.SubmitTransfer(ctx, "a", "", decimal.NewFromInt(1))
		}},
		{"transfer zero amount", func(c *Coordinator) core.Snapshot {
			return c.SubmitTransfer(ctx, "a", "b", decimal.Zero)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newFakeWallet()
			c := newCoordinator(w, loginAs("P1"), Config{})
			c.Login(ctx)
			calls := w.count("GetBalance")

			snap := tt.run(c)
			requireErrorKind(t, snap, core.ErrorKindValidation)
			assert.Zero(t, w.count("Deposit"))
			assert.Zero(t, w.count("Transfer"))
			assert.Equal(t, calls, w.count("GetBalance"))
		})
	}
}

func TestCoordinator_TransferToSelfIsPushedToRemote(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})
	c.Login(ctx)

	snap := c.SubmitTransfer(ctx, "a", "a", decimal.NewFromInt(1))
	assert.Nil(t, snap.LastError)
	assert.Equal(t, 1, w.count("Transfer"))
}

func TestCoordinator_SuccessRefreshesBalanceOnce(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})
	c.Login(ctx)

	for i := 0; i < 3; i++ {
		before := w.count("GetBalance")
		c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(10))
		assert.Equal(t, before+1, w.count("GetBalance"))

		before = w.count("GetBalance")
		c.SubmitTransfer(ctx, "acct1", "acct2", decimal.NewFromInt(1))
		assert.Equal(t, before+1, w.count("GetBalance"))
	}
}

func TestCoordinator_RefreshFailureAfterDeposit(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	w.balance = decimal.NewFromInt(7)
	c := newCoordinator(w, loginAs("P1"), Config{})
	c.Login(ctx)

	w.getBalance = func(context.Context) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("connection reset")
	}

	snap := c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindFetch)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(7)))
}

func TestCoordinator_DeriveAddressIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})

	snap := c.Login(ctx)
	first := snap.DepositAddress

	snap = c.DeriveAddress(ctx, "P1")
	assert.Equal(t, first, snap.DepositAddress)
	snap = c.DeriveAddress(ctx, "P1")
	assert.Equal(t, first, snap.DepositAddress)
	assert.Equal(t, 1, w.count("GetDepositAddress"))

	snap = c.DeriveAddress(ctx, "")
	requireErrorKind(t, snap, core.ErrorKindValidation)
}

func TestCoordinator_DeriveAddressConcurrent(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()

	gate := make(chan struct{})
	w.getAddress = func(_ context.Context, p core.Principal) (string, error) {
		<-gate
		return "addr-" + string(p), nil
	}

	c := newCoordinator(w, loginAs("P1"), Config{Refresh: RefreshPolicy{}})
	c.Login(ctx)

	var wg, entered sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		entered.Add(1)
		go func() {
			defer wg.Done()
			entered.Done()
			c.DeriveAddress(ctx, "P1")
		}()
	}

	entered.Wait()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, w.count("GetDepositAddress"))
	assert.Equal(t, "addr-P1", c.Snapshot().DepositAddress)

	c.DeriveAddress(ctx, "P1")
	assert.Equal(t, 1, w.count("GetDepositAddress"), "cached after first success")
}

func TestCoordinator_DeriveAddressFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	w.getAddress = func(context.Context, core.Principal) (string, error) {
		return "", errors.New("unavailable")
	}

	c := newCoordinator(w, loginAs("P1"), Config{})
	snap := c.Login(ctx)

	assert.True(t, snap.Authenticated)
	assert.Empty(t, snap.DepositAddress)
	requireErrorKind(t, snap, core.ErrorKindFetch)
}

func TestCoordinator_LoginFailureThenSuccess(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()

	fail := true
	id := &fakeIdentity{login: func(context.Context) (core.Principal, error) {
		if fail {
			return "", errors.New("user cancelled")
		}

		return "P2", nil
	}}

	c := newCoordinator(w, id, Config{})

	snap := c.Login(ctx)
	requireErrorKind(t, snap, core.ErrorKindAuth)
	assert.False(t, snap.Authenticated)
	assert.Equal(t, core.SessionStateUnauthenticated, snap.State)
	assert.Empty(t, snap.Principal)
	assert.Zero(t, w.count("GetDepositAddress"))

	fail = false
	snap = c.Login(ctx)
	assert.Nil(t, snap.LastError, "stale error cleared")
	assert.True(t, snap.Authenticated)
	assert.Equal(t, core.Principal("P2"), snap.Principal)
	assert.Equal(t, "addr-P2", snap.DepositAddress)
}

func TestCoordinator_InitializeFetchError(t *testing.T) {
	w := newFakeWallet()
	w.getBalance = func(context.Context) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("offline")
	}

	snap := newCoordinator(w, loginAs("P1"), Config{}).Initialize(context.Background())
	requireErrorKind(t, snap, core.ErrorKindFetch)
	assert.True(t, snap.Balance.IsZero())
}

func TestCoordinator_Timeout(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{Timeout: 10 * time.Millisecond})
	c.Login(ctx)

	w.deposit = func(ctx context.Context, _ *core.DepositRequest) error {
		<-ctx.Done()
		return ctx.Err()
	}

	snap := c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindTimeout)
}

func TestCoordinator_SessionTTL(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{SessionTTL: time.Minute})

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Login(ctx)

	now = now.Add(2 * time.Minute)
	snap := c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindValidation)
	assert.ErrorIs(t, snap.LastError, core.ErrSessionExpired)
	assert.False(t, snap.Authenticated)
	assert.Empty(t, snap.Principal)
	assert.Zero(t, w.count("Deposit"))
}

func TestCoordinator_Logout(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})
	c.Login(ctx)

	snap := c.Logout()
	assert.False(t, snap.Authenticated)
	assert.Empty(t, snap.Principal)
	assert.Empty(t, snap.DepositAddress)

	snap = c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindValidation)
}

func TestCoordinator_SerializeMutations(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()

	var (
		mux      sync.Mutex
		inflight int
		peak     int
	)

	track := func() {
		mux.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mux.Unlock()

		time.Sleep(5 * time.Millisecond)

		mux.Lock()
		inflight--
		mux.Unlock()
	}

	w.deposit = func(context.Context, *core.DepositRequest) error { track(); return nil }
	w.transfer = func(context.Context, *core.TransferRequest) error { track(); return nil }

	c := newCoordinator(w, loginAs("P1"), Config{SerializeMutations: true})
	c.Login(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.SubmitDeposit(ctx, "a", decimal.NewFromInt(1)) }()
		go func() { defer wg.Done(); c.SubmitTransfer(ctx, "a", "b", decimal.NewFromInt(1)) }()
	}

	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestCoordinator_Sync(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})
	c.Initialize(ctx)

	w.balance = decimal.NewFromInt(42)
	snap, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(42)))

	w.getBalance = func(context.Context) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("offline")
	}

	snap, err = c.Sync(ctx)
	assert.Error(t, err)
	assert.Nil(t, snap.LastError, "background failures stay out of the view")
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(42)))
}

func TestCoordinator_BusyLoginDoesNotOutliveSuccess(t *testing.T) {
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	id := &fakeIdentity{login: func(context.Context) (core.Principal, error) {
		close(started)
		<-release
		return "P1", nil
	}}

	c := newCoordinator(newFakeWallet(), id, Config{})

	done := make(chan core.Snapshot)
	go func() { done <- c.Login(ctx) }()
	<-started

	busy := c.Login(ctx)
	requireErrorKind(t, busy, core.ErrorKindBusy)

	close(release)
	snap := <-done
	assert.True(t, snap.Authenticated)
	assert.Equal(t, core.Principal("P1"), snap.Principal)
	assert.Nil(t, snap.LastError)
	assert.Nil(t, c.Snapshot().LastError)
}

func TestCoordinator_NewAttemptClearsErrorBeforeOutcome(t *testing.T) {
	ctx := context.Background()
	w := newFakeWallet()
	c := newCoordinator(w, loginAs("P1"), Config{})
	c.Login(ctx)

	snap := c.SubmitDeposit(ctx, "", decimal.NewFromInt(1))
	requireErrorKind(t, snap, core.ErrorKindValidation)

	started := make(chan struct{})
	release := make(chan struct{})
	w.deposit = func(context.Context, *core.DepositRequest) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan core.Snapshot)
	go func() { done <- c.SubmitDeposit(ctx, "acct1", decimal.NewFromInt(1)) }()
	<-started

	assert.Nil(t, c.Snapshot().LastError, "cleared while the deposit is in flight")

	close(release)
	snap = <-done
	assert.Nil(t, snap.LastError)
}
