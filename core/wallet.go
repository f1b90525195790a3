package core

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Principal identifies an authenticated user, issued by the identity provider.
type Principal string

type SessionState uint8

const (
	SessionStateUnauthenticated SessionState = iota
	SessionStateAuthenticating
	SessionStateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionStateUnauthenticated:
		return "Unauthenticated"
	case SessionStateAuthenticating:
		return "Authenticating"
	case SessionStateAuthenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Snapshot is a read-only copy of the coordinator state handed to the view.
type Snapshot struct {
	State          SessionState    `json:"state"`
	Authenticated  bool            `json:"authenticated"`
	Principal      Principal       `json:"principal,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	DepositAddress string          `json:"deposit_address,omitempty"`
	LastError      *Error          `json:"last_error,omitempty"`
}

type WalletClient interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetDepositAddress(ctx context.Context, principal Principal) (string, error)
	Deposit(ctx context.Context, req *DepositRequest) error
	Transfer(ctx context.Context, req *TransferRequest) error
}

type IdentitySession interface {
	Login(ctx context.Context) (Principal, error)
}

type principalKey struct{}

// WithPrincipal attaches the current principal to ctx so the wallet client can
// scope remote calls to it.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if principal == "" {
		return ctx
	}

	return context.WithValue(ctx, principalKey{}, principal)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p != ""
}
