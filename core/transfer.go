package core

import (
	"context"

	"github.com/shopspring/decimal"
)

type DepositRequest struct {
	Account   string          `json:"account" valid:"required"`
	AmountKES decimal.Decimal `json:"amount_kes" valid:"-"`
}

type TransferRequest struct {
	From   string          `json:"from" valid:"required"`
	To     string          `json:"to" valid:"required"`
	Amount decimal.Decimal `json:"amount" valid:"-"`
}

// LedgerStore is the account book behind the development wallet server.
type LedgerStore interface {
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
	Supply(ctx context.Context) (decimal.Decimal, error)
	Credit(ctx context.Context, account string, amount decimal.Decimal) error
	Move(ctx context.Context, from, to string, amount decimal.Decimal) error
}
