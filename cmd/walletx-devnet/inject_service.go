package main

import (
	"fmt"

	"github.com/google/wire"
	"github.com/pandodao/walletx/core"
	"github.com/pandodao/walletx/store/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var storeSet = wire.NewSet(
	provideLedger,
)

// provideLedger seeds the in-memory ledger from ledger.seed, a map of
// account to amount.
func provideLedger(v *viper.Viper) (core.LedgerStore, error) {
	seed := map[string]decimal.Decimal{}
	for account, raw := range v.GetStringMapString("ledger.seed") {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("ledger.seed.%s: %w", account, err)
		}

		if amount.IsNegative() {
			return nil, fmt.Errorf("ledger.seed.%s: negative amount %s", account, amount)
		}

		seed[account] = amount
	}

	return ledger.New(seed), nil
}
