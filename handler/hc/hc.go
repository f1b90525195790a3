package hc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pandodao/walletx/core"
)

// Handler reports version, uptime and the current token supply of ledger.
func Handler(version, commit string, ledger core.LedgerStore) http.Handler {
	t := time.Now()
	fn := func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{
			"version": version,
			"commit":  commit,
			"uptime":  time.Since(t).String(),
		}

		if supply, err := ledger.Supply(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["err"] = err.Error()
		} else {
			body["supply"] = supply.String()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	return http.HandlerFunc(fn)
}
