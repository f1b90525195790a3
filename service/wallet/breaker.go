package wallet

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pandodao/walletx/core"
	"github.com/sony/gobreaker"
	"github.com/twitchtv/twirp"
)

var (
	// MaxNumOfFailingRequests is the request count the breaker needs to see
	// before it may open.
	MaxNumOfFailingRequests = 10
	// FailingRatio opens the breaker once reached.
	FailingRatio = 0.6
)

func newCircuitBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "walletx",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxNumOfFailingRequests && ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: isSuccessful,
	})
}

// isSuccessful reports whether err leaves the remote looking healthy. Rejected
// requests and caller cancellation do not count against the breaker.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}

	var remote *core.RemoteError
	if !errors.As(err, &remote) {
		return false
	}

	switch twirp.ErrorCode(remote.Code) {
	case twirp.Unavailable, twirp.Internal, twirp.Unknown, twirp.DeadlineExceeded, twirp.BadRoute:
		return false
	default:
		return true
	}
}
