package main

import (
	"log/slog"
	"net/http"

	"github.com/google/wire"
	"github.com/pandodao/walletx/cmd/walletx/cmds"
	"github.com/pandodao/walletx/coordinator"
	"github.com/pandodao/walletx/handler/rpc/walletx"
	"github.com/pandodao/walletx/service/identity"
	"github.com/pandodao/walletx/service/wallet"
	"github.com/pandodao/walletx/worker/syncer"
	"github.com/spf13/viper"
)

var serviceSet = wire.NewSet(
	provideHTTPClient,
	provideWalletConfig,
	wallet.New,
	provideOpener,
	provideIdentityConfig,
	identity.New,
	provideCoordinatorConfig,
	coordinator.New,
	provideViewOptions,
	provideSyncer,
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("wallet.endpoint", "http://localhost:8080")
	v.SetDefault("wallet.prefix", walletx.DefaultPrefix)
	v.SetDefault("wallet.rate_limit", 0)
	v.SetDefault("wallet.idempotency_keys", false)
	v.SetDefault("identity.provider", identity.DefaultProvider)
	v.SetDefault("identity.callback_addr", "127.0.0.1:0")
	v.SetDefault("coordinator.timeout", "0s")
	v.SetDefault("coordinator.session_ttl", "0s")
	v.SetDefault("coordinator.serialize_mutations", false)
	v.SetDefault("view.qr", true)
	v.SetDefault("sync.interval", "0s")
}

func provideHTTPClient() *http.Client {
	return http.DefaultClient
}

func provideWalletConfig(v *viper.Viper) wallet.Config {
	return wallet.Config{
		Endpoint:        v.GetString("wallet.endpoint"),
		Prefix:          v.GetString("wallet.prefix"),
		RateLimit:       v.GetInt("wallet.rate_limit"),
		IdempotencyKeys: v.GetBool("wallet.idempotency_keys"),
	}
}

func provideOpener() identity.Opener {
	return identity.OpenBrowser
}

func provideIdentityConfig(v *viper.Viper) identity.Config {
	return identity.Config{
		Provider:     v.GetString("identity.provider"),
		CallbackAddr: v.GetString("identity.callback_addr"),
	}
}

func provideCoordinatorConfig(v *viper.Viper) (coordinator.Config, error) {
	policy, err := coordinator.ParseRefreshPolicy(v.GetStringMapStringSlice("coordinator.refresh"))
	if err != nil {
		return coordinator.Config{}, err
	}

	return coordinator.Config{
		Timeout:            v.GetDuration("coordinator.timeout"),
		SessionTTL:         v.GetDuration("coordinator.session_ttl"),
		SerializeMutations: v.GetBool("coordinator.serialize_mutations"),
		Refresh:            policy,
	}, nil
}

func provideViewOptions(v *viper.Viper) cmds.Options {
	return cmds.Options{
		QR: v.GetBool("view.qr"),
	}
}

// provideSyncer returns nil when sync.interval is not set.
func provideSyncer(c *coordinator.Coordinator, logger *slog.Logger, v *viper.Viper) *syncer.Syncer {
	interval := v.GetDuration("sync.interval")
	if interval <= 0 {
		return nil
	}

	return syncer.New(c, logger, syncer.Config{Interval: interval})
}
