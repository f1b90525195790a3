package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/wire"
	"github.com/pandodao/walletx/core"
	"github.com/pandodao/walletx/handler/api"
	"github.com/pandodao/walletx/handler/hc"
	"github.com/pandodao/walletx/handler/rpc"
	"github.com/pandodao/walletx/handler/rpc/walletx"
	"github.com/rs/cors"
	"github.com/spf13/viper"
)

var serverSet = wire.NewSet(
	provideRpcConfig,
	rpc.New,
	api.New,
	provideServer,
)

func provideRpcConfig(v *viper.Viper) rpc.Config {
	v.SetDefault("rpc.prefix", walletx.DefaultPrefix)

	return rpc.Config{
		Prefix: v.GetString("rpc.prefix"),
	}
}

func provideServer(apiHandler *api.Server, rpcHandler *rpc.Server, ledger core.LedgerStore) *http.Server {
	m := chi.NewMux()
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Recoverer)
	m.Use(cors.AllowAll().Handler)

	m.Mount("/api", apiHandler.Handler())
	m.Mount(rpcHandler.Handler())
	m.Mount("/hc", hc.Handler(version, commit, ledger))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", opt.port),
		Handler: m,
	}
}
