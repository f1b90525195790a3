package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/pandodao/walletx/cmd/walletx/cmds"
	"github.com/pandodao/walletx/worker/syncer"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	opt struct {
		config   string
		endpoint string
		debug    bool
	}

	version = "0.0.1-src"
	commit  = versioninfo.Short()
)

func main() {
	flag.StringVar(&opt.config, "config", "walletx.yaml", "config file path")
	flag.StringVar(&opt.endpoint, "endpoint", "", "wallet rpc endpoint, overrides wallet.endpoint")
	flag.BoolVar(&opt.debug, "debug", false, "debug mode")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	v := initViper()
	logger := initLogger()

	app, err := setupApp(v, logger)
	if err != nil {
		logger.Error("setup failed", "err", err)
		os.Exit(1)
	}

	logger.Debug("walletx launched", "version", version, "commit", commit, "endpoint", v.GetString("wallet.endpoint"))

	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)

	if app.syncer != nil {
		g.Go(func() error {
			_ = app.syncer.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		defer stop()
		return app.cmd.Run(ctx, flag.Args())
	})

	if err := g.Wait(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cmd    *cmds.Cmd
	syncer *syncer.Syncer
	logger *slog.Logger
}

func initLogger() *slog.Logger {
	level := slog.LevelWarn
	if opt.debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func initViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(opt.config)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WALLETX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Panicln(err)
	}

	if opt.endpoint != "" {
		v.Set("wallet.endpoint", opt.endpoint)
	}

	return v
}
