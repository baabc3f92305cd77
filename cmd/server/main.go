// Command server runs the five-in-a-row session server: TCP and WebSocket
// clients, the spectator HTTP API and the deadline sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"gomoku/internal/account"
	"gomoku/internal/api"
	"gomoku/internal/cluster"
	"gomoku/internal/config"
	"gomoku/internal/network"
	"gomoku/internal/session"
	"gomoku/internal/store"
)

const shutdownGrace = 10 * time.Second

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:   "gomoku-server",
		Usage:  "five-in-a-row session server",
		Flags:  config.Flags(),
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cmd *cli.Command) (err error) {
	cfg := config.FromCommand(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	stores, err := store.Open(ctx, cfg.Store(), log.Named("store"))
	if err != nil {
		return err
	}

	sc := cfg.Session()
	accounts := account.NewGateway(stores.Accounts, stores.History, cfg.StartingCredits, log.Named("account"))
	registry := session.NewRegistry(sc, accounts, stores.History, stores.Live, stores.Events, log.Named("registry"))
	if _, err := registry.Restore(ctx); err != nil {
		log.Warn("live games not restored", zap.Error(err))
	}

	hub := network.NewHub(log.Named("hub"))
	matchmaker := session.NewMatchmaker(registry, log.Named("matchmaker"))
	invitations := session.NewInvitations(sc, hub, registry, log.Named("invitations"))
	handler := session.NewHandler(sc, accounts, registry, matchmaker, invitations, hub, log.Named("handler"))
	sweeper := session.NewSweeper(sc, registry, invitations, hub, log.Named("sweeper"))
	srv := network.NewServer(hub, handler, log.Named("network"))

	health := cluster.NewHealthAggregator(2 * time.Second)
	for name, check := range stores.Checks() {
		health.AddCheck(name, check)
	}
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Health:   health.Handler(),
			WS:       srv.ServeWS,
			Games:    registry,
			Rankings: accounts,
			Log:      log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := sweeper.Start(ctx); err != nil {
		return abort(fmt.Errorf("start sweeper: %w", err), stores)
	}

	errc := make(chan error, 2)
	if cfg.TCPAddr != "" {
		go func() { errc <- srv.ListenTCP(ctx, cfg.TCPAddr) }()
	}
	if cfg.HTTPAddr != "" {
		go func() {
			log.Info("http listener started", zap.String("addr", cfg.HTTPAddr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	deregister := func() error { return nil }
	if cfg.ConsulAddr != "" {
		deregister = registerConsul(cfg, log.Named("cluster"))
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errc:
		log.Error("listener stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	var errs *multierror.Error
	errs = multierror.Append(errs, deregister())
	errs = multierror.Append(errs, sweeper.Stop())
	errs = multierror.Append(errs, httpSrv.Shutdown(shutdownCtx))
	errs = multierror.Append(errs, srv.Shutdown(shutdownCtx))
	errs = multierror.Append(errs, stores.Close())
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// abort releases what run opened before failing and reports every error.
func abort(err error, closers ...io.Closer) error {
	errs := multierror.Append(nil, err)
	for _, c := range closers {
		errs = multierror.Append(errs, c.Close())
	}
	return errs.ErrorOrNil()
}

// registerConsul is best effort: the server runs without it.
func registerConsul(cfg config.Config, log *zap.Logger) func() error {
	nop := func() error { return nil }
	client, err := cluster.NewConsulClient(cfg.ConsulAddr, log)
	if err != nil {
		log.Warn("consul unavailable, not registering", zap.Error(err))
		return nop
	}
	deregister, err := cluster.Register(client, cluster.Service{
		Name:       cfg.ServiceName,
		TCPPort:    port(cfg.TCPAddr),
		HealthPort: port(cfg.HTTPAddr),
	}, log)
	if err != nil {
		log.Warn("consul registration failed", zap.Error(err))
		return nop
	}
	return deregister
}

func port(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(p)
	return n
}
