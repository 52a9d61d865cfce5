package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dkeye/Relay/internal/adapters/archive"
	router "github.com/dkeye/Relay/internal/adapters/http"
	"github.com/dkeye/Relay/internal/adapters/identity"
	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewServeCommand(configPath *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(*configPath, debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func serve(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if debug || cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	opts := core.RoomOptions{HistoryLimit: cfg.HistoryLimit, Policy: app.SimplePolicy{}}
	deps := router.Deps{}

	var store *archive.Store
	if cfg.Archive.Enabled {
		store, err = archive.Open(cfg.Archive.DSN, cfg.Archive.Buffer)
		if err != nil {
			return err
		}
		opts.Sink = store
		deps.Archive = store
		log.Info().Str("module", "main").Str("dsn", cfg.Archive.DSN).Msg("event archive enabled")
	}

	rooms := app.NewRoomRegistry(opts)
	tokens := identity.NewJWTProvider(cfg.JWT.Secret, cfg.JWT.Issuer)
	ident := identity.Chain{tokens, identity.SessionProvider{}}

	deps.Orch = &orch.Orchestrator{Rooms: rooms, AllowOwnerless: cfg.Moderation.AllowOwnerless}
	deps.Identity = ident
	deps.Tokens = tokens
	deps.Signal = signal.NewSignalWSController(
		rooms,
		ident,
		signal.NewRoomRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Interval),
		signal.Settings{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait(),
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		},
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(cfg, deps),
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			// Hijacked websockets are not tracked by http.Server, so rooms close them.
			"rooms": func(ctx context.Context) error {
				rooms.CloseAll(domain.ReasonShutdown)
				if store != nil {
					return store.Close(ctx)
				}
				return nil
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("Server exited")
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with code %d", exitCode)
	}
	return nil
}
