package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/auth"
	"github.com/tempvox/tempvox/internal/config"
	"github.com/tempvox/tempvox/internal/dispatch"
	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/platform/gateway"
	"github.com/tempvox/tempvox/internal/registry"
	"github.com/tempvox/tempvox/internal/rooms"
	"github.com/tempvox/tempvox/internal/store"
	"github.com/tempvox/tempvox/internal/store/sqlite"
	transporthttp "github.com/tempvox/tempvox/internal/transport/http"
	"github.com/tempvox/tempvox/internal/voice"
	"github.com/tempvox/tempvox/internal/voice/livekit"
)

// App wires the room lifecycle service to its store, gateway, and
// diagnostics listener.
type App struct {
	cfg        config.Config
	store      store.Store
	gateway    *gateway.Gateway
	dispatcher *dispatch.Dispatcher
	diag       *stdhttp.Server
	log        *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	reg := registry.New(st)

	confirmSecret := []byte(cfg.Confirm.Secret)
	if len(confirmSecret) == 0 {
		// Confirmations only need to survive their own TTL, so an ephemeral
		// secret is fine when none is configured.
		confirmSecret = randomSecret()
		logger.Warn().Msg("confirm.secret not set, using an ephemeral one")
	}
	confirmer := auth.NewConfirmer(confirmSecret, "tempvox", cfg.Confirm.TTL)

	var issuer voice.Issuer = voice.Disabled{}
	if cfg.Voice.APIKey != "" {
		issuer = livekit.New(cfg.Voice.APIKey, cfg.Voice.APISecret, cfg.Voice.URL)
		logger.Info().Str("url", cfg.Voice.URL).Msg("voice grants enabled")
	}

	gw := gateway.New(cfg.Gateway.URL, cfg.Gateway.Token, logger)

	admins := make([]platform.UserID, 0, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins = append(admins, platform.UserID(a))
	}

	svc := rooms.NewService(rooms.Options{
		Registry:    reg,
		Client:      gw,
		Voice:       issuer,
		Confirmer:   confirmer,
		Stats:       rooms.NewStats(),
		ServiceUser: platform.UserID(cfg.ServiceUser),
		Admins:      admins,
		Logger:      logger,
	})

	disp := dispatch.New(svc, cfg.Gateway.QueueSize, logger)

	var diag *stdhttp.Server
	if cfg.Diag.Addr != "" {
		diag = transporthttp.NewServer(cfg.Diag, reg, svc.Stats(), svc.Presence(), logger)
	}

	return &App{
		cfg:        cfg,
		store:      st,
		gateway:    gw,
		dispatcher: disp,
		diag:       diag,
		log:        logger,
	}, nil
}

// Run starts the pipeline and blocks until context cancellation. The gateway
// connection is re-dialed with a fixed backoff whenever it drops.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.dispatcher.Start(ctx)

	diagErr := make(chan error, 1)
	if a.diag != nil {
		go func() {
			a.log.Info().Str("addr", a.diag.Addr).Msg("diagnostics listening")
			if err := a.diag.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
				diagErr <- err
				return
			}
			diagErr <- nil
		}()
	}

	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		for {
			err := a.gateway.Run(ctx, a.dispatcher)
			if ctx.Err() != nil {
				return
			}
			a.log.Error().Err(err).
				Dur("backoff", a.cfg.Gateway.Backoff).
				Msg("gateway connection lost, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.cfg.Gateway.Backoff):
			}
		}
	}()

	var runErr error
	select {
	case err := <-diagErr:
		runErr = err
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer shutdownCancel()

	if a.diag != nil {
		a.log.Info().Msg("shutting down diagnostics server")
		if err := a.diag.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

	<-gatewayDone
	a.dispatcher.Wait()
	a.cleanup()
	return runErr
}

// cleanup closes the store.
func (a *App) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Info().Msg("store closed")
	}
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable for token signing.
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}
