package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sablehq/go-session-server/internal/config"
	"github.com/sablehq/go-session-server/postgres"
	"github.com/sablehq/go-session-server/server"
	"github.com/sablehq/go-session-server/session"
	"github.com/sablehq/go-session-server/social"
	"github.com/sablehq/go-session-server/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	setupLogging(cfg)
	displayAppname(cfg.App.Name)

	ctx := context.Background()

	db, err := postgres.New(ctx, postgres.Config{
		DSN:               cfg.DB.DSN,
		MaxConns:          cfg.DB.MaxConns,
		MinConns:          cfg.DB.MinConns,
		MaxConnLifetime:   cfg.DB.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DB.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DB.HealthCheckPeriod,
		QueryTimeout:      cfg.DB.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("postgres.New: %w", err)
	}
	defer db.Close()

	issuer, err := token.NewIssuer(cfg.Auth.AdminSecret, cfg.Auth.UserSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return fmt.Errorf("token.NewIssuer: %w", err)
	}

	principals := postgres.NewPrincipalRepo(db)
	sessions, err := session.NewService(session.Repos{
		Principals: principals,
		Tokens:     postgres.NewRefreshTokenRepo(db),
	}, issuer)
	if err != nil {
		return fmt.Errorf("session.NewService: %w", err)
	}

	google, err := newGoogleBridge(ctx, cfg)
	if err != nil {
		return fmt.Errorf("social.NewBridge: %w", err)
	}

	srv, err := server.New(cfg, sessions, principals, google)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: ":" + cfg.App.Port, Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newGoogleBridge returns nil when the provider credentials are absent;
// the server then serves the password routes only.
func newGoogleBridge(ctx context.Context, cfg *config.Config) (*social.Bridge, error) {
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		log.Info().Msg("Google credentials not configured, social sign-in disabled")
		return nil, nil
	}
	return social.NewBridge(ctx, social.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	})
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
