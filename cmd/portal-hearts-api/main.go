package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plumbus-games/portal-hearts/backend/internal/auth"
	"github.com/plumbus-games/portal-hearts/backend/internal/characters"
	"github.com/plumbus-games/portal-hearts/backend/internal/config"
	"github.com/plumbus-games/portal-hearts/backend/internal/conversation"
	"github.com/plumbus-games/portal-hearts/backend/internal/database"
	"github.com/plumbus-games/portal-hearts/backend/internal/game"
	"github.com/plumbus-games/portal-hearts/backend/internal/logging"
	"github.com/plumbus-games/portal-hearts/backend/internal/saves"
	"github.com/plumbus-games/portal-hearts/backend/internal/server"
	"github.com/plumbus-games/portal-hearts/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-hearts-api",
		Short: "Portal Hearts dating sim backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path (empty runs in-memory)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")
	cmd.PersistentFlags().String("openrouter-api-key", "", "Server-wide OpenRouter API key (overrides env)")
	cmd.PersistentFlags().String("openrouter-base-url", defaults.GetString("openrouter.base_url"), "OpenRouter API base URL")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "openrouter.api_key", "openrouter-api-key")
	bindFlag(cmd, "openrouter.base_url", "openrouter-base-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "portal-hearts-auth",
		Audience:      "portal-hearts-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	catalog, err := characters.NewCatalog(characters.CatalogConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	// A failed seed leaves an empty catalog but the API still serves.
	if err := catalog.Seed(ctx); err != nil {
		logger.Warn("character seed failed", zap.Error(err))
	}

	gameService, err := game.NewService(game.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	saveService, err := saves.NewService(saves.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	gateway := conversation.NewOpenRouter(conversation.OpenRouterConfig{
		APIKey:   appConfig.OpenRouterAPIKey,
		BaseURL:  appConfig.OpenRouterBaseURL,
		Timeout:  appConfig.OpenRouterTimeout,
		Fallback: conversation.NewCanned(),
		Logger:   logger,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Users:   userService,
		Catalog: catalog,
		Game:    gameService,
		Saves:   saveService,
		Gateway: gateway,
		Tokens:  tokenManager,
		Clock:   time.Now,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
