package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"farmfleet/internal/core/config"
	"farmfleet/internal/core/container"
	"farmfleet/internal/core/logger"
	"farmfleet/internal/core/routes"
	"farmfleet/internal/database"
	"farmfleet/pkg/roles"
	"farmfleet/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.NewLoggerFor(cfg.AppEnv)
		defer log.Sync() //nolint:errcheck

		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		migrate, _ := cmd.Flags().GetBool("migrate")
		if migrate {
			if err := migrateAll(cfg, cfg.MigrationsDir, log); err != nil {
				return err
			}
		}

		store, err := database.OpenStore(cfg.DatabaseURLs, cfg.DefaultDBEnvironment, log)
		if err != nil {
			return fmt.Errorf("open databases: %w", err)
		}

		app, err := container.NewAppContainer(cmd.Context(), cfg, store, log)
		if err != nil {
			_ = store.Close()
			return err
		}

		server := &http.Server{
			Addr:              cfg.AppHost,
			Handler:           routes.NewRouter(app),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			log.Info("Starting server", zap.String("addr", cfg.AppHost), zap.Strings("environments", store.Environments()))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				_ = app.Shutdown()
				return fmt.Errorf("serve: %w", err)
			}
		case <-ctx.Done():
		}

		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
		return app.Shutdown()
	},
}

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run migrations manually.",
	Long:  `Applies pending migrations to every configured database environment.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		migrationDir, _ := cmd.Flags().GetString("dir")
		if migrationDir == "" {
			migrationDir = cfg.MigrationsDir
		}
		log := logger.NewLoggerFor(cfg.AppEnv)

		env, _ := cmd.Flags().GetString("env")
		if env == "" {
			return migrateAll(cfg, migrationDir, log)
		}
		dsn, ok := cfg.DatabaseURLs[strings.ToLower(env)]
		if !ok {
			return fmt.Errorf("no database configured for environment %q", env)
		}
		return database.RunMigrations(dsn, migrationDir, log)
	},
}

var TokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a signed token for local tooling.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		auth, err := security.NewAuthenticator(cfg.JWTSecret)
		if err != nil {
			return err
		}

		role, _ := cmd.Flags().GetString("role")
		if !roles.Role(role).IsValid() {
			return fmt.Errorf("unknown role %q", role)
		}
		username, _ := cmd.Flags().GetString("username")

		token, err := auth.GenerateJWT(args[0], role, username)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func migrateAll(cfg *config.Config, dir string, log *zap.Logger) error {
	for env, dsn := range cfg.DatabaseURLs {
		log.Info("Migrating database", zap.String("environment", env))
		if err := database.RunMigrations(dsn, dir, log); err != nil {
			return fmt.Errorf("migrate %s: %w", env, err)
		}
	}
	return nil
}

func Execute(ctx context.Context) {
	rootCmd := &cobra.Command{
		Use:   "farmfleet",
		Short: "Farm QR code lifecycle service",
	}

	ServeCmd.Flags().Bool("migrate", false, "Apply migrations before serving")
	MigrateCmd.Flags().String("dir", "", "Directory containing the migration files (defaults to MIGRATIONS_DIR)")
	MigrateCmd.Flags().String("env", "", "Only migrate this database environment")
	TokenCmd.Flags().String("role", string(roles.User), "Role claim: user, moderator or admin")
	TokenCmd.Flags().String("username", "", "Username claim")
	rootCmd.AddCommand(ServeCmd, MigrateCmd, TokenCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
