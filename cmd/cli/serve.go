package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	api "sage-backend/cmd/api"
	"sage-backend/internal/mail/domain"
	"sage-backend/pkg/database"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.NewPostgresConnection(cfg.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if db != nil {
			if err := db.AutoMigrate(&domain.ThreadSummary{}); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		} else {
			log.Warn().Msg("DATABASE_URL not set, summary cache disabled")
		}

		handler, err := api.NewHandler(cfg, db, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- handler.Start(":" + cfg.Port)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return handler.Shutdown(shutdownCtx)
	},
}
