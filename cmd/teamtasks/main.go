package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/config"
	"github.com/fkhayef/teamtasks/internal/database"
	"github.com/fkhayef/teamtasks/internal/logging"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "teamtasks",
	Short:         "Team task assignment and tracking",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, importCmd, tokenCmd, userCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command needs
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
}

// setup loads configuration, builds the logger and opens a migrated database
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", zap.String("driver", cfg.DatabaseDriver))

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() {
	a.db.Close()
	_ = a.logger.Sync()
}
