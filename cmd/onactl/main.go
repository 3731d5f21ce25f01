package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/repository"
	"github.com/ona-asso/ona-api/internal/service"
	"github.com/ona-asso/ona-api/pkg/config"
	"github.com/ona-asso/ona-api/pkg/database"
	"github.com/ona-asso/ona-api/pkg/logger"
)

// App holds the dependencies shared by commands.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	migrator *database.Migrator
	logger   *zap.Logger
	ctx      context.Context
}

var app *App

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "onactl",
		Short: "ONA operations CLI",
		Long:  `Operator commands for the ONA API: schema migrations, calendar provisioning and token issuance.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app == nil {
				return
			}
			if app.db != nil {
				_ = app.db.Close()
			}
			_ = app.logger.Sync()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(provisionCalendarsCmd())
	rootCmd.AddCommand(createVolunteerCmd())
	rootCmd.AddCommand(issueTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initApp(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	migrator, err := database.NewMigrator(db.DB, logr)
	if err != nil {
		_ = db.Close()
		return err
	}
	app = &App{cfg: cfg, db: db, migrator: migrator, logger: logr, ctx: ctx}
	return nil
}

func (a *App) volunteerService() *service.VolunteerService {
	calendars := service.NewCalendarService(repository.NewCalendarRepository(a.db), nil, nil, a.logger)
	return service.NewVolunteerService(repository.NewVolunteerRepository(a.db), calendars, a.db, nil, a.logger)
}

func (a *App) authService() *service.AuthService {
	return service.NewAuthService(repository.NewVolunteerRepository(a.db), a.logger, service.AuthConfig{
		AccessTokenSecret: a.cfg.JWT.Secret,
		AccessTokenExpiry: a.cfg.JWT.Expiration,
		Issuer:            a.cfg.JWT.Issuer,
	})
}
