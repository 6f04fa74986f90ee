package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/database"
	"github.com/anicoll/counter-dashboard/internal/pkg/database/migration"
	"github.com/anicoll/counter-dashboard/internal/pkg/device"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
	"github.com/anicoll/counter-dashboard/pkg/hasher"
)

const generatedPasswordBytes = 12

// MigrateCommand applies the embedded schema migrations.
func MigrateCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if err := config.Require("DATABASE_URL", cfg.Backend.DatabaseURL); err != nil {
		return err
	}
	if err := migration.Migrate(cfg.Backend.DatabaseURL); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

// AddUserCommand creates a dashboard user. Without --password a random one
// is generated and printed once.
func AddUserCommand(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	db, err := database.Connect(c.Context, cfg.Backend.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	password := c.String("password")
	generated := password == ""
	if generated {
		if password, err = hasher.GenerateToken(generatedPasswordBytes); err != nil {
			return err
		}
	}

	user, err := auth.NewManager(db, cfg.Auth).CreateUser(c.Context, c.String("email"), c.String("name"), password)
	if err != nil {
		return err
	}
	zap.L().Info("user created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	if generated {
		fmt.Fprintf(c.App.Writer, "generated password for %s: %s\n", user.Email, password)
	}
	return nil
}

// SimulateCommand runs the device simulator against the configured backend.
func SimulateCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := registerBackends(); err != nil {
		return err
	}
	store, err := realtime.Open(c.Context, cfg.Backend)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("device simulator started", zap.Duration("interval", cfg.Device.Interval))
	return device.New(store, cfg.Device).Run(c.Context)
}
