package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/counter-dashboard/cmd"
)

func main() {
	app := &cli.App{
		Name:   "counter-dashboard",
		Usage:  "live product counter dashboard",
		Action: cmd.ServeCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				EnvVars: []string{"ENV_FILE"},
				Value:   ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the dashboard",
				Action: cmd.ServeCommand,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: cmd.MigrateCommand,
			},
			{
				Name:   "add-user",
				Usage:  "create a dashboard user",
				Action: cmd.AddUserCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Required: true,
					},
					&cli.StringFlag{
						Name: "name",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "generated when empty",
					},
				},
			},
			{
				Name:   "simulate",
				Usage:  "run the counting device simulator",
				Action: cmd.SimulateCommand,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
