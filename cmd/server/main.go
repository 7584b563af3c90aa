package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/server"
)

const Version = "1.0.0"

func main() {
	app := &cli.Command{
		Name:    "tcpchat-server",
		Usage:   "Line-oriented TCP broadcast chat server",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Accept chat connections until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a YAML, TOML or JSON config file",
					},
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "TCP address for chat clients",
						Value:   "127.0.0.1:5000",
					},
					&cli.StringFlag{
						Name:  "http",
						Usage: "Address for health, stats, metrics and WebSocket endpoints (disabled when empty)",
					},
					&cli.StringFlag{
						Name:  "backpressure",
						Usage: "Slow recipient policy: disconnect, drop_oldest or drop_newest",
						Value: string(server.PolicyDisconnect),
					},
					&cli.IntFlag{
						Name:  "max-sessions",
						Usage: "Maximum concurrent connections (0 for unlimited)",
					},
					&cli.StringFlag{
						Name:  "nats-url",
						Usage: "NATS server used to relay messages between instances",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "Log level (debug, info, warn, error)",
						Value: "info",
					},
					&cli.BoolFlag{
						Name:  "json-logs",
						Usage: "Emit JSON log lines instead of console output",
					},
					&cli.DurationFlag{
						Name:  "shutdown-timeout",
						Usage: "How long to wait for sessions to finish on shutdown",
						Value: 5 * time.Second,
					},
				},
				Action: runServe,
			},
			{
				Name:  "version",
				Usage: "Display version information",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Printf("tcpchat-server version %s\n", Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, c *cli.Command) error {
	// a missing .env file is normal
	_ = godotenv.Load()

	v := server.NewViper()
	bindFlags(v, c)

	cfg, err := server.LoadConfig(v, c.String("config"))
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.Component("main")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", Version).
		Str("listen", cfg.ListenAddr).
		Str("http", cfg.HTTPAddr).
		Msg("Starting tcpchat server")

	if err := server.New(*cfg).Run(ctx, c.Duration("shutdown-timeout")); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// bindFlags copies explicitly set flags over config file and environment values.
func bindFlags(v *viper.Viper, c *cli.Command) {
	if c.IsSet("listen") {
		v.Set("listen_addr", c.String("listen"))
	}
	if c.IsSet("http") {
		v.Set("http_addr", c.String("http"))
	}
	if c.IsSet("backpressure") {
		v.Set("backpressure", c.String("backpressure"))
	}
	if c.IsSet("max-sessions") {
		v.Set("max_sessions", int(c.Int("max-sessions")))
	}
	if c.IsSet("nats-url") {
		v.Set("relay.nats_url", c.String("nats-url"))
	}
	if c.IsSet("log-level") {
		v.Set("log.level", c.String("log-level"))
	}
	if c.IsSet("json-logs") {
		v.Set("log.pretty", !c.Bool("json-logs"))
	}
}
