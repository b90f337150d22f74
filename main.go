// SaveKit fetches CGM readings from Nightscout, makes short-horizon
// glucose forecasts with an ensemble of models, and reconciles each
// forecast against the reading that arrives near its target time.
//
// Usage:
//   savekit run                 start the pipeline loop
//   savekit cycle               run a single pipeline pass
//   savekit reconcile --days 7  re-run matching over stored forecasts
//   savekit export --out f.csv  write the reconciled history as CSV
//   savekit chart --out f.png   render readings and forecasts
//   savekit sweep               prune data past the retention window
//   savekit status              check server connectivity
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/alerts"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/app"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/config"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/forecast"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/nightscout"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/reconcile"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/store"
)

var version = "dev"

func main() {
	cliApp := &cli.App{
		Name:    "savekit",
		Usage:   "Glucose forecast pipeline for Nightscout",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{"SAVEKIT_DEBUG"},
			},
		},
		Before: func(c *cli.Context) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			level, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
			if err != nil {
				level = zerolog.InfoLevel
			}
			if c.Bool("debug") {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			cycleCommand(),
			reconcileCommand(),
			exportCommand(),
			chartCommand(),
			sweepCommand(),
			statusCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildService assembles the pipeline stages from configuration
func buildService() (*app.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireNightscout(); err != nil {
		return nil, nil, err
	}

	// The reconciler reads observations straight from the store, so the
	// concrete store doubles as the observation source.
	var (
		st  store.Store
		src reconcile.ObservationSource
	)
	switch cfg.StoreBackend {
	case "memory":
		m := store.NewMemory()
		st, src = m, m
	default:
		s, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening store: %w", err)
		}
		st, src = s, s
	}

	client := nightscout.NewClient(nightscout.ClientOptions{
		BaseURL:   cfg.NightscoutURL,
		APISecret: cfg.APISecret,
		APIToken:  cfg.APIToken,
		UseToken:  cfg.UseToken,
	})

	engine, err := forecast.NewEngine(forecast.DefaultScaler(), cfg.ModelWindow, forecast.DefaultModels(forecast.DefaultSteps))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	var alertMgr *alerts.Manager
	if cfg.AlertsEnabled {
		alertMgr = alerts.NewManager(alerts.Thresholds{
			UrgentLow:  cfg.UrgentLow,
			TargetLow:  cfg.TargetLow,
			TargetHigh: cfg.TargetHigh,
			UrgentHigh: cfg.UrgentHigh,
		}, cfg.RepeatAlert())
	}

	svc := app.New(cfg, client, st, engine, reconcile.NewReconciler(src, reconcile.DefaultConfig()), alertMgr)
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing store")
		}
	}
	return svc, cleanup, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the fetch-forecast-reconcile loop",
		Action: func(c *cli.Context) error {
			svc, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func cycleCommand() *cli.Command {
	return &cli.Command{
		Name:  "cycle",
		Usage: "Run a single pipeline pass and exit",
		Action: func(c *cli.Context) error {
			svc, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			return svc.Cycle(context.Background())
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Re-run matching over stored forecasts",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Value: 7,
				Usage: "How many days of forecasts to revisit",
			},
		},
		Action: func(c *cli.Context) error {
			svc, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			since := time.Now().AddDate(0, 0, -c.Int("days"))
			matched, err := svc.Reconcile(context.Background(), since)
			if err != nil {
				return err
			}

			fmt.Printf("Newly matched forecasts: %d\n", matched)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the reconciled forecast history as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file (default stdout)",
			},
			&cli.IntFlag{
				Name:  "days",
				Value: 7,
				Usage: "How many days of history to export",
			},
		},
		Action: func(c *cli.Context) error {
			svc, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			var out *os.File = os.Stdout
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				defer f.Close()
				out = f
			}

			since := time.Now().AddDate(0, 0, -c.Int("days"))
			return svc.Export(context.Background(), out, since)
		},
	}
}

func chartCommand() *cli.Command {
	return &cli.Command{
		Name:  "chart",
		Usage: "Render readings and forecasts to a PNG report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "savekit.png",
				Usage:   "Output file",
			},
			&cli.IntFlag{
				Name:  "hours",
				Value: 24,
				Usage: "How many hours of history to render",
			},
		},
		Action: func(c *cli.Context) error {
			svc, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			since := time.Now().Add(-time.Duration(c.Int("hours")) * time.Hour)
			return svc.Chart(context.Background(), c.String("out"), since)
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Prune readings and forecasts past the retention window",
		Action: func(c *cli.Context) error {
			svc, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			readings, forecasts, err := svc.Sweep(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("Pruned %d readings and %d forecasts\n", readings, forecasts)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Check Nightscout connectivity and show the current entry",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireNightscout(); err != nil {
				return err
			}

			client := nightscout.NewClient(nightscout.ClientOptions{
				BaseURL:   cfg.NightscoutURL,
				APISecret: cfg.APISecret,
				APIToken:  cfg.APIToken,
				UseToken:  cfg.UseToken,
			})
			ctx := context.Background()

			status, err := client.GetStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Server:  %s (%s)\n", status.Name, status.Version)
			fmt.Printf("Status:  %s\n", status.Status)

			entry, err := client.GetCurrentEntry(ctx)
			if err != nil {
				return err
			}
			obs := entry.Observation()
			fmt.Printf("Glucose: %.1f mmol/L (%d mg/dL) %s at %s\n",
				obs.Mmol, entry.SGV, entry.TrendArrow(), entry.Time().Format("15:04"))
			return nil
		},
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
