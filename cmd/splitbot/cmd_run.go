package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/splitbot/broker"
	"github.com/rustyeddy/splitbot/broker/kabu"
	"github.com/rustyeddy/splitbot/broker/paper"
	"github.com/rustyeddy/splitbot/config"
	"github.com/rustyeddy/splitbot/engine"
	"github.com/rustyeddy/splitbot/ledger"
	"github.com/rustyeddy/splitbot/notify"
	"github.com/rustyeddy/splitbot/recon"
	"github.com/rustyeddy/splitbot/telemetry"
)

func newRunCmd(rc *rootConfig) *cobra.Command {
	var (
		paperMode   bool
		once        bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the decision loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(rc)

			cfg, err := config.Load(rc.ConfigPath)
			if err != nil {
				return err
			}

			store, err := ledger.NewSQLite(cfg.Store.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			book, err := ledger.NewBook(store, cfg.Strategy.TierCount, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var brk broker.Broker
			var clock engine.MarketClock
			if paperMode {
				brk = paper.NewEngine(100_000_000)
				clock = engine.AlwaysOpen{}
				log.Info().Msg("paper mode: in-memory broker, market always open")
			} else {
				kcfg, err := kabu.LoadConfig()
				if err != nil {
					return err
				}
				brk = kabu.NewAdapter(kcfg, log)
				clock = sessionClock(cfg)

				// Execution notices are informational; decisions run off the
				// per-cycle holdings query.
				stream := kabu.NewStream(kcfg, log)
				go func() {
					for notice := range stream.Run(ctx) {
						log.Info().Str("order_id", notice.OrderID).Str("symbol", notice.Symbol).
							Float64("qty", notice.Qty).Float64("price", notice.Price).
							Msg("execution notice")
					}
				}()
			}

			var notifier notify.Notifier = notify.LogNotifier{Log: log}
			if cfg.Notify.WebhookURL != "" {
				notifier = notify.Multi{
					notify.LogNotifier{Log: log},
					notify.NewWebhook(cfg.Notify.WebhookURL, log),
				}
			}

			metrics := telemetry.New(prometheus.DefaultRegisterer)
			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						log.Warn().Err(err).Msg("metrics server stopped")
					}
				}()
			}

			eng := engine.New(cfg, book, recon.New(book, log), brk, notifier, metrics, clock, log)

			if once {
				eng.RunCycle(ctx, time.Now())
				return nil
			}
			err = eng.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&paperMode, "paper", false, "use the in-memory paper broker")
	cmd.Flags().BoolVar(&once, "once", false, "run one cycle and exit")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9105)")
	return cmd
}

func sessionClock(cfg *config.Config) engine.MarketClock {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		loc = time.Local
	}
	return engine.SessionClock{
		OpenHM:  cfg.Schedule.MarketOpen,
		CloseHM: cfg.Schedule.MarketClose,
		Loc:     loc,
	}
}
