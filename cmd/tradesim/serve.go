package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tradesim/internal/account"
	"tradesim/internal/gateway"
	"tradesim/internal/ledger"
	"tradesim/internal/market"
	"tradesim/internal/metrics"
	"tradesim/internal/model"
	"tradesim/internal/notification"
	redisstore "tradesim/internal/store/redis"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the market clocks, the REST API and the snapshot stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// ---- metrics & health ----
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			prom := metrics.New(reg)
			health := metrics.NewHealthStatus(cfg.StoreBackend, 5*cfg.TickInterval)
			metricsSrv := metrics.NewServer(cfg.MetricsAddr, reg, health)
			metricsSrv.Start()

			// ---- storage ----
			be, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer be.Close()

			sinks := []model.SnapshotSink{healthSink{health}}
			if be.publisher != nil {
				be.publisher.OnDrop = func(kind model.Kind) {
					prom.SnapshotsDropped.WithLabelValues(string(kind)).Inc()
				}
				watchBreaker(prom, "publisher", be.publisher.Breaker())
				sinks = append(sinks, be.publisher)
			}
			if rs, ok := be.store.(*redisstore.AccountStore); ok {
				watchBreaker(prom, "accounts", rs.Breaker())
			}
			health.StartLivenessChecker(ctx, be.rdb, be.sqlDB, 10*time.Second)

			// ---- market ----
			mkt, err := market.New(market.Config{
				Interval:    cfg.TickInterval,
				EquityCount: cfg.EquityCount,
				Seed:        cfg.Seed,
				Sinks:       sinks,
				Observer:    prom,
			})
			if err != nil {
				return err
			}

			// ---- accounts ----
			svc := account.NewService(be.store, mkt,
				ledger.New(ledger.WithMinWithdrawal(cfg.MinWithdrawal)),
				account.Config{
					Currency:       cfg.Currency,
					OpeningBalance: cfg.OpeningBalance,
					Observer:       prom,
					Notifier:       notifierFor(cfg.WebhookURL),
				})

			// ---- gateway ----
			hub := gateway.NewHub()
			hub.OnDrop = prom.WSMessagesDropped.Inc
			hub.OnClients = func(n int) { prom.WSClients.Set(float64(n)) }

			deps := gateway.Deps{
				Market:   mkt,
				Accounts: svc,
				Hub:      hub,
				Observer: prom,
				Health:   health,
			}
			if be.journal != nil {
				deps.Journal = be.journal
			}
			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           gateway.NewServer(deps).Routes(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			var feeds []<-chan model.Snapshot
			for _, kind := range model.Kinds() {
				clock, _ := mkt.Clock(kind)
				feeds = append(feeds, clock.Subscribe())
			}
			hubDone := make(chan struct{})
			go func() {
				hub.Run(ctx, feeds...)
				close(hubDone)
			}()
			marketDone := make(chan struct{})
			go func() {
				mkt.Run(ctx)
				close(marketDone)
			}()

			serveErr := make(chan error, 1)
			go func() {
				slog.Info("api listening", "addr", cfg.ListenAddr, "store", cfg.StoreBackend,
					"tick_interval", cfg.TickInterval, "equities", cfg.EquityCount)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			// ---- wait for shutdown ----
			select {
			case <-ctx.Done():
				slog.Info("shutdown signal received, cleaning up")
			case err := <-serveErr:
				if err != nil {
					slog.Error("api server failed", "error", err)
					stop()
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("api shutdown", "error", err)
			}
			<-marketDone
			<-hubDone
			hub.Close()
			metricsSrv.Stop(shutdownCtx)
			slog.Info("shutdown complete")
			return nil
		},
	}
}

// healthSink records each universe's last tick for /healthz.
type healthSink struct{ h *metrics.HealthStatus }

func (s healthSink) PublishSnapshot(_ context.Context, snap model.Snapshot) error {
	s.h.SetLastTick(snap.Kind, snap.At)
	return nil
}

func watchBreaker(prom *metrics.Metrics, name string, cb *redisstore.CircuitBreaker) {
	cb.OnStateChange = func(from, to redisstore.State) {
		prom.BreakerStateChange(name, int(to), to == redisstore.StateOpen)
	}
}

func notifierFor(url string) notification.Notifier {
	if url == "" {
		return notification.LogNotifier{}
	}
	return notification.NewWebhookNotifier(url)
}
