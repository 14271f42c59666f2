package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/api"
	"github.com/newthinker/stockpick/internal/app"
	"github.com/newthinker/stockpick/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stockpick API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var opts []app.Option
	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		opts = append(opts, app.WithMetrics(reg))
	}

	a, log, err := bootstrap(ctx, opts...)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	deps := api.Dependencies{Service: a, Metrics: reg}
	if store := a.Runs(); store != nil {
		deps.Runs = store
	}
	notifiers, err := buildNotifiers(cfg.Notifiers)
	if err != nil {
		return fmt.Errorf("notifiers: %w", err)
	}
	if notifiers != nil {
		deps.Notifier = notifiers
		log.Info("job notifications enabled", zap.Strings("notifiers", notifiers.Names()))
	}

	sc := a.Config().Server
	server := api.NewServer(api.Config{
		Host:        sc.Host,
		Port:        sc.Port,
		APIKey:      sc.APIKey,
		MaxJobs:     sc.MaxJobs,
		JobTTL:      time.Duration(sc.JobTTLHours) * time.Hour,
		JobTimeout:  time.Duration(sc.JobTimeoutMinutes) * time.Minute,
		MetricsPath: a.Config().Metrics.Path,
	}, deps, log)

	if sc.APIKey == "" {
		log.Warn("server.api_key is empty, API authentication disabled")
	}
	log.Info("starting stockpick server",
		zap.String("host", sc.Host),
		zap.Int("port", sc.Port),
		zap.Bool("metrics", reg != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down stockpick server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
