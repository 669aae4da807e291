package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/securescan/internal/api"
	"github.com/khanhnv2901/securescan/internal/metrics"
	"github.com/khanhnv2901/securescan/internal/scanner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run SecureScan as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		maxJobs, _ := cmd.Flags().GetInt("max-jobs")

		if addr == "" {
			addr = cliConfig.Serve.Addr
		}
		if authToken == "" {
			authToken = cliConfig.Serve.AuthToken
		}
		if len(corsOrigins) == 0 {
			corsOrigins = cliConfig.Serve.CORSOrigins
		}
		rateLimit = intFlagOrConfig(cmd.Flags(), "rate-limit", rateLimit, cliConfig.Serve.RateLimit)
		rateBurst = intFlagOrConfig(cmd.Flags(), "rate-burst", rateBurst, cliConfig.Serve.RateBurst)
		maxJobs = intFlagOrConfig(cmd.Flags(), "max-jobs", maxJobs, cliConfig.Serve.MaxJobs)

		defer func() {
			_ = logger.Sync()
		}()

		m := metrics.New()
		engine := scanner.New(cliConfig.Scan.scannerConfig(), logger)
		jobManager := api.NewJobManager(engine, logger, m)
		jobManager.SetMaxJobs(maxJobs)

		server := api.NewServer(api.Config{
			Jobs:        jobManager,
			AuthToken:   authToken,
			Logger:      logger,
			CORSOrigins: corsOrigins,
			RateLimit:   rateLimit,
			RateBurst:   rateBurst,
			Metrics:     m.Handler(),
		})

		httpServer := &http.Server{
			Addr:         addr,
			Handler:      server,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("%s API server listening on %s\n", colorInfo("→"), addr)
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)
			logger.Info("shutdown_initiated", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Printf("%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Address for the API server (default 127.0.0.1:8080)")
	serveCmd.Flags().String("auth-token", "", "Optional shared secret for API requests")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	serveCmd.Flags().Int("max-jobs", 1000, "Max finished scans to retain in memory")
	rootCmd.AddCommand(serveCmd)
}
