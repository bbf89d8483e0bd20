package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/internal/scheduler"
	"github.com/ogulcanaydogan/spend-guardian/internal/server"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve the HTTP API and run checks on a schedule",
	Long: `Run the HTTP API together with the periodic checks and the daily goal
resolver. Intervals come from the clock table, so clock.debug makes the
whole loop run in seconds.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = a.cfg.Server.Listen
	}
	readTimeout, writeTimeout, err := a.cfg.ServerTimeouts()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sched := scheduler.New(a.engine, a.clock, a.logger)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()

	apiServer := server.NewServer(a.engine, sched.Trigger, a.logger)
	srv := &http.Server{
		Addr:         listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("daemon started", "listen", listen, "debug_clock", a.clock.Debug())
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	case sig := <-quit:
		a.logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		runErr = srv.Shutdown(shutdownCtx)
	}

	cancel()
	<-schedDone
	return runErr
}
