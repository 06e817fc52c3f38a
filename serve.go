package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"skillgap/api"
	"skillgap/logger"
	"skillgap/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with periodic rescans and catalog refreshes",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides api.listen)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	listen := a.cfg.API.Listen
	if l, _ := cmd.Flags().GetString("listen"); l != "" {
		listen = l
	}

	sched := scheduler.New(scheduler.Config{RunOnStart: true}, log)
	jobs := []scheduler.Job{
		{
			Name:     "rescan",
			Interval: ParseDuration(a.cfg.Serve.RescanInterval, 0),
			Run: func(ctx context.Context) error {
				a.svc.Scan(ctx)
				return ctx.Err()
			},
		},
		{
			Name:     "refresh",
			Interval: ParseDuration(a.cfg.Serve.RefreshInterval, 0),
			Run: func(ctx context.Context) error {
				_, err := a.svc.Catalog(ctx, true)
				return err
			},
		},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			return fmt.Errorf("schedule %s: %w", j.Name, err)
		}
	}

	if a.cfg.API.AuthToken == "" {
		log.Warn("api.auth_disabled", logger.String("hint", "set api.auth_token or SKILLGAP_API_TOKEN"))
	}
	srv := api.NewServer(a.svc, sched, log, a.cfg.API.AuthToken)
	server := &http.Server{
		Addr:              listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Installs may run for minutes.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sched.Start()

	fatalCh := make(chan error, 1)
	go func() {
		log.Info("api.listening", logger.String("addr", listen))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api.listen_failed", logger.Err(err))
			fatalCh <- err
		}
	}()

	log.Info("skillgap.serving",
		logger.String("workspace", a.svc.Workspace()),
		logger.Int("sources", a.svc.Remote().Registry().Len()),
		logger.String("listen", listen),
	)

	var fatal error
	select {
	case <-cmd.Context().Done():
		log.Info("skillgap.shutdown")
	case fatal = <-fatalCh:
		log.Error("skillgap.fatal", logger.Err(fatal))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	sched.Stop()

	log.Info("skillgap.stopped")
	return fatal
}
