package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"expiry-notifier/internal/api"
	"expiry-notifier/internal/config"
	"expiry-notifier/internal/db"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/kafka"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/notification"
	"expiry-notifier/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the cron and Kafka triggers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			sched := scheduler.New(a.svc, a.cfg.Schedule.Location, a.logger)
			if err := sched.AddDaily(a.cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			var wg sync.WaitGroup
			if a.cfg.Kafka.Broker != "" {
				consumer := kafka.NewConsumer([]string{a.cfg.Kafka.Broker}, a.cfg.Kafka.Topic, a.cfg.Kafka.GroupID, a.svc)
				consumer.Start(ctx, &wg)
				defer consumer.Close()
				a.logger.Infof("Kafka consumer initialized with topic: %s", a.cfg.Kafka.Topic)
			}

			var audit api.AuditStore
			if a.db != nil {
				audit = a.db
			}
			router := api.NewRouter(api.NewHandler(a.svc, audit, a.hub, a.logger), a.logger, a.cfg)
			srv := &http.Server{Addr: a.cfg.API.Port, Handler: router}
			go func() {
				a.logger.Infof("API started on %s", a.cfg.API.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Errorf("API run failed: %v", err)
					stop()
				}
			}()

			<-ctx.Done()
			a.logger.Infof("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Errorf("API shutdown failed: %v", err)
			}
			wg.Wait()
			a.logger.Infof("Service stopped")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var force bool
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one notification pass now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			today, err := resolveDay(a.svc, date)
			if err != nil {
				return err
			}
			rep, err := a.svc.Run(cmd.Context(), today, notification.Options{Force: force, Trigger: "cli"})
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Run even if today's pass already completed")
	cmd.Flags().StringVar(&date, "date", "", "Evaluate as of this day (YYYY-MM-DD)")
	return cmd
}

func previewCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the digests a pass would send, without sending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			today, err := resolveDay(a.svc, date)
			if err != nil {
				return err
			}
			rep, err := a.svc.Run(cmd.Context(), today, notification.Options{DryRun: true, Trigger: "cli"})
			if err != nil {
				return err
			}
			if len(rep.Previews) == 0 {
				fmt.Println("Nothing to send.")
				return nil
			}
			for _, p := range rep.Previews {
				fmt.Printf("To: %s\nSubject: %s\n\n%s\n", p.Recipient, p.Subject, p.Body)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Evaluate as of this day (YYYY-MM-DD)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return fmt.Errorf("%w: [DB_DSN]", config.ErrMissingConfig)
			}
			logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer logger.Close()

			d, err := db.New(cmd.Context(), cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer d.Close()
			return d.Migrate(logger)
		},
	}
}

func resolveDay(svc *notification.Service, date string) (time.Time, error) {
	today := svc.Today()
	if date == "" {
		return today, nil
	}
	d, err := time.ParseInLocation(expiry.DayLayout, date, today.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
	}
	return d, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
