// Command xkmonitor is the CLI harness: it wires every internal component
// into the full object graph and drives the scheduler until it is told to
// stop, grounded on claude-ops's cobra-root-command + flag/env binding +
// signal-handling shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joho/godotenv"

	"github.com/xkmonitor/core/internal/catalog"
	"github.com/xkmonitor/core/internal/config"
	"github.com/xkmonitor/core/internal/controlapi"
	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/grab"
	"github.com/xkmonitor/core/internal/instrumentation"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/login"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/monitor"
	"github.com/xkmonitor/core/internal/notify"
	"github.com/xkmonitor/core/internal/ocr"
	"github.com/xkmonitor/core/internal/recovery"
	"github.com/xkmonitor/core/internal/scheduler"
	"github.com/xkmonitor/core/internal/session"
	"github.com/xkmonitor/core/internal/swap"
	"github.com/xkmonitor/core/internal/wishlist"
)

// joinTimeout bounds how long Run waits for every spawned monitor goroutine
// to return once the scheduler has been told to stop.
const joinTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "xkmonitor",
		Short: "Course-enrollment monitor-and-grab engine",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("base-url", "", "enrollment portal base URL")
	f.Duration("connect-timeout", 10*time.Second, "HTTP connect timeout")
	f.Duration("read-timeout", 15*time.Second, "HTTP read timeout")
	f.String("control-bind-addr", ":8787", "control API bind address")
	f.String("control-auth-token", "", "control API bearer token secret (empty disables auth)")
	f.String("notifier-key", "", "ServerChan (sctapi.ftqq.com) push key (empty disables notifications)")
	f.String("otlp-endpoint", "localhost:4318", "OTLP trace exporter endpoint")
	f.Bool("metrics-enabled", true, "expose Prometheus metrics")
	f.Bool("verbose", false, "verbose logging")
	f.String("student-id", "", "portal login id")
	f.String("password", "", "portal login password")
	f.String("ocr-endpoint", "", "OCR solver endpoint")
	f.String("ocr-api-key", "", "OCR solver API key")
	f.String("campus-code", "", "active-semester campus code (overridden by the portal's own login response once available)")
	f.String("batch-code", "", "active-semester elective batch code (overridden by the portal's own login response once available)")

	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("base_url", "base-url")
	bindFlag("connect_timeout", "connect-timeout")
	bindFlag("read_timeout", "read-timeout")
	bindFlag("control_bind_addr", "control-bind-addr")
	bindFlag("control_auth_token", "control-auth-token")
	bindFlag("notifier_key", "notifier-key")
	bindFlag("otlp_endpoint", "otlp-endpoint")
	bindFlag("metrics_enabled", "metrics-enabled")
	bindFlag("verbose", "verbose")
	bindFlag("student_id", "student-id")
	bindFlag("password", "password")
	bindFlag("ocr_endpoint", "ocr-endpoint")
	bindFlag("ocr_api_key", "ocr-api-key")
	bindFlag("campus_code", "campus-code")
	bindFlag("batch_code", "batch-code")

	viper.SetEnvPrefix("XKMONITOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	creds := config.LoadCredentials()

	log := logging.New().Named("main")
	log.Info("xkmonitor starting", "control_bind_addr", cfg.ControlBindAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownInstrumentation, err := instrumentation.Init(ctx, instrumentation.Config{
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Environment:    "production",
		SampleRate:     1.0,
		MetricsEnabled: cfg.MetricsEnabled,
	})
	if err != nil {
		return fmt.Errorf("instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = shutdownInstrumentation(shutdownCtx)
	}()

	broadcaster := events.NewBroadcaster()
	if n := notify.New(cfg.NotifierKey); cfg.NotifierKey != "" {
		broadcaster.Subscribe(n.Sink())
	}

	sess, err := session.NewClient()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if cfg.CampusCode != "" || cfg.BatchCode != "" {
		snap := sess.Snapshot()
		snap.CampusCode = cfg.CampusCode
		snap.BatchCode = cfg.BatchCode
		sess.Update(snap)
	}

	solver := ocr.NewHTTPSolver(viper.GetString("ocr_endpoint"), viper.GetString("ocr_api_key"))
	loginFlow := login.New(sess, solver)
	recoveryCoord := recovery.New(loginFlow, creds, broadcaster)

	catalogClient := catalog.New(sess)
	grabClient := grab.New(sess)

	wl := wishlist.New()

	// sched is referenced by the factory/swap closures below before it is
	// constructed; scheduler.New itself needs the factory, so the heartbeat
	// callback is wired through a forward-declared pointer.
	var sched *scheduler.Scheduler
	heartbeat := func() { sched.Heartbeat() }

	swapMachine := swap.New(sess, grabClient, broadcaster, heartbeat)

	factory := scheduler.MonitorFactory(func(entry models.WishlistEntry) scheduler.Runner {
		return monitor.New(
			entry.Record.ID.TeachingClassID,
			entry.Record.ID.CourseNumber,
			entry.Record.ID.CourseType,
			wl,
			catalogClient,
			grabClient,
			swapMachine,
			recoveryCoord,
			broadcaster,
			heartbeat,
		)
	})

	sched = scheduler.New(wl, factory, sess, recoveryCoord, broadcaster)

	var schedulerDone chan error
	startScheduler := func() {
		if schedulerDone != nil {
			return
		}
		schedulerDone = make(chan error, 1)
		go func() {
			schedulerDone <- sched.Run(ctx, joinTimeout)
		}()
	}
	stopScheduler := func() {
		sched.Stop()
	}

	controlSrv := controlapi.New(wl, broadcaster, cfg.ControlAuthToken, startScheduler, stopScheduler)
	httpSrv := &http.Server{
		Addr:    cfg.ControlBindAddr,
		Handler: controlSrv.Handler(),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("control API server error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		sched.Stop()
		cancel()
	}()

	<-ctx.Done()

	if schedulerDone != nil {
		select {
		case err := <-schedulerDone:
			if err != nil {
				log.Warn("scheduler exited with error", err)
			}
		case <-time.After(joinTimeout + 2*time.Second):
			log.Warn("scheduler join timed out", nil)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}
