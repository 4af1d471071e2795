package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/poodlez/doom/internal/common/config"
	"github.com/poodlez/doom/internal/input"
	"github.com/poodlez/doom/internal/proc"
	"github.com/poodlez/doom/internal/server"
	"github.com/poodlez/doom/internal/session"
	"github.com/poodlez/doom/internal/stream"
	"github.com/poodlez/doom/pkg/logger"
	"github.com/poodlez/doom/pkg/metrics"
	"github.com/poodlez/doom/pkg/utils"
	"github.com/poodlez/doom/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of doom-server",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("doom-server version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "doom-server",
		Short: "DOOM session server",
		Long:  `doom-server supervises a pool of DOOM game sessions and serves them over HTTP as MJPEG streams with key injection`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfgFile := configPath
	if cfgFile == "" {
		cfgFile = "doom-server.yaml"
	}
	cfg, cfgPath, err := config.LoadConfig(cfgFile)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", cfgPath, err)
			os.Exit(1)
		}
		// env-only deployments run without a config file
		cfg = config.Default()
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting doom-server",
		zap.String("version", version.Get()),
		zap.Int("port", cfg.Port),
		zap.Int("max_sessions", cfg.Session.MaxSessions))

	if cfg.PID != "" {
		pf := utils.NewPIDFile(cfg.PID)
		if err := pf.Write(); err != nil {
			log.Fatal("failed to write pid file",
				zap.String("path", pf.Path()),
				zap.Error(err))
		}
		defer pf.Remove()
	}

	if err := os.MkdirAll(cfg.Session.Dir, 0755); err != nil {
		log.Fatal("failed to create session directory",
			zap.String("path", cfg.Session.Dir),
			zap.Error(err))
	}

	m := metrics.New(cfg.Metrics)

	sup := proc.NewSupervisor(log, cfg.Doom, cfg.Session.MaxSessions)
	registry := session.NewRegistry(log, session.Config{
		MaxSessions:   cfg.Session.MaxSessions,
		Dir:           cfg.Session.Dir,
		Framebuffer:   cfg.Doom.Framebuffer,
		DisableCreate: cfg.Session.DisableCreate,
		IdleTimeout:   cfg.Session.IdleTimeout,
		SweepInterval: cfg.Session.SweepInterval,
	}, sup, m)

	srv := server.NewServer(log, cfg,
		registry,
		stream.NewStreamer(log, cfg.Stream, m),
		input.NewInjector(log, cfg.Input),
		m)

	// Bind before anything else; a taken port is the one startup error
	// worth dying for.
	ln, err := srv.Listen()
	if err != nil {
		log.Fatal("failed to bind", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// reaper and idle sweeper
	go registry.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
