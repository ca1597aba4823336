package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/photo-enhance/internal/cli"
	"github.com/fpang/photo-enhance/internal/config"
	"github.com/fpang/photo-enhance/internal/logging"
	"github.com/fpang/photo-enhance/internal/metrics"
	"github.com/fpang/photo-enhance/internal/session"
	"github.com/fpang/photo-enhance/internal/transform"
	"github.com/fpang/photo-enhance/internal/web"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "photo-web",
	Short: "Web UI for AI photo enhancement",
	Long: `Photo Web starts a local web server for enhancing a single photo with
Gemini: upload a JPEG, PNG or WebP image, enhance it, auto-frame it, preview
colour filters on a before/after slider and download the result.

Examples:
  photo-web
  photo-web --addr :9090
  photo-web --model gemini-2.5-flash-image-preview --validate-key`,
	Run: runMain,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("addr", ":8080", "Address to listen on")
	flags.StringP("model", "m", transform.DefaultModel, "Gemini image model to use")
	flags.Bool("validate-key", false, "Check the API key before serving")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write JSON logs to this rotated file")

	for key, name := range map[string]string{
		"server.addr":         "addr",
		"gemini.model":        "model",
		"gemini.validate_key": "validate-key",
		"logging.level":       "log-level",
		"logging.file":        "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load(v)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	closer := logging.Configure(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, File: cfg.Logging.File})
	defer closer.Close()
	metrics.Enable(cfg.Metrics.EMF)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing key is reported per request so the page still loads.
	var client *transform.Client
	if cfg.Gemini.APIKey == "" {
		client, err = transform.New(ctx, cfg.Transform())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
	} else {
		client = cli.InitClient(ctx, cfg, cfg.Gemini.ValidateKey)
	}

	store := session.NewStore(client, cfg.Server.SessionTTL)
	server := web.NewServer(store, web.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	logging.NewStartupLogger("photo-web").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("apiKey", client.Configured()).
		Feature("emf", metrics.Enabled()).
		Feature("validateKey", cfg.Gemini.ValidateKey).
		Config("addr", cfg.Server.Addr).
		Config("model", client.Model()).
		Config("sessionTTL", cfg.Server.SessionTTL.String()).
		InitDuration(time.Since(initStart)).
		Log()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return store.Run(gctx, cfg.Server.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	fmt.Printf("\n  Photo Enhance: http://localhost%s\n\n", cfg.Server.Addr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
