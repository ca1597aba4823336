// Package main runs an MCP server over stdio that exposes photo enhancement
// as tools operating on local file paths.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/config"
	"github.com/fpang/photo-enhance/internal/logging"
	"github.com/fpang/photo-enhance/internal/transform"
)

func main() {
	initStart := time.Now()
	// stdout carries the protocol; logs go to stderr only.
	logging.Init()

	cfg, err := config.Load(config.New())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	closer := logging.Configure(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, File: cfg.Logging.File})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := transform.New(ctx, cfg.Transform())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "photo-enhance", Version: commitHash}, nil)
	t := &tools{client: client, maxBytes: cfg.Server.MaxUploadBytes}
	t.register(server)

	logging.NewStartupLogger("photo-mcp").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("apiKey", client.Configured()).
		Config("model", client.Model()).
		InitDuration(time.Since(initStart)).
		Log()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("MCP server stopped")
		os.Exit(1)
	}
}
