// Package main provides a Lambda entry point for the photo enhancement API.
//
// It serves the same router as photo-web behind API Gateway (HTTP API,
// payload v2). Sessions live in the memory of a warm instance; the websocket
// event stream is not reachable through API Gateway, so clients poll
// GET /api/sessions/{id} instead.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/config"
	"github.com/fpang/photo-enhance/internal/lambdaboot"
	"github.com/fpang/photo-enhance/internal/logging"
	"github.com/fpang/photo-enhance/internal/metrics"
	"github.com/fpang/photo-enhance/internal/session"
	"github.com/fpang/photo-enhance/internal/transform"
	"github.com/fpang/photo-enhance/internal/web"
)

var handler http.Handler

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	v := config.New()
	// CloudWatch parses EMF lines; on Lambda they are always on.
	v.SetDefault("metrics.emf", true)
	v.SetDefault("logging.json", true)

	clients := lambdaboot.InitAWS(ctx)
	param := logging.EnvOrDefault("SSM_API_KEY_PARAM", v.GetString("lambda.api_key_param"))
	if _, err := lambdaboot.LoadGeminiKey(ctx, clients.SSM, param); err != nil {
		log.Error().Err(err).Msg("Gemini API key unavailable, transforms will fail")
	}

	cfg, err := config.Load(v)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Configure(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
	metrics.Enable(cfg.Metrics.EMF)

	client, err := transform.New(ctx, cfg.Transform())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	// Lambda has no background goroutine between invocations; sweep lazily
	// instead of running Store.Run.
	store := session.NewStore(client, cfg.Server.SessionTTL)
	server := web.NewServer(store, web.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	handler = withSweep(store, server.Handler())

	lambdaboot.StartupLog("photo-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		SSMParam("apiKey", param).
		Feature("apiKey", client.Configured()).
		Feature("emf", metrics.Enabled()).
		Config("region", clients.Config.Region).
		Config("model", client.Model()).
		Config("sessionTTL", cfg.Server.SessionTTL.String()).
		Log()
}

func main() {
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

// withSweep expires idle sessions before each request.
func withSweep(store *session.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store.Sweep(time.Now())
		next.ServeHTTP(w, r)
	})
}
