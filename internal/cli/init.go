package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/auth"
	"github.com/fpang/photo-enhance/internal/config"
	"github.com/fpang/photo-enhance/internal/transform"
)

// InitClient creates the Gemini image client from cfg and, when validate is
// set, checks the key with a minimal request. Exits fatally on failure.
func InitClient(ctx context.Context, cfg config.Config, validate bool) *transform.Client {
	client, err := transform.New(ctx, cfg.Transform())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	if !client.Configured() {
		HandleValidationError(&auth.ValidationError{Type: auth.ErrTypeNoKey, Message: "no API key"})
	}

	log.Debug().Str("model", client.Model()).Msg("Gemini client initialized")

	if validate {
		if err := auth.ValidateAPIKey(ctx, client.Generator()); err != nil {
			HandleValidationError(err)
		}
		log.Info().Msg("API key validation complete - ready for operations")
	}
	return client
}
