// Package lambdaboot holds the Lambda cold-start bootstrap: AWS config, the
// Gemini key from SSM Parameter Store and the startup log line.
package lambdaboot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/auth"
	"github.com/fpang/photo-enhance/internal/logging"
)

// ParameterGetter is the subset of *ssm.Client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSClients holds the AWS SDK clients used at cold start.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with an SSM client.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// LoadGeminiKey returns the Gemini API key. GEMINI_API_KEY wins; otherwise
// the key is read from the SSM parameter paramName and exported into
// GEMINI_API_KEY so later config loads see it.
func LoadGeminiKey(ctx context.Context, getter ParameterGetter, paramName string) (string, error) {
	if key := os.Getenv(auth.EnvAPIKey); key != "" {
		return key, nil
	}
	if paramName == "" {
		return "", errors.New("no SSM parameter configured for the Gemini API key")
	}

	ssmStart := time.Now()
	result, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", paramName, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}

	key := aws.ToString(result.Parameter.Value)
	os.Setenv(auth.EnvAPIKey, key)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return key, nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
