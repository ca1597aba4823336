package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/cli"
	"github.com/fpang/photo-enhance/internal/config"
	"github.com/fpang/photo-enhance/internal/filter"
	"github.com/fpang/photo-enhance/internal/logging"
	"github.com/fpang/photo-enhance/internal/pipeline"
	"github.com/fpang/photo-enhance/internal/transform"
)

// CLI flags
var (
	autoFrameFlag bool
	filterFlag    string
	outFlag       string
	pickFlag      bool
	validateFlag  bool
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "photo-cli",
	Short: "Enhance photos with Gemini from the command line",
	Long: `Photo CLI enhances a single photo with Gemini, optionally auto-frames it
and applies a colour filter, then writes the result as a PNG.

Examples:
  photo-cli enhance beach.jpg
  photo-cli enhance beach.jpg --autoframe --filter vintage --out ./exports
  photo-cli enhance --pick
  photo-cli filters`,
	SilenceUsage: true,
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance [file]",
	Short: "Enhance one photo and save the result",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEnhance,
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the available colour filters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cli.PrintFilters(cmd.OutOrStdout())
	},
}

func init() {
	enhanceCmd.Flags().BoolVar(&autoFrameFlag, "autoframe", false, "Auto-frame the enhanced photo")
	enhanceCmd.Flags().StringVarP(&filterFlag, "filter", "f", filter.IdentityID, "Filter to apply on export (see photo-cli filters)")
	enhanceCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output file or directory (default: next to the input)")
	enhanceCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the photo with the native file dialog")
	enhanceCmd.Flags().BoolVar(&validateFlag, "validate-key", false, "Check the API key before enhancing")
	enhanceCmd.Flags().StringP("model", "m", transform.DefaultModel, "Gemini image model to use")
	if err := v.BindPFlag("gemini.model", enhanceCmd.Flags().Lookup("model")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(enhanceCmd, filtersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEnhance(cmd *cobra.Command, args []string) error {
	logging.Init()

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	closer := logging.Configure(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, File: cfg.Logging.File})
	defer closer.Close()

	input, err := resolveInput(cmd, args)
	if err != nil {
		if errors.Is(err, cli.ErrCanceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "No photo selected.")
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := cli.InitClient(ctx, cfg, validateFlag || cfg.Gemini.ValidateKey)

	fmt.Fprintf(cmd.ErrOrStderr(), "Enhancing %s with %s...\n", input, client.Model())
	res, err := pipeline.Run(ctx, client, pipeline.Options{
		Input:          input,
		Output:         outFlag,
		AutoFrame:      autoFrameFlag,
		Filter:         filterFlag,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		log.Debug().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("Enhancement failed")
		return errors.New(apperr.UserMessage(err))
	}

	cli.PrintResult(cmd.OutOrStdout(), res)
	return nil
}

func resolveInput(cmd *cobra.Command, args []string) (string, error) {
	var path string
	var err error
	switch {
	case len(args) == 1:
		path = args[0]
	case pickFlag:
		path, err = cli.PickImage()
	default:
		path, err = cli.PromptForImage(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	if err != nil {
		return "", err
	}
	return cli.ResolveImagePath(path)
}
