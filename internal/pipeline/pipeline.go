// Package pipeline runs the enhancement workflow end to end on local files:
// load, enhance, optionally auto-frame, apply a filter and write the export.
// The CLI and the MCP server both drive a session through it.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/filter"
	"github.com/fpang/photo-enhance/internal/session"
)

// Options selects the steps to run on one input file.
type Options struct {
	Input string
	// Output is the file or directory to write. Empty writes next to Input
	// using the export name.
	Output    string
	AutoFrame bool
	Filter    string
	// MaxUploadBytes caps the input size. <= 0 means the upload default.
	MaxUploadBytes int64
}

// Result describes a completed run.
type Result struct {
	Output   string
	Filter   string
	Filtered bool
	Bytes    int
	Steps    []string
	Elapsed  time.Duration
	Metadata string
}

// Run enhances one file with t and writes the export.
func Run(ctx context.Context, t session.Transformer, opts Options) (Result, error) {
	start := time.Now()

	// Fail on a bad filter before spending a remote call.
	if _, err := filter.Lookup(opts.Filter); err != nil {
		return Result{}, err
	}

	img, err := filehandler.LoadUploadFile(opts.Input, opts.MaxUploadBytes)
	if err != nil {
		return Result{}, err
	}

	sess := session.New(filepath.Base(opts.Input), t)
	sess.Upload(img)

	res := Result{}
	if img.Metadata != nil {
		res.Metadata = img.Metadata.Summary()
	}

	if _, err := sess.Enhance(ctx); err != nil {
		return Result{}, err
	}
	res.Steps = append(res.Steps, session.Enhance.String())

	if opts.AutoFrame {
		if _, err := sess.AutoFrame(ctx); err != nil {
			return Result{}, err
		}
		res.Steps = append(res.Steps, session.AutoFrame.String())
	}

	st, err := sess.SelectFilter(opts.Filter)
	if err != nil {
		return Result{}, err
	}
	res.Filter = st.FilterID

	dl, err := sess.Export()
	if err != nil {
		return Result{}, err
	}

	out, err := writeExport(opts.Input, opts.Output, dl.Name, dl.Data)
	if err != nil {
		return Result{}, err
	}

	res.Output = out
	res.Filtered = dl.Filtered
	res.Bytes = len(dl.Data)
	res.Elapsed = time.Since(start)

	log.Info().
		Str("input", opts.Input).
		Str("output", out).
		Str("filter", res.Filter).
		Strs("steps", res.Steps).
		Dur("elapsed", res.Elapsed).
		Msg("Photo enhanced")
	return res, nil
}

// ApplyFilter rasterizes a local image under a catalog filter without any
// remote call.
func ApplyFilter(input, output, filterID string, maxBytes int64) (Result, error) {
	start := time.Now()
	spec, err := filter.Lookup(filterID)
	if err != nil {
		return Result{}, err
	}
	img, err := filehandler.LoadUploadFile(input, maxBytes)
	if err != nil {
		return Result{}, err
	}

	exp, err := filter.Rasterize(img.Payload(), spec)
	if err != nil {
		return Result{}, err
	}

	out, err := writeExport(input, output, filter.ExportName(img.BaseName(), exp.Filtered), exp.Payload.Data)
	if err != nil {
		return Result{}, err
	}

	log.Info().Str("input", input).Str("output", out).Str("filter", spec.ID).Msg("Filter applied")
	return Result{
		Output:   out,
		Filter:   spec.ID,
		Filtered: exp.Filtered,
		Bytes:    len(exp.Payload.Data),
		Steps:    []string{"filter"},
		Elapsed:  time.Since(start),
	}, nil
}

// writeExport resolves the destination and writes data to it. output may be
// empty (next to input), an existing directory or a file path.
func writeExport(input, output, name string, data []byte) (string, error) {
	dest := output
	switch {
	case dest == "":
		dest = filepath.Join(filepath.Dir(input), name)
	default:
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			dest = filepath.Join(dest, name)
		}
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", apperr.Wrap(apperr.KindValidation, fmt.Sprintf("could not write %s", dest), err)
	}
	return dest, nil
}
