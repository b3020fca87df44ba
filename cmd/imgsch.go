package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edtenz/imgsch/dataurl"
	"github.com/edtenz/imgsch/imgsch"
	"github.com/edtenz/imgsch/pkg/metrics"
	"github.com/edtenz/imgsch/pkg/misc"
	"github.com/edtenz/imgsch/pkg/rlog"
	"github.com/edtenz/imgsch/thumbnails"
)

type App struct {
	cfg imgsch.Config

	stdin  io.Reader
	stdout io.Writer

	generator ThumbnailGenerator
}

type ThumbnailGenerator interface {
	GenerateAsync(img imgsch.EncodedImage, maxDimension imgsch.MaxDimension) <-chan imgsch.Result
}

func NewApp(cfg imgsch.Config) *App {
	return &App{
		cfg:    cfg,
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
}

func (a *App) Prepare() (err error) {
	a.generator, err = thumbnails.NewGenerator(thumbnails.Options{
		Format:       a.cfg.ThumbnailsFormat,
		JPEGQuality:  a.cfg.JPEGQuality,
		Interpolator: a.cfg.Interpolator,
	})
	if err != nil {
		return fmt.Errorf("couldn't prepare thumbnail generator: %w", err)
	}
	return nil
}

// Run generates a thumbnail for the configured input and writes it. The generation
// itself can't be interrupted, ctx only allows to stop waiting for the result.
func (a *App) Run(ctx context.Context) error {
	if a.generator == nil {
		return errors.New("app is not prepared")
	}

	img, err := a.readInput()
	if err != nil {
		return fmt.Errorf("couldn't read input: %w", err)
	}
	rlog.Debugf("input image: %s, %s", dataurl.DetectMediaType(img), misc.FormatFileSize(int64(len(img))))

	var res imgsch.Result
	select {
	case res = <-a.generator.GenerateAsync(img, a.cfg.MaxDimension):
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.Err != nil {
		return fmt.Errorf("couldn't generate thumbnail: %w", res.Err)
	}

	output, err := a.writeOutput(res.Image)
	if err != nil {
		return fmt.Errorf("couldn't write thumbnail: %w", err)
	}

	rlog.Infof("thumbnail was written to %s, size: %s", output, misc.FormatFileSize(int64(len(res.Image))))

	return nil
}

func (a *App) readInput() (imgsch.EncodedImage, error) {
	input := a.cfg.Input
	switch {
	case input == "-":
		return io.ReadAll(a.stdin)

	case dataurl.IsDataURL(input):
		_, data, err := dataurl.Parse(input)
		return data, err

	default:
		return os.ReadFile(input)
	}
}

func (a *App) getOutputPath() string {
	if a.cfg.Output != "" {
		return a.cfg.Output
	}
	if a.cfg.Input == "-" || dataurl.IsDataURL(a.cfg.Input) {
		// There is no file to put the thumbnail next to.
		return "-"
	}

	ext := a.cfg.ThumbnailsFormat.Ext()
	if a.cfg.DataURL {
		ext += ".txt"
	}
	return misc.ThumbnailPath(a.cfg.Input, ext)
}

func (a *App) writeOutput(thumbnail imgsch.EncodedImage) (output string, err error) {
	data := []byte(thumbnail)
	if a.cfg.DataURL {
		data = []byte(dataurl.Format(thumbnail) + "\n")
	}

	output = a.getOutputPath()
	if output == "-" {
		_, err := a.stdout.Write(data)
		return "stdout", err
	}

	err = os.WriteFile(output, data, 0o644) //nolint:gosec
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%q", output), nil
}

// Shutdown flushes metrics. It is safe to call this method even if Prepare has failed.
func (a *App) Shutdown(context.Context) error {
	if a.cfg.MetricsFile == "" {
		return nil
	}

	if err := metrics.WriteToTextfile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("couldn't write metrics to %q: %w", a.cfg.MetricsFile, err)
	}
	rlog.Debugf("metrics were written to %q", a.cfg.MetricsFile)

	return nil
}
