package main

import (
	"context"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	"go-roi-inspector/internal/config"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/pkg/models"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	measureGeometry geometryFlags
	measureDecode   decodeFlags
	measureTemplate string
	measureRaw      bool
	measureFormat   string
	measurePreview  string
)

var measureCmd = &cobra.Command{
	Use:   "measure IMAGE",
	Short: "Measure regions of a single image",
	Long: `Decode one image and print the mean and standard deviation of R, G and B
inside each region. Regions come from a template or from --rect, --circle
and --polygon flags, numbered in that order starting at 1.`,
	Args: cobra.ExactArgs(1),
	RunE: runMeasure,
}

func init() {
	measureGeometry.register(measureCmd)
	measureDecode.register(measureCmd)
	measureCmd.Flags().StringVarP(&measureTemplate, "template", "t", "", "Region template (path, http(s) URL or azblob://container/blob)")
	measureCmd.Flags().BoolVar(&measureRaw, "raw", false, "Also report RGGB plane means from the sensor data")
	measureCmd.Flags().StringVarP(&measureFormat, "format", "f", formatTable, "Output format: table, csv or json")
	measureCmd.Flags().StringVar(&measurePreview, "preview", "", "Write a PNG preview with the regions outlined")
}

func runMeasure(cmd *cobra.Command, args []string) error {
	if err := checkFormat(measureFormat); err != nil {
		return err
	}
	if measureTemplate != "" && !measureGeometry.empty() {
		return apperrors.NewInvalidInputError("give either --template or region flags, not both", nil)
	}

	session, err := measureGeometry.session()
	if err != nil {
		return err
	}

	c, err := newContainer(cmd, func(cfg *config.Config) { measureDecode.apply(cmd, cfg) })
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp, err := c.Service().MeasureImage(ctx, models.MeasureRequest{
		Path:     args[0],
		Regions:  session.Regions(),
		Template: measureTemplate,
		Raw:      measureRaw,
		Preview:  measurePreview != "",
	})
	if err != nil {
		return err
	}
	if err := printMeasurement(cmd.OutOrStdout(), resp, measureFormat); err != nil {
		return err
	}
	if resp.Preview == nil {
		return nil
	}
	return writePreview(measurePreview, resp)
}

func writePreview(path string, resp *models.MeasureResponse) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("failed to create preview "+path, err)
	}
	defer f.Close()
	if err := png.Encode(f, resp.Preview); err != nil {
		return apperrors.NewStorageError("failed to write preview "+path, err)
	}
	b := resp.Preview.Bounds()
	pterm.Info.Printfln("preview %dx%d written to %s", b.Dx(), b.Dy(), path)
	return nil
}

// commandContext is cmd.Context with a background fallback for tests that
// call RunE directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
