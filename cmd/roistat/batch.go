package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go-roi-inspector/internal/batch"
	"go-roi-inspector/internal/config"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/export"
	"go-roi-inspector/internal/logger"
	"go-roi-inspector/pkg/models"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	batchGeometry        geometryFlags
	batchDecode          decodeFlags
	batchTemplate        string
	batchOut             string
	batchFormat          string
	batchWorkers         int
	batchContinueOnError bool
	batchExtensions      []string
	batchPersist         bool
	batchWatch           bool
	batchDebounce        time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch FOLDER",
	Short: "Measure the same regions in every image of a folder",
	Long: `Decode every matching image of FOLDER in filename order and measure the
same regions in each. The result has one row per image and region, prefixed
with the image name and its capture time.

By default the first image that fails to decode aborts the batch. With
--continue-on-error failed images are skipped and listed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchGeometry.register(batchCmd)
	batchDecode.register(batchCmd)
	f := batchCmd.Flags()
	f.StringVarP(&batchTemplate, "template", "t", "", "Region template (path, http(s) URL or azblob://container/blob)")
	f.StringVarP(&batchOut, "out", "o", "", "Write the table to this CSV file")
	f.StringVarP(&batchFormat, "format", "f", formatTable, "Output format when --out is not given: table, csv or json")
	f.IntVarP(&batchWorkers, "workers", "w", 1, "Images decoded concurrently")
	f.BoolVar(&batchContinueOnError, "continue-on-error", false, "Skip images that fail to decode")
	f.StringSliceVar(&batchExtensions, "ext", nil, "File extensions to include (default .dng)")
	f.BoolVar(&batchPersist, "persist", false, "Save the run to the results database")
	f.BoolVar(&batchWatch, "watch", false, "Run again whenever images are added to the folder")
	f.DurationVar(&batchDebounce, "debounce", batch.DefaultDebounce, "Quiet period before a watched folder is measured again")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := checkFormat(batchFormat); err != nil {
		return err
	}
	if batchTemplate != "" && !batchGeometry.empty() {
		return apperrors.NewInvalidInputError("give either --template or region flags, not both", nil)
	}
	session, err := batchGeometry.session()
	if err != nil {
		return err
	}

	c, err := newContainer(cmd, func(cfg *config.Config) {
		batchDecode.apply(cmd, cfg)
		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers = batchWorkers
		}
		if cmd.Flags().Changed("continue-on-error") {
			cfg.Batch.ContinueOnError = batchContinueOnError
		}
		if cmd.Flags().Changed("ext") {
			cfg.Batch.Extensions = batchExtensions
		}
	})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	folder := args[0]
	req := models.BatchRequest{
		Folder:   folder,
		Regions:  session.Regions(),
		Template: batchTemplate,
		Persist:  batchPersist,
	}
	run := func(ctx context.Context) error {
		resp, err := c.Service().RunBatch(ctx, req)
		if err != nil {
			return err
		}
		if batchOut == "" {
			return printBatch(cmd.OutOrStdout(), resp, batchFormat)
		}
		if err := export.WriteTableFile(batchOut, models.Table{Rows: resp.Rows}); err != nil {
			return err
		}
		printBatchSummary(resp)
		pterm.Info.Printfln("wrote %s", batchOut)
		return nil
	}

	if !batchWatch {
		return run(ctx)
	}

	logger.WithFields(logrus.Fields{
		"folder":   folder,
		"debounce": batchDebounce,
	}).Info("Watching folder for new images")
	err = batch.Watch(ctx, folder, c.Config().Batch.Extensions, batchDebounce, run)
	logger.WithField("metrics", c.Metrics()).Info("Stopped watching")
	return err
}
