// Archive tool
// Drops window files covered by larger overlapping runs, merges the rest
// into weekly zstd-compressed CSVs and optionally uploads them to S3.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/unklstewy/flightwx/internal/archive"
	"github.com/unklstewy/flightwx/pkg/config"
	"github.com/unklstewy/flightwx/pkg/logger"
)

var (
	configPath = flag.String("config", "configs/config.toml", "Path to configuration file")
	inputDir   = flag.String("input", "", "Directory with window files (defaults to output.dir)")
	outputDir  = flag.String("output", "", "Directory for weekly files (defaults to archive.weekly_dir)")
	upload     = flag.Bool("upload", false, "Upload weekly files to archive.bucket")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	in := *inputDir
	if in == "" {
		in = cfg.Output.Dir
	}
	out := *outputDir
	if out == "" {
		out = cfg.Archive.WeeklyDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, in, out, *upload, log); err != nil {
		log.Error("Archive failed", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, in, out string, doUpload bool, log *logger.Logger) error {
	files, err := filepath.Glob(filepath.Join(in, "*.csv"))
	if err != nil {
		return err
	}
	selected := archive.SelectNonOverlapping(files)
	log.Info("Selected window files",
		logger.Int("found", len(files)),
		logger.Int("selected", len(selected)))

	for _, week := range archive.GroupByWeek(selected) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := archive.MergeWeek(week, out, log); err != nil {
			log.Warn("Failed to merge week",
				logger.String("week", week.Start.Format(archive.WeekLayout)),
				logger.Error(err))
		}
	}

	if !doUpload {
		return nil
	}
	uploader, err := archive.NewS3Uploader(ctx, cfg.Archive.Bucket, cfg.Archive.Region)
	if err != nil {
		return err
	}
	keys, err := archive.UploadDir(ctx, uploader, out, cfg.Archive.Prefix, log)
	log.Info("Upload finished", logger.Int("uploaded", len(keys)))
	return err
}
