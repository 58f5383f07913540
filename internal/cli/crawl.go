package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/eulerity/imagecrawler/internal/crawler"
	"github.com/eulerity/imagecrawler/internal/export"
	"github.com/eulerity/imagecrawler/internal/logging"
	"github.com/eulerity/imagecrawler/internal/storage"
	"github.com/eulerity/imagecrawler/internal/types"
)

var (
	seed            string
	maxPages        int
	workers         int
	delayMs         int
	userAgent       string
	robotsCachePath string
	robotsCacheTTL  time.Duration
	outputPath      string
	outputFormat    string
	development     bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl one site and report every image found",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(development)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck // best-effort flush

		var cache *storage.RobotsCache
		if robotsCachePath != "" {
			cache, err = storage.OpenRobotsCache(robotsCachePath)
			if err != nil {
				return fmt.Errorf("open robots cache: %w", err)
			}
			defer cache.Close()
		}

		opts := types.Options{
			Seed:            seed,
			MaxPages:        maxPages,
			Workers:         workers,
			DelayMs:         delayMs,
			UserAgent:       userAgent,
			RobotsCachePath: robotsCachePath,
			RobotsCacheTTL:  robotsCacheTTL,
		}

		c, err := crawler.New(opts, logger, cache)
		if err != nil {
			return fmt.Errorf("build crawler: %w", err)
		}

		results, err := c.Start(context.Background())
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}

		fmt.Printf("pages processed: %d\n", results.PagesProcessed)
		fmt.Printf("images found: %d\n", results.ImagesFound)
		fmt.Printf("logos found: %d\n", results.LogosFound)

		if outputPath == "" {
			return nil
		}

		exporter, err := export.NewExporter(filepath.Dir(outputPath))
		if err != nil {
			return fmt.Errorf("build exporter: %w", err)
		}

		switch outputFormat {
		case "json":
			err = exporter.ExportJSON(c.ImageRecords(), outputPath)
		case "csv":
			err = exporter.ExportCSV(c.ImageRecords(), outputPath)
		default:
			return fmt.Errorf("unknown --format %q (want json or csv)", outputFormat)
		}
		if err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		fmt.Printf("wrote %s (%s)\n", outputPath, outputFormat)
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVar(&seed, "seed", "", "seed URL to start the crawl from (required)")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 100, "maximum number of pages to process")
	crawlCmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent workers")
	crawlCmd.Flags().IntVar(&delayMs, "delay-ms", 250, "fallback politeness delay between requests, in milliseconds")
	crawlCmd.Flags().StringVar(&userAgent, "user-agent", "Eulerity-Crawler/1.0", "User-Agent header sent with every request")
	crawlCmd.Flags().StringVar(&robotsCachePath, "robots-cache", "", "path to a SQLite robots policy cache (optional)")
	crawlCmd.Flags().DurationVar(&robotsCacheTTL, "robots-cache-ttl", time.Hour, "robots policy cache entry lifetime")
	crawlCmd.Flags().StringVar(&outputPath, "output", "", "write results to this file (optional; omit to print a summary only)")
	crawlCmd.Flags().StringVar(&outputFormat, "format", "json", "output file format when --output is set: json or csv")
	crawlCmd.Flags().BoolVar(&development, "dev-log", false, "use human-readable development logging")

	crawlCmd.MarkFlagRequired("seed")
}
