package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	formakv "github.com/lychee-technology/formakv"
	"github.com/lychee-technology/formakv/factory"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml, json or toml); FORMAKV_* env vars override it")
	csvFile := flag.String("csv", "", "Path to a books CSV file; the built-in sample is used when empty")
	dryRun := flag.Bool("dry-run", false, "Map and validate rows without writing to the store")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := formakv.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
		cfg.Logging.Format = "console"
	}

	logger, err := formakv.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx := context.Background()

	sugar.Infof("Opening %s store...", cfg.Store.Backend)
	registry, err := factory.NewRegistryWithConfig(ctx, cfg)
	if err != nil {
		sugar.Fatalf("Failed to create registry: %v", err)
	}
	defer registry.Store().Close()

	authors, books, err := defineLibrary(registry)
	if err != nil {
		sugar.Fatalf("Failed to define models: %v", err)
	}

	importer := NewCSVImporter(books, authors, NewBookMapper(), *dryRun)
	var result *ImportResult
	if *csvFile == "" {
		sugar.Info("Importing built-in sample data")
		result, err = importer.ImportFromReader(ctx, strings.NewReader(sampleCSV))
	} else {
		sugar.Infof("Importing from: %s", *csvFile)
		result, err = importer.ImportFromFile(ctx, *csvFile)
	}
	if err != nil {
		sugar.Fatalf("Import failed: %v", err)
	}
	printResult(result, sugar)

	if !*dryRun {
		for _, book := range result.Saved {
			reloaded, err := books.GetByID(ctx, book.ID())
			if err != nil || reloaded == nil {
				sugar.Errorf("Failed to reload book %s: %v", book.ID(), err)
				continue
			}
			doc, err := reloaded.ToDocument(ctx)
			if err != nil {
				sugar.Errorf("Failed to render book %s: %v", book.ID(), err)
				continue
			}
			jsonBytes, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				sugar.Errorf("Error marshaling to JSON: %v", err)
				continue
			}
			sugar.Infof("Book %s:\n%s", book.ID(), jsonBytes)
		}
	}

	if result.FailedCount > 0 {
		os.Exit(1)
	}
}

// printResult prints the import result summary.
func printResult(result *ImportResult, logger *zap.SugaredLogger) {
	logger.Info(strings.Repeat("=", 50))
	logger.Info("Import Summary")
	logger.Info(strings.Repeat("=", 50))
	logger.Infof("  Total rows:     %d", result.TotalRows)
	logger.Infof("  Successful:     %d", result.SuccessCount)
	logger.Infof("  Failed:         %d", result.FailedCount)
	logger.Infof("  Duration:       %v", result.Duration)

	if len(result.Errors) > 0 {
		logger.Infof("First %d errors:", min(10, len(result.Errors)))
		for i, err := range result.Errors {
			if i >= 10 {
				logger.Infof("  ... and %d more errors", len(result.Errors)-10)
				break
			}
			logger.Infof("  [%d] %s", i+1, err.Error())
		}
	}
}
